// Package wire implements the framed request/response protocol: a
// NUL-terminated ASCII header naming a ciphertext length, followed by
// exactly that many ciphertext bytes, in both directions.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/parasource/branchfs/internal/common"
	"github.com/parasource/branchfs/internal/ferrors"
)

// maxRequestHeaderLen bounds the header read loop: a username of at
// most common.MaxUserName bytes, a space, a decimal length of at most
// 10 digits, and the terminating NUL.
const maxRequestHeaderLen = common.MaxUserName + 1 + 10 + 1

// ReadRequestHeader reads "<username> <size>\0" from r. A header with
// other than one space, an oversized username, or a non-numeric size
// terminates the connection; this function returns a non-nil error in
// every such case, which callers treat uniformly as "close the
// connection, no response".
func ReadRequestHeader(r *bufio.Reader) (username string, size uint32, err error) {
	line, err := readUntilNUL(r, maxRequestHeaderLen)
	if err != nil {
		return "", 0, err
	}

	if strings.Count(line, " ") != 1 {
		return "", 0, ferrors.ErrMalformedHeader
	}
	sp := strings.IndexByte(line, ' ')
	username = line[:sp]
	sizeStr := line[sp+1:]

	if len(username) == 0 || len(username) > common.MaxUserName {
		return "", 0, ferrors.ErrMalformedHeader
	}

	n, err := parseDecimalUint32(sizeStr)
	if err != nil {
		return "", 0, ferrors.ErrMalformedHeader
	}

	return username, n, nil
}

// ReadResponseHeader reads "<size>\0" from r, the client-side half of
// the same framing (used by this package's own tests and by any
// byte-compatible client).
func ReadResponseHeader(r *bufio.Reader) (size uint32, err error) {
	line, err := readUntilNUL(r, 1+10+1)
	if err != nil {
		return 0, err
	}
	n, err := parseDecimalUint32(line)
	if err != nil {
		return 0, ferrors.ErrMalformedHeader
	}
	return n, nil
}

// ReadBody reads exactly size bytes, the ciphertext, from r.
func ReadBody(r *bufio.Reader, size uint32) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteFrame writes header, a NUL, then body; used for both the
// request header+ciphertext and the response header+ciphertext, since
// both sides of the protocol use the identical framing shape.
func WriteFrame(w io.Writer, header string, body []byte) error {
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write([]byte{0}); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// RequestHeader formats "<username> <size>".
func RequestHeader(username string, size int) string {
	return fmt.Sprintf("%s %d", username, size)
}

// ResponseHeader formats "<size>".
func ResponseHeader(size int) string {
	return strconv.Itoa(size)
}

func readUntilNUL(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
		if len(buf) > maxLen {
			return "", ferrors.ErrMalformedHeader
		}
	}
}

func parseDecimalUint32(s string) (uint32, error) {
	if len(s) == 0 || len(s) > 10 {
		return 0, ferrors.ErrMalformedHeader
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, ferrors.ErrMalformedHeader
		}
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, ferrors.ErrMalformedHeader
	}
	return uint32(v), nil
}
