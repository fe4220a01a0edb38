// Package protocol decodes a decrypted request cleartext into an
// fsengine.Op and encodes an fsengine.Result back into a response
// cleartext. It sits between the wire framer, which only knows about
// ciphertext lengths, and the FS engine, which only knows about verbs
// and paths.
package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/parasource/branchfs/internal/common"
	"github.com/parasource/branchfs/internal/ferrors"
	"github.com/parasource/branchfs/internal/fsengine"
	"github.com/parasource/branchfs/internal/session"
)

// Verb names, exactly as they appear on the wire.
const (
	VerbSession    = "FS_SESSION"
	VerbCreate     = "FS_CREATE"
	VerbDelete     = "FS_DELETE"
	VerbReadBlock  = "FS_READBLOCK"
	VerbWriteBlock = "FS_WRITEBLOCK"
)

// MaxDecryptedLen is the largest cleartext any verb can produce once
// decrypted: a FS_WRITEBLOCK carrying a full path, a block number and
// a full data block. It is the only length bound applied to a
// decrypted request: ParseRequest checks each verb's argument count,
// and for FS_WRITEBLOCK that exactly one data block follows the NUL,
// but applies no separate per-verb length limit. The server also uses
// it to reject grossly oversize ciphertexts before decrypting them.
const MaxDecryptedLen = len(VerbWriteBlock) + 1 + 20 + 1 + 20 + 1 + common.MaxPathName + 1 + 10 + 1 + common.BlockSize

// Request is a fully decoded client request: the session envelope
// (session id and sequence number, both present on every verb) plus
// the FS-engine operation it names. Session is a bare FS_SESSION
// request carrying no fsengine.Op.
type Request struct {
	Verb     string
	Session  uint64
	Sequence uint64
	Op       fsengine.Op // zero value for FS_SESSION
}

// ParseRequest decodes a decrypted request body. The text portion,
// everything up to the first NUL byte, carries the verb, session,
// sequence and any textual arguments; FS_WRITEBLOCK alone carries a
// raw data block after that NUL.
func ParseRequest(plaintext []byte) (*Request, error) {
	nul := bytes.IndexByte(plaintext, 0)
	if nul == -1 {
		return nil, ferrors.ErrMalformedBody
	}
	text := string(plaintext[:nul])
	data := plaintext[nul+1:]

	fields := strings.Split(text, " ")
	if len(fields) < 3 {
		return nil, ferrors.ErrMalformedBody
	}
	verb := fields[0]
	session, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return nil, ferrors.ErrMalformedBody
	}
	sequence, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return nil, ferrors.ErrMalformedBody
	}
	args := fields[3:]

	req := &Request{Verb: verb, Session: session, Sequence: sequence}

	switch verb {
	case VerbSession:
		if len(args) != 0 || len(data) != 0 {
			return nil, ferrors.ErrMalformedBody
		}
		if session != 0 {
			return nil, ferrors.ErrNonZeroSession
		}

	case VerbCreate:
		if len(args) != 2 || len(data) != 0 {
			return nil, ferrors.ErrMalformedBody
		}
		if len(args[1]) != 1 {
			return nil, ferrors.ErrBadCreateType
		}
		req.Op = fsengine.Op{
			Verb:       fsengine.VerbCreate,
			Path:       args[0],
			CreateType: args[1][0],
		}

	case VerbDelete:
		if len(args) != 1 || len(data) != 0 {
			return nil, ferrors.ErrMalformedBody
		}
		req.Op = fsengine.Op{Verb: fsengine.VerbDelete, Path: args[0]}

	case VerbReadBlock:
		if len(args) != 2 || len(data) != 0 {
			return nil, ferrors.ErrMalformedBody
		}
		offset, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return nil, ferrors.ErrMalformedBody
		}
		req.Op = fsengine.Op{Verb: fsengine.VerbRead, Path: args[0], Offset: uint32(offset)}

	case VerbWriteBlock:
		if len(args) != 2 || len(data) != common.BlockSize {
			return nil, ferrors.ErrMalformedBody
		}
		offset, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return nil, ferrors.ErrMalformedBody
		}
		req.Op = fsengine.Op{
			Verb:   fsengine.VerbWrite,
			Path:   args[0],
			Offset: uint32(offset),
			Data:   data,
		}

	default:
		return nil, ferrors.ErrUnknownVerb
	}

	return req, nil
}

// BuildResponse encodes the success reply cleartext: "<session>
// <sequence>\0" for every verb, with a full data block appended after
// the NUL for FS_READBLOCK.
func BuildResponse(req *Request, res fsengine.Result) []byte {
	head := fmt.Sprintf("%d %d", req.Session, req.Sequence)
	if req.Verb != VerbReadBlock {
		return append([]byte(head), 0)
	}
	out := make([]byte, 0, len(head)+1+common.BlockSize)
	out = append(out, head...)
	out = append(out, 0)
	out = append(out, res.Data...)
	return out
}

// Dispatch validates the session envelope (or opens a new session for
// FS_SESSION) and, for the four FS verbs, hands the operation to the
// engine. The returned bytes are the response cleartext on success;
// a non-nil error means no response should be sent at all; the
// caller closes the connection.
func Dispatch(req *Request, user string, sessions *session.Registry, engine *fsengine.Engine) ([]byte, error) {
	if req.Verb == VerbSession {
		id, err := sessions.OpenSession(user, req.Sequence)
		if err != nil {
			return nil, err
		}
		req.Session = id
		return BuildResponse(req, fsengine.Result{}), nil
	}

	if err := sessions.Validate(user, req.Session, req.Sequence); err != nil {
		return nil, err
	}

	res, err := engine.Execute(user, req.Op)
	if err != nil {
		return nil, err
	}
	return BuildResponse(req, res), nil
}
