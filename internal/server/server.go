// Package server implements the connection acceptor: it listens on a
// TCP port, reads the credential table from stdin once at startup,
// and spawns one detached goroutine per accepted connection to run
// the framed request/response loop.
package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/parasource/branchfs/internal/crypto"
	"github.com/parasource/branchfs/internal/disk"
	"github.com/parasource/branchfs/internal/fsengine"
	"github.com/parasource/branchfs/internal/logging"
	"github.com/parasource/branchfs/internal/protocol"
	"github.com/parasource/branchfs/internal/session"
	"github.com/parasource/branchfs/internal/wire"
)

// Server bundles everything a connection handler needs: the FS
// engine, the session registry and a logging handle. There is no
// graceful shutdown: closing the listener is enough, since every
// in-flight connection runs to its own natural conclusion.
type Server struct {
	engine   *fsengine.Engine
	sessions *session.Registry
	log      *logging.Handler
	backlog  int
}

// New builds a Server around an already-open disk and a credential
// table read from stdin.
func New(d disk.Device, credentials map[string]string, backlog int, log *logging.Handler) (*Server, error) {
	engine, err := fsengine.New(d, log)
	if err != nil {
		return nil, err
	}
	return &Server{
		engine:   engine,
		sessions: session.New(credentials),
		log:      log,
		backlog:  backlog,
	}, nil
}

// ReadCredentials parses "username password" pairs, one per line,
// until EOF or a blank line, the format the daemon reads from stdin
// at startup.
func ReadCredentials(r io.Reader) (map[string]string, error) {
	creds := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("server: malformed credential line %q", line)
		}
		creds[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return creds, nil
}

// Bind opens a TCP listener on port (0 for an OS-assigned port) and
// prints the assigned port to stdout in the form every client expects
// to scrape it in. Split from Serve so callers (and tests) can learn
// the bound address before the accept loop starts running.
func Bind(port int) (net.Listener, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	fmt.Printf("\n@@@ port %d\n", lis.Addr().(*net.TCPAddr).Port)
	return lis, nil
}

// Serve accepts connections on lis forever, each handled on its own
// goroutine, until the listener is closed.
func (s *Server) Serve(lis net.Listener) error {
	defer lis.Close()
	for {
		conn, err := lis.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

// Listen binds port and serves it; the common case for the daemon
// entrypoint, which has no use for the listener once bound.
func (s *Server) Listen(port int) error {
	lis, err := Bind(port)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// handle runs the framed request/response loop for one connection
// until a frame is malformed, decryption fails, or the peer closes
// the socket, at which point the connection is dropped with no
// further signal to the client, exactly as the wire protocol requires.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)

	for {
		username, size, err := wire.ReadRequestHeader(r)
		if err != nil {
			return
		}

		password, err := s.sessions.EnsureUser(username)
		if err != nil {
			return
		}

		if size > uint32(protocol.MaxDecryptedLen)*2 {
			// a ciphertext can never decrypt to fewer bytes than itself
			// shrunk by the AEAD overhead, so this bound rejects grossly
			// oversize frames before reading them off the wire at all.
			return
		}

		ciphertext, err := wire.ReadBody(r, size)
		if err != nil {
			return
		}

		plaintext, ok := crypto.Decrypt(password, ciphertext)
		if !ok {
			return
		}
		if len(plaintext) > protocol.MaxDecryptedLen {
			return
		}

		req, err := protocol.ParseRequest(plaintext)
		if err != nil {
			s.log.WithFields(map[string]interface{}{"user": username}).Debugf("malformed request: %v", err)
			return
		}

		respPlaintext, err := protocol.Dispatch(req, username, s.sessions, s.engine)
		if err != nil {
			s.log.WithFields(map[string]interface{}{"user": username, "verb": req.Verb}).Debugf("request failed: %v", err)
			return
		}

		respCiphertext, err := crypto.Encrypt(password, respPlaintext)
		if err != nil {
			return
		}

		header := wire.ResponseHeader(len(respCiphertext))
		if err := wire.WriteFrame(conn, header, respCiphertext); err != nil {
			return
		}
	}
}
