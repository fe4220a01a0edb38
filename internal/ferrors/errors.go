// Package ferrors collects the sentinel errors produced by the
// allocator, lock manager, session registry and FS engine. The wire
// protocol never forwards these to a client; closing the connection is
// the only failure signal it ever gives. These errors exist purely for
// server-side logging and for tests to assert on.
package ferrors

import "golang.org/x/xerrors"

var (
	// allocator
	ErrNoSpace = xerrors.New("disk full: no free blocks")

	// lock manager
	ErrNoSuchLock = xerrors.New("no lock registered for inode")

	// session & auth
	ErrUnknownUser       = xerrors.New("unknown user")
	ErrUnknownSession    = xerrors.New("unknown session")
	ErrSessionNotOwned   = xerrors.New("session not owned by user")
	ErrSequenceReplayed  = xerrors.New("sequence number not strictly increasing")
	ErrSessionsExhausted = xerrors.New("session id space exhausted")
	ErrNonZeroSession    = xerrors.New("fs_session must carry session 0")

	// path syntax
	ErrBadPath     = xerrors.New("malformed path")
	ErrNameTooLong = xerrors.New("path component exceeds MAXFILENAME")
	ErrPathTooLong = xerrors.New("path exceeds MAXPATHNAME")

	// fs walk / ops
	ErrNotFound      = xerrors.New("name not found")
	ErrNotDir        = xerrors.New("not a directory")
	ErrNotFile       = xerrors.New("not a file")
	ErrNotOwner      = xerrors.New("not owner")
	ErrExists        = xerrors.New("name already exists")
	ErrNotEmpty      = xerrors.New("directory not empty")
	ErrOffsetRange   = xerrors.New("offset out of range")
	ErrBlockLimit    = xerrors.New("file-block limit reached")
	ErrBadCreateType = xerrors.New("create type must be 'f' or 'd'")

	// wire / protocol
	ErrMalformedHeader = xerrors.New("malformed request header")
	ErrUnknownVerb     = xerrors.New("unknown verb")
	ErrMalformedBody   = xerrors.New("malformed request body")
)

// Wrap annotates err with a call-site message while preserving it for
// xerrors.Is/As, used at tier boundaries (protocol -> session -> fs) so
// server logs show which layer rejected a request.
func Wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return xerrors.Errorf("%s: %w", msg, err)
}
