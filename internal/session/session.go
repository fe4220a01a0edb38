// Package session implements the session & auth registry: user ->
// password, user -> sessions, session -> last-sequence, and
// session-id issuance.
package session

import (
	"math"
	"sync"

	"github.com/parasource/branchfs/internal/ferrors"
)

// Registry holds every piece of process-wide session state. A single
// mutex guards sessionsOf, lastSeq and nextID together; the
// credentials map is populated once at startup and read thereafter
// without locking.
type Registry struct {
	passwordOf map[string]string // read-only after construction

	mu         sync.Mutex
	sessionsOf map[string]map[uint64]struct{}
	lastSeq    map[uint64]uint64
	nextID     uint64
	exhausted  bool
}

// New builds a registry from the username/password pairs read from
// stdin at startup.
func New(credentials map[string]string) *Registry {
	passwords := make(map[string]string, len(credentials))
	for u, p := range credentials {
		passwords[u] = p
	}
	return &Registry{
		passwordOf: passwords,
		sessionsOf: make(map[string]map[uint64]struct{}),
		lastSeq:    make(map[uint64]uint64),
	}
}

// EnsureUser looks up the pre-loaded password for user. A miss is
// silent to the network layer by design; the caller closes the
// connection without responding, giving an attacker no oracle.
func (r *Registry) EnsureUser(user string) (string, error) {
	pw, ok := r.passwordOf[user]
	if !ok {
		return "", ferrors.ErrUnknownUser
	}
	return pw, nil
}

// OpenSession atomically allocates the next session id, binds it to
// user, and records its starting sequence number. It fails once the id
// counter has saturated uint64; ids are never recycled, so saturation
// is permanent for the life of the process.
func (r *Registry) OpenSession(user string, seq uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.exhausted {
		return 0, ferrors.ErrSessionsExhausted
	}

	id := r.nextID
	if id == math.MaxUint64 {
		r.exhausted = true
	}
	r.nextID++

	if r.sessionsOf[user] == nil {
		r.sessionsOf[user] = make(map[uint64]struct{})
	}
	r.sessionsOf[user][id] = struct{}{}
	r.lastSeq[id] = seq

	return id, nil
}

// Validate succeeds iff session belongs to user and seq is strictly
// greater than the last sequence number seen for that session; on
// success it atomically records seq as the new last-sequence value.
// Validation and the update are one critical section, so two requests
// racing on the same session can never both pass.
func (r *Registry) Validate(user string, sessionID, seq uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, exists := r.lastSeq[sessionID]
	if !exists {
		return ferrors.ErrUnknownSession
	}
	if _, ok := r.sessionsOf[user][sessionID]; !ok {
		return ferrors.ErrSessionNotOwned
	}
	if seq <= last {
		return ferrors.ErrSequenceReplayed
	}
	r.lastSeq[sessionID] = seq
	return nil
}

// LastSeq reports the last sequence number recorded for sessionID, used
// by tests checking sequence-number monotonicity.
func (r *Registry) LastSeq(sessionID uint64) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.lastSeq[sessionID]
	return v, ok
}
