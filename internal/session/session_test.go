package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasource/branchfs/internal/ferrors"
)

func TestRegistry_EnsureUser(t *testing.T) {
	r := New(map[string]string{"alice": "secret"})

	pw, err := r.EnsureUser("alice")
	require.NoError(t, err)
	assert.Equal(t, "secret", pw)

	_, err = r.EnsureUser("mallory")
	assert.ErrorIs(t, err, ferrors.ErrUnknownUser)
}

func TestRegistry_OpenSessionAndValidate(t *testing.T) {
	r := New(map[string]string{"alice": "secret"})

	id, err := r.OpenSession("alice", 1)
	require.NoError(t, err)

	last, ok := r.LastSeq(id)
	require.True(t, ok)
	assert.Equal(t, uint64(1), last)

	require.NoError(t, r.Validate("alice", id, 2))
	last, _ = r.LastSeq(id)
	assert.Equal(t, uint64(2), last)
}

func TestRegistry_ValidateRejectsReplayedSequence(t *testing.T) {
	r := New(map[string]string{"alice": "secret"})
	id, err := r.OpenSession("alice", 5)
	require.NoError(t, err)

	require.NoError(t, r.Validate("alice", id, 6))

	// replaying sequence 6 verbatim must fail
	assert.ErrorIs(t, r.Validate("alice", id, 6), ferrors.ErrSequenceReplayed)
	// a lower sequence must also fail
	assert.ErrorIs(t, r.Validate("alice", id, 4), ferrors.ErrSequenceReplayed)
}

func TestRegistry_ValidateRejectsWrongOwner(t *testing.T) {
	r := New(map[string]string{"alice": "a", "bob": "b"})
	id, err := r.OpenSession("alice", 1)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Validate("bob", id, 2), ferrors.ErrSessionNotOwned)
}

func TestRegistry_ValidateRejectsUnknownSession(t *testing.T) {
	r := New(map[string]string{"alice": "a"})
	assert.ErrorIs(t, r.Validate("alice", 999, 1), ferrors.ErrUnknownSession)
}

func TestRegistry_SessionIDsNeverRecycled(t *testing.T) {
	r := New(map[string]string{"alice": "a"})

	first, err := r.OpenSession("alice", 1)
	require.NoError(t, err)
	second, err := r.OpenSession("alice", 1)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
