package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRequestHeader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, RequestHeader("alice", 42), nil))

	user, size, err := ReadRequestHeader(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Equal(t, uint32(42), size)
}

func TestReadRequestHeader_RejectsMultipleSpaces(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("alice bob 42\x00")))
	_, _, err := ReadRequestHeader(r)
	assert.Error(t, err)
}

func TestReadRequestHeader_RejectsNonNumericSize(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("alice notanumber\x00")))
	_, _, err := ReadRequestHeader(r)
	assert.Error(t, err)
}

func TestReadBody_ReadsExactlyN(t *testing.T) {
	payload := []byte("0123456789")
	r := bufio.NewReader(bytes.NewReader(payload))

	got, err := ReadBody(r, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("01234"), got)
}

func TestReadBody_FailsOnShortRead(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("ab")))
	_, err := ReadBody(r, 10)
	assert.Error(t, err)
}

func TestResponseHeader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, ResponseHeader(7), []byte("payload")))

	size, err := ReadResponseHeader(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), size)
}
