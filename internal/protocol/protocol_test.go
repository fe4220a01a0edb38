package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasource/branchfs/internal/common"
	"github.com/parasource/branchfs/internal/fsengine"
)

func TestParseRequest_Session(t *testing.T) {
	req, err := ParseRequest([]byte("FS_SESSION 0 1\x00"))
	require.NoError(t, err)
	assert.Equal(t, VerbSession, req.Verb)
	assert.Equal(t, uint64(0), req.Session)
	assert.Equal(t, uint64(1), req.Sequence)
}

func TestParseRequest_SessionRejectsNonZeroSession(t *testing.T) {
	_, err := ParseRequest([]byte("FS_SESSION 7 1\x00"))
	assert.Error(t, err)
}

func TestParseRequest_Create(t *testing.T) {
	req, err := ParseRequest([]byte("FS_CREATE 3 9 /dir/f f\x00"))
	require.NoError(t, err)
	assert.Equal(t, fsengine.VerbCreate, req.Op.Verb)
	assert.Equal(t, "/dir/f", req.Op.Path)
	assert.Equal(t, byte('f'), req.Op.CreateType)
}

func TestParseRequest_Delete(t *testing.T) {
	req, err := ParseRequest([]byte("FS_DELETE 3 9 /dir/f\x00"))
	require.NoError(t, err)
	assert.Equal(t, fsengine.VerbDelete, req.Op.Verb)
	assert.Equal(t, "/dir/f", req.Op.Path)
}

func TestParseRequest_ReadBlock(t *testing.T) {
	req, err := ParseRequest([]byte("FS_READBLOCK 3 9 /dir/f 2\x00"))
	require.NoError(t, err)
	assert.Equal(t, fsengine.VerbRead, req.Op.Verb)
	assert.Equal(t, uint32(2), req.Op.Offset)
}

func TestParseRequest_WriteBlock(t *testing.T) {
	data := make([]byte, common.BlockSize)
	for i := range data {
		data[i] = 'Z'
	}
	plaintext := append([]byte("FS_WRITEBLOCK 3 9 /dir/f 0\x00"), data...)

	req, err := ParseRequest(plaintext)
	require.NoError(t, err)
	assert.Equal(t, fsengine.VerbWrite, req.Op.Verb)
	assert.Equal(t, data, req.Op.Data)
}

func TestParseRequest_WriteBlockRejectsWrongDataLength(t *testing.T) {
	plaintext := append([]byte("FS_WRITEBLOCK 3 9 /dir/f 0\x00"), []byte("short")...)
	_, err := ParseRequest(plaintext)
	assert.Error(t, err)
}

func TestParseRequest_RejectsUnknownVerb(t *testing.T) {
	_, err := ParseRequest([]byte("FS_BOGUS 3 9\x00"))
	assert.Error(t, err)
}

func TestParseRequest_RejectsMissingNUL(t *testing.T) {
	_, err := ParseRequest([]byte("FS_SESSION 0 1"))
	assert.Error(t, err)
}

func TestBuildResponse_ReadAppendsDataBlock(t *testing.T) {
	req := &Request{Verb: VerbReadBlock, Session: 3, Sequence: 9}
	data := make([]byte, common.BlockSize)
	data[0] = 'A'

	out := BuildResponse(req, fsengine.Result{Data: data})
	assert.Equal(t, []byte("3 9"), out[:3])
	assert.Equal(t, byte(0), out[3])
	assert.Equal(t, data, out[4:])
}

func TestBuildResponse_NonReadHasNoTrailingData(t *testing.T) {
	req := &Request{Verb: VerbCreate, Session: 3, Sequence: 9}
	out := BuildResponse(req, fsengine.Result{})
	assert.Equal(t, []byte("3 9\x00"), out)
}
