package server

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasource/branchfs/internal/common"
	"github.com/parasource/branchfs/internal/crypto"
	"github.com/parasource/branchfs/internal/logging"
	"github.com/parasource/branchfs/internal/wire"
)

// memDisk is an in-memory disk.Device for exercising the daemon
// end-to-end without touching the filesystem.
type memDisk struct {
	blocks [][]byte
}

func newMemDisk(size uint32) *memDisk {
	d := &memDisk{blocks: make([][]byte, size)}
	for i := range d.blocks {
		d.blocks[i] = make([]byte, common.BlockSize)
	}
	return d
}

func (d *memDisk) ReadBlock(n uint32, buf []byte) error { copy(buf, d.blocks[n]); return nil }
func (d *memDisk) WriteBlock(n uint32, buf []byte) error { copy(d.blocks[n], buf); return nil }
func (d *memDisk) Size() uint32                          { return uint32(len(d.blocks)) }
func (d *memDisk) Close() error                           { return nil }

// testClient speaks the framed, encrypted wire protocol over a real
// TCP connection, the way a byte-compatible client would.
type testClient struct {
	conn     net.Conn
	r        *bufio.Reader
	username string
	password string
}

func dial(t *testing.T, addr net.Addr, username, password string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	return &testClient{conn: conn, r: bufio.NewReader(conn), username: username, password: password}
}

func (c *testClient) send(plaintext []byte) ([]byte, error) {
	ciphertext, err := crypto.Encrypt(c.password, plaintext)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteFrame(c.conn, wire.RequestHeader(c.username, len(ciphertext)), ciphertext); err != nil {
		return nil, err
	}

	size, err := wire.ReadResponseHeader(c.r)
	if err != nil {
		return nil, err
	}
	respCiphertext, err := wire.ReadBody(c.r, size)
	if err != nil {
		return nil, err
	}
	respPlaintext, ok := crypto.Decrypt(c.password, respCiphertext)
	if !ok {
		return nil, errDecrypt
	}
	return respPlaintext, nil
}

var errDecrypt = assertErr("decrypt failed")

type assertErr string

func (e assertErr) Error() string { return string(e) }

func startTestServer(t *testing.T) net.Addr {
	t.Helper()
	srv, err := New(newMemDisk(256), map[string]string{"alice": "alice-secret", "bob": "bob-secret"}, 16, logging.New(logging.LevelError))
	require.NoError(t, err)

	lis, err := Bind(0)
	require.NoError(t, err)

	go srv.Serve(lis)
	t.Cleanup(func() { lis.Close() })

	return lis.Addr()
}

func TestServer_SessionCreateWriteReadRoundTrip(t *testing.T) {
	addr := startTestServer(t)
	c := dial(t, addr, "alice", "alice-secret")

	// a registry's id counter starts at zero, so the first session
	// ever opened against a fresh server gets session id 0.
	resp, err := c.send([]byte("FS_SESSION 0 1\x00"))
	require.NoError(t, err)
	assert.Equal(t, "0 1\x00", string(resp))

	resp, err = c.send([]byte("FS_CREATE 0 2 /dir d\x00"))
	require.NoError(t, err)
	assert.Equal(t, "0 2\x00", string(resp))

	resp, err = c.send([]byte("FS_CREATE 0 3 /dir/f f\x00"))
	require.NoError(t, err)
	assert.Equal(t, "0 3\x00", string(resp))

	data := make([]byte, common.BlockSize)
	for i := range data {
		data[i] = 'A'
	}
	resp, err = c.send(append([]byte("FS_WRITEBLOCK 0 4 /dir/f 0\x00"), data...))
	require.NoError(t, err)
	assert.Equal(t, "0 4\x00", string(resp))

	resp, err = c.send([]byte("FS_READBLOCK 0 5 /dir/f 0\x00"))
	require.NoError(t, err)
	assert.Equal(t, "0 5\x00", string(resp[:4]))
	assert.Equal(t, data, resp[4:])
}

func TestServer_WrongOwnerGetsNoResponse(t *testing.T) {
	addr := startTestServer(t)
	alice := dial(t, addr, "alice", "alice-secret")

	resp, err := alice.send([]byte("FS_SESSION 0 1\x00"))
	require.NoError(t, err)
	require.Equal(t, "0 1\x00", string(resp))
	_, err = alice.send([]byte("FS_CREATE 0 2 /dir d\x00"))
	require.NoError(t, err)

	bob := dial(t, addr, "bob", "bob-secret")
	resp, err = bob.send([]byte("FS_SESSION 0 1\x00"))
	require.NoError(t, err)
	require.Equal(t, "1 1\x00", string(resp))

	// bob has his own session id 1; attempting to touch alice's
	// directory must close the connection with no response.
	_, err = bob.send([]byte("FS_CREATE 1 2 /dir/g f\x00"))
	assert.Error(t, err)
}

func TestServer_ReplayedFrameGetsNoResponse(t *testing.T) {
	addr := startTestServer(t)
	c := dial(t, addr, "alice", "alice-secret")

	resp, err := c.send([]byte("FS_SESSION 0 1\x00"))
	require.NoError(t, err)
	require.Equal(t, "0 1\x00", string(resp))

	_, err = c.send([]byte("FS_CREATE 0 2 /dir d\x00"))
	require.NoError(t, err)

	// a fresh connection replaying the exact same session+sequence must
	// be rejected.
	c2 := dial(t, addr, "alice", "alice-secret")
	_, err = c2.send([]byte("FS_CREATE 0 2 /dir d\x00"))
	assert.Error(t, err)
}

func TestServer_UnknownUserGetsNoResponse(t *testing.T) {
	addr := startTestServer(t)
	c := dial(t, addr, "mallory", "whatever")
	_, err := c.send([]byte("FS_SESSION 0 1\x00"))
	assert.Error(t, err)
}
