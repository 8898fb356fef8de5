package ipc

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-fpvcar/internal/log"
	"github.com/teslashibe/go-fpvcar/pkg/handler"
	"github.com/teslashibe/go-fpvcar/pkg/motion"
	"github.com/teslashibe/go-fpvcar/pkg/protocol"
)

// socketPath returns a short path; sun_path is limited to ~108 bytes and
// t.TempDir can exceed it.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "fpv")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "c.sock")
}

type runningServer struct {
	*Server
	done chan error
}

func startServer(t *testing.T, h Handler, opts ...Option) *runningServer {
	t.Helper()
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	srv := NewServer(socketPath(t), h, opts...)
	require.NoError(t, srv.Prepare())

	rs := &runningServer{Server: srv, done: make(chan error, 1)}
	go func() { rs.done <- srv.Run() }()
	t.Cleanup(func() {
		srv.Stop()
		select {
		case <-rs.done:
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after Stop")
		}
	})
	return rs
}

func dial(t *testing.T, path string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := Dial(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func echo() Handler {
	return HandlerFunc(func(p []byte) []byte { return append([]byte("echo:"), p...) })
}

func TestServer_ResponseMatchesHandlerBytes(t *testing.T) {
	states := motion.NewManager()
	h := handler.New(states, nil, handler.WithLogger(log.Discard()))
	srv := startServer(t, h)
	c := dial(t, srv.Path())

	for _, payload := range []string{
		`{"action":"moveForward"}`,
		`{"action":"fly"}`,
		`not json`,
	} {
		// A fresh handler produces the reference bytes without touching the
		// server's state.
		want := handler.New(motion.NewManager(), nil, handler.WithLogger(log.Discard())).Handle([]byte(payload))
		got, err := c.Do(ctxT(t), []byte(payload))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), payload)
	}
}

func TestServer_ManyRequestsOneConnection(t *testing.T) {
	srv := startServer(t, echo())
	c := dial(t, srv.Path())

	for _, msg := range []string{"a", "bb", "", "dddd"} {
		got, err := c.Do(ctxT(t), []byte(msg))
		require.NoError(t, err)
		assert.Equal(t, "echo:"+msg, string(got))
	}
	assert.Equal(t, uint64(4), srv.Stats().Requests)
	assert.Equal(t, uint64(1), srv.Stats().Connections)
}

func TestServer_StatePersistsAcrossConnections(t *testing.T) {
	states := motion.NewManager()
	srv := startServer(t, handler.New(states, nil, handler.WithLogger(log.Discard())))

	c1 := dial(t, srv.Path())
	resp, err := c1.Send(ctxT(t), "stopAll")
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.NoError(t, c1.Close())

	c2 := dial(t, srv.Path())
	resp, err = c2.Send(ctxT(t), "turnLeft")
	require.NoError(t, err)
	assert.Equal(t, "turnLeft executed", resp.Message)
	assert.Equal(t, motion.TurningLeft, states.Get())

	require.Eventually(t, func() bool { return srv.Stats().Connections == 2 }, time.Second, time.Millisecond)
}

func TestServer_OversizeFrameDropsConnection(t *testing.T) {
	srv := startServer(t, echo())

	conn, err := net.Dial("unix", srv.Path())
	require.NoError(t, err)
	defer conn.Close()

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 2_000_000)
	_, err = conn.Write(hdr[:])
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(make([]byte, 16))
	assert.Zero(t, n, "no response expected")
	assert.ErrorIs(t, err, io.EOF)

	require.Eventually(t, func() bool { return srv.Stats().ProtocolErrors == 1 }, time.Second, time.Millisecond)

	// The server goes back to accepting.
	c := dial(t, srv.Path())
	got, err := c.Do(ctxT(t), []byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, "echo:ok", string(got))
}

func TestServer_HandlerPanicBecomesServerError(t *testing.T) {
	calls := 0
	srv := startServer(t, HandlerFunc(func(p []byte) []byte {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return []byte("fine")
	}))
	c := dial(t, srv.Path())

	raw, err := c.Do(ctxT(t), []byte("x"))
	require.NoError(t, err)
	resp, err := protocol.ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeServerError, resp.ErrorCode)
	assert.Equal(t, "boom", resp.Message)

	// Same connection keeps working.
	raw, err = c.Do(ctxT(t), []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, "fine", string(raw))
	assert.Equal(t, uint64(1), srv.Stats().HandlerFaults)
}

func TestServer_NilHandler(t *testing.T) {
	srv := startServer(t, nil)
	c := dial(t, srv.Path())

	resp, err := c.Send(ctxT(t), "moveForward")
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeNoHandler, resp.ErrorCode)
	assert.Equal(t, "No handler set", resp.Message)
}

func TestServer_StopUnblocksAcceptAndRemovesSocket(t *testing.T) {
	srv := NewServer(socketPath(t), echo(), WithLogger(log.Discard()))
	require.NoError(t, srv.Prepare())

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()
	time.Sleep(20 * time.Millisecond)

	srv.Stop()
	srv.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run still blocked in accept")
	}

	_, err := os.Stat(srv.Path())
	assert.True(t, errors.Is(err, fs.ErrNotExist), "socket file should be gone")
	assert.ErrorIs(t, srv.Prepare(), ErrServerClosed)
}

func TestServer_StopClosesActiveConnection(t *testing.T) {
	srv := NewServer(socketPath(t), echo(), WithLogger(log.Discard()))
	require.NoError(t, srv.Prepare())
	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	c := dial(t, srv.Path())
	_, err := c.Do(ctxT(t), []byte("hi"))
	require.NoError(t, err)
	require.True(t, srv.Stats().Connected)

	srv.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return while a client was connected")
	}
}

func TestServer_StopWithoutPrepare(t *testing.T) {
	path := socketPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	srv := NewServer(path, echo(), WithLogger(log.Discard()))
	srv.Stop()
	assert.ErrorIs(t, srv.Run(), ErrNotPrepared)

	_, err := os.Stat(path)
	assert.NoError(t, err, "Stop without Prepare must not touch the path")
}

func TestServer_PrepareReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)

	// Leave a socket file behind the way a crashed process would.
	stale, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	stale.SetUnlinkOnClose(false)
	stale.Close()
	_, err = os.Stat(path)
	require.NoError(t, err)

	srv := NewServer(path, echo(), WithLogger(log.Discard()))
	require.NoError(t, srv.Prepare())
	srv.Stop()
}

func TestServer_PrepareFailures(t *testing.T) {
	t.Run("not a socket", func(t *testing.T) {
		path := socketPath(t)
		require.NoError(t, os.WriteFile(path, []byte("keep me"), 0o644))

		srv := NewServer(path, echo(), WithLogger(log.Discard()))
		assert.ErrorIs(t, srv.Prepare(), ErrNotSocket)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "keep me", string(data))
	})

	t.Run("stop keeps a file it did not create", func(t *testing.T) {
		path := socketPath(t)
		require.NoError(t, os.WriteFile(path, []byte("keep me"), 0o644))

		srv := NewServer(path, echo(), WithLogger(log.Discard()))
		require.ErrorIs(t, srv.Prepare(), ErrNotSocket)
		srv.Stop()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "keep me", string(data))
	})

	t.Run("missing directory", func(t *testing.T) {
		path := filepath.Join(filepath.Dir(socketPath(t)), "nope", "c.sock")
		srv := NewServer(path, echo(), WithLogger(log.Discard()))
		err := srv.Prepare()
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
		assert.ErrorIs(t, srv.Run(), ErrNotPrepared)
	})

	t.Run("twice", func(t *testing.T) {
		srv := NewServer(socketPath(t), echo(), WithLogger(log.Discard()))
		require.NoError(t, srv.Prepare())
		defer srv.Stop()
		assert.ErrorIs(t, srv.Prepare(), ErrAlreadyPrepared)
	})
}

func TestServer_SocketMode(t *testing.T) {
	srv := startServer(t, echo(), WithSocketMode(0o600))
	fi, err := os.Stat(srv.Path())
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), fi.Mode().Perm())
}

func TestServer_LegacyCodec(t *testing.T) {
	srv := startServer(t, echo(), WithCodec(LegacyCodec{}))

	conn, err := net.Dial("unix", srv.Path())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"action":"stopAll"}`))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 128)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, `echo:{"action":"stopAll"}`, string(buf[:n]))
}
