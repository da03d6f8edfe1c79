package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathivegas/unistream-client/internal/config"
)

type fakeSocket struct {
	mu       sync.Mutex
	closed   bool
	closedCh chan struct{}
	writes   [][]byte
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{closedCh: make(chan struct{})}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	<-s.closedCh
	return 0, nil, errors.New("use of closed connection")
}

func (s *fakeSocket) WriteMessage(_ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("use of closed connection")
	}
	s.writes = append(s.writes, data)
	return nil
}

func (s *fakeSocket) SetReadLimit(int64)                {}
func (s *fakeSocket) SetReadDeadline(time.Time) error   { return nil }
func (s *fakeSocket) SetWriteDeadline(time.Time) error  { return nil }
func (s *fakeSocket) SetPongHandler(func(string) error) {}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closedCh)
	}
	return nil
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	sockets []*fakeSocket
}

func (d *fakeDialer) dial(context.Context, string) (Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	sock := newFakeSocket()
	d.sockets = append(d.sockets, sock)
	return sock, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func testRealtimeConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		URL:               "ws://test/ws",
		PingInterval:      time.Minute,
		PongWait:          time.Minute,
		WriteWait:         time.Second,
		MaxMessageSize:    4096,
		ReconnectAttempts: 1,
		ReconnectDelay:    time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestManagerSharesOneTransport(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManagerWithDialer(testRealtimeConfig(), dialer.dial)

	conn1, release1 := m.Acquire()
	conn2, release2 := m.Acquire()
	conn3, release3 := m.Acquire()

	assert.Same(t, conn1, conn2)
	assert.Same(t, conn2, conn3)
	assert.Equal(t, 3, m.Refs())
	waitFor(t, func() bool { return dialer.dialCount() == 1 })

	release1()
	release2()
	assert.Equal(t, 1, m.Refs())
	assert.False(t, dialer.sockets[0].isClosed())

	release3()
	assert.Equal(t, 0, m.Refs())
	waitFor(t, func() bool { return dialer.sockets[0].isClosed() })
	assert.Equal(t, 1, dialer.dialCount())
}

func TestManagerReleaseIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManagerWithDialer(testRealtimeConfig(), dialer.dial)

	_, release1 := m.Acquire()
	_, release2 := m.Acquire()

	release1()
	release1()
	release1()
	assert.Equal(t, 1, m.Refs())

	release2()
	assert.Equal(t, 0, m.Refs())
}

func TestManagerRecreatesTransportAfterFullRelease(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManagerWithDialer(testRealtimeConfig(), dialer.dial)

	conn1, release1 := m.Acquire()
	release1()
	waitFor(t, func() bool { return dialer.sockets[0].isClosed() })

	conn2, release2 := m.Acquire()
	defer release2()

	assert.NotSame(t, conn1, conn2)
	waitFor(t, func() bool { return dialer.dialCount() == 2 })
}

func TestManagerRedialsAfterTransportGaveUp(t *testing.T) {
	var mu sync.Mutex
	refuse := true
	dialer := &fakeDialer{}
	dial := func(ctx context.Context, url string) (Socket, error) {
		mu.Lock()
		refusing := refuse
		mu.Unlock()
		if refusing {
			return nil, errors.New("refused")
		}
		return dialer.dial(ctx, url)
	}
	m := NewManagerWithDialer(testRealtimeConfig(), dial)

	conn1, release1 := m.Acquire()
	defer release1()

	// Bounded reconnect exhausts while a holder remains; the run loop exits.
	<-conn1.runDone
	assert.False(t, conn1.Connected())

	mu.Lock()
	refuse = false
	mu.Unlock()

	conn2, release2 := m.Acquire()
	defer release2()

	assert.NotSame(t, conn1, conn2)
	waitFor(t, func() bool { return conn2.Connected() })
	assert.Equal(t, 1, m.Refs())
}

func TestEmitWhileDisconnected(t *testing.T) {
	c := newConnection(testRealtimeConfig(), func(context.Context, string) (Socket, error) {
		return nil, errors.New("refused")
	})
	err := c.Emit("send-message", map[string]string{"x": "y"})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectionInvokesOnConnect(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManagerWithDialer(testRealtimeConfig(), dialer.dial)

	conn, release := m.Acquire()
	defer release()

	var mu sync.Mutex
	connects := 0
	conn.OnConnect(func() {
		mu.Lock()
		connects++
		mu.Unlock()
	})

	// Registered before the dial completes or after; either way the next
	// successful connect fires it at most once per connect.
	waitFor(t, func() bool { return conn.Connected() })
}
