package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mathivegas/unistream-client/internal/config"
	"github.com/mathivegas/unistream-client/pkg/log"
)

// Manager hands out the shared realtime connection by reference count.
// However many consumers hold it, exactly one transport exists; the dial
// happens on the first acquire and the teardown on the last release. The
// run loop's lifetime belongs to the manager, never to any one acquirer.
type Manager struct {
	cfg    config.RealtimeConfig
	dial   Dialer
	logger zerolog.Logger

	mu     sync.Mutex
	conn   *Connection
	cancel context.CancelFunc
	refs   int
}

// NewManager creates a manager dialing with the default websocket dialer.
func NewManager(cfg config.RealtimeConfig) *Manager {
	return NewManagerWithDialer(cfg, GorillaDialer)
}

// NewManagerWithDialer creates a manager with a custom dialer.
func NewManagerWithDialer(cfg config.RealtimeConfig, dial Dialer) *Manager {
	return &Manager{
		cfg:    cfg,
		dial:   dial,
		logger: log.L().With().Str(log.FieldComponent, "realtime.manager").Logger(),
	}
}

// Acquire returns the shared connection and a release handle. Release is
// idempotent per acquire; the last release closes the transport. A
// connection whose run loop gave up on reconnecting is replaced by a
// fresh one instead of being handed out dead.
func (m *Manager) Acquire() (*Connection, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		select {
		case <-m.conn.runDone:
			m.conn.close()
			if m.cancel != nil {
				m.cancel()
			}
			m.conn = nil
			m.refs = 0
			m.logger.Warn().Msg("realtime transport gave up, redialing")
		default:
		}
	}
	if m.conn == nil {
		runCtx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.conn = newConnection(m.cfg, m.dial)
		go m.conn.run(runCtx)
		m.logger.Debug().Msg("realtime transport created")
	}
	m.refs++
	conn := m.conn

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.release(conn)
		})
	}
	return conn, release
}

func (m *Manager) release(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A stale release after the transport was torn down and recreated
	// must not touch the new one.
	if m.conn != conn {
		return
	}
	m.refs--
	if m.refs > 0 {
		return
	}
	m.conn.close()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.conn = nil
	m.refs = 0
	m.logger.Debug().Msg("realtime transport closed")
}

// Refs reports the current holder count.
func (m *Manager) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}
