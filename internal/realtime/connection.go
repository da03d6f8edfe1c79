// Package realtime maintains the single shared event channel to the
// platform and the per-room chat state layered on top of it.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mathivegas/unistream-client/internal/config"
	"github.com/mathivegas/unistream-client/internal/domain"
	"github.com/mathivegas/unistream-client/pkg/log"
)

// ErrNotConnected means an emit was attempted while the transport is down.
var ErrNotConnected = errors.New("realtime channel not connected")

// Socket is the subset of a websocket connection the pumps need.
// *websocket.Conn satisfies it.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer opens a Socket to the realtime endpoint.
type Dialer func(ctx context.Context, url string) (Socket, error)

// GorillaDialer dials with the default gorilla dialer.
func GorillaDialer(ctx context.Context, url string) (Socket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Handler consumes one event's payload.
type Handler func(payload json.RawMessage)

// Connection is one websocket session with read/write pumps, keepalive pings
// and bounded reconnection. Handlers registered with On survive reconnects.
type Connection struct {
	cfg    config.RealtimeConfig
	dial   Dialer
	logger zerolog.Logger

	mu        sync.Mutex
	sock      Socket
	send      chan []byte
	connected bool
	closed    bool
	handlers  map[string][]Handler
	onConnect []func()

	done    chan struct{}
	runDone chan struct{}
}

func newConnection(cfg config.RealtimeConfig, dial Dialer) *Connection {
	return &Connection{
		cfg:      cfg,
		dial:     dial,
		logger:   log.L().With().Str(log.FieldComponent, "realtime").Logger(),
		handlers: make(map[string][]Handler),
		done:     make(chan struct{}),
		runDone:  make(chan struct{}),
	}
}

// run dials and keeps the session alive until Close. Reconnection is
// bounded: after the configured attempts the connection gives up and
// stays down; runDone lets the manager notice and replace it.
func (c *Connection) run(ctx context.Context) {
	defer close(c.runDone)
	attempts := 0
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		sock, err := c.dial(ctx, c.cfg.URL)
		if err != nil {
			attempts++
			if attempts > c.cfg.ReconnectAttempts {
				c.logger.Error().Err(err).Int("attempts", attempts-1).Msg("giving up on realtime channel")
				return
			}
			c.logger.Warn().Err(err).Int("attempt", attempts).Msg("realtime dial failed, retrying")
			select {
			case <-time.After(c.cfg.ReconnectDelay):
			case <-c.done:
				return
			}
			continue
		}
		attempts = 0

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			sock.Close()
			return
		}
		c.sock = sock
		c.send = make(chan []byte, 256)
		c.connected = true
		callbacks := make([]func(), len(c.onConnect))
		copy(callbacks, c.onConnect)
		c.mu.Unlock()

		c.logger.Info().Str("url", c.cfg.URL).Msg("realtime channel connected")
		for _, fn := range callbacks {
			fn()
		}

		writeDone := make(chan struct{})
		go c.writePump(sock, writeDone)
		c.readPump(sock)

		c.mu.Lock()
		c.connected = false
		close(c.send)
		c.mu.Unlock()
		<-writeDone
		sock.Close()

		c.mu.Lock()
		stopping := c.closed
		c.mu.Unlock()
		if stopping {
			return
		}
		c.logger.Warn().Msg("realtime channel dropped, reconnecting")
	}
}

func (c *Connection) readPump(sock Socket) {
	sock.SetReadLimit(c.cfg.MaxMessageSize)
	sock.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	sock.SetPongHandler(func(string) error {
		sock.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("realtime read failed")
			}
			return
		}
		c.dispatch(message)
	}
}

func (c *Connection) writePump(sock Socket, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	c.mu.Lock()
	send := c.send
	c.mu.Unlock()

	for {
		select {
		case message, ok := <-send:
			sock.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sock.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			sock.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) dispatch(message []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Warn().Err(err).Msg("dropping malformed realtime frame")
		return
	}

	c.mu.Lock()
	handlers := make([]Handler, len(c.handlers[env.Event]))
	copy(handlers, c.handlers[env.Event])
	c.mu.Unlock()

	for _, h := range handlers {
		h(env.Payload)
	}
}

// On registers a handler for an event. Registration is permanent for the
// connection's lifetime.
func (c *Connection) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnConnect registers a callback invoked after every successful dial,
// including reconnects. Used to re-announce room membership.
func (c *Connection) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// Connected reports whether the transport is currently up.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Emit sends one event. Returns ErrNotConnected while the transport is down;
// a full outbound queue drops the frame rather than blocking.
func (c *Connection) Emit(event string, payload interface{}) error {
	env, err := domain.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn().Str("event", event).Msg("outbound queue full, dropping frame")
		return nil
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sock := c.sock
	c.mu.Unlock()

	close(c.done)
	if sock != nil {
		sock.Close()
	}
}
