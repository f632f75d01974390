package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event names exchanged with the backend.
const (
	EventJoinUser         = "join-user"
	EventNotification     = "notification"
	EventCrowdUpdate      = "crowd-update"
	EventCrowdUpdateCamel = "crowdUpdate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

var (
	ErrClosed         = errors.New("realtime channel closed")
	ErrNotConnected   = errors.New("realtime channel not connected")
	ErrSendBufferFull = errors.New("realtime send buffer full")
)

// Envelope is the JSON frame carried in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the raw data of one event.
type Handler = func(data json.RawMessage)

type handlerEntry struct {
	id uint64
	fn Handler
}

// Channel is the single long-lived websocket connection shared by every
// push-consuming store. Reconnection is handled here and nowhere else.
type Channel struct {
	url    string
	token  func() string
	dialer *websocket.Dialer
	logger *zap.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	mu       sync.RWMutex
	handlers map[string][]handlerEntry
	nextID   uint64
	joined   []byte
	conn     *websocket.Conn

	send      chan []byte
	connected atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
	stopped   chan struct{}
}

// Option customizes a Channel.
type Option func(*Channel)

// WithTokenSource sends the bearer token when dialing.
func WithTokenSource(fn func() string) Option {
	return func(c *Channel) { c.token = fn }
}

// WithBackoff bounds the reconnect delay.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Channel) {
		c.minBackoff = min
		c.maxBackoff = max
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

func New(url string, logger *zap.Logger, opts ...Option) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Channel{
		url:        url,
		token:      func() string { return "" },
		dialer:     websocket.DefaultDialer,
		logger:     logger,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		handlers:   make(map[string][]handlerEntry),
		send:       make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the connection in the background. It returns immediately; a
// backend that cannot be reached only means no pushes are delivered.
func (c *Channel) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.run(ctx)
	})
}

// On registers a handler for an event. The returned function unregisters it
// and is safe to call more than once.
func (c *Channel) On(event string, fn Handler) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], handlerEntry{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			entries := c.handlers[event]
			for i, e := range entries {
				if e.id == id {
					c.handlers[event] = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
			if len(c.handlers[event]) == 0 {
				delete(c.handlers, event)
			}
		})
	}
}

// Emit queues one event for the backend.
func (c *Channel) Emit(event string, payload any) error {
	frame, err := encode(event, payload)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// JoinUser asks the backend to deliver this user's private pushes to the
// connection. The request is replayed on every reconnect.
func (c *Channel) JoinUser(userID string) error {
	frame, err := encode(EventJoinUser, userID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = frame
	if !c.connected.Load() {
		// Sent by attach.
		return nil
	}
	return c.enqueue(frame)
}

// Reset forgets the joined room and drops the current connection so the
// transport reconnects without any user room. The channel stays usable.
func (c *Channel) Reset() error {
	c.mu.Lock()
	c.joined = nil
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Connected reports whether the transport is currently up.
func (c *Channel) Connected() bool {
	return c.connected.Load()
}

// Close stops reconnecting and closes the current connection.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			err = conn.Close()
		}
	})
	return err
}

// Done is closed once the reconnect loop has exited.
func (c *Channel) Done() <-chan struct{} {
	return c.stopped
}

func (c *Channel) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if !c.connected.Load() {
		return ErrNotConnected
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn("realtime send buffer full, dropping frame")
		return ErrSendBufferFull
	}
}

func encode(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.stopped)
	delay := c.minBackoff

	for {
		if c.isDone(ctx) {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("realtime connect failed",
				zap.String("url", c.url),
				zap.Duration("retry_in", delay),
				zap.Error(err))
			if !c.sleep(ctx, delay) {
				return
			}
			delay *= 2
			if delay > c.maxBackoff {
				delay = c.maxBackoff
			}
			continue
		}

		delay = c.minBackoff
		c.logger.Info("realtime connected", zap.String("url", c.url))
		c.serve(ctx, conn)
		c.logger.Info("realtime disconnected", zap.String("url", c.url))
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if token := c.token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	return conn, err
}

// serve runs the read loop on the calling goroutine and the write pump on
// another one until the connection fails.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) {
	c.attach(conn)

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(conn, stop)
	}()

	closeWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-closeWatch:
		}
	}()

	c.readPump(conn)

	c.mu.Lock()
	c.connected.Store(false)
	c.mu.Unlock()
	close(closeWatch)
	close(stop)
	_ = conn.Close()
	<-writerDone

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
}

// attach installs conn and replays the joined room. It holds c.mu while
// marking the channel connected so a concurrent JoinUser is either replayed
// here or enqueued by itself, never lost.
func (c *Channel) attach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	// Frames queued for a previous connection are stale.
	c.drain()
	if c.joined != nil {
		c.send <- c.joined
	}
	c.connected.Store(true)
}

func (c *Channel) drain() {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func (c *Channel) readPump(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("realtime read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		c.dispatch(message)
	}
}

func (c *Channel) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case frame := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn("realtime write failed", zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// dispatch delivers one frame to the handlers registered at arrival time, in
// registration order.
func (c *Channel) dispatch(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
		c.logger.Debug("realtime frame ignored", zap.ByteString("frame", message))
		return
	}

	c.mu.RLock()
	entries := append([]handlerEntry(nil), c.handlers[env.Event]...)
	c.mu.RUnlock()

	for _, e := range entries {
		c.invoke(env.Event, e.fn, env.Data)
	}
}

func (c *Channel) invoke(event string, fn Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("realtime handler panicked", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	fn(data)
}

func (c *Channel) isDone(ctx context.Context) bool {
	select {
	case <-c.done:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (c *Channel) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}
