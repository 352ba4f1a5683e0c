// Package realtime owns the single duplex connection of a session. It
// authenticates with the stored token, fans pushed events out to
// subscribers keyed by chat id, and exposes fire-and-forget emits.
//
// Connection failures never escape the manager: they are logged, reflected
// in the status machine, and retried a bounded number of times.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/nightvibe/nightvibe/internal/metrics"
	"github.com/nightvibe/nightvibe/internal/status"
	"go.uber.org/zap"
)

const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = time.Second

	writeTimeout = 5 * time.Second
)

// TokenSource supplies the auth token; "" means logged out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithRetry overrides the reconnect policy.
func WithRetry(max int, delay time.Duration) Option {
	return func(m *Manager) {
		m.maxRetries = max
		m.retryDelay = delay
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// Manager is the realtime channel of one session.
type Manager struct {
	url        string
	tokens     TokenSource
	machine    *status.Machine
	bus        *bus.Bus
	logger     *zap.Logger
	dialer     *websocket.Dialer
	maxRetries int
	retryDelay time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	gen      uint64
	stop     chan struct{}
	socketID string
	global   Handlers
	subs     map[string]map[uint64]Handlers
	nextSub  uint64
	joined   map[string]struct{}

	writeMu sync.Mutex
}

// New creates a disconnected manager for the websocket endpoint at url.
func New(url string, tokens TokenSource, machine *status.Machine, b *bus.Bus, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		url:        url,
		tokens:     tokens,
		machine:    machine,
		bus:        b,
		logger:     logger,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		stop:       make(chan struct{}),
		subs:       make(map[string]map[uint64]Handlers),
		joined:     make(map[string]struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current connection state.
func (m *Manager) State() status.State {
	return m.machine.Current()
}

// Connected reports whether frames can currently be sent.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// SocketID returns the id the server assigned to this connection, if any.
func (m *Manager) SocketID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.socketID
}

// Connect opens the channel using the stored token. Without a token it is
// a no-op. Calling it while connecting, connected or reconnecting does not
// open a second connection.
func (m *Manager) Connect(ctx context.Context) {
	token, err := m.token(ctx)
	if err != nil || token == "" {
		return
	}
	if !m.machine.TransitionIf(status.Disconnected, status.Connecting) {
		m.logger.Debug("realtime connect skipped", zap.String("state", string(m.machine.Current())))
		return
	}

	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	conn, err := m.dial(ctx, token)
	if err != nil {
		m.logger.Warn("realtime connect failed", zap.Error(err))
		m.machine.TransitionIf(status.Connecting, status.Disconnected)
		return
	}
	m.attach(conn, gen, token)
}

// Disconnect closes the connection, stops any pending reconnect and
// clears every subscription. Safe to call when not connected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.gen++
	close(m.stop)
	m.stop = make(chan struct{})
	m.socketID = ""
	m.global = Handlers{}
	m.subs = make(map[string]map[uint64]Handlers)
	m.joined = make(map[string]struct{})
	m.mu.Unlock()

	if conn != nil {
		m.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
		m.writeMu.Unlock()
		_ = conn.Close()
		metrics.SetRealtimeConnected(false)
		m.logger.Info("realtime disconnected")
	}
	if m.machine.Current() != status.Disconnected {
		_ = m.machine.Transition(status.Disconnected)
	}
}

// On merges h into the global handler set; non-nil callbacks replace
// earlier ones of the same name.
func (m *Manager) On(h Handlers) {
	m.mu.Lock()
	m.global = m.global.merge(h)
	m.mu.Unlock()
}

// Off clears the global handler set without closing the connection.
func (m *Manager) Off() {
	m.mu.Lock()
	m.global = Handlers{}
	m.mu.Unlock()
}

// Subscribe registers h for events of chatID ("" receives every chat).
// Presence events reach every subscriber. The returned function removes
// the registration.
func (m *Manager) Subscribe(chatID string, h Handlers) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	set, ok := m.subs[chatID]
	if !ok {
		set = make(map[uint64]Handlers)
		m.subs[chatID] = set
	}
	set[id] = h
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if set, ok := m.subs[chatID]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(m.subs, chatID)
				}
			}
		})
	}
}

// JoinChat asks the server to route chatID's events to this connection.
// The chat is re-joined automatically after a reconnect.
func (m *Manager) JoinChat(chatID string) bool {
	m.mu.Lock()
	m.joined[chatID] = struct{}{}
	m.mu.Unlock()
	return m.emit(EventChatJoin, map[string]string{"chatId": chatID})
}

// LeaveChat stops routing chatID's events to this connection.
func (m *Manager) LeaveChat(chatID string) bool {
	m.mu.Lock()
	delete(m.joined, chatID)
	m.mu.Unlock()
	return m.emit(EventChatLeave, map[string]string{"chatId": chatID})
}

// SendTyping emits typing:start or typing:stop for chatID.
func (m *Manager) SendTyping(chatID string, isTyping bool) bool {
	event := EventTypingStop
	if isTyping {
		event = EventTypingStart
	}
	return m.emit(event, map[string]string{"chatId": chatID})
}

// MarkDelivered acknowledges receipt of a pushed message.
func (m *Manager) MarkDelivered(messageID string) bool {
	return m.emit(EventMessageDelivered, map[string]string{"messageId": messageID})
}

// MarkMessagesAsRead tells the other participants userID has read chatID.
func (m *Manager) MarkMessagesAsRead(chatID, userID string) bool {
	return m.emit(EventMessageRead, map[string]string{"chatId": chatID, "userId": userID})
}

func (m *Manager) token(ctx context.Context) (string, error) {
	if m.tokens == nil {
		return "", nil
	}
	token, err := m.tokens.Token(ctx)
	if err != nil {
		m.logger.Warn("realtime: cannot read token", zap.Error(err))
		return "", err
	}
	if token == "" {
		m.logger.Debug("realtime: no token, connect deferred until login")
	}
	return token, nil
}

func (m *Manager) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := m.dialer.DialContext(ctx, m.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// attach installs conn as the live connection if no Disconnect happened
// since gen was read, then authenticates, re-joins chats and starts reading.
func (m *Manager) attach(conn *websocket.Conn, gen uint64, token string) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		_ = conn.Close()
		return false
	}
	m.gen++
	gen = m.gen
	m.conn = conn
	chats := make([]string, 0, len(m.joined))
	for id := range m.joined {
		chats = append(chats, id)
	}
	m.mu.Unlock()

	_ = m.machine.Transition(status.Connected)
	metrics.SetRealtimeConnected(true)
	m.logger.Info("realtime connected", zap.String("url", m.url))

	m.emit(EventAuth, map[string]string{"token": token})
	for _, id := range chats {
		m.emit(EventChatJoin, map[string]string{"chatId": id})
	}
	go m.readLoop(conn, gen)
	return true
}

func (m *Manager) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.dropped(conn, gen, err)
			return
		}
		m.dispatch(data)
	}
}

// dropped handles an unexpected end of the connection identified by gen.
func (m *Manager) dropped(conn *websocket.Conn, gen uint64, cause error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.socketID = ""
	stop := m.stop
	m.mu.Unlock()

	_ = conn.Close()
	metrics.SetRealtimeConnected(false)
	m.logger.Warn("realtime connection lost", zap.Error(cause))
	if !m.machine.TransitionIf(status.Connected, status.Reconnecting) {
		return
	}
	go m.reconnect(gen, stop)
}

func (m *Manager) reconnect(gen uint64, stop <-chan struct{}) {
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		select {
		case <-stop:
			return
		case <-time.After(m.retryDelay):
		}
		if !m.machine.TransitionIf(status.Reconnecting, status.Connecting) {
			return
		}

		token, _ := m.token(context.Background())
		if token == "" {
			m.machine.TransitionIf(status.Connecting, status.Disconnected)
			metrics.IncReconnect("no_token")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.dialer.HandshakeTimeout+time.Second)
		conn, err := m.dial(ctx, token)
		cancel()
		if err != nil {
			metrics.IncReconnect("failed")
			m.logger.Warn("realtime reconnect failed",
				zap.Int("attempt", attempt),
				zap.Int("max", m.maxRetries),
				zap.Error(err),
			)
			if !m.machine.TransitionIf(status.Connecting, status.Reconnecting) {
				return
			}
			continue
		}
		if m.attach(conn, gen, token) {
			metrics.IncReconnect("ok")
		}
		return
	}

	if m.machine.TransitionIf(status.Reconnecting, status.Disconnected) {
		m.logger.Error("realtime reconnect gave up", zap.Int("attempts", m.maxRetries))
		m.bus.Emit(bus.KindRealtimeGaveUp, m.maxRetries)
	}
}

// emit sends one frame. It reports false when not connected or when the
// write fails; it never returns an error.
func (m *Manager) emit(event string, data any) bool {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return false
	}

	raw, err := json.Marshal(data)
	if err != nil {
		m.logger.Error("realtime: encode frame", zap.String("event", event), zap.Error(err))
		return false
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(Frame{Event: event, Data: raw}); err != nil {
		m.logger.Debug("realtime: write failed", zap.String("event", event), zap.Error(err))
		return false
	}
	metrics.IncRealtimeEvent("out", event)
	return true
}
