package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	httpapi "wanderhall/walkd/internal/http"
	"wanderhall/walkd/internal/input"
	"wanderhall/walkd/internal/logging"
	"wanderhall/walkd/internal/physics"
	"wanderhall/walkd/internal/scene"
	"wanderhall/walkd/internal/simulation"
)

const sendBufferSize = 8

// Broker owns the walker sessions. Each websocket connection is one
// independent walker; the frame stepper is the only writer of body state, so
// connection goroutines never touch a body directly.
type Broker struct {
	logger          *logging.Logger
	scene           *scene.Scene
	integrator      *physics.Integrator
	gate            *input.Gate
	wsAuthenticator websocketAuthenticator

	upgrader        websocket.Upgrader
	tickRateHz      float64
	maxSessions     int
	maxPayloadBytes int64
	pingInterval    time.Duration
	resyncWindow    time.Duration
	resyncBurst     int

	started    time.Time
	startupErr error

	nextID atomic.Uint64

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// BrokerOption customises broker construction.
type BrokerOption func(*Broker)

// WithLogger overrides the default structured logger.
func WithLogger(logger *logging.Logger) BrokerOption {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMaxSessions bounds concurrent walker sessions. Zero disables the limit.
func WithMaxSessions(limit int) BrokerOption {
	return func(b *Broker) {
		if limit >= 0 {
			b.maxSessions = limit
		}
	}
}

// WithMaxPayloadBytes limits the size of inbound websocket frames.
func WithMaxPayloadBytes(limit int64) BrokerOption {
	return func(b *Broker) {
		if limit > 0 {
			b.maxPayloadBytes = limit
		}
	}
}

// WithPingInterval adjusts the keepalive cadence for walker sessions.
func WithPingInterval(interval time.Duration) BrokerOption {
	return func(b *Broker) {
		if interval > 0 {
			b.pingInterval = interval
		}
	}
}

// WithAllowedOrigins restricts websocket upgrades to the listed origins. An
// empty list keeps the permissive default for local development.
func WithAllowedOrigins(origins []string) BrokerOption {
	return func(b *Broker) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, origin := range origins {
			if trimmed := strings.ToLower(strings.TrimSpace(origin)); trimmed != "" {
				allowed[trimmed] = struct{}{}
			}
		}
		b.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			if _, ok := allowed[strings.ToLower(origin)]; ok {
				return true
			}
			if parsed, err := url.Parse(origin); err == nil {
				if _, ok := allowed[strings.ToLower(parsed.Host)]; ok {
					return true
				}
			}
			return false
		}
	}
}

// WithTickRate advertises the simulation frame rate in welcome snapshots.
func WithTickRate(hz float64) BrokerOption {
	return func(b *Broker) {
		if hz > 0 {
			b.tickRateHz = hz
		}
	}
}

// WithResyncPolicy bounds how often a session may request a full resync.
func WithResyncPolicy(window time.Duration, burst int) BrokerOption {
	return func(b *Broker) {
		if window > 0 && burst > 0 {
			b.resyncWindow = window
			b.resyncBurst = burst
		}
	}
}

// NewBroker constructs a session broker for the supplied scene and integrator.
func NewBroker(walkScene *scene.Scene, integrator *physics.Integrator, gate *input.Gate, opts ...BrokerOption) *Broker {
	b := &Broker{
		logger:          logging.L(),
		scene:           walkScene,
		integrator:      integrator,
		gate:            gate,
		maxSessions:     0,
		maxPayloadBytes: 1 << 16,
		pingInterval:    30 * time.Second,
		resyncWindow:    10 * time.Second,
		resyncBurst:     2,
		started:         time.Now(),
		sessions:        make(map[*session]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if walkScene == nil {
		b.startupErr = errors.New("broker started without a scene")
	}
	if integrator == nil && b.startupErr == nil {
		b.startupErr = errors.New("broker started without an integrator")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Sessions returns the live sessions for the frame stepper.
func (b *Broker) Sessions() []simulation.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]simulation.Session, 0, len(b.sessions))
	for sess := range b.sessions {
		out = append(out, sess)
	}
	return out
}

// SnapshotSessionCounts reports total and pointer-locked session counts.
func (b *Broker) SnapshotSessionCounts() (sessions, engaged int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sess := range b.sessions {
		sessions++
		if sess.Engaged() {
			engaged++
		}
	}
	return sessions, engaged
}

// StartupError reports construction problems for the readiness endpoint.
func (b *Broker) StartupError() error {
	if b == nil {
		return errors.New("broker is nil")
	}
	return b.startupErr
}

// Uptime reports how long the broker has been running.
func (b *Broker) Uptime() time.Duration {
	if b == nil {
		return 0
	}
	return time.Since(b.started)
}

// GateMetrics exposes the input gate drop counters for diagnostics endpoints.
func (b *Broker) GateMetrics() map[string]input.DropCounters {
	if b == nil {
		return nil
	}
	return b.gate.Metrics()
}

func (b *Broker) register(sess *session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maxSessions > 0 && len(b.sessions) >= b.maxSessions {
		return fmt.Errorf("session limit reached: %d", b.maxSessions)
	}
	b.sessions[sess] = struct{}{}
	return nil
}

func (b *Broker) unregister(sess *session) {
	b.mu.Lock()
	_, present := b.sessions[sess]
	delete(b.sessions, sess)
	b.mu.Unlock()
	if present {
		b.gate.Forget(sess.id)
	}
}

// ServeWS upgrades an HTTP request into a walker session and runs its pumps.
func (b *Broker) ServeWS(w http.ResponseWriter, r *http.Request) {
	if b == nil {
		http.Error(w, "broker unavailable", http.StatusServiceUnavailable)
		return
	}
	if b.startupErr != nil {
		http.Error(w, "service not ready", http.StatusServiceUnavailable)
		return
	}

	walkerID := ""
	if b.wsAuthenticator != nil {
		id, err := b.wsAuthenticator.Authenticate(r)
		if err != nil {
			b.logger.Warn("websocket authentication failed",
				logging.String("remote_addr", r.RemoteAddr), logging.Error(err))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		walkerID = id
	}
	if walkerID == "" {
		walkerID = fmt.Sprintf("walker-%d", b.nextID.Add(1))
	}

	//1.- Negotiate the pose stream encoding before the upgrade succeeds.
	compress := strings.EqualFold(r.URL.Query().Get("encoding"), "snappy")

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed",
			logging.String("remote_addr", r.RemoteAddr), logging.Error(err))
		return
	}
	conn.SetReadLimit(b.maxPayloadBytes)

	sess := newSession(walkerID, conn, b, compress)
	if err := b.register(sess); err != nil {
		b.logger.Warn("rejecting session", logging.String("session_id", walkerID), logging.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session limit reached"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	b.logger.Info("session connected",
		logging.String("session_id", walkerID),
		logging.String("remote_addr", r.RemoteAddr),
		logging.Bool("snappy", compress))

	//2.- The welcome snapshot carries the scene so the renderer can build
	// meshes before the first pose arrives.
	sess.enqueueWelcome()

	go sess.writePump(b.pingInterval)
	go sess.readPump()
}

// session is one connected walker. It implements simulation.Session; all body
// mutation happens on the simulation goroutine via SetBody.
type session struct {
	id       string
	conn     *websocket.Conn
	broker   *Broker
	send     chan []byte
	compress bool
	resync   *httpapi.SlidingWindowLimiter

	tracker *input.Tracker

	mu           sync.RWMutex
	closed       bool
	engaged      bool
	orientation  mgl64.Quat
	body         physics.Body
	droppedPoses uint64
}

func newSession(id string, conn *websocket.Conn, b *Broker, compress bool) *session {
	return &session{
		id:          id,
		conn:        conn,
		broker:      b,
		send:        make(chan []byte, sendBufferSize),
		compress:    compress,
		resync:      httpapi.NewSlidingWindowLimiter(b.resyncWindow, b.resyncBurst, nil),
		tracker:     input.NewTracker(),
		orientation: mgl64.QuatIdent(),
		body:        physics.NewBody(b.scene.Spawn),
	}
}

// Engaged reports whether the session currently holds pointer lock.
func (s *session) Engaged() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engaged
}

// Controls returns the logical flag snapshot for the current frame.
func (s *session) Controls() input.State {
	return s.tracker.Snapshot()
}

func (s *session) readPump() {
	defer func() {
		s.broker.unregister(s)
		//1.- Mark the session closed under the mutex so a concurrent frame
		// step cannot enqueue into the channel being closed.
		s.mu.Lock()
		s.closed = true
		close(s.send)
		s.mu.Unlock()
		_ = s.conn.Close()
		s.broker.logger.Info("session disconnected", logging.String("session_id", s.id))
	}()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.broker.logger.Warn("session read failed",
					logging.String("session_id", s.id), logging.Error(err))
			}
			return
		}
		if err := s.broker.processClientMessage(s, raw); err != nil {
			s.broker.logger.Debug("dropping client message",
				logging.String("session_id", s.id), logging.Error(err))
		}
	}
}

func (s *session) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	messageType := websocket.TextMessage
	if s.compress {
		messageType = websocket.BinaryMessage
	}
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(messageType, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

// enqueue hands an encoded payload to the writer pump. A full buffer drops the
// payload rather than stalling the simulation goroutine; pose frames are
// superseded by the next tick anyway.
func (s *session) enqueue(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		s.droppedPoses++
		return false
	}
}
