package console

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"eggmanager/internal/domain"
	"eggmanager/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handshaker fetches the socket URL and token for one server's console.
type Handshaker interface {
	ConsoleHandshake(ctx context.Context, cred domain.TenantCredential, serverID string) (domain.ConsoleHandshake, error)
}

// Dialer opens the upstream socket. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type Config struct {
	HandshakeTimeout time.Duration
	HungNotice       time.Duration
	AuthTimeout      time.Duration
	DialAttempts     int
	DialBackoff      time.Duration
	LogBufferLines   int
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		HungNotice:       15 * time.Second,
		AuthTimeout:      10 * time.Second,
		DialAttempts:     3,
		DialBackoff:      500 * time.Millisecond,
		LogBufferLines:   500,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.HungNotice <= 0 {
		c.HungNotice = d.HungNotice
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = d.AuthTimeout
	}
	if c.DialAttempts < 1 {
		c.DialAttempts = d.DialAttempts
	}
	if c.DialBackoff <= 0 {
		c.DialBackoff = d.DialBackoff
	}
	if c.LogBufferLines < 1 {
		c.LogBufferLines = d.LogBufferLines
	}
	return c
}

type EventType string

const (
	EventTypeLog    EventType = "log"
	EventTypeStatus EventType = "status"
	EventTypeState  EventType = "state"
	EventTypeNotice EventType = "notice"
	EventTypeClosed EventType = "closed"
)

// Event is what a session reports to its client view. For status events
// State carries the server's power state; otherwise it is the session state.
type Event struct {
	Type    EventType `json:"type"`
	Line    string    `json:"line,omitempty"`
	State   string    `json:"state,omitempty"`
	Reason  Reason    `json:"reason,omitempty"`
	Message string    `json:"message,omitempty"`
}

const (
	msgHandshakeFailed = "failed to get console connection details"
	msgHung            = "console is taking longer than expected to connect"
	msgTokenRefreshed  = "console token refreshed"

	writeWait = 10 * time.Second
)

var (
	ErrAuthFailed     = errors.New("console authentication failed")
	ErrConnectionLost = errors.New("console connection lost")
	ErrSessionClosed  = errors.New("console session closed")
	ErrCommandBacklog = errors.New("console command queue is full")
)

// Session relays one server console to exactly one client view. Read
// Events until it is closed; an undrained session stalls its upstream reads.
type Session struct {
	ID       string
	ServerID string

	cred       domain.TenantCredential
	handshaker Handshaker
	dialer     Dialer
	cfg        Config
	log        *zap.Logger

	events   chan Event
	commands chan string
	cancel   context.CancelFunc
	done     chan struct{}
	release  func()

	mu      sync.Mutex
	closing bool
	state   State
	reason Reason
	err    error
	logs   *Ring[string]
}

func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason is empty until the session has ended.
func (s *Session) Reason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Logs returns the buffered console lines, oldest first.
func (s *Session) Logs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logs.Snapshot()
}

// Send queues a console command. Commands sent before the session is
// streaming are delivered once it is. Once Close is called or the session
// has ended Send returns ErrSessionClosed; commands still queued at that
// point are dropped.
func (s *Session) Send(cmd string) error {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || s.state.Terminal() {
		return ErrSessionClosed
	}
	select {
	case s.commands <- cmd:
		return nil
	default:
		return ErrCommandBacklog
	}
}

// Close tears the session down and waits for it to finish.
func (s *Session) Close() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()
	<-s.done
}

func (s *Session) appendLog(line string) {
	s.mu.Lock()
	s.logs.Push(line)
	s.mu.Unlock()
}

type handshakeResult struct {
	hs      domain.ConsoleHandshake
	err     error
	refresh bool
}

type dialResult struct {
	conn *websocket.Conn
	err  error
}

type inbound struct {
	data []byte
	err  error
}

// runner holds the state owned by the run goroutine. It is the only
// writer to conn.
type runner struct {
	s   *Session
	ctx context.Context

	conn       *websocket.Conn
	token      string
	refreshing bool

	handshakes chan handshakeResult
	dials      chan dialResult
	frames     chan inbound
	commands   <-chan string

	hung  *time.Timer
	hungC <-chan time.Time
	auth  *time.Timer
	authC <-chan time.Time
}

func (s *Session) run(ctx context.Context) {
	r := &runner{
		s:          s,
		ctx:        ctx,
		handshakes: make(chan handshakeResult),
		dials:      make(chan dialResult),
	}

	defer close(s.done)
	defer close(s.events)
	defer s.release()
	defer s.cancel()
	defer r.finish()
	defer r.dropQueued()

	r.hung = time.NewTimer(s.cfg.HungNotice)
	r.hungC = r.hung.C
	r.requestHandshake(false)

	for !s.State().Terminal() {
		select {
		case <-ctx.Done():
			r.fire(closedNormally, "console closed", nil)
		case <-r.hungC:
			r.hungC = nil
			r.emit(Event{Type: EventTypeNotice, Message: msgHung})
		case <-r.authC:
			r.authC = nil
			r.fire(authRejected, "console authentication timed out", ErrAuthFailed)
		case res := <-r.handshakes:
			r.onHandshake(res)
		case res := <-r.dials:
			r.onDial(res)
		case in := <-r.frames:
			if in.err != nil {
				r.onReadError(in.err)
				continue
			}
			r.onFrame(in.data)
		case cmd := <-r.commands:
			if err := r.write(EventSendCommand, cmd); err != nil {
				r.lost(err)
				continue
			}
			r.pushLine("> " + cmd)
		}
	}
}

// fire applies a trigger and reports the resulting state to the client.
func (r *runner) fire(t trigger, message string, cause error) {
	s := r.s
	s.mu.Lock()
	from := s.state
	next, err := transition(from, t)
	if err != nil {
		s.mu.Unlock()
		s.log.Error("console transition rejected", zap.Error(err))
		return
	}
	s.state = next
	if next.Terminal() {
		s.reason = reasonFor(from, t)
		s.err = cause
	}
	reason := s.reason
	s.mu.Unlock()

	if !next.Terminal() {
		if next != from {
			s.log.Debug("console state", zap.Stringer("from", from), zap.Stringer("to", next))
			r.emit(Event{Type: EventTypeState, State: next.String()})
		}
		return
	}

	if cause != nil {
		s.log.Warn("console session failed", zap.String("reason", string(reason)), zap.String("message", message), zap.Error(cause))
	} else {
		s.log.Info("console session closed", zap.String("reason", string(reason)), zap.String("message", message))
	}
	metrics.ConsoleSessionsEnded.WithLabelValues(string(reason)).Inc()
	r.emit(Event{Type: EventTypeClosed, State: next.String(), Reason: reason, Message: message})
}

func (r *runner) emit(ev Event) {
	select {
	case r.s.events <- ev:
	case <-r.ctx.Done():
		select {
		case r.s.events <- ev:
		default:
		}
	}
}

func (r *runner) pushLine(line string) {
	r.s.appendLog(line)
	r.emit(Event{Type: EventTypeLog, Line: line})
}

func (r *runner) requestHandshake(refresh bool) {
	go func() {
		ctx, cancel := context.WithTimeout(r.ctx, r.s.cfg.HandshakeTimeout)
		defer cancel()
		hs, err := r.s.handshaker.ConsoleHandshake(ctx, r.s.cred, r.s.ServerID)
		select {
		case r.handshakes <- handshakeResult{hs: hs, err: err, refresh: refresh}:
		case <-r.ctx.Done():
		}
	}()
}

func (r *runner) onHandshake(res handshakeResult) {
	if res.refresh {
		r.refreshing = false
		if res.err != nil {
			r.fire(tokenExpired, "console token refresh failed: "+handshakeMessage(res.err),
				fmt.Errorf("%w: %v", domain.ErrSessionExpired, res.err))
			return
		}
		r.token = res.hs.Token
		if err := r.write(EventAuth, r.token); err != nil {
			r.lost(err)
			return
		}
		r.fire(tokenRefreshed, "", nil)
		r.emit(Event{Type: EventTypeNotice, Message: msgTokenRefreshed})
		return
	}

	if res.err != nil {
		r.fire(handshakeRejected, handshakeMessage(res.err), fmt.Errorf("console handshake: %w", res.err))
		return
	}
	r.token = res.hs.Token
	r.fire(handshakeReceived, "", nil)
	go r.dial(res.hs.SocketURL)
}

// handshakeMessage keeps the panel's own rejection text when there is one.
func handshakeMessage(err error) string {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Error()
	}
	return msgHandshakeFailed
}

func (r *runner) dial(socketURL string) {
	header := http.Header{}
	header.Set("Origin", strings.TrimRight(r.s.cred.BaseURL, "/"))

	var lastErr error
	attempts := r.s.cfg.DialAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, _, err := r.s.dialer.DialContext(r.ctx, socketURL, header)
		if err == nil {
			select {
			case r.dials <- dialResult{conn: conn}:
			case <-r.ctx.Done():
				conn.Close()
			}
			return
		}
		lastErr = err
		r.s.log.Warn("console dial failed", zap.Int("attempt", attempt), zap.Int("of", attempts), zap.Error(err))
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(r.s.cfg.DialBackoff * time.Duration(attempt)):
		case <-r.ctx.Done():
			return
		}
	}

	select {
	case r.dials <- dialResult{err: lastErr}:
	case <-r.ctx.Done():
	}
}

func (r *runner) onDial(res dialResult) {
	if res.err != nil {
		r.fire(socketUnreachable, "could not connect to console socket: "+res.err.Error(),
			fmt.Errorf("%w: %v", ErrConnectionLost, res.err))
		return
	}
	r.conn = res.conn
	r.fire(socketOpened, "", nil)

	r.frames = make(chan inbound)
	go read(r.ctx, r.conn, r.frames)

	if err := r.write(EventAuth, r.token); err != nil {
		r.lost(err)
		return
	}
	r.auth = time.NewTimer(r.s.cfg.AuthTimeout)
	r.authC = r.auth.C
}

func read(ctx context.Context, conn *websocket.Conn, out chan<- inbound) {
	for {
		_, data, err := conn.ReadMessage()
		select {
		case out <- inbound{data: data, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (r *runner) onReadError(err error) {
	if r.s.State() == StateAuthenticating {
		r.fire(connectionLost, "console socket closed before authentication", fmt.Errorf("%w: %v", ErrAuthFailed, err))
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		r.fire(closedNormally, "console closed by panel", nil)
		return
	}
	r.lost(err)
}

func (r *runner) lost(err error) {
	r.fire(connectionLost, "console connection lost: "+err.Error(), fmt.Errorf("%w: %v", ErrConnectionLost, err))
}

func (r *runner) onFrame(data []byte) {
	f, err := ParseFrame(data)
	if err != nil {
		r.s.log.Warn("malformed console frame",
			zap.Error(fmt.Errorf("%w: %v", domain.ErrProtocolViolation, err)),
			zap.ByteString("raw", data))
		if r.s.State() == StateStreaming {
			r.pushLine(string(data))
		}
		return
	}

	switch r.s.State() {
	case StateAuthenticating:
		r.onAuthFrame(f)
	case StateStreaming:
		r.onStreamFrame(f)
	}
}

func (r *runner) onAuthFrame(f Frame) {
	switch f.Event {
	case EventAuthSuccess:
		r.auth.Stop()
		r.authC = nil
		r.hung.Stop()
		r.hungC = nil
		r.fire(authAccepted, "", nil)
		if err := r.write(EventSendLogs, nil); err != nil {
			r.lost(err)
			return
		}
		r.commands = r.s.commands
	case EventJWTError:
		detail, _ := f.StringArg(0)
		r.fire(authRejected, withDetail("console authentication rejected", detail), ErrAuthFailed)
	case EventTokenExpired:
		r.fire(tokenExpired, "console token expired", domain.ErrSessionExpired)
	default:
		r.s.log.Debug("ignoring frame before auth", zap.String("event", f.Event))
	}
}

func (r *runner) onStreamFrame(f Frame) {
	switch f.Event {
	case EventConsoleOutput:
		payload, _ := f.StringArg(0)
		for _, line := range splitLines(payload) {
			r.pushLine(line)
		}
	case EventStatus:
		state, _ := f.StringArg(0)
		r.emit(Event{Type: EventTypeStatus, State: state})
	case EventTokenExpiring:
		if !r.refreshing {
			r.refreshing = true
			r.requestHandshake(true)
		}
	case EventTokenExpired:
		r.fire(tokenExpired, "console token expired", domain.ErrSessionExpired)
	case EventJWTError:
		detail, _ := f.StringArg(0)
		r.fire(tokenExpired, withDetail("console token rejected", detail), domain.ErrSessionExpired)
	default:
		r.s.log.Debug("ignoring console frame", zap.String("event", f.Event))
	}
}

func (r *runner) write(event string, args ...any) error {
	data, err := EncodeFrame(event, args...)
	if err != nil {
		return err
	}
	_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.conn.WriteMessage(websocket.TextMessage, data)
}

// dropQueued discards commands accepted before the session ended. Send
// refuses new ones once the state is terminal.
func (r *runner) dropQueued() {
	for {
		select {
		case cmd := <-r.s.commands:
			r.s.log.Debug("dropping queued console command", zap.String("command", cmd))
		default:
			return
		}
	}
}

func (r *runner) finish() {
	r.hung.Stop()
	if r.auth != nil {
		r.auth.Stop()
	}
	if r.conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = r.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	r.conn.Close()
}

func splitLines(payload string) []string {
	if payload == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(payload, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func withDetail(msg, detail string) string {
	if detail == "" {
		return msg
	}
	return msg + ": " + detail
}
