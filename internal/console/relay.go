package console

import (
	"context"
	"sync"

	"eggmanager/internal/domain"
	"eggmanager/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Relay opens console sessions against panel sockets.
type Relay struct {
	handshaker Handshaker
	dialer     Dialer
	cfg        Config
	log        *zap.Logger
	registry   *Registry
}

// NewRelay uses a gorilla dialer when dialer is nil.
func NewRelay(handshaker Handshaker, dialer Dialer, cfg Config, log *zap.Logger) *Relay {
	cfg = cfg.withDefaults()
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		handshaker: handshaker,
		dialer:     dialer,
		cfg:        cfg,
		log:        log.Named("console"),
		registry:   NewRegistry(),
	}
}

// Open starts a session for serverID. It runs until ctx is cancelled,
// Close is called, or the upstream ends it.
func (r *Relay) Open(ctx context.Context, cred domain.TenantCredential, serverID string) *Session {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	s := &Session{
		ID:         id,
		ServerID:   serverID,
		cred:       cred,
		handshaker: r.handshaker,
		dialer:     r.dialer,
		cfg:        r.cfg,
		log: r.log.With(
			zap.String("session", id),
			zap.String("server", serverID),
			zap.String("owner", cred.OwnerID),
		),
		events:   make(chan Event, 64),
		commands: make(chan string, 16),
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    StateRequesting,
		logs:     NewRing[string](r.cfg.LogBufferLines),
	}
	s.release = func() { r.registry.remove(id) }

	r.registry.add(s)
	go s.run(ctx)
	return s
}

func (r *Relay) Registry() *Registry { return r.registry }

// Registry tracks live sessions so shutdown can close them.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (g *Registry) add(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[s.ID] = s
	metrics.ConsoleSessionsActive.Inc()
}

func (g *Registry) remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[id]; ok {
		delete(g.sessions, id)
		metrics.ConsoleSessionsActive.Dec()
	}
}

func (g *Registry) Get(id string) (*Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	return s, ok
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// CloseAll closes every live session and waits for each to finish.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	live := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		live = append(live, s)
	}
	g.mu.Unlock()

	for _, s := range live {
		s.Close()
	}
}
