package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	gwerrors "github.com/jrsteele09/slack-mcp-gateway/internal/errors"
	"github.com/jrsteele09/slack-mcp-gateway/internal/metrics"
)

// Termination reasons reported to hooks and metrics.
const (
	ReasonDeleted      = "deleted"
	ReasonIdle         = "idle"
	ReasonBadHandshake = "bad_handshake"
	ReasonShutdown     = "shutdown"
)

// Registry owns the live transports of this process. Session ids are never
// reused: every id handed out is remembered for the life of the registry.
type Registry struct {
	mcpServer   *server.MCPServer
	transports  map[string]*Transport
	issued      map[string]struct{}
	lock        sync.RWMutex
	newID       func() string
	nowTime     func() time.Time
	onTerminate func(id, reason string)
	metrics     *metrics.Metrics
	closed      bool
}

type RegistryOption func(*Registry)

// WithClock sets the clock used for idle tracking.
func WithClock(nowFunc func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.nowTime = nowFunc
	}
}

// WithIDGenerator replaces the random UUID source.
func WithIDGenerator(newID func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = newID
	}
}

// WithOnTerminate registers a hook called after a session is terminated.
func WithOnTerminate(fn func(id, reason string)) RegistryOption {
	return func(r *Registry) {
		r.onTerminate = fn
	}
}

func WithMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

func NewRegistry(mcpServer *server.MCPServer, opts ...RegistryOption) *Registry {
	r := &Registry{
		mcpServer:  mcpServer,
		transports: make(map[string]*Transport),
		issued:     make(map[string]struct{}),
		newID:      func() string { return uuid.New().String() },
		nowTime:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create mints a fresh session id and registers a transport for it with both
// the MCP server and the registry. On error nothing stays registered. After
// CloseAll it fails with ErrSessionClosed.
func (r *Registry) Create(ctx context.Context) (*Transport, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return nil, fmt.Errorf("[Registry Create] registry closed: %w", gwerrors.ErrSessionClosed)
	}

	var id string
	for {
		id = r.newID()
		if _, used := r.issued[id]; !used {
			break
		}
	}
	r.issued[id] = struct{}{}

	t := newTransport(id, r.mcpServer, r.nowTime)
	if err := r.mcpServer.RegisterSession(ctx, t); err != nil {
		return nil, fmt.Errorf("[Registry Create] register session: %w", err)
	}
	r.transports[id] = t
	r.metrics.SessionOpened()
	log.Debug().Str("session_id", id).Msg("session created")
	return t, nil
}

func (r *Registry) Get(id string) (*Transport, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.transports[id]
	return t, ok
}

// Lookup is Get for callers that want an error: an absent or terminated id
// wraps ErrUnknownSession.
func (r *Registry) Lookup(id string) (*Transport, error) {
	if id == "" {
		return nil, fmt.Errorf("[Registry Lookup] no session id: %w", gwerrors.ErrUnknownSession)
	}
	t, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("[Registry Lookup] session %q: %w", id, gwerrors.ErrUnknownSession)
	}
	return t, nil
}

func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.transports)
}

// Terminate removes and closes the session. Unknown ids are ignored.
func (r *Registry) Terminate(ctx context.Context, id string) {
	r.TerminateWithReason(ctx, id, ReasonDeleted)
}

// TerminateWithReason is Terminate with the reason passed to the hook.
func (r *Registry) TerminateWithReason(ctx context.Context, id, reason string) {
	r.lock.Lock()
	t, ok := r.transports[id]
	delete(r.transports, id)
	r.lock.Unlock()
	if !ok {
		return
	}
	r.closeTransport(ctx, t, reason)
}

// Sweep terminates sessions unused for longer than idle that have no call in
// flight and no open notification stream. It returns how many were removed.
func (r *Registry) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := r.nowTime().Add(-idle)

	r.lock.Lock()
	var expired []*Transport
	for id, t := range r.transports {
		if t.idle() && t.LastUsed().Before(cutoff) {
			expired = append(expired, t)
			delete(r.transports, id)
		}
	}
	r.lock.Unlock()

	for _, t := range expired {
		r.closeTransport(ctx, t, ReasonIdle)
	}
	if len(expired) > 0 {
		log.Info().Int("evicted", len(expired)).Dur("idle", idle).Msg("idle sessions evicted")
	}
	return len(expired)
}

// RunSweeper sweeps every interval until ctx is cancelled. A non-positive
// idle disables eviction.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) error {
	if idle <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(ctx, idle)
		}
	}
}

// CloseAll terminates every session and stops the registry accepting new ones.
func (r *Registry) CloseAll(ctx context.Context) {
	r.lock.Lock()
	r.closed = true
	all := make([]*Transport, 0, len(r.transports))
	for id, t := range r.transports {
		all = append(all, t)
		delete(r.transports, id)
	}
	r.lock.Unlock()

	for _, t := range all {
		r.closeTransport(ctx, t, ReasonShutdown)
	}
}

func (r *Registry) closeTransport(ctx context.Context, t *Transport, reason string) {
	t.close(ctx)
	r.metrics.SessionClosed(reason)
	log.Debug().Str("session_id", t.id).Str("reason", reason).Msg("session terminated")
	if r.onTerminate != nil {
		r.onTerminate(t.id, reason)
	}
}
