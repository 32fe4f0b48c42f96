// Package registry keeps at most one live external database connection per
// tenant.
//
// Each tenant key moves through ABSENT -> OPENING -> OPEN -> ABSENT. The
// OPENING reservation is taken under the shard lock, so two concurrent
// opens for the same tenant see each other and exactly one of them dials.
// Dialing itself happens outside the lock: a slow external database never
// blocks other tenants that hash to the same shard.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/JosephRemingston/insightAI/internal/metrics"
)

const shardCount = 64

var (
	// ErrAlreadyOpen: the tenant already has a live (or opening) connection.
	ErrAlreadyOpen = errors.New("connection already open")
	// ErrNotOpen: the tenant has no live connection.
	ErrNotOpen = errors.New("connection not open")
)

// Conn is a live external database connection.
type Conn interface {
	// Host and Database describe the target for status reporting.
	Host() string
	Database() string
	Close(ctx context.Context) error
}

// Dialer opens external connections. ctx carries the connect deadline.
type Dialer interface {
	Dial(ctx context.Context, uri string) (Conn, error)
}

// Handle is the registry entry of an open connection.
type Handle struct {
	TenantID uuid.UUID
	Name     string
	Host     string
	Database string
	OpenedAt time.Time
	conn     Conn
}

// Conn returns the underlying connection.
func (h *Handle) Conn() Conn { return h.conn }

// Status is a point-in-time view of a tenant's entry.
type Status struct {
	Open     bool
	Name     string
	Host     string
	Database string
	OpenedAt time.Time
}

type state uint8

const (
	stateOpening state = iota + 1
	stateOpen
)

type entry struct {
	state  state
	handle *Handle
}

type shard struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

// Registry is safe for concurrent use.
type Registry struct {
	shards  [shardCount]shard
	dialer  Dialer
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Metrics
	open    atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics enables registry metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithClock replaces time.Now for OpenedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Registry. connectTimeout bounds every Dial; zero means the
// caller's context alone decides.
func New(dialer Dialer, connectTimeout time.Duration, opts ...Option) *Registry {
	r := &Registry{
		dialer:  dialer,
		timeout: connectTimeout,
		now:     time.Now,
		log:     slog.Default(),
	}

	for i := range r.shards {
		r.shards[i].entries = make(map[uuid.UUID]*entry)
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Registry) shardFor(tenantID uuid.UUID) *shard {
	return &r.shards[xxhash.Sum64(tenantID[:])%shardCount]
}

// Open dials uri and registers the connection for tenantID.
// ErrAlreadyOpen if the tenant has an open or opening entry. On dial
// failure the reservation is released and the dial error is returned wrapped.
func (r *Registry) Open(ctx context.Context, tenantID uuid.UUID, uri, name string) (*Handle, error) {
	const op = "registry.Open"

	sh := r.shardFor(tenantID)

	sh.mu.Lock()
	if _, exists := sh.entries[tenantID]; exists {
		sh.mu.Unlock()
		r.metrics.RegistryOp("open", "already_open")
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyOpen)
	}
	e := &entry{state: stateOpening}
	sh.entries[tenantID] = e
	sh.mu.Unlock()

	dialCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	conn, err := r.dialer.Dial(dialCtx, uri)
	if err != nil {
		sh.mu.Lock()
		delete(sh.entries, tenantID)
		sh.mu.Unlock()

		r.metrics.RegistryOp("open", metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	h := &Handle{
		TenantID: tenantID,
		Name:     name,
		Host:     conn.Host(),
		Database: conn.Database(),
		OpenedAt: r.now().UTC(),
		conn:     conn,
	}

	sh.mu.Lock()
	e.state = stateOpen
	e.handle = h
	sh.mu.Unlock()

	r.metrics.RegistryOp("open", metrics.ResultOK)
	r.metrics.SetOpenConnections(int(r.open.Add(1)))

	r.log.Debug("registry_open",
		slog.String("tenant_id", tenantID.String()),
		slog.String("host", h.Host),
		slog.String("database", h.Database),
	)

	return h, nil
}

// Close removes the tenant's connection and disconnects it. The entry is
// gone even if the disconnect itself fails; that error is returned wrapped.
func (r *Registry) Close(ctx context.Context, tenantID uuid.UUID) error {
	const op = "registry.Close"

	sh := r.shardFor(tenantID)

	sh.mu.Lock()
	e, ok := sh.entries[tenantID]
	if !ok || e.state != stateOpen {
		sh.mu.Unlock()
		r.metrics.RegistryOp("close", "not_open")
		return fmt.Errorf("%s: %w", op, ErrNotOpen)
	}
	delete(sh.entries, tenantID)
	sh.mu.Unlock()

	r.metrics.SetOpenConnections(int(r.open.Add(-1)))

	if err := e.handle.conn.Close(ctx); err != nil {
		r.metrics.RegistryOp("close", metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}

	r.metrics.RegistryOp("close", metrics.ResultOK)
	r.log.Debug("registry_close", slog.String("tenant_id", tenantID.String()))

	return nil
}

// Status reports the tenant's entry. An opening entry reports Open == false.
func (r *Registry) Status(tenantID uuid.UUID) Status {
	sh := r.shardFor(tenantID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[tenantID]
	if !ok || e.state != stateOpen {
		return Status{}
	}

	h := e.handle
	return Status{
		Open:     true,
		Name:     h.Name,
		Host:     h.Host,
		Database: h.Database,
		OpenedAt: h.OpenedAt,
	}
}

// IsOpen reports whether the tenant has an open or opening entry.
func (r *Registry) IsOpen(tenantID uuid.UUID) bool {
	sh := r.shardFor(tenantID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	_, ok := sh.entries[tenantID]
	return ok
}

// Len returns the number of open connections.
func (r *Registry) Len() int {
	return int(r.open.Load())
}

// CloseAll disconnects every open connection. Used at shutdown, after the
// HTTP server stopped accepting requests.
func (r *Registry) CloseAll(ctx context.Context) error {
	var errs []error

	for i := range r.shards {
		sh := &r.shards[i]

		sh.mu.Lock()
		var handles []*Handle
		for id, e := range sh.entries {
			if e.state != stateOpen {
				continue
			}
			handles = append(handles, e.handle)
			delete(sh.entries, id)
		}
		sh.mu.Unlock()

		for _, h := range handles {
			r.open.Add(-1)
			if err := h.conn.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tenant %s: %w", h.TenantID, err))
			}
		}
	}

	r.metrics.SetOpenConnections(r.Len())

	return errors.Join(errs...)
}
