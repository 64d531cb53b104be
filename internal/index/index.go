// Package index caches the mock rules for each subdomain so the hot
// serving path never waits on the database. Each subdomain maps to an
// immutable snapshot that is atomically swapped on reload; lookups are
// lock-free once a snapshot is cached.
package index

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mockbird/mockbird/internal/store"
	"github.com/mockbird/mockbird/pkg/logging"
	"github.com/mockbird/mockbird/pkg/project"
)

// ErrTenantNotFound is returned when no project owns the subdomain.
var ErrTenantNotFound = errors.New("tenant not found")

// DefaultTTL bounds how stale a cached snapshot may get before the next
// lookup reloads it. Admin-side writes that cannot wait for expiry call
// Invalidate instead.
const DefaultTTL = 30 * time.Second

// Snapshot is an immutable view of one subdomain's tenant and rules.
// A nil Project marks a cached not-found so unregistered subdomains do
// not hammer the database.
type Snapshot struct {
	Project   *project.Project
	Endpoints []*project.Endpoint
	loadedAt  time.Time
}

// Index caches per-subdomain snapshots in front of an EndpointSource.
type Index struct {
	source store.EndpointSource
	ttl    time.Duration
	log    *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	subdomain map[uuid.UUID]string
}

type entry struct {
	reload sync.Mutex
	snap   atomic.Pointer[Snapshot]
}

// Option configures an Index.
type Option func(*Index)

// WithTTL overrides the snapshot freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(ix *Index) { ix.ttl = ttl }
}

// WithLogger attaches a logger for reload failures.
func WithLogger(log *slog.Logger) Option {
	return func(ix *Index) { ix.log = log }
}

func withClock(now func() time.Time) Option {
	return func(ix *Index) { ix.now = now }
}

// New creates an Index over the given source.
func New(source store.EndpointSource, opts ...Option) *Index {
	ix := &Index{
		source:    source,
		ttl:       DefaultTTL,
		log:       logging.Nop(),
		now:       time.Now,
		entries:   make(map[string]*entry),
		subdomain: make(map[uuid.UUID]string),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Lookup returns the snapshot for a subdomain, reloading from the
// source when the cached one has expired. Concurrent lookups for the
// same expired subdomain trigger a single reload; the rest reuse its
// result.
func (ix *Index) Lookup(ctx context.Context, subdomain string) (*Snapshot, error) {
	subdomain = strings.ToLower(subdomain)
	e := ix.entry(subdomain)

	if snap := e.snap.Load(); snap != nil && ix.fresh(snap) {
		return snap.result()
	}

	e.reload.Lock()
	defer e.reload.Unlock()

	// Another lookup may have reloaded while we waited.
	if snap := e.snap.Load(); snap != nil && ix.fresh(snap) {
		return snap.result()
	}

	snap, err := ix.load(ctx, subdomain)
	if err != nil {
		// Serve the stale snapshot rather than failing the request
		// when the database is briefly unreachable.
		if stale := e.snap.Load(); stale != nil {
			ix.log.Warn("index reload failed, serving stale snapshot",
				"subdomain", subdomain, "error", err)
			return stale.result()
		}
		return nil, err
	}

	e.snap.Store(snap)
	if snap.Project != nil {
		ix.mu.Lock()
		ix.subdomain[snap.Project.ID] = subdomain
		ix.mu.Unlock()
	}
	return snap.result()
}

// Invalidate drops the cached snapshot for a project's subdomain. The
// next lookup reloads from the source. Unknown projects are a no-op.
func (ix *Index) Invalidate(projectID uuid.UUID) {
	ix.mu.Lock()
	sub, ok := ix.subdomain[projectID]
	if ok {
		delete(ix.subdomain, projectID)
		delete(ix.entries, sub)
	}
	ix.mu.Unlock()
}

// InvalidateSubdomain drops the cached snapshot for a subdomain.
func (ix *Index) InvalidateSubdomain(subdomain string) {
	subdomain = strings.ToLower(subdomain)
	ix.mu.Lock()
	delete(ix.entries, subdomain)
	ix.mu.Unlock()
}

func (ix *Index) entry(subdomain string) *entry {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	e, ok := ix.entries[subdomain]
	if !ok {
		e = &entry{}
		ix.entries[subdomain] = e
	}
	return e
}

func (ix *Index) fresh(snap *Snapshot) bool {
	return ix.now().Sub(snap.loadedAt) < ix.ttl
}

func (ix *Index) load(ctx context.Context, subdomain string) (*Snapshot, error) {
	p, err := ix.source.ProjectBySubdomain(ctx, subdomain)
	if errors.Is(err, store.ErrNotFound) {
		return &Snapshot{loadedAt: ix.now()}, nil
	}
	if err != nil {
		return nil, err
	}

	endpoints, err := ix.source.EndpointsBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Project: p, Endpoints: endpoints, loadedAt: ix.now()}, nil
}

func (s *Snapshot) result() (*Snapshot, error) {
	if s.Project == nil {
		return nil, ErrTenantNotFound
	}
	return s, nil
}
