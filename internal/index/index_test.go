package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockbird/mockbird/internal/store"
	"github.com/mockbird/mockbird/pkg/project"
)

type fakeSource struct {
	mu        sync.Mutex
	projects  map[string]*project.Project
	endpoints map[string][]*project.Endpoint
	loads     atomic.Int64
	fail      atomic.Bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		projects:  make(map[string]*project.Project),
		endpoints: make(map[string][]*project.Endpoint),
	}
}

func (f *fakeSource) add(sub string, rules int) *project.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &project.Project{ID: uuid.New(), Subdomain: sub}
	f.projects[sub] = p
	for i := 0; i < rules; i++ {
		f.endpoints[sub] = append(f.endpoints[sub], &project.Endpoint{
			ID: uuid.New(), ProjectID: p.ID, Subdomain: sub,
		})
	}
	return p
}

func (f *fakeSource) ProjectBySubdomain(ctx context.Context, sub string) (*project.Project, error) {
	f.loads.Add(1)
	if f.fail.Load() {
		return nil, errors.New("db down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[sub]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeSource) EndpointsBySubdomain(ctx context.Context, sub string) ([]*project.Endpoint, error) {
	if f.fail.Load() {
		return nil, errors.New("db down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endpoints[sub], nil
}

func TestLookupCachesSnapshot(t *testing.T) {
	src := newFakeSource()
	src.add("acme", 2)
	ix := New(src)

	for i := 0; i < 5; i++ {
		snap, err := ix.Lookup(context.Background(), "acme")
		require.NoError(t, err)
		assert.Len(t, snap.Endpoints, 2)
	}
	assert.Equal(t, int64(1), src.loads.Load())
}

func TestLookupCaseInsensitive(t *testing.T) {
	src := newFakeSource()
	src.add("acme", 1)
	ix := New(src)

	_, err := ix.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	_, err = ix.Lookup(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, int64(1), src.loads.Load())
}

func TestLookupTenantNotFoundIsCached(t *testing.T) {
	src := newFakeSource()
	ix := New(src)

	for i := 0; i < 3; i++ {
		_, err := ix.Lookup(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrTenantNotFound)
	}
	assert.Equal(t, int64(1), src.loads.Load())
}

func TestLookupReloadsAfterTTL(t *testing.T) {
	src := newFakeSource()
	src.add("acme", 1)

	now := time.Now()
	var clockMu sync.Mutex
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}

	ix := New(src, WithTTL(time.Minute), withClock(clock))

	_, err := ix.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	_, err = ix.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(1), src.loads.Load())

	clockMu.Lock()
	now = now.Add(2 * time.Minute)
	clockMu.Unlock()

	_, err = ix.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(2), src.loads.Load())
}

func TestInvalidateForcesReload(t *testing.T) {
	src := newFakeSource()
	p := src.add("acme", 1)
	ix := New(src)

	snap, err := ix.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, snap.Endpoints, 1)

	src.mu.Lock()
	src.endpoints["acme"] = append(src.endpoints["acme"], &project.Endpoint{
		ID: uuid.New(), ProjectID: p.ID, Subdomain: "acme",
	})
	src.mu.Unlock()

	// Still cached.
	snap, err = ix.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, snap.Endpoints, 1)

	ix.Invalidate(p.ID)

	snap, err = ix.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, snap.Endpoints, 2)
}

func TestInvalidateUnknownProjectIsNoop(t *testing.T) {
	src := newFakeSource()
	src.add("acme", 1)
	ix := New(src)

	ix.Invalidate(uuid.New())

	_, err := ix.Lookup(context.Background(), "acme")
	assert.NoError(t, err)
}

func TestLookupServesStaleOnReloadFailure(t *testing.T) {
	src := newFakeSource()
	src.add("acme", 1)

	now := time.Now()
	var clockMu sync.Mutex
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}

	ix := New(src, WithTTL(time.Minute), withClock(clock))

	snap, err := ix.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, snap.Endpoints, 1)

	clockMu.Lock()
	now = now.Add(2 * time.Minute)
	clockMu.Unlock()
	src.fail.Store(true)

	snap, err = ix.Lookup(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, snap.Endpoints, 1)
}

func TestLookupErrorWithoutSnapshot(t *testing.T) {
	src := newFakeSource()
	src.fail.Store(true)
	ix := New(src)

	_, err := ix.Lookup(context.Background(), "acme")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTenantNotFound)
}

func TestConcurrentLookupsSingleLoad(t *testing.T) {
	src := newFakeSource()
	src.add("acme", 1)
	ix := New(src)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ix.Lookup(context.Background(), "acme")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), src.loads.Load())
}
