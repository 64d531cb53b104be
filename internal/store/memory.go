package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mockbird/mockbird/pkg/capture"
	"github.com/mockbird/mockbird/pkg/project"
)

// Memory is a thread-safe in-memory Store. It backs tests and local
// single-process runs where no database is configured.
type Memory struct {
	mu        sync.RWMutex
	projects  map[uuid.UUID]*project.Project
	endpoints map[uuid.UUID]*project.Endpoint
	captures  map[string]*capture.Capture
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		projects:  make(map[uuid.UUID]*project.Project),
		endpoints: make(map[uuid.UUID]*project.Endpoint),
		captures:  make(map[string]*capture.Capture),
	}
}

// PutProject stores or replaces a project. Test/seeding helper; live
// mutation belongs to the admin CRUD layer.
func (s *Memory) PutProject(p *project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

// PutEndpoint stores or replaces an endpoint rule.
func (s *Memory) PutEndpoint(e *project.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[e.ID] = e
}

// DeleteProject removes a project, its endpoints, and their captures.
func (s *Memory) DeleteProject(projectID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.projects, projectID)
	for id, e := range s.endpoints {
		if e.ProjectID == projectID {
			delete(s.endpoints, id)
		}
	}
	for id, c := range s.captures {
		if c.ProjectID == projectID {
			delete(s.captures, id)
		}
	}
}

// ProjectBySubdomain implements EndpointSource.
func (s *Memory) ProjectBySubdomain(ctx context.Context, subdomain string) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.projects {
		if strings.EqualFold(p.Subdomain, subdomain) {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

// EndpointsBySubdomain implements EndpointSource.
func (s *Memory) EndpointsBySubdomain(ctx context.Context, subdomain string) ([]*project.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*project.Endpoint
	for _, e := range s.endpoints {
		if strings.EqualFold(e.Subdomain, subdomain) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// IncrementRequestCount implements EndpointCounter.
func (s *Memory) IncrementRequestCount(ctx context.Context, endpointID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.endpoints[endpointID]
	if !ok {
		return ErrNotFound
	}
	e.RequestCount++
	return nil
}

// RequestCount returns the current request count for an endpoint, or
// zero when the endpoint is unknown. Reads take the store lock so they
// are safe against concurrent IncrementRequestCount calls.
func (s *Memory) RequestCount(endpointID uuid.UUID) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.endpoints[endpointID]
	if !ok {
		return 0
	}
	return e.RequestCount
}

// InsertCapture implements capture.Store.
func (s *Memory) InsertCapture(ctx context.Context, c *capture.Capture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures[c.ID] = c
	return nil
}

// ListCaptures implements CaptureStore.
func (s *Memory) ListCaptures(ctx context.Context, endpointID uuid.UUID, limit int, beforeID string) ([]*capture.Capture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*capture.Capture
	for _, c := range s.captures {
		if c.EndpointID != endpointID {
			continue
		}
		if beforeID != "" && c.ID >= beforeID {
			continue
		}
		result = append(result, c)
	}

	// ULIDs sort lexicographically, so string order is time order.
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetCapture implements CaptureStore.
func (s *Memory) GetCapture(ctx context.Context, id string) (*capture.Capture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.captures[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// DeleteCapture implements CaptureStore.
func (s *Memory) DeleteCapture(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.captures[id]; !ok {
		return ErrNotFound
	}
	delete(s.captures, id)
	return nil
}

// DeleteCapturesByEndpoint implements CaptureStore.
func (s *Memory) DeleteCapturesByEndpoint(ctx context.Context, endpointID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.captures {
		if c.EndpointID == endpointID {
			delete(s.captures, id)
		}
	}
	return nil
}

// DeleteCapturesByProject implements CaptureStore.
func (s *Memory) DeleteCapturesByProject(ctx context.Context, projectID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.captures {
		if c.ProjectID == projectID {
			delete(s.captures, id)
		}
	}
	return nil
}

// ProjectTraffic implements CaptureStore.
func (s *Memory) ProjectTraffic(ctx context.Context, projectID uuid.UUID) ([]*TrafficPoint, error) {
	return s.traffic(func(c *capture.Capture) bool { return c.ProjectID == projectID }), nil
}

// EndpointTraffic implements CaptureStore.
func (s *Memory) EndpointTraffic(ctx context.Context, endpointID uuid.UUID) ([]*TrafficPoint, error) {
	return s.traffic(func(c *capture.Capture) bool { return c.EndpointID == endpointID }), nil
}

func (s *Memory) traffic(match func(*capture.Capture) bool) []*TrafficPoint {
	s.mu.RLock()
	counts := make(map[time.Time]int64)
	for _, c := range s.captures {
		if match(c) {
			counts[dayStart(c.CreatedAt)]++
		}
	}
	s.mu.RUnlock()

	raw := make([]*TrafficPoint, 0, len(counts))
	for day, count := range counts {
		raw = append(raw, &TrafficPoint{Timestamp: day, Count: count})
	}
	return normalizeTraffic(raw, time.Now())
}
