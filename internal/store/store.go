// Package store persists projects, endpoint rules, and captured
// requests. The serving engine reads projects and endpoints (via the
// endpoint index) and writes captures; all other mutation happens in the
// out-of-process admin CRUD layer which shares this schema.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mockbird/mockbird/pkg/capture"
	"github.com/mockbird/mockbird/pkg/project"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// TrafficPoint is one day's capture count for a project or endpoint.
type TrafficPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int64     `json:"count"`
}

// TrafficWindowDays is the trailing window reported by the traffic
// queries. Days without captures are zero-filled.
const TrafficWindowDays = 30

// EndpointSource serves the endpoint index's reload path.
type EndpointSource interface {
	// ProjectBySubdomain resolves a tenant. Returns ErrNotFound for
	// unregistered subdomains.
	ProjectBySubdomain(ctx context.Context, subdomain string) (*project.Project, error)

	// EndpointsBySubdomain lists every rule bound to a subdomain.
	EndpointsBySubdomain(ctx context.Context, subdomain string) ([]*project.Endpoint, error)
}

// EndpointCounter increments the informational per-rule request counter.
// Best-effort: callers log failures and move on.
type EndpointCounter interface {
	IncrementRequestCount(ctx context.Context, endpointID uuid.UUID) error
}

// CaptureStore persists and serves captured requests.
type CaptureStore interface {
	capture.Store

	// ListCaptures returns up to limit captures for an endpoint,
	// newest-first. beforeID is an opaque cursor: only captures with a
	// strictly smaller ID are returned. An empty beforeID starts from
	// the newest capture.
	ListCaptures(ctx context.Context, endpointID uuid.UUID, limit int, beforeID string) ([]*capture.Capture, error)

	// GetCapture loads one capture by ID. Returns ErrNotFound when absent.
	GetCapture(ctx context.Context, id string) (*capture.Capture, error)

	// DeleteCapture removes one capture by ID. Returns ErrNotFound when
	// it was already gone, so a double delete reports cleanly.
	DeleteCapture(ctx context.Context, id string) error

	// DeleteCapturesByEndpoint removes an endpoint's captures (cascade).
	DeleteCapturesByEndpoint(ctx context.Context, endpointID uuid.UUID) error

	// DeleteCapturesByProject removes a project's captures (cascade).
	DeleteCapturesByProject(ctx context.Context, projectID uuid.UUID) error

	// ProjectTraffic returns daily capture counts for a project over the
	// trailing window, zero-filled and sorted by day ascending.
	ProjectTraffic(ctx context.Context, projectID uuid.UUID) ([]*TrafficPoint, error)

	// EndpointTraffic is ProjectTraffic scoped to one endpoint.
	EndpointTraffic(ctx context.Context, endpointID uuid.UUID) ([]*TrafficPoint, error)
}

// Store is the full persistence surface the engine and admin API use.
type Store interface {
	EndpointSource
	EndpointCounter
	CaptureStore
}
