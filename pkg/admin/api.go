// Package admin exposes the read/maintenance API consumed by the
// dashboard backend: capture listing and deletion, traffic aggregates,
// live capture events over WebSocket, and the cache invalidation hook
// the CRUD service calls after mutations.
package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mockbird/mockbird/internal/index"
	"github.com/mockbird/mockbird/internal/store"
	"github.com/mockbird/mockbird/pkg/logging"
	"github.com/mockbird/mockbird/pkg/notify"
)

// DefaultPageSize is used when a capture listing has no limit param.
const DefaultPageSize = 20

// MaxPageSize caps the capture listing page size.
const MaxPageSize = 100

// API is the admin HTTP surface. It is mounted on its own listener,
// separate from mock ingress.
type API struct {
	store    store.Store
	index    *index.Index
	bus      notify.Bus
	log      *slog.Logger
	upgrader websocket.Upgrader
	version  string
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// New creates the admin API over the given store, index, and bus.
func New(st store.Store, ix *index.Index, bus notify.Bus, opts ...Option) *API {
	a := &API{
		store: st,
		index: ix,
		bus:   bus,
		log:   logging.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			// The dashboard backend terminates browser traffic; this
			// service only ever sees it as a client.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler builds the routed handler for the admin listener.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerRoutes(mux)
	return mux
}

// registerRoutes sets up all API routes.
func (a *API) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)

	mux.HandleFunc("GET /v1/endpoints/{endpointID}/requests", a.handleListRequests)
	mux.HandleFunc("DELETE /v1/requests/{requestID}", a.handleDeleteRequest)

	mux.HandleFunc("GET /v1/projects/{projectID}/traffic", a.handleProjectTraffic)
	mux.HandleFunc("GET /v1/endpoints/{endpointID}/traffic", a.handleEndpointTraffic)

	mux.HandleFunc("GET /v1/users/{userID}/events", a.handleEvents)

	mux.HandleFunc("POST /v1/projects/{projectID}/invalidate", a.handleInvalidate)
}
