// Package engine serves mock traffic. The ingress handler resolves the
// request's subdomain to a tenant, matches the tenant's rules, and
// answers with the configured response while the capture and
// notification work runs in parallel.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mockbird/mockbird/internal/index"
	"github.com/mockbird/mockbird/internal/matching"
	"github.com/mockbird/mockbird/internal/store"
	"github.com/mockbird/mockbird/pkg/capture"
	"github.com/mockbird/mockbird/pkg/logging"
	"github.com/mockbird/mockbird/pkg/notify"
	"github.com/mockbird/mockbird/pkg/project"
)

// DefaultMaxBodyBytes caps how much of an inbound request body is read
// and captured.
const DefaultMaxBodyBytes = 1 << 20

// Handler answers mock traffic for every project subdomain.
type Handler struct {
	baseDomain string
	index      *index.Index
	writer     *capture.Writer
	bus        notify.Bus
	counter    store.EndpointCounter
	log        *slog.Logger
	maxBody    int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger attaches an operational logger.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMaxBodyBytes overrides the inbound body cap.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// NewHandler creates the ingress handler. baseDomain is the apex the
// project subdomains hang off, e.g. "mockbird.dev".
func NewHandler(baseDomain string, ix *index.Index, writer *capture.Writer, bus notify.Bus, counter store.EndpointCounter, opts ...HandlerOption) *Handler {
	h := &Handler{
		baseDomain: strings.ToLower(baseDomain),
		index:      ix,
		writer:     writer,
		bus:        bus,
		counter:    counter,
		log:        logging.Nop(),
		maxBody:    DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorBody(message string) string {
	b, _ := json.Marshal(errorResponse{Status: "error", Message: message})
	return string(b)
}

func writeJSONBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	labels := h.subdomains(r.Host)
	switch {
	case len(labels) == 0:
		writeJSONBody(w, http.StatusNotFound,
			errorBody(fmt.Sprintf("no project subdomain in host [%s]", r.Host)))
		return
	case len(labels) > 1:
		// Only one subdomain level is routable; deeper hosts go back
		// to the apex.
		http.Redirect(w, r, scheme(r)+"://"+h.baseDomain, http.StatusMovedPermanently)
		return
	}
	sub := labels[0]

	if sub == "echo" {
		h.serveEcho(w, r)
		return
	}
	if status, err := strconv.Atoi(sub); err == nil && status >= 100 && status <= 599 {
		h.serveStatus(w, status)
		return
	}

	body, err := capture.ReadBody(r, h.maxBody)
	if err != nil {
		h.log.Warn("cannot read request body", "host", r.Host, "error", err)
	}

	snap, err := h.index.Lookup(r.Context(), sub)
	if errors.Is(err, index.ErrTenantNotFound) {
		writeJSONBody(w, http.StatusNotFound,
			errorBody(fmt.Sprintf("we cannot find a project for the subdomain [%s]", sub)))
		return
	}
	if err != nil {
		h.log.Error("tenant lookup failed", "subdomain", sub, "error", err)
		writeJSONBody(w, http.StatusInternalServerError,
			errorBody("we ran into an internal error while processing your request"))
		return
	}

	req := capture.Snapshot(r, body, start)
	rule := matching.Match(snap.Endpoints, r.Method, r.URL.Path)

	if rule == nil {
		respBody := errorBody(fmt.Sprintf(
			"we cannot find a registered mock for URL [%s] and HTTP method [%s]",
			requestURL(r), r.Method))
		go h.record(h.detach(r), snap.Project, nil, req, http.StatusNotFound, respBody, jsonHeaders, 0)
		writeJSONBody(w, http.StatusNotFound, respBody)
		return
	}

	go h.record(h.detach(r), snap.Project, rule, req,
		rule.ResponseCode, rule.ResponseBody, rule.ResponseHeaders, rule.ResponseDelayMs)
	synthesize(w, r, rule, start, h.log)
}

// jsonHeaders is the serialized header set of the engine's own JSON
// error responses, stored on their captures.
const jsonHeaders = `[{"Content-Type":"application/json"}]`

// record persists and announces one capture. It runs off the request
// goroutine on a context that survives client disconnects.
func (h *Handler) record(ctx context.Context, p *project.Project, rule *project.Endpoint, req *capture.RequestSnapshot, code int, body, headers string, delayMs int) {
	c := &capture.Capture{
		ProjectID:       p.ID,
		EndpointID:      uuid.Nil,
		UserID:          p.UserID,
		RequestMethod:   req.Method,
		RequestURL:      req.URL,
		RequestHeaders:  req.Headers,
		RequestBody:     req.Body,
		ResponseCode:    code,
		ResponseBody:    body,
		ResponseHeaders: headers,
		ResponseDelayMs: delayMs,
		IPAddress:       req.IPAddress,
		CreatedAt:       req.ReceivedAt,
	}
	if rule != nil {
		c.EndpointID = rule.ID
	}

	h.writer.Write(ctx, c)

	if err := h.bus.Publish(ctx, c.UserID, &notify.Event{Type: notify.EventTypeCaptured, Capture: c}); err != nil {
		h.log.Warn("cannot publish capture event", "capture_id", c.ID, "error", err)
	}

	if rule != nil {
		if err := h.counter.IncrementRequestCount(ctx, rule.ID); err != nil {
			h.log.Warn("cannot increment request count", "endpoint_id", rule.ID, "error", err)
		}
	}
}

func (h *Handler) detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// subdomains returns the host's labels left of the base domain, or nil
// when the host is the base domain itself or a foreign host.
func (h *Handler) subdomains(host string) []string {
	host = strings.ToLower(stripPort(host))
	if host == h.baseDomain || !strings.HasSuffix(host, "."+h.baseDomain) {
		return nil
	}
	prefix := strings.TrimSuffix(host, "."+h.baseDomain)
	if prefix == "" {
		return nil
	}
	return strings.Split(prefix, ".")
}

func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i >= 0 && strings.IndexByte(host[i:], ']') < 0 {
		return host[:i]
	}
	return host
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func requestURL(r *http.Request) string {
	return scheme(r) + "://" + r.Host + r.URL.RequestURI()
}
