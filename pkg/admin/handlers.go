package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/mockbird/mockbird/internal/store"
	"github.com/mockbird/mockbird/pkg/capture"
	"github.com/mockbird/mockbird/pkg/httputil"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": a.version,
	})
}

// handleListRequests serves one page of captures for an endpoint,
// newest first. The "before" param is the ID of the last capture of the
// previous page.
func (a *API) handleListRequests(w http.ResponseWriter, r *http.Request) {
	endpointID, err := uuid.Parse(r.PathValue("endpointID"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_endpoint_id", "endpoint ID must be a UUID")
		return
	}

	limit := DefaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		if limit > MaxPageSize {
			limit = MaxPageSize
		}
	}

	captures, err := a.store.ListCaptures(r.Context(), endpointID, limit, r.URL.Query().Get("before"))
	if err != nil {
		a.log.Error("cannot list captures", "endpoint_id", endpointID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "cannot list requests")
		return
	}
	if captures == nil {
		captures = []*capture.Capture{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": captures})
}

// handleDeleteRequest removes one capture. Deleting an already deleted
// capture reports not found rather than failing silently.
func (a *API) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("requestID")

	err := a.store.DeleteCapture(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "not_found", "request not found")
		return
	}
	if err != nil {
		a.log.Error("cannot delete capture", "capture_id", id, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "cannot delete request")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "request deleted"})
}

func (a *API) handleProjectTraffic(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("projectID"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_project_id", "project ID must be a UUID")
		return
	}

	points, err := a.store.ProjectTraffic(r.Context(), projectID)
	if err != nil {
		a.log.Error("cannot load project traffic", "project_id", projectID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "cannot load traffic")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": points})
}

func (a *API) handleEndpointTraffic(w http.ResponseWriter, r *http.Request) {
	endpointID, err := uuid.Parse(r.PathValue("endpointID"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_endpoint_id", "endpoint ID must be a UUID")
		return
	}

	points, err := a.store.EndpointTraffic(r.Context(), endpointID)
	if err != nil {
		a.log.Error("cannot load endpoint traffic", "endpoint_id", endpointID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "cannot load traffic")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": points})
}

// handleInvalidate drops the cached rule snapshot for a project. The
// CRUD service calls this after every project or endpoint mutation so
// changes take effect before the cache TTL expires.
func (a *API) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("projectID"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_project_id", "project ID must be a UUID")
		return
	}

	a.index.Invalidate(projectID)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "cache invalidated"})
}
