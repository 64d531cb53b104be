package engine

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mockbird/mockbird/pkg/capture"
	"github.com/mockbird/mockbird/pkg/httputil"
	"github.com/mockbird/mockbird/pkg/project"
)

// echoResponse reflects an inbound request back to the caller. Handy
// for debugging what a client actually sends.
type echoResponse struct {
	Method    string              `json:"method"`
	URL       string              `json:"url"`
	Headers   []map[string]string `json:"headers"`
	Body      string              `json:"body"`
	IPAddress string              `json:"ip_address"`
}

func (h *Handler) serveEcho(w http.ResponseWriter, r *http.Request) {
	body, err := capture.ReadBody(r, h.maxBody)
	if err != nil {
		h.log.Warn("cannot read request body", "host", r.Host, "error", err)
	}

	snap := capture.Snapshot(r, body, time.Now())
	headers, err := project.DecodeHeaders(snap.Headers)
	if err != nil {
		headers = nil
	}

	httputil.WriteJSON(w, http.StatusOK, echoResponse{
		Method:    snap.Method,
		URL:       snap.URL,
		Headers:   headers,
		Body:      snap.Body,
		IPAddress: snap.IPAddress,
	})
}

// serveStatus answers with the numeric subdomain as the status code,
// so https://503.<base-domain> simulates an unavailable upstream.
func (h *Handler) serveStatus(w http.ResponseWriter, status int) {
	text := http.StatusText(status)
	if text == "" {
		text = "Unknown Status"
	}
	httputil.WriteJSON(w, status, map[string]string{
		"status":  strconv.Itoa(status),
		"message": text,
	})
}
