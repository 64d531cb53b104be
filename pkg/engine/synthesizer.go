package engine

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mockbird/mockbird/pkg/project"
)

// synthesize writes the rule's configured response. The artificial
// delay counts from when the request arrived, so time already spent on
// lookup and matching is subtracted; only this request waits.
func synthesize(w http.ResponseWriter, r *http.Request, rule *project.Endpoint, start time.Time, log *slog.Logger) {
	if rule.ResponseDelayMs > 0 {
		remaining := time.Duration(rule.ResponseDelayMs)*time.Millisecond - time.Since(start)
		if remaining > 0 && !wait(r, remaining) {
			// Client went away while we were delaying.
			return
		}
	}

	headers, err := project.DecodeHeaders(rule.ResponseHeaders)
	if err != nil {
		log.Warn("cannot decode response headers", "endpoint_id", rule.ID, "error", err)
	}
	for _, header := range headers {
		for name, value := range header {
			w.Header().Set(name, value)
		}
	}

	w.WriteHeader(rule.ResponseCode)
	if rule.ResponseBody != "" {
		if _, err := w.Write([]byte(rule.ResponseBody)); err != nil {
			log.Warn("cannot write response body", "endpoint_id", rule.ID, "error", err)
		}
	}
}

// wait sleeps for d or until the request is cancelled. Reports whether
// the full delay elapsed.
func wait(r *http.Request, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-r.Context().Done():
		return false
	}
}
