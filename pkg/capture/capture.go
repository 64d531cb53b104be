// Package capture records inbound requests durably and assigns them
// sortable identifiers.
package capture

import (
	crand "crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Capture is the durable record of one inbound request and the response
// that was served for it. EndpointID is uuid.Nil for requests that
// matched no rule; those are still recorded against the project for
// traffic and debugging visibility. A capture is immutable once written
// except for deletion.
type Capture struct {
	ID              string    `json:"id"`
	ProjectID       uuid.UUID `json:"project_id"`
	EndpointID      uuid.UUID `json:"project_endpoint_id,omitempty"`
	UserID          string    `json:"user_id"`
	RequestMethod   string    `json:"request_method"`
	RequestURL      string    `json:"request_url"`
	RequestHeaders  string    `json:"request_headers,omitempty"`
	RequestBody     string    `json:"request_body,omitempty"`
	ResponseCode    int       `json:"response_code"`
	ResponseBody    string    `json:"response_body,omitempty"`
	ResponseHeaders string    `json:"response_headers,omitempty"`
	ResponseDelayMs int       `json:"response_delay_in_milliseconds"`
	IPAddress       string    `json:"ip_address"`
	CreatedAt       time.Time `json:"created_at"`
}

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(crand.Reader, 0)
	idLastMs  uint64
)

// NewID returns a ULID for a capture observed at t. IDs from one process
// are strictly increasing: the entropy source is monotonic within a
// millisecond, and the timestamp never moves backwards even if the wall
// clock does.
func NewID(t time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()

	ms := ulid.Timestamp(t.UTC())
	if ms < idLastMs {
		ms = idLastMs
	}
	idLastMs = ms

	return ulid.MustNew(ms, idEntropy).String()
}
