// Package project defines the tenant-facing domain types: projects and
// the mock endpoint rules they own. The serving engine only reads these;
// mutation happens out of process in the admin CRUD layer.
package project

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MethodAny is the wildcard request method. A rule configured with it
// matches every inbound method.
const MethodAny = "ANY"

// Methods lists the request methods a rule may be configured with.
var Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD", MethodAny}

// Project is the tenant unit. Its subdomain is globally unique and is
// the sole tenant-resolution key for inbound traffic.
type Project struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Subdomain   string    `json:"subdomain"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Endpoint is a mock rule owned by exactly one project: a (method, path)
// pair mapped to a canned response. ResponseBody and ResponseHeaders are
// opaque to the engine and replayed byte for byte.
type Endpoint struct {
	ID              uuid.UUID `json:"id"`
	ProjectID       uuid.UUID `json:"project_id"`
	Subdomain       string    `json:"subdomain"`
	UserID          string    `json:"user_id"`
	RequestMethod   string    `json:"request_method"`
	RequestPath     string    `json:"request_path"`
	ResponseCode    int       `json:"response_code"`
	ResponseBody    string    `json:"response_body,omitempty"`
	ResponseHeaders string    `json:"response_headers,omitempty"`
	ResponseDelayMs int       `json:"response_delay_in_milliseconds"`
	Description     string    `json:"description,omitempty"`
	RequestCount    uint64    `json:"request_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ValidMethod reports whether m is an accepted rule method.
func ValidMethod(m string) bool {
	m = strings.ToUpper(m)
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// NormalizePath strips a trailing slash so that "/v1/products" and
// "/v1/products/" compare equal. The root path stays "/".
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// DecodeHeaders parses a stored header list. Headers are persisted as a
// JSON array of single-key objects, e.g.
// [{"Content-Type":"application/json"},{"X-Request-Id":"abc"}], and this
// shape is preserved verbatim because downstream consumers re-parse it.
func DecodeHeaders(s string) ([]map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var headers []map[string]string
	if err := json.Unmarshal([]byte(s), &headers); err != nil {
		return nil, fmt.Errorf("malformed header list %q: %w", s, err)
	}
	return headers, nil
}

// EncodeHeaders serializes a header list into the stored shape.
func EncodeHeaders(headers []map[string]string) (string, error) {
	if len(headers) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(headers)
	if err != nil {
		return "", fmt.Errorf("cannot encode header list: %w", err)
	}
	return string(raw), nil
}
