package capture

import (
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mockbird/mockbird/pkg/project"
)

// RequestSnapshot is everything the writer needs from an inbound request,
// copied out so the capture can complete after the handler returns or the
// client disconnects.
type RequestSnapshot struct {
	Method     string
	URL        string
	Headers    string // serialized array of single-key objects
	Body       string
	IPAddress  string
	ReceivedAt time.Time
}

// Snapshot copies the relevant parts of r. The body must already have
// been read by the caller (the handler reads it once and shares the
// bytes between matching and capture).
func Snapshot(r *http.Request, body []byte, receivedAt time.Time) *RequestSnapshot {
	return &RequestSnapshot{
		Method:     r.Method,
		URL:        requestURL(r),
		Headers:    serializeHeaders(r.Header),
		Body:       string(body),
		IPAddress:  clientIP(r),
		ReceivedAt: receivedAt,
	}
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// serializeHeaders renders headers as a JSON array of single-key objects,
// one entry per header value, sorted by name so the output is stable.
// The shape matches what the dashboard re-parses.
func serializeHeaders(h http.Header) string {
	if len(h) == 0 {
		return ""
	}

	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var headers []map[string]string
	for _, name := range names {
		for _, value := range h[name] {
			headers = append(headers, map[string]string{name: value})
		}
	}

	encoded, err := project.EncodeHeaders(headers)
	if err != nil {
		return ""
	}
	return encoded
}

// clientIP extracts the caller's address, preferring the forwarding
// headers set by the ingress load balancer.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if comma := strings.IndexByte(ip, ','); comma >= 0 {
			ip = ip[:comma]
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ReadBody drains r.Body up to limit bytes and returns what was read.
func ReadBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(io.LimitReader(r.Body, limit))
}
