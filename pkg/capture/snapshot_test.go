package capture

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockbird/mockbird/pkg/project"
)

func TestSnapshotBasics(t *testing.T) {
	r := httptest.NewRequest("POST", "http://acme.mockbird.test/v1/products?active=true", strings.NewReader(`{"name":"Product 1"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Authorization", "Bearer tok")
	r.RemoteAddr = "203.0.113.9:51334"

	body, err := ReadBody(r, 1<<20)
	require.NoError(t, err)

	snap := Snapshot(r, body, time.Now())

	assert.Equal(t, "POST", snap.Method)
	assert.Equal(t, "http://acme.mockbird.test/v1/products?active=true", snap.URL)
	assert.Equal(t, `{"name":"Product 1"}`, snap.Body)
	assert.Equal(t, "203.0.113.9", snap.IPAddress)

	headers, err := project.DecodeHeaders(snap.Headers)
	require.NoError(t, err)
	assert.Contains(t, headers, map[string]string{"Content-Type": "application/json"})
	assert.Contains(t, headers, map[string]string{"Authorization": "Bearer tok"})
}

func TestSnapshotHeadersStableOrder(t *testing.T) {
	r := httptest.NewRequest("GET", "http://acme.mockbird.test/", nil)
	r.Header.Set("B-Header", "2")
	r.Header.Set("A-Header", "1")

	snap := Snapshot(r, nil, time.Now())
	assert.Less(t, strings.Index(snap.Headers, "A-Header"), strings.Index(snap.Headers, "B-Header"))
}

func TestSnapshotForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "http://acme.mockbird.test/", nil)
	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")

	snap := Snapshot(r, nil, time.Now())
	assert.Equal(t, "198.51.100.7", snap.IPAddress)
}

func TestSnapshotMultiValueHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "http://acme.mockbird.test/", nil)
	r.Header.Add("Accept", "application/json")
	r.Header.Add("Accept", "text/plain")

	snap := Snapshot(r, nil, time.Now())
	headers, err := project.DecodeHeaders(snap.Headers)
	require.NoError(t, err)

	var accepts []string
	for _, h := range headers {
		if v, ok := h["Accept"]; ok {
			accepts = append(accepts, v)
		}
	}
	assert.Equal(t, []string{"application/json", "text/plain"}, accepts)
}
