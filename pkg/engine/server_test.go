package engine

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStartStop(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	srv := NewServer("127.0.0.1:0", "127.0.0.1:0", handler, handler)

	require.NoError(t, srv.Start())
	assert.Error(t, srv.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx))
}

func TestServerStartBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	srv := NewServer(ln.Addr().String(), "127.0.0.1:0", handler, handler)

	err = srv.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen ingress")
}

func TestServerStartAdminBindFailureClosesIngress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	srv := NewServer("127.0.0.1:0", ln.Addr().String(), handler, handler)

	err = srv.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen admin")

	srv.mu.Lock()
	assert.False(t, srv.running)
	srv.mu.Unlock()

	// A retry after the conflicting port is released must succeed.
	require.NoError(t, ln.Close())
	require.NoError(t, srv.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}
