package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "filepoold", "")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_InvalidEndpoint(t *testing.T) {
	_, err := Init(context.Background(), "filepoold", "http://")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid OTLP endpoint")
}

func TestInit_WithEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "filepoold", "http://127.0.0.1:4318/v1/traces")
	require.NoError(t, err)

	ctx, span := Tracer().Start(context.Background(), "test")
	span.End()
	_ = ctx

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestTransportAndMiddleware(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(Middleware("files")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusNoContent)
	})))
	defer srv.Close()

	client := &http.Client{Transport: Transport(nil)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.True(t, hit)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
