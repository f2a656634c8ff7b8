package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/linechat/internal/chat"
	"github.com/Tyrowin/linechat/internal/metrics"
)

func get(t *testing.T, handler http.Handler, path string) (int, string, http.Header) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body), rec.Header()
}

func TestHealthHandler(t *testing.T) {
	hub, err := chat.NewHub(chat.Options{}, zerolog.Nop())
	require.NoError(t, err)

	code, body, header := get(t, HealthHandler(hub), "/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "text/plain", header.Get("Content-Type"))
	assert.Equal(t, "LineChat server is running! 0 online\n", body)
}

func TestSetupRoutes(t *testing.T) {
	m := metrics.NewMetrics()
	hub, err := chat.NewHub(chat.Options{Observer: m}, zerolog.Nop())
	require.NoError(t, err)
	gateway := NewGateway(hub, *NewConfig(), zerolog.Nop())

	t.Run("with metrics", func(t *testing.T) {
		mux := SetupRoutes(hub, gateway, m.Handler())

		code, body, _ := get(t, mux, "/healthz")
		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, "0 online")

		code, body, _ = get(t, mux, "/")
		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, "LineChat server is running!")

		code, body, _ = get(t, mux, "/metrics")
		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, body, "chat_sessions_active 0")

		code, _, _ = get(t, mux, "/ws")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("without metrics", func(t *testing.T) {
		mux := SetupRoutes(hub, gateway, nil)

		_, body, _ := get(t, mux, "/metrics")
		assert.NotContains(t, body, "chat_sessions_active")
	})
}
