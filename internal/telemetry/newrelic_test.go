package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/yard/config"
)

func TestInitNewRelicDisabled(t *testing.T) {
	app, err := InitNewRelic(config.NewRelicConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, app)

	app, err = InitNewRelic(config.NewRelicConfig{Enabled: true})
	require.NoError(t, err)
	assert.Nil(t, app)
}

func TestMiddlewarePassesThroughWithoutApp(t *testing.T) {
	called := false
	h := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestSegmentHelpersWithoutTransaction(t *testing.T) {
	end := StartSegment(context.Background(), "noop")
	end()
	NoticeError(context.Background(), errors.New("ignored"))
}
