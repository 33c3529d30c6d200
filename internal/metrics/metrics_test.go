package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryExposition(t *testing.T) {
	reg := NewRegistry()
	reg.TicksConsumed.Inc()
	reg.TicksConsumed.Inc()
	reg.InstrumentsDone.WithLabelValues("ok").Add(3)
	reg.PortfolioDV01.Set(75)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "riskpipe_ticks_consumed_total 2")
	assert.Contains(t, body, `riskpipe_instruments_processed_total{status="ok"} 3`)
	assert.Contains(t, body, "riskpipe_portfolio_dv01 75")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.TicksConsumed.Inc()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.NotContains(t, rec.Body.String(), "riskpipe_ticks_consumed_total 1")
}

func TestHealthz(t *testing.T) {
	srv := NewServer(":0", NewRegistry(), "worker-7", zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","worker":"worker-7"}`, rec.Body.String())
}
