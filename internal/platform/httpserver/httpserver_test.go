package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskwatch/internal/platform/metrics"
	authmw "riskwatch/pkg/platform/middleware/auth"
	"riskwatch/pkg/requestcontext"
	"riskwatch/pkg/testutil"
)

type staticValidator struct{}

func (staticValidator) ValidateToken(token string) (*authmw.Claims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &authmw.Claims{Subject: "analyst", Scopes: []string{"risk:read"}}, nil
}

type echoRoutes struct{}

func (echoRoutes) Register(r chi.Router) {
	r.Get("/v1/whoami", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.Subject(r.Context())))
	})
}

func newTestRouter(checks map[string]HealthCheck) http.Handler {
	return NewRouter(RouterConfig{
		Metrics:   metrics.NewWith(prometheus.NewRegistry()),
		Validator: staticValidator{},
		Scope:     "risk:read",
		Checks:    checks,
		Protected: []Routes{echoRoutes{}},
	})
}

func TestRouterProtectsAPI(t *testing.T) {
	router := newTestRouter(nil)

	t.Run("missing token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/whoami", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("valid token", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewBearerRequest(t, "/v1/whoami", "good"))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "analyst", rr.Body.String())
	})
}

func TestHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"postgres":"ok"`)
	})

	t.Run("degraded", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("down") },
		})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), `"redis":"unavailable"`)
	})
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
