package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/youth-governance-backend/internal/config"
	"github.com/ignatzorin/youth-governance-backend/internal/http/handlers"
	"github.com/ignatzorin/youth-governance-backend/internal/metrics"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.TokenManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:                 "test",
		AllowedOrigins:      []string{"https://sk.example.ph"},
		RateLimitLimit:      100,
		RateLimitPeriod:     time.Minute,
		ZapierWebhookSecret: "zapier-secret-0001",
	}
	tokens := service.NewTokenManager("access-secret-for-tests-only-000000", "refresh-secret-for-tests-only-00000", time.Minute, time.Hour)
	reg := prometheus.NewRegistry()

	// Services stay nil: every request below is answered by middleware.
	r := SetupRouter(cfg, Handlers{
		Auth:          handlers.NewAuthHandler(nil),
		Proposals:     handlers.NewProposalHandler(nil, 10),
		YouthProfiles: handlers.NewYouthProfileHandler(nil),
		Notifications: handlers.NewNotificationHandler(nil),
		Dashboards:    handlers.NewDashboardHandler(nil),
		Committees:    handlers.NewCommitteeHandler(nil),
		Activity:      handlers.NewActivityHandler(nil),
		Users:         handlers.NewUserHandler(nil),
		Webhooks:      handlers.NewWebhookHandler(nil),
		WS:            handlers.NewWSHandler(nil, tokens, cfg.AllowedOrigins),
		Health:        handlers.NewHealthHandler(nil, nil),
	}, tokens, metrics.New(reg), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r, tokens
}

func bearer(t *testing.T, tokens *service.TokenManager, role string) string {
	t.Helper()
	pair, _, err := tokens.GeneratePair(&models.User{ID: uuid.New(), Role: role})
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func serve(r *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRouter_Access(t *testing.T) {
	r, tokens := newTestRouter(t)
	youth := bearer(t, tokens, models.RoleYouth)
	staff := bearer(t, tokens, models.RoleStaff)
	id := uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"proposals need a token", http.MethodGet, "/api/proposals", "", http.StatusUnauthorized},
		{"notifications need a token", http.MethodGet, "/api/notifications/unread/count", "", http.StatusUnauthorized},
		{"youth cannot review proposals", http.MethodPost, "/api/admin/proposals/" + id + "/approve", youth, http.StatusForbidden},
		{"youth cannot read the admin dashboard", http.MethodGet, "/api/admin/dashboard", youth, http.StatusForbidden},
		{"staff cannot manage users", http.MethodGet, "/api/admin/users", staff, http.StatusForbidden},
		{"staff cannot create committees", http.MethodPost, "/api/admin/committees", staff, http.StatusForbidden},
		{"malformed id", http.MethodGet, "/api/proposals/not-a-uuid", youth, http.StatusBadRequest},
		{"unsigned webhook", http.MethodPost, "/api/webhooks/zapier/youth-profiles", "", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/api/nothing-here", youth, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, tt.path, tt.auth)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestSetupRouter_MetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	serve(r, http.MethodGet, "/api/proposals", "")
	w := serve(r, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/api/proposals"`)
}

func TestSetupRouter_NoPublicMediaRoute(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, route := range r.Routes() {
		assert.False(t, strings.HasPrefix(route.Path, "/media"), route.Path)
	}
}
