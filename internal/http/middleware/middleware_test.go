package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/youth-governance-backend/internal/metrics"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

func newTestTokens() *service.TokenManager {
	return service.NewTokenManager("access-secret-for-tests-only-000000", "refresh-secret-for-tests-only-00000", time.Minute, time.Hour)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := newTestTokens()
	user := &models.User{ID: uuid.New(), Role: models.RoleStaff}
	pair, _, err := tokens.GeneratePair(user)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens), RequireRole(models.RoleStaff, models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.MustGet(ContextUserIDKey), "role": c.GetString(ContextRoleKey)})
	})
	r.GET("/admin", AuthMiddleware(tokens), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"not bearer", "/me", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"refresh token is not an access token", "/me", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"valid", "/me", "Bearer " + pair.AccessToken, http.StatusOK},
		{"wrong role", "/admin", "Bearer " + pair.AccessToken, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), user.ID.String())
	assert.Contains(t, w.Body.String(), `"role":"staff"`)
}

func TestZapierSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := "zapier-test-secret"
	body := `[{"id":"1","first_name":"Ana"}]`

	r := gin.New()
	r.POST("/hook", ZapierSignature(secret, 1024), func(c *gin.Context) {
		raw := c.MustGet(ContextRawBodyKey).([]byte)
		c.String(http.StatusOK, string(raw))
	})

	send := func(payload, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(payload))
		if signature != "" {
			req.Header.Set(ZapierSignatureHeader, signature)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(body, Sign([]byte(secret), []byte(body)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, w.Body.String())

	assert.Equal(t, http.StatusOK, send(body, "sha256="+Sign([]byte(secret), []byte(body))).Code)
	assert.Equal(t, http.StatusUnauthorized, send(body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, send(body, "zz-not-hex").Code)
	assert.Equal(t, http.StatusUnauthorized, send(body+" ", Sign([]byte(secret), []byte(body))).Code)
	assert.Equal(t, http.StatusUnauthorized, send(body, Sign([]byte("other"), []byte(body))).Code)

	large := strings.Repeat("x", 2048)
	assert.Equal(t, http.StatusRequestEntityTooLarge, send(large, Sign([]byte(secret), []byte(large))).Code)
}

func TestValidSignature_EmptySecretRejectsEverything(t *testing.T) {
	body := []byte("{}")
	assert.False(t, ValidSignature(nil, body, Sign(nil, body)))
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/conflict", func(c *gin.Context) {
		_ = c.Error(apperror.ErrStaleStatus)
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused"))
	})
	r.GET("/db", func(c *gin.Context) {
		_ = c.Error(apperror.Wrap(errors.New("pq: deadlock"), apperror.ErrCodeDatabaseError, "database error"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conflict", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CONFLICT")

	for _, path := range []string{"/boom", "/db"} {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "pq:")
		assert.Contains(t, w.Body.String(), "internal server error")
	}
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/proposals/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/proposals/"+uuid.NewString(), nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/proposals/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://sk.example.ph"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://sk.example.ph")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://sk.example.ph", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(2, time.Minute))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestUUIDValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/p/:id", UUIDValidator("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p/invalid-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
