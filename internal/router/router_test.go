package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyai-backend/internal/handlers"
	"studyai-backend/internal/logger"
	"studyai-backend/internal/middleware"
	"studyai-backend/internal/services"
)

type staticModel struct{}

func (staticModel) Name() string { return "static" }
func (staticModel) GenerateJSON(ctx context.Context, req services.ModelRequest) (string, error) {
	return `{"summary": "s", "keyConcepts": ["k"], "flashcards": [{"question": "q", "answer": "a"}]}`, nil
}

func newTestRouter(t *testing.T, auth *middleware.JWTAuth, limit int) http.Handler {
	t.Helper()
	return newTestRouterWithProxy(t, auth, limit, false)
}

func newTestRouterWithProxy(t *testing.T, auth *middleware.JWTAuth, limit int, trustProxy bool) http.Handler {
	t.Helper()
	log := logger.Nop()
	gen := services.NewStudyGenerator(staticModel{}, services.GeneratorOptions{})
	h, stop := New(Deps{
		Log:             log,
		JWTAuth:         auth,
		Content:         handlers.NewContentHandler(services.NewFileExtractService(0), 0, log),
		Study:           handlers.NewStudyHandler(gen, nil, log),
		RateLimitPerMin: limit,
		FrontendURL:     "http://localhost:3000",
		TrustProxy:      trustProxy,
	})
	t.Cleanup(stop)
	return h
}

func post(h http.Handler, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_HealthAndFormats(t *testing.T) {
	h := newTestRouter(t, nil, 0)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/content/supported-formats", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "application/pdf")
}

func TestRouter_GenerateWithoutAuth(t *testing.T) {
	h := newTestRouter(t, nil, 0)

	rr := post(h, "/api/v1/study-materials", `{"content": "lecture"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"keyConcepts":["k"]`)
}

func TestRouter_StudySetsAbsentWithoutStore(t *testing.T) {
	h := newTestRouter(t, nil, 0)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/study-sets", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_AuthRequiredWhenEnabled(t *testing.T) {
	auth := middleware.NewJWTAuth("router-secret")
	h := newTestRouter(t, auth, 0)

	rr := post(h, "/api/v1/concepts", `{"content": "lecture"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := auth.GenerateToken("student", time.Hour)
	require.NoError(t, err)
	rr = post(h, "/api/v1/concepts", `{"content": "lecture"}`, token)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestRouter_RateLimitsGeneration(t *testing.T) {
	h := newTestRouter(t, nil, 2)

	for i := 0; i < 2; i++ {
		rr := post(h, "/api/v1/concepts", `{"content": "lecture"}`, "")
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := post(h, "/api/v1/concepts", `{"content": "lecture"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Extraction is not rate limited.
	rr = post(h, "/api/v1/content/extract", `{"file_data_uri": "data:text/plain;base64,aGVsbG8="}`, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func postFrom(h http.Handler, path, body, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_ForwardedForIgnoredByDefault(t *testing.T) {
	h := newTestRouter(t, nil, 1)

	rr := postFrom(h, "/api/v1/concepts", `{"content": "lecture"}`, "203.0.113.1")
	require.Equal(t, http.StatusOK, rr.Code)

	// A new forwarded address from the same connection is the same client.
	rr = postFrom(h, "/api/v1/concepts", `{"content": "lecture"}`, "203.0.113.2")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouter_ForwardedForHonouredBehindProxy(t *testing.T) {
	h := newTestRouterWithProxy(t, nil, 1, true)

	rr := postFrom(h, "/api/v1/concepts", `{"content": "lecture"}`, "203.0.113.1")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = postFrom(h, "/api/v1/concepts", `{"content": "lecture"}`, "203.0.113.2")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = postFrom(h, "/api/v1/concepts", `{"content": "lecture"}`, "203.0.113.1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}
