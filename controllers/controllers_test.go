package controllers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/moodboard/config"
	"github.com/cppla/moodboard/services"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "controllers-test-secret"})
	os.Exit(m.Run())
}

func TestRespondServiceError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{&services.ValidationError{Field: "note", Message: "note is required"}, 400, `{"code":40010,"message":"note is required"}`},
		{services.ErrDuplicateEntry, 400, `{"code":40011,"message":"you can only create one moodboard per day"}`},
		{services.ErrOutOfWindow, 400, `{"code":40012,"message":"you can only modify today's moodboard"}`},
		{services.ErrNotFound, 404, `{"code":40410,"message":"moodboard not found"}`},
		{fmt.Errorf("%w: %w", services.ErrStoreUnavailable, fmt.Errorf("secret dsn")), 500, `{"code":50010,"message":"server error"}`},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		respondServiceError(ctx, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.JSONEq(t, tc.body, w.Body.String())
	}
}

func TestParseID(t *testing.T) {
	id, ok := parseID("42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)
	for _, raw := range []string{"", "0", "-3", "4.2", "x1", "99999999999999999999999"} {
		_, ok := parseID(raw)
		assert.False(t, ok, raw)
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, validEmail("ana@example.com"))
	assert.False(t, validEmail("ana@localhost"))
	assert.False(t, validEmail("Ana <ana@example.com>"))
	assert.False(t, validEmail("ana"))
}

func gifEngine(t *testing.T, upstream http.HandlerFunc) (*gin.Engine, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path+"?"+r.URL.RawQuery)
		upstream(w, r)
	}))
	t.Cleanup(srv.Close)

	g := NewGifController(config.AppConfig{GiphyBaseURL: srv.URL + "/v1/gifs/", GiphyAPIKey: "server-key"}, srv.Client())
	r := gin.New()
	r.GET("/giphy", g.Proxy)
	return r, &seen
}

func TestGifProxyForwardsWithKey(t *testing.T) {
	r, seen := gifEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"abc"}]}`))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/giphy?endpoint=search&q=happy&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[{"id":"abc"}]}`, w.Body.String())
	require.Len(t, *seen, 1)
	assert.Equal(t, "/v1/gifs/search?api_key=server-key&limit=5&q=happy", (*seen)[0])

	// a caller supplied key is left alone
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/giphy?endpoint=trending&api_key=mine", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/v1/gifs/trending?api_key=mine", (*seen)[1])
}

func TestGifProxyRejectsEndpoints(t *testing.T) {
	r, seen := gifEngine(t, func(w http.ResponseWriter, r *http.Request) {})

	for _, target := range []string{"/giphy", "/giphy?endpoint=", "/giphy?endpoint=random", "/giphy?endpoint=../admin"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
	assert.Empty(t, *seen)
}

func TestGifProxyPassesUpstreamStatus(t *testing.T) {
	r, _ := gifEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"slow down"}`))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/giphy?endpoint=trending", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"message":"slow down"}`, w.Body.String())
}

func TestGifProxyTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	g := NewGifController(config.AppConfig{GiphyBaseURL: base}, nil)
	r := gin.New()
	r.GET("/giphy", g.Proxy)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/giphy?endpoint=search&q=x", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"code":50201`)
}
