package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cppla/moodboard/config"
	"github.com/cppla/moodboard/models"
	"github.com/cppla/moodboard/services"
	"github.com/cppla/moodboard/store"
	"github.com/cppla/moodboard/utils"
)

var plus8 = time.FixedZone("UTC+8", 8*60*60)

func TestMain(m *testing.M) {
	utils.PasswordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testApp struct {
	t     *testing.T
	r     http.Handler
	clock time.Time
	mem   *store.MemoryStore
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(sqlite.Open(filepath.Join(t.TempDir(), "test.db")+"?_busy_timeout=5000"), "silent")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.MoodEntry{}))
	return db
}

func testConfig(t *testing.T) {
	config.Set(config.AppConfig{
		JWTSecret:          "routes-test-secret",
		GinMode:            "test",
		GinPath:            filepath.Join(t.TempDir(), "gin.log"),
		RateLimitPerMinute: 1000,
	})
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	testConfig(t)
	app := &testApp{t: t, clock: time.Date(2024, time.May, 12, 9, 0, 0, 0, plus8), mem: store.NewMemoryStore()}
	svc := services.NewMoodService(app.mem,
		services.WithLocation(plus8),
		services.WithClock(func() time.Time { return app.clock }),
	)
	app.r = SetupRouter(newTestDB(t), svc)
	return app
}

func (a *testApp) do(method, path, token string, body interface{}) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (a *testApp) register(name, email string) string {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/api/v1/auth/register", "", payload{"name": name, "email": email, "password": "secret1"})
	require.Equal(a.t, http.StatusCreated, status, env.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(a.t, data.Token)
	return data.Token
}

type payload = map[string]interface{}

func decodeEntry(t *testing.T, raw json.RawMessage) models.MoodEntry {
	t.Helper()
	var e models.MoodEntry
	require.NoError(t, json.Unmarshal(raw, &e))
	return e
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t)
	token := app.register("Ana", "Ana@Example.com")

	status, env := app.do(http.MethodPost, "/api/v1/auth/register", "", payload{"name": "Other", "email": "ana@example.com", "password": "secret2"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, 40901, env.Code)

	status, env = app.do(http.MethodPost, "/api/v1/auth/register", "", payload{"name": "Bo", "email": "not-an-email", "password": "secret2"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40002, env.Code)

	status, env = app.do(http.MethodPost, "/api/v1/auth/register", "", payload{"name": "Bo", "email": "bo@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = app.do(http.MethodPost, "/api/v1/auth/login", "", payload{"email": "ana@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)
	unknownStatus, unknown := app.do(http.MethodPost, "/api/v1/auth/login", "", payload{"email": "nobody@example.com", "password": "wrong-pass"})
	assert.Equal(t, status, unknownStatus)
	assert.Equal(t, env.Message, unknown.Message)

	status, env = app.do(http.MethodPost, "/api/v1/auth/login", "", payload{"email": "ana@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"token"`)
	assert.NotContains(t, string(env.Data), "PasswordHash")
	assert.NotContains(t, string(env.Data), "$2a$")

	status, env = app.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	var me models.User
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "Ana", me.Name)
	assert.Equal(t, "ana@example.com", me.Email)

	status, _ = app.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = app.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 40104, env.Code)
}

func TestRecordsRequireAuth(t *testing.T) {
	app := newTestApp(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/records"},
		{http.MethodPost, "/api/v1/records"},
		{http.MethodGet, "/api/v1/records/1"},
		{http.MethodPut, "/api/v1/records/1"},
		{http.MethodDelete, "/api/v1/records/1"},
		{http.MethodGet, "/api/v1/giphy?endpoint=trending"},
	} {
		status, env := app.do(route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, route.path)
		assert.Equal(t, 40101, env.Code, route.path)
	}
	assert.Equal(t, 0, app.mem.Len())
}

func TestRecordLifecycle(t *testing.T) {
	app := newTestApp(t)
	token := app.register("Ana", "ana@example.com")

	status, env := app.do(http.MethodGet, "/api/v1/records", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"today":null,"history":[]}`, string(env.Data))

	status, env = app.do(http.MethodPost, "/api/v1/records", token, payload{"emojis": "😀🌞", "note": "good day &amp; more", "imageUrl": "https://media.giphy.com/a.gif"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	created := decodeEntry(t, env.Data)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "good day &amp; more", created.Note)
	assert.Equal(t, models.DefaultColorTheme, created.ColorTheme)
	assert.True(t, created.Day.Equal(time.Date(2024, time.May, 12, 0, 0, 0, 0, plus8)))

	status, env = app.do(http.MethodPost, "/api/v1/records", token, payload{"emojis": "😢", "note": "again"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40011, env.Code)
	assert.Equal(t, "you can only create one moodboard per day", env.Message)

	path := "/api/v1/records/" + jsonID(created.ID)
	status, env = app.do(http.MethodPut, path, token, payload{"note": "even better"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "even better", decodeEntry(t, env.Data).Note)
	assert.Equal(t, "😀🌞", decodeEntry(t, env.Data).Emojis)

	status, env = app.do(http.MethodGet, "/api/v1/records", token, nil)
	require.Equal(t, http.StatusOK, status)
	var dash struct {
		Today   *models.MoodEntry  `json:"today"`
		History []models.MoodEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	require.NotNil(t, dash.Today)
	assert.Equal(t, created.ID, dash.Today.ID)
	assert.Empty(t, dash.History)

	// next day: yesterday's entry is history and read-only
	app.clock = app.clock.Add(24 * time.Hour)

	status, env = app.do(http.MethodPut, path, token, payload{"note": "rewrite"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40012, env.Code)
	status, env = app.do(http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40012, env.Code)

	status, env = app.do(http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "even better", decodeEntry(t, env.Data).Note)

	status, env = app.do(http.MethodGet, "/api/v1/records", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Nil(t, dash.Today)
	require.Len(t, dash.History, 1)
	assert.Equal(t, created.ID, dash.History[0].ID)

	status, env = app.do(http.MethodPost, "/api/v1/records", token, payload{"emojis": "🙂", "note": "new day"})
	require.Equal(t, http.StatusCreated, status)
	today := decodeEntry(t, env.Data)

	status, env = app.do(http.MethodDelete, "/api/v1/records/"+jsonID(today.ID), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"moodboard deleted successfully"}`, string(env.Data))
	status, _ = app.do(http.MethodGet, "/api/v1/records/"+jsonID(today.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestRecordErrors(t *testing.T) {
	app := newTestApp(t)
	ana := app.register("Ana", "ana@example.com")
	bo := app.register("Bo", "bo@example.com")

	status, env := app.do(http.MethodPost, "/api/v1/records", ana, payload{"note": "no emojis"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40010, env.Code)

	status, env = app.do(http.MethodPost, "/api/v1/records", ana, payload{"emojis": "😀", "note": strings.Repeat("é", 201)})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40010, env.Code)

	status, env = app.do(http.MethodPost, "/api/v1/records", ana, payload{"emojis": "😀", "note": "<happy>"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40010, env.Code)
	assert.Equal(t, "note must be plain text without HTML tags", env.Message)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+ana)
	w := httptest.NewRecorder()
	app.r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	status, env = app.do(http.MethodPost, "/api/v1/records", ana, payload{"emojis": "😀", "note": "mine"})
	require.Equal(t, http.StatusCreated, status)
	mine := decodeEntry(t, env.Data)

	// another user's id behaves like a missing one
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		status, env = app.do(method, "/api/v1/records/"+jsonID(mine.ID), bo, payload{"note": "stolen"})
		assert.Equal(t, http.StatusNotFound, status, method)
		assert.Equal(t, 40410, env.Code, method)
	}

	for _, id := range []string{"abc", "0", "-1", "99999"} {
		status, env = app.do(http.MethodGet, "/api/v1/records/"+id, ana, nil)
		assert.Equal(t, http.StatusNotFound, status, id)
		assert.Equal(t, "moodboard not found", env.Message, id)
	}

	status, env = app.do(http.MethodGet, "/api/v1/nothing-here", ana, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40400, env.Code)
	assert.Equal(t, "route not found", env.Message)
}

type brokenStore struct{ store.EntryStore }

var errBroken = errors.New("dial tcp 10.0.0.5:3306: connection refused")

func (brokenStore) FindInRange(context.Context, uint, time.Time, time.Time) (*models.MoodEntry, error) {
	return nil, errBroken
}

func TestStoreFailureIsGeneric(t *testing.T) {
	testConfig(t)
	r := SetupRouter(newTestDB(t), services.NewMoodService(brokenStore{}))
	token, err := utils.GenerateToken(1, "ana", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":50010,"message":"server error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	status, env := app.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))

	token := app.register("Ana", "ana@example.com")
	app.do(http.MethodGet, "/api/v1/records", token, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	app.r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "moodboard_http_requests_total")
	assert.Contains(t, body, `moodboard_records_operations_total{op="list",outcome="ok"}`)
	assert.Contains(t, body, `path="/api/v1/records"`)
}

func TestRequestIDIsEchoed(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	w := httptest.NewRecorder()
	app.r.ServeHTTP(w, req)
	assert.Equal(t, "trace-42", w.Header().Get("X-Request-ID"))
}
