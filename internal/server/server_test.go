package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abdusco/shorty/internal/auth"
	"github.com/abdusco/shorty/internal/repo"
	"github.com/abdusco/shorty/internal/server"
	"github.com/abdusco/shorty/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testServer struct {
	t     *testing.T
	e     *echo.Echo
	clock *clock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	c := &clock{t: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)}

	authenticator := auth.NewAuthenticator("test-secret", 0, c.Now)
	e := server.New(server.Options{
		Auth:          service.NewAuthService(repo.NewMemoryUsersRepo(c.Now), auth.BcryptHasher{Cost: 4}, authenticator),
		Links:         service.NewLinkService(repo.NewMemoryLinksRepo(c.Now), c.Now),
		Authenticator: authenticator,
		BaseURL:       "https://sho.rt",
	})
	return &testServer{t: t, e: e, clock: c}
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type linkJSON struct {
	ID          int64   `json:"id"`
	OriginalURL string  `json:"originalUrl"`
	ShortCode   string  `json:"shortCode"`
	ExpiresAt   *string `json:"expiresAt"`
	ClickCount  int64   `json:"clickCount"`
	IsActive    bool    `json:"isActive"`
	ShortURL    string  `json:"shortUrl"`
	IsExpired   bool    `json:"isExpired"`
	Status      string  `json:"status"`
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

func (ts *testServer) register(email string) string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "password123", "name": "Test",
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	decode(ts.t, rec, &data)
	require.NotEmpty(ts.t, data.Token)
	return data.Token
}

func (ts *testServer) createLink(token, url, code string) linkJSON {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/shorten", token, map[string]string{"originalUrl": url, "shortCode": code})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	var link linkJSON
	decode(ts.t, rec, &link)
	return link
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		body       map[string]string
		wantStatus int
	}{
		{"register", "/api/auth/register", map[string]string{"email": "a@example.com", "password": "secret1", "name": "A"}, http.StatusCreated},
		{"register duplicate", "/api/auth/register", map[string]string{"email": "A@example.com", "password": "secret1", "name": "A"}, http.StatusConflict},
		{"register short password", "/api/auth/register", map[string]string{"email": "b@example.com", "password": "12345", "name": "B"}, http.StatusBadRequest},
		{"register missing name", "/api/auth/register", map[string]string{"email": "b@example.com", "password": "secret1"}, http.StatusBadRequest},
		{"login", "/api/auth/login", map[string]string{"email": "a@example.com", "password": "secret1"}, http.StatusOK},
		{"login wrong password", "/api/auth/login", map[string]string{"email": "a@example.com", "password": "secret2"}, http.StatusUnauthorized},
		{"login missing fields", "/api/auth/login", map[string]string{"email": "a@example.com"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, tt.path, "", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "$2a$")
		})
	}
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("me@example.com")

	rec := ts.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	resp := decode(t, rec, &user)
	assert.True(t, resp.Success)
	assert.Equal(t, "me@example.com", user.Email)
	assert.NotContains(t, rec.Body.String(), "$2a$")

	rec = ts.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ts.clock.Advance(8 * 24 * time.Hour)
	rec = ts.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "tokens expire after seven days")
}

func TestLinkEndpointsRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/shorten"},
		{http.MethodPost, "/api/links"},
		{http.MethodGet, "/api/links"},
		{http.MethodPut, "/api/links/1"},
		{http.MethodPut, "/api/links/1/toggle"},
		{http.MethodDelete, "/api/links/1"},
	} {
		rec := ts.do(route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestRedirectScenario(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("owner@example.com")

	link := ts.createLink(token, "https://example.com", "abc123")
	assert.Equal(t, "https://sho.rt/abc123", link.ShortURL)
	assert.True(t, link.IsActive)
	assert.Equal(t, int64(0), link.ClickCount)

	for i := 0; i < 2; i++ {
		rec := ts.do(http.MethodGet, "/abc123", "", nil)
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://example.com", rec.Header().Get(echo.HeaderLocation))
	}

	rec := ts.do(http.MethodGet, "/api/links", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var links []linkJSON
	decode(t, rec, &links)
	require.Len(t, links, 1)
	assert.Equal(t, int64(2), links[0].ClickCount)

	rec = ts.do(http.MethodPut, fmt.Sprintf("/api/links/%d/toggle", link.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled linkJSON
	decode(t, rec, &toggled)
	assert.False(t, toggled.IsActive)
	assert.Equal(t, "disabled", toggled.Status)

	rec = ts.do(http.MethodGet, "/abc123", "", nil)
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = ts.do(http.MethodGet, "/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateLinkValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("owner@example.com")
	ts.createLink(token, "https://example.com", "taken")

	other := ts.register("other@example.com")

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
	}{
		{"short code too short", map[string]string{"originalUrl": "https://example.com", "shortCode": "ab"}, http.StatusBadRequest},
		{"ftp url", map[string]string{"originalUrl": "ftp://x", "shortCode": "valid_code-1"}, http.StatusBadRequest},
		{"past expiry", map[string]string{"originalUrl": "https://example.com", "shortCode": "past1", "expiresAt": "2026-01-01T00:00"}, http.StatusBadRequest},
		{"taken by another user", map[string]string{"originalUrl": "https://example.com", "shortCode": "taken"}, http.StatusConflict},
		{"future expiry", map[string]string{"originalUrl": "https://example.com", "shortCode": "future", "expiresAt": "2026-10-15T09:30"}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/links", other, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			resp := decode(t, rec, nil)
			assert.Equal(t, tt.wantStatus == http.StatusCreated, resp.Success)
			if !resp.Success {
				assert.NotEmpty(t, resp.Error)
			}
		})
	}

	rec := ts.do(http.MethodPost, "/api/links", other, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExpiredLinkIsGone(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("owner@example.com")

	rec := ts.do(http.MethodPost, "/api/shorten", token, map[string]string{
		"originalUrl": "https://example.com",
		"shortCode":   "brief",
		"expiresAt":   "2026-10-14T12:30:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	ts.clock.Advance(time.Hour)

	rec = ts.do(http.MethodGet, "/brief", "", nil)
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = ts.do(http.MethodGet, "/api/links", token, nil)
	var links []linkJSON
	decode(t, rec, &links)
	require.Len(t, links, 1)
	assert.True(t, links[0].IsExpired)
	assert.True(t, links[0].IsActive)
	assert.Equal(t, "expired", links[0].Status)
}

func TestUpdateLink(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("owner@example.com")
	link := ts.createLink(token, "https://old.example", "before")
	path := fmt.Sprintf("/api/links/%d", link.ID)

	rec := ts.do(http.MethodPut, path, token, map[string]any{
		"originalUrl": "https://new.example",
		"shortCode":   "after",
		"expiresAt":   "2027-01-01T00:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated linkJSON
	decode(t, rec, &updated)
	assert.Equal(t, "https://new.example", updated.OriginalURL)
	assert.Equal(t, "https://sho.rt/after", updated.ShortURL)
	require.NotNil(t, updated.ExpiresAt)

	rec = ts.do(http.MethodPut, path, token, map[string]any{"expiresAt": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &updated)
	assert.Nil(t, updated.ExpiresAt)

	rec = ts.do(http.MethodGet, "/after", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://new.example", rec.Header().Get(echo.HeaderLocation))

	rec = ts.do(http.MethodGet, "/before", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPut, path, token, map[string]any{"originalUrl": "notaurl"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOwnershipIsolation(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("alice@example.com")
	bob := ts.register("bob@example.com")

	link := ts.createLink(alice, "https://alice.example", "alices")
	path := fmt.Sprintf("/api/links/%d", link.ID)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPut, path+"/toggle", bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPut, path, bob, map[string]any{"isActive": false}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, path, bob, nil).Code)

	rec := ts.do(http.MethodGet, "/api/links", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var links []linkJSON
	decode(t, rec, &links)
	assert.Empty(t, links)

	assert.Equal(t, http.StatusFound, ts.do(http.MethodGet, "/alices", "", nil).Code)
}

func TestDeleteLink(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("owner@example.com")
	link := ts.createLink(token, "https://example.com", "doomed")
	path := fmt.Sprintf("/api/links/%d", link.ID)

	rec := ts.do(http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec, nil)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Message)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/doomed", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPatch, path+"/toggle", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, path, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/links/abc", token, nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)

	ts.do(http.MethodGet, "/missing", "", nil)

	rec = ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "shorty_redirects_total"))
}
