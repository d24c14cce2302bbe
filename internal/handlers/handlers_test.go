package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tariel-x/referral/internal/accounts"
	"github.com/tariel-x/referral/internal/analytics"
	"github.com/tariel-x/referral/internal/auth"
	"github.com/tariel-x/referral/internal/config"
	"github.com/tariel-x/referral/internal/demo"
	"github.com/tariel-x/referral/internal/referral"
	"github.com/tariel-x/referral/internal/store"
	feed "github.com/tariel-x/referral/internal/websocket"
)

type testServer struct {
	router *gin.Engine
	store  *store.MemoryStore
	tokens *auth.TokenService
	hub    *feed.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.NewMemoryStore()
	tokens, err := auth.NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)

	svc := accounts.NewService(s, bcrypt.MinCost, nil)
	registry := referral.NewRegistry(s, "http://localhost:8080", nil)
	hub := feed.NewHub(nil)

	h := New(Deps{
		Config:   &config.Config{FrontendURL: "http://localhost:8080"},
		Store:    s,
		Accounts: svc,
		Tokens:   tokens,
		Registry: registry,
		Tracker:  referral.NewTracker(s, registry, hub, nil),
		Reporter: analytics.NewReporter(s, true),
		Program:  analytics.NewProgram(s),
		Seeder:   demo.NewSeeder(s, svc, "http://localhost:8080", nil),
		Hub:      hub,
	})

	router := gin.New()
	h.RegisterRoutes(router)
	return &testServer{router: router, store: s, tokens: tokens, hub: hub}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (ts *testServer) register(t *testing.T, first, email, password string) (string, map[string]any) {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/register", gin.H{
		"firstName": first, "lastName": "Tester", "email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	return body["token"].(string), body["user"].(map[string]any)
}

func TestReferralFlow(t *testing.T) {
	ts := newTestServer(t)

	token, user := ts.register(t, "alice", "a@x.com", "pw")
	assert.Equal(t, float64(0), user["total_referrals"])
	assert.NotContains(t, user, "password_hash")
	assert.Regexp(t, `^[A-Z0-9]{8}$`, user["referral_code"])

	w := ts.do(t, http.MethodPost, "/api/login", gin.H{"email": "a@x.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decode(t, w)["error"])

	w = ts.do(t, http.MethodPost, "/api/login", gin.H{"email": "a@x.com", "password": "pw"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	login := decode(t, w)
	assert.Equal(t, "Login successful", login["message"])
	claims, err := ts.tokens.Verify(login["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, user["id"], claims.UserID)

	w = ts.do(t, http.MethodPost, "/api/referrals", gin.H{}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)["referral"].(map[string]any)
	linkCode := created["link_code"].(string)
	assert.True(t, strings.HasPrefix(linkCode, user["referral_code"].(string)+"-"))
	assert.Equal(t, "alice Tester", created["user_name"])
	assert.Equal(t, "http://localhost:8080/register?ref="+linkCode, created["full_url"])

	w = ts.do(t, http.MethodGet, "/api/referrals", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	referrals := decode(t, w)["referrals"].([]any)
	require.Len(t, referrals, 1)

	for i := 0; i < 3; i++ {
		w = ts.do(t, http.MethodPost, "/api/track-click/"+linkCode, gin.H{"ipAddress": "1.2.3.4", "userAgent": "test"}, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Click tracked successfully", decode(t, w)["message"])
	}

	w = ts.do(t, http.MethodGet, "/api/referrals", nil, token)
	referrals = decode(t, w)["referrals"].([]any)
	assert.Equal(t, float64(3), referrals[0].(map[string]any)["click_count"])

	w = ts.do(t, http.MethodGet, "/api/profile", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, float64(0), profile["total_referrals"], "counters are never updated by clicks")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", "a@x.com", "pw")

	w := ts.do(t, http.MethodPost, "/api/register", gin.H{
		"firstName": "eve", "lastName": "x", "email": "a@x.com", "password": "pw2",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", decode(t, w)["error"])

	w = ts.do(t, http.MethodPost, "/api/register", gin.H{"firstName": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Access token required", decode(t, w)["error"])

	w = ts.do(t, http.MethodGet, "/api/profile", nil, "not-a-jwt")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid token", decode(t, w)["error"])

	ghost, err := ts.tokens.Issue("ghost", "ghost@x.com")
	require.NoError(t, err)
	w = ts.do(t, http.MethodGet, "/api/profile", nil, ghost)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decode(t, w)["error"])

	w = ts.do(t, http.MethodPost, "/api/referrals", nil, ghost)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrackUnknownCode(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/track-click/NOPE-1", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	counts, err := ts.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Links)
	assert.Equal(t, 1, counts.Clicks)
}

func TestTrackClickFallsBackToRequestMetadata(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/track-click/REF-42", nil)
	req.RemoteAddr = "203.0.113.7:51000"
	req.Header.Set("User-Agent", "referral-test/1.0")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	clicks, err := ts.store.ClicksForLinks(context.Background(), []string{"REF-42"}, time.Time{})
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	assert.Equal(t, "203.0.113.7", clicks[0].IPAddress)
	assert.Equal(t, "referral-test/1.0", clicks[0].UserAgent)

	w = ts.do(t, http.MethodPost, "/api/track-click/REF-42", gin.H{"ipAddress": "10.0.0.1", "userAgent": "explicit"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	clicks, err = ts.store.ClicksForLinks(context.Background(), []string{"REF-42"}, time.Time{})
	require.NoError(t, err)
	require.Len(t, clicks, 2)
	var explicit int
	for _, c := range clicks {
		if c.IPAddress == "10.0.0.1" && c.UserAgent == "explicit" {
			explicit++
		}
	}
	assert.Equal(t, 1, explicit)
}

func TestRegisterPasswordTooLong(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/register", gin.H{
		"firstName": "long", "lastName": "x", "email": "long@x.com", "password": strings.Repeat("a", 73),
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Password is too long", decode(t, w)["error"])

	w = ts.do(t, http.MethodPost, "/api/login", gin.H{"email": "long@x.com", "password": strings.Repeat("a", 73)}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSeedAndDemoLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice", "a@x.com", "pw")

	w := ts.do(t, http.MethodPost, "/api/demo/seed", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Demo data created successfully", body["message"])
	creds := body["credentials"].(map[string]any)
	assert.Equal(t, demo.Email, creds["email"])
	assert.Equal(t, demo.Password, creds["password"])

	w = ts.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	health := decode(t, w)
	assert.Equal(t, "OK", health["status"])
	assert.Equal(t, float64(1), health["users_count"])
	assert.Equal(t, float64(3), health["referrals_count"])

	w = ts.do(t, http.MethodPost, "/api/login", gin.H{"email": demo.Email, "password": demo.Password}, "")
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)

	w = ts.do(t, http.MethodGet, "/api/analytics", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode(t, w)
	assert.Equal(t, 125.5, report["userStats"].(map[string]any)["total_earnings"])
	assert.Len(t, report["clickStats"], 7)
	assert.Len(t, report["topLinks"], 3)

	w = ts.do(t, http.MethodGet, "/api/achievements", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["achievements"], len(analytics.Catalogue))

	w = ts.do(t, http.MethodGet, "/api/leaderboard", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	board := decode(t, w)["leaderboard"].([]any)
	require.Len(t, board, 1)
	assert.Equal(t, "John Doe", board[0].(map[string]any)["user_name"])

	w = ts.do(t, http.MethodGet, "/api/admin/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, float64(1), stats["total_users"])
	assert.Equal(t, float64(3), stats["total_referrals"])
}

func TestInfoAndClientConfig(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, APIVersion, decode(t, w)["version"])

	w = ts.do(t, http.MethodGet, "/api/client-config", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decode(t, w)
	assert.Equal(t, true, cfg["mock_analytics"])
	assert.Equal(t, "http://localhost:8080", cfg["frontend_url"])
}

func TestClickFeed(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "alice", "a@x.com", "pw")

	w := ts.do(t, http.MethodPost, "/api/referrals", gin.H{"userName": "Bob"}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	linkCode := decode(t, w)["referral"].(map[string]any)["link_code"].(string)

	srv := httptest.NewServer(ts.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/clicks"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	claims, err := ts.tokens.Verify(token)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ts.hub.Sessions(claims.UserID) == 1 }, 2*time.Second, 10*time.Millisecond)

	w = ts.do(t, http.MethodPost, "/api/track-click/"+linkCode, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string         `json:"type"`
		Data feed.ClickData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, feed.TypeClick, msg.Type)
	assert.Equal(t, linkCode, msg.Data.LinkCode)
	assert.Equal(t, 1, msg.Data.ClickCount)
}
