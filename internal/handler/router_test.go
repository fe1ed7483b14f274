package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/photoshare/internal/auth"
	"github.com/hitoshi/photoshare/internal/middleware"
	"github.com/hitoshi/photoshare/internal/model"
)

// routerResolver はトークン→ユーザーの解決を模倣する。
type routerResolver struct {
	users map[string]*model.User
}

var _ middleware.UserResolver = (*routerResolver)(nil)

func (m *routerResolver) ResolveCurrentUser(_ context.Context, token string) (*model.User, error) {
	user, ok := m.users[token]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return user, nil
}

// pingChecker はヘルスチェックの疎通結果を模倣する。
type pingChecker struct {
	err error
}

func (p *pingChecker) PingContext(context.Context) error { return p.err }

// newTestRouter は全サービスをデフォルト動作のモックで組んだルーターを返す。
func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()

	if deps.UserResolver == nil {
		deps.UserResolver = &routerResolver{users: map[string]*model.User{
			"user-token":  testUser("u1", model.RoleUser),
			"mod-token":   testUser("u2", model.RoleModerator),
			"admin-token": testUser("u3", model.RoleAdministrator),
		}}
	}
	if deps.RateLimiter == nil {
		rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
		t.Cleanup(rl.Stop)
		deps.RateLimiter = rl
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = &pingChecker{}
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.Mailer == nil {
		deps.Mailer = newMockMailSender()
	}
	if deps.UserService == nil {
		deps.UserService = &mockUserService{}
	}
	if deps.ContactService == nil {
		deps.ContactService = &mockContactService{}
	}
	if deps.ImageService == nil {
		deps.ImageService = &mockImageService{}
	}
	if deps.CommentService == nil {
		deps.CommentService = &mockCommentService{}
	}
	if deps.RateService == nil {
		deps.RateService = &mockRateService{}
	}
	if deps.TagService == nil {
		deps.TagService = &mockTagService{}
	}
	deps.CORSAllowedOrigin = "http://localhost:3000"

	return NewRouter(deps)
}

func doRequest(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	t.Run("正常", func(t *testing.T) {
		router := newTestRouter(t, &RouterDeps{})

		w := doRequest(router, http.MethodGet, "/health", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}

		var resp map[string]string
		decodeBody(t, w, &resp)
		if resp["status"] != "ok" {
			t.Errorf("status = %q, want ok", resp["status"])
		}
	})

	t.Run("DB疎通不可", func(t *testing.T) {
		router := newTestRouter(t, &RouterDeps{
			HealthChecker: &pingChecker{err: errors.New("connection refused")},
		})

		w := doRequest(router, http.MethodGet, "/health", "")
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}

		var resp map[string]string
		decodeBody(t, w, &resp)
		if resp["status"] != "unavailable" {
			t.Errorf("status = %q, want unavailable", resp["status"])
		}
	})
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("# metrics"))
		}),
	})

	w := doRequest(router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/users/me"},
		{http.MethodGet, "/api/contacts/"},
		{http.MethodGet, "/api/images/"},
		{http.MethodGet, "/api/tags/"},
		{http.MethodPost, "/api/auth/logout"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w := doRequest(router, p.method, p.path, "")
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			resp := parseAPIErrorResponse(t, w)
			if resp["message"] != "Could not validate credentials" {
				t.Errorf("message = %q", resp["message"])
			}
		})
	}
}

func TestRouter_AuthenticatedAccess(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := doRequest(router, http.MethodGet, "/api/users/me", "user-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["id"] != "u1" {
		t.Errorf("id = %v, want u1", resp["id"])
	}
}

func TestRouter_InvalidTokenRejected(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := doRequest(router, http.MethodGet, "/api/users/me", "forged-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_RoleGating(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"一般ユーザーはロール変更不可", http.MethodPatch, "/api/users/someone/set_role", "user-token", http.StatusForbidden},
		{"モデレーターもロール変更不可", http.MethodPatch, "/api/users/someone/set_role", "mod-token", http.StatusForbidden},
		{"一般ユーザーはコメント削除不可", http.MethodDelete, "/api/comments/c1", "user-token", http.StatusForbidden},
		{"モデレーターはコメント削除可", http.MethodDelete, "/api/comments/c1", "mod-token", http.StatusOK},
		{"管理者はコメント削除可", http.MethodDelete, "/api/comments/c1", "admin-token", http.StatusOK},
		{"一般ユーザーは評価削除不可", http.MethodDelete, "/api/rates/r1", "user-token", http.StatusForbidden},
		{"モデレーターは評価削除可", http.MethodDelete, "/api/rates/r1", "mod-token", http.StatusOK},
		{"一般ユーザーはタグ削除不可", http.MethodDelete, "/api/tags/sunset", "user-token", http.StatusForbidden},
		{"モデレーターもタグ削除不可", http.MethodDelete, "/api/tags/sunset", "mod-token", http.StatusForbidden},
		{"管理者はタグ削除可", http.MethodDelete, "/api/tags/sunset", "admin-token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.method, tt.path, tt.token)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRouter_SecurityAndCORSHeaders(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := doRequest(router, http.MethodGet, "/health", "")

	wantHeaders := map[string]string{
		"X-Content-Type-Options":           "nosniff",
		"X-Frame-Options":                  "DENY",
		"Access-Control-Allow-Origin":      "http://localhost:3000",
		"Access-Control-Allow-Credentials": "true",
	}
	for name, want := range wantHeaders {
		if got := w.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestRouter_PreflightRequest(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := doRequest(router, http.MethodOptions, "/api/users/me", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRouter_AuthRateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    100,
		AuthRate:        1,
		AuthBurst:       2,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)
	router := newTestRouter(t, &RouterDeps{RateLimiter: rl})

	// バースト分を使い切ると429になる
	var last int
	for i := 0; i < 3; i++ {
		w := doRequest(router, http.MethodGet, "/api/auth/refresh_token", "any")
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", last, http.StatusTooManyRequests)
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := doRequest(router, http.MethodGet, "/api/nosuch", "user-token")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
