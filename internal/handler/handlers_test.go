package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/photoshare/internal/auth"
	"github.com/hitoshi/photoshare/internal/middleware"
	"github.com/hitoshi/photoshare/internal/model"
)

// --- テストヘルパー ---

// testUser はテスト用の認証済みユーザーを返す。
func testUser(id string, role model.Role) *model.User {
	return &model.User{
		ID:               id,
		Username:         "user-" + id,
		Email:            id + "@example.com",
		Role:             role,
		IsEmailConfirmed: true,
		IsActive:         true,
	}
}

// withUser はテスト用にリクエストコンテキストへ認証済みユーザーを注入するヘルパー。
func withUser(r *http.Request, user *model.User) *http.Request {
	ctx := middleware.ContextWithUser(r.Context(), user, "test-token")
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからエラーレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeBody はレスポンスボディをvへデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestHandleServiceError_InvalidScope(t *testing.T) {
	rec := httptest.NewRecorder()
	handleServiceError(rec, auth.ErrInvalidScope)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("ステータスコードが一致しません: got %d", rec.Code)
	}
	body := parseAPIErrorResponse(t, rec)
	if body["code"] != "INVALID_SCOPE" {
		t.Errorf("エラーコードが一致しません: got %q", body["code"])
	}
	if body["message"] != "Invalid scope for token" {
		t.Errorf("メッセージが一致しません: got %q", body["message"])
	}
}

func TestHandleServiceError_ScopeDistinctFromUnauthorized(t *testing.T) {
	// スコープ不一致とその他の資格情報エラーはクライアントから区別できること
	scopeRec := httptest.NewRecorder()
	handleServiceError(scopeRec, auth.ErrInvalidScope)
	scopeBody := parseAPIErrorResponse(t, scopeRec)

	for _, err := range []error{auth.ErrUnauthorized, auth.ErrInvalidToken, auth.ErrExpiredToken} {
		rec := httptest.NewRecorder()
		handleServiceError(rec, err)
		body := parseAPIErrorResponse(t, rec)
		if body["code"] != "UNAUTHORIZED" {
			t.Errorf("%v: エラーコードが一致しません: got %q", err, body["code"])
		}
		if body["code"] == scopeBody["code"] {
			t.Errorf("%v: スコープ不一致と同じエラーコードが返されました", err)
		}
	}
}
