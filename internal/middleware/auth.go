// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/photoshare/internal/auth"
	"github.com/hitoshi/photoshare/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
	userContextKey = contextKey("user")

	// tokenContextKey は検証済みのアクセストークン原文を格納するためのキー。
	// ログアウト時のブラックリスト登録に使う。
	tokenContextKey = contextKey("access_token")
)

// UserResolver はアクセストークンから認証済みユーザーを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type UserResolver interface {
	ResolveCurrentUser(ctx context.Context, token string) (*model.User, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みユーザーとトークン原文をリクエストコンテキストに注入するミドルウェアを返す。
// トークンが無い、無効、失効済み、またはユーザーが見つからない場合は401を返す。
func NewAuthMiddleware(resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeUnauthorized(w)
				return
			}

			user, err := resolver.ResolveCurrentUser(r.Context(), token)
			if errors.Is(err, auth.ErrInvalidScope) {
				writeInvalidScope(w)
				return
			}
			if err != nil {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRoleMiddleware は認証済みユーザーのロールを検査するミドルウェアを返す。
// 許可されていないロールには403を返す。NewAuthMiddlewareの後に配置する。
func NewRoleMiddleware(gate *auth.RoleGate) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r.Context())
			if err != nil {
				writeUnauthorized(w)
				return
			}
			if err := gate.Allow(user); err != nil {
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     "FORBIDDEN",
					Message:  "Operation forbidden",
					Category: "auth",
					Action:   "This operation requires a higher role.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// TokenFromContext はリクエストコンテキストからアクセストークン原文を取得する。
func TokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(tokenContextKey).(string)
	if !ok || token == "" {
		return "", fmt.Errorf("access token not found in context")
	}
	return token, nil
}

// ContextWithUser はコンテキストに認証済みユーザーとトークンを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User, token string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, tokenContextKey, token)
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// 形式が不正な場合は空文字列を返す。
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// writeUnauthorized は認証失敗の統一レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "Could not validate credentials",
		Category: "auth",
		Action:   "Log in and retry with a valid access token.",
	})
}

// writeInvalidScope はスコープ不一致のレスポンスを書き込む。
// 署名は正しいが用途の違うトークン（リフレッシュトークンをアクセスに使う等）を区別する。
func writeInvalidScope(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "INVALID_SCOPE",
		Message:  "Invalid scope for token",
		Category: "auth",
		Action:   "Use a token issued for this operation.",
	})
}

// IsAuthError は認証系のエラーかどうかを判定する。ハンドラのエラーマッピングで使う。
func IsAuthError(err error) bool {
	return errors.Is(err, auth.ErrUnauthorized) ||
		errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrExpiredToken) ||
		errors.Is(err, auth.ErrInvalidScope)
}
