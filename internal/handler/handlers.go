// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/photoshare/internal/auth"
	"github.com/hitoshi/photoshare/internal/middleware"
	"github.com/hitoshi/photoshare/internal/model"
)

// currentUser はコンテキストから認証済みユーザーを取得する。
// 取得できない場合は401レスポンスを書き込んでfalseを返す。
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, auth.ErrUnauthorized)
		return nil, false
	}
	return user, true
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Avatar           string    `json:"avatar"`
	Role             string    `json:"role"`
	IsEmailConfirmed bool      `json:"is_email_confirmed"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:               user.ID,
		Username:         user.Username,
		Email:            user.Email,
		Avatar:           user.Avatar,
		Role:             string(user.Role),
		IsEmailConfirmed: user.IsEmailConfirmed,
		IsActive:         user.IsActive,
		CreatedAt:        user.CreatedAt,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequest はリクエストボディの解析失敗レスポンスを書き込む。
func writeInvalidRequest(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "Failed to parse the request body.",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	})
}

// decodeJSON はリクエストボディをJSONとしてデコードする。
// 失敗時はエラーレスポンスを書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeInvalidRequest(w)
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	// アカウント状態エラー（サインアップ・ログイン・トークンフロー）
	var stateErr *auth.AccountStateError
	if errors.As(err, &stateErr) {
		status := http.StatusUnauthorized
		if stateErr.Code == model.ErrCodeAccountExists {
			status = http.StatusConflict
		}
		writeAPIErrorResponse(w, status, &model.APIError{
			Code:     stateErr.Code,
			Message:  stateErr.Message,
			Category: "auth",
			Action:   "Check the account state and try again.",
		})
		return
	}

	// スコープ不一致は他の資格情報エラーと区別して返す
	if errors.Is(err, auth.ErrInvalidScope) {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "INVALID_SCOPE",
			Message:  "Invalid scope for token",
			Category: "auth",
			Action:   "Use a token issued for this operation.",
		})
		return
	}

	// トークン検証エラー
	if errors.Is(err, auth.ErrUnauthorized) ||
		errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrExpiredToken) {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "Could not validate credentials",
			Category: "auth",
			Action:   "Log in and retry with a valid token.",
		})
		return
	}
	if errors.Is(err, auth.ErrForbidden) {
		writeAPIErrorResponse(w, http.StatusForbidden, &model.APIError{
			Code:     "FORBIDDEN",
			Message:  "Operation forbidden",
			Category: "auth",
			Action:   "This operation requires a higher role.",
		})
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUserNotFound,
		model.ErrCodeContactNotFound,
		model.ErrCodeImageNotFound,
		model.ErrCodeCommentNotFound,
		model.ErrCodeRateNotFound,
		model.ErrCodeTagNotFound:
		return http.StatusNotFound
	case model.ErrCodeContactConflict, model.ErrCodeRateRejected:
		return http.StatusConflict
	case model.ErrCodeValidation, model.ErrCodeInvalidTag, model.ErrCodeTooManyTags:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// queryInt はクエリパラメータを整数として読む。欠落・不正時はフォールバックを返す。
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
