package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/photoshare/internal/auth"
	"github.com/hitoshi/photoshare/internal/middleware"
	"github.com/hitoshi/photoshare/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, username, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, user *model.User, accessToken string) error
	RequestVerificationEmail(ctx context.Context, email string) (token string, already bool, err error)
	ConfirmEmail(ctx context.Context, token string) (user *model.User, already bool, err error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token string) (string, error)
	SetPassword(ctx context.Context, token, newPassword string) error
}

// MailSender は確認・リセットメールの送信インターフェース。
// mail.Senderの部分集合として定義する。
type MailSender interface {
	SendVerificationEmail(ctx context.Context, to, username, token string) error
	SendPasswordResetEmail(ctx context.Context, to, username, token string) error
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	mailer  MailSender
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, mailer MailSender) *AuthHandler {
	return &AuthHandler{
		service: service,
		mailer:  mailer,
	}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

type signupResponse struct {
	User    userResponse `json:"user"`
	Message string       `json:"message"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type passwordSetTokenResponse struct {
	PasswordSetToken string `json:"password_set_token"`
	TokenType        string `json:"token_type"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Signup は新規ユーザーを登録し、確認メールを送信する。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fieldErr := validateSignup(&req); fieldErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, fieldErr)
		return
	}

	user, err := h.service.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	token, _, err := h.service.RequestVerificationEmail(r.Context(), user.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.sendInBackground("verification", user.Email, user.Username, token, h.mailer.SendVerificationEmail)

	writeJSON(w, http.StatusCreated, signupResponse{
		User:    toUserResponse(user),
		Message: "The user successfully created. Check your email for confirmation",
	})
}

// Login はメールアドレスとパスワードでログインし、トークンペアを返す。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

// Refresh はAuthorizationヘッダーのリフレッシュトークンでトークンペアを再発行する。
// 使用済みリフレッシュトークンはブラックリストに登録され、再使用は拒否される。
// GET /api/auth/refresh_token
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		handleServiceError(w, auth.ErrUnauthorized)
		return
	}

	pair, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(pair))
}

// Logout はアクセストークンと保存済みリフレッシュトークンを失効させる。
// POST /api/auth/logout（認証必須）
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, auth.ErrUnauthorized)
		return
	}
	token, err := middleware.TokenFromContext(r.Context())
	if err != nil {
		handleServiceError(w, auth.ErrUnauthorized)
		return
	}

	if err := h.service.Logout(r.Context(), user, token); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

// RequestVerificationEmail は確認メールを再送する。
// POST /api/auth/verification_email
func (h *AuthHandler) RequestVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, already, err := h.service.RequestVerificationEmail(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if already {
		writeJSON(w, http.StatusOK, messageResponse{Message: "The email is already confirmed"})
		return
	}

	h.sendInBackground("verification", req.Email, "", token, h.mailer.SendVerificationEmail)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Check your email for confirmation"})
}

// ConfirmEmail はメール確認トークンを消費してアカウントを確認済みにする。
// GET /api/auth/confirm_email/{token}
func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	_, already, err := h.service.ConfirmEmail(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if already {
		writeJSON(w, http.StatusOK, messageResponse{Message: "The email is already confirmed"})
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Email confirmed"})
}

// RequestPasswordReset はパスワードリセットメールを送信する。
// 以降、set_passwordが完了するまでログインは拒否される。
// POST /api/auth/password_reset_email
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.sendInBackground("password reset", req.Email, "", token, h.mailer.SendPasswordResetEmail)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Check your email for a password reset"})
}

// ResetPassword はリセットトークンを消費し、パスワード設定用トークンを返す。
// GET /api/auth/reset_password/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	setToken, err := h.service.ResetPassword(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, passwordSetTokenResponse{
		PasswordSetToken: setToken,
		TokenType:        "bearer",
	})
}

// SetPassword はパスワード設定用トークンを消費して新しいパスワードを保存する。
// PATCH /api/auth/set_password/{token}
func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req setPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Password) < 8 || len(req.Password) > 72 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("Password must be 8-72 characters."))
		return
	}

	if err := h.service.SetPassword(r.Context(), token, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "The password has been reset"})
}

// sendInBackground は通知メールをレスポンスをブロックせずに送信する。
// 送信失敗はログに記録するのみで、APIレスポンスには影響しない。
func (h *AuthHandler) sendInBackground(kind, to, username, token string, send func(context.Context, string, string, string) error) {
	go func() {
		if err := send(context.Background(), to, username, token); err != nil {
			slog.Error("failed to send email",
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// validateSignup はサインアップ入力を検証する。
func validateSignup(req *signupRequest) *model.APIError {
	username := strings.TrimSpace(req.Username)
	if len(username) < 3 || len(username) > 50 {
		return model.NewValidationError("Username must be 3-50 characters.")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return model.NewValidationError("Email address is invalid.")
	}
	if len(req.Password) < 8 || len(req.Password) > 72 {
		return model.NewValidationError("Password must be 8-72 characters.")
	}
	return nil
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) string {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func toTokenResponse(pair *auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	}
}
