package handler

import (
	"context"
	"io"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/photoshare/internal/auth"
	"github.com/hitoshi/photoshare/internal/middleware"
	"github.com/hitoshi/photoshare/internal/model"
)

// アバター画像の最大サイズ（8MiB）。
const maxAvatarBytes = 8 << 20

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateMe(ctx context.Context, current *model.User, username, email string) (*model.User, error)
	UpdateAvatar(ctx context.Context, current *model.User, r io.Reader) (*model.User, error)
	SetRole(ctx context.Context, username string, role model.Role) (*model.User, error)
	Activate(ctx context.Context, username string) (*model.User, error)
	Inactivate(ctx context.Context, username string) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

type updateMeRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// Me は現在のログインユーザー情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, auth.ErrUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// GetByUsername は指定ユーザーの公開プロフィールを返す。
// GET /api/users/{username}
func (h *UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.service.GetByUsername(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateMe はユーザー名とメールアドレスを更新する。
// メールアドレスを変更すると既存のアクセストークンは無効になり、再ログインが必要になる。
// PUT /api/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	current, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, auth.ErrUnauthorized)
		return
	}

	var req updateMeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if len(username) < 3 || len(username) > 50 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("Username must be 3-50 characters."))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("Email address is invalid."))
		return
	}

	user, err := h.service.UpdateMe(r.Context(), current, username, req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateAvatar はアバター画像をアップロードする。multipart/form-dataのfileフィールドを読む。
// PATCH /api/users/avatar
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	current, err := middleware.UserFromContext(r.Context())
	if err != nil {
		handleServiceError(w, auth.ErrUnauthorized)
		return
	}

	file, ok := formFile(w, r, maxAvatarBytes)
	if !ok {
		return
	}
	defer file.Close()

	user, err := h.service.UpdateAvatar(r.Context(), current, file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// SetRole は指定ユーザーのロールを変更する。管理者専用（ルーターで制限）。
// PATCH /api/users/{username}/set_role
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req setRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.SetRole(r.Context(), username, model.Role(req.Role))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Activate は指定ユーザーを有効化する。管理者専用（ルーターで制限）。
// PATCH /api/users/{username}
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.service.Activate(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Inactivate は指定ユーザーを無効化する。アカウントは削除せず、ログインのみ拒否される。
// 管理者専用（ルーターで制限）。
// DELETE /api/users/{username}
func (h *UserHandler) Inactivate(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.service.Inactivate(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// formFile はmultipart/form-dataのfileフィールドを開く。
// 失敗時はエラーレスポンスを書き込んでfalseを返す。
func formFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (io.ReadCloser, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("A multipart/form-data body with a file field is required."))
		return nil, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("The file field is missing."))
		return nil, false
	}
	return file, true
}
