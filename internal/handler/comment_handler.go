package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/photoshare/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	Create(ctx context.Context, current *model.User, imageID, parentID, text string) (*model.Comment, error)
	ListByImage(ctx context.Context, imageID string, offset, limit int) ([]*model.Comment, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Comment, error)
	ListReplies(ctx context.Context, id string) ([]*model.Comment, error)
	Update(ctx context.Context, current *model.User, id, text string) (*model.Comment, error)
	Delete(ctx context.Context, id string) (*model.Comment, error)
}

// CommentHandler はコメント管理のHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{service: service}
}

type createCommentRequest struct {
	Text     string `json:"text"`
	ParentID string `json:"parent_id"`
}

type updateCommentRequest struct {
	Text string `json:"text"`
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID        string    `json:"id"`
	ImageID   string    `json:"image_id"`
	UserID    string    `json:"user_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		ImageID:   c.ImageID,
		UserID:    c.UserID,
		ParentID:  c.ParentID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Create は画像にコメントを投稿する。parent_idを指定すると
// トップレベルコメントへの返信になる（返信への返信は不可）。
// POST /api/images/{id}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.service.Create(r.Context(), current, chi.URLParam(r, "id"), req.ParentID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(comment))
}

// ListByImage は画像のコメント一覧を古い順に返す。
// GET /api/images/{id}/comments?skip=&limit=
func (h *CommentHandler) ListByImage(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListByImage(r.Context(), chi.URLParam(r, "id"),
		queryInt(r, "skip", 0), queryInt(r, "limit", 20))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, toCommentResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// ListMine は認証済みユーザー自身のコメント一覧を新しい順に返す。
// GET /api/comments?skip=&limit=
func (h *CommentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	comments, err := h.service.ListByUser(r.Context(), current.ID,
		queryInt(r, "skip", 0), queryInt(r, "limit", 20))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, toCommentResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// ListReplies は指定コメントへの返信一覧を返す。
// GET /api/comments/{id}/replies
func (h *CommentHandler) ListReplies(w http.ResponseWriter, r *http.Request) {
	replies, err := h.service.ListReplies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]commentResponse, 0, len(replies))
	for _, c := range replies {
		out = append(out, toCommentResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// Update はコメント本文を更新する。投稿者本人のみ。
// PUT /api/comments/{id}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req updateCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.service.Update(r.Context(), current, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCommentResponse(comment))
}

// Delete はコメントを削除し、削除されたコメントを返す。
// ルーターでモデレーター以上に制限される。
// DELETE /api/comments/{id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	comment, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCommentResponse(comment))
}
