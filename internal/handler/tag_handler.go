package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/photoshare/internal/model"
)

// TagServiceInterface はタグハンドラーが必要とするサービスインターフェース。
type TagServiceInterface interface {
	List(ctx context.Context, offset, limit int) ([]*model.Tag, error)
	GetByTitle(ctx context.Context, title string) (*model.Tag, error)
	UpdateTitle(ctx context.Context, title, newTitle string) (*model.Tag, error)
	Delete(ctx context.Context, title string) (*model.Tag, error)
}

// TagHandler はタグ管理のHTTPハンドラー。
type TagHandler struct {
	service TagServiceInterface
}

// NewTagHandler はTagHandlerを生成する。
func NewTagHandler(service TagServiceInterface) *TagHandler {
	return &TagHandler{service: service}
}

type updateTagRequest struct {
	Title string `json:"title"`
}

// tagResponse はタグのAPIレスポンス。
type tagResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func toTagResponse(tag *model.Tag) tagResponse {
	return tagResponse{ID: tag.ID, Title: tag.Title, CreatedAt: tag.CreatedAt}
}

// List はタグ一覧を返す。
// GET /api/tags?skip=&limit=
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.List(r.Context(), queryInt(r, "skip", 0), queryInt(r, "limit", 20))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]tagResponse, 0, len(tags))
	for _, tag := range tags {
		out = append(out, toTagResponse(tag))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetByTitle はタイトルでタグを取得する。
// GET /api/tags/{title}
func (h *TagHandler) GetByTitle(w http.ResponseWriter, r *http.Request) {
	tag, err := h.service.GetByTitle(r.Context(), chi.URLParam(r, "title"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTagResponse(tag))
}

// UpdateTitle はタグのタイトルを変更する。
// ルーターで管理者に制限される。
// PUT /api/tags/{title}
func (h *TagHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	var req updateTagRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tag, err := h.service.UpdateTitle(r.Context(), chi.URLParam(r, "title"), req.Title)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTagResponse(tag))
}

// Delete はタグを削除し、削除されたタグを返す。
// ルーターで管理者に制限される。
// DELETE /api/tags/{title}
func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tag, err := h.service.Delete(r.Context(), chi.URLParam(r, "title"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTagResponse(tag))
}
