package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/photoshare/internal/model"
)

const maxImageBytes = 32 << 20 // 32MiB

// ImageServiceInterface は画像ハンドラーが必要とするサービスインターフェース。
type ImageServiceInterface interface {
	Create(ctx context.Context, current *model.User, file io.Reader, description string, tagTitles []string) (*model.Image, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Image, error)
	Get(ctx context.Context, id string) (*model.Image, error)
	Transform(ctx context.Context, current *model.User, id string, names []string) (*model.Image, error)
	UpdateDescription(ctx context.Context, current *model.User, id, description string) (*model.Image, error)
	Delete(ctx context.Context, current *model.User, id string) (*model.Image, error)
	AddTag(ctx context.Context, current *model.User, id, title string) (*model.Image, error)
	RemoveTag(ctx context.Context, current *model.User, id, title string) (*model.Image, error)
	QRCode(ctx context.Context, id string) ([]byte, error)
}

// ImageHandler は画像管理のHTTPハンドラー。
type ImageHandler struct {
	service ImageServiceInterface
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(service ImageServiceInterface) *ImageHandler {
	return &ImageHandler{service: service}
}

// imageResponse は画像のAPIレスポンス。
type imageResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type descriptionRequest struct {
	Description string `json:"description"`
}

type transformRequest struct {
	Transformations []string `json:"transformations"`
}

type tagRequest struct {
	Title string `json:"title"`
}

func toImageResponse(img *model.Image) imageResponse {
	tags := make([]string, 0, len(img.Tags))
	for _, t := range img.Tags {
		tags = append(tags, t.Title)
	}
	return imageResponse{
		ID:          img.ID,
		UserID:      img.UserID,
		URL:         img.URL,
		Description: img.Description,
		Tags:        tags,
		CreatedAt:   img.CreatedAt,
		UpdatedAt:   img.UpdatedAt,
	}
}

func toImageListResponse(images []*model.Image) []imageResponse {
	out := make([]imageResponse, 0, len(images))
	for _, img := range images {
		out = append(out, toImageResponse(img))
	}
	return out
}

// Create は画像をアップロードする。multipart/form-dataの
// fileフィールドに画像本体、descriptionに説明文、tagsに
// カンマ区切りのタグを受け取る。タグは最大5件。
// POST /api/images
func (h *ImageHandler) Create(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	file, ok := formFile(w, r, maxImageBytes)
	if !ok {
		return
	}
	defer file.Close()

	image, err := h.service.Create(r.Context(), current, file,
		r.FormValue("description"), splitTags(r.FormValue("tags")))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toImageResponse(image))
}

// List は認証済みユーザー自身の画像一覧を返す。
// GET /api/images?skip=&limit=
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	images, err := h.service.ListByUser(r.Context(), current.ID,
		queryInt(r, "skip", 0), queryInt(r, "limit", 20))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toImageListResponse(images))
}

// Get は指定IDの画像を返す。
// GET /api/images/{id}
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	image, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toImageResponse(image))
}

// UpdateDescription は画像の説明文を更新する。所有者のみ。
// PATCH /api/images/{id}
func (h *ImageHandler) UpdateDescription(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req descriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	image, err := h.service.UpdateDescription(r.Context(), current, chi.URLParam(r, "id"), req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toImageResponse(image))
}

// Transform は画像に変換を適用し、変換後のURLを保存する。所有者のみ。
// 既知の変換名: crop, resize, rotate, grayscale, sepia, round
// POST /api/images/{id}/transform
func (h *ImageHandler) Transform(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req transformRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	image, err := h.service.Transform(r.Context(), current, chi.URLParam(r, "id"), req.Transformations)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toImageResponse(image))
}

// Delete は画像を削除し、削除された画像を返す。所有者または管理者のみ。
// DELETE /api/images/{id}
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	image, err := h.service.Delete(r.Context(), current, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toImageResponse(image))
}

// AddTag は画像にタグを追加する。所有者のみ、最大5件。
// POST /api/images/{id}/tags
func (h *ImageHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req tagRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	image, err := h.service.AddTag(r.Context(), current, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toImageResponse(image))
}

// RemoveTag は画像からタグを外す。所有者のみ。
// DELETE /api/images/{id}/tags/{title}
func (h *ImageHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	image, err := h.service.RemoveTag(r.Context(), current, chi.URLParam(r, "id"), chi.URLParam(r, "title"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toImageResponse(image))
}

// QRCode は画像ページへのリンクを埋め込んだQRコードをPNGで返す。
// GET /api/images/{id}/qr_code
func (h *ImageHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	png, err := h.service.QRCode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// splitTags はカンマ区切りのタグ文字列を分割する。空要素は捨てる。
func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}
