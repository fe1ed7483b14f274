package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/photoshare/internal/model"
)

// RateServiceInterface は評価ハンドラーが必要とするサービスインターフェース。
type RateServiceInterface interface {
	Create(ctx context.Context, current *model.User, imageID string, value int) (*model.Rate, error)
	ListByImage(ctx context.Context, imageID string) ([]*model.Rate, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Rate, error)
	AverageByImage(ctx context.Context, imageID string) (*model.ImageAvgRate, error)
	Ranked(ctx context.Context, offset, limit int) ([]*model.ImageAvgRate, error)
	Delete(ctx context.Context, id string) (*model.Rate, error)
}

// RateHandler は画像評価のHTTPハンドラー。
type RateHandler struct {
	service RateServiceInterface
}

// NewRateHandler はRateHandlerを生成する。
func NewRateHandler(service RateServiceInterface) *RateHandler {
	return &RateHandler{service: service}
}

type createRateRequest struct {
	Value int `json:"value"`
}

// rateResponse は評価のAPIレスポンス。
type rateResponse struct {
	ID        string    `json:"id"`
	ImageID   string    `json:"image_id"`
	UserID    string    `json:"user_id"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// avgRateResponse は画像と評価平均のAPIレスポンス。
type avgRateResponse struct {
	Image    imageResponse `json:"image"`
	AvgRate  float64       `json:"avg_rate"`
	HasRates bool          `json:"has_rates"`
}

func toRateResponse(rate *model.Rate) rateResponse {
	return rateResponse{
		ID:        rate.ID,
		ImageID:   rate.ImageID,
		UserID:    rate.UserID,
		Value:     rate.Value,
		CreatedAt: rate.CreatedAt,
	}
}

// Create は画像を1〜5で評価する。自分の画像と二重評価は拒否される。
// POST /api/images/{id}/rates
func (h *RateHandler) Create(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createRateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rate, err := h.service.Create(r.Context(), current, chi.URLParam(r, "id"), req.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRateResponse(rate))
}

// ListByImage は画像の評価一覧を返す。
// GET /api/images/{id}/rates
func (h *RateHandler) ListByImage(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.ListByImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]rateResponse, 0, len(rates))
	for _, rate := range rates {
		out = append(out, toRateResponse(rate))
	}
	writeJSON(w, http.StatusOK, out)
}

// AverageByImage は画像と評価平均の組を返す。評価が無い場合は
// avg_rateが0でhas_ratesがfalseになる。
// GET /api/images/{id}/rates/avg
func (h *RateHandler) AverageByImage(w http.ResponseWriter, r *http.Request) {
	avg, err := h.service.AverageByImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, avgRateResponse{
		Image:    toImageResponse(&avg.Image),
		AvgRate:  avg.AvgRate,
		HasRates: avg.HasRates,
	})
}

// ListMine は認証済みユーザー自身が付けた評価一覧を新しい順に返す。
// GET /api/rates
func (h *RateHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}

	rates, err := h.service.ListByUser(r.Context(), current.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]rateResponse, 0, len(rates))
	for _, rate := range rates {
		out = append(out, toRateResponse(rate))
	}
	writeJSON(w, http.StatusOK, out)
}

// ListByUser は指定ユーザーが付けた評価一覧を返す。
// ルーターでモデレーター以上に制限される。
// GET /api/rates/user/{id}
func (h *RateHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.ListByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]rateResponse, 0, len(rates))
	for _, rate := range rates {
		out = append(out, toRateResponse(rate))
	}
	writeJSON(w, http.StatusOK, out)
}

// Ranked は平均評価の高い順に画像と平均の組を返す。
// GET /api/rates/ranked?skip=&limit=
func (h *RateHandler) Ranked(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.service.Ranked(r.Context(), queryInt(r, "skip", 0), queryInt(r, "limit", 20))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]avgRateResponse, 0, len(ranked))
	for _, avg := range ranked {
		out = append(out, avgRateResponse{
			Image:    toImageResponse(&avg.Image),
			AvgRate:  avg.AvgRate,
			HasRates: avg.HasRates,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Delete は評価を削除し、削除された評価を返す。
// ルーターでモデレーター以上に制限される。
// DELETE /api/rates/{id}
func (h *RateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rate, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRateResponse(rate))
}
