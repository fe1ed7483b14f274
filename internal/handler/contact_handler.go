package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/photoshare/internal/model"
	"github.com/hitoshi/photoshare/internal/repository"
)

// ContactServiceInterface は連絡先ハンドラーが必要とするサービスインターフェース。
type ContactServiceInterface interface {
	List(ctx context.Context, userID string, filter repository.ContactFilter) ([]*model.Contact, error)
	Get(ctx context.Context, userID, id string) (*model.Contact, error)
	Create(ctx context.Context, userID string, input *model.Contact) (*model.Contact, error)
	Update(ctx context.Context, userID, id string, input *model.Contact) (*model.Contact, error)
	Delete(ctx context.Context, userID, id string) (*model.Contact, error)
	BirthdaysInNDays(ctx context.Context, userID string, n, offset, limit int) ([]*model.Contact, error)
}

// ContactHandler は連絡先管理のHTTPハンドラー。
type ContactHandler struct {
	service ContactServiceInterface
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(service ContactServiceInterface) *ContactHandler {
	return &ContactHandler{service: service}
}

// contactRequest は連絡先の作成・更新リクエストのボディ。
// Birthdayは "2006-01-02" 形式の日付文字列。
type contactRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Birthday  string `json:"birthday"`
	Address   string `json:"address"`
}

// contactResponse は連絡先のAPIレスポンス。
type contactResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Birthday  string    `json:"birthday"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toContactResponse(c *model.Contact) contactResponse {
	birthday := ""
	if !c.Birthday.IsZero() {
		birthday = c.Birthday.Format("2006-01-02")
	}
	return contactResponse{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Birthday:  birthday,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toContactListResponse(contacts []*model.Contact) []contactResponse {
	out := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, toContactResponse(c))
	}
	return out
}

// List は連絡先一覧を返す。first_name、last_name、emailの部分一致で絞り込める。
// GET /api/contacts?first_name=&last_name=&email=&skip=&limit=
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := repository.ContactFilter{
		FirstName: q.Get("first_name"),
		LastName:  q.Get("last_name"),
		Email:     q.Get("email"),
		Offset:    queryInt(r, "skip", 0),
		Limit:     queryInt(r, "limit", 20),
	}

	contacts, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toContactListResponse(contacts))
}

// Birthdays は今日からn日以内に誕生日を迎える連絡先を近い順に返す。
// GET /api/contacts/birthdays?n=7&skip=&limit=
func (h *ContactHandler) Birthdays(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	n := queryInt(r, "n", 7)
	contacts, err := h.service.BirthdaysInNDays(r.Context(), userID, n, queryInt(r, "skip", 0), queryInt(r, "limit", 20))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toContactListResponse(contacts))
}

// Get は指定IDの連絡先を返す。
// GET /api/contacts/{id}
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

// Create は連絡先を作成する。
// POST /api/contacts
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	input, ok := decodeContact(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toContactResponse(contact))
}

// Update は連絡先の全フィールドを上書きする。
// PUT /api/contacts/{id}
func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	input, ok := decodeContact(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

// Delete は連絡先を削除し、削除された連絡先を返す。
// DELETE /api/contacts/{id}
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

// decodeContact はリクエストボディを検証済みのmodel.Contactへ変換する。
func decodeContact(w http.ResponseWriter, r *http.Request) (*model.Contact, bool) {
	var req contactRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	if req.FirstName == "" || req.LastName == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("first_name and last_name are required."))
		return nil, false
	}

	var birthday time.Time
	if req.Birthday != "" {
		parsed, err := time.Parse("2006-01-02", req.Birthday)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("Birthday must be in YYYY-MM-DD format."))
			return nil, false
		}
		birthday = parsed
	}

	return &model.Contact{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Birthday:  birthday,
		Address:   req.Address,
	}, true
}

// currentUserID はコンテキストから認証済みユーザーIDを取得する。
func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return "", false
	}
	return user.ID, true
}
