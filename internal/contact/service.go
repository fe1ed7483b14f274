// Package contact は連絡先のCRUDと誕生日検索のビジネスロジックを提供する。
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/photoshare/internal/model"
	"github.com/hitoshi/photoshare/internal/repository"
)

// Service は連絡先に関するビジネスロジックを提供する。
// 連絡先は所有者にしか見えず、全操作がuserIDでスコープされる。
type Service struct {
	contacts repository.ContactRepository
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(contacts repository.ContactRepository) *Service {
	return &Service{contacts: contacts, now: time.Now}
}

// SetClock は現在時刻の取得関数を差し替える。誕生日計算のテスト用。
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// List は連絡先一覧をフィルタ付きで返す。
func (s *Service) List(ctx context.Context, userID string, filter repository.ContactFilter) ([]*model.Contact, error) {
	contacts, err := s.contacts.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// Get は指定IDの連絡先を返す。見つからない場合はContactNotFoundエラー。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Contact, error) {
	contact, err := s.contacts.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}
	if contact == nil {
		return nil, model.NewContactNotFoundError(id)
	}
	return contact, nil
}

// Create は連絡先を作成する。
// 同一ユーザー内でメールまたは電話番号が重複する場合はContactConflictエラー。
func (s *Service) Create(ctx context.Context, userID string, input *model.Contact) (*model.Contact, error) {
	exists, err := s.contacts.ExistsByEmailOrPhone(ctx, userID, input.Email, input.Phone, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check contact uniqueness: %w", err)
	}
	if exists {
		return nil, model.NewContactConflictError()
	}

	now := s.now()
	contact := &model.Contact{
		ID:        uuid.New().String(),
		UserID:    userID,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Phone:     input.Phone,
		Birthday:  input.Birthday,
		Address:   input.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	slog.Info("contact created",
		slog.String("contact_id", contact.ID),
		slog.String("user_id", userID),
	)
	return contact, nil
}

// Update は連絡先を上書き更新する。
func (s *Service) Update(ctx context.Context, userID, id string, input *model.Contact) (*model.Contact, error) {
	contact, err := s.contacts.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}
	if contact == nil {
		return nil, model.NewContactNotFoundError(id)
	}

	exists, err := s.contacts.ExistsByEmailOrPhone(ctx, userID, input.Email, input.Phone, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check contact uniqueness: %w", err)
	}
	if exists {
		return nil, model.NewContactConflictError()
	}

	contact.FirstName = input.FirstName
	contact.LastName = input.LastName
	contact.Email = input.Email
	contact.Phone = input.Phone
	contact.Birthday = input.Birthday
	contact.Address = input.Address
	contact.UpdatedAt = s.now()
	if err := s.contacts.Update(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	return contact, nil
}

// Delete は連絡先を削除し、削除した連絡先を返す。
func (s *Service) Delete(ctx context.Context, userID, id string) (*model.Contact, error) {
	contact, err := s.contacts.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}
	if contact == nil {
		return nil, model.NewContactNotFoundError(id)
	}
	if err := s.contacts.Delete(ctx, userID, id); err != nil {
		return nil, fmt.Errorf("failed to delete contact: %w", err)
	}

	slog.Info("contact deleted",
		slog.String("contact_id", id),
		slog.String("user_id", userID),
	)
	return contact, nil
}

// BirthdaysInNDays は今日からn日以内（n=1は今日のみ）に誕生日を迎える
// 連絡先を、誕生日の近い順に返す。結果にoffset/limitを適用する。
func (s *Service) BirthdaysInNDays(ctx context.Context, userID string, n, offset, limit int) ([]*model.Contact, error) {
	contacts, err := s.contacts.List(ctx, userID, repository.ContactFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}

	result := upcomingBirthdays(contacts, s.now(), n)
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// isLeapYear はグレゴリオ暦の閏年判定。
func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// dateOnly は時刻部分を切り捨てたUTC日付を返す。日数差の計算を正確にするため。
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// upcomingBirthdays は誕生日が今日からn日以内の連絡先を近い順に選び出す。
//   - 平年の2月29日生まれは3月1日扱いにする。
//   - 対象期間が年をまたぐ場合は翌年の誕生日として数え直す。
//   - 同じ日の中では2月29日生まれ（3月1日扱い）を先に並べる。
func upcomingBirthdays(contacts []*model.Contact, now time.Time, n int) []*model.Contact {
	if n <= 0 {
		return nil
	}

	today := dateOnly(now)
	leap := isLeapYear(today.Year())
	daysInYear := 365
	if leap {
		daysInYear = 366
	}
	lastDate := today.AddDate(0, 0, n-1)
	spansNextYear := lastDate.Year() != today.Year()

	type entry struct {
		contact *model.Contact
		delta   int
		leapDay bool
		order   int // 入力順を保持するための連番
	}
	var entries []entry

	for i, contact := range contacts {
		birthday := dateOnly(contact.Birthday)
		var thisYear time.Time
		leapDay := false
		if !leap && birthday.Month() == time.February && birthday.Day() == 29 {
			thisYear = time.Date(today.Year(), time.March, 1, 0, 0, 0, 0, time.UTC)
			leapDay = true
		} else {
			thisYear = time.Date(today.Year(), birthday.Month(), birthday.Day(), 0, 0, 0, 0, time.UTC)
		}

		delta := int(thisYear.Sub(today).Hours() / 24)
		if spansNextYear && delta < n-daysInYear {
			delta += daysInYear
		}
		if delta >= 0 && delta < n {
			entries = append(entries, entry{contact: contact, delta: delta, leapDay: leapDay, order: i})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].delta != entries[j].delta {
			return entries[i].delta < entries[j].delta
		}
		if entries[i].leapDay != entries[j].leapDay {
			return entries[i].leapDay
		}
		return entries[i].order < entries[j].order
	})

	result := make([]*model.Contact, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.contact)
	}
	return result
}
