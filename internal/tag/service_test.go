package tag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/photoshare/internal/model"
	"github.com/hitoshi/photoshare/internal/repository"
)

// --- モック ---

type mockTagRepo struct {
	mu   sync.Mutex
	tags map[string]*model.Tag // key: title
}

func newMockTagRepo() *mockTagRepo {
	return &mockTagRepo{tags: make(map[string]*model.Tag)}
}

func (m *mockTagRepo) FindByID(_ context.Context, id string) (*model.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tag := range m.tags {
		if tag.ID == id {
			copied := *tag
			return &copied, nil
		}
	}
	return nil, nil
}
func (m *mockTagRepo) FindByTitle(_ context.Context, title string) (*model.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tag, ok := m.tags[title]; ok {
		copied := *tag
		return &copied, nil
	}
	return nil, nil
}
func (m *mockTagRepo) List(_ context.Context, _, _ int) ([]*model.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tags []*model.Tag
	for _, tag := range m.tags {
		copied := *tag
		tags = append(tags, &copied)
	}
	return tags, nil
}
func (m *mockTagRepo) Create(_ context.Context, tag *model.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *tag
	m.tags[tag.Title] = &copied
	return nil
}
func (m *mockTagRepo) UpdateTitle(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for old, tag := range m.tags {
		if tag.ID == id {
			tag.Title = title
			delete(m.tags, old)
			m.tags[title] = tag
			return nil
		}
	}
	return errors.New("tag not found")
}
func (m *mockTagRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for title, tag := range m.tags {
		if tag.ID == id {
			delete(m.tags, title)
			return nil
		}
	}
	return errors.New("tag not found")
}

var _ repository.TagRepository = (*mockTagRepo)(nil)

// --- テスト ---

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		want    string
		wantErr bool
	}{
		{"小文字化", "Nature", "nature", false},
		{"前後の空白除去", "  sunset  ", "sunset", false},
		{"記号を許容", "black_and-white.v2", "black_and-white.v2", false},
		{"1文字は短すぎる", "a", "", true},
		{"2文字はちょうど有効", "ab", "ab", false},
		{"49文字はちょうど有効", strings.Repeat("a", 49), strings.Repeat("a", 49), false},
		{"50文字は長すぎる", strings.Repeat("a", 50), "", true},
		{"空白を含む", "two words", "", true},
		{"マルチバイト文字", "自然", "", true},
		{"空文字", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTitle(tt.title)
			if tt.wantErr {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidTag {
					t.Errorf("NormalizeTitle(%q) error = %v, 期待値 INVALID_TAG", tt.title, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeTitle(%q) returned error: %v", tt.title, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, 期待値 %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestService_GetOrCreate(t *testing.T) {
	repo := newMockTagRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.GetOrCreate(ctx, "user-1", "Nature")
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if created.Title != "nature" {
		t.Errorf("Title = %q, 期待値 %q", created.Title, "nature")
	}

	// 大文字小文字が違っても同じタグを返す
	got, err := svc.GetOrCreate(ctx, "user-2", "NATURE")
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("GetOrCreate ID = %s, 期待値 %s（既存タグの再利用）", got.ID, created.ID)
	}
}

func TestService_ResolveForImage(t *testing.T) {
	repo := newMockTagRepo()
	svc := NewService(repo)
	ctx := context.Background()

	// 重複タイトルは正規化後にまとめられる
	tagIDs, err := svc.ResolveForImage(ctx, "user-1", []string{"nature", "Nature", "sunset"})
	if err != nil {
		t.Fatalf("ResolveForImage returned error: %v", err)
	}
	if len(tagIDs) != 2 {
		t.Errorf("len(tagIDs) = %d, 期待値 2", len(tagIDs))
	}
}

func TestService_ResolveForImage_TooManyTags(t *testing.T) {
	repo := newMockTagRepo()
	svc := NewService(repo)

	titles := []string{"t1", "t2", "t3", "t4", "t5", "t6"}
	_, err := svc.ResolveForImage(context.Background(), "user-1", titles)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTooManyTags {
		t.Errorf("ResolveForImage error = %v, 期待値 TOO_MANY_TAGS", err)
	}
}

func TestService_GetByTitle_NotFound(t *testing.T) {
	svc := NewService(newMockTagRepo())

	_, err := svc.GetByTitle(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTagNotFound {
		t.Errorf("GetByTitle error = %v, 期待値 TAG_NOT_FOUND", err)
	}
}

func TestService_UpdateTitle(t *testing.T) {
	repo := newMockTagRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.GetOrCreate(ctx, "user-1", "nature"); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if _, err := svc.GetOrCreate(ctx, "user-1", "sunset"); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}

	got, err := svc.UpdateTitle(ctx, "nature", "Landscape")
	if err != nil {
		t.Fatalf("UpdateTitle returned error: %v", err)
	}
	if got.Title != "landscape" {
		t.Errorf("Title = %q, 期待値 %q", got.Title, "landscape")
	}

	// 既存タイトルへの変更は拒否する
	_, err = svc.UpdateTitle(ctx, "landscape", "sunset")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Errorf("UpdateTitle error = %v, 期待値 VALIDATION_FAILED", err)
	}
}

func TestService_Delete(t *testing.T) {
	repo := newMockTagRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.GetOrCreate(ctx, "user-1", "nature"); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if _, err := svc.Delete(ctx, "nature"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := svc.GetByTitle(ctx, "nature"); err == nil {
		t.Error("削除済みタグが取得できてしまいました")
	}
}
