// Package tag は画像タグのCRUDと正規化を提供する。
package tag

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/photoshare/internal/model"
	"github.com/hitoshi/photoshare/internal/repository"
)

// タイトルは2〜49文字の英数字と「_」「.」「-」のみ。
var titlePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// NormalizeTitle はタグタイトルを検証し、保存形式（小文字）へ正規化する。
// 不正なタイトルはInvalidTagエラーを返す。
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if len(title) < 2 || len(title) > 49 || !titlePattern.MatchString(title) {
		return "", model.NewInvalidTagError()
	}
	return strings.ToLower(title), nil
}

// Service はタグに関するビジネスロジックを提供する。
// タイトルは全ユーザーで共有され、小文字で一意に保存される。
type Service struct {
	tags repository.TagRepository
}

// NewService はServiceを生成する。
func NewService(tags repository.TagRepository) *Service {
	return &Service{tags: tags}
}

// List はタグ一覧を返す。
func (s *Service) List(ctx context.Context, offset, limit int) ([]*model.Tag, error) {
	tags, err := s.tags.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// GetByTitle はタイトルでタグを取得する。見つからない場合はTagNotFoundエラー。
func (s *Service) GetByTitle(ctx context.Context, title string) (*model.Tag, error) {
	normalized, err := NormalizeTitle(title)
	if err != nil {
		return nil, err
	}
	tag, err := s.tags.FindByTitle(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find tag: %w", err)
	}
	if tag == nil {
		return nil, model.NewTagNotFoundError(normalized)
	}
	return tag, nil
}

// GetOrCreate はタイトルのタグを取得し、存在しない場合は作成する。
// userIDは新規作成時の作成者として記録される。
func (s *Service) GetOrCreate(ctx context.Context, userID, title string) (*model.Tag, error) {
	normalized, err := NormalizeTitle(title)
	if err != nil {
		return nil, err
	}

	tag, err := s.tags.FindByTitle(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find tag: %w", err)
	}
	if tag != nil {
		return tag, nil
	}

	now := time.Now()
	tag = &model.Tag{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	slog.Info("tag created",
		slog.String("tag_id", tag.ID),
		slog.String("title", normalized),
	)
	return tag, nil
}

// ResolveForImage は画像に付与するタグタイトル群をタグIDへ解決する。
// 重複タイトルは正規化後にまとめ、上限を超える場合はTooManyTagsエラー。
func (s *Service) ResolveForImage(ctx context.Context, userID string, titles []string) ([]string, error) {
	seen := make(map[string]struct{}, len(titles))
	var tagIDs []string
	for _, title := range titles {
		normalized, err := NormalizeTitle(title)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}

		tag, err := s.GetOrCreate(ctx, userID, normalized)
		if err != nil {
			return nil, err
		}
		tagIDs = append(tagIDs, tag.ID)
	}
	if len(tagIDs) > model.MaxTagsPerImage {
		return nil, model.NewTooManyTagsError()
	}
	return tagIDs, nil
}

// UpdateTitle はタグのタイトルを変更する。モデレーター以上専用。
func (s *Service) UpdateTitle(ctx context.Context, title, newTitle string) (*model.Tag, error) {
	tag, err := s.GetByTitle(ctx, title)
	if err != nil {
		return nil, err
	}

	normalized, err := NormalizeTitle(newTitle)
	if err != nil {
		return nil, err
	}
	existing, err := s.tags.FindByTitle(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find tag: %w", err)
	}
	if existing != nil && existing.ID != tag.ID {
		return nil, model.NewValidationError(fmt.Sprintf("Tag already exists: %s", normalized))
	}

	if err := s.tags.UpdateTitle(ctx, tag.ID, normalized); err != nil {
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}
	tag.Title = normalized
	return tag, nil
}

// Delete はタイトルのタグを削除する。管理者専用。
func (s *Service) Delete(ctx context.Context, title string) (*model.Tag, error) {
	tag, err := s.GetByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if err := s.tags.Delete(ctx, tag.ID); err != nil {
		return nil, fmt.Errorf("failed to delete tag: %w", err)
	}

	slog.Info("tag deleted", slog.String("tag_id", tag.ID))
	return tag, nil
}
