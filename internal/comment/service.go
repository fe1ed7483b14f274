// Package comment は画像へのコメントのCRUDを提供する。
// コメントは1段までのネスト（親コメントへの返信）をサポートする。
package comment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/photoshare/internal/model"
	"github.com/hitoshi/photoshare/internal/repository"
	"github.com/hitoshi/photoshare/internal/security"
)

// Service はコメントに関するビジネスロジックを提供する。
// 本文は保存前にサニタイズされ、危険なHTMLは除去される。
type Service struct {
	comments  repository.CommentRepository
	images    repository.ImageRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(comments repository.CommentRepository, images repository.ImageRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{comments: comments, images: images, sanitizer: sanitizer}
}

// Create は画像にコメントを投稿する。
// parentIDを指定すると返信になる。親は同じ画像のトップレベルコメントでなければならない。
func (s *Service) Create(ctx context.Context, current *model.User, imageID, parentID, text string) (*model.Comment, error) {
	body := s.sanitizer.Sanitize(text)
	if body == "" {
		return nil, model.NewValidationError("Comment text must not be empty.")
	}

	image, err := s.images.FindByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	if image == nil {
		return nil, model.NewImageNotFoundError(imageID)
	}

	if parentID != "" {
		parent, err := s.comments.FindByID(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("failed to find parent comment: %w", err)
		}
		if parent == nil || parent.ImageID != imageID {
			return nil, model.NewCommentNotFoundError(parentID)
		}
		// ネストは1段まで。返信への返信は許可しない。
		if parent.ParentID != "" {
			return nil, model.NewValidationError("Replies to replies are not allowed.")
		}
	}

	now := time.Now()
	comment := &model.Comment{
		ID:        uuid.New().String(),
		ImageID:   imageID,
		UserID:    current.ID,
		ParentID:  parentID,
		Text:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	slog.Info("comment created",
		slog.String("comment_id", comment.ID),
		slog.String("image_id", imageID),
		slog.Bool("is_reply", parentID != ""),
	)
	return comment, nil
}

// ListByImage は指定画像のコメント一覧を作成日時の昇順で返す。
func (s *Service) ListByImage(ctx context.Context, imageID string, offset, limit int) ([]*model.Comment, error) {
	comments, err := s.comments.ListByImage(ctx, imageID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// ListByUser は指定ユーザーが投稿したコメント一覧を新しい順に返す。
func (s *Service) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Comment, error) {
	comments, err := s.comments.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments by user: %w", err)
	}
	return comments, nil
}

// ListReplies は指定コメントへの返信一覧を返す。
func (s *Service) ListReplies(ctx context.Context, id string) ([]*model.Comment, error) {
	parent, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	if parent == nil {
		return nil, model.NewCommentNotFoundError(id)
	}

	replies, err := s.comments.ListReplies(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	return replies, nil
}

// Update はコメント本文を更新する。投稿者本人のみが更新できる。
// 他人のコメントは存在を漏らさないためCommentNotFoundで拒否する。
func (s *Service) Update(ctx context.Context, current *model.User, id, text string) (*model.Comment, error) {
	body := s.sanitizer.Sanitize(text)
	if body == "" {
		return nil, model.NewValidationError("Comment text must not be empty.")
	}

	comment, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	if comment == nil || comment.UserID != current.ID {
		return nil, model.NewCommentNotFoundError(id)
	}

	if err := s.comments.UpdateBody(ctx, id, body); err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	comment.Text = body
	comment.UpdatedAt = time.Now()
	return comment, nil
}

// Delete はコメントを削除する。子コメントも一緒に削除される。
// 呼び出し元（ハンドラ）がモデレーター以上に制限する。
func (s *Service) Delete(ctx context.Context, id string) (*model.Comment, error) {
	comment, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	if comment == nil {
		return nil, model.NewCommentNotFoundError(id)
	}

	if err := s.comments.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete comment: %w", err)
	}

	slog.Info("comment deleted", slog.String("comment_id", id))
	return comment, nil
}
