// Package user はユーザープロフィールの参照・更新と管理者操作を提供する。
package user

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hitoshi/photoshare/internal/auth"
	"github.com/hitoshi/photoshare/internal/model"
	"github.com/hitoshi/photoshare/internal/repository"
)

// AvatarUploader はアバター画像のアップロード先の抽象。
// 実装はinternal/uploadが提供する。
type AvatarUploader interface {
	// UploadAvatar は画像をアップロードし、表示用URLを返す。
	// 同一ユーザーの再アップロードは前の画像を上書きする。
	UploadAvatar(ctx context.Context, r io.Reader, userID string) (string, error)
}

// Service はユーザーに関するビジネスロジックを提供する。
// ユーザーレコードを変更した操作は応答前に必ずキャッシュへ書き戻す。
type Service struct {
	users     repository.UserRepository
	userCache *auth.UserCache
	avatars   AvatarUploader
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, userCache *auth.UserCache, avatars AvatarUploader) *Service {
	return &Service{users: users, userCache: userCache, avatars: avatars}
}

// GetByUsername はユーザー名でプロフィールを取得する。
func (s *Service) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(username)
	}
	return user, nil
}

// UpdateMe は現在のユーザーのユーザー名とメールアドレスを更新する。
// メールアドレスを変えると既存のアクセストークン（旧アドレスをsubjectに持つ）では
// 解決できなくなり、再ログインが必要になる。
func (s *Service) UpdateMe(ctx context.Context, current *model.User, username, email string) (*model.User, error) {
	if username != current.Username {
		existing, err := s.users.FindByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by username: %w", err)
		}
		if existing != nil && existing.ID != current.ID {
			return nil, model.NewValidationError("The username is already taken.")
		}
	}
	if email != current.Email {
		existing, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by email: %w", err)
		}
		if existing != nil && existing.ID != current.ID {
			return nil, model.NewValidationError("The email is already taken.")
		}
	}

	if err := s.users.UpdateProfile(ctx, current.ID, username, email); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	current.Username = username
	current.Email = email
	s.refreshCache(ctx, current)

	slog.Info("profile updated", slog.String("user_id", current.ID))
	return current, nil
}

// UpdateAvatar はアバター画像をアップロードし、URLをユーザーレコードへ保存する。
func (s *Service) UpdateAvatar(ctx context.Context, current *model.User, r io.Reader) (*model.User, error) {
	url, err := s.avatars.UploadAvatar(ctx, r, current.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	if err := s.users.UpdateAvatar(ctx, current.ID, url); err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}
	current.Avatar = url
	s.refreshCache(ctx, current)

	slog.Info("avatar updated", slog.String("user_id", current.ID))
	return current, nil
}

// SetRole は指定ユーザーのロールを変更する。管理者専用。
func (s *Service) SetRole(ctx context.Context, username string, role model.Role) (*model.User, error) {
	if !model.ValidRole(role) {
		return nil, model.NewValidationError(fmt.Sprintf("Unknown role: %s", role))
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(username)
	}

	if err := s.users.SetRole(ctx, user.ID, role); err != nil {
		return nil, fmt.Errorf("failed to set role: %w", err)
	}
	user.Role = role
	s.refreshCache(ctx, user)

	slog.Info("role changed",
		slog.String("user_id", user.ID),
		slog.String("role", string(role)),
	)
	return user, nil
}

// Activate は指定ユーザーを有効化する。管理者専用。
func (s *Service) Activate(ctx context.Context, username string) (*model.User, error) {
	return s.setActive(ctx, username, true)
}

// Inactivate は指定ユーザーを無効化する。管理者専用。
// 無効化されたユーザーはログインできなくなる。
func (s *Service) Inactivate(ctx context.Context, username string) (*model.User, error) {
	return s.setActive(ctx, username, false)
}

func (s *Service) setActive(ctx context.Context, username string, active bool) (*model.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(username)
	}

	if err := s.users.SetActive(ctx, user.ID, active); err != nil {
		return nil, fmt.Errorf("failed to set active flag: %w", err)
	}
	user.IsActive = active
	s.refreshCache(ctx, user)

	slog.Info("active flag changed",
		slog.String("user_id", user.ID),
		slog.Bool("is_active", active),
	)
	return user, nil
}

func (s *Service) refreshCache(ctx context.Context, user *model.User) {
	if err := s.userCache.Put(ctx, user); err != nil {
		slog.Warn("failed to refresh user cache",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}
