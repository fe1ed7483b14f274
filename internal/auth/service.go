package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/photoshare/internal/model"
	"github.com/hitoshi/photoshare/internal/repository"
)

// TokenPair はログイン・リフレッシュで発行されるトークンの組。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// Service は認証に関するビジネスロジックを提供する。
// ユーザーレコードの読み出しは常にリポジトリを直接使い（authoritative）、
// キャッシュ経由の読み出しはResolveCurrentUserだけに限定する。
type Service struct {
	users     repository.UserRepository
	codec     *Codec
	blacklist *TokenBlacklist
	userCache *UserCache
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	codec *Codec,
	blacklist *TokenBlacklist,
	userCache *UserCache,
) *Service {
	return &Service{
		users:     users,
		codec:     codec,
		blacklist: blacklist,
		userCache: userCache,
	}
}

// Codec はトークンの発行・検証に使うCodecを返す。
func (s *Service) Codec() *Codec {
	return s.codec
}

// Signup は新規ユーザーを登録する。
// 最初に登録されたユーザーは管理者、以降はすべて一般ユーザーになる。
// 登録直後は (is_email_confirmed=false, is_password_valid=true) の状態で、
// メール確認が完了するまでログインできない。
func (s *Service) Signup(ctx context.Context, username, email, password string) (*model.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing == nil {
		existing, err = s.users.FindByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by username: %w", err)
		}
	}
	if existing != nil {
		return nil, errAccountExists()
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	role := model.RoleUser
	if count == 0 {
		role = model.RoleAdministrator
	}

	now := time.Now()
	user := &model.User{
		ID:               uuid.New().String(),
		Username:         username,
		Email:            email,
		Password:         hash,
		Avatar:           gravatarURL(email),
		Role:             role,
		IsEmailConfirmed: false,
		IsPasswordValid:  true,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.refreshCache(ctx, user)

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Login はメールアドレスとパスワードを検証し、トークンペアを発行する。
// アカウント状態の検査順序は固定:
// メール不明 → メール未確認 → パスワードリセット申請中 → 無効化済み → パスワード不一致。
// 発行したリフレッシュトークンはユーザーレコードに保存され、1つだけ有効になる。
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, errInvalidEmail()
	}
	if !user.IsEmailConfirmed {
		return nil, errEmailNotConfirmed()
	}
	if !user.IsPasswordValid {
		return nil, errPasswordResetPending()
	}
	if !user.IsActive {
		return nil, errAccountInactive()
	}
	if !VerifyPassword(password, user.Password) {
		return nil, errInvalidPassword()
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return pair, nil
}

// Refresh はリフレッシュトークンを検証し、新しいトークンペアを発行する。
// 消費されたリフレッシュトークンは即座に失効リストへ登録され、再利用できない。
// ユーザーレコードに保存されたトークンと一致しない場合、
// およびアカウントが無効化済みの場合も拒否する。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := s.blacklist.CheckNotRevoked(ctx, refreshToken); err != nil {
		return nil, ErrUnauthorized
	}

	email, err := s.codec.Decode(refreshToken, ScopeRefresh)
	if err != nil {
		return nil, s.resolveError(err)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || !user.IsActive || user.RefreshToken != refreshToken {
		return nil, ErrUnauthorized
	}

	if err := s.blacklist.Revoke(ctx, refreshToken); err != nil {
		slog.Warn("failed to revoke consumed refresh token", slog.String("error", err.Error()))
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("tokens refreshed", slog.String("user_id", user.ID))
	return pair, nil
}

// Logout はアクセストークンを失効させ、保存済みリフレッシュトークンをクリアする。
func (s *Service) Logout(ctx context.Context, user *model.User, accessToken string) error {
	if err := s.blacklist.Revoke(ctx, accessToken); err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	if user.RefreshToken != "" {
		if err := s.blacklist.Revoke(ctx, user.RefreshToken); err != nil {
			slog.Warn("failed to revoke refresh token on logout", slog.String("error", err.Error()))
		}
	}
	if err := s.users.UpdateRefreshToken(ctx, user.ID, ""); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	user.RefreshToken = ""
	s.refreshCache(ctx, user)

	slog.Info("user logged out", slog.String("user_id", user.ID))
	return nil
}

// RequestVerificationEmail はメール確認用トークンを発行する。
// 既に確認済みの場合は (token="", already=true) を返し、状態は変更しない。
func (s *Service) RequestVerificationEmail(ctx context.Context, email string) (token string, already bool, err error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", false, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return "", false, errInvalidEmail()
	}
	if user.IsEmailConfirmed {
		return "", true, nil
	}

	token, err = s.codec.IssueDefault(user.Email, ScopeEmailVerification)
	if err != nil {
		return "", false, err
	}
	return token, false, nil
}

// ConfirmEmail はメール確認用トークンを消費し、メール確認済み状態へ遷移させる。
// 既に確認済みのアカウントに対しては (already=true) を返し、状態もトークンも変更しない。
// 遷移が起きた場合のみ消費したトークンを失効リストへ登録する。
func (s *Service) ConfirmEmail(ctx context.Context, token string) (user *model.User, already bool, err error) {
	if err := s.blacklist.CheckNotRevoked(ctx, token); err != nil {
		return nil, false, ErrUnauthorized
	}

	email, err := s.codec.Decode(token, ScopeEmailVerification)
	if err != nil {
		return nil, false, s.resolveError(err)
	}

	user, err = s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, false, ErrUnauthorized
	}
	if user.IsEmailConfirmed {
		return user, true, nil
	}
	if !user.IsPasswordValid {
		// パスワードリセット中の確認は許可しない
		return nil, false, errPasswordResetPending()
	}

	if err := s.users.ConfirmEmail(ctx, user.ID); err != nil {
		return nil, false, fmt.Errorf("failed to confirm email: %w", err)
	}
	user.IsEmailConfirmed = true
	s.refreshCache(ctx, user)

	if err := s.blacklist.Revoke(ctx, token); err != nil {
		slog.Warn("failed to revoke consumed verification token", slog.String("error", err.Error()))
	}

	slog.Info("email confirmed", slog.String("user_id", user.ID))
	return user, false, nil
}

// RequestPasswordReset はパスワードリセット用トークンを発行し、
// アカウントを (is_password_valid=false) のリセット申請中状態へ遷移させる。
// メール未確認のアカウントには発行しない。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return "", errInvalidEmail()
	}
	if !user.IsEmailConfirmed {
		return "", errEmailNotConfirmed()
	}

	if err := s.users.SetPasswordValid(ctx, user.ID, false); err != nil {
		return "", fmt.Errorf("failed to mark password reset pending: %w", err)
	}
	user.IsPasswordValid = false
	s.refreshCache(ctx, user)

	token, err := s.codec.IssueDefault(user.Email, ScopePasswordReset)
	if err != nil {
		return "", err
	}

	slog.Info("password reset requested", slog.String("user_id", user.ID))
	return token, nil
}

// ResetPassword はパスワードリセット用トークンを消費し、
// 新パスワード設定用の短命トークンを発行する。消費したトークンは失効リストへ登録する。
// リセット申請中でないアカウントに対しては拒否する。
func (s *Service) ResetPassword(ctx context.Context, token string) (string, error) {
	if err := s.blacklist.CheckNotRevoked(ctx, token); err != nil {
		return "", ErrUnauthorized
	}

	email, err := s.codec.Decode(token, ScopePasswordReset)
	if err != nil {
		return "", s.resolveError(err)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return "", ErrUnauthorized
	}
	if user.IsPasswordValid {
		return "", errPasswordResetNotRequested()
	}

	if err := s.blacklist.Revoke(ctx, token); err != nil {
		slog.Warn("failed to revoke consumed reset token", slog.String("error", err.Error()))
	}

	setToken, err := s.codec.IssueDefault(user.Email, ScopePasswordSet)
	if err != nil {
		return "", err
	}

	slog.Info("password reset confirmed", slog.String("user_id", user.ID))
	return setToken, nil
}

// SetPassword は新パスワード設定用トークンを消費し、パスワードハッシュを差し替えて
// アカウントを通常状態 (is_password_valid=true) へ戻す。
// 消費したトークンは失効リストへ登録する。
func (s *Service) SetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.blacklist.CheckNotRevoked(ctx, token); err != nil {
		return ErrUnauthorized
	}

	email, err := s.codec.Decode(token, ScopePasswordSet)
	if err != nil {
		return s.resolveError(err)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return ErrUnauthorized
	}
	if user.IsPasswordValid {
		return errPasswordResetNotRequested()
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	user.Password = hash
	user.IsPasswordValid = true
	s.refreshCache(ctx, user)

	if err := s.blacklist.Revoke(ctx, token); err != nil {
		slog.Warn("failed to revoke consumed password set token", slog.String("error", err.Error()))
	}

	slog.Info("password updated", slog.String("user_id", user.ID))
	return nil
}

// ResolveCurrentUser はアクセストークンからユーザーを解決する。
// 失効リスト → 署名・スコープ検証 → キャッシュ → リポジトリ、の順で照会し、
// リポジトリにしかなかった場合はキャッシュへ書き戻す。
// 無効化済みアカウントはトークンが有効期限内でも解決しない。
// スコープ不一致はErrInvalidScopeを、それ以外の失敗はErrUnauthorizedを返す。
func (s *Service) ResolveCurrentUser(ctx context.Context, accessToken string) (*model.User, error) {
	if err := s.blacklist.CheckNotRevoked(ctx, accessToken); err != nil {
		return nil, ErrUnauthorized
	}

	email, err := s.codec.Decode(accessToken, ScopeAccess)
	if err != nil {
		return nil, s.resolveError(err)
	}

	if cached, _ := s.userCache.Get(ctx, email); cached != nil {
		if !cached.IsActive {
			return nil, ErrUnauthorized
		}
		return cached, nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrUnauthorized
	}

	s.refreshCache(ctx, user)
	return user, nil
}

// issuePair はアクセストークンとリフレッシュトークンを発行し、
// リフレッシュトークンをユーザーレコードへ保存する。
func (s *Service) issuePair(ctx context.Context, user *model.User) (*TokenPair, error) {
	access, err := s.codec.IssueDefault(user.Email, ScopeAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.IssueDefault(user.Email, ScopeRefresh)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateRefreshToken(ctx, user.ID, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	user.RefreshToken = refresh
	s.refreshCache(ctx, user)

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

// refreshCache はユーザースナップショットをキャッシュへ書き戻す。
// キャッシュ障害はリクエストを失敗させず、警告ログに留める。
func (s *Service) refreshCache(ctx context.Context, user *model.User) {
	if err := s.userCache.Put(ctx, user); err != nil {
		slog.Warn("failed to refresh user cache",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

// resolveError はトークン検証エラーをHTTP境界向けのエラーへ変換する。
// スコープ不一致だけは区別して返し、それ以外は一律ErrUnauthorizedに畳む。
func (s *Service) resolveError(err error) error {
	if errors.Is(err, ErrInvalidScope) {
		return ErrInvalidScope
	}
	return ErrUnauthorized
}
