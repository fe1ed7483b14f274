package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/photoshare/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, username, email, password, COALESCE(avatar, ''), role,
	COALESCE(refresh_token, ''), is_email_confirmed, is_password_valid, is_active,
	created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &user.Avatar, &user.Role,
		&user.RefreshToken, &user.IsEmailConfirmed, &user.IsPasswordValid, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// Count は登録ユーザー数を返す。
func (r *PostgresUserRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password, avatar, role, refresh_token,
		 is_email_confirmed, is_password_valid, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9, $10, $11, $12)`,
		user.ID, user.Username, user.Email, user.Password, user.Avatar, user.Role,
		user.RefreshToken, user.IsEmailConfirmed, user.IsPasswordValid, user.IsActive,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// updateColumn は単一カラムの更新とupdated_atの更新を行う共通処理。
func (r *PostgresUserRepo) updateColumn(ctx context.Context, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// UpdateRefreshToken はリフレッシュトークンを差し替える。空文字でクリアする。
func (r *PostgresUserRepo) UpdateRefreshToken(ctx context.Context, id, token string) error {
	return r.updateColumn(ctx, id,
		`UPDATE users SET refresh_token = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		id, token)
}

// ConfirmEmail はメール確認済みフラグを立てる。
func (r *PostgresUserRepo) ConfirmEmail(ctx context.Context, id string) error {
	return r.updateColumn(ctx, id,
		`UPDATE users SET is_email_confirmed = TRUE, updated_at = now() WHERE id = $1`,
		id)
}

// SetPasswordValid はパスワード有効フラグを更新する。
func (r *PostgresUserRepo) SetPasswordValid(ctx context.Context, id string, valid bool) error {
	return r.updateColumn(ctx, id,
		`UPDATE users SET is_password_valid = $2, updated_at = now() WHERE id = $1`,
		id, valid)
}

// UpdatePassword はパスワードハッシュを差し替え、パスワード有効フラグを立てる。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateColumn(ctx, id,
		`UPDATE users SET password = $2, is_password_valid = TRUE, updated_at = now() WHERE id = $1`,
		id, passwordHash)
}

// UpdateProfile はユーザー名とメールアドレスを更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id, username, email string) error {
	return r.updateColumn(ctx, id,
		`UPDATE users SET username = $2, email = $3, updated_at = now() WHERE id = $1`,
		id, username, email)
}

// UpdateAvatar はアバターURLを更新する。
func (r *PostgresUserRepo) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	return r.updateColumn(ctx, id,
		`UPDATE users SET avatar = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		id, avatarURL)
}

// SetRole はユーザーのロールを変更する。
func (r *PostgresUserRepo) SetRole(ctx context.Context, id string, role model.Role) error {
	return r.updateColumn(ctx, id,
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1`,
		id, role)
}

// SetActive はアカウントの有効/無効を切り替える。
func (r *PostgresUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.updateColumn(ctx, id,
		`UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`,
		id, active)
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
