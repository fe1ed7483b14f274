package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/photoshare/internal/model"
)

// PostgresTagRepo はPostgreSQLを使用したタグリポジトリ。
type PostgresTagRepo struct {
	db *sql.DB
}

// NewPostgresTagRepo はPostgresTagRepoを生成する。
func NewPostgresTagRepo(db *sql.DB) *PostgresTagRepo {
	return &PostgresTagRepo{db: db}
}

func (r *PostgresTagRepo) findOne(ctx context.Context, query string, arg any) (*model.Tag, error) {
	tag := &model.Tag{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&tag.ID, &tag.UserID, &tag.Title, &tag.CreatedAt, &tag.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tag: %w", err)
	}
	return tag, nil
}

// FindByID は指定IDのタグを取得する。見つからない場合はnilを返す。
func (r *PostgresTagRepo) FindByID(ctx context.Context, id string) (*model.Tag, error) {
	return r.findOne(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM tags WHERE id = $1`, id)
}

// FindByTitle はタイトルでタグを検索する。見つからない場合はnilを返す。
func (r *PostgresTagRepo) FindByTitle(ctx context.Context, title string) (*model.Tag, error) {
	return r.findOne(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM tags WHERE title = $1`, title)
}

// List はタグ一覧を返す。タイトルの昇順。
func (r *PostgresTagRepo) List(ctx context.Context, offset, limit int) ([]*model.Tag, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM tags
		 ORDER BY title LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		tag := &model.Tag{}
		if err := rows.Scan(&tag.ID, &tag.UserID, &tag.Title, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return tags, nil
}

// Create はタグを作成する。
func (r *PostgresTagRepo) Create(ctx context.Context, tag *model.Tag) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (id, user_id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		tag.ID, tag.UserID, tag.Title, tag.CreatedAt, tag.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tag: %w", err)
	}
	return nil
}

// UpdateTitle はタグのタイトルを変更する。
func (r *PostgresTagRepo) UpdateTitle(ctx context.Context, id, title string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tags SET title = $2, updated_at = now() WHERE id = $1`,
		id, title,
	)
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tag not found: %s", id)
	}
	return nil
}

// Delete はタグを削除する。画像との紐付けもCASCADE削除される。
func (r *PostgresTagRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tag not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ TagRepository = (*PostgresTagRepo)(nil)
