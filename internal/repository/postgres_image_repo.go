package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/photoshare/internal/model"
)

// PostgresImageRepo はPostgreSQLを使用した画像リポジトリ。
type PostgresImageRepo struct {
	db *sql.DB
}

// NewPostgresImageRepo はPostgresImageRepoを生成する。
func NewPostgresImageRepo(db *sql.DB) *PostgresImageRepo {
	return &PostgresImageRepo{db: db}
}

// FindByID は指定IDの画像をタグ付きで取得する。見つからない場合はnilを返す。
func (r *PostgresImageRepo) FindByID(ctx context.Context, id string) (*model.Image, error) {
	image := &model.Image{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, url, COALESCE(description, ''), created_at, updated_at
		 FROM images WHERE id = $1`,
		id,
	).Scan(&image.ID, &image.UserID, &image.URL, &image.Description, &image.CreatedAt, &image.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find image by ID: %w", err)
	}

	tags, err := r.tagsOf(ctx, image.ID)
	if err != nil {
		return nil, err
	}
	image.Tags = tags
	return image, nil
}

// ListByUser は指定ユーザーの画像一覧をタグ付きで返す。作成日時の降順。
func (r *PostgresImageRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Image, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, url, COALESCE(description, ''), created_at, updated_at
		 FROM images WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []*model.Image
	for rows.Next() {
		image := &model.Image{}
		if err := rows.Scan(&image.ID, &image.UserID, &image.URL, &image.Description,
			&image.CreatedAt, &image.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}

	for _, image := range images {
		tags, err := r.tagsOf(ctx, image.ID)
		if err != nil {
			return nil, err
		}
		image.Tags = tags
	}
	return images, nil
}

// tagsOf は画像に紐付くタグをタイトルの昇順で取得する。
func (r *PostgresImageRepo) tagsOf(ctx context.Context, imageID string) ([]model.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.user_id, t.title, t.created_at, t.updated_at
		 FROM tags t
		 JOIN image_tags it ON it.tag_id = t.id
		 WHERE it.image_id = $1
		 ORDER BY t.title`,
		imageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list image tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var tag model.Tag
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

// Create は画像を作成する。
func (r *PostgresImageRepo) Create(ctx context.Context, image *model.Image) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO images (id, user_id, url, description, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		image.ID, image.UserID, image.URL, image.Description, image.CreatedAt, image.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}
	return nil
}

// UpdateDescription は画像の説明文を更新する。
func (r *PostgresImageRepo) UpdateDescription(ctx context.Context, id, description string) error {
	return r.updateImage(ctx, id,
		`UPDATE images SET description = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		id, description)
}

// UpdateURL は画像のURLを差し替える。変形画像の保存に使う。
func (r *PostgresImageRepo) UpdateURL(ctx context.Context, id, url string) error {
	return r.updateImage(ctx, id,
		`UPDATE images SET url = $2, updated_at = now() WHERE id = $1`,
		id, url)
}

func (r *PostgresImageRepo) updateImage(ctx context.Context, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("image not found: %s", id)
	}
	return nil
}

// ReplaceTags は画像のタグ紐付けを与えられたタグIDの集合で置き換える。
func (r *PostgresImageRepo) ReplaceTags(ctx context.Context, imageID string, tagIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM image_tags WHERE image_id = $1`, imageID); err != nil {
		return fmt.Errorf("failed to clear image tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO image_tags (image_id, tag_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			imageID, tagID); err != nil {
			return fmt.Errorf("failed to attach tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete は画像を削除する。タグ紐付け、コメント、評価はCASCADE削除される。
func (r *PostgresImageRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("image not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ ImageRepository = (*PostgresImageRepo)(nil)
