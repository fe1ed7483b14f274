package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/photoshare/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	comment := &model.Comment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, image_id, user_id, COALESCE(parent_id::text, ''), text, created_at, updated_at
		 FROM comments WHERE id = $1`,
		id,
	).Scan(&comment.ID, &comment.ImageID, &comment.UserID, &comment.ParentID,
		&comment.Text, &comment.CreatedAt, &comment.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment by ID: %w", err)
	}
	return comment, nil
}

// ListByImage は指定画像のコメント一覧を返す。作成日時の昇順。
func (r *PostgresCommentRepo) ListByImage(ctx context.Context, imageID string, offset, limit int) ([]*model.Comment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, image_id, user_id, COALESCE(parent_id::text, ''), text, created_at, updated_at
		 FROM comments WHERE image_id = $1
		 ORDER BY created_at
		 LIMIT $2 OFFSET $3`,
		imageID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()
	return collectComments(rows)
}

// ListByUser は指定ユーザーが投稿したコメント一覧を返す。作成日時の降順。
func (r *PostgresCommentRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Comment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, image_id, user_id, COALESCE(parent_id::text, ''), text, created_at, updated_at
		 FROM comments WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments by user: %w", err)
	}
	defer rows.Close()
	return collectComments(rows)
}

// ListReplies は指定コメントへの返信一覧を返す。作成日時の昇順。
func (r *PostgresCommentRepo) ListReplies(ctx context.Context, parentID string) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, image_id, user_id, COALESCE(parent_id::text, ''), text, created_at, updated_at
		 FROM comments WHERE parent_id = $1
		 ORDER BY created_at`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	defer rows.Close()
	return collectComments(rows)
}

func collectComments(rows *sql.Rows) ([]*model.Comment, error) {
	var comments []*model.Comment
	for rows.Next() {
		comment := &model.Comment{}
		if err := rows.Scan(&comment.ID, &comment.ImageID, &comment.UserID, &comment.ParentID,
			&comment.Text, &comment.CreatedAt, &comment.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// Create はコメントを作成する。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, image_id, user_id, parent_id, text, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7)`,
		comment.ID, comment.ImageID, comment.UserID, comment.ParentID,
		comment.Text, comment.CreatedAt, comment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// UpdateBody はコメント本文を更新する。
func (r *PostgresCommentRepo) UpdateBody(ctx context.Context, id, body string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET text = $2, updated_at = now() WHERE id = $1`,
		id, body,
	)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("comment not found: %s", id)
	}
	return nil
}

// Delete はコメントを削除する。子コメントもCASCADE削除される。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("comment not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
