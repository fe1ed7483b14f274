package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/photoshare/internal/model"
)

// PostgresRateRepo はPostgreSQLを使用した画像評価リポジトリ。
type PostgresRateRepo struct {
	db *sql.DB
}

// NewPostgresRateRepo はPostgresRateRepoを生成する。
func NewPostgresRateRepo(db *sql.DB) *PostgresRateRepo {
	return &PostgresRateRepo{db: db}
}

func scanRate(row *sql.Row) (*model.Rate, error) {
	rate := &model.Rate{}
	err := row.Scan(&rate.ID, &rate.ImageID, &rate.UserID, &rate.Value,
		&rate.CreatedAt, &rate.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rate: %w", err)
	}
	return rate, nil
}

// FindByID は指定IDの評価を取得する。見つからない場合はnilを返す。
func (r *PostgresRateRepo) FindByID(ctx context.Context, id string) (*model.Rate, error) {
	return scanRate(r.db.QueryRowContext(ctx,
		`SELECT id, image_id, user_id, rate, created_at, updated_at FROM rates WHERE id = $1`,
		id))
}

// FindByImageAndUser は画像とユーザーの組で評価を検索する。見つからない場合はnilを返す。
func (r *PostgresRateRepo) FindByImageAndUser(ctx context.Context, imageID, userID string) (*model.Rate, error) {
	return scanRate(r.db.QueryRowContext(ctx,
		`SELECT id, image_id, user_id, rate, created_at, updated_at
		 FROM rates WHERE image_id = $1 AND user_id = $2`,
		imageID, userID))
}

// ListByImage は指定画像の評価一覧を返す。
func (r *PostgresRateRepo) ListByImage(ctx context.Context, imageID string) ([]*model.Rate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, image_id, user_id, rate, created_at, updated_at
		 FROM rates WHERE image_id = $1
		 ORDER BY created_at`,
		imageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	defer rows.Close()

	var rates []*model.Rate
	for rows.Next() {
		rate := &model.Rate{}
		if err := rows.Scan(&rate.ID, &rate.ImageID, &rate.UserID, &rate.Value,
			&rate.CreatedAt, &rate.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rates: %w", err)
	}
	return rates, nil
}

// ListByUser は指定ユーザーが付けた評価一覧を返す。作成日時の降順。
func (r *PostgresRateRepo) ListByUser(ctx context.Context, userID string) ([]*model.Rate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, image_id, user_id, rate, created_at, updated_at
		 FROM rates WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates by user: %w", err)
	}
	defer rows.Close()

	var rates []*model.Rate
	for rows.Next() {
		rate := &model.Rate{}
		if err := rows.Scan(&rate.ID, &rate.ImageID, &rate.UserID, &rate.Value,
			&rate.CreatedAt, &rate.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rates: %w", err)
	}
	return rates, nil
}

// RankedAverages は平均評価の高い順に画像IDと平均の組を返す。
func (r *PostgresRateRepo) RankedAverages(ctx context.Context, offset, limit int) ([]RankedAverage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT image_id, AVG(rate) AS avg_rate
		 FROM rates
		 GROUP BY image_id
		 ORDER BY avg_rate DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to rank averages: %w", err)
	}
	defer rows.Close()

	var ranked []RankedAverage
	for rows.Next() {
		var ra RankedAverage
		if err := rows.Scan(&ra.ImageID, &ra.AvgRate); err != nil {
			return nil, fmt.Errorf("failed to scan ranked average: %w", err)
		}
		ranked = append(ranked, ra)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ranked averages: %w", err)
	}
	return ranked, nil
}

// AverageByImage は指定画像の平均評価を返す。評価が1件もない場合は (0, false, nil)。
func (r *PostgresRateRepo) AverageByImage(ctx context.Context, imageID string) (float64, bool, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT AVG(rate) FROM rates WHERE image_id = $1`,
		imageID,
	).Scan(&avg)
	if err != nil {
		return 0, false, fmt.Errorf("failed to average rates: %w", err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

// Create は評価を作成する。
func (r *PostgresRateRepo) Create(ctx context.Context, rate *model.Rate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rates (id, image_id, user_id, rate, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rate.ID, rate.ImageID, rate.UserID, rate.Value, rate.CreatedAt, rate.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rate: %w", err)
	}
	return nil
}

// Delete は評価を削除する。
func (r *PostgresRateRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rate: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rate not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ RateRepository = (*PostgresRateRepo)(nil)
