// Package rate は画像への評価（1〜5の星）を提供する。
package rate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/photoshare/internal/model"
	"github.com/hitoshi/photoshare/internal/repository"
)

// 評価値の許容範囲。
const (
	MinValue = 1
	MaxValue = 5
)

// Service は評価に関するビジネスロジックを提供する。
// 自分の画像は評価できず、1ユーザー1画像につき1件まで。
type Service struct {
	rates  repository.RateRepository
	images repository.ImageRepository
}

// NewService はServiceを生成する。
func NewService(rates repository.RateRepository, images repository.ImageRepository) *Service {
	return &Service{rates: rates, images: images}
}

// Create は画像に評価を付ける。
func (s *Service) Create(ctx context.Context, current *model.User, imageID string, value int) (*model.Rate, error) {
	if value < MinValue || value > MaxValue {
		return nil, model.NewValidationError(fmt.Sprintf("Rate must be between %d and %d.", MinValue, MaxValue))
	}

	image, err := s.images.FindByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	if image == nil {
		return nil, model.NewImageNotFoundError(imageID)
	}
	if image.UserID == current.ID {
		return nil, model.NewRateRejectedError()
	}

	existing, err := s.rates.FindByImageAndUser(ctx, imageID, current.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing rate: %w", err)
	}
	if existing != nil {
		return nil, model.NewRateRejectedError()
	}

	now := time.Now()
	rate := &model.Rate{
		ID:        uuid.New().String(),
		ImageID:   imageID,
		UserID:    current.ID,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.rates.Create(ctx, rate); err != nil {
		return nil, fmt.Errorf("failed to create rate: %w", err)
	}

	slog.Info("image rated",
		slog.String("image_id", imageID),
		slog.String("user_id", current.ID),
		slog.Int("value", value),
	)
	return rate, nil
}

// Get は指定IDの評価を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Rate, error) {
	rate, err := s.rates.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find rate: %w", err)
	}
	if rate == nil {
		return nil, model.NewRateNotFoundError(id)
	}
	return rate, nil
}

// ListByImage は指定画像の評価一覧を返す。
func (s *Service) ListByImage(ctx context.Context, imageID string) ([]*model.Rate, error) {
	rates, err := s.rates.ListByImage(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	return rates, nil
}

// ListByUser は指定ユーザーが付けた評価一覧を新しい順に返す。
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*model.Rate, error) {
	rates, err := s.rates.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates by user: %w", err)
	}
	return rates, nil
}

// Ranked は平均評価の高い順に画像と平均の組を返す。
// 集計後に画像が削除されていた行は読み飛ばす。
func (s *Service) Ranked(ctx context.Context, offset, limit int) ([]*model.ImageAvgRate, error) {
	ranked, err := s.rates.RankedAverages(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank images: %w", err)
	}

	out := make([]*model.ImageAvgRate, 0, len(ranked))
	for _, ra := range ranked {
		image, err := s.images.FindByID(ctx, ra.ImageID)
		if err != nil {
			return nil, fmt.Errorf("failed to find image: %w", err)
		}
		if image == nil {
			continue
		}
		out = append(out, &model.ImageAvgRate{
			Image:    *image,
			AvgRate:  ra.AvgRate,
			HasRates: true,
		})
	}
	return out, nil
}

// AverageByImage は画像と平均評価の組を返す。評価が無い場合はHasRatesがfalseになる。
func (s *Service) AverageByImage(ctx context.Context, imageID string) (*model.ImageAvgRate, error) {
	image, err := s.images.FindByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	if image == nil {
		return nil, model.NewImageNotFoundError(imageID)
	}

	avg, hasRates, err := s.rates.AverageByImage(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average rate: %w", err)
	}
	return &model.ImageAvgRate{
		Image:    *image,
		AvgRate:  avg,
		HasRates: hasRates,
	}, nil
}

// Delete は評価を削除する。呼び出し元（ハンドラ）がモデレーター以上に制限する。
func (s *Service) Delete(ctx context.Context, id string) (*model.Rate, error) {
	rate, err := s.rates.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find rate: %w", err)
	}
	if rate == nil {
		return nil, model.NewRateNotFoundError(id)
	}

	if err := s.rates.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete rate: %w", err)
	}

	slog.Info("rate deleted", slog.String("rate_id", id))
	return rate, nil
}
