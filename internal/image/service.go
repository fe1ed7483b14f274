// Package image は画像のアップロード、変形、タグ付け、QRコード生成を提供する。
package image

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/photoshare/internal/cache"
	"github.com/hitoshi/photoshare/internal/model"
	"github.com/hitoshi/photoshare/internal/repository"
	"github.com/hitoshi/photoshare/internal/tag"
)

// Transformation はCloudinaryのURL変形チャンクを表す。
type Transformation string

// 利用可能な変形。値はCloudinaryのURLに挿入されるチャンク。
const (
	TransformationCrop      Transformation = "c_thumb,g_face,h_400,w_400/"
	TransformationResize    Transformation = "c_fill,h_400,w_400/"
	TransformationRotate    Transformation = "a_10/"
	TransformationGrayscale Transformation = "e_grayscale/"
	TransformationSepia     Transformation = "e_sepia/"
	TransformationRound     Transformation = "r_max/"
)

// Transformations は指定可能な変形の一覧。リクエストの検証に使う。
var Transformations = map[string]Transformation{
	"crop":      TransformationCrop,
	"resize":    TransformationResize,
	"rotate":    TransformationRotate,
	"grayscale": TransformationGrayscale,
	"sepia":     TransformationSepia,
	"round":     TransformationRound,
}

// Uploader は画像ホスティングサービスの抽象。実装はinternal/uploadが提供する。
type Uploader interface {
	// Upload は画像をアップロードし、配信用URLを返す。
	Upload(ctx context.Context, r io.Reader, publicID string) (string, error)
	// Transform は配信URLに変形チャンクを適用した新しいURLを返す。
	Transform(ctx context.Context, url string, t Transformation) (string, error)
	// Destroy はアップロード済み画像を削除する。
	Destroy(ctx context.Context, url string) error
}

// QRGenerator はQRコード画像の生成器。実装はinternal/qrが提供する。
type QRGenerator interface {
	Encode(content string, size int) ([]byte, error)
}

// 画像スナップショットのキープレフィックス。
const imageCacheKeyPrefix = "image: "

// qrCodeSize は生成するQRコード画像の一辺のピクセル数。
const qrCodeSize = 256

// Service は画像に関するビジネスロジックを提供する。
// 画像スナップショットは変更のたびにキャッシュへ書き戻される。
type Service struct {
	images   repository.ImageRepository
	tags     *tag.Service
	uploader Uploader
	qr       QRGenerator
	store    cache.Store
	cacheTTL time.Duration
	baseURL  string
}

// NewService はServiceを生成する。baseURLはQRコードに埋め込む公開URLの起点。
func NewService(
	images repository.ImageRepository,
	tags *tag.Service,
	uploader Uploader,
	qr QRGenerator,
	store cache.Store,
	cacheTTL time.Duration,
	baseURL string,
) *Service {
	return &Service{
		images:   images,
		tags:     tags,
		uploader: uploader,
		qr:       qr,
		store:    store,
		cacheTTL: cacheTTL,
		baseURL:  baseURL,
	}
}

// Create は画像をアップロードし、タグ付きで登録する。タグは5個まで。
func (s *Service) Create(ctx context.Context, current *model.User, file io.Reader, description string, tagTitles []string) (*model.Image, error) {
	if len(tagTitles) > model.MaxTagsPerImage {
		return nil, model.NewTooManyTagsError()
	}

	tagIDs, err := s.tags.ResolveForImage(ctx, current.ID, tagTitles)
	if err != nil {
		return nil, err
	}

	imageID := uuid.New().String()
	url, err := s.uploader.Upload(ctx, file, imagePublicID(current.Username, imageID))
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	now := time.Now()
	image := &model.Image{
		ID:          imageID,
		UserID:      current.ID,
		URL:         url,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.images.Create(ctx, image); err != nil {
		return nil, fmt.Errorf("failed to create image: %w", err)
	}
	if len(tagIDs) > 0 {
		if err := s.images.ReplaceTags(ctx, imageID, tagIDs); err != nil {
			return nil, fmt.Errorf("failed to attach tags: %w", err)
		}
	}

	created, err := s.images.FindByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload image: %w", err)
	}
	s.refreshCache(ctx, created)

	slog.Info("image uploaded",
		slog.String("image_id", imageID),
		slog.String("user_id", current.ID),
		slog.Int("tags_count", len(tagIDs)),
	)
	return created, nil
}

// ListByUser は指定ユーザーの画像一覧を返す。
func (s *Service) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Image, error) {
	images, err := s.images.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

// Get は指定IDの画像を返す。キャッシュを先に照会し、ミス時はリポジトリから読む。
func (s *Service) Get(ctx context.Context, id string) (*model.Image, error) {
	if cached := s.cachedImage(ctx, id); cached != nil {
		return cached, nil
	}

	image, err := s.images.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	if image == nil {
		return nil, model.NewImageNotFoundError(id)
	}
	s.refreshCache(ctx, image)
	return image, nil
}

// Transform は画像に変形を順に適用し、URLを差し替える。所有者専用。
// namesはTransformationsのキー（crop, resize等）。未知の名前は無視する。
func (s *Service) Transform(ctx context.Context, current *model.User, id string, names []string) (*model.Image, error) {
	image, err := s.ownedImage(ctx, current, id)
	if err != nil {
		return nil, err
	}

	url := image.URL
	applied := 0
	for _, name := range names {
		t, ok := Transformations[name]
		if !ok {
			continue
		}
		url, err = s.uploader.Transform(ctx, url, t)
		if err != nil {
			return nil, fmt.Errorf("failed to transform image: %w", err)
		}
		applied++
	}
	if applied == 0 {
		return nil, model.NewValidationError("No known transformation was specified.")
	}

	if err := s.images.UpdateURL(ctx, id, url); err != nil {
		return nil, fmt.Errorf("failed to update image URL: %w", err)
	}
	image.URL = url
	image.UpdatedAt = time.Now()
	s.refreshCache(ctx, image)

	slog.Info("image transformed",
		slog.String("image_id", id),
		slog.Int("transformations_count", applied),
	)
	return image, nil
}

// UpdateDescription は画像の説明文を更新する。所有者専用。
func (s *Service) UpdateDescription(ctx context.Context, current *model.User, id, description string) (*model.Image, error) {
	image, err := s.ownedImage(ctx, current, id)
	if err != nil {
		return nil, err
	}

	if err := s.images.UpdateDescription(ctx, id, description); err != nil {
		return nil, fmt.Errorf("failed to update description: %w", err)
	}
	image.Description = description
	image.UpdatedAt = time.Now()
	s.refreshCache(ctx, image)
	return image, nil
}

// Delete は画像をホスティングサービスとリポジトリの両方から削除する。
// 所有者と管理者が実行できる。
func (s *Service) Delete(ctx context.Context, current *model.User, id string) (*model.Image, error) {
	image, err := s.images.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	if image == nil {
		return nil, model.NewImageNotFoundError(id)
	}
	if image.UserID != current.ID && current.Role != model.RoleAdministrator {
		return nil, model.NewImageNotFoundError(id)
	}

	if err := s.uploader.Destroy(ctx, image.URL); err != nil {
		slog.Warn("failed to destroy hosted image",
			slog.String("image_id", id),
			slog.String("error", err.Error()),
		)
	}
	if err := s.images.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete image: %w", err)
	}
	if err := s.store.Delete(ctx, imageCacheKeyPrefix+id); err != nil {
		slog.Warn("failed to evict image cache",
			slog.String("image_id", id),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("image deleted",
		slog.String("image_id", id),
		slog.String("user_id", current.ID),
	)
	return image, nil
}

// AddTag は画像にタグを1つ追加する。所有者専用。5個を超える追加はTooManyTagsエラー。
func (s *Service) AddTag(ctx context.Context, current *model.User, id, title string) (*model.Image, error) {
	image, err := s.ownedImage(ctx, current, id)
	if err != nil {
		return nil, err
	}
	if len(image.Tags) >= model.MaxTagsPerImage {
		return nil, model.NewTooManyTagsError()
	}

	added, err := s.tags.GetOrCreate(ctx, current.ID, title)
	if err != nil {
		return nil, err
	}
	tagIDs := make([]string, 0, len(image.Tags)+1)
	for _, t := range image.Tags {
		if t.ID == added.ID {
			// 既に付与済みなら何もしない
			return image, nil
		}
		tagIDs = append(tagIDs, t.ID)
	}
	tagIDs = append(tagIDs, added.ID)

	if err := s.images.ReplaceTags(ctx, id, tagIDs); err != nil {
		return nil, fmt.Errorf("failed to attach tag: %w", err)
	}
	return s.reload(ctx, id)
}

// RemoveTag は画像からタグを1つ外す。所有者専用。タグ自体は削除しない。
func (s *Service) RemoveTag(ctx context.Context, current *model.User, id, title string) (*model.Image, error) {
	image, err := s.ownedImage(ctx, current, id)
	if err != nil {
		return nil, err
	}

	normalized, err := tag.NormalizeTitle(title)
	if err != nil {
		return nil, err
	}
	var tagIDs []string
	found := false
	for _, t := range image.Tags {
		if t.Title == normalized {
			found = true
			continue
		}
		tagIDs = append(tagIDs, t.ID)
	}
	if !found {
		return nil, model.NewTagNotFoundError(normalized)
	}

	if err := s.images.ReplaceTags(ctx, id, tagIDs); err != nil {
		return nil, fmt.Errorf("failed to detach tag: %w", err)
	}
	return s.reload(ctx, id)
}

// QRCode は画像の公開ページURLを埋め込んだQRコードPNGを生成する。
func (s *Service) QRCode(ctx context.Context, id string) ([]byte, error) {
	image, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	png, err := s.qr.Encode(s.baseURL+"/api/images/"+image.ID, qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return png, nil
}

// ownedImage は画像を取得し、currentが所有者であることを確認する。
// 他人の画像は存在を漏らさないためImageNotFoundで拒否する。
func (s *Service) ownedImage(ctx context.Context, current *model.User, id string) (*model.Image, error) {
	image, err := s.images.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	if image == nil || image.UserID != current.ID {
		return nil, model.NewImageNotFoundError(id)
	}
	return image, nil
}

func (s *Service) reload(ctx context.Context, id string) (*model.Image, error) {
	image, err := s.images.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload image: %w", err)
	}
	s.refreshCache(ctx, image)
	return image, nil
}

// cachedImage はキャッシュからスナップショットを読む。障害や破損はミスとして扱う。
func (s *Service) cachedImage(ctx context.Context, id string) *model.Image {
	v, err := s.store.Get(ctx, imageCacheKeyPrefix+id)
	if err != nil {
		slog.Warn("image cache lookup failed", slog.String("error", err.Error()))
		return nil
	}
	if v == nil {
		return nil
	}
	var image model.Image
	if err := json.Unmarshal(v, &image); err != nil {
		slog.Warn("corrupt image cache entry", slog.String("image_id", id))
		return nil
	}
	return &image
}

func (s *Service) refreshCache(ctx context.Context, image *model.Image) {
	if image == nil {
		return
	}
	b, err := json.Marshal(image)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, imageCacheKeyPrefix+image.ID, b, s.cacheTTL); err != nil {
		slog.Warn("failed to refresh image cache",
			slog.String("image_id", image.ID),
			slog.String("error", err.Error()),
		)
	}
}

// imagePublicID はホスティングサービス上の公開IDを組み立てる。
func imagePublicID(username, imageID string) string {
	return "photoshare/" + username + "/" + imageID
}
