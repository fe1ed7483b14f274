package rate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/hitoshi/photoshare/internal/model"
	"github.com/hitoshi/photoshare/internal/repository"
)

// mockRateRepo はメモリ上で動作するRateRepositoryのモック。
type mockRateRepo struct {
	rates map[string]*model.Rate
}

var _ repository.RateRepository = (*mockRateRepo)(nil)

func newMockRateRepo() *mockRateRepo {
	return &mockRateRepo{rates: make(map[string]*model.Rate)}
}

func (m *mockRateRepo) FindByID(_ context.Context, id string) (*model.Rate, error) {
	r, ok := m.rates[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (m *mockRateRepo) FindByImageAndUser(_ context.Context, imageID, userID string) (*model.Rate, error) {
	for _, r := range m.rates {
		if r.ImageID == imageID && r.UserID == userID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockRateRepo) ListByImage(_ context.Context, imageID string) ([]*model.Rate, error) {
	var rates []*model.Rate
	for _, r := range m.rates {
		if r.ImageID == imageID {
			copied := *r
			rates = append(rates, &copied)
		}
	}
	return rates, nil
}

func (m *mockRateRepo) ListByUser(_ context.Context, userID string) ([]*model.Rate, error) {
	var rates []*model.Rate
	for _, r := range m.rates {
		if r.UserID == userID {
			copied := *r
			rates = append(rates, &copied)
		}
	}
	return rates, nil
}

func (m *mockRateRepo) RankedAverages(_ context.Context, _, _ int) ([]repository.RankedAverage, error) {
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, r := range m.rates {
		sums[r.ImageID] += r.Value
		counts[r.ImageID]++
	}
	var ranked []repository.RankedAverage
	for imageID, sum := range sums {
		ranked = append(ranked, repository.RankedAverage{
			ImageID: imageID,
			AvgRate: float64(sum) / float64(counts[imageID]),
		})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].AvgRate > ranked[j].AvgRate })
	return ranked, nil
}

func (m *mockRateRepo) AverageByImage(_ context.Context, imageID string) (float64, bool, error) {
	sum, count := 0, 0
	for _, r := range m.rates {
		if r.ImageID == imageID {
			sum += r.Value
			count++
		}
	}
	if count == 0 {
		return 0, false, nil
	}
	return float64(sum) / float64(count), true, nil
}

func (m *mockRateRepo) Create(_ context.Context, rate *model.Rate) error {
	copied := *rate
	m.rates[rate.ID] = &copied
	return nil
}

func (m *mockRateRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.rates[id]; !ok {
		return fmt.Errorf("rate not found: %s", id)
	}
	delete(m.rates, id)
	return nil
}

// mockImageRepo は画像の存在確認のみを模倣する。
type mockImageRepo struct {
	images map[string]*model.Image
}

var _ repository.ImageRepository = (*mockImageRepo)(nil)

func (m *mockImageRepo) FindByID(_ context.Context, id string) (*model.Image, error) {
	img, ok := m.images[id]
	if !ok {
		return nil, nil
	}
	copied := *img
	return &copied, nil
}

func (m *mockImageRepo) ListByUser(context.Context, string, int, int) ([]*model.Image, error) {
	return nil, nil
}
func (m *mockImageRepo) Create(context.Context, *model.Image) error              { return nil }
func (m *mockImageRepo) UpdateDescription(context.Context, string, string) error { return nil }
func (m *mockImageRepo) UpdateURL(context.Context, string, string) error         { return nil }
func (m *mockImageRepo) ReplaceTags(context.Context, string, []string) error     { return nil }
func (m *mockImageRepo) Delete(context.Context, string) error                    { return nil }

func newTestService() (*Service, *mockRateRepo) {
	rates := newMockRateRepo()
	images := &mockImageRepo{images: map[string]*model.Image{
		"img-1": {ID: "img-1", UserID: "owner", CreatedAt: time.Now()},
	}}
	return NewService(rates, images), rates
}

func assertAPIError(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorを期待しましたが: %v", err)
	}
	if apiErr.Code != wantCode {
		t.Fatalf("エラーコードが一致しません: got %s, want %s", apiErr.Code, wantCode)
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService()
	user := &model.User{ID: "u1"}

	rate, err := svc.Create(context.Background(), user, "img-1", 4)
	if err != nil {
		t.Fatalf("評価の作成に失敗しました: %v", err)
	}
	if rate.Value != 4 || rate.UserID != "u1" || rate.ImageID != "img-1" {
		t.Errorf("評価の内容が一致しません: %+v", rate)
	}
}

func TestService_Create_ValueOutOfRange(t *testing.T) {
	svc, _ := newTestService()
	user := &model.User{ID: "u1"}

	for _, value := range []int{0, 6, -1} {
		_, err := svc.Create(context.Background(), user, "img-1", value)
		assertAPIError(t, err, model.ErrCodeValidation)
	}
}

func TestService_Create_OwnImageRejected(t *testing.T) {
	svc, _ := newTestService()
	owner := &model.User{ID: "owner"}

	_, err := svc.Create(context.Background(), owner, "img-1", 5)
	assertAPIError(t, err, model.ErrCodeRateRejected)
}

func TestService_Create_DuplicateRejected(t *testing.T) {
	svc, _ := newTestService()
	user := &model.User{ID: "u1"}

	if _, err := svc.Create(context.Background(), user, "img-1", 3); err != nil {
		t.Fatalf("1回目の評価に失敗しました: %v", err)
	}
	_, err := svc.Create(context.Background(), user, "img-1", 5)
	assertAPIError(t, err, model.ErrCodeRateRejected)
}

func TestService_Create_ImageNotFound(t *testing.T) {
	svc, _ := newTestService()
	user := &model.User{ID: "u1"}

	_, err := svc.Create(context.Background(), user, "missing", 3)
	assertAPIError(t, err, model.ErrCodeImageNotFound)
}

func TestService_AverageByImage(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.Create(context.Background(), &model.User{ID: "u1"}, "img-1", 2); err != nil {
		t.Fatalf("評価の作成に失敗しました: %v", err)
	}
	if _, err := svc.Create(context.Background(), &model.User{ID: "u2"}, "img-1", 5); err != nil {
		t.Fatalf("評価の作成に失敗しました: %v", err)
	}

	result, err := svc.AverageByImage(context.Background(), "img-1")
	if err != nil {
		t.Fatalf("平均評価の取得に失敗しました: %v", err)
	}
	if !result.HasRates {
		t.Error("HasRatesがfalseになっています")
	}
	if result.AvgRate != 3.5 {
		t.Errorf("平均が一致しません: got %f, want 3.5", result.AvgRate)
	}
	if result.Image.ID != "img-1" {
		t.Errorf("画像IDが一致しません: got %s", result.Image.ID)
	}
}

func TestService_AverageByImage_NoRates(t *testing.T) {
	svc, _ := newTestService()

	result, err := svc.AverageByImage(context.Background(), "img-1")
	if err != nil {
		t.Fatalf("平均評価の取得に失敗しました: %v", err)
	}
	if result.HasRates {
		t.Error("評価が無いのにHasRatesがtrueです")
	}
	if result.AvgRate != 0 {
		t.Errorf("評価が無い場合の平均は0であるべきです: got %f", result.AvgRate)
	}
}

func TestService_ListByUser(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.Create(context.Background(), &model.User{ID: "u1"}, "img-1", 4); err != nil {
		t.Fatalf("評価の作成に失敗しました: %v", err)
	}
	if _, err := svc.Create(context.Background(), &model.User{ID: "u2"}, "img-1", 2); err != nil {
		t.Fatalf("評価の作成に失敗しました: %v", err)
	}

	rates, err := svc.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("評価一覧の取得に失敗しました: %v", err)
	}
	if len(rates) != 1 || rates[0].UserID != "u1" {
		t.Errorf("指定ユーザーの評価のみが返るべきです: %+v", rates)
	}
}

func TestService_Ranked(t *testing.T) {
	rates := newMockRateRepo()
	images := &mockImageRepo{images: map[string]*model.Image{
		"img-1": {ID: "img-1", UserID: "owner", CreatedAt: time.Now()},
		"img-2": {ID: "img-2", UserID: "owner", CreatedAt: time.Now()},
	}}
	svc := NewService(rates, images)

	if _, err := svc.Create(context.Background(), &model.User{ID: "u1"}, "img-1", 2); err != nil {
		t.Fatalf("評価の作成に失敗しました: %v", err)
	}
	if _, err := svc.Create(context.Background(), &model.User{ID: "u1"}, "img-2", 5); err != nil {
		t.Fatalf("評価の作成に失敗しました: %v", err)
	}
	if _, err := svc.Create(context.Background(), &model.User{ID: "u2"}, "img-2", 4); err != nil {
		t.Fatalf("評価の作成に失敗しました: %v", err)
	}

	ranked, err := svc.Ranked(context.Background(), 0, 20)
	if err != nil {
		t.Fatalf("ランキングの取得に失敗しました: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("ランキング件数が一致しません: got %d", len(ranked))
	}
	if ranked[0].Image.ID != "img-2" || ranked[0].AvgRate != 4.5 {
		t.Errorf("1位が一致しません: %+v", ranked[0])
	}
	if ranked[1].Image.ID != "img-1" || ranked[1].AvgRate != 2 {
		t.Errorf("2位が一致しません: %+v", ranked[1])
	}
}

func TestService_Ranked_SkipsDeletedImages(t *testing.T) {
	rates := newMockRateRepo()
	images := &mockImageRepo{images: map[string]*model.Image{
		"img-1": {ID: "img-1", UserID: "owner", CreatedAt: time.Now()},
	}}
	svc := NewService(rates, images)

	if _, err := svc.Create(context.Background(), &model.User{ID: "u1"}, "img-1", 3); err != nil {
		t.Fatalf("評価の作成に失敗しました: %v", err)
	}
	// 集計後に画像が削除されたケース
	delete(images.images, "img-1")

	ranked, err := svc.Ranked(context.Background(), 0, 20)
	if err != nil {
		t.Fatalf("ランキングの取得に失敗しました: %v", err)
	}
	if len(ranked) != 0 {
		t.Errorf("削除済み画像はランキングから除外されるべきです: %+v", ranked)
	}
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Get(context.Background(), "missing")
	assertAPIError(t, err, model.ErrCodeRateNotFound)
}

func TestService_Delete(t *testing.T) {
	svc, repo := newTestService()
	user := &model.User{ID: "u1"}

	rate, err := svc.Create(context.Background(), user, "img-1", 3)
	if err != nil {
		t.Fatalf("評価の作成に失敗しました: %v", err)
	}

	deleted, err := svc.Delete(context.Background(), rate.ID)
	if err != nil {
		t.Fatalf("評価の削除に失敗しました: %v", err)
	}
	if deleted.ID != rate.ID {
		t.Errorf("削除された評価IDが一致しません: got %s", deleted.ID)
	}
	if _, ok := repo.rates[rate.ID]; ok {
		t.Error("リポジトリから削除されていません")
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Delete(context.Background(), "missing")
	assertAPIError(t, err, model.ErrCodeRateNotFound)
}
