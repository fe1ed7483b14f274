package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hitoshi/photoshare/internal/cache"
	"github.com/hitoshi/photoshare/internal/model"
)

// ユーザースナップショットのキープレフィックス。
const userCacheKeyPrefix = "user: "

// UserCache はメールアドレスをキーとするユーザースナップショットのキャッシュ。
// セッション解決の読み出し専用パスであり、ログインやパスワード更新など
// 鮮度が必要なフローはこのキャッシュを経由せずリポジトリを直接読むこと。
type UserCache struct {
	store cache.Store
	ttl   time.Duration
}

// NewUserCache はUserCacheを生成する。ttlはエントリの有効期間。
func NewUserCache(store cache.Store, ttl time.Duration) *UserCache {
	return &UserCache{store: store, ttl: ttl}
}

// Get はメールアドレスでキャッシュ済みユーザーを取得する。
// ミスの場合は (nil, nil)。キャッシュ障害や壊れたエントリもミスとして扱う。
func (c *UserCache) Get(ctx context.Context, email string) (*model.User, error) {
	v, err := c.store.Get(ctx, userCacheKeyPrefix+email)
	if err != nil {
		slog.Warn("user cache lookup failed, falling back to store",
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	if v == nil {
		return nil, nil
	}

	var user model.User
	if err := json.Unmarshal(v, &user); err != nil {
		slog.Warn("corrupt user cache entry, falling back to store",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return &user, nil
}

// Put はユーザースナップショットを上書き保存する。
// ユーザーレコードを変更した呼び出し側は、応答を返す前に必ずPutを呼び、
// キャッシュに古いスナップショットを残さないこと。
func (c *UserCache) Put(ctx context.Context, user *model.User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, userCacheKeyPrefix+user.Email, b, c.ttl)
}
