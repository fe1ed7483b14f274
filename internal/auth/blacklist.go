package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/photoshare/internal/cache"
)

// 失効エントリのキープレフィックス。ユーザーキャッシュとは名前空間を分ける。
const blacklistKeyPrefix = "token: "

// revokeGrace は失効エントリのTTLに加える猶予時間。
// クロックずれで期限切れ直前のトークンがすり抜けるのを防ぐ。
const revokeGrace = 600 * time.Second

// TokenBlacklist はキャッシュストアを使ったトークン失効リスト。
// エントリのTTLはトークン自身の残存期間+猶予時間であり、明示的な削除はしない。
type TokenBlacklist struct {
	store cache.Store
	codec *Codec
	now   func() time.Time
}

// NewTokenBlacklist はTokenBlacklistを生成する。
func NewTokenBlacklist(store cache.Store, codec *Codec) *TokenBlacklist {
	return &TokenBlacklist{store: store, codec: codec, now: time.Now}
}

// SetClock は現在時刻の取得関数を差し替える。テスト用。
func (b *TokenBlacklist) SetClock(now func() time.Time) {
	b.now = now
}

// Revoke はトークンを失効済みとして登録する。
// TTLはトークンのexpクレームから計算した残存期間+猶予時間。
// 猶予を加えても残存期間が0以下（とうに期限切れ）の場合は何も登録しない。
func (b *TokenBlacklist) Revoke(ctx context.Context, token string) error {
	exp, err := b.codec.ExpiryOf(token)
	if err != nil {
		// 期限を読み取れないトークンはそもそも検証を通らないため登録不要
		slog.Warn("skipping revocation of unreadable token", slog.String("error", err.Error()))
		return nil
	}

	ttl := exp.Sub(b.now()) + revokeGrace
	if ttl <= 0 {
		return nil
	}
	return b.store.Set(ctx, blacklistKeyPrefix+token, []byte("true"), ttl)
}

// IsRevoked はトークンが失効リストに登録されているかを返す。
func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	v, err := b.store.Get(ctx, blacklistKeyPrefix+token)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// CheckNotRevoked はトークンが失効済みの場合ErrInvalidTokenを返す。
// クレームの解読より前に呼び、失効済みトークンをそれ以上処理させない。
// キャッシュ障害時は未登録として扱い、後続の署名検証に委ねる。
func (b *TokenBlacklist) CheckNotRevoked(ctx context.Context, token string) error {
	revoked, err := b.IsRevoked(ctx, token)
	if err != nil {
		slog.Warn("blacklist lookup failed, treating token as not revoked",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if revoked {
		return ErrInvalidToken
	}
	return nil
}
