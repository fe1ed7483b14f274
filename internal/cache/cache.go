// Package cache はRedisをバックエンドとする汎用キーバリューキャッシュを提供する。
// トークンブラックリストとユーザーキャッシュが同じStoreを
// 異なるキー名前空間（"token: …" / "user: …"）で共有する。
package cache

import (
	"context"
	"time"
)

// Store は汎用キャッシュストアのインターフェース。
// Getはキーが存在しない場合に (nil, nil) を返す（エラーにしない）。
type Store interface {
	// Get はキーに対応する値を取得する。ミス時は (nil, nil) を返す。
	Get(ctx context.Context, key string) ([]byte, error)
	// Set は値をTTL付きで格納する。既存エントリは上書きされる。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Expire は既存キーのTTLを設定し直す。
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Delete はキーを削除する。キーが存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
}
