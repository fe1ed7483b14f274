package metrics

import (
	"context"
	"time"

	"github.com/hitoshi/photoshare/internal/cache"
)

// CacheRecorder はキャッシュのヒット・ミスを記録するインターフェース。
type CacheRecorder interface {
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
}

// InstrumentedStore はcache.Storeをラップし、Getのヒット・ミスを
// kindラベル付きで記録する。エラー時は記録しない。
type InstrumentedStore struct {
	inner cache.Store
	rec   CacheRecorder
	kind  string
}

var _ cache.Store = (*InstrumentedStore)(nil)

// NewInstrumentedStore はヒット・ミス計測付きのStoreを生成する。
// kindはメトリクスのラベル値（user、token、image等）。
func NewInstrumentedStore(inner cache.Store, rec CacheRecorder, kind string) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, rec: rec, kind: kind}
}

// Get は値を取得し、結果に応じてヒットまたはミスを記録する。
func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		s.rec.RecordCacheMiss(s.kind)
	} else {
		s.rec.RecordCacheHit(s.kind)
	}
	return value, nil
}

// Set は内側のStoreへ委譲する。
func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.inner.Set(ctx, key, value, ttl)
}

// Expire は内側のStoreへ委譲する。
func (s *InstrumentedStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.inner.Expire(ctx, key, ttl)
}

// Delete は内側のStoreへ委譲する。
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
