package cache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry は値と有効期限の組。expiresAtがゼロ値の場合は無期限。
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore はプロセス内メモリによるStore実装。
// Redisを用意できない単体テストおよびローカル開発用。
// TTLは読み出し時に遅延評価される（バックグラウンド掃除はしない）。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock は現在時刻の取得関数を差し替える。TTL挙動のテスト用。
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get はキーに対応する値を取得する。ミスまたは期限切れの場合は (nil, nil) を返す。
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		return nil, nil
	}
	return e.value, nil
}

// Set は値をTTL付きで格納する。ttlが0以下の場合は有効期限なしで格納する。
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Expire は既存キーのTTLを設定し直す。キーが存在しない場合は何もしない。
func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	s.entries[key] = e
	return nil
}

// Delete はキーを削除する。キーが存在しない場合は何もしない。
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len は格納されているエントリ数を返す（期限切れ含む）。テスト用。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
