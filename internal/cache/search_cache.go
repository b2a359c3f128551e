// Package cache は植物種検索結果のTTL付きインメモリキャッシュを提供する。
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/sproutly/internal/model"
)

// DefaultTTL は検索結果キャッシュのデフォルト有効期間。
const DefaultTTL = 5 * time.Minute

// Clock は現在時刻を返す。テストで時刻を差し替えるために使用する。
type Clock interface {
	Now() time.Time
}

// ClockFunc は関数をClockとして扱うアダプタ。
type ClockFunc func() time.Time

// Now はClockを実装する。
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock は実時間を返すClock。
var SystemClock Clock = ClockFunc(time.Now)

// entry はキャッシュエントリ。値は置き換えのみで、更新はしない。
type entry struct {
	value    []model.Species
	storedAt time.Time
}

// SearchCache は正規化済みクエリ文字列をキーとする検索結果キャッシュ。
// 期限切れエントリはGet時に削除する（遅延失効）。容量の上限は設けない。
// 複数のゴルーチンから安全に使用できる。
type SearchCache struct {
	ttl   time.Duration
	clock Clock

	mu      sync.RWMutex
	entries map[string]entry
}

// NewSearchCache は新しいSearchCacheを生成する。
// ttlが0以下の場合はDefaultTTL、clockがnilの場合はSystemClockを使用する。
func NewSearchCache(ttl time.Duration, clock Clock) *SearchCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = SystemClock
	}
	return &SearchCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// NormalizeQuery はクエリ文字列をキャッシュキーに正規化する（前後の空白除去と小文字化）。
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Get はクエリに対応する検索結果を返す。
// エントリの経過時間がTTLを超えている場合は削除し、未ヒットとして扱う。
// 正規化後に空となるクエリは常に未ヒット。
func (c *SearchCache) Get(query string) ([]model.Species, bool) {
	key := NormalizeQuery(query)
	if key == "" {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.expired(e, c.clock.Now()) {
		c.mu.Lock()
		// ロック取得までに別のPutで置き換えられていないか確認する
		if cur, ok := c.entries[key]; ok && cur.storedAt.Equal(e.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Put は検索結果を保存する。既存エントリは丸ごと置き換える。
// 正規化後に空となるクエリは保存しない。
func (c *SearchCache) Put(query string, value []model.Species) {
	key := NormalizeQuery(query)
	if key == "" {
		return
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: c.clock.Now()}
	c.mu.Unlock()
}

// Sweep は期限切れエントリをまとめて削除し、削除件数を返す。
// 定期実行ジョブから呼び出す。Getの遅延失効と観測上の挙動は変わらない。
func (c *SearchCache) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len は現在保持しているエントリ数を返す（期限切れを含む）。
// テストおよびメトリクス用。
func (c *SearchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL は設定された有効期間を返す。
func (c *SearchCache) TTL() time.Duration {
	return c.ttl
}

func (c *SearchCache) expired(e entry, now time.Time) bool {
	return now.Sub(e.storedAt) > c.ttl
}
