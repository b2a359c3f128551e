package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/sproutly/internal/model"
)

// fakeClock はテスト用の手動で進める時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func species(id int64, name string) model.Species {
	return model.Species{ID: id, CommonName: name, ScientificName: name}
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tomato", "tomato"},
		{"  Tomato  ", "tomato"},
		{"TOMATO", "tomato"},
		{"\tBasil\n", "basil"},
		{"   ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeQuery(tt.in), "NormalizeQuery(%q)", tt.in)
	}
}

func TestSearchCache_HitWithinTTL_IsCaseInsensitive(t *testing.T) {
	clock := newFakeClock()
	c := NewSearchCache(300*time.Second, clock)
	x := []model.Species{species(1, "Tomato")}

	c.Put("tomato", x)
	clock.Advance(100 * time.Second)

	got, ok := c.Get("tomato")
	require.True(t, ok)
	assert.Equal(t, x, got)

	got, ok = c.Get("TOMATO")
	require.True(t, ok, "normalized keys should share an entry")
	assert.Equal(t, x, got)

	got, ok = c.Get("  Tomato ")
	require.True(t, ok)
	assert.Equal(t, x, got)
}

func TestSearchCache_MissAfterTTL_EvictsEntry(t *testing.T) {
	clock := newFakeClock()
	c := NewSearchCache(300*time.Second, clock)

	c.Put("basil", []model.Species{species(2, "Basil")})
	require.Equal(t, 1, c.Len())

	clock.Advance(301 * time.Second)

	got, ok := c.Get("basil")
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, 0, c.Len(), "stale entry should be evicted at read time")
}

func TestSearchCache_ExactlyAtTTL_IsStillFresh(t *testing.T) {
	clock := newFakeClock()
	c := NewSearchCache(300*time.Second, clock)

	c.Put("mint", []model.Species{species(3, "Mint")})
	clock.Advance(300 * time.Second)

	_, ok := c.Get("mint")
	assert.True(t, ok, "an entry is stale only once its age exceeds the TTL")
}

func TestSearchCache_EmptyQuery_NeverStoredOrFound(t *testing.T) {
	c := NewSearchCache(time.Minute, newFakeClock())

	c.Put("   ", []model.Species{species(1, "x")})
	assert.Equal(t, 0, c.Len())

	_, ok := c.Get("")
	assert.False(t, ok)
}

func TestSearchCache_PutReplacesWholesale(t *testing.T) {
	clock := newFakeClock()
	c := NewSearchCache(300*time.Second, clock)

	c.Put("rose", []model.Species{species(1, "Old")})
	clock.Advance(200 * time.Second)
	c.Put("Rose", []model.Species{species(2, "New")})
	clock.Advance(200 * time.Second)

	// 置き換え時点から200秒しか経過していないため有効
	got, ok := c.Get("rose")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestSearchCache_Sweep_RemovesOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	c := NewSearchCache(300*time.Second, clock)

	c.Put("old", []model.Species{species(1, "old")})
	clock.Advance(250 * time.Second)
	c.Put("new", []model.Species{species(2, "new")})
	clock.Advance(100 * time.Second)

	removed := c.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("new")
	assert.True(t, ok)
}

func TestNewSearchCache_Defaults(t *testing.T) {
	c := NewSearchCache(0, nil)
	assert.Equal(t, DefaultTTL, c.TTL())

	c.Put("fern", []model.Species{species(1, "Fern")})
	_, ok := c.Get("fern")
	assert.True(t, ok)
}

func TestSearchCache_ConcurrentAccess(t *testing.T) {
	c := NewSearchCache(time.Minute, newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := fmt.Sprintf("plant-%d", i%5)
			c.Put(q, []model.Species{species(int64(i), q)})
			if got, ok := c.Get(q); ok {
				// 置き換えは丸ごと行われるため、常に1件のスライスが見える
				assert.Len(t, got, 1)
			}
			c.Sweep()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, c.Len())
}
