package staging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack-dev/fintrack/internal/model"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c := NewCache(ttl, zerolog.Nop())
	t.Cleanup(c.Close)
	return c
}

func sampleRows(n int) []model.RowResult {
	rows := make([]model.RowResult, n)
	for i := range rows {
		if i%2 == 0 {
			rows[i] = model.ParsedRow{Row: model.Row{Description: "row"}}
		} else {
			rows[i] = model.FailedRow{Err: errors.New("unparseable date")}
		}
	}
	return rows
}

func TestCache_PutGetTake(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute)

	token, err := c.Put(ctx, sampleRows(3))
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 1, c.Len())

	rows, ok := c.Get(ctx, token)
	require.True(t, ok)
	assert.Len(t, rows, 3)

	rows, ok = c.Take(ctx, token)
	require.True(t, ok)
	assert.Len(t, rows, 3)

	_, ok = c.Take(ctx, token)
	assert.False(t, ok, "tokens are single-use")
	_, ok = c.Get(ctx, token)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_UnknownToken(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute)

	_, ok := c.Get(ctx, "nope")
	assert.False(t, ok)
	_, ok = c.Take(ctx, "nope")
	assert.False(t, ok)
	c.Delete(ctx, "nope")
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute)

	token, err := c.Put(ctx, sampleRows(1))
	require.NoError(t, err)
	c.Delete(ctx, token)

	_, ok := c.Get(ctx, token)
	assert.False(t, ok)
}

func TestCache_TokensAreUniqueAndRandom(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute)

	seen := make(map[string]bool)
	for range 100 {
		token, err := c.Put(ctx, nil)
		require.NoError(t, err)
		assert.False(t, seen[token], "duplicate token %s", token)
		assert.Len(t, token, 36)
		seen[token] = true
	}
}

func TestCache_RetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute)

	tokens := []string{"same", "same", "other"}
	var calls int
	c.newToken = func() string {
		tok := tokens[calls]
		calls++
		return tok
	}

	first, err := c.Put(ctx, sampleRows(1))
	require.NoError(t, err)
	assert.Equal(t, "same", first)

	second, err := c.Put(ctx, sampleRows(2))
	require.NoError(t, err)
	assert.Equal(t, "other", second)

	rows, ok := c.Get(ctx, "same")
	require.True(t, ok)
	assert.Len(t, rows, 1, "collision must not overwrite the first upload")
}

func TestCache_GivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute)
	c.newToken = func() string { return "fixed" }

	_, err := c.Put(ctx, nil)
	require.NoError(t, err)

	_, err = c.Put(ctx, nil)
	assert.ErrorIs(t, err, ErrTokenCollision)
}

func TestCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 50*time.Millisecond)

	token, err := c.Put(ctx, sampleRows(2))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, token)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := c.Take(ctx, token)
	assert.False(t, ok)
}

func TestCache_ZeroTTLKeepsUploads(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)

	token, err := c.Put(ctx, sampleRows(1))
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get(ctx, token)
	assert.True(t, ok)
}

func TestCache_ConcurrentTakeIsExclusive(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute)

	token, err := c.Put(ctx, sampleRows(4))
	require.NoError(t, err)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Take(ctx, token); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestCache_ConcurrentPutAndTake(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			token, err := c.Put(ctx, sampleRows(n))
			if !assert.NoError(t, err) {
				return
			}
			rows, ok := c.Take(ctx, token)
			assert.True(t, ok)
			assert.Len(t, rows, n)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, c.Len())
}
