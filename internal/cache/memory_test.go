package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k", "missing"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value, time.Minute))
	value[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := newMemoryCache(10 * time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 5*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "k")
		return err == ErrCacheMiss
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMemoryCache_GetOrSetSharesConcurrentMisses(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	fn := func() ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("computed"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrSet(ctx, "k", time.Minute, fn)
			assert.NoError(t, err)
			assert.Equal(t, "computed", string(v))
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(10))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "computed", string(v))

	// Cached now: fn must not run again.
	_, err = c.GetOrSet(ctx, "k", time.Minute, func() ([]byte, error) {
		t.Fatal("fn called on hit")
		return nil, nil
	})
	require.NoError(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "implant:o1:789", Key("implant", "o1", "789"))
	assert.Equal(t, "single", Key("single"))

	assert.NotEqual(t, Key("implant", "a:b", "c"), Key("implant", "a", "b:c"))
	assert.Equal(t, "implant:a%3Ab:c", Key("implant", "a:b", "c"))
	assert.NotEqual(t, Key("x", "a%3Ab"), Key("x", "a:b"))
}
