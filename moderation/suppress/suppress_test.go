package suppress

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemRegistryBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	reg := NewMemRegistry(time.Minute)

	found, err := reg.Consume(ctx, EventBan, "c1", "user1")
	assert.NoError(err)
	assert.False(found)

	assert.NoError(reg.Mark(ctx, EventBan, "c1", "user1"))

	found, err = reg.Consume(ctx, EventBan, "c1", "user1")
	assert.NoError(err)
	assert.True(found)

	// single-use: a second consume without a new mark finds nothing
	found, err = reg.Consume(ctx, EventBan, "c1", "user1")
	assert.NoError(err)
	assert.False(found)
}

func TestMemRegistryKeyIsolation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	reg := NewMemRegistry(time.Minute)
	assert.NoError(reg.Mark(ctx, EventBan, "c1", "user1"))

	// different kind, community, or user never matches
	found, _ := reg.Consume(ctx, EventUnban, "c1", "user1")
	assert.False(found)
	found, _ = reg.Consume(ctx, EventBan, "c2", "user1")
	assert.False(found)
	found, _ = reg.Consume(ctx, EventBan, "c1", "user2")
	assert.False(found)

	found, _ = reg.Consume(ctx, EventBan, "c1", "user1")
	assert.True(found)
}

func TestMemRegistryExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	reg := NewMemRegistry(10 * time.Millisecond)
	assert.NoError(reg.Mark(ctx, EventKick, "c1", "user1"))

	time.Sleep(25 * time.Millisecond)

	// marker aged out of its validity window; must be unobservable
	found, err := reg.Consume(ctx, EventKick, "c1", "user1")
	assert.NoError(err)
	assert.False(found)
}

func TestMemRegistrySweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	reg := NewMemRegistry(10 * time.Millisecond)
	assert.NoError(reg.Mark(ctx, EventBan, "c1", "user1"))
	assert.NoError(reg.Mark(ctx, EventBan, "c1", "user2"))

	time.Sleep(25 * time.Millisecond)
	assert.Equal(2, reg.sweep())
	assert.Equal(0, reg.markers.Size())
}

func TestMemRegistryConcurrentConsume(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// Many goroutines race to consume the same marker; exactly one may win.
	// Run with `-race`.
	reg := NewMemRegistry(time.Minute)
	assert.NoError(reg.Mark(ctx, EventBan, "c1", "user1"))

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			found, err := reg.Consume(ctx, EventBan, "c1", "user1")
			assert.NoError(err)
			if found {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(int64(1), wins)
}

func TestMemRegistryMarkFirstWriteWins(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	reg := NewMemRegistry(time.Minute)
	assert.NoError(reg.Mark(ctx, EventBan, "c1", "user1"))
	first, _ := reg.markers.Load(markerKey(EventBan, "c1", "user1"))

	// re-marking while the first marker is live does not extend it
	assert.NoError(reg.Mark(ctx, EventBan, "c1", "user1"))
	second, _ := reg.markers.Load(markerKey(EventBan, "c1", "user1"))
	assert.Equal(first, second)
}
