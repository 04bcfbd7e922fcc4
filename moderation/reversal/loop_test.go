package reversal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingFirer struct {
	mu    sync.Mutex
	fired []Reversal
	err   error
}

func (f *recordingFirer) FireReversal(ctx context.Context, rev Reversal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired = append(f.fired, rev)
	return f.err
}

func (f *recordingFirer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fired)
}

func testGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := NewGormStore(db)
	require.NoError(t, err)
	return store
}

func runStoreReplaces(t *testing.T, store Store) {
	assert := assert.New(t)
	ctx := context.Background()

	first := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	later := first.Add(time.Hour)

	assert.NoError(store.Upsert(ctx, &Reversal{
		CommunityID: "c1", TargetUserID: "user1", Kind: KindUnban, ExpiresAt: first,
	}))
	assert.NoError(store.Upsert(ctx, &Reversal{
		CommunityID: "c1", TargetUserID: "user1", Kind: KindUnban, ExpiresAt: later,
	}))

	// replaced, not duplicated
	pending, err := store.ListPending(ctx)
	assert.NoError(err)
	assert.Len(pending, 1)
	assert.WithinDuration(later, pending[0].ExpiresAt, time.Second)

	// a different kind for the same target is a separate record
	assert.NoError(store.Upsert(ctx, &Reversal{
		CommunityID: "c1", TargetUserID: "user1", Kind: KindUnmute, ExpiresAt: first,
	}))
	pending, err = store.ListPending(ctx)
	assert.NoError(err)
	assert.Len(pending, 2)
}

func runStoreRemove(t *testing.T, store Store) {
	assert := assert.New(t)
	ctx := context.Background()

	assert.NoError(store.Upsert(ctx, &Reversal{
		CommunityID: "c1", TargetUserID: "user1", Kind: KindUnban,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	removed, err := store.Remove(ctx, "c1", "user1", KindUnban)
	assert.NoError(err)
	assert.True(removed)

	// second remove is a no-op
	removed, err = store.Remove(ctx, "c1", "user1", KindUnban)
	assert.NoError(err)
	assert.False(removed)

	rev, err := store.Find(ctx, "c1", "user1", KindUnban)
	assert.NoError(err)
	assert.Nil(rev)
}

func runStoreTakeExpired(t *testing.T, store Store) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Now().UTC()
	assert.NoError(store.Upsert(ctx, &Reversal{
		CommunityID: "c1", TargetUserID: "due", Kind: KindUnban, ExpiresAt: now.Add(-time.Minute),
	}))
	assert.NoError(store.Upsert(ctx, &Reversal{
		CommunityID: "c1", TargetUserID: "future", Kind: KindUnban, ExpiresAt: now.Add(time.Hour),
	}))

	taken, err := store.TakeExpired(ctx, now)
	assert.NoError(err)
	assert.Len(taken, 1)
	assert.Equal("due", taken[0].TargetUserID)

	// claimed exactly once
	taken, err = store.TakeExpired(ctx, now)
	assert.NoError(err)
	assert.Empty(taken)

	pending, err := store.ListPending(ctx)
	assert.NoError(err)
	assert.Len(pending, 1)
	assert.Equal("future", pending[0].TargetUserID)
}

func TestMemStore(t *testing.T) {
	t.Run("replaces", func(t *testing.T) { runStoreReplaces(t, NewMemStore()) })
	t.Run("remove", func(t *testing.T) { runStoreRemove(t, NewMemStore()) })
	t.Run("takeExpired", func(t *testing.T) { runStoreTakeExpired(t, NewMemStore()) })
}

func TestGormStore(t *testing.T) {
	t.Run("replaces", func(t *testing.T) { runStoreReplaces(t, testGormStore(t)) })
	t.Run("remove", func(t *testing.T) { runStoreRemove(t, testGormStore(t)) })
	t.Run("takeExpired", func(t *testing.T) { runStoreTakeExpired(t, testGormStore(t)) })
}

func TestLoopFiresExpired(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := NewMemStore()
	firer := &recordingFirer{}
	loop := NewLoop(store, firer, time.Minute, nil)

	assert.NoError(loop.Schedule(ctx, "c1", "user1", KindUnban, time.Now().Add(-time.Second)))
	loop.Sweep(ctx)

	assert.Equal(1, firer.count())
	assert.Equal("user1", firer.fired[0].TargetUserID)

	// fired records never fire again
	loop.Sweep(ctx)
	assert.Equal(1, firer.count())
}

func TestLoopCancelPreventsFiring(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := NewMemStore()
	firer := &recordingFirer{}
	loop := NewLoop(store, firer, time.Minute, nil)

	assert.NoError(loop.Schedule(ctx, "c1", "user1", KindUnban, time.Now().Add(-time.Second)))
	assert.NoError(loop.Cancel(ctx, "c1", "user1", KindUnban))

	loop.Sweep(ctx)
	assert.Equal(0, firer.count())
}

func TestLoopFailedFireStillCleared(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := NewMemStore()
	firer := &recordingFirer{err: errors.New("already unbanned")}
	loop := NewLoop(store, firer, time.Minute, nil)

	assert.NoError(loop.Schedule(ctx, "c1", "user1", KindUnban, time.Now().Add(-time.Second)))
	loop.Sweep(ctx)
	assert.Equal(1, firer.count())

	// no retry: already-reversed external state is a benign no-op
	loop.Sweep(ctx)
	assert.Equal(1, firer.count())
	pending, err := store.ListPending(ctx)
	assert.NoError(err)
	assert.Empty(pending)
}

func TestLoopRestartResumesPending(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// durable store shared across simulated restarts
	store := testGormStore(t)

	firstLoop := NewLoop(store, &recordingFirer{}, time.Minute, nil)
	assert.NoError(firstLoop.Schedule(ctx, "c1", "user1", KindUnban, time.Now().Add(20*time.Millisecond)))

	// "restart": a fresh loop over the same store picks the record up
	firer := &recordingFirer{}
	secondLoop := NewLoop(store, firer, time.Minute, nil)
	time.Sleep(30 * time.Millisecond)
	secondLoop.Sweep(ctx)
	assert.Equal(1, firer.count())

	// and a third sweep after another restart finds nothing: no double fire
	thirdFirer := &recordingFirer{}
	NewLoop(store, thirdFirer, time.Minute, nil).Sweep(ctx)
	assert.Equal(0, thirdFirer.count())
}

func TestLoopRunShutdown(t *testing.T) {
	assert := assert.New(t)

	store := NewMemStore()
	loop := NewLoop(store, &recordingFirer{}, 10*time.Millisecond, nil)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()
	time.Sleep(25 * time.Millisecond)
	loop.Shutdown()

	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after shutdown")
	}
}
