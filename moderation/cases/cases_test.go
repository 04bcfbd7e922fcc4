package cases

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func runStoreBasics(t *testing.T, store Store) {
	assert := assert.New(t)
	ctx := context.Background()

	mc, err := store.CreateCase(ctx, CreateParams{
		CommunityID:  "c1",
		TargetUserID: "user1",
		ModeratorID:  "mod1",
		Kind:         KindWarn,
		Reason:       "spamming",
		Attachments:  []string{"https://example.com/evidence.png"},
	})
	assert.NoError(err)
	assert.Equal(int64(1), mc.CaseNumber)
	assert.False(mc.Hidden)

	mc2, err := store.CreateCase(ctx, CreateParams{
		CommunityID:  "c1",
		TargetUserID: "user1",
		ModeratorID:  "mod1",
		Kind:         KindWarn,
		Reason:       "still spamming",
	})
	assert.NoError(err)
	assert.Equal(int64(2), mc2.CaseNumber)

	// numbering is per community
	other, err := store.CreateCase(ctx, CreateParams{
		CommunityID:  "c2",
		TargetUserID: "user1",
		ModeratorID:  "mod1",
		Kind:         KindBan,
		Reason:       "ban evasion",
	})
	assert.NoError(err)
	assert.Equal(int64(1), other.CaseNumber)

	found, err := store.FindByCaseNumber(ctx, "c1", 1)
	assert.NoError(err)
	assert.Equal(mc.ID, found.ID)
	assert.Equal("spamming", found.Reason)
	assert.Equal(StringList{"https://example.com/evidence.png"}, found.Attachments)

	_, err = store.FindByCaseNumber(ctx, "c1", 99)
	assert.ErrorIs(err, ErrNotFound)

	count, err := store.CountByKindForUser(ctx, "c1", "user1", KindWarn)
	assert.NoError(err)
	assert.Equal(int64(2), count)
	count, err = store.CountByKindForUser(ctx, "c1", "user1", KindBan)
	assert.NoError(err)
	assert.Equal(int64(0), count)
}

func runStoreHiding(t *testing.T, store Store) {
	assert := assert.New(t)
	ctx := context.Background()

	mc, err := store.CreateCase(ctx, CreateParams{
		CommunityID:  "c1",
		TargetUserID: "user1",
		ModeratorID:  "mod1",
		Kind:         KindNote,
		Reason:       "keep an eye on this one",
	})
	assert.NoError(err)

	assert.NoError(store.SetHidden(ctx, mc.ID, true))
	// idempotent
	assert.NoError(store.SetHidden(ctx, mc.ID, true))

	found, err := store.FindByCaseNumber(ctx, "c1", mc.CaseNumber)
	assert.NoError(err)
	assert.True(found.Hidden)

	listed, err := store.ListByUser(ctx, "c1", "user1", false)
	assert.NoError(err)
	assert.Empty(listed)
	listed, err = store.ListByUser(ctx, "c1", "user1", true)
	assert.NoError(err)
	assert.Len(listed, 1)

	assert.NoError(store.SetHidden(ctx, mc.ID, false))
	listed, err = store.ListByUser(ctx, "c1", "user1", false)
	assert.NoError(err)
	assert.Len(listed, 1)

	assert.ErrorIs(store.SetHidden(ctx, 9999, true), ErrNotFound)
}

func runStoreAmendReason(t *testing.T, store Store) {
	assert := assert.New(t)
	ctx := context.Background()

	mc, err := store.CreateCase(ctx, CreateParams{
		CommunityID:  "c1",
		TargetUserID: "user1",
		ModeratorID:  "mod1",
		Kind:         KindMute,
		Reason:       "tbd",
	})
	assert.NoError(err)

	assert.NoError(store.AmendReason(ctx, mc.ID, "excessive pings"))
	found, err := store.FindByCaseNumber(ctx, "c1", mc.CaseNumber)
	assert.NoError(err)
	assert.Equal("excessive pings", found.Reason)

	assert.ErrorIs(store.AmendReason(ctx, 9999, "x"), ErrNotFound)
}

func TestMemStore(t *testing.T) {
	t.Run("basics", func(t *testing.T) { runStoreBasics(t, NewMemStore()) })
	t.Run("hiding", func(t *testing.T) { runStoreHiding(t, NewMemStore()) })
	t.Run("amend", func(t *testing.T) { runStoreAmendReason(t, NewMemStore()) })
}

func TestGormStore(t *testing.T) {
	t.Run("basics", func(t *testing.T) { runStoreBasics(t, testGormStore(t)) })
	t.Run("hiding", func(t *testing.T) { runStoreHiding(t, testGormStore(t)) })
	t.Run("amend", func(t *testing.T) { runStoreAmendReason(t, testGormStore(t)) })
}

// Concurrent creations in the same community must produce a gap-free
// strictly increasing sequence starting at 1. Run with `-race`.
func runStoreConcurrentNumbering(t *testing.T, store Store) {
	assert := assert.New(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 25
	numbers := make(chan int64, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				mc, err := store.CreateCase(ctx, CreateParams{
					CommunityID:  "c1",
					TargetUserID: "user1",
					ModeratorID:  "mod1",
					Kind:         KindWarn,
				})
				assert.NoError(err)
				numbers <- mc.CaseNumber
			}
		}()
	}
	wg.Wait()
	close(numbers)

	var got []int64
	for n := range numbers {
		got = append(got, n)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Len(got, workers*perWorker)
	for i, n := range got {
		assert.Equal(int64(i+1), n)
	}
}

func TestMemStoreConcurrentNumbering(t *testing.T) {
	runStoreConcurrentNumbering(t, NewMemStore())
}

func TestGormStoreConcurrentNumbering(t *testing.T) {
	store := testGormStore(t)
	// single connection, matching how the daemon opens sqlite
	sqlDB, err := store.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	runStoreConcurrentNumbering(t, store)
}

func TestStringListRoundTrip(t *testing.T) {
	assert := assert.New(t)

	v, err := StringList{"a", "b"}.Value()
	assert.NoError(err)
	var out StringList
	assert.NoError(out.Scan(v))
	assert.Equal(StringList{"a", "b"}, out)

	var empty StringList
	assert.NoError(empty.Scan(nil))
	assert.Nil(empty)
}

func TestKindString(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("warn", KindWarn.String())
	assert.Equal("softban", KindSoftban.String())
	assert.Equal("<unknown>", Kind(42).String())
}
