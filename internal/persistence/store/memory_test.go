package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/persistence/store"
	"github.com/hilthontt/lobby/internal/persistence/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMemory() (*store.Memory, *storetest.Clock) {
	clock := storetest.NewClock(t0)
	return store.NewMemory(clock.Now), clock
}

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()
	room := domain.Tenant("app").Room("alpha")

	require.NoError(t, s.Put(ctx, room.DocumentPath, store.Fields{
		domain.FieldName:         "alpha",
		domain.FieldLastActivity: store.ServerTimestamp,
	}))

	doc, err := s.Get(ctx, room.DocumentPath)
	require.NoError(t, err)
	assert.Equal(t, "alpha", doc.Key())
	assert.Equal(t, "alpha", doc.String(domain.FieldName))
	assert.Equal(t, t0, doc.Time(domain.FieldLastActivity))

	_, err = s.Get(ctx, room.Member("nobody"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryUpdateRequiresDocument(t *testing.T) {
	ctx := context.Background()
	s, clock := newMemory()
	room := domain.Tenant("app").Room("alpha")

	err := s.Update(ctx, room.DocumentPath, store.Fields{domain.FieldLastActivity: store.ServerTimestamp})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Put(ctx, room.DocumentPath, store.Fields{
		domain.FieldName:         "alpha",
		domain.FieldLastActivity: store.ServerTimestamp,
	}))
	clock.Advance(time.Minute)
	require.NoError(t, s.Update(ctx, room.DocumentPath, store.Fields{domain.FieldLastActivity: store.ServerTimestamp}))

	doc, err := s.Get(ctx, room.DocumentPath)
	require.NoError(t, err)
	assert.Equal(t, "alpha", doc.String(domain.FieldName))
	assert.Equal(t, t0.Add(time.Minute), doc.Time(domain.FieldLastActivity))
}

func TestMemoryDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()
	room := domain.Tenant("app").Room("alpha")

	require.NoError(t, s.Put(ctx, room.DocumentPath, store.Fields{}))
	removed, err := s.Delete(ctx, room.DocumentPath)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, room.DocumentPath)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, s.RecursiveDelete(ctx, room.DocumentPath))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryConcurrentDeletes(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()
	room := domain.Tenant("app").Room("alpha")
	require.NoError(t, s.Put(ctx, room.DocumentPath, store.Fields{}))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.RecursiveDelete(ctx, room.DocumentPath)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 0, s.Len())
}

func TestMemoryConcurrentDeleteRemovesOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()
	room := domain.Tenant("app").Room("alpha")
	require.NoError(t, s.Put(ctx, room.DocumentPath, store.Fields{}))

	var (
		wg      sync.WaitGroup
		removed atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Delete(ctx, room.DocumentPath)
			assert.NoError(t, err)
			if ok {
				removed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), removed.Load())
}

func TestMemoryListFiltersDirectChildren(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()
	tenant := domain.Tenant("app")

	old := tenant.Room("old")
	fresh := tenant.Room("fresh")
	require.NoError(t, s.Put(ctx, old.DocumentPath, store.Fields{domain.FieldLastActivity: t0.Add(-time.Hour)}))
	require.NoError(t, s.Put(ctx, fresh.DocumentPath, store.Fields{domain.FieldLastActivity: t0}))
	_, err := s.Add(ctx, old.Members(), store.Fields{domain.FieldNickname: "ann"})
	require.NoError(t, err)

	all, err := s.List(ctx, tenant.Rooms())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "fresh", all[0].Key())
	assert.Equal(t, "old", all[1].Key())

	stale, err := s.List(ctx, tenant.Rooms(), store.Where(domain.FieldLastActivity, store.LessOrEqual, t0.Add(-15*time.Minute)))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].Key())

	other, err := s.List(ctx, domain.Tenant("other").Rooms())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryBatchCommitIsAtomic(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()
	room := domain.Tenant("app").Room("alpha")

	err := s.BatchCommit(ctx, []store.Op{
		store.PutOp(room.DocumentPath, store.Fields{domain.FieldName: "alpha"}),
		store.UpdateOp(room.Member("ghost"), store.Fields{domain.FieldNickname: "x"}),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.BatchCommit(ctx, []store.Op{
		store.PutOp(room.DocumentPath, store.Fields{domain.FieldName: "alpha"}),
		store.UpdateOp(room.DocumentPath, store.Fields{domain.FieldLastActivity: store.ServerTimestamp}),
		store.PutOp(room.Member("u1"), store.Fields{domain.FieldNickname: "ann"}),
		store.DeleteOp(room.Member("u2")),
	}))
	assert.Equal(t, 2, s.Len())
}

func TestMemoryRecursiveDeleteAndChildren(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()
	tenant := domain.Tenant("app")
	alpha := tenant.Room("alpha")
	beta := tenant.Room("beta")

	require.NoError(t, s.Put(ctx, alpha.DocumentPath, store.Fields{}))
	require.NoError(t, s.Put(ctx, alpha.Member("u1"), store.Fields{}))
	require.NoError(t, s.Put(ctx, alpha.Message("m1"), store.Fields{}))
	require.NoError(t, s.Put(ctx, tenant.Room("alphabet").DocumentPath, store.Fields{}))
	// beta has messages but no room document
	require.NoError(t, s.Put(ctx, beta.Message("m1"), store.Fields{}))

	keys, err := s.Children(ctx, tenant.Rooms())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "alphabet", "beta"}, keys)

	require.NoError(t, s.RecursiveDelete(ctx, alpha.DocumentPath))
	require.NoError(t, s.RecursiveDelete(ctx, beta.DocumentPath))

	keys, err = s.Children(ctx, tenant.Rooms())
	require.NoError(t, err)
	assert.Equal(t, []string{"alphabet"}, keys)
	assert.Equal(t, 1, s.Len())
}

func TestMemorySubscribe(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()
	tenant := domain.Tenant("app")

	sub, err := s.Subscribe(ctx, tenant.Rooms())
	require.NoError(t, err)
	defer sub.Close()

	initial := receive(t, sub)
	assert.Empty(t, initial)

	require.NoError(t, s.Put(ctx, tenant.Room("alpha").DocumentPath, store.Fields{}))
	docs := waitFor(t, sub, func(docs []store.Document) bool { return len(docs) == 1 })
	assert.Equal(t, "alpha", docs[0].Key())

	_, err = s.Delete(ctx, tenant.Room("alpha").DocumentPath)
	require.NoError(t, err)
	waitFor(t, sub, func(docs []store.Document) bool { return len(docs) == 0 })
}

func TestMemorySubscribeEndsOnClose(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()

	sub, err := s.Subscribe(ctx, domain.Tenant("app").Rooms())
	require.NoError(t, err)
	receive(t, sub)

	require.NoError(t, s.Close(ctx))

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not end after store close")
	}
	assert.ErrorIs(t, sub.Err(), domain.ErrStoreUnavailable)

	err = s.Put(ctx, domain.Tenant("app").Room("alpha").DocumentPath, store.Fields{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()
	tenant := domain.Tenant("app")

	sub, err := s.Subscribe(ctx, tenant.Rooms())
	require.NoError(t, err)
	sub.Close()

	require.NoError(t, s.Put(ctx, tenant.Room("alpha").DocumentPath, store.Fields{}))
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
}

func TestMapSubscription(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()
	tenant := domain.Tenant("app")
	require.NoError(t, s.Put(ctx, tenant.Room("alpha").DocumentPath, store.Fields{}))

	src, err := s.Subscribe(ctx, tenant.Rooms())
	require.NoError(t, err)
	counts := store.Map(src, func(docs []store.Document) int { return len(docs) })
	defer counts.Close()

	select {
	case n := <-counts.C():
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
	}
}

func TestFilterMatch(t *testing.T) {
	fields := store.Fields{"n": 3, "s": "b", "t": t0}

	assert.True(t, store.Where("n", store.Greater, 2.5).Match(fields))
	assert.True(t, store.Where("n", store.Equal, int64(3)).Match(fields))
	assert.True(t, store.Where("s", store.Less, "c").Match(fields))
	assert.True(t, store.Where("t", store.GreaterOrEqual, t0).Match(fields))
	assert.False(t, store.Where("t", store.Less, t0).Match(fields))
	assert.False(t, store.Where("missing", store.Equal, 1).Match(fields))
	assert.False(t, store.Where("s", store.Equal, 1).Match(fields))
}

func receive(t *testing.T, sub *store.Subscription[[]store.Document]) []store.Document {
	t.Helper()
	select {
	case docs, ok := <-sub.C():
		require.True(t, ok, "subscription ended: %v", sub.Err())
		return docs
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
	return nil
}

func waitFor(t *testing.T, sub *store.Subscription[[]store.Document], cond func([]store.Document) bool) []store.Document {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case docs, ok := <-sub.C():
			require.True(t, ok, "subscription ended: %v", sub.Err())
			if cond(docs) {
				return docs
			}
		case <-deadline:
			t.Fatal("condition not met")
			return nil
		}
	}
}
