package analyzer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusiondex/internal/dex"
	"fusiondex/internal/entities"
	"fusiondex/internal/fusion"
	"fusiondex/internal/fusioncache"
	"fusiondex/internal/ledger"
)

type fakeFetcher struct {
	calls atomic.Int32
	fail  map[fusion.Pair]error
	delay time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, pair fusion.Pair) (map[fusion.Key]fusion.Record, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &dex.FetchError{Pair: pair, Reason: dex.ReasonNetwork, Err: ctx.Err()}
		case <-time.After(f.delay):
		}
	}
	if err, ok := f.fail[pair]; ok {
		return nil, err
	}
	k1, k2 := pair.Keys()
	return map[fusion.Key]fusion.Record{
		k1: makeRecord(pair, 300+pair.Primary*10+pair.Secondary),
		k2: makeRecord(pair.Reverse(), 300+pair.Secondary*10+pair.Primary),
	}, nil
}

func makeRecord(pair fusion.Pair, total int) fusion.Record {
	return fusion.Record{
		Pair:       pair,
		Name:       "Fusion " + pair.String(),
		Types:      []string{"Normal"},
		Stats:      &fusion.Stats{HP: 50, ATK: 50, DEF: 50, SpAtk: 50, SpDef: 50, Speed: 50, Total: total},
		Weaknesses: fusion.Weaknesses{fusion.BucketDouble: {"Fighting"}},
	}
}

type failingCache struct {
	mu      sync.Mutex
	entries map[fusion.Key]fusion.Record
	merges  int
}

func (c *failingCache) Get(key fusion.Key) (fusion.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entries[key]
	return rec, ok
}

func (c *failingCache) MergeAndPersist(context.Context, map[fusion.Key]fusion.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.merges++
	return errors.New("disk full")
}

type memoryRecorder struct {
	mu       sync.Mutex
	batches  []ledger.Batch
	outcomes [][]ledger.Outcome
}

func (r *memoryRecorder) RecordBatch(_ context.Context, batch ledger.Batch, outcomes []ledger.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
	r.outcomes = append(r.outcomes, outcomes)
	return nil
}

func directory() entities.Map {
	return entities.Map{1: "Bulbasaur", 2: "Ivysaur", 3: "Venusaur", 4: "Charmander"}
}

func TestResolveFetchesThenServesFromCache(t *testing.T) {
	fetcher := &fakeFetcher{}
	cache := fusioncache.New(fusioncache.Options{})
	recorder := &memoryRecorder{}
	coord := New(Options{Fetcher: fetcher, Cache: cache, Entities: directory(), Recorder: recorder, Workers: 2})
	ctx := context.Background()

	first := coord.Resolve(ctx, []int{1, 2, 3})
	assert.Equal(t, 3, first.Fetched)
	assert.Equal(t, 0, first.Cached)
	assert.Len(t, first.Fusions, 6)
	assert.Equal(t, int32(3), fetcher.calls.Load())
	assert.NotEmpty(t, first.BatchID)

	second := coord.Resolve(ctx, []int{3, 2, 1, 2})
	assert.Equal(t, int32(3), fetcher.calls.Load(), "cached pairs must not be fetched again")
	assert.Equal(t, 0, second.Fetched)
	assert.Equal(t, 3, second.Cached)
	assert.Equal(t, first.Fusions, second.Fusions)
	assert.NotEqual(t, first.BatchID, second.BatchID)

	require.Len(t, recorder.batches, 2)
	assert.Equal(t, 3, recorder.batches[1].Cached)
	for _, o := range recorder.outcomes[1] {
		assert.Equal(t, ledger.StatusCached, o.Status)
	}
}

func TestConcurrentResolvesShareInflightFetch(t *testing.T) {
	fetcher := &fakeFetcher{delay: 200 * time.Millisecond}
	recorder := &memoryRecorder{}
	coord := New(Options{Fetcher: fetcher, Cache: fusioncache.New(fusioncache.Options{}), Entities: directory(), Recorder: recorder, Workers: 2})

	results := make([]Result, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = coord.Resolve(context.Background(), []int{1, 2})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	for _, res := range results {
		assert.Zero(t, res.Failed)
		assert.Len(t, res.Fusions, 2)
	}
	assert.Equal(t, results[0].Fusions, results[1].Fusions)
	assert.Len(t, recorder.batches, 2)
}

func TestResolveSortsByTotal(t *testing.T) {
	coord := New(Options{Fetcher: &fakeFetcher{}, Cache: fusioncache.New(fusioncache.Options{}), Entities: directory()})

	got := coord.Resolve(context.Background(), []int{1, 2, 4})

	require.Len(t, got.Fusions, 6)
	assert.Equal(t, fusion.Key("#4.2"), got.Fusions[0].Key)
	for i := 1; i < len(got.Fusions); i++ {
		assert.GreaterOrEqual(t, got.Fusions[i-1].Total(), got.Fusions[i].Total())
	}
}

func TestResolveDropsUnknownIDs(t *testing.T) {
	fetcher := &fakeFetcher{}
	coord := New(Options{Fetcher: fetcher, Cache: fusioncache.New(fusioncache.Options{}), Entities: directory()})

	got := coord.Resolve(context.Background(), []int{1, 99999, 2})

	assert.Equal(t, []int{99999}, got.Unknown)
	assert.Equal(t, 1, got.Fetched)
	for _, f := range got.Fusions {
		assert.NotEqual(t, 99999, f.Pair.Primary)
		assert.NotEqual(t, 99999, f.Pair.Secondary)
	}
}

func TestResolveTooFewIDs(t *testing.T) {
	fetcher := &fakeFetcher{}
	coord := New(Options{Fetcher: fetcher, Entities: directory()})

	got := coord.Resolve(context.Background(), []int{1, 1})

	assert.Empty(t, got.Fusions)
	assert.Equal(t, int32(0), fetcher.calls.Load())
}

func TestResolveRecordsFailures(t *testing.T) {
	bad := fusion.Pair{Primary: 1, Secondary: 3}
	fetcher := &fakeFetcher{fail: map[fusion.Pair]error{
		bad: &dex.FetchError{Pair: bad, Reason: dex.ReasonStatus, StatusCode: 404, Err: errors.New("not found")},
	}}
	recorder := &memoryRecorder{}
	coord := New(Options{Fetcher: fetcher, Cache: fusioncache.New(fusioncache.Options{}), Entities: directory(), Recorder: recorder})

	got := coord.Resolve(context.Background(), []int{1, 2, 3})

	assert.Equal(t, 2, got.Fetched)
	assert.Equal(t, 1, got.Failed)
	assert.Len(t, got.Fusions, 4)
	require.Len(t, recorder.outcomes, 1)
	var failed []ledger.Outcome
	for _, o := range recorder.outcomes[0] {
		if o.Status == ledger.StatusFailed {
			failed = append(failed, o)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, bad, failed[0].Pair)
	assert.Equal(t, string(dex.ReasonStatus), failed[0].Reason)
}

func TestResolveReturnsResultsWhenPersistenceFails(t *testing.T) {
	cache := &failingCache{entries: map[fusion.Key]fusion.Record{}}
	coord := New(Options{Fetcher: &fakeFetcher{}, Cache: cache, Entities: directory()})

	got := coord.Resolve(context.Background(), []int{1, 2})

	assert.Equal(t, 1, cache.merges)
	assert.Equal(t, 1, got.Fetched)
	assert.Len(t, got.Fusions, 2)
}

func TestResolveOfflineUsesCacheOnly(t *testing.T) {
	cache := fusioncache.New(fusioncache.Options{})
	pair := fusion.Pair{Primary: 1, Secondary: 2}
	k1, k2 := pair.Keys()
	require.NoError(t, cache.MergeAndPersist(context.Background(), map[fusion.Key]fusion.Record{
		k1: makeRecord(pair, 400),
		k2: makeRecord(pair.Reverse(), 410),
	}))
	fetcher := &fakeFetcher{}
	coord := New(Options{Fetcher: fetcher, Cache: cache, Entities: directory(), Offline: true, Workers: 8})

	got := coord.Resolve(context.Background(), []int{1, 2, 3})

	assert.Equal(t, 1, coord.Workers())
	assert.Equal(t, int32(0), fetcher.calls.Load())
	assert.Equal(t, 1, got.Cached)
	assert.Equal(t, 2, got.Skipped)
	assert.Len(t, got.Fusions, 2)
}

func TestResolveBatchTimeout(t *testing.T) {
	fetcher := &fakeFetcher{delay: time.Second}
	coord := New(Options{
		Fetcher:      fetcher,
		Cache:        fusioncache.New(fusioncache.Options{}),
		Entities:     directory(),
		Workers:      1,
		BatchTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	got := coord.Resolve(context.Background(), []int{1, 2, 3})

	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, 3, got.Failed)
	assert.Empty(t, got.Fusions)
}

func TestPairScoresUsesBestDirection(t *testing.T) {
	coord := New(Options{Fetcher: &fakeFetcher{}, Cache: fusioncache.New(fusioncache.Options{}), Entities: directory()})

	scores, result := coord.PairScores(context.Background(), []int{1, 2})

	require.Len(t, result.Fusions, 2)
	// 2.1 has the higher total (321 vs 312); both share the same defensive score.
	best := result.Fusions[0]
	assert.Equal(t, fusion.Key("#2.1"), best.Key)
	assert.Equal(t, float64(321)+best.DefensiveScore, scores.Get(1, 2))
}
