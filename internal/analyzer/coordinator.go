package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fusiondex/internal/dex"
	"fusiondex/internal/entities"
	"fusiondex/internal/fusion"
	"fusiondex/internal/ledger"
	"fusiondex/internal/logging"
	"fusiondex/internal/scoring"
	"fusiondex/internal/services"
)

const defaultWorkers = 10

// Cache is the subset of the fusion cache the coordinator needs.
type Cache interface {
	Get(key fusion.Key) (fusion.Record, bool)
	MergeAndPersist(ctx context.Context, entries map[fusion.Key]fusion.Record) error
}

// Recorder stores fetch outcomes.
type Recorder interface {
	RecordBatch(ctx context.Context, batch ledger.Batch, outcomes []ledger.Outcome) error
}

// SpriteAttacher downloads sprites for freshly fetched records.
type SpriteAttacher interface {
	Attach(ctx context.Context, records map[fusion.Key]fusion.Record) int
}

// Options configures a Coordinator. Fetcher may be nil only when Offline is set.
type Options struct {
	Fetcher      dex.Fetcher
	Cache        Cache
	Entities     entities.Directory
	Sprites      SpriteAttacher
	Recorder     Recorder
	Workers      int
	BatchTimeout time.Duration
	Offline      bool
	Logger       *slog.Logger
}

// Result is the outcome of one Resolve call. Counts are in unordered pairs.
type Result struct {
	BatchID string                 `json:"batch_id"`
	Fusions []scoring.ScoredFusion `json:"fusions"`
	Fetched int                    `json:"fetched"`
	Cached  int                    `json:"cached"`
	Failed  int                    `json:"failed"`
	Skipped int                    `json:"skipped"`
	Unknown []int                  `json:"unknown,omitempty"`
}

// Coordinator resolves fusions for a set of IDs.
type Coordinator struct {
	fetcher      dex.Fetcher
	cache        Cache
	entities     entities.Directory
	sprites      SpriteAttacher
	recorder     Recorder
	workers      int
	batchTimeout time.Duration
	offline      bool
	logger       *slog.Logger
	now          func() time.Time

	inflight singleflight.Group
}

// New builds a Coordinator from opts.
func New(opts Options) *Coordinator {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	offline := opts.Offline || opts.Fetcher == nil
	if offline {
		workers = 1
	}
	return &Coordinator{
		fetcher:      opts.Fetcher,
		cache:        opts.Cache,
		entities:     opts.Entities,
		sprites:      opts.Sprites,
		recorder:     opts.Recorder,
		workers:      workers,
		batchTimeout: opts.BatchTimeout,
		offline:      offline,
		logger:       logging.NewComponentLogger(opts.Logger, "analyzer"),
		now:          time.Now,
	}
}

// Workers returns the pool width used for fetching.
func (c *Coordinator) Workers() int {
	return c.workers
}

// Offline reports whether the coordinator is restricted to the cache.
func (c *Coordinator) Offline() bool {
	return c.offline
}

type fetchResult struct {
	records  map[fusion.Key]fusion.Record
	err      error
	duration time.Duration
}

// Resolve returns scored fusions for every pair of the known IDs in ids,
// sorted best first. Unknown IDs are dropped and reported in Result.Unknown.
func (c *Coordinator) Resolve(ctx context.Context, ids []int) Result {
	batchID := uuid.NewString()
	ctx = services.WithBatchID(ctx, batchID)
	logger := logging.WithContext(ctx, c.logger)
	started := c.now()

	result := Result{BatchID: batchID}
	known := ids
	if c.entities != nil {
		var unknown []int
		known, unknown = entities.Known(c.entities, ids)
		if len(unknown) > 0 {
			result.Unknown = fusion.UniqueIDs(unknown)
			logging.WarnWithContext(logger, "ignoring unknown ids", "unknown_ids",
				logging.Any("ids", result.Unknown),
				logging.String(logging.FieldErrorHint, "check the ids against the entity metadata file"),
				logging.String(logging.FieldImpact, "fusions for these ids are not analyzed"))
		}
	}
	pairs := fusion.Combinations(known)
	if len(pairs) == 0 {
		logger.Info("nothing to resolve", logging.Int("id_count", len(fusion.UniqueIDs(known))))
		return result
	}

	records := make(map[fusion.Key]fusion.Record, len(pairs)*2)
	outcomes := make([]ledger.Outcome, 0, len(pairs))
	var missing []fusion.Pair
	for _, pair := range pairs {
		k1, k2 := pair.Keys()
		r1, ok1 := c.cacheGet(k1)
		r2, ok2 := c.cacheGet(k2)
		if ok1 && ok2 {
			records[k1], records[k2] = r1, r2
			result.Cached++
			outcomes = append(outcomes, ledger.Outcome{Pair: pair, Status: ledger.StatusCached})
			continue
		}
		missing = append(missing, pair)
	}

	logger.Info("resolving fusions",
		logging.Int("pair_count", len(pairs)),
		logging.Int("cached", result.Cached),
		logging.Int("missing", len(missing)),
		logging.Int("workers", c.workers),
		logging.Bool("offline", c.offline))

	fresh := make(map[fusion.Key]fusion.Record)
	if c.offline {
		for _, pair := range missing {
			result.Skipped++
			outcomes = append(outcomes, ledger.Outcome{Pair: pair, Status: ledger.StatusSkipped, Reason: "offline"})
		}
	} else if len(missing) > 0 {
		results := c.fetchAll(services.WithStage(ctx, "fetch"), missing)
		for i, pair := range missing {
			res := results[i]
			if res.err != nil {
				result.Failed++
				reason := dex.ReasonOf(res.err)
				outcomes = append(outcomes, ledger.Outcome{
					Pair:     pair,
					Status:   ledger.StatusFailed,
					Reason:   string(reason),
					Error:    res.err.Error(),
					Duration: res.duration,
				})
				logging.WarnWithContext(logger, "fusion fetch failed", "fusion_fetch_failed",
					logging.String(logging.FieldPair, pair.String()),
					logging.String("reason", string(reason)),
					logging.Error(res.err),
					logging.String(logging.FieldErrorHint, "retry later; the pair will be fetched again on the next run"),
					logging.String(logging.FieldImpact, "pair omitted from results"))
				continue
			}
			result.Fetched++
			outcomes = append(outcomes, ledger.Outcome{Pair: pair, Status: ledger.StatusFetched, Duration: res.duration})
			for key, rec := range res.records {
				fresh[key] = rec
			}
		}
	}

	if len(fresh) > 0 {
		c.persist(ctx, fresh)
		for key, rec := range fresh {
			records[key] = rec
		}
	}

	result.Fusions = scoring.ScoreAll(records)
	c.record(ctx, ledger.Batch{
		ID:         batchID,
		StartedAt:  started,
		FinishedAt: c.now(),
		Requested:  len(pairs),
		Fetched:    result.Fetched,
		Cached:     result.Cached,
		Failed:     result.Failed,
		Offline:    c.offline,
	}, outcomes)

	logger.Info("fusions resolved",
		logging.Int("fusion_count", len(result.Fusions)),
		logging.Int("fetched", result.Fetched),
		logging.Int("cached", result.Cached),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
		logging.Duration("elapsed", c.now().Sub(started)))
	return result
}

// PairScores resolves ids and collapses the result into team-building weights.
func (c *Coordinator) PairScores(ctx context.Context, ids []int) (scoring.PairScoreMap, Result) {
	result := c.Resolve(ctx, ids)
	return scoring.BuildPairScores(result.Fusions), result
}

func (c *Coordinator) cacheGet(key fusion.Key) (fusion.Record, bool) {
	if c.cache == nil {
		return fusion.Record{}, false
	}
	return c.cache.Get(key)
}

// fetchAll runs one task per pair on a bounded pool. Each task writes only its
// own slot, so results need no locking.
func (c *Coordinator) fetchAll(ctx context.Context, pairs []fusion.Pair) []fetchResult {
	if c.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.batchTimeout)
		defer cancel()
	}

	results := make([]fetchResult, len(pairs))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, pair := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = fetchResult{err: &dex.FetchError{Pair: pair, Reason: dex.ReasonNetwork, Err: err}}
				return nil
			}
			start := time.Now()
			records, err := c.fetchShared(ctx, pair)
			results[i] = fetchResult{records: records, err: err, duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// fetchShared fetches pair, joining an identical fetch already in flight
// from a concurrent Resolve. The returned map is shared and must not be
// modified.
func (c *Coordinator) fetchShared(ctx context.Context, pair fusion.Pair) (map[fusion.Key]fusion.Record, error) {
	v, err, _ := c.inflight.Do(pair.Normalized().String(), func() (any, error) {
		return c.fetcher.Fetch(ctx, pair)
	})
	records, _ := v.(map[fusion.Key]fusion.Record)
	return records, err
}

// persist downloads sprites for fresh records and merges them into the
// cache. Failures are logged; the records stay usable for this run.
func (c *Coordinator) persist(ctx context.Context, fresh map[fusion.Key]fusion.Record) {
	logger := logging.WithContext(ctx, c.logger)
	if c.sprites != nil {
		attached := c.sprites.Attach(services.WithStage(ctx, "sprites"), fresh)
		logger.Debug("sprites attached", logging.Int("attached", attached), logging.Int("records", len(fresh)))
	}
	if c.cache == nil {
		return
	}
	if err := c.cache.MergeAndPersist(ctx, fresh); err != nil {
		logging.WarnWithContext(logger, "fusion cache persistence failed", "cache_persist_failed",
			logging.Error(err),
			logging.Int("entries", len(fresh)),
			logging.String(logging.FieldErrorHint, "check permissions and free space for the cache file"),
			logging.String(logging.FieldImpact, "fetched fusions will be fetched again next run"))
	}
}

func (c *Coordinator) record(ctx context.Context, batch ledger.Batch, outcomes []ledger.Outcome) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordBatch(ctx, batch, outcomes); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "fetch ledger write failed", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect or delete the ledger database"),
			logging.String(logging.FieldImpact, "batch missing from fetch history"))
	}
}
