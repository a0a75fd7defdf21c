package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/lexemelabs/semsearch/ai"
	"github.com/lexemelabs/semsearch/core"
	"github.com/lexemelabs/semsearch/storage"
)

const (
	defaultCapacity  = 4096
	defaultBatchSize = 16

	// How many computed entries may accumulate before the backing store
	// is checked against its capacity.
	pruneCheckInterval = 64
)

// Cache is the embedding cache. It maps text fingerprints to embedding
// vectors, collapsing duplicate concurrent computations into a single
// provider call and evicting least-recently-used entries beyond capacity.
//
// The cache is the only state shared across concurrent queries; all of its
// methods are safe for concurrent use. It is strictly a performance layer:
// a cold cache produces the same ranking results as a warm one.
type Cache struct {
	embedder ai.Embedder
	store    storage.EntryStore
	front    *lru.Cache[core.Fingerprint, []float32]
	group    singleflight.Group
	logger   *slog.Logger

	batchSize     int
	storeCapacity int

	hits     atomic.Int64
	misses   atomic.Int64
	computes atomic.Int64
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits     int64
	Misses   int64
	Computes int64
}

// Option configures a Cache.
type Option func(*Cache) error

// WithCapacity sets the in-memory capacity (entries). Default is 4096.
func WithCapacity(capacity int) Option {
	return func(c *Cache) error {
		if capacity < 1 {
			capacity = 1
		}
		front, err := lru.New[core.Fingerprint, []float32](capacity)
		if err != nil {
			return err
		}
		c.front = front
		return nil
	}
}

// WithStore sets a persistent backing store. Entries survive process
// restarts; read failures and corrupt entries are treated as misses.
// The store's lifecycle is owned by the caller.
func WithStore(store storage.EntryStore) Option {
	return func(c *Cache) error {
		c.store = store
		return nil
	}
}

// WithStoreCapacity bounds the backing store (entries); oldest-accessed
// entries are pruned beyond it. Zero means unbounded.
func WithStoreCapacity(capacity int) Option {
	return func(c *Cache) error {
		if capacity < 0 {
			capacity = 0
		}
		c.storeCapacity = capacity
		return nil
	}
}

// WithBatchSize sets the provider batch size used by Warm. Default is 16.
func WithBatchSize(size int) Option {
	return func(c *Cache) error {
		if size < 1 {
			size = 1
		}
		c.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "embedding-cache")
		return nil
	}
}

// New creates an embedding cache backed by the given provider.
func New(embedder ai.Embedder, opts ...Option) (*Cache, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	front, err := lru.New[core.Fingerprint, []float32](defaultCapacity)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		embedder:  embedder,
		front:     front,
		logger:    slog.Default().With("component", "embedding-cache"),
		batchSize: defaultBatchSize,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// GetOrCompute returns the embedding for text, computing it via the
// provider at most once per fingerprint regardless of how many callers
// ask concurrently. The returned vector is unit-normalized and shared;
// callers must not modify it.
//
// Provider failures propagate wrapped in core.ErrEmbeddingFailed and are
// never cached: a later call for the same text retries.
func (c *Cache) GetOrCompute(ctx context.Context, text string) ([]float32, error) {
	fp := core.FingerprintOf(text)

	if vec, ok := c.front.Get(fp); ok {
		c.hits.Add(1)
		return vec, nil
	}
	if vec, ok := c.loadStored(ctx, fp); ok {
		return vec, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(fp.String(), func() (any, error) {
		// Another caller may have finished while we queued.
		if vec, ok := c.front.Get(fp); ok {
			return vec, nil
		}
		return c.compute(ctx, fp, text)
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Warm precomputes embeddings for the given texts, batching cache misses
// into grouped provider calls. Warm is purely an optimization: failures
// are logged and absorbed, and a later GetOrCompute falls back to
// per-text computation.
func (c *Cache) Warm(ctx context.Context, texts []string) {
	type pending struct {
		fp   core.Fingerprint
		text string
	}

	seen := make(map[core.Fingerprint]bool, len(texts))
	var misses []pending
	for _, text := range texts {
		fp := core.FingerprintOf(text)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		if c.front.Contains(fp) {
			continue
		}
		if _, ok := c.loadStored(ctx, fp); ok {
			continue
		}
		misses = append(misses, pending{fp: fp, text: text})
	}

	for start := 0; start < len(misses); start += c.batchSize {
		end := min(start+c.batchSize, len(misses))
		batch := misses[start:end]

		done := make(chan struct{})
		var vecs map[core.Fingerprint][]float32
		var batchErr error

		// Register the pending batch results with the singleflight group
		// so concurrent GetOrCompute callers for the same fingerprints
		// wait on this batch instead of issuing duplicate provider calls.
		for _, p := range batch {
			c.group.DoChan(p.fp.String(), func() (any, error) {
				<-done
				if batchErr != nil {
					// A failed batch must not fail its healthy texts:
					// retry this text on its own inside the flight so
					// joined callers see the per-text outcome.
					return c.compute(ctx, p.fp, p.text)
				}
				vec, ok := vecs[p.fp]
				if !ok {
					return c.compute(ctx, p.fp, p.text)
				}
				return vec, nil
			})
		}

		batchTexts := make([]string, len(batch))
		for i, p := range batch {
			batchTexts[i] = p.text
		}

		out, err := c.embedder.EmbedTexts(ctx, batchTexts)
		if err == nil && len(out) != len(batch) {
			err = fmt.Errorf("embedding result mismatch: expected %d, received %d", len(batch), len(out))
		}
		if err != nil {
			batchErr = err
			close(done)
			c.logger.Warn("batch embedding failed, deferring to per-text computation",
				"batch", len(batch), "err", err)
			continue
		}

		vecs = make(map[core.Fingerprint][]float32, len(batch))
		for i, p := range batch {
			vec := core.NormalizeVector(out[i])
			vecs[p.fp] = vec
			c.insert(ctx, p.fp, vec)
		}
		close(done)
	}
}

// Len returns the number of entries held in memory.
func (c *Cache) Len() int {
	return c.front.Len()
}

// Stats returns cache effectiveness counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Computes: c.computes.Load(),
	}
}

// loadStored promotes an entry from the backing store into memory.
// Any store failure is treated as a miss; corrupt entries are dropped so
// the next computation overwrites them.
func (c *Cache) loadStored(ctx context.Context, fp core.Fingerprint) ([]float32, bool) {
	if c.store == nil {
		return nil, false
	}

	entry, err := c.store.GetEntry(ctx, fp)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("cache store read failed, treating as miss", "fingerprint", fp, "err", err)
			if delErr := c.store.DeleteEntries(ctx, fp); delErr != nil {
				c.logger.Debug("could not drop unreadable entry", "fingerprint", fp, "err", delErr)
			}
		}
		return nil, false
	}

	c.hits.Add(1)
	c.front.Add(fp, entry.Vector)
	if err := c.store.TouchEntry(ctx, fp); err != nil {
		c.logger.Debug("could not refresh entry access time", "fingerprint", fp, "err", err)
	}
	return entry.Vector, true
}

func (c *Cache) compute(ctx context.Context, fp core.Fingerprint, text string) ([]float32, error) {
	vec, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: fingerprint %s: %w", core.ErrEmbeddingFailed, fp, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: provider returned an empty vector", core.ErrEmbeddingFailed)
	}

	vec = core.NormalizeVector(vec)
	c.insert(ctx, fp, vec)
	return vec, nil
}

func (c *Cache) insert(ctx context.Context, fp core.Fingerprint, vec []float32) {
	c.front.Add(fp, vec)
	computes := c.computes.Add(1)

	if c.store == nil {
		return
	}
	if err := c.store.PutEntry(ctx, &core.CacheEntry{Fingerprint: fp, Vector: vec}); err != nil {
		c.logger.Warn("could not persist cache entry", "fingerprint", fp, "err", err)
		return
	}
	if c.storeCapacity > 0 && computes%pruneCheckInterval == 0 {
		if _, err := c.store.PruneEntries(ctx, c.storeCapacity); err != nil {
			c.logger.Warn("cache store prune failed", "err", err)
		}
	}
}
