// Copyright 2025 Lexeme Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package semsearch

import (
	"context"
	"log/slog"
	"time"

	"github.com/lexemelabs/semsearch/ai"
	"github.com/lexemelabs/semsearch/cache"
	"github.com/lexemelabs/semsearch/core"
	"github.com/lexemelabs/semsearch/rank"
	"github.com/lexemelabs/semsearch/retrieve"
	"github.com/lexemelabs/semsearch/sections"
	"github.com/lexemelabs/semsearch/storage"
)

// DefaultTopK is the number of results returned when a query does not
// ask for a specific count.
const DefaultTopK = 5

// overfetchFactor controls how many candidates are retrieved per
// requested result. Fetching more than topK absorbs per-document fetch
// and embedding failures without shrinking the result list.
const overfetchFactor = 2

// Response is the outcome of one search.
type Response struct {
	// Query is the query as executed, with defaults applied.
	Query core.Query

	// RetrievedAt is when candidate retrieval started, in UTC.
	RetrievedAt time.Time

	// Results are the ranked results, best first.
	Results []core.ScoredResult
}

// Engine wires candidate retrieval, section extraction, cached
// embedding, and similarity ranking into a single search operation.
type Engine struct {
	retriever  *retrieve.Retriever
	ranker     *rank.Ranker
	cache      *cache.Cache
	summaryLen int
	logger     *slog.Logger
}

// config collects option state before the stage components exist.
type config struct {
	entryStore       storage.EntryStore
	cacheCapacity    int
	storeCapacity    int
	batchSize        int
	fetchConcurrency int
	fetchTimeout     time.Duration
	fetchAttempts    int
	embedConcurrency int
	maxSectionLen    int
	minSectionLen    int
	summaryLen       int
	aggregation      rank.Aggregation
	logger           *slog.Logger
}

// Option configures an Engine.
type Option func(*config)

// WithEntryStore persists embeddings across runs.
func WithEntryStore(store storage.EntryStore) Option {
	return func(c *config) { c.entryStore = store }
}

// WithCacheCapacity bounds the in-memory embedding cache.
func WithCacheCapacity(n int) Option {
	return func(c *config) { c.cacheCapacity = n }
}

// WithStoreCapacity bounds the persistent embedding store.
func WithStoreCapacity(n int) Option {
	return func(c *config) { c.storeCapacity = n }
}

// WithBatchSize sets the embedding provider batch size.
func WithBatchSize(n int) Option {
	return func(c *config) { c.batchSize = n }
}

// WithFetchConcurrency sets the number of concurrent document fetches.
func WithFetchConcurrency(n int) Option {
	return func(c *config) { c.fetchConcurrency = n }
}

// WithFetchTimeout bounds each document fetch attempt.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *config) { c.fetchTimeout = d }
}

// WithFetchAttempts sets the per-document retry budget.
func WithFetchAttempts(n int) Option {
	return func(c *config) { c.fetchAttempts = n }
}

// WithEmbedConcurrency sets the number of concurrent section embeddings.
func WithEmbedConcurrency(n int) Option {
	return func(c *config) { c.embedConcurrency = n }
}

// WithSectionLengths sets the maximum and minimum section sizes in
// characters. Zero leaves a bound at its default.
func WithSectionLengths(max, min int) Option {
	return func(c *config) {
		c.maxSectionLen = max
		c.minSectionLen = min
	}
}

// WithSummaryLength sets the summary character budget.
func WithSummaryLength(n int) Option {
	return func(c *config) { c.summaryLen = n }
}

// WithAggregation sets the document scoring policy.
func WithAggregation(agg rank.Aggregation) Option {
	return func(c *config) { c.aggregation = agg }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an Engine over a document source and an embedding
// provider.
func New(source retrieve.SourceClient, embedder ai.Embedder, opts ...Option) (*Engine, error) {
	cfg := &config{
		summaryLen: sections.DefaultSummaryLength,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var cacheOpts []cache.Option
	if cfg.entryStore != nil {
		cacheOpts = append(cacheOpts, cache.WithStore(cfg.entryStore))
	}
	if cfg.cacheCapacity > 0 {
		cacheOpts = append(cacheOpts, cache.WithCapacity(cfg.cacheCapacity))
	}
	if cfg.storeCapacity > 0 {
		cacheOpts = append(cacheOpts, cache.WithStoreCapacity(cfg.storeCapacity))
	}
	if cfg.batchSize > 0 {
		cacheOpts = append(cacheOpts, cache.WithBatchSize(cfg.batchSize))
	}
	cacheOpts = append(cacheOpts, cache.WithLogger(cfg.logger))

	embeddingCache, err := cache.New(embedder, cacheOpts...)
	if err != nil {
		return nil, err
	}

	var retrieveOpts []retrieve.Option
	if cfg.fetchConcurrency > 0 {
		retrieveOpts = append(retrieveOpts, retrieve.WithConcurrency(cfg.fetchConcurrency))
	}
	if cfg.fetchTimeout > 0 {
		retrieveOpts = append(retrieveOpts, retrieve.WithFetchTimeout(cfg.fetchTimeout))
	}
	if cfg.fetchAttempts > 0 {
		retrieveOpts = append(retrieveOpts, retrieve.WithMaxAttempts(cfg.fetchAttempts))
	}
	retrieveOpts = append(retrieveOpts, retrieve.WithLogger(cfg.logger))

	retriever, err := retrieve.NewRetriever(source, retrieveOpts...)
	if err != nil {
		return nil, err
	}

	var extractorOpts []sections.Option
	if cfg.maxSectionLen > 0 {
		extractorOpts = append(extractorOpts, sections.WithMaxLength(cfg.maxSectionLen))
	}
	if cfg.minSectionLen > 0 {
		extractorOpts = append(extractorOpts, sections.WithMinLength(cfg.minSectionLen))
	}
	extractor := sections.NewExtractor(extractorOpts...)

	rankOpts := []rank.Option{
		rank.WithAggregation(cfg.aggregation),
		rank.WithLogger(cfg.logger),
	}
	if cfg.embedConcurrency > 0 {
		rankOpts = append(rankOpts, rank.WithConcurrency(cfg.embedConcurrency))
	}

	ranker, err := rank.NewRanker(embeddingCache, extractor, rankOpts...)
	if err != nil {
		retriever.Release()
		return nil, err
	}

	return &Engine{
		retriever:  retriever,
		ranker:     ranker,
		cache:      embeddingCache,
		summaryLen: cfg.summaryLen,
		logger:     cfg.logger,
	}, nil
}

// Search retrieves candidates for the query, ranks them, and returns
// the top results with sentence-complete summaries. A query with a
// zero TopK gets DefaultTopK results.
func (e *Engine) Search(ctx context.Context, query core.Query) (*Response, error) {
	return e.SearchWithMonitor(ctx, query, NoopMonitor{})
}

// SearchWithMonitor is Search with stage callbacks.
func (e *Engine) SearchWithMonitor(ctx context.Context, query core.Query, monitor Monitor) (resp *Response, err error) {
	if monitor == nil {
		monitor = NoopMonitor{}
	}
	if query.TopK < 1 {
		query.TopK = DefaultTopK
	}

	monitor.Start(query)
	defer func() { monitor.Finish(resp, err) }()

	retrievedAt := time.Now().UTC()
	docs, err := e.retriever.Retrieve(ctx, query, query.TopK*overfetchFactor)
	monitor.AfterRetrieve(len(docs), err)
	if err != nil {
		return nil, err
	}

	results, err := e.ranker.RankWithMonitor(ctx, query, docs, monitor)
	if err != nil {
		return nil, err
	}

	for i := range results {
		if best := results[i].Best; best != nil {
			results[i].Summary = sections.SummarizeSection(best.Text, best.SentenceEnds, e.summaryLen)
		}
	}
	monitor.AfterSummarize(len(results))

	e.logger.Debug("search complete",
		"query", query.Text, "candidates", len(docs), "results", len(results))

	return &Response{
		Query:       query,
		RetrievedAt: retrievedAt,
		Results:     results,
	}, nil
}

// CacheStats reports embedding cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// Release releases the engine's worker pools. The Engine must not be
// used after calling Release. Stores passed in through options belong
// to the caller and are not closed here.
func (e *Engine) Release() {
	e.retriever.Release()
	e.ranker.Release()
}
