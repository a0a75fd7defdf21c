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

package rank

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/lexemelabs/semsearch/cache"
	"github.com/lexemelabs/semsearch/core"
	"github.com/lexemelabs/semsearch/sections"
)

// Aggregation selects how per-section similarities combine into a
// document score.
type Aggregation int

const (
	// AggregateMax scores a document by its best-matching section.
	// This is the default.
	AggregateMax Aggregation = iota

	// AggregateMean scores a document by the mean of its section
	// similarities. Useful for long multi-topic documents where a
	// single matching section overstates relevance.
	AggregateMean
)

// Ranker embeds the query and every candidate section, scores sections
// by cosine similarity, and returns the top-K documents in a
// deterministic order.
type Ranker struct {
	cache       *cache.Cache
	extractor   *sections.Extractor
	pool        *ants.Pool
	aggregation Aggregation
	logger      *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker) error

// WithConcurrency sets the number of concurrent section embeddings.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithConcurrency(n int) Option {
	return func(r *Ranker) error {
		if n < 1 {
			n = 1
		}
		if r.pool != nil {
			r.pool.Release()
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		r.pool = pool
		return nil
	}
}

// WithAggregation sets the document scoring policy.
func WithAggregation(agg Aggregation) Option {
	return func(r *Ranker) error {
		r.aggregation = agg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRanker creates a Ranker over the given embedding cache and
// section extractor.
func NewRanker(embeddingCache *cache.Cache, extractor *sections.Extractor, opts ...Option) (*Ranker, error) {
	if embeddingCache == nil {
		return nil, ErrCacheRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	poolSize := runtime.NumCPU()
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Ranker{
		cache:     embeddingCache,
		extractor: extractor,
		pool:      pool,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(r); optErr != nil {
			r.Release()
			return nil, optErr
		}
	}
	return r, nil
}

// scoredSection pairs a section with its embedding outcome.
type scoredSection struct {
	section core.Section
	vector  []float32
	err     error
}

// candidate tracks one document through scoring.
type candidate struct {
	index    int // retrieval order
	doc      *core.Document
	sections []scoredSection
}

// Rank scores documents against the query and returns at most
// query.TopK results.
func (r *Ranker) Rank(ctx context.Context, query core.Query, docs []*core.Document) ([]core.ScoredResult, error) {
	return r.RankWithMonitor(ctx, query, docs, NoopMonitor{})
}

// RankWithMonitor is Rank with stage callbacks. Ranking only begins
// once every section embedding has resolved, successfully or not; there
// is no partial ranking. Documents none of whose sections embedded are
// excluded rather than scored zero.
func (r *Ranker) RankWithMonitor(ctx context.Context, query core.Query, docs []*core.Document, monitor Monitor) ([]core.ScoredResult, error) {
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}
	if monitor == nil {
		monitor = NoopMonitor{}
	}
	if len(docs) == 0 {
		return nil, core.ErrNothingToRank
	}

	queryVec, err := r.cache.GetOrCompute(ctx, query.Text)
	monitor.AfterQueryEmbed(query, err)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	candidates := r.extractAll(docs, monitor)

	// Warm the cache in provider batches before fanning out, so the
	// per-section lookups below mostly hit.
	r.cache.Warm(ctx, sectionTexts(candidates))
	r.embedAll(ctx, candidates)

	results := r.score(queryVec, candidates, monitor)
	if len(results) == 0 {
		return nil, core.ErrNothingToRank
	}

	if query.TopK < len(results) {
		results = results[:query.TopK]
	}
	return results, nil
}

// extractAll splits every document into sections.
func (r *Ranker) extractAll(docs []*core.Document, monitor Monitor) []*candidate {
	candidates := make([]*candidate, 0, len(docs))
	for i, doc := range docs {
		secs := r.extractor.Extract(doc)
		monitor.AfterExtract(doc.ID, len(secs))
		if len(secs) == 0 {
			r.logger.Warn("document yielded no sections", "id", doc.ID)
			continue
		}

		c := &candidate{index: i, doc: doc, sections: make([]scoredSection, len(secs))}
		for j, sec := range secs {
			c.sections[j].section = sec
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// sectionTexts flattens every candidate section's text.
func sectionTexts(candidates []*candidate) []string {
	var texts []string
	for _, c := range candidates {
		for _, s := range c.sections {
			texts = append(texts, s.section.Text)
		}
	}
	return texts
}

// embedAll resolves every section embedding concurrently and waits for
// all of them.
func (r *Ranker) embedAll(ctx context.Context, candidates []*candidate) {
	var wg sync.WaitGroup
	for _, c := range candidates {
		for j := range c.sections {
			wg.Add(1)
			s := &c.sections[j]
			task := func() {
				defer wg.Done()
				s.vector, s.err = r.cache.GetOrCompute(ctx, s.section.Text)
			}
			if err := r.pool.Submit(task); err != nil {
				task()
			}
		}
	}
	wg.Wait()
}

// ranked pairs a result with its retrieval order for tie-breaking.
type ranked struct {
	result core.ScoredResult
	index  int
}

// score turns embedding outcomes into ordered results.
func (r *Ranker) score(queryVec []float32, candidates []*candidate, monitor Monitor) []core.ScoredResult {
	var scored []ranked

	for _, c := range candidates {
		var (
			scores   []core.SectionScore
			best     *core.Section
			bestScr  float32
			scoreSum float32
		)
		for j := range c.sections {
			s := &c.sections[j]
			monitor.AfterEmbed(c.doc.ID, s.section.Ordinal, s.err)
			if s.err != nil {
				r.logger.Warn("section embedding failed",
					"id", c.doc.ID, "ordinal", s.section.Ordinal, "err", s.err)
				continue
			}
			score := core.ClampScore(core.CosineSimilarity(queryVec, s.vector))
			scores = append(scores, core.SectionScore{Ordinal: s.section.Ordinal, Score: score})
			scoreSum += score
			if best == nil || score > bestScr {
				best = &s.section
				bestScr = score
			}
		}

		// Every section failed: the document is excluded, not zero-scored.
		if len(scores) == 0 {
			r.logger.Warn("excluding document, no section embedded", "id", c.doc.ID)
			continue
		}

		docScore := bestScr
		if r.aggregation == AggregateMean {
			docScore = core.ClampScore(scoreSum / float32(len(scores)))
		}
		monitor.AfterScore(c.doc.ID, docScore)

		scored = append(scored, ranked{
			result: core.ScoredResult{
				DocumentID:    c.doc.ID,
				Title:         c.doc.Title,
				SourceURI:     c.doc.SourceURI,
				Score:         docScore,
				Best:          best,
				SectionScores: scores,
			},
			index: c.index,
		})
	}

	// Deterministic order: score descending, then original retrieval
	// order, then document ID.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].result.Score != scored[j].result.Score {
			return scored[i].result.Score > scored[j].result.Score
		}
		if scored[i].index != scored[j].index {
			return scored[i].index < scored[j].index
		}
		return scored[i].result.DocumentID < scored[j].result.DocumentID
	})

	results := make([]core.ScoredResult, len(scored))
	for i, s := range scored {
		results[i] = s.result
	}
	return results
}

// Release releases the worker pool. The Ranker must not be used after
// calling Release.
func (r *Ranker) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}
