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

package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/lexemelabs/semsearch/core"
)

// SourceClient is a client for an external document source.
type SourceClient interface {
	// Search returns up to limit document identifiers matching the query.
	Search(ctx context.Context, query core.Query, limit int) ([]string, error)

	// Fetch retrieves a single document by identifier.
	Fetch(ctx context.Context, id string) (*core.Document, error)
}

const (
	defaultConcurrency  = 5
	defaultFetchTimeout = 30 * time.Second
	defaultMaxAttempts  = 2
	defaultBaseDelay    = 500 * time.Millisecond
)

// Retriever fetches candidate documents from a document source with
// bounded concurrency. Individual fetch failures are logged and
// excluded; retrieval only fails when no document could be obtained.
type Retriever struct {
	source       SourceClient
	pool         *ants.Pool
	fetchTimeout time.Duration
	maxAttempts  int
	baseDelay    time.Duration
	logger       *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithConcurrency sets the number of concurrent fetches.
// Default is 5.
func WithConcurrency(n int) Option {
	return func(r *Retriever) error {
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

// WithFetchTimeout bounds each individual fetch attempt.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Retriever) error {
		if d > 0 {
			r.fetchTimeout = d
		}
		return nil
	}
}

// WithMaxAttempts sets the per-document fetch attempt limit.
func WithMaxAttempts(n int) Option {
	return func(r *Retriever) error {
		if n <= 0 {
			return ErrInvalidMaxAttempts
		}
		r.maxAttempts = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a Retriever over the given document source.
func NewRetriever(source SourceClient, opts ...Option) (*Retriever, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}

	pool, err := ants.NewPool(defaultConcurrency)
	if err != nil {
		return nil, err
	}

	r := &Retriever{
		source:       source,
		pool:         pool,
		fetchTimeout: defaultFetchTimeout,
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(r); optErr != nil {
			r.Release()
			return nil, optErr
		}
	}

	return r, nil
}

// Retrieve searches the source and fetches up to count candidate
// documents concurrently. Fetches that fail after retries are dropped;
// the call succeeds as long as at least one document was obtained.
// Callers must not rely on the order of the returned documents.
func (r *Retriever) Retrieve(ctx context.Context, query core.Query, count int) ([]*core.Document, error) {
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}
	if count < 1 {
		count = 1
	}

	ids, err := r.source.Search(ctx, query, count)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %w", core.ErrNoCandidates, err)
	}
	if len(ids) == 0 {
		return nil, core.ErrNoCandidates
	}

	docs := make([]*core.Document, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			doc, fetchErr := r.fetchOne(ctx, id)
			if fetchErr != nil {
				r.logger.Warn("dropping candidate after failed fetch",
					"id", id, "err", fetchErr)
				return
			}
			docs[i] = doc
		}
		if submitErr := r.pool.Submit(task); submitErr != nil {
			// Pool unavailable; run on the calling goroutine.
			task()
		}
	}
	wg.Wait()

	fetched := make([]*core.Document, 0, len(docs))
	for _, doc := range docs {
		if doc != nil {
			fetched = append(fetched, doc)
		}
	}
	if len(fetched) == 0 {
		return nil, core.ErrNoCandidates
	}

	r.logger.Debug("retrieved candidates",
		"requested", count, "found", len(ids), "fetched", len(fetched))
	return fetched, nil
}

// fetchOne fetches a single document with a per-attempt timeout and
// bounded retry.
func (r *Retriever) fetchOne(ctx context.Context, id string) (*core.Document, error) {
	var doc *core.Document
	err := RetryWithBackoff(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()

		fetched, err := r.source.Fetch(attemptCtx, id)
		if err != nil {
			return err
		}
		if validErr := core.ValidateDocument(fetched); validErr != nil {
			return validErr
		}
		doc = fetched
		return nil
	}, r.maxAttempts, r.baseDelay)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Release releases the worker pool. The Retriever must not be used
// after calling Release.
func (r *Retriever) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}
