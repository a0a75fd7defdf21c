package retrieve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexemelabs/semsearch/core"
)

// fakeSource is a scriptable SourceClient for tests.
type fakeSource struct {
	mu         sync.Mutex
	searchIDs  []string
	searchErr  error
	failIDs    map[string]int // id -> remaining failures before success
	fetchCalls map[string]int
}

func newFakeSource(ids ...string) *fakeSource {
	return &fakeSource{
		searchIDs:  ids,
		failIDs:    make(map[string]int),
		fetchCalls: make(map[string]int),
	}
}

func (f *fakeSource) Search(ctx context.Context, query core.Query, limit int) ([]string, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit < len(f.searchIDs) {
		return f.searchIDs[:limit], nil
	}
	return f.searchIDs, nil
}

func (f *fakeSource) Fetch(ctx context.Context, id string) (*core.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls[id]++
	if remaining := f.failIDs[id]; remaining != 0 {
		if remaining > 0 {
			f.failIDs[id]--
		}
		return nil, fmt.Errorf("transient failure for %s", id)
	}
	return &core.Document{
		ID:        id,
		Title:     "Title " + id,
		Text:      "Body of " + id + ".",
		FetchedAt: time.Now().UTC(),
	}, nil
}

func newTestRetriever(t *testing.T, source SourceClient, opts ...Option) *Retriever {
	t.Helper()
	opts = append(opts, WithMaxAttempts(2), withBaseDelay(time.Millisecond))
	r, err := NewRetriever(source, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

// withBaseDelay shortens the backoff for tests.
func withBaseDelay(d time.Duration) Option {
	return func(r *Retriever) error {
		r.baseDelay = d
		return nil
	}
}

func TestNewRetriever_NilSource(t *testing.T) {
	_, err := NewRetriever(nil)
	assert.Equal(t, ErrSourceRequired, err)
}

func TestRetrieve_AllSucceed(t *testing.T) {
	source := newFakeSource("PMC1", "PMC2", "PMC3")
	r := newTestRetriever(t, source)

	docs, err := r.Retrieve(context.Background(), core.Query{Text: "anything", TopK: 3}, 3)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"PMC1", "PMC2", "PMC3"}, ids)
}

func TestRetrieve_PartialFailure(t *testing.T) {
	source := newFakeSource("PMC1", "PMC2", "PMC3", "PMC4")
	source.failIDs["PMC2"] = -1 // always fails
	source.failIDs["PMC4"] = -1

	r := newTestRetriever(t, source)
	docs, err := r.Retrieve(context.Background(), core.Query{Text: "anything", TopK: 4}, 4)
	require.NoError(t, err, "partial failure must not fail the retrieval")
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.Contains(t, []string{"PMC1", "PMC3"}, doc.ID)
	}
}

func TestRetrieve_TransientFailureRetried(t *testing.T) {
	source := newFakeSource("PMC1")
	source.failIDs["PMC1"] = 1 // fails once, then succeeds

	r := newTestRetriever(t, source)
	docs, err := r.Retrieve(context.Background(), core.Query{Text: "anything", TopK: 1}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 2, source.fetchCalls["PMC1"])
}

func TestRetrieve_AllFail(t *testing.T) {
	source := newFakeSource("PMC1", "PMC2")
	source.failIDs["PMC1"] = -1
	source.failIDs["PMC2"] = -1

	r := newTestRetriever(t, source)
	_, err := r.Retrieve(context.Background(), core.Query{Text: "anything", TopK: 2}, 2)
	assert.ErrorIs(t, err, core.ErrNoCandidates)
}

func TestRetrieve_EmptySearch(t *testing.T) {
	source := newFakeSource()
	r := newTestRetriever(t, source)

	_, err := r.Retrieve(context.Background(), core.Query{Text: "nothing matches", TopK: 5}, 5)
	assert.ErrorIs(t, err, core.ErrNoCandidates)
}

func TestRetrieve_SearchError(t *testing.T) {
	source := newFakeSource("PMC1")
	source.searchErr = errors.New("source unavailable")

	r := newTestRetriever(t, source)
	_, err := r.Retrieve(context.Background(), core.Query{Text: "anything", TopK: 1}, 1)
	// A search transport failure is still a zero-candidate outcome.
	assert.ErrorIs(t, err, core.ErrNoCandidates)
	assert.ErrorContains(t, err, "source unavailable")
}

func TestRetrieve_InvalidQuery(t *testing.T) {
	source := newFakeSource("PMC1")
	r := newTestRetriever(t, source)

	_, err := r.Retrieve(context.Background(), core.Query{Text: "   "}, 1)
	assert.ErrorIs(t, err, core.ErrInvalidQuery)
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after failures", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		}, 5, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		boom := errors.New("persistent")
		err := RetryWithBackoff(context.Background(), func() error {
			return boom
		}, 2, time.Millisecond)
		assert.Equal(t, boom, err)
	})

	t.Run("invalid attempts", func(t *testing.T) {
		err := RetryWithBackoff(context.Background(), func() error { return nil }, 0, time.Millisecond)
		assert.Equal(t, ErrInvalidMaxAttempts, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryWithBackoff(ctx, func() error { return errors.New("x") }, 3, time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
