package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexemelabs/semsearch/ai/mock"
	"github.com/lexemelabs/semsearch/core"
	"github.com/lexemelabs/semsearch/storage"
	"github.com/lexemelabs/semsearch/storage/badger"
)

func TestNew(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		c, err := New(mock.NewMockEmbedder())
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := New(nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestGetOrCompute_RoundTrip(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	c, err := New(embedder)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := c.GetOrCompute(ctx, "glioblastoma treatment outcomes")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := c.GetOrCompute(ctx, "glioblastoma treatment outcomes")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, embedder.CallCount(), "second call must be served from cache")
}

func TestGetOrCompute_NormalizationSharesEntries(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	c, err := New(embedder)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.GetOrCompute(ctx, "dense  vector\nsimilarity")
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, " dense vector similarity ")
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.CallCount())
}

func TestGetOrCompute_ConcurrentSingleComputation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		close(started)
		<-release
		return []float32{1, 0, 0}, nil
	}

	c, err := New(embedder)
	require.NoError(t, err)

	ctx := context.Background()
	const callers = 16

	var wg sync.WaitGroup
	results := make([][]float32, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(ctx, "same text")
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, 1, embedder.CallCount(), "concurrent callers must share one provider call")
}

func TestGetOrCompute_FailureNotCached(t *testing.T) {
	boom := errors.New("provider down")
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}

	c, err := New(embedder)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.GetOrCompute(ctx, "flaky text")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingFailed)

	// Recovery: the fingerprint stayed absent, so the next call retries.
	embedder.EmbedTextFunc = nil
	vec, err := c.GetOrCompute(ctx, "flaky text")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)
}

func TestGetOrCompute_LRUEviction(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	c, err := New(embedder, WithCapacity(2))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.GetOrCompute(ctx, "one")
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "two")
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "three")
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())

	// "one" was evicted; recomputing it costs another provider call,
	// but the result is identical (eviction never changes ranking).
	before := embedder.CallCount()
	again, err := c.GetOrCompute(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, before+1, embedder.CallCount())
	assert.Equal(t, core.NormalizeVector(mock.DeterministicVector("one", 384)), again)
}

func TestGetOrCompute_PersistentStore(t *testing.T) {
	entries, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	embedder := mock.NewMockEmbedder()

	c, err := New(embedder, WithStore(entries))
	require.NoError(t, err)
	vec, err := c.GetOrCompute(ctx, "persisted text")
	require.NoError(t, err)

	// A fresh cache over the same store hits without a provider call.
	embedder2 := mock.NewMockEmbedder()
	c2, err := New(embedder2, WithStore(entries))
	require.NoError(t, err)
	vec2, err := c2.GetOrCompute(ctx, "persisted text")
	require.NoError(t, err)

	assert.Equal(t, vec, vec2)
	assert.Zero(t, embedder2.CallCount())
}

func TestGetOrCompute_CorruptStoreEntryIsMiss(t *testing.T) {
	entries, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	fp := core.FingerprintOf("corrupted text")

	// Plant a truncated record under the fingerprint's key.
	require.NoError(t, backend.WithTx(func(tx *badgerdb.Txn) error {
		entry := &core.CacheEntry{Fingerprint: fp, Vector: []float32{1, 2, 3}}
		data := storage.MarshalCacheEntry(entry)
		key := append([]byte("embent:"), fpKey(fp)...)
		if err := tx.Set(key, data[:3]); err != nil {
			return err
		}
		return tx.Commit()
	}, true))

	embedder := mock.NewMockEmbedder()
	c, err := New(embedder, WithStore(entries))
	require.NoError(t, err)

	vec, err := c.GetOrCompute(ctx, "corrupted text")
	require.NoError(t, err, "corruption must be treated as a miss, never fatal")
	assert.NotEmpty(t, vec)
	assert.Equal(t, 1, embedder.CallCount())

	// The recomputed entry replaced the corrupt one.
	got, err := entries.GetEntry(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, vec, got.Vector)
}

func TestWarm_BatchesMisses(t *testing.T) {
	var batchCalls int
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		batchCalls++
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, 8)
		}
		return out, nil
	}

	c, err := New(embedder, WithBatchSize(4))
	require.NoError(t, err)

	ctx := context.Background()
	texts := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	c.Warm(ctx, texts)

	assert.Equal(t, 3, batchCalls)

	// Everything warmed; no further provider calls needed.
	embedder.Reset()
	for _, text := range texts {
		_, err := c.GetOrCompute(ctx, text)
		require.NoError(t, err)
	}
	assert.Zero(t, embedder.CallCount())
}

func TestWarm_FailureAbsorbed(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("batch endpoint down")
	}

	c, err := New(embedder)
	require.NoError(t, err)

	ctx := context.Background()
	c.Warm(ctx, []string{"x", "y"})

	// Per-text fallback still works for every text in the failed batch,
	// including callers that join the flights Warm registered.
	for _, text := range []string{"x", "y"} {
		vec, err := c.GetOrCompute(ctx, text)
		require.NoError(t, err, "text %q", text)
		assert.NotEmpty(t, vec)
	}
}

func TestWarm_PoisonedBatchRetriesPerText(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("batch rejected")
	}
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == "poisoned" {
			return nil, errors.New("provider refused text")
		}
		return mock.DeterministicVector(text, 4), nil
	}

	c, err := New(embedder)
	require.NoError(t, err)

	ctx := context.Background()
	c.Warm(ctx, []string{"healthy one", "poisoned", "healthy two"})

	// One bad text fails on its own; the rest of the batch resolves.
	for _, text := range []string{"healthy one", "healthy two"} {
		vec, err := c.GetOrCompute(ctx, text)
		require.NoError(t, err, "text %q", text)
		assert.Len(t, vec, 4)
	}
	_, err = c.GetOrCompute(ctx, "poisoned")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingFailed)
}

// fpKey renders a fingerprint the way the badger key schema does.
func fpKey(fp core.Fingerprint) []byte {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(fp)
		fp >>= 8
	}
	return buf
}
