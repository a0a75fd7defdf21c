package pmc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/lexemelabs/semsearch/core"
	"github.com/lexemelabs/semsearch/storage/badger"
)

const sampleArticleXML = `<?xml version="1.0"?>
<pmc-articleset>
  <article>
    <front>
      <article-meta>
        <title-group>
          <article-title>Advances in <italic>Glioblastoma</italic> Therapy</article-title>
        </title-group>
      </article-meta>
    </front>
    <body>
      <sec>
        <title>Introduction</title>
        <p>Glioblastoma remains difficult to treat. New methods emerge yearly.</p>
      </sec>
      <sec>
        <title>Methods</title>
        <p>We reviewed published trials. Inclusion criteria were strict.</p>
      </sec>
    </body>
  </article>
</pmc-articleset>`

const paragraphOnlyXML = `<?xml version="1.0"?>
<article>
  <body>
    <p>First standalone paragraph of text.</p>
    <p>Second standalone paragraph of text.</p>
  </body>
</article>`

func unlimited() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

func TestNormalizePMCID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"PMC1234567", "PMC1234567"},
		{"pmc1234567", "PMC1234567"},
		{" 1234567 ", "PMC1234567"},
	}
	for _, tc := range cases {
		got, err := NormalizePMCID(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}

	for _, bad := range []string{"", "PMC", "PMCabc", "12a34"} {
		_, err := NormalizePMCID(bad)
		assert.ErrorIs(t, err, ErrInvalidPMCID, "input %q", bad)
	}
}

func TestBuildQuery(t *testing.T) {
	t.Run("open access restriction", func(t *testing.T) {
		got := buildQuery(core.Query{Text: "glioblastoma therapy"})
		assert.Equal(t, "(glioblastoma therapy) AND OPEN_ACCESS:Y", got)
	})

	t.Run("filters become fielded clauses in stable order", func(t *testing.T) {
		got := buildQuery(core.Query{
			Text:    "immunotherapy",
			Filters: map[string]string{"src": "med", "auth": "smith"},
		})
		assert.Equal(t, `(immunotherapy) AND OPEN_ACCESS:Y AND AUTH:"smith" AND SRC:"med"`, got)
	})
}

func TestSearch(t *testing.T) {
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Get("query"))
		w.Write([]byte(`{"resultList":{"result":[
			{"pmcid":"PMC111"},
			{"pmcid":"pmc222"},
			{"id":"333"},
			{"pmcid":"PMC111"},
			{"id":"not-a-pmcid"}
		]}}`))
	}))
	defer server.Close()

	client := NewClient(WithEndpoints(server.URL, ""), WithRateLimit(unlimited()))
	ids, err := client.Search(context.Background(), core.Query{Text: "cancer", TopK: 5}, 5)
	require.NoError(t, err)

	// Normalized, deduplicated, malformed entries dropped.
	assert.Equal(t, []string{"PMC111", "PMC222", "PMC333"}, ids)
	assert.Equal(t, "(cancer) AND OPEN_ACCESS:Y", gotQuery.Load())
}

func TestSearch_LimitApplied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resultList":{"result":[
			{"pmcid":"PMC1"},{"pmcid":"PMC2"},{"pmcid":"PMC3"}
		]}}`))
	}))
	defer server.Close()

	client := NewClient(WithEndpoints(server.URL, ""), WithRateLimit(unlimited()))
	ids, err := client.Search(context.Background(), core.Query{Text: "x", TopK: 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"PMC1", "PMC2"}, ids)
}

func TestSearch_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithEndpoints(server.URL, ""), WithRateLimit(unlimited()))
	_, err := client.Search(context.Background(), core.Query{Text: "x", TopK: 1}, 1)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestFetch(t *testing.T) {
	var fetches atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		assert.Equal(t, "pmc", r.URL.Query().Get("db"))
		assert.Equal(t, "7777", r.URL.Query().Get("id"), "efetch takes bare digits")
		w.Write([]byte(sampleArticleXML))
	}))
	defer server.Close()

	client := NewClient(WithEndpoints("", server.URL), WithRateLimit(unlimited()))
	doc, err := client.Fetch(context.Background(), "PMC7777")
	require.NoError(t, err)

	assert.Equal(t, "PMC7777", doc.ID)
	assert.Equal(t, "Advances in Glioblastoma Therapy", doc.Title)
	assert.Equal(t, "https://pmc.ncbi.nlm.nih.gov/articles/PMC7777/", doc.SourceURI)
	assert.WithinDuration(t, time.Now().UTC(), doc.FetchedAt, time.Minute)

	// Both sections present, blank-line separated, titles folded in.
	parts := strings.Split(doc.Text, "\n\n")
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "Introduction")
	assert.Contains(t, parts[0], "difficult to treat")
	assert.Contains(t, parts[1], "Methods")
	assert.Contains(t, parts[1], "Inclusion criteria were strict")
}

func TestFetch_ParagraphFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(paragraphOnlyXML))
	}))
	defer server.Close()

	client := NewClient(WithEndpoints("", server.URL), WithRateLimit(unlimited()))
	doc, err := client.Fetch(context.Background(), "PMC1")
	require.NoError(t, err)
	assert.Equal(t,
		"First standalone paragraph of text.\n\nSecond standalone paragraph of text.",
		doc.Text)
}

func TestFetch_NoBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<article><front></front></article>`))
	}))
	defer server.Close()

	client := NewClient(WithEndpoints("", server.URL), WithRateLimit(unlimited()))
	_, err := client.Fetch(context.Background(), "PMC1")
	assert.ErrorIs(t, err, ErrNoFullText)
}

func TestFetch_ResponseCache(t *testing.T) {
	var fetches atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte(sampleArticleXML))
	}))
	defer server.Close()

	_, responses, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	client := NewClient(
		WithEndpoints("", server.URL),
		WithResponseStore(responses),
		WithRateLimit(unlimited()),
	)

	ctx := context.Background()
	first, err := client.Fetch(ctx, "PMC7777")
	require.NoError(t, err)
	second, err := client.Fetch(ctx, "PMC7777")
	require.NoError(t, err)

	assert.Equal(t, int64(1), fetches.Load(), "second fetch must hit the cache")
	assert.Equal(t, first.Text, second.Text)
}

func TestFetch_CorruptCachedResponseRefetched(t *testing.T) {
	var fetches atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte(sampleArticleXML))
	}))
	defer server.Close()

	_, responses, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, responses.PutResponse(ctx, "PMC7777", []byte("<article><body><sec>truncated")))

	client := NewClient(
		WithEndpoints("", server.URL),
		WithResponseStore(responses),
		WithRateLimit(unlimited()),
	)

	doc, err := client.Fetch(ctx, "PMC7777")
	require.NoError(t, err, "corrupt cached XML must fall through to a refetch")
	assert.Equal(t, int64(1), fetches.Load())
	assert.Contains(t, doc.Text, "difficult to treat")
}

func TestFetch_InvalidID(t *testing.T) {
	client := NewClient(WithRateLimit(unlimited()))
	_, err := client.Fetch(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, ErrInvalidPMCID)
}
