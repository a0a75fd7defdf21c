package core

import "time"

// Query describes a single search request. A Query is created per request
// and discarded after the response is built.
type Query struct {
	// Text is the raw free-text query.
	Text string

	// TopK is the number of results requested.
	TopK int

	// Filters are optional source-specific query constraints.
	// The document source decides how (and whether) to apply them.
	Filters map[string]string
}

// Document is a candidate document fetched from a document source.
// A Document is never mutated after it has been fetched.
type Document struct {
	// ID is the source-assigned identifier (e.g. a PMCID).
	ID string

	// Title is the document title, if the source provides one.
	Title string

	// SourceURI is a canonical link to the document at its source.
	SourceURI string

	// Text is the full extracted text of the document. Paragraph breaks
	// are encoded as blank lines.
	Text string

	// FetchedAt is when the document was retrieved from the source.
	FetchedAt time.Time
}

// Section is a sentence-boundary-respecting sub-unit of a document.
// Sections are the granularity at which similarity is scored.
// A Section is immutable once created.
type Section struct {
	// DocumentID identifies the owning document.
	DocumentID string

	// Ordinal is the section's position within the document, starting at 0.
	Ordinal int

	// Text is the section's text span.
	Text string

	// SentenceEnds holds the byte offsets (exclusive) of sentence-terminal
	// boundaries within Text, in ascending order. Empty when the section
	// has no detectable sentence boundaries.
	SentenceEnds []int
}

// CacheEntry is a cached embedding, owned exclusively by the embedding cache.
type CacheEntry struct {
	Fingerprint Fingerprint
	Vector      []float32
	InsertedAt  time.Time
	AccessedAt  time.Time
}

// SectionScore is the similarity score of a single section against the query.
type SectionScore struct {
	Ordinal int
	Score   float32
}

// ScoredResult is one ranked search result. It is created by the ranker
// and immutable from the consumer's point of view.
type ScoredResult struct {
	DocumentID string
	Title      string
	SourceURI  string

	// Score is the aggregate document similarity, clamped to [-1, 1].
	Score float32

	// Best is the highest-scoring section, the anchor for summarization.
	Best *Section

	// SectionScores holds per-section similarities for every section that
	// embedded successfully, in section order. Exposed for evaluation.
	SectionScores []SectionScore

	// Summary is a sentence-complete excerpt of the best section.
	Summary string
}
