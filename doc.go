// Package semsearch is a semantic search engine over live document
// sources. A search retrieves candidate documents concurrently, splits
// them into sentence-boundary-respecting sections, embeds each section
// through a fingerprint-keyed cache, scores sections against the query
// by cosine similarity, and returns the top-K documents with
// sentence-complete summaries.
//
// The Engine type wires the stages together; each stage is also usable
// on its own through the retrieve, sections, cache, and rank packages.
package semsearch
