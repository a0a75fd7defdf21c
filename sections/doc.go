// Package sections splits documents into sentence-boundary-respecting
// scoring units and produces sentence-complete summaries.
//
// Splitting is purely textual: paragraph boundaries (blank lines) come
// first, then whole sentences are packed into sections up to a length
// budget. No section or summary ever ends mid-sentence.
package sections
