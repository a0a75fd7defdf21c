package rank

import "github.com/lexemelabs/semsearch/core"

// Monitor receives callbacks at each ranking stage. Implementations
// must be fast and must not block; all methods are called from the
// ranking goroutine.
type Monitor interface {
	// AfterQueryEmbed is called once the query embedding has resolved.
	AfterQueryEmbed(query core.Query, err error)

	// AfterExtract is called after a document has been split into
	// sections.
	AfterExtract(documentID string, sectionCount int)

	// AfterEmbed is called after each section embedding attempt.
	AfterEmbed(documentID string, ordinal int, err error)

	// AfterScore is called once per scored document.
	AfterScore(documentID string, score float32)
}

// NoopMonitor is a Monitor that does nothing.
type NoopMonitor struct{}

var _ Monitor = NoopMonitor{}

func (NoopMonitor) AfterQueryEmbed(core.Query, error) {}
func (NoopMonitor) AfterExtract(string, int)          {}
func (NoopMonitor) AfterEmbed(string, int, error)     {}
func (NoopMonitor) AfterScore(string, float32)        {}
