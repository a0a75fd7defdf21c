package semsearch

import (
	"sync"
	"time"

	"github.com/lexemelabs/semsearch/core"
	"github.com/lexemelabs/semsearch/rank"
)

// Monitor receives callbacks across a search's lifecycle, including the
// per-stage ranking callbacks.
type Monitor interface {
	rank.Monitor

	// Start is called when a search begins, with defaults applied.
	Start(query core.Query)

	// AfterRetrieve is called once candidate retrieval has resolved.
	AfterRetrieve(count int, err error)

	// AfterSummarize is called once result summaries have been built.
	AfterSummarize(count int)

	// Finish is called when the search returns, with its outcome.
	Finish(resp *Response, err error)
}

// NoopMonitor is a Monitor that does nothing.
type NoopMonitor struct {
	rank.NoopMonitor
}

var _ Monitor = NoopMonitor{}

func (NoopMonitor) Start(core.Query)         {}
func (NoopMonitor) AfterRetrieve(int, error) {}
func (NoopMonitor) AfterSummarize(int)       {}
func (NoopMonitor) Finish(*Response, error)  {}

// TimingMonitor records how long each search stage took. Safe for use
// by a single search at a time; create one per search.
type TimingMonitor struct {
	rank.NoopMonitor

	mu         sync.Mutex
	started    time.Time
	retrieved  time.Time
	extracted  time.Time
	embedded   time.Time
	scored     time.Time
	summarized time.Time
	finished   time.Time
}

var _ Monitor = (*TimingMonitor)(nil)

func (m *TimingMonitor) Start(core.Query) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = time.Now()
}

func (m *TimingMonitor) AfterRetrieve(int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrieved = time.Now()
}

func (m *TimingMonitor) AfterExtract(string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extracted = time.Now()
}

func (m *TimingMonitor) AfterEmbed(string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedded = time.Now()
}

func (m *TimingMonitor) AfterScore(string, float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scored = time.Now()
}

func (m *TimingMonitor) AfterSummarize(int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summarized = time.Now()
}

func (m *TimingMonitor) Finish(*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = time.Now()
}

// Timings reports the elapsed time per stage. Zero durations mean the
// stage never ran.
func (m *TimingMonitor) Timings() map[string]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	timings := make(map[string]time.Duration)
	if m.started.IsZero() {
		return timings
	}

	// Each stage span is measured from the previous mark that was
	// actually recorded, so skipped stages do not distort the rest.
	prev := m.started
	marks := []struct {
		stage string
		at    time.Time
	}{
		{"retrieve", m.retrieved},
		{"extract", m.extracted},
		{"embed", m.embedded},
		{"rank", m.scored},
		{"summarize", m.summarized},
	}
	for _, mark := range marks {
		if mark.at.IsZero() {
			continue
		}
		timings[mark.stage] = mark.at.Sub(prev)
		prev = mark.at
	}
	if !m.finished.IsZero() {
		timings["total"] = m.finished.Sub(m.started)
	}
	return timings
}
