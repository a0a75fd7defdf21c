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

package sections

import (
	"regexp"
	"strings"

	"github.com/lexemelabs/semsearch/core"
)

const (
	// defaultMaxLength is the character budget per section. Sections are
	// packed with whole sentences up to this budget; a single sentence
	// longer than the budget becomes its own section.
	defaultMaxLength = 1200

	// defaultMinLength drops fragments too short to carry signal
	// (stray headings, single-word paragraphs).
	defaultMinLength = 0
)

var (
	sentencePattern  = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	paragraphPattern = regexp.MustCompile(`\n[ \t]*\n`)
)

// Extractor splits documents into sentence-boundary-respecting sections.
// Extraction is deterministic: the same document text always yields the
// same section sequence.
type Extractor struct {
	maxLength int
	minLength int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxLength sets the per-section byte budget.
func WithMaxLength(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxLength = n
		}
	}
}

// WithMinLength drops sections shorter than n bytes.
func WithMinLength(n int) Option {
	return func(e *Extractor) {
		if n >= 0 {
			e.minLength = n
		}
	}
}

// NewExtractor creates an Extractor with the given options.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		maxLength: defaultMaxLength,
		minLength: defaultMinLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract splits a document into an ordered sequence of sections.
// Paragraph boundaries (blank lines) split first; within a paragraph,
// whole sentences are packed greedily up to the length budget. A document
// with no detectable sentence boundaries at all is returned as a single
// section spanning the whole text.
func (e *Extractor) Extract(doc *core.Document) []core.Section {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil
	}

	if !sentencePattern.MatchString(text) {
		return []core.Section{{
			DocumentID: doc.ID,
			Ordinal:    0,
			Text:       text,
		}}
	}

	var sections []core.Section
	for _, para := range paragraphPattern.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, text := range e.packParagraph(para) {
			if len(text) < e.minLength {
				continue
			}
			sections = append(sections, core.Section{
				DocumentID:   doc.ID,
				Ordinal:      len(sections),
				Text:         text,
				SentenceEnds: sentenceEnds(text),
			})
		}
	}
	return sections
}

// packParagraph splits a paragraph into section texts, packing whole
// sentences greedily up to the length budget. A paragraph without
// sentence boundaries is treated as a single sentence.
func (e *Extractor) packParagraph(para string) []string {
	sentences := sentencePattern.FindAllString(para, -1)
	if len(sentences) == 0 {
		sentences = []string{para}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var out []string
	var current []string
	currentLen := 0
	for _, s := range sentences {
		joined := currentLen + len(s)
		if currentLen > 0 {
			joined++ // separator
		}
		if currentLen > 0 && joined > e.maxLength {
			out = append(out, strings.Join(current, " "))
			current = current[:0]
			currentLen = 0
		}
		current = append(current, s)
		currentLen += len(s)
		if len(current) > 1 {
			currentLen++
		}
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// sentenceEnds returns the exclusive byte offsets of sentence terminals
// within text, ascending. Empty when no boundary is detectable.
func sentenceEnds(text string) []int {
	matches := sentencePattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ends := make([]int, 0, len(matches))
	for _, m := range matches {
		ends = append(ends, m[1])
	}
	return ends
}
