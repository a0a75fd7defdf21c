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

import "strings"

// DefaultSummaryLength is the default byte budget for summaries.
const DefaultSummaryLength = 300

// Summarize returns the longest prefix of text that ends on a sentence
// boundary and fits within maxLength bytes. The budget counts bytes,
// not runes, matching the byte offsets that sentence boundaries are
// tracked in; because cuts land on sentence boundaries the result is
// always valid UTF-8. When even the first sentence exceeds the
// budget, that full sentence is returned rather than a mid-sentence
// truncation. Text without any sentence boundary is returned whole.
func Summarize(text string, maxLength int) string {
	text = strings.TrimSpace(text)
	if maxLength <= 0 {
		maxLength = DefaultSummaryLength
	}

	ends := sentenceEnds(text)
	if len(ends) == 0 {
		return text
	}

	cut := -1
	for _, end := range ends {
		if end > maxLength {
			break
		}
		cut = end
	}
	if cut < 0 {
		// First sentence alone exceeds the budget.
		cut = ends[0]
	}
	return strings.TrimSpace(text[:cut])
}

// SummarizeSection summarizes a section's text, preferring its
// precomputed sentence boundaries over a fresh scan. As with
// Summarize, maxLength is a byte budget applied to the byte-offset
// boundaries.
func SummarizeSection(text string, sentenceEnds []int, maxLength int) string {
	if len(sentenceEnds) == 0 {
		return Summarize(text, maxLength)
	}
	if maxLength <= 0 {
		maxLength = DefaultSummaryLength
	}

	cut := -1
	for _, end := range sentenceEnds {
		if end > maxLength || end > len(text) {
			break
		}
		cut = end
	}
	if cut < 0 {
		cut = sentenceEnds[0]
		if cut > len(text) {
			cut = len(text)
		}
	}
	return strings.TrimSpace(text[:cut])
}
