// Copyright 2025 Lexeme Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Search error taxonomy. Per-item failures (a single fetch, a single
// embedding) are absorbed and logged; only total failures surface through
// these errors.
var (
	// ErrNoCandidates indicates that no candidate documents could be
	// obtained for a query. The query fails entirely.
	ErrNoCandidates = errors.New("no candidate documents obtained")

	// ErrEmbeddingFailed indicates that the embedding provider failed for
	// a specific text. Recovered locally unless it eliminates every
	// candidate.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrNothingToRank indicates that zero documents survived to be ranked.
	ErrNothingToRank = errors.New("no documents available for ranking")

	// ErrInvalidQuery indicates a query failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidDocument indicates a document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyText indicates an empty text field where content is required.
	ErrEmptyText = errors.New("text cannot be empty")
)
