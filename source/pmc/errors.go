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

package pmc

import "errors"

var (
	// ErrInvalidPMCID is returned for identifiers that cannot be
	// normalized to a PMCID.
	ErrInvalidPMCID = errors.New("invalid PMCID")

	// ErrUnexpectedStatus is returned when a PMC endpoint responds with
	// a non-200 status.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrNoFullText is returned when an article's XML carries no
	// extractable body text.
	ErrNoFullText = errors.New("article has no extractable full text")
)
