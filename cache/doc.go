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


// Package cache provides the embedding cache.
//
// Vectors are keyed by the fingerprint of their normalized source text
// (whitespace-collapsed, case-preserved), so identical text hits the same
// entry across queries, candidate overlaps, and process restarts when a
// persistent store is attached.
//
// Concurrency discipline: at most one provider computation is in flight
// per fingerprint; later callers wait on the in-flight result. Resolved
// entries are read without coordination. Provider failures are never
// stored, so a failed text is retried on the next request.
package cache
