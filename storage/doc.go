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


// Package storage defines the persistence contracts for the embedding
// cache and the document-source response cache, together with the MUS
// binary serialization of cache entries.
//
// Persistence is an optimization layer: a store failure or a corrupt entry
// is always recoverable by recomputing the embedding, so callers treat
// read errors as cache misses rather than fatal conditions.
//
// The storage/badger sub-package provides the BadgerDB implementation,
// including an in-memory mode used by tests.
package storage
