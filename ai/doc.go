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


// Package ai provides the embedding abstraction used by the search engine.
//
// The engine consumes embedding models as an opaque Embedder: text in,
// fixed-dimension vector out. Providers are expected to be safe for
// concurrent use; batching via EmbedTexts is an optimization, never a
// correctness requirement.
//
// Two implementation sub-packages are included:
//
//   - ai/openai: production implementation for OpenAI-compatible APIs
//   - ai/mock: deterministic test doubles for unit testing without a model
//
// Public constructors return the Embedder interface to enforce abstraction;
// mock constructors return concrete types so tests can inject behavior and
// assert call counts.
package ai
