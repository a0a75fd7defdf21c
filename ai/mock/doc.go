// Package mock provides test doubles for the ai package interfaces.
//
// The mock embedder produces deterministic vectors derived from the input
// text, so similarity-dependent tests are repeatable without a model. Tests
// can override behavior through the exported function fields and assert on
// provider invocation counts via CallCount.
package mock
