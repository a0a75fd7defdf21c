// Package pmc is a document source backed by PubMed Central: article
// search through Europe PMC and full-text retrieval through NCBI efetch,
// with rate limiting and an optional persistent XML cache.
package pmc
