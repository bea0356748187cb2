// Package embeddings defines the embedding-provider contract consumed by
// tool/builtin's manage_archival_memory and datasource's ingestion
// coordinator, plus one illustrative adapter backed by Gemini. A nil
// provider is a supported configuration: callers fall back to substring
// search instead of failing.
package embeddings
