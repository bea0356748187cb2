// Package model defines the contract an external LLM provider must
// satisfy to back an agent's "call the model" step, plus one
// illustrative Anthropic-shaped adapter.
//
// The interface exposes a single GenerateContent method parameterized
// by a stream bool, returning iter.Seq2 so streaming and non-streaming
// share one call shape.
package model
