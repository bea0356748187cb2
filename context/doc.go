// Package context builds the per-turn AgentContext handed to a model: a
// system prompt assembled from memory blocks, tool usage rules, and
// metadata, plus a compressed message history bounded to a token budget.
//
// Despite the name, this package has nothing to do with Go's
// context.Context — it is the "prompt context" handed to a model on
// each turn. Callers import it as pctx or similar to avoid shadowing.
package context
