// Package pattern is a multi-agent runtime that turns stateless chat-model
// APIs into stateful, tool-using, memory-persistent agents that can be
// composed into coordinated groups ("constellations").
//
// # Subsystems
//
// The core is organized into six tightly coupled subsystems, each its own
// package or package pair:
//
//   - id / entity   — typed record IDs and a store/load model with declared
//     relations and live subscriptions.
//   - memory        — typed memory blocks shared across agents under
//     permission control, kept in sync via live cache updates.
//   - tool          — typed tool contracts, schema-validated dynamic
//     dispatch, and the heartbeat-continuation protocol.
//   - context/agent — system-prompt assembly, history compression, and the
//     per-agent turn-processing state machine.
//   - coordination  — group coordination patterns (round-robin, voting,
//     pipeline, supervisor, dynamic selector, sleeptime) and the merged
//     streaming event model.
//   - datasource    — long-lived external stream ingestion, buffering,
//     filtering, and routing into the agent/group intake.
//
// # Library use
//
//	import (
//	    "github.com/patterncore/pattern/agent"
//	    "github.com/patterncore/pattern/coordination"
//	    "github.com/patterncore/pattern/tool"
//	)
//
// pattern does not implement an LLM and does not prescribe a wire protocol
// for agent-to-agent communication beyond in-process message passing; model
// adapters, chat-platform endpoints, and embedding providers are external
// collaborators consumed through small interfaces (see package model,
// endpoint, and embeddings).
package pattern
