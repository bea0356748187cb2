// Package builtin implements the core tools every agent runtime ships
// with: recall (archival memory), manage_core_memory, manage_archival_memory,
// search_conversations, send_message, and calculator, plus web_request for
// reaching external services. Each is grounded in a narrow slice of
// package entity/memory rather than a standalone store of its own.
package builtin
