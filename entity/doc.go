// Package entity is the typed-ID entity store: a document/graph persistence
// layer where every record carries a namespaced ID (package id), declares
// its outgoing relations, and can be loaded bare or with those relations
// eagerly hydrated.
//
// The engine is a pure-Go SQLite store (modernc.org/sqlite) written
// against database/sql. NewWithDriver opens any registered driver, but
// the queries are fixed SQLite text ("?" placeholders, ON CONFLICT
// upserts) and are not rewritten for another dialect.
//
// Live notifications (Subscribe) are served by an in-process fan-out
// broker for writes made through this Store, plus a slow poller that
// detects rows changed by other writers (another process, a migration) so
// that subscribers reconcile even across connections that never call
// through this package directly.
package entity
