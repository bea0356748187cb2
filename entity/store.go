package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver registered as "sqlite"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a structured logger for the store. When unset the store
// emits no logs of its own (writes through this Store still publish to
// subscribers regardless of logging).
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// nopLogger discards everything; the default when WithLogger is not given.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Store is the default entity.Store engine: database/sql over a pure-Go
// SQLite file by default. Its schema and queries are SQLite text; see
// NewWithDriver for other drivers.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
	broker *broker
	cancel context.CancelFunc
}

// New opens a Store backed by a local SQLite file at dbPath. A single
// connection is used (SetMaxOpenConns(1)) so concurrent goroutines
// serialize through one connection, matching sqlite's single-writer model
// and avoiding SQLITE_BUSY from independently-opened connections.
func New(dbPath string, opts ...Option) *Store {
	return NewWithDriver("sqlite", dbPath, opts...)
}

// NewWithDriver opens a Store against any database/sql driver registered
// under driverName (e.g. "postgres" via lib/pq, "pgx" via jackc/pgx/v5's
// stdlib adapter, "mysql" via go-sql-driver/mysql). The package's queries
// always use "?" placeholders and SQLite's ON CONFLICT upsert syntax and
// are not rewritten, so a driver that rejects either rejects those queries.
func NewWithDriver(driverName, dsn string, opts ...Option) *Store {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		panic(fmt.Sprintf("entity: open %s: %v", driverName, err))
	}
	if driverName == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db, driver: driverName, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.broker = newBroker(s.logger)
	return s
}

// Init creates all required tables and starts the cross-writer poller.
// Callers should call Init exactly once after New and before any other
// method; Close stops the poller and the underlying connection.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("entity: init started")

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			settings TEXT NOT NULL DEFAULT '{}',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind_tag TEXT NOT NULL,
			kind_custom TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			system_prompt TEXT NOT NULL DEFAULT '',
			config TEXT NOT NULL DEFAULT '{}',
			state TEXT NOT NULL DEFAULT 'ready',
			cooldown_until INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_user ON agents(user_id)`,
		`CREATE TABLE IF NOT EXISTS memory_blocks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			label TEXT NOT NULL,
			value TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			block_type TEXT NOT NULL DEFAULT 'core',
			permission TEXT NOT NULL DEFAULT 'read_write',
			embedding TEXT,
			embedding_model TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_user ON memory_blocks(user_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_memory_user_label ON memory_blocks(user_id, label)`,
		`CREATE TABLE IF NOT EXISTS agent_memory_edges (
			agent_id TEXT NOT NULL,
			memory_block_id TEXT NOT NULL,
			access_level TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (agent_id, memory_block_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_memory ON agent_memory_edges(memory_block_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			content_kind TEXT NOT NULL,
			content_text TEXT NOT NULL DEFAULT '',
			content_parts TEXT,
			metadata TEXT NOT NULL DEFAULT '{}',
			position INTEGER NOT NULL,
			batch TEXT NOT NULL,
			sequence_num INTEGER NOT NULL DEFAULT 0,
			batch_type TEXT NOT NULL DEFAULT '',
			embedding TEXT,
			archived INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_agent_position ON messages(agent_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_batch ON messages(agent_id, batch, sequence_num)`,
		`CREATE TABLE IF NOT EXISTS groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			pattern TEXT NOT NULL,
			pattern_config TEXT NOT NULL DEFAULT '{}',
			pattern_state TEXT NOT NULL DEFAULT '{}',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			role_tag TEXT NOT NULL,
			role_domain TEXT NOT NULL DEFAULT '',
			joined_at INTEGER NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			capabilities TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (group_id, agent_id)
		)`,
		`CREATE TABLE IF NOT EXISTS atproto_identities (
			did TEXT PRIMARY KEY,
			handle TEXT NOT NULL,
			pds_url TEXT NOT NULL,
			auth_method TEXT NOT NULL,
			oauth_token TEXT NOT NULL DEFAULT '',
			oauth_expiry INTEGER NOT NULL DEFAULT 0,
			app_password TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			last_authed_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_atproto_user ON atproto_identities(user_id)`,
	}

	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return queryFailed("init", stmt, err)
		}
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.startPoller(pollCtx)

	s.logger.Info("entity: init completed", "duration", time.Since(start))
	return nil
}

// Close stops the cross-writer poller and the underlying connection.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.db.Close()
}

// Subscribe registers for live notifications on table. The returned
// channel receives an Event per Create/Update/Delete made through this
// Store, plus synthetic Update events from the cross-writer poller. On
// reconnect (a fresh Subscribe call after the caller's previous channel
// was dropped) the caller MUST resynchronize its cache with a full reload
// before relying on the new channel, since no backlog is replayed.
func (s *Store) Subscribe(table string) (<-chan Event, func()) {
	return s.broker.subscribe(table)
}

func toJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", serializationFailed(fmt.Sprintf("%T", v), err)
	}
	return string(b), nil
}

func fromJSON[T any](s string, out *T) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return serializationFailed(fmt.Sprintf("%T", *out), err)
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}
