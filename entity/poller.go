package entity

import (
	"context"
	"time"
)

// pollInterval is how often the poller checks updated_at watermarks for
// rows changed by a writer other than this Store (another process, a
// direct SQL migration). Writes made through this Store publish to the
// broker immediately and do not wait on the poller.
const pollInterval = 2 * time.Second

// pollable lists the tables the poller watches and their primary key
// column, in the absence of a native push channel (see doc.go).
var pollable = map[string]string{
	"users":              "id",
	"agents":             "id",
	"memory_blocks":      "id",
	"messages":           "id",
	"groups":             "id",
	"atproto_identities": "did",
}

type watermark struct {
	lastSeen time.Time
}

// startPoller runs until ctx is cancelled, periodically checking each
// pollable table for rows whose updated_at has advanced past the last
// seen watermark, and publishing a synthetic Update event for each.
// Deletes are not detected by this fallback (it has no tombstone to read
// without an outbox table); delete events come only from deletes made
// through this Store (DetachRelation, DeleteMemoryBlock), and reach only
// this process's subscribers.
func (s *Store) startPoller(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	marks := make(map[string]watermark, len(pollable))
	for table := range pollable {
		marks[table] = watermark{lastSeen: time.Now()}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for table, pk := range pollable {
				s.pollTable(ctx, table, pk, marks)
			}
		}
	}
}

func (s *Store) pollTable(ctx context.Context, table, pk string, marks map[string]watermark) {
	mark := marks[table]
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+pk+", updated_at FROM "+table+" WHERE updated_at > ? ORDER BY updated_at ASC",
		mark.lastSeen.Unix(),
	)
	if err != nil {
		// Best-effort fallback: a query error here (e.g. table lacks
		// updated_at) just means this table gets no cross-process
		// notifications; same-process writes still publish directly.
		s.logger.Debug("entity: poller query skipped", "table", table, "error", err)
		return
	}
	defer rows.Close()

	var newest time.Time
	for rows.Next() {
		var id string
		var updatedUnix int64
		if err := rows.Scan(&id, &updatedUnix); err != nil {
			continue
		}
		updated := time.Unix(updatedUnix, 0)
		if updated.After(newest) {
			newest = updated
		}
		s.broker.publish(ctx, Event{Op: OpUpdate, Table: table, ID: id})
	}
	if newest.After(mark.lastSeen) {
		marks[table] = watermark{lastSeen: newest}
	}
}
