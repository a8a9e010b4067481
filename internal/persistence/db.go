// Package persistence implements the Persistence layer (C12): durable
// SQLite storage of snapshots and append-only history, so the simulation
// can resume after a restart and so operators can inspect stats/events
// after the fact. Grounded on the teacher's own `internal/persistence/
// db.go` (full-replace SaveAgents/SaveSettlements/SaveFactions against a
// sqlx-wrapped modernc.org/sqlite connection, INSERT-only SaveEvents),
// generalized from the teacher's many narrow per-entity tables into three
// tables matching the spec's higher-level Snapshot/Metrics/Event Bus
// boundaries: one full-replace snapshot row, an append-only stats_history
// fed by the Metrics Collector, and an append-only events log fed by a
// curated subset of the Event Bus.
package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/crossroads-sim/worldengine/internal/eventbus"
	"github.com/crossroads-sim/worldengine/internal/metrics"
	"github.com/crossroads-sim/worldengine/internal/snapshot"
)

// DB wraps a SQLite connection used for snapshot/stats/event storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at path and runs migrations.
// path may be ":memory:" for an ephemeral database, as in tests.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
	CREATE TABLE IF NOT EXISTS snapshots (
		id             INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL,
		saved_at_ms    INTEGER NOT NULL,
		data           TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stats_history (
		sampled_at_ms          INTEGER PRIMARY KEY,
		population             INTEGER NOT NULL,
		animal_count            INTEGER NOT NULL,
		total_inventory_weight REAL NOT NULL,
		wealth_gini            REAL NOT NULL,
		avg_social_coherence   REAL NOT NULL,
		events_total           INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		frame_time_ms INTEGER NOT NULL,
		name          TEXT NOT NULL,
		payload_json  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_frame_time ON events(frame_time_ms);
	`)
	return err
}

// SaveSnapshot performs a full-replace write of snap, mirroring the
// teacher's SaveAgents/SaveSettlements "DELETE then INSERT within one
// transaction" shape.
func (db *DB) SaveSnapshot(snap snapshot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM snapshots"); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO snapshots (id, schema_version, saved_at_ms, data) VALUES (1, ?, ?, ?)",
		snap.SchemaVersion, snap.FrameTimeMS, string(data),
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return tx.Commit()
}

// LoadSnapshot reads the single stored snapshot row, if any. The second
// return value is false when no snapshot has ever been saved.
func (db *DB) LoadSnapshot() (snapshot.Snapshot, bool, error) {
	var data string
	err := db.conn.Get(&data, "SELECT data FROM snapshots WHERE id = 1")
	if err == sql.ErrNoRows {
		return snapshot.Snapshot{}, false, nil
	}
	if err != nil {
		return snapshot.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return snapshot.Snapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// RecordStats appends one metrics.Snapshot as a stats_history row, the
// append-only counterpart to SaveSnapshot's full-replace semantics.
func (db *DB) RecordStats(s metrics.Snapshot) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO stats_history
		(sampled_at_ms, population, animal_count, total_inventory_weight,
		 wealth_gini, avg_social_coherence, events_total)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.SampledAtMS, s.Population, s.AnimalCount, s.TotalInventoryWeight,
		s.WealthGini, s.AvgSocialCoherence, s.EventsTotal,
	)
	return err
}

// StatsHistory returns every recorded stats_history row, oldest first, up
// to limit rows (0 means unlimited).
func (db *DB) StatsHistory(limit int) ([]metrics.Snapshot, error) {
	query := "SELECT sampled_at_ms, population, animal_count, total_inventory_weight, wealth_gini, avg_social_coherence, events_total FROM stats_history ORDER BY sampled_at_ms ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	type row struct {
		SampledAtMS          int64   `db:"sampled_at_ms"`
		Population           int     `db:"population"`
		AnimalCount          int     `db:"animal_count"`
		TotalInventoryWeight float64 `db:"total_inventory_weight"`
		WealthGini           float64 `db:"wealth_gini"`
		AvgSocialCoherence   float64 `db:"avg_social_coherence"`
		EventsTotal          uint64  `db:"events_total"`
	}
	var rows []row
	if err := db.conn.Select(&rows, query); err != nil {
		return nil, fmt.Errorf("load stats history: %w", err)
	}
	out := make([]metrics.Snapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, metrics.Snapshot{
			SampledAtMS: r.SampledAtMS, Population: r.Population, AnimalCount: r.AnimalCount,
			TotalInventoryWeight: r.TotalInventoryWeight, WealthGini: r.WealthGini,
			AvgSocialCoherence: r.AvgSocialCoherence, EventsTotal: r.EventsTotal,
		})
	}
	return out, nil
}

// HistoryWorthy is the curated subset of eventbus.Name values persisted
// to the events table: narratively significant happenings, not every
// tick's worth of movement/needs chatter, mirroring the teacher's events
// table holding hand-picked "description"s rather than a firehose.
var HistoryWorthy = []eventbus.Name{
	eventbus.AgentBorn,
	eventbus.AgentRemoved,
	eventbus.CombatKill,
	eventbus.AnimalDied,
	eventbus.DivineBlessingGranted,
	eventbus.ConflictResolved,
	eventbus.GovernanceOvermass,
	eventbus.EmergenceAssessment,
}

// RecordEvent appends one event to the events table. Payload is
// JSON-encoded; an encode failure or an insert failure is returned to the
// caller.
func (db *DB) RecordEvent(ev eventbus.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = db.conn.Exec(
		"INSERT INTO events (frame_time_ms, name, payload_json) VALUES (?, ?, ?)",
		ev.Timestamp, string(ev.Name), string(payload),
	)
	return err
}

// Subscribe registers db as the persister for every HistoryWorthy event
// name on bus. RecordEvent's error is dropped here (an eventbus.Handler
// has no error return), so a failed write is neither returned nor logged,
// matching the teacher's own fire-and-forget event persistence.
func (db *DB) Subscribe(bus *eventbus.Bus) {
	for _, name := range HistoryWorthy {
		bus.On(name, func(ev eventbus.Event) { _ = db.RecordEvent(ev) })
	}
}

// EventRow is one stored events-table row, for inspection/export.
type EventRow struct {
	ID          int64  `db:"id"`
	FrameTimeMS int64  `db:"frame_time_ms"`
	Name        string `db:"name"`
	PayloadJSON string `db:"payload_json"`
}

// RecentEvents returns the most recently recorded events, newest first,
// up to limit rows.
func (db *DB) RecentEvents(limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []EventRow
	err := db.conn.Select(&rows, "SELECT id, frame_time_ms, name, payload_json FROM events ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return rows, nil
}

// TrimEventsBefore deletes every event recorded strictly before cutoffMS,
// the append-only table's bound on unbounded growth.
func (db *DB) TrimEventsBefore(cutoffMS int64) (int64, error) {
	result, err := db.conn.Exec("DELETE FROM events WHERE frame_time_ms < ?", cutoffMS)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
