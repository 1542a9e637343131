// Package persistence stores the game in SQLite: readable city and queue
// tables for reports, an append-only event log, and compressed snapshots
// of the full state that loading starts from.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/archipelago/internal/city"
	"github.com/talgya/archipelago/internal/engine"
	"github.com/talgya/archipelago/internal/snapshot"
)

// KeepSnapshots is how many snapshots survive a save.
const KeepSnapshots = 10

// ErrNoState is returned by LoadState when nothing has been saved.
var ErrNoState = errors.New("no saved game")

// DB wraps a SQLite connection for game storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
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

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner TEXT NOT NULL,
		island_id TEXT NOT NULL,
		population REAL NOT NULL,
		resources_json TEXT NOT NULL,
		buildings_json TEXT NOT NULL,
		land_json TEXT NOT NULL,
		naval_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS queue_entries (
		id TEXT PRIMARY KEY,
		queue TEXT NOT NULL,
		subject TEXT NOT NULL,
		target INTEGER NOT NULL,
		city_id TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		cost_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		saved_at TEXT NOT NULL,
		game_time TEXT NOT NULL,
		checksum TEXT NOT NULL,
		raw_size INTEGER NOT NULL,
		data BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TEXT NOT NULL,
		kind TEXT NOT NULL,
		city_id TEXT NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	CREATE INDEX IF NOT EXISTS idx_queue_city ON queue_entries(city_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveState writes the city and queue tables and a new snapshot in one
// transaction, then prunes old snapshots.
func (db *DB) SaveState(s *engine.GameState) error {
	blob, err := snapshot.Pack(s)
	if err != nil {
		return fmt.Errorf("pack snapshot: %w", err)
	}
	slog.Info("saving game state", "cities", len(s.Cities), "bytes", len(blob.Data), "raw_bytes", blob.RawSize)

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveCities(tx, s); err != nil {
		return fmt.Errorf("save cities: %w", err)
	}
	if err := saveQueues(tx, s); err != nil {
		return fmt.Errorf("save queues: %w", err)
	}

	gameTime := s.LastUpdate.UTC().Format(time.RFC3339Nano)
	if _, err := tx.Exec(
		"INSERT INTO snapshots (saved_at, game_time, checksum, raw_size, data) VALUES (?, ?, ?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339Nano), gameTime, blob.Checksum, blob.RawSize, blob.Data,
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if _, err := tx.Exec(
		"DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)",
		KeepSnapshots,
	); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	for k, v := range map[string]string{"last_update": gameTime, "checksum": blob.Checksum} {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("game state saved", "checksum", blob.Checksum[:12])
	return nil
}

func saveCities(tx *sqlx.Tx, s *engine.GameState) error {
	if _, err := tx.Exec("DELETE FROM cities"); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT INTO cities
		(id, name, owner, island_id, population, resources_json, buildings_json, land_json, naval_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range s.Cities {
		resJSON, _ := json.Marshal(c.Resources)
		bldJSON, _ := json.Marshal(c.Buildings)
		landJSON, _ := json.Marshal(c.Land)
		navalJSON, _ := json.Marshal(c.Naval)
		if _, err := stmt.Exec(
			c.ID, c.Name, c.Owner, c.IslandID, c.Population,
			string(resJSON), string(bldJSON), string(landJSON), string(navalJSON),
		); err != nil {
			return fmt.Errorf("insert city %s: %w", c.ID, err)
		}
	}
	return nil
}

func saveQueues(tx *sqlx.Tx, s *engine.GameState) error {
	if _, err := tx.Exec("DELETE FROM queue_entries"); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT INTO queue_entries
		(id, queue, subject, target, city_id, start_time, end_time, cost_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	insert := func(e city.QueueEntry) error {
		costJSON, _ := json.Marshal(e.Cost)
		_, err := stmt.Exec(
			e.ID, string(e.Queue), e.Subject, e.Target, e.CityID,
			e.StartTime.UTC().Format(time.RFC3339Nano), e.EndTime.UTC().Format(time.RFC3339Nano),
			string(costJSON),
		)
		if err != nil {
			return fmt.Errorf("insert queue entry %s: %w", e.ID, err)
		}
		return nil
	}
	for _, c := range s.Cities {
		for _, q := range [][]city.QueueEntry{c.BuildQueue, c.RecruitQueue} {
			for _, e := range q {
				if err := insert(e); err != nil {
					return err
				}
			}
		}
	}
	for _, e := range s.ResearchQueue {
		if err := insert(e); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the newest snapshot. Problems that do not prevent
// loading are logged and returned as warnings alongside the state.
func (db *DB) LoadState() (*engine.GameState, []ConsistencyWarning, error) {
	var row struct {
		Checksum string `db:"checksum"`
		Data     []byte `db:"data"`
	}
	err := db.conn.Get(&row, "SELECT checksum, data FROM snapshots ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNoState
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot: %w", err)
	}

	var warnings []ConsistencyWarning
	s, err := snapshot.Unpack(row.Data, row.Checksum)
	if errors.Is(err, snapshot.ErrChecksum) {
		warnings = append(warnings, ConsistencyWarning{Kind: ChecksumMismatch, Detail: "latest snapshot does not match its stored checksum"})
	} else if err != nil {
		return nil, nil, fmt.Errorf("unpack snapshot: %w", err)
	}

	warnings = append(warnings, Check(s)...)
	if n, err := db.cityCount(); err == nil && n != len(s.Cities) {
		warnings = append(warnings, ConsistencyWarning{
			Kind:   TableMismatch,
			Detail: fmt.Sprintf("cities table has %d rows, snapshot has %d cities", n, len(s.Cities)),
		})
	}
	for _, w := range warnings {
		slog.Warn("consistency warning on load", "kind", w.Kind, "detail", w.Detail)
	}
	slog.Info("game state loaded", "cities", len(s.Cities), "last_update", s.LastUpdate, "warnings", len(warnings))
	return s, warnings, nil
}

func (db *DB) cityCount() (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM cities")
	return n, err
}

// SaveEvents appends events to the event log.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", e.Kind, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO events (at, kind, city_id, payload) VALUES (?, ?, ?, ?)",
			e.At.UTC().Format(time.RFC3339Nano), string(e.Kind), e.CityID, string(payload),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// EventRow is one logged event.
type EventRow struct {
	ID      int64  `db:"id" json:"id"`
	At      string `db:"at" json:"at"`
	Kind    string `db:"kind" json:"kind"`
	CityID  string `db:"city_id" json:"city_id,omitempty"`
	Payload string `db:"payload" json:"payload"`
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]EventRow, error) {
	var events []EventRow
	err := db.conn.Select(&events,
		"SELECT id, at, kind, city_id, payload FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// CityRow is the saved summary of one city.
type CityRow struct {
	ID            string  `db:"id"`
	Name          string  `db:"name"`
	Owner         string  `db:"owner"`
	IslandID      string  `db:"island_id"`
	Population    float64 `db:"population"`
	ResourcesJSON string  `db:"resources_json"`
}

// Resources decodes the saved stockpile.
func (r CityRow) Resources() (city.ResourcePool, error) {
	var pool city.ResourcePool
	err := json.Unmarshal([]byte(r.ResourcesJSON), &pool)
	return pool, err
}

// Cities returns the saved city summaries ordered by name.
func (db *DB) Cities() ([]CityRow, error) {
	var rows []CityRow
	err := db.conn.Select(&rows,
		"SELECT id, name, owner, island_id, population, resources_json FROM cities ORDER BY name, id")
	return rows, err
}

// QueueCount returns how many entries each queue holds.
func (db *DB) QueueCount() (map[string]int, error) {
	var rows []struct {
		Queue string `db:"queue"`
		N     int    `db:"n"`
	}
	if err := db.conn.Select(&rows, "SELECT queue, COUNT(*) AS n FROM queue_entries GROUP BY queue"); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Queue] = r.N
	}
	return out, nil
}

// SnapshotInfo describes a stored snapshot without its data.
type SnapshotInfo struct {
	ID       int64  `db:"id"`
	SavedAt  string `db:"saved_at"`
	GameTime string `db:"game_time"`
	Checksum string `db:"checksum"`
	RawSize  int    `db:"raw_size"`
	Size     int    `db:"size"`
}

// Snapshots lists stored snapshots, newest first.
func (db *DB) Snapshots() ([]SnapshotInfo, error) {
	var out []SnapshotInfo
	err := db.conn.Select(&out,
		"SELECT id, saved_at, game_time, checksum, raw_size, length(data) AS size FROM snapshots ORDER BY id DESC")
	return out, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
