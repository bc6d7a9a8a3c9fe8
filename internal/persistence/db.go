// Package persistence provides SQLite-backed storage of the oscillator
// registry, so a restarted process resumes with the same population.
// History buffers are not persisted: they are bounded, derivable, and
// churn on every tick.
package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/oscillon/internal/engine"
	"github.com/talgya/oscillon/internal/osc"
)

// DB wraps a SQLite connection for simulation state storage.
type DB struct {
	conn *sqlx.DB
}

// StoredOscillator is one persisted registry entry.
type StoredOscillator struct {
	ID          string
	Params      osc.Parameters
	State       osc.State
	ElapsedTime float64
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
	CREATE TABLE IF NOT EXISTS oscillators (
		id TEXT PRIMARY KEY,
		elapsed_time REAL NOT NULL,
		params_json TEXT NOT NULL,
		state_json TEXT NOT NULL,
		created_seq INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveSnapshot writes the full registry and configuration (full replace).
func (db *DB) SaveSnapshot(snap engine.Snapshot, cfg engine.Config) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM oscillators"); err != nil {
		return err
	}

	ids := make([]string, 0, len(snap.Oscillators))
	for id := range snap.Oscillators {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for seq, id := range ids {
		view := snap.Oscillators[id]
		paramsJSON, err := json.Marshal(view.Parameters)
		if err != nil {
			return fmt.Errorf("marshal params %q: %w", id, err)
		}
		stateJSON, err := json.Marshal(view.State)
		if err != nil {
			return fmt.Errorf("marshal state %q: %w", id, err)
		}

		_, err = tx.Exec(
			`INSERT INTO oscillators (id, elapsed_time, params_json, state_json, created_seq)
			 VALUES (?, ?, ?, ?, ?)`,
			id, view.ElapsedTime, string(paramsJSON), string(stateJSON), seq,
		)
		if err != nil {
			return fmt.Errorf("insert oscillator %q: %w", id, err)
		}
	}

	meta := map[string]string{
		"simulation_time":     strconv.FormatFloat(snap.SimulationTime, 'g', -1, 64),
		"global_coupling":     strconv.FormatFloat(cfg.GlobalCoupling, 'g', -1, 64),
		"environmental_noise": strconv.FormatFloat(cfg.EnvironmentalNoise, 'g', -1, 64),
		"update_rate":         strconv.Itoa(cfg.UpdateRate),
	}
	for k, v := range meta {
		_, err := tx.Exec(
			`INSERT INTO sim_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			k, v,
		)
		if err != nil {
			return fmt.Errorf("save meta %q: %w", k, err)
		}
	}

	return tx.Commit()
}

// LoadOscillators reads the persisted registry in stored order.
func (db *DB) LoadOscillators() ([]StoredOscillator, error) {
	var rows []struct {
		ID          string  `db:"id"`
		ElapsedTime float64 `db:"elapsed_time"`
		ParamsJSON  string  `db:"params_json"`
		StateJSON   string  `db:"state_json"`
	}
	err := db.conn.Select(&rows,
		`SELECT id, elapsed_time, params_json, state_json
		 FROM oscillators ORDER BY created_seq`)
	if err != nil {
		return nil, fmt.Errorf("load oscillators: %w", err)
	}

	stored := make([]StoredOscillator, 0, len(rows))
	for _, r := range rows {
		var s StoredOscillator
		s.ID = r.ID
		s.ElapsedTime = r.ElapsedTime
		if err := json.Unmarshal([]byte(r.ParamsJSON), &s.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params %q: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.StateJSON), &s.State); err != nil {
			return nil, fmt.Errorf("unmarshal state %q: %w", r.ID, err)
		}
		stored = append(stored, s)
	}
	return stored, nil
}

// HasState reports whether a previous run left any oscillators behind.
func (db *DB) HasState() bool {
	var count int
	if err := db.conn.Get(&count, "SELECT COUNT(*) FROM oscillators"); err != nil {
		return false
	}
	return count > 0
}

// LoadConfig reads the persisted configuration. Missing keys keep their
// passed-in defaults.
func (db *DB) LoadConfig(defaults engine.Config) (engine.Config, float64, error) {
	cfg := defaults
	var simTime float64

	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.Select(&rows, "SELECT key, value FROM sim_meta"); err != nil {
		return cfg, 0, fmt.Errorf("load meta: %w", err)
	}

	for _, r := range rows {
		switch r.Key {
		case "simulation_time":
			if v, err := strconv.ParseFloat(r.Value, 64); err == nil {
				simTime = v
			}
		case "global_coupling":
			if v, err := strconv.ParseFloat(r.Value, 64); err == nil {
				cfg.GlobalCoupling = v
			}
		case "environmental_noise":
			if v, err := strconv.ParseFloat(r.Value, 64); err == nil {
				cfg.EnvironmentalNoise = v
			}
		case "update_rate":
			if v, err := strconv.Atoi(r.Value); err == nil {
				cfg.UpdateRate = v
			}
		}
	}
	return cfg, simTime, nil
}
