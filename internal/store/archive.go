// Package store provides the local session archive.
//
// The archive is write-behind only: records merged during live monitoring
// and labels submitted by the operator are appended here so a triage session
// can be reviewed afterwards. The in-memory working set owned by the feed
// controller is the sole display source - nothing on the hot path reads the
// archive.
//
// # Thread Safety
//
// Archive is safe for concurrent use; the underlying sql.DB serializes
// access. SaveRecords runs in a transaction so a batch lands atomically.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abelbrown/skywatch/internal/anomaly"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// Archive persists anomaly records and operator labels to SQLite.
type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive database at path and applies migrations.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps writes from blocking the UI goroutine's reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		flight_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		callsign TEXT,
		score INTEGER NOT NULL,
		version TEXT NOT NULL,
		report TEXT,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (flight_id, timestamp)
	);

	CREATE INDEX IF NOT EXISTS idx_records_timestamp ON records(timestamp DESC);

	CREATE TABLE IF NOT EXISTS labels (
		flight_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		label TEXT NOT NULL,
		labeled_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (flight_id, timestamp)
	);
	`
	_, err := a.db.Exec(schema)
	return err
}

// SaveRecords archives a batch of records, skipping ones already present.
// Returns the number of rows actually inserted.
func (a *Archive) SaveRecords(records []anomaly.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := a.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO records (flight_id, timestamp, callsign, score, version, report)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	saved := 0
	for _, rec := range records {
		report := ""
		if rec.Report != nil {
			if raw, err := json.Marshal(rec.Report); err == nil {
				report = string(raw)
			}
		}
		res, err := stmt.Exec(rec.FlightID, rec.Timestamp, rec.Callsign,
			rec.Confidence(), anomaly.ClassifyVersion(rec.Timestamp), report)
		if err != nil {
			return saved, fmt.Errorf("failed to insert record %s: %w", rec.FlightID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			saved += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return saved, fmt.Errorf("failed to commit: %w", err)
	}
	return saved, nil
}

// SaveLabel records an operator verdict, replacing any earlier verdict for
// the same record.
func (a *Archive) SaveLabel(flightID string, timestamp int64, label anomaly.Label) error {
	_, err := a.db.Exec(`
		INSERT INTO labels (flight_id, timestamp, label, labeled_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(flight_id, timestamp) DO UPDATE SET label = excluded.label, labeled_at = excluded.labeled_at`,
		flightID, timestamp, string(label), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save label: %w", err)
	}
	return nil
}

// Recent returns up to limit archived records, newest event time first.
func (a *Archive) Recent(limit int) ([]anomaly.Record, error) {
	rows, err := a.db.Query(`
		SELECT flight_id, timestamp, callsign, report
		FROM records ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []anomaly.Record
	for rows.Next() {
		var rec anomaly.Record
		var callsign, report sql.NullString
		if err := rows.Scan(&rec.FlightID, &rec.Timestamp, &callsign, &report); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Callsign = callsign.String
		if report.String != "" {
			var parsed anomaly.Report
			if err := json.Unmarshal([]byte(report.String), &parsed); err == nil {
				rec.Report = parsed
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Review returns up to limit archived records, newest event time first,
// with any stored operator verdict applied. Backs the after-the-fact
// session review.
func (a *Archive) Review(limit int) ([]anomaly.Record, error) {
	records, err := a.Recent(limit)
	if err != nil {
		return nil, err
	}
	for i := range records {
		label, err := a.Label(records[i].FlightID, records[i].Timestamp)
		if err != nil {
			return nil, err
		}
		records[i].UserLabel = label
	}
	return records, nil
}

// Label returns the stored verdict for a record, or LabelNone.
func (a *Archive) Label(flightID string, timestamp int64) (anomaly.Label, error) {
	var label string
	err := a.db.QueryRow(`SELECT label FROM labels WHERE flight_id = ? AND timestamp = ?`,
		flightID, timestamp).Scan(&label)
	if err == sql.ErrNoRows {
		return anomaly.LabelNone, nil
	}
	if err != nil {
		return anomaly.LabelNone, fmt.Errorf("failed to query label: %w", err)
	}
	return anomaly.Label(label), nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
