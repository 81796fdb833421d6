// Package billing provides the persistent bill stores. SQLite is the
// default backend; a JSONL file store exists for constrained deployments.
package billing

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite"

	corebilling "github.com/kilianp07/evstation/core/billing"
	"github.com/kilianp07/evstation/core/model"
)

// SQLiteStore persists bills in a SQLite database. The full bill is stored
// as a JSON record alongside the columns used for querying.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS bills (
        bill_id TEXT PRIMARY KEY,
        pile_id TEXT,
        vehicle_id TEXT,
        end_time INTEGER,
        record TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_bills_end_time ON bills(end_time);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append inserts the bill. Re-appending the same bill id overwrites the
// previous record.
func (s *SQLiteStore) Append(ctx context.Context, bill model.Bill) error {
	record, err := json.Marshal(bill)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO bills (bill_id, pile_id, vehicle_id, end_time, record)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(bill_id) DO UPDATE SET
            pile_id = excluded.pile_id,
            vehicle_id = excluded.vehicle_id,
            end_time = excluded.end_time,
            record = excluded.record`,
		bill.ID, bill.PileID, bill.VehicleID, bill.EndTime.Unix(), record)
	return err
}

// Query returns bills matching the filter, ordered by end time.
func (s *SQLiteStore) Query(ctx context.Context, q corebilling.Query) ([]model.Bill, error) {
	query := `SELECT record FROM bills WHERE 1=1`
	var args []any
	if !q.Start.IsZero() {
		query += ` AND end_time >= ?`
		args = append(args, q.Start.Unix())
	}
	if !q.End.IsZero() {
		query += ` AND end_time <= ?`
		args = append(args, q.End.Unix())
	}
	if q.PileID != "" {
		query += ` AND pile_id = ?`
		args = append(args, q.PileID)
	}
	if q.VehicleID != "" {
		query += ` AND vehicle_id = ?`
		args = append(args, q.VehicleID)
	}
	query += ` ORDER BY end_time`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Bill
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var bill model.Bill
		if err := json.Unmarshal([]byte(record), &bill); err != nil {
			return nil, err
		}
		res = append(res, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
