package database

import (
	"database/sql"
	"errors"
)

const deliveryColumns = `id, run_date, stage, source, fallback_reason, channel, delivered, error, trigger_kind, created_at`

// InsertDelivery records a delivery attempt and returns its ID.
func (db *DB) InsertDelivery(d Delivery) (int64, error) {
	trigger := d.Trigger
	if trigger == "" {
		trigger = "scheduled"
	}
	result, err := db.conn.Exec(
		`INSERT INTO deliveries
		(run_date, stage, source, fallback_reason, channel, delivered, error, trigger_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RunDate, d.Stage, d.Source, d.FallbackReason, d.Channel, d.Delivered, d.Error, trigger,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetRecentDeliveries returns up to limit deliveries, newest first.
func (db *DB) GetRecentDeliveries(limit int) ([]Delivery, error) {
	rows, err := db.conn.Query(
		"SELECT "+deliveryColumns+" FROM deliveries ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

// GetDeliveriesForDate returns the deliveries of one run date in insertion
// order.
func (db *DB) GetDeliveriesForDate(runDate string) ([]Delivery, error) {
	rows, err := db.conn.Query(
		"SELECT "+deliveryColumns+" FROM deliveries WHERE run_date = ? ORDER BY id", runDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

// GetLastDelivery returns the newest delivery, or nil if none exist.
func (db *DB) GetLastDelivery() (*Delivery, error) {
	row := db.conn.QueryRow("SELECT " + deliveryColumns + " FROM deliveries ORDER BY id DESC LIMIT 1")
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetStats returns aggregate delivery statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM deliveries", &s.Deliveries},
		{"SELECT COUNT(*) FROM deliveries WHERE delivered = 1", &s.Delivered},
		{"SELECT COUNT(*) FROM deliveries WHERE delivered = 0", &s.Failed},
		{"SELECT COUNT(*) FROM deliveries WHERE source = 'fallback'", &s.Fallbacks},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	var last sql.NullString
	if err := db.conn.QueryRow(
		"SELECT MAX(created_at) FROM deliveries WHERE delivered = 1",
	).Scan(&last); err != nil {
		return nil, err
	}
	if last.Valid {
		s.LastDelivered = &last.String
	}

	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row scanner) (*Delivery, error) {
	var d Delivery
	if err := row.Scan(&d.ID, &d.RunDate, &d.Stage, &d.Source, &d.FallbackReason,
		&d.Channel, &d.Delivered, &d.Error, &d.Trigger, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDeliveries(rows *sql.Rows) ([]Delivery, error) {
	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
