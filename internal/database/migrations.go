package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the delivery log schema history. Step i has Version i+1;
// new steps are appended, never inserted.
var migrations = []Migration{
	{
		Version:     1,
		Description: "delivery log",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS deliveries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_date TEXT NOT NULL,
    stage INTEGER NOT NULL,
    source TEXT NOT NULL CHECK(source IN ('live', 'fallback')),
    fallback_reason TEXT,
    channel TEXT NOT NULL,
    delivered INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_deliveries_run_date ON deliveries(run_date);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "record what started each delivery",
		Up: func(tx *sql.Tx) error {
			var n int
			if err := tx.QueryRow(
				"SELECT COUNT(*) FROM pragma_table_info('deliveries') WHERE name = 'trigger_kind'",
			).Scan(&n); err != nil {
				return err
			}
			if n > 0 {
				return nil
			}
			_, err := tx.Exec("ALTER TABLE deliveries ADD COLUMN trigger_kind TEXT NOT NULL DEFAULT 'scheduled'")
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
