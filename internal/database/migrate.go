package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// migrate applies every migration newer than the stored user_version.
// A log written by a newer build is refused rather than guessed at.
func migrate(conn *sql.DB) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}
	latest := latestVersion()
	if current > latest {
		return fmt.Errorf("delivery log schema v%d is newer than this build (v%d)", current, latest)
	}

	for _, m := range migrations[current:] {
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}

// apply runs one step in a transaction and then records its version.
// modernc/sqlite rejects user_version writes inside a transaction, so the
// version is stamped afterwards; every step's DDL tolerates a re-run.
func apply(conn *sql.DB, m Migration) error {
	slog.Info("migrating delivery log", "version", m.Version, "step", m.Description)

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("v%d: begin: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("v%d %s: %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("v%d: commit: %w", m.Version, err)
	}

	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("v%d: stamping version: %w", m.Version, err)
	}
	return nil
}
