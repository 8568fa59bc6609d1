package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL DEFAULT '',
			sender TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			received_at INTEGER NOT NULL,
			preview TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			score REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_received_at ON messages(received_at)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			message_id TEXT PRIMARY KEY,
			vector BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL,
			is_positive BOOLEAN NOT NULL,
			priority TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_message_id ON feedback(message_id)`,
		`CREATE TABLE IF NOT EXISTS reputation (
			kind TEXT NOT NULL,
			subject_key TEXT NOT NULL,
			positive INTEGER NOT NULL DEFAULT 0,
			negative INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (kind, subject_key)
		)`,
		`CREATE TABLE IF NOT EXISTS preferences (
			pref_key TEXT PRIMARY KEY,
			pref_value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS brief_deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			brief_id TEXT NOT NULL,
			method TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
	},
	insertMessage: `INSERT OR IGNORE INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	upsertReputation: `INSERT INTO reputation (kind, subject_key, positive, negative, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, subject_key) DO UPDATE SET
			positive = positive + excluded.positive,
			negative = negative + excluded.negative,
			updated_at = excluded.updated_at`,
}

// NewSQLiteStore opens (or creates) a SQLite database and applies the schema.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLStore, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// one connection keeps writes serialized and ":memory:" databases shared
	db.SetMaxOpenConns(1)

	store := newSQLStore(db, sqliteDialect, logger)
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Opened SQLite store", zap.String("path", dbPath))
	return store, nil
}
