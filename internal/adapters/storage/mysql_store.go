package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id VARCHAR(255) PRIMARY KEY,
			thread_id VARCHAR(255) NOT NULL DEFAULT '',
			sender VARCHAR(512) NOT NULL,
			subject TEXT NOT NULL,
			received_at BIGINT NOT NULL,
			preview TEXT NOT NULL,
			body MEDIUMTEXT NOT NULL,
			score DOUBLE NOT NULL DEFAULT 0,
			INDEX idx_messages_received_at (received_at)
		)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			message_id VARCHAR(255) PRIMARY KEY,
			vector MEDIUMBLOB NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS feedback (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			message_id VARCHAR(255) NOT NULL,
			is_positive BOOLEAN NOT NULL,
			priority VARCHAR(16) NOT NULL DEFAULT '',
			category VARCHAR(64) NOT NULL DEFAULT '',
			notes TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			INDEX idx_feedback_message_id (message_id)
		)`,
		`CREATE TABLE IF NOT EXISTS reputation (
			kind VARCHAR(16) NOT NULL,
			subject_key VARCHAR(255) NOT NULL,
			positive BIGINT NOT NULL DEFAULT 0,
			negative BIGINT NOT NULL DEFAULT 0,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (kind, subject_key)
		)`,
		`CREATE TABLE IF NOT EXISTS preferences (
			pref_key VARCHAR(64) PRIMARY KEY,
			pref_value TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS brief_deliveries (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			brief_id VARCHAR(64) NOT NULL,
			method VARCHAR(32) NOT NULL,
			status VARCHAR(16) NOT NULL,
			error TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
	},
	insertMessage: `INSERT IGNORE INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	upsertReputation: `INSERT INTO reputation (kind, subject_key, positive, negative, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			positive = positive + VALUES(positive),
			negative = negative + VALUES(negative),
			updated_at = VALUES(updated_at)`,
}

// NewMySQLStore connects to MySQL and applies the schema
func NewMySQLStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	store := newSQLStore(db, mysqlDialect, logger)
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Connected to MySQL store")
	return store, nil
}
