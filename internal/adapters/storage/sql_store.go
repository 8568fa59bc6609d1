package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mikey/llm-daily-brief/internal/core"
	"go.uber.org/zap"
)

// dialect holds the statements that differ between SQL backends
type dialect struct {
	name             string
	schema           []string
	insertMessage    string
	upsertReputation string
}

// SQLStore is a database/sql implementation of core.Storage
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger) *SQLStore {
	return &SQLStore{db: db, dialect: d, logger: logger}
}

// migrate creates the tables if they don't exist
func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %s schema: %w", s.dialect.name, err)
		}
	}
	return nil
}

// Ping checks the database connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveMessage stores a message if it is not already present
func (s *SQLStore) SaveMessage(ctx context.Context, msg *core.Message) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.insertMessage,
		msg.ID, msg.ThreadID, msg.Sender, msg.Subject,
		msg.ReceivedAt.UnixMilli(), msg.Preview, msg.Body, msg.Score)
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

const messageColumns = `id, thread_id, sender, subject, received_at, preview, body, score`

func scanMessage(row interface{ Scan(...any) error }) (*core.Message, error) {
	var msg core.Message
	var receivedAt int64
	if err := row.Scan(&msg.ID, &msg.ThreadID, &msg.Sender, &msg.Subject,
		&receivedAt, &msg.Preview, &msg.Body, &msg.Score); err != nil {
		return nil, err
	}
	msg.ReceivedAt = time.UnixMilli(receivedAt)
	return &msg, nil
}

// GetMessage returns a stored message
func (s *SQLStore) GetMessage(ctx context.Context, id string) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	return msg, nil
}

// RecentMessages returns messages received at or after since, highest score first
func (s *SQLStore) RecentMessages(ctx context.Context, since time.Time) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE received_at >= ?
		ORDER BY score DESC, received_at DESC
	`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []core.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

// UpdateScore replaces the stored score of a message
func (s *SQLStore) UpdateScore(ctx context.Context, id string, score float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET score = ? WHERE id = ?`, score, id)
	if err != nil {
		return fmt.Errorf("failed to update score: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 for an unchanged value, so confirm the row exists
		if _, err := s.GetMessage(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// GetEmbedding returns the cached vector for a message
func (s *SQLStore) GetEmbedding(ctx context.Context, messageID string) (core.Vector, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT vector FROM embeddings WHERE message_id = ?`, messageID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query embedding: %w", err)
	}
	return decodeVector(blob)
}

// SaveEmbedding stores the vector for a message
func (s *SQLStore) SaveEmbedding(ctx context.Context, messageID string, vec core.Vector) error {
	_, err := s.db.ExecContext(ctx, `
		REPLACE INTO embeddings (message_id, vector, created_at)
		VALUES (?, ?, ?)
	`, messageID, encodeVector(vec), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// DeleteEmbedding removes the vector for a message
func (s *SQLStore) DeleteEmbedding(ctx context.Context, messageID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}

// AppendFeedback appends a record to the feedback log and assigns its id
func (s *SQLStore) AppendFeedback(ctx context.Context, fb *core.Feedback) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (message_id, is_positive, priority, category, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fb.MessageID, fb.Positive, string(fb.Priority), fb.Category, fb.Notes, fb.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get feedback id: %w", err)
	}
	fb.ID = id
	return nil
}

// ListFeedback returns the feedback records for a message in submission order
func (s *SQLStore) ListFeedback(ctx context.Context, messageID string) ([]core.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, is_positive, priority, category, notes, created_at
		FROM feedback
		WHERE message_id = ?
		ORDER BY id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var out []core.Feedback
	for rows.Next() {
		var fb core.Feedback
		var priority string
		var createdAt int64
		if err := rows.Scan(&fb.ID, &fb.MessageID, &fb.Positive, &priority, &fb.Category, &fb.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		fb.Priority = core.Priority(priority)
		fb.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, fb)
	}
	return out, rows.Err()
}

// FeedbackIndex returns every message id with feedback and its latest judgment
func (s *SQLStore) FeedbackIndex(ctx context.Context) (core.FeedbackIndex, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT message_id, is_positive FROM feedback ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback index: %w", err)
	}
	defer rows.Close()

	index := make(core.FeedbackIndex)
	for rows.Next() {
		var id string
		var positive bool
		if err := rows.Scan(&id, &positive); err != nil {
			return nil, fmt.Errorf("failed to scan feedback index: %w", err)
		}
		index[id] = positive
	}
	return index, rows.Err()
}

// PositiveMessageIDs returns ids with at least one positive feedback record
func (s *SQLStore) PositiveMessageIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT message_id FROM feedback WHERE is_positive = ?`, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query positive feedback: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan message id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordFeedback increments one reputation counter in a single upsert
func (s *SQLStore) RecordFeedback(ctx context.Context, kind core.ReputationKind, key string, positive bool) error {
	var pos, neg int64
	if positive {
		pos = 1
	} else {
		neg = 1
	}

	_, err := s.db.ExecContext(ctx, s.dialect.upsertReputation, string(kind), key, pos, neg, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to update %s reputation: %w", kind, err)
	}
	return nil
}

// Reputation returns the aggregate for a key
func (s *SQLStore) Reputation(ctx context.Context, kind core.ReputationKind, key string) (core.Reputation, error) {
	rep := core.Reputation{Kind: kind, Key: key}
	err := s.db.QueryRowContext(ctx, `
		SELECT positive, negative FROM reputation WHERE kind = ? AND subject_key = ?
	`, string(kind), key).Scan(&rep.Positive, &rep.Negative)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return rep, fmt.Errorf("failed to query reputation: %w", err)
	}
	return rep, nil
}

// ReputationRatio returns the positive ratio for a key
func (s *SQLStore) ReputationRatio(ctx context.Context, kind core.ReputationKind, key string) (float64, error) {
	rep, err := s.Reputation(ctx, kind, key)
	if err != nil {
		return 0, err
	}
	return rep.Ratio(), nil
}

// Snapshot reads all reputation aggregates in one query
func (s *SQLStore) Snapshot(ctx context.Context) (*core.ReputationSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, subject_key, positive, negative FROM reputation`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reputation: %w", err)
	}
	defer rows.Close()

	var reps []core.Reputation
	for rows.Next() {
		var rep core.Reputation
		var kind string
		if err := rows.Scan(&kind, &rep.Key, &rep.Positive, &rep.Negative); err != nil {
			return nil, fmt.Errorf("failed to scan reputation: %w", err)
		}
		rep.Kind = core.ReputationKind(kind)
		reps = append(reps, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return core.NewReputationSnapshot(reps), nil
}

// GetPreference returns a stored preference
func (s *SQLStore) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT pref_value FROM preferences WHERE pref_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query preference: %w", err)
	}
	return value, nil
}

// SetPreference stores a preference
func (s *SQLStore) SetPreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		REPLACE INTO preferences (pref_key, pref_value, updated_at)
		VALUES (?, ?, ?)
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store preference: %w", err)
	}
	return nil
}

// ListPreferences returns all preferences
func (s *SQLStore) ListPreferences(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pref_key, pref_value FROM preferences`)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// RecordDelivery stores a delivery attempt and assigns its id
func (s *SQLStore) RecordDelivery(ctx context.Context, rec *core.DeliveryRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO brief_deliveries (brief_id, method, status, error, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.BriefID, rec.Method, rec.Status, rec.Error, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get delivery id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListDeliveries returns the most recent delivery records, newest first
func (s *SQLStore) ListDeliveries(ctx context.Context, limit int) ([]core.DeliveryRecord, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brief_id, method, status, error, created_at
		FROM brief_deliveries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	var out []core.DeliveryRecord
	for rows.Next() {
		var rec core.DeliveryRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.BriefID, &rec.Method, &rec.Status, &rec.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.String("dialect", s.dialect.name), zap.Error(err))
		return err
	}
	return nil
}

func encodeVector(vec core.Vector) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) (core.Vector, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt embedding: %d bytes", len(buf))
	}
	vec := make(core.Vector, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
