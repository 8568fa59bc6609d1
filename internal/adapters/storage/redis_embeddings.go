package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisEmbeddings keeps message embeddings in Redis under a key prefix
type RedisEmbeddings struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisEmbeddings connects to Redis and verifies the connection
func NewRedisEmbeddings(addr, password string, db int, prefix string, logger *zap.Logger) (*RedisEmbeddings, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis embedding cache", zap.String("addr", addr), zap.String("prefix", prefix))
	return &RedisEmbeddings{client: client, prefix: prefix, logger: logger}, nil
}

func (r *RedisEmbeddings) key(messageID string) string {
	return r.prefix + messageID
}

// GetEmbedding returns the cached vector for a message
func (r *RedisEmbeddings) GetEmbedding(ctx context.Context, messageID string) (core.Vector, error) {
	buf, err := r.client.Get(ctx, r.key(messageID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding from Redis: %w", err)
	}
	return decodeVector(buf)
}

// SaveEmbedding stores the vector for a message without expiry
func (r *RedisEmbeddings) SaveEmbedding(ctx context.Context, messageID string, vec core.Vector) error {
	if err := r.client.Set(ctx, r.key(messageID), encodeVector(vec), 0).Err(); err != nil {
		return fmt.Errorf("failed to write embedding to Redis: %w", err)
	}
	return nil
}

// DeleteEmbedding removes the vector for a message
func (r *RedisEmbeddings) DeleteEmbedding(ctx context.Context, messageID string) error {
	if err := r.client.Del(ctx, r.key(messageID)).Err(); err != nil {
		return fmt.Errorf("failed to delete embedding from Redis: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (r *RedisEmbeddings) Close() error {
	return r.client.Close()
}

// layered serves embeddings from a separate repository and everything else from the base store
type layered struct {
	core.Storage
	embeddings *RedisEmbeddings
}

// WithRedisEmbeddings routes embedding reads and writes of base to Redis
func WithRedisEmbeddings(base core.Storage, embeddings *RedisEmbeddings) core.Storage {
	return &layered{Storage: base, embeddings: embeddings}
}

func (l *layered) GetEmbedding(ctx context.Context, messageID string) (core.Vector, error) {
	return l.embeddings.GetEmbedding(ctx, messageID)
}

func (l *layered) SaveEmbedding(ctx context.Context, messageID string, vec core.Vector) error {
	return l.embeddings.SaveEmbedding(ctx, messageID, vec)
}

func (l *layered) DeleteEmbedding(ctx context.Context, messageID string) error {
	return l.embeddings.DeleteEmbedding(ctx, messageID)
}

func (l *layered) Close() error {
	err := l.Storage.Close()
	if cerr := l.embeddings.Close(); err == nil {
		err = cerr
	}
	return err
}
