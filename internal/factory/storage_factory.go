package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/llm-daily-brief/internal/adapters/storage"
	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"go.uber.org/zap"
)

// StorageFactory creates the persistence backend based on configuration
type StorageFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config, logger *zap.Logger) *StorageFactory {
	return &StorageFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStorage creates the configured store, optionally with embeddings kept in Redis
func (f *StorageFactory) CreateStorage() (core.Storage, error) {
	storageCfg := f.cfg.GetStorage()

	var store core.Storage
	switch storageCfg.Type {
	case "memory":
		store = storage.NewMemoryStore(f.logger)
	case "sqlite":
		if storageCfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(storageCfg.SQLitePath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
		sqlStore, err := storage.NewSQLiteStore(storageCfg.SQLitePath, f.logger)
		if err != nil {
			return nil, err
		}
		store = sqlStore
	case "mysql":
		sqlStore, err := storage.NewMySQLStore(storageCfg.MySQLDSN, f.logger)
		if err != nil {
			return nil, err
		}
		store = sqlStore
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageCfg.Type)
	}

	switch storageCfg.Embeddings {
	case "", storageCfg.Type:
		return store, nil
	case "redis":
		redisCfg := f.cfg.GetRedis()
		embeddings, err := storage.NewRedisEmbeddings(redisCfg.Addr, redisCfg.Password, redisCfg.DB, redisCfg.KeyPrefix, f.logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		return storage.WithRedisEmbeddings(store, embeddings), nil
	default:
		store.Close()
		return nil, fmt.Errorf("unsupported embedding storage: %s", storageCfg.Embeddings)
	}
}
