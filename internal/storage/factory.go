package storage

import (
	"context"
	"fmt"
	"path/filepath"
)

// Имена бэкендов сохранения мира
const (
	BackendBadger   = "badger"
	BackendSnapshot = "snapshot"
	BackendSQLite   = "sqlite"
)

// Имена бэкендов позиций игроков
const (
	PositionsMemory = "memory"
	PositionsRedis  = "redis"
	PositionsMaria  = "maria"
)

// OpenWorldPersistence открывает хранилище мира выбранного бэкенда в каталоге dataDir
func OpenWorldPersistence(backend, dataDir string) (WorldPersistence, error) {
	switch backend {
	case "", BackendBadger:
		return NewWorldStorage(dataDir)
	case BackendSnapshot:
		return NewSnapshotFileStorage(filepath.Join(dataDir, "world.snap.zst"))
	case BackendSQLite:
		return OpenSQLiteWorldStorage(filepath.Join(dataDir, "world.db"))
	default:
		return nil, fmt.Errorf("неизвестный бэкенд сохранения: %s", backend)
	}
}

// PositionsConfig описывает подключение репозитория позиций
type PositionsConfig struct {
	Backend   string
	RedisAddr string
	MariaDSN  string
}

// OpenPositionRepo открывает репозиторий позиций выбранного бэкенда
func OpenPositionRepo(ctx context.Context, cfg PositionsConfig) (PositionRepo, error) {
	switch cfg.Backend {
	case "", PositionsMemory:
		return NewMemoryPositionRepo(), nil
	case PositionsRedis:
		rc := DefaultRedisConfig()
		if cfg.RedisAddr != "" {
			rc.Addr = cfg.RedisAddr
		}
		return NewRedisPositionRepo(ctx, rc)
	case PositionsMaria:
		if cfg.MariaDSN == "" {
			return nil, fmt.Errorf("не задана строка подключения к MariaDB")
		}
		return NewMariaPositionRepo(ctx, cfg.MariaDSN)
	default:
		return nil, fmt.Errorf("неизвестный бэкенд позиций: %s", cfg.Backend)
	}
}
