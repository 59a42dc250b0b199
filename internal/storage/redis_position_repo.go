package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/encoding/json"

	"github.com/annel0/blockworld/internal/logging"
)

// RedisPositionRepo хранит позиции игроков в Redis
type RedisPositionRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// playerPosition - запись позиции в Redis
type playerPosition struct {
	PlayerID  uint64     `json:"player_id"`
	Position  mgl64.Vec3 `json:"position"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей (0 - бессрочно)
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "blockworld:pos:",
	}
}

// NewRedisPositionRepo подключается к Redis и проверяет соединение
func NewRedisPositionRepo(ctx context.Context, config *RedisConfig) (*RedisPositionRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("🔴 Connected to Redis at %s", config.Addr)
	return &RedisPositionRepo{
		client:    client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
	}, nil
}

func (r *RedisPositionRepo) key(playerID uint64) string {
	return r.keyPrefix + strconv.FormatUint(playerID, 10)
}

// Save сохраняет позицию игрока
func (r *RedisPositionRepo) Save(ctx context.Context, playerID uint64, pos mgl64.Vec3) error {
	if err := validatePosition(playerID, pos); err != nil {
		return err
	}

	data, err := json.Marshal(playerPosition{PlayerID: playerID, Position: pos, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	if err := r.client.Set(ctx, r.key(playerID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

// Load загружает позицию игрока
func (r *RedisPositionRepo) Load(ctx context.Context, playerID uint64) (mgl64.Vec3, bool, error) {
	if playerID == 0 {
		return mgl64.Vec3{}, false, fmt.Errorf("недействительный playerID: %d", playerID)
	}

	data, err := r.client.Get(ctx, r.key(playerID)).Bytes()
	if err == redis.Nil {
		return mgl64.Vec3{}, false, nil // Позиция не найдена
	} else if err != nil {
		return mgl64.Vec3{}, false, fmt.Errorf("failed to get position: %w", err)
	}

	var pp playerPosition
	if err := json.Unmarshal(data, &pp); err != nil {
		return mgl64.Vec3{}, false, fmt.Errorf("failed to unmarshal position: %w", err)
	}
	return pp.Position, true, nil
}

// Delete удаляет позицию игрока
func (r *RedisPositionRepo) Delete(ctx context.Context, playerID uint64) error {
	n, err := r.client.Del(ctx, r.key(playerID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("позиция для игрока %d не найдена", playerID)
	}
	return nil
}

// BatchSave записывает позиции одним пайплайном
func (r *RedisPositionRepo) BatchSave(ctx context.Context, positions map[uint64]mgl64.Vec3) error {
	if len(positions) == 0 {
		return nil
	}

	now := time.Now().UTC()
	pipe := r.client.Pipeline()
	for playerID, pos := range positions {
		if err := validatePosition(playerID, pos); err != nil {
			return err
		}
		data, err := json.Marshal(playerPosition{PlayerID: playerID, Position: pos, UpdatedAt: now})
		if err != nil {
			return fmt.Errorf("failed to marshal position for %d: %w", playerID, err)
		}
		pipe.Set(ctx, r.key(playerID), data, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisPositionRepo) Close() error {
	return r.client.Close()
}
