package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// MemoryPositionRepo реализует PositionRepo в памяти.
// Используется как fallback, когда Redis и MariaDB недоступны,
// или для локальной разработки без БД.
// ВНИМАНИЕ: Данные теряются при перезапуске!
type MemoryPositionRepo struct {
	mu   sync.RWMutex
	data map[uint64]mgl64.Vec3 // playerID -> позиция
}

// NewMemoryPositionRepo создает новый репозиторий позиций в памяти
func NewMemoryPositionRepo() *MemoryPositionRepo {
	return &MemoryPositionRepo{
		data: make(map[uint64]mgl64.Vec3),
	}
}

// Save сохраняет позицию игрока в памяти
func (r *MemoryPositionRepo) Save(ctx context.Context, playerID uint64, pos mgl64.Vec3) error {
	if err := validatePosition(playerID, pos); err != nil {
		return err
	}

	// Проверяем контекст на отмену
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[playerID] = pos
	return nil
}

// Load загружает позицию игрока из памяти
func (r *MemoryPositionRepo) Load(ctx context.Context, playerID uint64) (mgl64.Vec3, bool, error) {
	if playerID == 0 {
		return mgl64.Vec3{}, false, fmt.Errorf("недействительный playerID: %d", playerID)
	}
	if err := ctx.Err(); err != nil {
		return mgl64.Vec3{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, exists := r.data[playerID]
	return pos, exists, nil
}

// Delete удаляет сохраненную позицию игрока из памяти
func (r *MemoryPositionRepo) Delete(ctx context.Context, playerID uint64) error {
	if playerID == 0 {
		return fmt.Errorf("недействительный playerID: %d", playerID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[playerID]; !exists {
		return fmt.Errorf("позиция для игрока %d не найдена", playerID)
	}

	delete(r.data, playerID)
	return nil
}

// BatchSave сохраняет позиции нескольких игроков в памяти
func (r *MemoryPositionRepo) BatchSave(ctx context.Context, positions map[uint64]mgl64.Vec3) error {
	if len(positions) == 0 {
		return nil // Нечего сохранять
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Валидация всех записей перед сохранением
	for playerID, pos := range positions {
		if err := validatePosition(playerID, pos); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for playerID, pos := range positions {
		r.data[playerID] = pos
	}
	return nil
}

// Count возвращает количество сохраненных позиций
func (r *MemoryPositionRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Close ничего не делает
func (r *MemoryPositionRepo) Close() error { return nil }
