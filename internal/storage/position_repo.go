package storage

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// PositionRepo сохраняет и загружает позицию игрока между сессиями.
// Позиции привязаны к постоянному идентификатору игрока.
type PositionRepo interface {
	// Save сохраняет позицию игрока
	Save(ctx context.Context, playerID uint64, pos mgl64.Vec3) error

	// Load загружает позицию игрока.
	// Возвращает false без ошибки, если позиция ещё не сохранялась (первый вход).
	Load(ctx context.Context, playerID uint64) (mgl64.Vec3, bool, error)

	// Delete удаляет сохранённую позицию (для тестов или сброса)
	Delete(ctx context.Context, playerID uint64) error

	// BatchSave сохраняет позиции нескольких игроков одновременно
	BatchSave(ctx context.Context, positions map[uint64]mgl64.Vec3) error

	Close() error
}

// validatePosition проверяет идентификатор и конечность координат
func validatePosition(playerID uint64, pos mgl64.Vec3) error {
	if playerID == 0 {
		return fmt.Errorf("недействительный playerID: %d", playerID)
	}
	for i, c := range pos {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("недействительная координата %d: %v", i, c)
		}
	}
	return nil
}
