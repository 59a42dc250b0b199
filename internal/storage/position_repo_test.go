package storage

import (
	"context"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryPositionRepo тестирует in-memory репозиторий позиций
func TestMemoryPositionRepo(t *testing.T) {
	repo := NewMemoryPositionRepo()
	runPositionRepoContract(t, repo)
}

// runPositionRepoContract проверяет поведение, общее для всех реализаций PositionRepo
func runPositionRepoContract(t *testing.T, repo PositionRepo) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		expected := mgl64.Vec3{10.5, 20, -1.25}
		require.NoError(t, repo.Save(ctx, 123, expected))

		actual, found, err := repo.Load(ctx, 123)
		require.NoError(t, err)
		assert.True(t, found, "Позиция должна быть найдена")
		assert.Equal(t, expected, actual, "Неверная позиция")
	})

	t.Run("Load Non-Existent User", func(t *testing.T) {
		pos, found, err := repo.Load(ctx, 999999)
		require.NoError(t, err)
		assert.False(t, found, "Позиция найдена для несуществующего пользователя")
		assert.Equal(t, mgl64.Vec3{}, pos)
	})

	t.Run("Update Position", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, 456, mgl64.Vec3{1, 2, 1}))
		require.NoError(t, repo.Save(ctx, 456, mgl64.Vec3{3, 4, 2}))

		actual, found, err := repo.Load(ctx, 456)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, mgl64.Vec3{3, 4, 2}, actual, "Позиция должна обновиться")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, 789, mgl64.Vec3{5, 6, 7}))
		require.NoError(t, repo.Delete(ctx, 789))

		_, found, err := repo.Load(ctx, 789)
		require.NoError(t, err)
		assert.False(t, found, "Позиция должна быть удалена")
		assert.Error(t, repo.Delete(ctx, 789), "Повторное удаление должно вернуть ошибку")
	})

	t.Run("Batch Save", func(t *testing.T) {
		positions := map[uint64]mgl64.Vec3{
			1001: {1, 1, 1},
			1002: {2, 2, 2},
			1003: {3, 3, 3},
		}
		require.NoError(t, repo.BatchSave(ctx, positions))
		require.NoError(t, repo.BatchSave(ctx, nil), "Пустой batch не должен падать")

		for id, expected := range positions {
			actual, found, err := repo.Load(ctx, id)
			require.NoError(t, err)
			assert.True(t, found, "Позиция игрока %d не найдена", id)
			assert.Equal(t, expected, actual)
		}
	})

	t.Run("Invalid Input", func(t *testing.T) {
		assert.Error(t, repo.Save(ctx, 0, mgl64.Vec3{}), "playerID 0 недопустим")
		assert.Error(t, repo.Save(ctx, 5, mgl64.Vec3{math.NaN(), 0, 0}), "NaN недопустим")
		assert.Error(t, repo.Save(ctx, 5, mgl64.Vec3{0, math.Inf(1), 0}), "Inf недопустим")
		_, _, err := repo.Load(ctx, 0)
		assert.Error(t, err)
		assert.Error(t, repo.BatchSave(ctx, map[uint64]mgl64.Vec3{7: {}, 0: {}}))
	})
}

func TestMemoryPositionRepo_CancelledContext(t *testing.T) {
	repo := NewMemoryPositionRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, repo.Save(ctx, 1, mgl64.Vec3{}), context.Canceled)
	_, _, err := repo.Load(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, repo.Count())
}

// TestConcurrentAccess проверяет потокобезопасность in-memory репозитория
func TestConcurrentAccess(t *testing.T) {
	repo := NewMemoryPositionRepo()
	ctx := context.Background()

	const workers = 10
	const perWorker = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := uint64(w*perWorker + i + 1)
				_ = repo.Save(ctx, id, mgl64.Vec3{float64(w), float64(i), 0})
				_, _, _ = repo.Load(ctx, id)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, repo.Count())
}

func TestRedisPositionRepo(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	repo, err := NewRedisPositionRepo(ctx, &RedisConfig{
		Addr:      addr,
		KeyPrefix: "blockworld:test:pos:",
		TTL:       time.Minute,
	})
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	defer repo.Close()

	runPositionRepoContract(t, repo)
}

func TestMariaPositionRepo(t *testing.T) {
	dsn := os.Getenv("MARIA_DSN")
	if dsn == "" {
		t.Skip("MARIA_DSN not set, skipping test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	repo, err := NewMariaPositionRepo(ctx, dsn)
	if err != nil {
		t.Skipf("MariaDB not available, skipping test: %v", err)
	}
	defer repo.Close()

	runPositionRepoContract(t, repo)
}
