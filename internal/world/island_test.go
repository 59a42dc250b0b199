package world

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveIsland_RemovesConnectedOnly(t *testing.T) {
	e, r := newTestEngine(t)

	// Г-образный остров из 6 блоков
	island := []struct{ x, y, z int }{
		{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {2, 1, 0}, {2, 2, 0}, {2, 2, 1},
	}
	for _, p := range island {
		e.PlaceBlock(v(p.x, p.y, p.z), mat(1), true)
	}
	// Касание только ребром не связывает блоки
	e.PlaceBlock(v(1, 1, 1), mat(2), true)
	// Отдельный остров
	e.PlaceBlock(v(10, 0, 0), mat(3), true)
	e.PlaceBlock(v(10, 1, 0), mat(3), true)

	n, err := e.RemoveIsland(v(2, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, len(island), n, "удаляется стартовый блок и все связанные")

	for _, p := range island {
		assert.False(t, e.HasBlock(v(p.x, p.y, p.z)))
	}
	assert.Equal(t, 3, e.BlockCount())
	assert.True(t, e.HasBlock(v(1, 1, 1)))
	assert.True(t, e.HasBlock(v(10, 0, 0)))
	assert.True(t, e.HasBlock(v(10, 1, 0)))
	assertMeshesMatchShown(t, e, r)
}

func TestRemoveIsland_Empty(t *testing.T) {
	e, _ := newTestEngine(t)

	n, err := e.RemoveIsland(v(0, 0, 0))
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRemoveIsland_LargeStructure(t *testing.T) {
	e, _ := newTestEngine(t)

	// Плита 150x150 и змейка: глубина обхода не ограничена стеком
	for x := 0; x < 150; x++ {
		for z := 0; z < 150; z++ {
			e.LoadBlock(v(x, 0, z), mat(1))
		}
	}
	for y := 1; y <= 500; y++ {
		e.LoadBlock(v(0, y, 0), mat(2))
	}
	e.LoadBlock(v(300, 0, 0), mat(3))

	assert.Len(t, e.Island(v(0, 500, 0)), 150*150+500)

	n, err := e.RemoveIsland(v(149, 0, 149))
	require.NoError(t, err)
	assert.Equal(t, 150*150+500, n)
	assert.Equal(t, 1, e.BlockCount())
}
