package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHitTest_FindsBlockAndPrevious(t *testing.T) {
	e, _ := newTestEngine(t)
	e.LoadBlock(v(3, 0, 0), mat(1))
	e.LoadBlock(v(6, 0, 0), mat(1))

	hit, ok := e.HitTest(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 8)
	require.True(t, ok)
	assert.Equal(t, v(3, 0, 0), hit.Block)
	assert.Equal(t, v(2, 0, 0), hit.Previous)
	assert.True(t, hit.HasPrevious)
}

func TestHitTest_DirectionIsNormalized(t *testing.T) {
	e, _ := newTestEngine(t)
	e.LoadBlock(v(0, 0, -4), mat(1))

	hit, ok := e.HitTest(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, -25}, 8)
	require.True(t, ok)
	assert.Equal(t, v(0, 0, -4), hit.Block)
	assert.Equal(t, v(0, 0, -3), hit.Previous)
}

func TestHitTest_Misses(t *testing.T) {
	e, _ := newTestEngine(t)
	e.LoadBlock(v(10, 0, 0), mat(1))

	_, ok := e.HitTest(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 8)
	assert.False(t, ok, "блок дальше дистанции")

	_, ok = e.HitTest(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0}, 42)
	assert.False(t, ok, "луч в пустое небо")

	_, ok = e.HitTest(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}, 8)
	assert.False(t, ok, "нулевое направление")

	hit, ok := e.HitTest(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 11)
	require.True(t, ok)
	assert.Equal(t, v(10, 0, 0), hit.Block)
}

func TestHitTest_StartInsideBlock(t *testing.T) {
	e, _ := newTestEngine(t)
	e.LoadBlock(v(0, 0, 0), mat(1))

	hit, ok := e.HitTest(mgl64.Vec3{0.1, 0, 0}, mgl64.Vec3{1, 0, 0}, 8)
	require.True(t, ok)
	assert.Equal(t, v(0, 0, 0), hit.Block)
	assert.False(t, hit.HasPrevious, "у стартовой клетки нет предыдущей")
}

func TestEmptyCellAt(t *testing.T) {
	e, _ := newTestEngine(t)

	// 63 шага по 1/8: позиция 7.875 округляется к 8
	cell, ok := e.EmptyCellAt(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 8)
	require.True(t, ok)
	assert.Equal(t, v(8, 0, 0), cell)

	e.LoadBlock(v(8, 0, 0), mat(1))
	_, ok = e.EmptyCellAt(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 8)
	assert.False(t, ok, "занятая клетка не подходит")

	// Блоки по пути не мешают: проверяется только последний шаг
	e.LoadBlock(v(0, 3, 0), mat(1))
	cell, ok = e.EmptyCellAt(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0}, 8)
	require.True(t, ok)
	assert.Equal(t, v(0, 8, 0), cell)

	_, ok = e.EmptyCellAt(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}, 8)
	assert.False(t, ok)
	_, ok = e.EmptyCellAt(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 0)
	assert.False(t, ok)
}
