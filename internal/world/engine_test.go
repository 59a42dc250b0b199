package world

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer запоминает живые меши и переданные текстурные координаты
type fakeRenderer struct {
	next      MeshHandle
	live      map[MeshHandle][]float32
	created   int
	destroyed int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{live: make(map[MeshHandle][]float32)}
}

func (r *fakeRenderer) CreateMesh(vertices, texCoords []float32) MeshHandle {
	r.next++
	r.created++
	r.live[r.next] = texCoords
	return r.next
}

func (r *fakeRenderer) DestroyMesh(h MeshHandle) {
	if _, ok := r.live[h]; !ok {
		panic("уничтожение неизвестного меша")
	}
	delete(r.live, h)
	r.destroyed++
}

func newTestEngine(t *testing.T) (*Engine, *fakeRenderer) {
	t.Helper()
	r := newFakeRenderer()
	return NewEngine(r, DefaultEngineConfig()), r
}

func mat(i int) block.Material {
	return block.SimpleMaterial(block.BlockID(i), i)
}

func v(x, y, z int) vec.Vec3 {
	return vec.Vec3{X: x, Y: y, Z: z}
}

// assertShownSubset проверяет Shown ⊆ World
func assertShownSubset(t *testing.T, e *Engine) {
	t.Helper()
	for pos := range e.shown {
		_, ok := e.world[pos]
		require.True(t, ok, "показанный блок %v должен быть в мире", pos)
	}
}

// assertMeshesMatchShown проверяет соответствие мешей множеству Shown после полной обработки очереди
func assertMeshesMatchShown(t *testing.T, e *Engine, r *fakeRenderer) {
	t.Helper()
	require.Equal(t, 0, e.Queue().Len(), "очередь должна быть пуста")
	require.Equal(t, len(e.shown), len(e.meshes), "мешей столько же, сколько показанных блоков")
	for pos := range e.shown {
		_, ok := e.meshes[pos]
		require.True(t, ok, "у показанного блока %v должен быть меш", pos)
	}
	require.Equal(t, len(e.meshes), len(r.live), "у рендерера нет утёкших мешей")
}

func TestEngine_PlaceIsolatedBlockIsShown(t *testing.T) {
	e, r := newTestEngine(t)

	e.PlaceBlock(v(0, 0, 0), mat(1), true)

	assert.True(t, e.HasBlock(v(0, 0, 0)))
	assert.True(t, e.IsShown(v(0, 0, 0)), "одиночный блок открыт и должен быть показан")
	assert.True(t, e.HasMesh(v(0, 0, 0)))
	assert.Equal(t, 1, len(r.live))
	assert.Equal(t, mat(1).TexCoords(), r.live[e.meshes[v(0, 0, 0)]])
}

func TestEngine_BuryAndUncover(t *testing.T) {
	e, r := newTestEngine(t)
	center := v(5, 5, 5)

	e.PlaceBlock(center, mat(1), true)
	for _, n := range center.Neighbors() {
		e.PlaceBlock(n, mat(2), true)
	}

	assert.False(t, e.IsExposed(center), "окружённый блок закрыт")
	assert.False(t, e.IsShown(center), "закрытый блок должен быть скрыт")
	assert.False(t, e.HasMesh(center))
	for _, n := range center.Neighbors() {
		assert.True(t, e.IsShown(n), "сосед %v открыт снаружи", n)
	}

	// Убираем верхнего соседа: центр снова открыт
	require.NoError(t, e.RemoveBlock(center.Add(vec.Faces[0]), true))
	assert.True(t, e.IsShown(center), "открытый блок должен снова показываться")
	assert.True(t, e.HasMesh(center))
	assertMeshesMatchShown(t, e, r)
}

func TestEngine_IsExposedIgnoresOwnCell(t *testing.T) {
	e, _ := newTestEngine(t)
	center := v(0, 0, 0)
	for _, n := range center.Neighbors() {
		e.LoadBlock(n, mat(3))
	}

	assert.False(t, e.HasBlock(center))
	assert.False(t, e.IsExposed(center), "важна только занятость соседей")
	assert.True(t, e.IsExposed(v(0, 5, 0)))
}

func TestEngine_PlaceRemoveRoundTrip(t *testing.T) {
	e, r := newTestEngine(t)
	e.PlaceBlock(v(1, 0, 0), mat(1), true)
	before := e.BlockCount()

	p := v(300, 4, -20)
	e.PlaceBlock(p, mat(2), true)
	require.NoError(t, e.RemoveBlock(p, true))

	assert.False(t, e.HasBlock(p))
	assert.Equal(t, before, e.BlockCount())
	assert.Empty(t, e.SectorBlocks(p.Sector()), "сектор удалённого блока пуст")
	assert.False(t, e.IsShown(p))
	assertMeshesMatchShown(t, e, r)
}

func TestEngine_RemoveMissing(t *testing.T) {
	e, _ := newTestEngine(t)

	err := e.RemoveBlock(v(9, 9, 9), true)
	assert.True(t, errors.Is(err, ErrNotFound), "ожидалась ErrNotFound, получено %v", err)

	err = e.HideBlock(v(9, 9, 9), true)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = e.ShowBlock(v(9, 9, 9), false)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, e.Queue().Len())
}

func TestEngine_PlaceReplacesBlock(t *testing.T) {
	e, r := newTestEngine(t)
	p := v(2, 2, 2)

	e.PlaceBlock(p, mat(1), true)
	e.PlaceBlock(p, mat(7), true)

	m, ok := e.Block(p)
	require.True(t, ok)
	assert.Equal(t, mat(7), m)
	assert.Equal(t, 1, e.BlockCount())
	assert.Len(t, e.SectorBlocks(p.Sector()), 1, "замена не дублирует запись в секторе")
	assert.Equal(t, 1, len(r.live))
	assert.Equal(t, mat(7).TexCoords(), r.live[e.meshes[p]], "меш построен по новому материалу")
}

func TestEngine_DeferredPlaceQueuesShow(t *testing.T) {
	e, r := newTestEngine(t)

	e.PlaceBlock(v(0, 0, 0), mat(1), false)
	assert.True(t, e.IsShown(v(0, 0, 0)), "Shown обновляется сразу")
	assert.False(t, e.HasMesh(v(0, 0, 0)), "меш появится после обработки очереди")
	assert.Equal(t, 1, e.Queue().Len())

	// Отложенная замена: скрытие и показ той же координаты схлопываются
	e.PlaceBlock(v(0, 0, 0), mat(2), false)
	assert.Equal(t, 1, e.Queue().Len())

	assert.Equal(t, 1, e.ProcessEntireQueue())
	assert.Equal(t, mat(2).TexCoords(), r.live[e.meshes[v(0, 0, 0)]])

	// Отложенное удаление показанного блока ставит освобождение меша
	require.NoError(t, e.RemoveBlock(v(0, 0, 0), false))
	assert.False(t, e.IsShown(v(0, 0, 0)))
	assert.True(t, e.HasMesh(v(0, 0, 0)))
	e.ProcessEntireQueue()
	assertMeshesMatchShown(t, e, r)
}

func TestEngine_LoadBlockNoVisibilityWork(t *testing.T) {
	e, r := newTestEngine(t)

	e.LoadBlock(v(0, 0, 0), mat(1))
	e.LoadBlock(v(0, 0, 0), mat(2))

	assert.Equal(t, 1, e.BlockCount())
	assert.Len(t, e.SectorBlocks(v(0, 0, 0)), 1)
	assert.False(t, e.IsShown(v(0, 0, 0)))
	assert.Equal(t, 0, e.Queue().Len())
	assert.Equal(t, 0, r.created)
}

func TestEngine_LoadBlockOverShownBlock(t *testing.T) {
	e, r := newTestEngine(t)
	p := v(0, 0, 0)

	e.PlaceBlock(p, mat(1), true)
	require.True(t, e.IsShown(p))

	e.LoadBlock(p, mat(2))
	assert.Equal(t, mat(2), e.shown[p], "Снимок в Shown должен смениться сразу")
	assert.Equal(t, 1, e.Queue().Len(), "Пересоздание меша ставится в очередь")
	assert.Len(t, e.SectorBlocks(v(0, 0, 0)), 1)

	e.ProcessEntireQueue()
	require.True(t, e.HasMesh(p))
	assert.Equal(t, mat(2).TexCoords(), r.live[e.meshes[p]], "Меш должен получить текстуры нового материала")
	assertShownSubset(t, e)
	assertMeshesMatchShown(t, e, r)
}

func TestEngine_RandomEditsKeepInvariants(t *testing.T) {
	e, r := newTestEngine(t)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		p := v(rng.Intn(6), rng.Intn(6), rng.Intn(6))
		immediate := rng.Intn(3) != 0

		switch rng.Intn(4) {
		case 0, 1:
			e.PlaceBlock(p, mat(rng.Intn(10)), immediate)
		case 2:
			if e.HasBlock(p) {
				require.NoError(t, e.RemoveBlock(p, immediate))
			}
		case 3:
			e.ProcessQueue(time.Duration(rng.Intn(2)) * time.Millisecond)
		}
		assertShownSubset(t, e)
	}

	e.ProcessEntireQueue()
	assertMeshesMatchShown(t, e, r)

	// Индекс секторов совпадает с миром
	total := 0
	for sector, members := range e.sectors {
		for pos := range members {
			require.True(t, e.HasBlock(pos))
			require.Equal(t, sector, pos.Sector())
			total++
		}
	}
	assert.Equal(t, e.BlockCount(), total)
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := DefaultEngineConfig()
	cfg.Metrics = NewMetrics(reg)
	e := NewEngine(newFakeRenderer(), cfg)

	e.PlaceBlock(v(0, 0, 0), mat(1), false)
	e.PlaceBlock(v(5, 0, 0), mat(1), false)
	e.ProcessEntireQueue()

	assert.Equal(t, 2.0, testutil.ToFloat64(cfg.Metrics.worldBlocks))
	assert.Equal(t, 2.0, testutil.ToFloat64(cfg.Metrics.shownBlocks))
	assert.Equal(t, 2.0, testutil.ToFloat64(cfg.Metrics.meshes))
	assert.Equal(t, 0.0, testutil.ToFloat64(cfg.Metrics.queuePending))
	assert.Equal(t, 2.0, testutil.ToFloat64(cfg.Metrics.renderOps.WithLabelValues("materialize")))

	n, err := testutil.GatherAndCount(reg, "blockworld_queue_drain_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCubeVertices(t *testing.T) {
	verts := CubeVertices(1, 2, 3, 0.5)
	require.Len(t, verts, 72, "24 вершины по 3 координаты")

	// Первая вершина верхней грани
	assert.Equal(t, []float32{0.5, 2.5, 2.5}, verts[:3])
	// Все вершины верхней грани на y+n
	for i := 0; i < 4; i++ {
		assert.Equal(t, float32(2.5), verts[i*3+1])
	}
	// Все вершины нижней грани на y-n
	for i := 4; i < 8; i++ {
		assert.Equal(t, float32(1.5), verts[i*3+1])
	}
}
