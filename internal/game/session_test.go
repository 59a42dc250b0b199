package game

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/render"
	"github.com/annel0/blockworld/internal/storage"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

// listGenerator укладывает заданные блоки и считает вызовы
type listGenerator struct {
	blocks map[vec.Vec3]block.Material
	calls  int
}

func (g *listGenerator) Generate(sink world.BlockSink) int {
	g.calls++
	for pos, m := range g.blocks {
		sink.LoadBlock(pos, m)
	}
	return len(g.blocks)
}

func single(pos vec.Vec3) *listGenerator {
	return &listGenerator{blocks: map[vec.Vec3]block.Material{pos: block.SimpleMaterial(7, 7)}}
}

var (
	lookForward = mgl64.Vec3{0, 0, -1}
	frontOfCube = mgl64.Vec3{0, 0, 5}
)

func newTestSession(t *testing.T, opts Options) (*Session, *render.Headless) {
	t.Helper()
	r := render.NewHeadless()
	s, err := NewSession(world.NewEngine(r, world.DefaultEngineConfig()), opts)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	return s, r
}

func TestSession_FirstTickBuildsVisibleWorld(t *testing.T) {
	s, r := newTestSession(t, Options{Generator: single(vec.Vec3{})})

	_, ok := s.Sector()
	assert.False(t, ok, "Сектор не определён до первого кадра")
	assert.Equal(t, 0, r.Stats().LiveMeshes, "До первого кадра меши не строятся")

	executed := s.Tick(context.Background(), frontOfCube, lookForward)
	assert.Equal(t, 1, executed)

	st := s.Stats()
	assert.Equal(t, uint64(1), st.Frame)
	assert.Equal(t, 1, st.Blocks)
	assert.Equal(t, 1, st.Shown)
	assert.Equal(t, 1, st.Meshes)
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, 1, r.Stats().LiveMeshes)
}

func TestSession_BuildAndBreak(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, Options{Generator: single(vec.Vec3{})})
	s.Tick(ctx, frontOfCube, lookForward)

	focused, ok := s.Focused()
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{}, focused)

	placed, ok := s.Build()
	require.True(t, ok, "Блок должен ставиться перед целью")
	assert.Equal(t, vec.Vec3{X: 0, Y: 0, Z: 1}, placed)

	m, ok := s.Engine().Block(placed)
	require.True(t, ok)
	assert.Equal(t, s.Selected(), m, "Ставится выбранный материал")
	assert.True(t, s.Engine().IsShown(placed))

	removed, ok, err := s.Break()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, placed, removed, "Ломается ближайший блок")

	removed, ok, err = s.Break()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, vec.Vec3{}, removed)

	_, ok, err = s.Break()
	require.NoError(t, err)
	assert.False(t, ok, "В пустом мире ломать нечего")
	assert.Equal(t, 0, s.Stats().Blocks)
}

func TestSession_BuildFallsBackToEmptyCell(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, Options{Generator: single(vec.Vec3{})})
	s.Tick(ctx, mgl64.Vec3{10, 0, 0}, mgl64.Vec3{1, 0, 0})

	placed, ok := s.Build()
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 18, Y: 0, Z: 0}, placed, "Пустая клетка на расстоянии 8")
	assert.True(t, s.Engine().HasBlock(placed))
}

func TestSession_DeleteIsland(t *testing.T) {
	ctx := context.Background()
	gen := &listGenerator{blocks: map[vec.Vec3]block.Material{}}
	for y := 0; y > -3; y-- {
		gen.blocks[vec.Vec3{X: 0, Y: y, Z: 0}] = block.SimpleMaterial(1, 1)
	}
	gen.blocks[vec.Vec3{X: 5, Y: 5, Z: 5}] = block.SimpleMaterial(2, 2)

	s, r := newTestSession(t, Options{Generator: gen})
	s.Tick(ctx, frontOfCube, lookForward)

	n, err := s.DeleteIsland()
	require.NoError(t, err)
	assert.Equal(t, 3, n, "Удаляется только связная колонна")
	assert.Equal(t, 1, s.Engine().BlockCount())
	assert.Equal(t, 1, r.Stats().LiveMeshes)

	s.Tick(ctx, frontOfCube, mgl64.Vec3{0, 1, 0})
	n, err = s.DeleteIsland()
	require.NoError(t, err)
	assert.Equal(t, 0, n, "Без цели ничего не удаляется")
}

func TestSession_SelectSlotWraps(t *testing.T) {
	s, _ := newTestSession(t, Options{Generator: single(vec.Vec3{})})

	inv := s.Inventory()
	require.Len(t, inv, block.PaletteSize/inventoryStep)
	assert.Equal(t, block.BlockID(0), inv[0].ID)
	assert.Equal(t, block.BlockID(10), inv[1].ID, "В инвентарь попадает каждый 10-й материал")

	assert.Equal(t, block.BlockID(30), s.SelectSlot(13).ID)
	assert.Equal(t, 3, s.Stats().SelectedSlot)
	assert.Equal(t, block.BlockID(90), s.SelectSlot(-1).ID, "Отрицательный индекс тоже по модулю")
	assert.Equal(t, block.BlockID(90), s.Selected().ID)
}

func TestSession_SectorChangeHidesFarBlocks(t *testing.T) {
	ctx := context.Background()
	s, r := newTestSession(t, Options{Generator: single(vec.Vec3{})})
	s.Tick(ctx, frontOfCube, lookForward)
	require.Equal(t, 1, r.Stats().LiveMeshes)

	far := mgl64.Vec3{1000, 0, 0}
	s.Tick(ctx, far, lookForward)
	sector, ok := s.Sector()
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 6, Y: 0, Z: 0}, sector)
	assert.Equal(t, 0, s.Engine().ShownCount(), "Блок скрыт сразу")
	assert.Equal(t, 1, s.Stats().Pending, "Освобождение меша ждёт следующего кадра")

	s.Tick(ctx, far, lookForward)
	assert.Equal(t, 0, r.Stats().LiveMeshes)
	assert.Equal(t, 0, s.Stats().Pending)

	s.Tick(ctx, frontOfCube, lookForward)
	s.Tick(ctx, frontOfCube, lookForward)
	assert.Equal(t, 1, r.Stats().LiveMeshes, "При возвращении блок снова показан")
}

func TestSession_SaveAndRestore(t *testing.T) {
	ctx := context.Background()
	persistence, err := storage.NewSnapshotFileStorage(filepath.Join(t.TempDir(), "world.snap.zst"))
	require.NoError(t, err)
	positions := storage.NewMemoryPositionRepo()

	gen := single(vec.Vec3{})
	s, _ := newTestSession(t, Options{
		PlayerID:    42,
		Generator:   gen,
		Persistence: persistence,
		Positions:   positions,
	})
	assert.Equal(t, 1, gen.calls)

	s.Tick(ctx, frontOfCube, lookForward)
	_, ok := s.Build()
	require.True(t, ok)
	s.Tick(ctx, mgl64.Vec3{3, 4, 5}, lookForward)
	require.NoError(t, s.Save(ctx))
	assert.False(t, s.Stats().LastSave.IsZero())

	restored, r := newTestSession(t, Options{
		PlayerID:    42,
		Generator:   gen,
		Persistence: persistence,
		Positions:   positions,
	})
	assert.Equal(t, 1, gen.calls, "При наличии сохранения генератор не вызывается")
	assert.Equal(t, mgl64.Vec3{3, 4, 5}, restored.Position(), "Позиция игрока восстановлена")
	assert.Equal(t, 2, restored.Engine().BlockCount())
	assert.Equal(t, 0, r.Stats().LiveMeshes, "Загрузка не строит меши")

	restored.Tick(ctx, restored.Position(), lookForward)
	assert.Equal(t, 2, r.Stats().LiveMeshes)
}

func TestSession_Autosave(t *testing.T) {
	ctx := context.Background()
	persistence, err := storage.NewSnapshotFileStorage(filepath.Join(t.TempDir(), "auto.snap.zst"))
	require.NoError(t, err)

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := render.NewHeadless()
	s, err := NewSession(world.NewEngine(r, world.DefaultEngineConfig()), Options{
		Generator:   single(vec.Vec3{}),
		Persistence: persistence,
		Autosave:    time.Minute,
	})
	require.NoError(t, err)
	s.now = func() time.Time { return clock }
	require.NoError(t, s.Start(ctx))

	s.Tick(ctx, frontOfCube, lookForward)
	assert.False(t, persistence.HasSave(ctx), "Интервал ещё не прошёл")

	clock = clock.Add(2 * time.Minute)
	s.Tick(ctx, frontOfCube, lookForward)
	assert.True(t, persistence.HasSave(ctx), "Автосохранение должно сработать")
	assert.Equal(t, clock, s.Stats().LastSave)
}

func TestSession_StatsConcurrentRead(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, Options{Generator: single(vec.Vec3{})})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = s.Stats()
			}
		}
	}()

	for i := 0; i < 100; i++ {
		s.Tick(ctx, frontOfCube, lookForward)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, uint64(100), s.Stats().Frame)
}

func TestNewSession_Errors(t *testing.T) {
	_, err := NewSession(nil, Options{})
	assert.Error(t, err, "Без движка сессия не создаётся")

	_, err = NewSession(world.NewEngine(nil, world.DefaultEngineConfig()), Options{Palette: block.NewPalette()})
	assert.Error(t, err, "С пустой палитрой инвентарь пуст")

	s, err := NewSession(world.NewEngine(nil, world.DefaultEngineConfig()), Options{Generator: single(vec.Vec3{})})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "Повторный запуск запрещён")
}
