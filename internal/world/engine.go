package world

import (
	"time"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// EngineConfig задаёт параметры движка
type EngineConfig struct {
	SectorPad    int      // Радиус окрестности секторов вокруг игрока
	CubeHalfSize float64  // Полуразмер куба меша
	Metrics      *Metrics // Метрики (может быть nil)
}

// DefaultEngineConfig возвращает конфигурацию по умолчанию
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SectorPad:    4,
		CubeHalfSize: 0.5,
	}
}

// Engine владеет всем изменяемым состоянием мира: блоками, индексом секторов,
// множеством показанных блоков, дескрипторами мешей и очередью рендера.
//
// Engine не потокобезопасен. Им владеет один игровой цикл, и только он
// вызывает рендерер.
type Engine struct {
	world   map[vec.Vec3]block.Material        // Все блоки мира
	shown   map[vec.Vec3]block.Material        // Показанные блоки, подмножество world
	meshes  map[vec.Vec3]MeshHandle            // Меши показанных блоков
	sectors map[vec.Vec3]map[vec.Vec3]struct{} // Сектор -> координаты его блоков
	queue   *RenderQueue                       // Отложенные операции над мешами

	renderer Renderer
	pad      int
	halfSize float64
	metrics  *Metrics
}

// NewEngine создаёт пустой мир. Если renderer == nil, меши никуда не выводятся.
func NewEngine(renderer Renderer, cfg EngineConfig) *Engine {
	if renderer == nil {
		renderer = &nopRenderer{}
	}
	if cfg.SectorPad <= 0 {
		cfg.SectorPad = 4
	}
	if cfg.CubeHalfSize <= 0 {
		cfg.CubeHalfSize = 0.5
	}

	e := &Engine{
		world:    make(map[vec.Vec3]block.Material),
		shown:    make(map[vec.Vec3]block.Material),
		meshes:   make(map[vec.Vec3]MeshHandle),
		sectors:  make(map[vec.Vec3]map[vec.Vec3]struct{}),
		renderer: renderer,
		pad:      cfg.SectorPad,
		halfSize: cfg.CubeHalfSize,
		metrics:  cfg.Metrics,
	}
	e.queue = newRenderQueue(e.execute, cfg.Metrics)
	return e
}

// Queue возвращает очередь рендера движка
func (e *Engine) Queue() *RenderQueue {
	return e.queue
}

// ProcessQueue обрабатывает очередь в пределах бюджета кадра
func (e *Engine) ProcessQueue(budget time.Duration) int {
	n := e.queue.DrainBudgeted(budget)
	e.syncMetrics()
	return n
}

// ProcessEntireQueue обрабатывает очередь целиком
func (e *Engine) ProcessEntireQueue() int {
	n := e.queue.DrainAll()
	e.syncMetrics()
	return n
}

// execute выполняет снятую с очереди операцию. Выполнение сверяет состояние:
// повторное создание заменяет существующий меш, удаление отсутствующего ничего не делает.
func (e *Engine) execute(op Op) {
	switch op.Kind {
	case OpMaterialize:
		e.materialize(op.Pos, op.Material)
	case OpRelease:
		e.release(op.Pos)
	}
}

func (e *Engine) materialize(pos vec.Vec3, m block.Material) {
	if h, ok := e.meshes[pos]; ok {
		e.renderer.DestroyMesh(h)
	}
	vertices := CubeVertices(float64(pos.X), float64(pos.Y), float64(pos.Z), e.halfSize)
	e.meshes[pos] = e.renderer.CreateMesh(vertices, m.TexCoords())
}

func (e *Engine) release(pos vec.Vec3) {
	h, ok := e.meshes[pos]
	if !ok {
		return
	}
	e.renderer.DestroyMesh(h)
	delete(e.meshes, pos)
}

func (e *Engine) syncMetrics() {
	e.metrics.setCounts(len(e.world), len(e.shown), len(e.meshes))
}
