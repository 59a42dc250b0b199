package game

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/storage"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

const (
	// DefaultFrameBudget - бюджет обработки очереди рендера за кадр
	DefaultFrameBudget = time.Second / 60
	// DefaultEditDistance - дальность редактирования блоков
	DefaultEditDistance = 42
	// BuildFallbackDistance - дальность поиска пустой клетки, если луч ни во что не попал
	BuildFallbackDistance = 8
	// inventoryStep - в инвентарь попадает каждый inventoryStep-й материал палитры
	inventoryStep = 10
)

// Options задаёт зависимости и параметры сессии
type Options struct {
	PlayerID     uint64
	Palette      *block.Palette
	Generator    world.Generator          // Генератор мира, если сохранения нет
	Persistence  storage.WorldPersistence // Может быть nil
	Positions    storage.PositionRepo     // Может быть nil
	Spawn        mgl64.Vec3
	FrameBudget  time.Duration
	EditDistance int
	Autosave     time.Duration // 0 отключает автосохранение
	Logger       *logging.Logger // nil: пакетный логгер по умолчанию
}

// Stats - снимок состояния сессии для отладочного сервера
type Stats struct {
	Frame        uint64     `json:"frame"`
	Blocks       int        `json:"blocks"`
	Shown        int        `json:"shown"`
	Meshes       int        `json:"meshes"`
	Pending      int        `json:"pending"`
	Sector       vec.Vec3   `json:"sector"`
	Position     [3]float64 `json:"position"`
	Selected     string     `json:"selected"`
	SelectedSlot int        `json:"selected_slot"`
	LastSave     time.Time  `json:"last_save"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Session связывает движок мира с игроком: покадровая обработка очереди,
// смена секторов, действия редактирования, инвентарь и сохранение.
//
// Все методы, кроме Stats, вызываются из одного игрового цикла.
type Session struct {
	engine  *world.Engine
	opts    Options
	logger  *logging.Logger
	started bool

	position mgl64.Vec3
	sight    mgl64.Vec3
	sector   *vec.Vec3

	inventory []block.Material
	slot      int

	frame    uint64
	lastSave time.Time
	now      func() time.Time

	stats atomic.Pointer[Stats]
}

// NewSession создаёт сессию поверх движка
func NewSession(engine *world.Engine, opts Options) (*Session, error) {
	if engine == nil {
		return nil, fmt.Errorf("движок мира не задан")
	}
	if opts.Palette == nil {
		opts.Palette = block.DefaultPalette()
	}
	if opts.Generator == nil {
		opts.Generator = world.NewRowsGenerator(opts.Palette)
	}
	if opts.FrameBudget <= 0 {
		opts.FrameBudget = DefaultFrameBudget
	}
	if opts.EditDistance <= 0 {
		opts.EditDistance = DefaultEditDistance
	}
	if opts.PlayerID == 0 {
		opts.PlayerID = 1
	}

	inventory := buildInventory(opts.Palette)
	if len(inventory) == 0 {
		return nil, fmt.Errorf("палитра пуста, инвентарь не из чего собрать")
	}

	s := &Session{
		engine:    engine,
		opts:      opts,
		logger:    opts.Logger,
		position:  opts.Spawn,
		sight:     mgl64.Vec3{0, 0, -1},
		inventory: inventory,
		now:       time.Now,
	}
	s.publishStats()
	return s, nil
}

// buildInventory берёт каждый inventoryStep-й простой материал палитры
func buildInventory(p *block.Palette) []block.Material {
	mats := p.Materials()
	if len(mats) > block.PaletteSize {
		mats = mats[:block.PaletteSize]
	}
	out := make([]block.Material, 0, len(mats)/inventoryStep+1)
	for i := 0; i < len(mats); i += inventoryStep {
		out = append(out, mats[i])
	}
	return out
}

// Start загружает мир из сохранения или генерирует новый, затем
// восстанавливает позицию игрока. Видимость строится на первом Tick.
func (s *Session) Start(ctx context.Context) error {
	if s.started {
		return fmt.Errorf("сессия уже запущена")
	}

	loaded := false
	if p := s.opts.Persistence; p != nil && p.HasSave(ctx) {
		n, err := p.LoadWorld(ctx, s.engine)
		switch {
		case errors.Is(err, storage.ErrNoSave):
		case err != nil:
			return fmt.Errorf("ошибка загрузки мира: %w", err)
		default:
			loaded = true
			s.lastSave = s.now()
			s.logger.Info("🌍 Мир загружен: %d блоков", n)
		}
	}
	if !loaded {
		n := s.opts.Generator.Generate(s.engine)
		s.logger.Info("🌱 Сгенерирован новый мир: %d блоков", n)
	}

	if repo := s.opts.Positions; repo != nil {
		pos, found, err := repo.Load(ctx, s.opts.PlayerID)
		if err != nil {
			s.logger.Warn("Не удалось загрузить позицию игрока %d: %v", s.opts.PlayerID, err)
		} else if found {
			s.position = pos
			s.logger.Debug("Позиция игрока %d восстановлена: %v", s.opts.PlayerID, pos)
		}
	}

	s.started = true
	if s.lastSave.IsZero() {
		s.lastSave = s.now()
	}
	s.publishStats()
	return nil
}

// Tick выполняет один кадр: обработку очереди в пределах бюджета и смену
// секторов при переходе игрока. Возвращает число выполненных операций очереди.
func (s *Session) Tick(ctx context.Context, position, sight mgl64.Vec3) int {
	s.position = position
	s.sight = sight
	s.frame++

	executed := s.engine.ProcessQueue(s.opts.FrameBudget)

	sector := vec.Sectorize(position)
	if s.sector == nil || *s.sector != sector {
		first := s.sector == nil
		entered, left := s.engine.ChangeSectors(s.sector, &sector)
		if first {
			// Первый кадр: мир вокруг игрока строится целиком
			executed += s.engine.ProcessEntireQueue()
		}
		s.logger.Trace("Сектор %v: +%d -%d", sector, entered, left)
		s.sector = &sector
	}

	if s.opts.Autosave > 0 && s.now().Sub(s.lastSave) >= s.opts.Autosave {
		if err := s.Save(ctx); err != nil {
			s.logger.Error("❌ Ошибка автосохранения: %v", err)
			// Повторим через полный интервал
			s.lastSave = s.now()
		}
	}

	s.publishStats()
	return executed
}

// Focused возвращает блок под прицелом
func (s *Session) Focused() (vec.Vec3, bool) {
	hit, ok := s.engine.HitTest(s.position, s.sight, s.opts.EditDistance)
	return hit.Block, ok
}

// Break удаляет блок под прицелом
func (s *Session) Break() (vec.Vec3, bool, error) {
	hit, ok := s.engine.HitTest(s.position, s.sight, s.opts.EditDistance)
	if !ok {
		return vec.Vec3{}, false, nil
	}
	if err := s.engine.RemoveBlock(hit.Block, true); err != nil {
		return hit.Block, false, err
	}
	s.publishStats()
	return hit.Block, true, nil
}

// Build ставит выбранный материал перед блоком под прицелом.
// Если луч ни во что не попал, блок ставится в пустую клетку на
// расстоянии BuildFallbackDistance.
func (s *Session) Build() (vec.Vec3, bool) {
	var target vec.Vec3
	hit, ok := s.engine.HitTest(s.position, s.sight, s.opts.EditDistance)
	if ok && hit.HasPrevious {
		target = hit.Previous
	} else {
		cell, free := s.engine.EmptyCellAt(s.position, s.sight, BuildFallbackDistance)
		if !free {
			return vec.Vec3{}, false
		}
		target = cell
	}

	s.engine.PlaceBlock(target, s.Selected(), true)
	s.publishStats()
	return target, true
}

// DeleteIsland удаляет связную область блоков под прицелом
func (s *Session) DeleteIsland() (int, error) {
	hit, ok := s.engine.HitTest(s.position, s.sight, s.opts.EditDistance)
	if !ok {
		return 0, nil
	}
	n, err := s.engine.RemoveIsland(hit.Block)
	if err != nil {
		return 0, err
	}
	s.logger.Info("🪓 Удалён остров из %d блоков от %v", n, hit.Block)
	s.publishStats()
	return n, nil
}

// SelectSlot выбирает слот инвентаря (по модулю размера инвентаря)
func (s *Session) SelectSlot(index int) block.Material {
	n := len(s.inventory)
	s.slot = ((index % n) + n) % n
	s.publishStats()
	return s.inventory[s.slot]
}

// Selected возвращает выбранный материал
func (s *Session) Selected() block.Material {
	return s.inventory[s.slot]
}

// Inventory возвращает копию инвентаря
func (s *Session) Inventory() []block.Material {
	out := make([]block.Material, len(s.inventory))
	copy(out, s.inventory)
	return out
}

// Position возвращает текущую позицию игрока
func (s *Session) Position() mgl64.Vec3 {
	return s.position
}

// Sector возвращает текущий сектор игрока (false до первого Tick)
func (s *Session) Sector() (vec.Vec3, bool) {
	if s.sector == nil {
		return vec.Vec3{}, false
	}
	return *s.sector, true
}

// Engine возвращает движок мира
func (s *Session) Engine() *world.Engine {
	return s.engine
}

// Save сохраняет мир и позицию игрока
func (s *Session) Save(ctx context.Context) error {
	if p := s.opts.Persistence; p != nil {
		start := s.now()
		n, err := p.SaveWorld(ctx, s.engine)
		if err != nil {
			return fmt.Errorf("ошибка сохранения мира: %w", err)
		}
		s.logger.Info("💾 Мир сохранён: %d блоков за %s", n, s.now().Sub(start))
	}

	if repo := s.opts.Positions; repo != nil {
		if err := repo.Save(ctx, s.opts.PlayerID, s.position); err != nil {
			return fmt.Errorf("ошибка сохранения позиции: %w", err)
		}
	}

	s.lastSave = s.now()
	s.publishStats()
	return nil
}

// Stats возвращает последний опубликованный снимок. Безопасен для
// вызова из других горутин.
func (s *Session) Stats() Stats {
	if st := s.stats.Load(); st != nil {
		return *st
	}
	return Stats{}
}

func (s *Session) publishStats() {
	st := &Stats{
		Frame:        s.frame,
		Blocks:       s.engine.BlockCount(),
		Shown:        s.engine.ShownCount(),
		Meshes:       s.engine.MeshCount(),
		Pending:      s.engine.Queue().Len(),
		Position:     [3]float64{s.position[0], s.position[1], s.position[2]},
		SelectedSlot: s.slot,
		LastSave:     s.lastSave,
		UpdatedAt:    s.now(),
	}
	if s.sector != nil {
		st.Sector = *s.sector
	}
	if len(s.inventory) > 0 {
		sel := s.inventory[s.slot]
		st.Selected = sel.Name
		if st.Selected == "" {
			st.Selected = fmt.Sprintf("#%d", sel.ID)
		}
	}
	s.stats.Store(st)
}
