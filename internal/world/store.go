package world

import (
	"fmt"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// PlaceBlock ставит блок с материалом m в pos. Существующий блок сначала
// полностью удаляется (в том же режиме immediate).
//
// В немедленном режиме блок показывается, если открыт, затем
// пересчитывается видимость шести соседей. В отложенном режиме показ
// ставится в очередь, соседи не пересчитываются.
func (e *Engine) PlaceBlock(pos vec.Vec3, m block.Material, immediate bool) {
	if _, exists := e.world[pos]; exists {
		_ = e.RemoveBlock(pos, immediate)
	}

	e.insert(pos, m)

	if e.IsExposed(pos) {
		_ = e.ShowBlock(pos, immediate)
	}
	if immediate {
		e.CheckNeighbors(pos)
	}
	e.syncMetrics()
}

// LoadBlock вставляет блок без работы с видимостью соседей.
// Используется при загрузке сохранения и генерации: блоки покажет
// потоковая загрузка секторов.
//
// Если на месте уже стоит показанный блок, его снимок в Shown заменяется
// и в очередь ставится пересоздание меша с новым материалом. Открытость
// клетки при замене не меняется.
func (e *Engine) LoadBlock(pos vec.Vec3, m block.Material) {
	if _, exists := e.world[pos]; exists {
		e.removeFromSector(pos)
	}
	e.insert(pos, m)

	if _, shown := e.shown[pos]; shown {
		_ = e.ShowBlock(pos, false)
		e.syncMetrics()
	}
}

// RemoveBlock удаляет блок из pos. Возвращает ErrNotFound, если блока нет.
//
// В немедленном режиме меш освобождается сразу и соседи пересчитываются.
// В отложенном режиме освобождение меша ставится в очередь.
func (e *Engine) RemoveBlock(pos vec.Vec3, immediate bool) error {
	if _, exists := e.world[pos]; !exists {
		return fmt.Errorf("удаление %v: %w", pos, ErrNotFound)
	}

	delete(e.world, pos)
	e.removeFromSector(pos)

	if _, shown := e.shown[pos]; shown {
		_ = e.HideBlock(pos, immediate)
	}
	if immediate {
		e.CheckNeighbors(pos)
	}
	e.syncMetrics()
	return nil
}

// IsExposed сообщает, есть ли у позиции хотя бы один пустой сосед по грани.
// Занятость самой позиции не учитывается.
func (e *Engine) IsExposed(pos vec.Vec3) bool {
	for _, n := range pos.Neighbors() {
		if _, exists := e.world[n]; !exists {
			return true
		}
	}
	return false
}

// CheckNeighbors приводит видимость шести соседей pos в соответствие с миром:
// открытые непоказанные блоки показываются, закрытые показанные скрываются.
func (e *Engine) CheckNeighbors(pos vec.Vec3) {
	for _, n := range pos.Neighbors() {
		if _, exists := e.world[n]; !exists {
			continue
		}
		_, shown := e.shown[n]
		if e.IsExposed(n) {
			if !shown {
				_ = e.ShowBlock(n, true)
			}
		} else if shown {
			_ = e.HideBlock(n, true)
		}
	}
}

// Block возвращает материал блока в pos
func (e *Engine) Block(pos vec.Vec3) (block.Material, bool) {
	m, ok := e.world[pos]
	return m, ok
}

// HasBlock проверяет наличие блока в pos
func (e *Engine) HasBlock(pos vec.Vec3) bool {
	_, ok := e.world[pos]
	return ok
}

// BlockCount возвращает количество блоков в мире
func (e *Engine) BlockCount() int {
	return len(e.world)
}

// ForEachBlock вызывает fn для каждого блока мира, пока fn возвращает true.
// Порядок обхода не определён. Менять мир из fn нельзя.
func (e *Engine) ForEachBlock(fn func(pos vec.Vec3, m block.Material) bool) {
	for pos, m := range e.world {
		if !fn(pos, m) {
			return
		}
	}
}

// IsShown проверяет, входит ли блок в множество показанных
func (e *Engine) IsShown(pos vec.Vec3) bool {
	_, ok := e.shown[pos]
	return ok
}

// ShownCount возвращает размер множества показанных блоков
func (e *Engine) ShownCount() int {
	return len(e.shown)
}

// MeshCount возвращает количество живых мешей
func (e *Engine) MeshCount() int {
	return len(e.meshes)
}

// HasMesh проверяет, есть ли у блока живой меш
func (e *Engine) HasMesh(pos vec.Vec3) bool {
	_, ok := e.meshes[pos]
	return ok
}

// SectorBlocks возвращает координаты блоков сектора
func (e *Engine) SectorBlocks(sector vec.Vec3) []vec.Vec3 {
	members := e.sectors[sector]
	out := make([]vec.Vec3, 0, len(members))
	for pos := range members {
		out = append(out, pos)
	}
	return out
}

func (e *Engine) insert(pos vec.Vec3, m block.Material) {
	e.world[pos] = m

	sector := pos.Sector()
	members, ok := e.sectors[sector]
	if !ok {
		members = make(map[vec.Vec3]struct{})
		e.sectors[sector] = members
	}
	members[pos] = struct{}{}
}

func (e *Engine) removeFromSector(pos vec.Vec3) {
	sector := pos.Sector()
	members, ok := e.sectors[sector]
	if !ok {
		return
	}
	delete(members, pos)
	if len(members) == 0 {
		delete(e.sectors, sector)
	}
}
