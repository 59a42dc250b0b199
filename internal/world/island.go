package world

import (
	"container/list"
	"fmt"

	"github.com/annel0/blockworld/internal/vec"
)

// Island возвращает все блоки, связанные с start через соседей по граням.
// Обход в ширину с явной очередью: глубина стека не зависит от размера острова.
func (e *Engine) Island(start vec.Vec3) []vec.Vec3 {
	if !e.HasBlock(start) {
		return nil
	}

	visited := map[vec.Vec3]struct{}{start: {}}
	island := []vec.Vec3{start}

	queue := list.New()
	queue.PushBack(start)
	for queue.Len() > 0 {
		cur := queue.Remove(queue.Front()).(vec.Vec3)
		for _, n := range cur.Neighbors() {
			if _, seen := visited[n]; seen {
				continue
			}
			if !e.HasBlock(n) {
				continue
			}
			visited[n] = struct{}{}
			island = append(island, n)
			queue.PushBack(n)
		}
	}
	return island
}

// RemoveIsland удаляет остров блоков, начиная с start, через немедленное
// удаление (с пересчётом соседей). Возвращает число удалённых блоков.
func (e *Engine) RemoveIsland(start vec.Vec3) (int, error) {
	island := e.Island(start)
	if len(island) == 0 {
		return 0, fmt.Errorf("удаление острова %v: %w", start, ErrNotFound)
	}

	removed := 0
	for _, pos := range island {
		if err := e.RemoveBlock(pos, true); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
