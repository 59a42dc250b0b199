package world

import (
	"fmt"

	"github.com/annel0/blockworld/internal/vec"
)

// ShowBlock добавляет блок в множество показанных. В немедленном режиме меш
// строится сразу, иначе в очередь ставится создание меша со снимком
// текущего материала. Блок должен уже быть в мире.
func (e *Engine) ShowBlock(pos vec.Vec3, immediate bool) error {
	m, exists := e.world[pos]
	if !exists {
		return fmt.Errorf("показ %v: %w", pos, ErrNotFound)
	}

	e.shown[pos] = m
	if immediate {
		e.queue.Cancel(pos)
		e.materialize(pos, m)
		return nil
	}

	e.queue.Enqueue(Op{Kind: OpMaterialize, Pos: pos, Material: m})
	return nil
}

// HideBlock убирает блок из множества показанных. Блок остаётся в мире.
// Возвращает ErrNotFound, если блок не показан.
func (e *Engine) HideBlock(pos vec.Vec3, immediate bool) error {
	if _, shown := e.shown[pos]; !shown {
		return fmt.Errorf("скрытие %v: %w", pos, ErrNotFound)
	}

	delete(e.shown, pos)
	if immediate {
		e.queue.Cancel(pos)
		e.release(pos)
		return nil
	}

	e.queue.Enqueue(Op{Kind: OpRelease, Pos: pos})
	return nil
}
