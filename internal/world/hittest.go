package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/blockworld/internal/vec"
)

// hitTestSubsteps - шагов луча на один блок
const hitTestSubsteps = 8

// Hit - результат трассировки луча
type Hit struct {
	Block       vec.Vec3 // Первый занятый блок на луче
	Previous    vec.Vec3 // Клетка перед ним (куда можно ставить блок)
	HasPrevious bool     // false, если луч начался внутри блока
}

// HitTest идёт вдоль направления шагами по 1/8 блока, не больше
// maxDistance*8 шагов, и возвращает первый занятый блок, в который луч
// вошёл, вместе с предыдущей клеткой.
func (e *Engine) HitTest(origin, direction mgl64.Vec3, maxDistance int) (Hit, bool) {
	step, ok := rayStep(direction)
	if !ok {
		return Hit{}, false
	}

	p := origin
	var previous vec.Vec3
	hasPrevious := false
	for i := 0; i < maxDistance*hitTestSubsteps; i++ {
		key := vec.Normalize(p)
		if (!hasPrevious || key != previous) && e.HasBlock(key) {
			return Hit{Block: key, Previous: previous, HasPrevious: hasPrevious}, true
		}
		previous, hasPrevious = key, true
		p = p.Add(step)
	}
	return Hit{}, false
}

// EmptyCellAt шагает так же, как HitTest, но проверяет только клетку на
// последнем шаге и возвращает её, если она свободна.
func (e *Engine) EmptyCellAt(origin, direction mgl64.Vec3, maxDistance int) (vec.Vec3, bool) {
	step, ok := rayStep(direction)
	total := maxDistance * hitTestSubsteps
	if !ok || total <= 0 {
		return vec.Vec3{}, false
	}

	// Последний шаг оценивает позицию после total-1 приращений
	p := origin
	for i := 1; i < total; i++ {
		p = p.Add(step)
	}
	key := vec.Normalize(p)
	if e.HasBlock(key) {
		return vec.Vec3{}, false
	}
	return key, true
}

// rayStep возвращает приращение луча длиной 1/8 блока
func rayStep(direction mgl64.Vec3) (mgl64.Vec3, bool) {
	l := direction.Len()
	if l == 0 {
		return mgl64.Vec3{}, false
	}
	return direction.Mul(1 / (l * hitTestSubsteps)), true
}
