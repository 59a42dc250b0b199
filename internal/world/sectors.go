package world

import (
	"github.com/annel0/blockworld/internal/vec"
)

// SectorsAround возвращает секторы в круге радиуса pad вокруг sector.
// Проверка по квадрату расстояния: dx²+dz² > (pad+1)² отбрасывается, y всегда 0.
func (e *Engine) SectorsAround(sector vec.Vec3) map[vec.Vec3]struct{} {
	pad := e.pad
	limit := (pad + 1) * (pad + 1)

	center := vec.Vec3{X: sector.X, Z: sector.Z}
	out := make(map[vec.Vec3]struct{}, (2*pad+1)*(2*pad+1))
	for dx := -pad; dx <= pad; dx++ {
		for dz := -pad; dz <= pad; dz++ {
			s := vec.Vec3{X: center.X + dx, Y: 0, Z: center.Z + dz}
			if s.DistanceSq(center) > limit {
				continue
			}
			out[s] = struct{}{}
		}
	}
	return out
}

// ChangeSectors переводит видимость при переходе игрока из сектора before в after.
// Секторы, вошедшие в окрестность, ставят показ открытых блоков в очередь,
// вышедшие ставят в очередь скрытие показанных. При before == nil считается
// только показ. Возвращает число вошедших и вышедших секторов.
func (e *Engine) ChangeSectors(before, after *vec.Vec3) (entered, left int) {
	var beforeSet, afterSet map[vec.Vec3]struct{}
	if before != nil {
		beforeSet = e.SectorsAround(*before)
	}
	if after != nil {
		afterSet = e.SectorsAround(*after)
	}

	for s := range afterSet {
		if _, ok := beforeSet[s]; ok {
			continue
		}
		e.ShowSector(s)
		entered++
	}
	for s := range beforeSet {
		if _, ok := afterSet[s]; ok {
			continue
		}
		e.HideSector(s)
		left++
	}

	e.syncMetrics()
	return entered, left
}

// ShowSector ставит в очередь показ всех открытых и ещё не показанных блоков сектора
func (e *Engine) ShowSector(sector vec.Vec3) {
	for pos := range e.sectors[sector] {
		if _, shown := e.shown[pos]; shown {
			continue
		}
		if e.IsExposed(pos) {
			_ = e.ShowBlock(pos, false)
		}
	}
}

// HideSector ставит в очередь скрытие всех показанных блоков сектора
func (e *Engine) HideSector(sector vec.Vec3) {
	for pos := range e.sectors[sector] {
		if _, shown := e.shown[pos]; shown {
			_ = e.HideBlock(pos, false)
		}
	}
}
