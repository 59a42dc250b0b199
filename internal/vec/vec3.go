package vec

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SectorSize задаёт ширину сектора в блоках по осям X и Z
const SectorSize = 150

// Vec3 представляет трехмерный вектор с целочисленными координатами (координата блока)
type Vec3 struct {
	X int
	Y int
	Z int
}

// Faces содержит шесть единичных направлений граней куба:
// верх, низ, лево, право, перед, зад. Диагоналей нет.
var Faces = [6]Vec3{
	{X: 0, Y: 1, Z: 0},
	{X: 0, Y: -1, Z: 0},
	{X: -1, Y: 0, Z: 0},
	{X: 1, Y: 0, Z: 0},
	{X: 0, Y: 0, Z: 1},
	{X: 0, Y: 0, Z: -1},
}

// Normalize возвращает координату блока, содержащего непрерывную позицию.
// Каждая компонента округляется к ближайшему целому (половина - от нуля).
func Normalize(p mgl64.Vec3) Vec3 {
	return Vec3{
		X: int(math.Round(p[0])),
		Y: int(math.Round(p[1])),
		Z: int(math.Round(p[2])),
	}
}

// Sectorize возвращает сектор, в котором находится непрерывная позиция
func Sectorize(p mgl64.Vec3) Vec3 {
	return Normalize(p).Sector()
}

// Sector возвращает сектор блока. Y всегда 0: секторы не делятся по высоте.
func (v Vec3) Sector() Vec3 {
	return Vec3{
		X: floorDiv(v.X, SectorSize),
		Y: 0,
		Z: floorDiv(v.Z, SectorSize),
	}
}

// Float возвращает центр блока как непрерывную позицию
func (v Vec3) Float() mgl64.Vec3 {
	return mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)}
}

// Neighbors возвращает шесть соседей по граням в порядке Faces
func (v Vec3) Neighbors() [6]Vec3 {
	var out [6]Vec3
	for i, f := range Faces {
		out[i] = v.Add(f)
	}
	return out
}

// DistanceSq возвращает квадрат евклидова расстояния до другого вектора
func (v Vec3) DistanceSq(other Vec3) int {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// floorDiv делит с округлением вниз, в том числе для отрицательных координат
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
