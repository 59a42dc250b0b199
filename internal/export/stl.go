package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// halfSize - полуразмер куба блока в единицах мира
const halfSize = 0.5

// World - то, что нужно экспорту от мира
type World interface {
	ForEachBlock(fn func(pos vec.Vec3, m block.Material) bool)
	HasBlock(pos vec.Vec3) bool
}

// faceTangents задаёт для каждой грани из vec.Faces пару касательных (u, v),
// у которых u×v совпадает с внешней нормалью. Тогда обход p0→p1→p2 идёт
// против часовой стрелки, если смотреть снаружи.
var faceTangents = [6][2]mgl64.Vec3{
	{{0, 0, 1}, {1, 0, 0}}, // +y
	{{1, 0, 0}, {0, 0, 1}}, // -y
	{{0, 0, 1}, {0, 1, 0}}, // -x
	{{0, 1, 0}, {0, 0, 1}}, // +x
	{{1, 0, 0}, {0, 1, 0}}, // +z
	{{0, 1, 0}, {1, 0, 0}}, // -z
}

// WriteSTL пишет ASCII STL из открытых граней всех блоков мира: грань
// попадает в файл, только если соседняя клетка пуста. Каждая грань даёт
// два треугольника. Возвращает число треугольников.
func WriteSTL(w io.Writer, world World, name string) (int, error) {
	var positions []vec.Vec3
	world.ForEachBlock(func(pos vec.Vec3, _ block.Material) bool {
		positions = append(positions, pos)
		return true
	})
	// Стабильный порядок, чтобы одинаковые миры давали одинаковые файлы
	sort.Slice(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "solid %s\n", name)

	facets := 0
	for _, pos := range positions {
		center := pos.Float()
		for i, face := range vec.Faces {
			if world.HasBlock(pos.Add(face)) {
				continue
			}
			normal := face.Float()
			u := faceTangents[i][0].Mul(halfSize)
			v := faceTangents[i][1].Mul(halfSize)
			c := center.Add(normal.Mul(halfSize))

			p0 := c.Sub(u).Sub(v)
			p1 := c.Add(u).Sub(v)
			p2 := c.Add(u).Add(v)
			p3 := c.Sub(u).Add(v)

			writeFacet(bw, normal, p0, p1, p2)
			writeFacet(bw, normal, p0, p2, p3)
			facets += 2
		}
	}

	fmt.Fprintf(bw, "endsolid %s\n", name)
	if err := bw.Flush(); err != nil {
		return facets, fmt.Errorf("ошибка записи STL: %w", err)
	}
	return facets, nil
}

func writeFacet(w *bufio.Writer, n, a, b, c mgl64.Vec3) {
	fmt.Fprintf(w, "  facet normal %e %e %e\n", n[0], n[1], n[2])
	fmt.Fprintln(w, "    outer loop")
	for _, p := range [3]mgl64.Vec3{a, b, c} {
		fmt.Fprintf(w, "      vertex %e %e %e\n", p[0], p[1], p[2])
	}
	fmt.Fprintln(w, "    endloop")
	fmt.Fprintln(w, "  endfacet")
}

// WriteSTLFile экспортирует мир в файл path
func WriteSTLFile(path string, world World) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания %s: %w", path, err)
	}

	name := filepath.Base(path)
	name = name[:len(name)-len(filepath.Ext(name))]
	n, err := WriteSTL(f, world, name)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
