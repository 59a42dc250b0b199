package world

import (
	"fmt"

	"github.com/annel0/blockworld/internal/util"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// BlockSink принимает блоки без работы с видимостью (реализуется Engine.LoadBlock)
type BlockSink interface {
	LoadBlock(pos vec.Vec3, m block.Material)
}

// Generator заполняет пустой мир начальными блоками
type Generator interface {
	Generate(sink BlockSink) int
}

// RowsGenerator выкладывает три линии из всех простых материалов палитры:
// вдоль X на y=0,z=0; вдоль Y на x=0,z=1; вдоль Z на x=0,y=2.
type RowsGenerator struct {
	Materials []block.Material
}

// NewRowsGenerator берёт первые PaletteSize материалов палитры
func NewRowsGenerator(p *block.Palette) *RowsGenerator {
	mats := p.Materials()
	if len(mats) > block.PaletteSize {
		mats = mats[:block.PaletteSize]
	}
	return &RowsGenerator{Materials: mats}
}

// Generate возвращает число уложенных блоков
func (g *RowsGenerator) Generate(sink BlockSink) int {
	n := 0
	for i, m := range g.Materials {
		sink.LoadBlock(vec.Vec3{X: i, Y: 0, Z: 0}, m)
		n++
	}
	for i, m := range g.Materials {
		sink.LoadBlock(vec.Vec3{X: 0, Y: i, Z: 1}, m)
		n++
	}
	for i, m := range g.Materials {
		sink.LoadBlock(vec.Vec3{X: 0, Y: 2, Z: i}, m)
		n++
	}
	return n
}

// Константы рельефа
const (
	sandLevel  = 0.35 // Ниже - песчаный берег
	stoneLevel = 0.75 // Выше - каменные вершины
)

// TerrainGenerator строит рельеф по карте высот из шума в квадрате
// [-Radius, Radius] по X и Z. Столбец заполняется от y=0 до высоты.
type TerrainGenerator struct {
	Noise     util.NoiseSource
	Radius    int     // Полуразмер участка в блоках
	MaxHeight int     // Максимальная высота столбца
	Scale     float64 // Масштаб шума (сглаженность ландшафта)
	Octaves   int

	Top, Filler, Sand, Stone block.Material
}

// NewTerrainGenerator создаёт генератор рельефа на шуме kind ("perlin" или "simplex")
func NewTerrainGenerator(kind string, seed int64, radius, maxHeight int, p *block.Palette) (*TerrainGenerator, error) {
	noise, err := util.NewNoise(kind, seed)
	if err != nil {
		return nil, fmt.Errorf("генератор рельефа: %w", err)
	}
	if maxHeight < 1 {
		maxHeight = 1
	}

	mats := make(map[block.BlockID]block.Material, 4)
	for _, id := range []block.BlockID{block.GrassBlockID, block.SandBlockID, block.BrickBlockID, block.StoneBlockID} {
		m, ok := p.Get(id)
		if !ok {
			return nil, fmt.Errorf("генератор рельефа: в палитре нет материала %d", id)
		}
		mats[id] = m
	}

	return &TerrainGenerator{
		Noise:     noise,
		Radius:    radius,
		MaxHeight: maxHeight,
		Scale:     0.05,
		Octaves:   3,
		Top:       mats[block.GrassBlockID],
		Filler:    mats[block.BrickBlockID],
		Sand:      mats[block.SandBlockID],
		Stone:     mats[block.StoneBlockID],
	}, nil
}

// Height возвращает высоту столбца (x, z), от 1 до MaxHeight
func (g *TerrainGenerator) Height(x, z int) int {
	v := util.FractalNoise2D(g.Noise, float64(x)*g.Scale, float64(z)*g.Scale, g.Octaves, 2.0, 0.5)
	h := 1 + int(v*float64(g.MaxHeight-1))
	if h > g.MaxHeight {
		h = g.MaxHeight
	}
	return h
}

// Generate возвращает число уложенных блоков
func (g *TerrainGenerator) Generate(sink BlockSink) int {
	n := 0
	for x := -g.Radius; x <= g.Radius; x++ {
		for z := -g.Radius; z <= g.Radius; z++ {
			h := g.Height(x, z)
			level := float64(h) / float64(g.MaxHeight)

			for y := 0; y < h; y++ {
				m := g.Filler
				if y == h-1 {
					switch {
					case level < sandLevel:
						m = g.Sand
					case level > stoneLevel:
						m = g.Stone
					default:
						m = g.Top
					}
				}
				sink.LoadBlock(vec.Vec3{X: x, Y: y, Z: z}, m)
				n++
			}
		}
	}
	return n
}
