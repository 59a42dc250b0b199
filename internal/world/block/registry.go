package block

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/segmentio/encoding/json"
)

// Константы ID блоков
const (
	// Простые материалы палитры: ID совпадает со столбцом атласа (0..99)
	PaletteSize = 100

	// Классические материалы (начиная с 200)
	GrassBlockID BlockID = 200 // Трава
	SandBlockID  BlockID = 201 // Песок
	BrickBlockID BlockID = 202 // Кирпич
	StoneBlockID BlockID = 203 // Камень
)

// classicAtlasTiles - атлас классических материалов 4x4 тайла
const classicAtlasTiles = 4

// Palette хранит материалы, доступные для установки, в порядке регистрации
type Palette struct {
	materials []Material
	byID      map[BlockID]int
}

// NewPalette создаёт пустую палитру
func NewPalette() *Palette {
	return &Palette{byID: make(map[BlockID]int)}
}

// DefaultPalette возвращает палитру из 100 простых материалов и четырёх классических
func DefaultPalette() *Palette {
	p := NewPalette()
	for i := 0; i < PaletteSize; i++ {
		p.Register(SimpleMaterial(BlockID(i), i))
	}
	p.Register(NewMaterial(GrassBlockID, "grass", Tile{1, 0}, Tile{0, 1}, Tile{0, 0}, classicAtlasTiles))
	p.Register(NewMaterial(SandBlockID, "sand", Tile{1, 1}, Tile{1, 1}, Tile{1, 1}, classicAtlasTiles))
	p.Register(NewMaterial(BrickBlockID, "brick", Tile{2, 0}, Tile{2, 0}, Tile{2, 0}, classicAtlasTiles))
	p.Register(NewMaterial(StoneBlockID, "stone", Tile{2, 1}, Tile{2, 1}, Tile{2, 1}, classicAtlasTiles))
	return p
}

// Register добавляет материал в палитру. Повторная регистрация ID заменяет материал.
func (p *Palette) Register(m Material) {
	if idx, exists := p.byID[m.ID]; exists {
		p.materials[idx] = m
		return
	}
	p.byID[m.ID] = len(p.materials)
	p.materials = append(p.materials, m)
}

// Get возвращает материал по ID
func (p *Palette) Get(id BlockID) (Material, bool) {
	idx, exists := p.byID[id]
	if !exists {
		return Material{}, false
	}
	return p.materials[idx], true
}

// MustGet возвращает материал по ID или паникует
func (p *Palette) MustGet(id BlockID) Material {
	m, ok := p.Get(id)
	if !ok {
		panic(fmt.Sprintf("материал %d не зарегистрирован", id))
	}
	return m
}

// IsValidBlockID проверяет, зарегистрирован ли ID
func (p *Palette) IsValidBlockID(id BlockID) bool {
	_, exists := p.byID[id]
	return exists
}

// Materials возвращает копию списка материалов в порядке регистрации
func (p *Palette) Materials() []Material {
	out := make([]Material, len(p.materials))
	copy(out, p.materials)
	return out
}

// Len возвращает количество материалов
func (p *Palette) Len() int {
	return len(p.materials)
}

// materialFile описывает материал в JSON-файле
type materialFile struct {
	ID         BlockID `json:"id"`
	Name       string  `json:"name"`
	Top        Tile    `json:"top"`
	Bottom     Tile    `json:"bottom"`
	Side       Tile    `json:"side"`
	AtlasTiles int     `json:"atlas_tiles"`
}

// LoadJSONMaterials загружает описания материалов из *.json файлов каталога.
// Каждый файл содержит массив материалов. Файлы читаются в алфавитном порядке.
func (p *Palette) LoadJSONMaterials(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	loaded := 0
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return loaded, fmt.Errorf("ошибка чтения %s: %w", name, err)
		}

		var files []materialFile
		if err := json.Unmarshal(data, &files); err != nil {
			return loaded, fmt.Errorf("ошибка разбора %s: %w", name, err)
		}

		for _, mf := range files {
			p.Register(NewMaterial(mf.ID, mf.Name, mf.Top, mf.Bottom, mf.Side, mf.AtlasTiles))
			loaded++
		}
	}

	return loaded, nil
}
