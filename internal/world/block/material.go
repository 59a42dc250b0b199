package block

// BlockID представляет идентификатор материала блока
type BlockID uint16

// AtlasTiles - количество тайлов по ширине атласа текстур по умолчанию
const AtlasTiles = 200

// Индексы граней куба. Порядок совпадает с порядком вершин в мешe.
const (
	FaceTop = iota
	FaceBottom
	FaceLeft
	FaceRight
	FaceFront
	FaceBack
)

// Tile задаёт положение тайла в атласе (столбец, строка)
type Tile struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// TexRect - прямоугольник текстурных координат одной грани
type TexRect struct {
	U0 float32 `json:"u0"`
	V0 float32 `json:"v0"`
	U1 float32 `json:"u1"`
	V1 float32 `json:"v1"`
}

// Coords возвращает четыре угла прямоугольника (8 значений) против часовой стрелки
func (r TexRect) Coords() [8]float32 {
	return [8]float32{
		r.U0, r.V0,
		r.U1, r.V0,
		r.U1, r.V1,
		r.U0, r.V1,
	}
}

// Material - непрозрачный для движка материал блока: идентификатор и
// текстурные прямоугольники шести граней. Сравнивается по значению.
type Material struct {
	ID    BlockID    `json:"id"`
	Name  string     `json:"name,omitempty"`
	Faces [6]TexRect `json:"faces"`
}

// TexCoord возвращает прямоугольник тайла в атласе шириной atlasTiles тайлов
func TexCoord(t Tile, atlasTiles int) TexRect {
	if atlasTiles <= 0 {
		atlasTiles = AtlasTiles
	}
	m := float32(1.0) / float32(atlasTiles)
	dx := float32(t.Col) * m
	dy := float32(t.Row) * m
	return TexRect{U0: dx, V0: dy, U1: dx + m, V1: dy + m}
}

// NewMaterial собирает материал из тайлов верха, низа и боковых граней.
// Четыре боковые грани используют один и тот же тайл.
func NewMaterial(id BlockID, name string, top, bottom, side Tile, atlasTiles int) Material {
	s := TexCoord(side, atlasTiles)
	return Material{
		ID:   id,
		Name: name,
		Faces: [6]TexRect{
			FaceTop:    TexCoord(top, atlasTiles),
			FaceBottom: TexCoord(bottom, atlasTiles),
			FaceLeft:   s,
			FaceRight:  s,
			FaceFront:  s,
			FaceBack:   s,
		},
	}
}

// SimpleMaterial - материал с одним тайлом (column, 0) на всех гранях
func SimpleMaterial(id BlockID, column int) Material {
	t := Tile{Col: column, Row: 0}
	return NewMaterial(id, "", t, t, t, AtlasTiles)
}

// TexCoords возвращает текстурные координаты для 24 вершин куба (48 значений)
func (m Material) TexCoords() []float32 {
	out := make([]float32, 0, 48)
	for _, f := range m.Faces {
		c := f.Coords()
		out = append(out, c[:]...)
	}
	return out
}
