package util

import (
	"fmt"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// NoiseSource возвращает двумерный шум в диапазоне от 0 до 1
type NoiseSource interface {
	Noise2D(x, y float64) float64
}

// PerlinNoise - шум Перлина (go-perlin)
type PerlinNoise struct {
	p *perlin.Perlin
}

// NewPerlinNoise создаёт генератор шума Перлина с указанным сидом
func NewPerlinNoise(seed int64) *PerlinNoise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &PerlinNoise{p: perlin.NewPerlin(alpha, beta, n, seed)}
}

// Noise2D возвращает значение шума Перлина для указанных координат (от 0 до 1)
func (pn *PerlinNoise) Noise2D(x, y float64) float64 {
	// Значение шума от -1 до 1
	return clamp01((pn.p.Noise2D(x, y) + 1.0) / 2.0)
}

// SimplexNoise - шум OpenSimplex
type SimplexNoise struct {
	n opensimplex.Noise
}

// NewSimplexNoise создаёт генератор шума OpenSimplex
func NewSimplexNoise(seed int64) *SimplexNoise {
	return &SimplexNoise{n: opensimplex.New(seed)}
}

// Noise2D возвращает значение шума для указанных координат (от 0 до 1)
func (sn *SimplexNoise) Noise2D(x, y float64) float64 {
	return clamp01((sn.n.Eval2(x, y) + 1.0) / 2.0)
}

// NewNoise выбирает генератор по имени: "perlin" или "simplex"
func NewNoise(kind string, seed int64) (NoiseSource, error) {
	switch kind {
	case "", "perlin":
		return NewPerlinNoise(seed), nil
	case "simplex":
		return NewSimplexNoise(seed), nil
	default:
		return nil, fmt.Errorf("неизвестный тип шума: %s", kind)
	}
}

// FractalNoise2D складывает несколько октав шума. Результат от 0 до 1.
func FractalNoise2D(src NoiseSource, x, y float64, octaves int, lacunarity, persistence float64) float64 {
	if octaves <= 0 {
		octaves = 1
	}

	sum := 0.0
	norm := 0.0
	amplitude := 1.0
	for i := 0; i < octaves; i++ {
		sum += src.Noise2D(x, y) * amplitude
		norm += amplitude
		x *= lacunarity
		y *= lacunarity
		amplitude *= persistence
	}
	return sum / norm
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
