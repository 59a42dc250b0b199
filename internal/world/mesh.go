package world

// MeshHandle - непрозрачный дескриптор меша, выданный рендерером
type MeshHandle uint64

// Renderer создаёт и уничтожает меши блоков. Движок не рисует сам:
// он только владеет дескрипторами и освобождает их при скрытии блока.
// Рендерер вызывается только из потока, который обрабатывает очередь.
type Renderer interface {
	// CreateMesh принимает 72 координаты вершин (24 вершины) и 48 текстурных координат
	CreateMesh(vertices, texCoords []float32) MeshHandle
	DestroyMesh(h MeshHandle)
}

// nopRenderer используется, если рендерер не передан
type nopRenderer struct{ next MeshHandle }

func (r *nopRenderer) CreateMesh(vertices, texCoords []float32) MeshHandle {
	r.next++
	return r.next
}

func (r *nopRenderer) DestroyMesh(MeshHandle) {}

// CubeVertices возвращает вершины куба с центром (x, y, z) и полуразмером n.
// Грани идут в порядке верх, низ, лево, право, перед, зад; по 4 вершины на грань.
func CubeVertices(x, y, z, n float64) []float32 {
	v := []float64{
		x - n, y + n, z - n, x - n, y + n, z + n, x + n, y + n, z + n, x + n, y + n, z - n, // верх
		x - n, y - n, z - n, x + n, y - n, z - n, x + n, y - n, z + n, x - n, y - n, z + n, // низ
		x - n, y - n, z - n, x - n, y - n, z + n, x - n, y + n, z + n, x - n, y + n, z - n, // лево
		x + n, y - n, z + n, x + n, y - n, z - n, x + n, y + n, z - n, x + n, y + n, z + n, // право
		x - n, y - n, z + n, x + n, y - n, z + n, x + n, y + n, z + n, x - n, y + n, z + n, // перед
		x + n, y - n, z - n, x - n, y - n, z - n, x - n, y + n, z - n, x + n, y + n, z - n, // зад
	}

	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
