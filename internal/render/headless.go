package render

import (
	"sync"

	"github.com/annel0/blockworld/internal/world"
)

// Headless - рендерер без вывода: хранит только учёт мешей.
// Используется в песочнице без окна и в тестах.
type Headless struct {
	mu        sync.Mutex
	next      world.MeshHandle
	live      map[world.MeshHandle]int // дескриптор -> число вершин
	vertices  int
	created   uint64
	destroyed uint64
}

// NewHeadless создаёт пустой рендерер
func NewHeadless() *Headless {
	return &Headless{live: make(map[world.MeshHandle]int)}
}

// CreateMesh регистрирует меш и возвращает его дескриптор
func (h *Headless) CreateMesh(vertices, texCoords []float32) world.MeshHandle {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	n := len(vertices) / 3
	h.live[h.next] = n
	h.vertices += n
	h.created++
	return h.next
}

// DestroyMesh освобождает меш. Неизвестный дескриптор игнорируется.
func (h *Headless) DestroyMesh(handle world.MeshHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, ok := h.live[handle]
	if !ok {
		return
	}
	delete(h.live, handle)
	h.vertices -= n
	h.destroyed++
}

// Stats - снимок учёта рендерера
type Stats struct {
	LiveMeshes int    `json:"live_meshes"`
	Vertices   int    `json:"vertices"`
	Created    uint64 `json:"created"`
	Destroyed  uint64 `json:"destroyed"`
}

// Stats возвращает текущий учёт
func (h *Headless) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return Stats{
		LiveMeshes: len(h.live),
		Vertices:   h.vertices,
		Created:    h.created,
		Destroyed:  h.destroyed,
	}
}
