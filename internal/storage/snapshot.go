package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// SnapshotVersion - текущая версия формата сохранения
const SnapshotVersion = 1

// ErrNoSave возвращается при загрузке, если сохранения нет
var ErrNoSave = errors.New("сохранение не найдено")

var tracer = otel.Tracer("blockworld/storage")

// BlockSink принимает блоки при загрузке мира
type BlockSink interface {
	LoadBlock(pos vec.Vec3, m block.Material)
}

// BlockSource отдаёт блоки при сохранении мира
type BlockSource interface {
	ForEachBlock(fn func(pos vec.Vec3, m block.Material) bool)
	BlockCount() int
}

// WorldPersistence сохраняет и загружает мир целиком.
// Формат хранения зависит от реализации.
type WorldPersistence interface {
	// HasSave сообщает, есть ли сохранённый мир
	HasSave(ctx context.Context) bool
	// LoadWorld воспроизводит сохранённые блоки в sink. ErrNoSave, если сохранения нет.
	LoadWorld(ctx context.Context, sink BlockSink) (int, error)
	// SaveWorld заменяет сохранение текущим содержимым src
	SaveWorld(ctx context.Context, src BlockSource) (int, error)
	Close() error
}

// Header - заголовок сохранения
type Header struct {
	Version int       `json:"version"`
	WorldID uuid.UUID `json:"world_id"`
	SavedAt time.Time `json:"saved_at"`
	Blocks  int       `json:"blocks"`
}

// BlockRecord - блок в сохранении. M - индекс в таблице материалов.
type BlockRecord struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
	M int `json:"m"`
}

// Snapshot - мир в виде таблицы уникальных материалов и списка блоков.
// Материалы хранятся целиком, так как движок сравнивает их по значению.
type Snapshot struct {
	Header    Header           `json:"header"`
	Materials []block.Material `json:"materials"`
	Blocks    []BlockRecord    `json:"blocks"`
}

// BuildSnapshot собирает снимок мира
func BuildSnapshot(worldID uuid.UUID, src BlockSource) Snapshot {
	snap := Snapshot{
		Header: Header{
			Version: SnapshotVersion,
			WorldID: worldID,
			SavedAt: time.Now().UTC(),
		},
		Blocks: make([]BlockRecord, 0, src.BlockCount()),
	}

	index := make(map[block.Material]int)
	src.ForEachBlock(func(pos vec.Vec3, m block.Material) bool {
		idx, ok := index[m]
		if !ok {
			idx = len(snap.Materials)
			index[m] = idx
			snap.Materials = append(snap.Materials, m)
		}
		snap.Blocks = append(snap.Blocks, BlockRecord{X: pos.X, Y: pos.Y, Z: pos.Z, M: idx})
		return true
	})
	snap.Header.Blocks = len(snap.Blocks)
	return snap
}

// Apply воспроизводит блоки снимка в sink
func (s Snapshot) Apply(sink BlockSink) (int, error) {
	if s.Header.Version != SnapshotVersion {
		return 0, fmt.Errorf("неподдерживаемая версия сохранения: %d", s.Header.Version)
	}
	for i, b := range s.Blocks {
		if b.M < 0 || b.M >= len(s.Materials) {
			return i, fmt.Errorf("блок %d: неверный индекс материала %d", i, b.M)
		}
		sink.LoadBlock(vec.Vec3{X: b.X, Y: b.Y, Z: b.Z}, s.Materials[b.M])
	}
	return len(s.Blocks), nil
}

// endSpan завершает span, отмечая ошибку
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
