package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/world/block"
)

// Ключи BadgerDB. Материалы и блоки лежат под префиксом поколения
// "g<N>:", текущее поколение записано в generationKey.
const (
	metaKey        = "meta"
	generationKey  = "gen"
	materialPrefix = "mat:"
	blockPrefix    = "blk:"
)

// WorldStorage хранит мир в BadgerDB: заголовок, таблицу материалов и
// по одному ключу на блок.
//
// Каждое сохранение пишется в новое поколение ключей. Заголовок и номер
// поколения переключаются одной транзакцией после записи данных, поэтому
// прерванное сохранение не портит предыдущее.
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	worldID uuid.UUID
	mutex   sync.RWMutex
	isReady bool
}

// NewWorldStorage открывает (или создаёт) хранилище в dataPath/world
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	ws := &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		worldID: uuid.New(),
		isReady: true,
	}

	// Сохраняем идентификатор мира между сохранениями
	if h, err := ws.readHeader(); err == nil {
		ws.worldID = h.WorldID
	}

	return ws, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	return ws.db.Close()
}

// HasSave проверяет наличие заголовка сохранения
func (ws *WorldStorage) HasSave(ctx context.Context) bool {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return false
	}
	_, err := ws.readHeader()
	return err == nil
}

// SaveWorld заменяет сохранённый мир содержимым src
func (ws *WorldStorage) SaveWorld(ctx context.Context, src BlockSource) (n int, err error) {
	_, span := tracer.Start(ctx, "badger.SaveWorld")
	defer func() { endSpan(span, err) }()

	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return 0, fmt.Errorf("хранилище не готово")
	}

	snap := BuildSnapshot(ws.worldID, src)

	prev, err := ws.readGeneration()
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения поколения: %w", err)
	}
	next := prev + 1

	// Остатки прерванного сохранения с тем же номером
	if err := ws.db.DropPrefix(generationPrefix(next)); err != nil {
		return 0, fmt.Errorf("ошибка очистки поколения %d: %w", next, err)
	}

	if err := ws.writeGeneration(next, snap); err != nil {
		// Недописанное поколение не видно загрузке, убираем его
		if dropErr := ws.db.DropPrefix(generationPrefix(next)); dropErr != nil {
			logging.Warn("BadgerDB: не удалось удалить недописанное поколение %d: %v", next, dropErr)
		}
		return 0, err
	}

	// Переключаем заголовок и поколение одной транзакцией
	header, err := json.Marshal(snap.Header)
	if err != nil {
		return 0, fmt.Errorf("ошибка сериализации заголовка: %w", err)
	}
	err = ws.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(metaKey), header); err != nil {
			return err
		}
		return txn.Set([]byte(generationKey), []byte(strconv.FormatUint(next, 10)))
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка записи заголовка: %w", err)
	}

	if prev > 0 {
		if err := ws.db.DropPrefix(generationPrefix(prev)); err != nil {
			logging.Warn("BadgerDB: не удалось удалить поколение %d: %v", prev, err)
		}
	}

	span.SetAttributes(
		attribute.Int("blocks", len(snap.Blocks)),
		attribute.Int("materials", len(snap.Materials)),
	)
	logging.Debug("BadgerDB: сохранено %d блоков, %d материалов", len(snap.Blocks), len(snap.Materials))
	return len(snap.Blocks), nil
}

// writeGeneration пишет материалы и блоки снимка под префиксом поколения gen
func (ws *WorldStorage) writeGeneration(gen uint64, snap Snapshot) error {
	wb := ws.db.NewWriteBatch()
	defer wb.Cancel()

	for i, m := range snap.Materials {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("ошибка сериализации материала: %w", err)
		}
		if err := wb.Set(materialKey(gen, i), data); err != nil {
			return fmt.Errorf("ошибка записи материала: %w", err)
		}
	}

	for _, b := range snap.Blocks {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("ошибка сериализации блока: %w", err)
		}
		if err := wb.Set(blockKey(gen, b), data); err != nil {
			return fmt.Errorf("ошибка записи блока: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// LoadWorld воспроизводит сохранённые блоки в sink
func (ws *WorldStorage) LoadWorld(ctx context.Context, sink BlockSink) (n int, err error) {
	_, span := tracer.Start(ctx, "badger.LoadWorld")
	defer func() { endSpan(span, err) }()

	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return 0, fmt.Errorf("хранилище не готово")
	}

	var snap Snapshot
	err = ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap.Header)
		}); err != nil {
			return fmt.Errorf("ошибка разбора заголовка: %w", err)
		}

		gen, err := generationIn(txn)
		if err != nil {
			return err
		}
		prefix := string(generationPrefix(gen))

		if err := iteratePrefix(txn, prefix+materialPrefix, func(val []byte) error {
			var m block.Material
			if err := json.Unmarshal(val, &m); err != nil {
				return err
			}
			snap.Materials = append(snap.Materials, m)
			return nil
		}); err != nil {
			return fmt.Errorf("ошибка чтения материалов: %w", err)
		}

		snap.Blocks = make([]BlockRecord, 0, snap.Header.Blocks)
		return iteratePrefix(txn, prefix+blockPrefix, func(val []byte) error {
			var b BlockRecord
			if err := json.Unmarshal(val, &b); err != nil {
				return fmt.Errorf("ошибка разбора блока: %w", err)
			}
			snap.Blocks = append(snap.Blocks, b)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, ErrNoSave
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка загрузки из BadgerDB: %w", err)
	}

	ws.worldID = snap.Header.WorldID
	span.SetAttributes(attribute.Int("blocks", len(snap.Blocks)))
	return snap.Apply(sink)
}

// WorldID возвращает идентификатор мира
func (ws *WorldStorage) WorldID() uuid.UUID {
	return ws.worldID
}

// readHeader читает заголовок сохранения
func (ws *WorldStorage) readHeader() (Header, error) {
	var h Header
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &h)
		})
	})
	return h, err
}

// readGeneration возвращает номер текущего поколения, 0 если сохранений не было
func (ws *WorldStorage) readGeneration() (uint64, error) {
	var gen uint64
	err := ws.db.View(func(txn *badger.Txn) error {
		var err error
		gen, err = generationIn(txn)
		return err
	})
	return gen, err
}

func generationIn(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte(generationKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var gen uint64
	err = item.Value(func(val []byte) error {
		gen, err = strconv.ParseUint(string(val), 10, 64)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка разбора поколения: %w", err)
	}
	return gen, nil
}

func generationPrefix(gen uint64) []byte {
	return []byte(fmt.Sprintf("g%d:", gen))
}

// iteratePrefix обходит ключи с префиксом в порядке возрастания
func iteratePrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	p := []byte(prefix)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// materialKey - ключ материала. Индекс дополнен нулями, чтобы порядок ключей совпадал с порядком индексов.
func materialKey(gen uint64, i int) []byte {
	return []byte(fmt.Sprintf("g%d:%s%08d", gen, materialPrefix, i))
}

func blockKey(gen uint64, b BlockRecord) []byte {
	return []byte(fmt.Sprintf("g%d:%s%d:%d:%d", gen, blockPrefix, b.X, b.Y, b.Z))
}
