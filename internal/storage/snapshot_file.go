package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/segmentio/encoding/json"
	"go.opentelemetry.io/otel/attribute"
)

// SnapshotFileStorage хранит мир одним файлом: строка заголовка JSON и
// снимок JSON, всё сжато zstd. Запись идёт во временный файл с последующим
// переименованием.
type SnapshotFileStorage struct {
	path    string
	worldID uuid.UUID
	mu      sync.Mutex
}

// NewSnapshotFileStorage создаёт хранилище в файле path
func NewSnapshotFileStorage(path string) (*SnapshotFileStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("пустой путь к файлу сохранения")
	}
	s := &SnapshotFileStorage{path: path, worldID: uuid.New()}
	if h, err := ReadSnapshotHeader(path); err == nil {
		s.worldID = h.WorldID
	}
	return s, nil
}

// HasSave проверяет существование файла сохранения
func (s *SnapshotFileStorage) HasSave(ctx context.Context) bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// SaveWorld записывает снимок мира
func (s *SnapshotFileStorage) SaveWorld(ctx context.Context, src BlockSource) (n int, err error) {
	_, span := tracer.Start(ctx, "snapshot.SaveWorld")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := BuildSnapshot(s.worldID, src)
	if err := WriteSnapshot(s.path, snap); err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("blocks", len(snap.Blocks)))
	return len(snap.Blocks), nil
}

// LoadWorld читает снимок и воспроизводит его в sink
func (s *SnapshotFileStorage) LoadWorld(ctx context.Context, sink BlockSink) (n int, err error) {
	_, span := tracer.Start(ctx, "snapshot.LoadWorld")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := ReadSnapshot(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNoSave
	}
	if err != nil {
		return 0, err
	}

	s.worldID = snap.Header.WorldID
	span.SetAttributes(attribute.Int("blocks", len(snap.Blocks)))
	return snap.Apply(sink)
}

// Close ничего не делает: файл открывается только на время операции
func (s *SnapshotFileStorage) Close() error { return nil }

// WriteSnapshot атомарно записывает снимок в path
func WriteSnapshot(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := writeSnapshotFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("ошибка замены файла сохранения: %w", err)
	}
	return nil
}

func writeSnapshotFile(path string, snap Snapshot) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return fmt.Errorf("ошибка сериализации заголовка: %w", err)
	}
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}

	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("ошибка кодирования снимка: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("ошибка сжатия: %w", err)
	}
	return f.Sync()
}

// ReadSnapshot читает снимок из path
func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Строку заголовка пропускаем: заголовок есть и в самом снимке
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("ошибка чтения заголовка: %w", err)
	}

	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("ошибка декодирования снимка: %w", err)
	}
	return snap, nil
}

// ReadSnapshotHeader читает только строку заголовка
func ReadSnapshotHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("ошибка чтения заголовка: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("ошибка разбора заголовка: %w", err)
	}
	return h, nil
}
