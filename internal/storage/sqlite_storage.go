package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite"

	"github.com/annel0/blockworld/internal/world/block"
)

// SQLiteWorldStorage хранит мир в SQLite: таблицы meta, materials и blocks.
// Сохранение заменяет содержимое таблиц в одной транзакции.
type SQLiteWorldStorage struct {
	db      *sql.DB
	worldID uuid.UUID
}

// OpenSQLiteWorldStorage открывает базу по пути path, создавая схему при необходимости
func OpenSQLiteWorldStorage(path string) (*SQLiteWorldStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("пустой путь к базе")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteWorldStorage{db: db, worldID: uuid.New()}
	if h, err := s.readHeader(context.Background()); err == nil {
		s.worldID = h.WorldID
	}
	return s, nil
}

func initSQLite(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS materials (
			idx INTEGER PRIMARY KEY,
			json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS blocks (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			material INTEGER NOT NULL,
			PRIMARY KEY (x, y, z)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ошибка инициализации SQLite: %w", err)
		}
	}
	return nil
}

// HasSave проверяет наличие заголовка
func (s *SQLiteWorldStorage) HasSave(ctx context.Context) bool {
	_, err := s.readHeader(ctx)
	return err == nil
}

// SaveWorld заменяет сохранённый мир содержимым src
func (s *SQLiteWorldStorage) SaveWorld(ctx context.Context, src BlockSource) (n int, err error) {
	ctx, span := tracer.Start(ctx, "sqlite.SaveWorld")
	defer func() { endSpan(span, err) }()

	snap := BuildSnapshot(s.worldID, src)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM meta", "DELETE FROM materials", "DELETE FROM blocks"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("ошибка очистки: %w", err)
		}
	}

	matStmt, err := tx.PrepareContext(ctx, "INSERT INTO materials (idx, json) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer matStmt.Close()

	for i, m := range snap.Materials {
		data, err := json.Marshal(m)
		if err != nil {
			return 0, fmt.Errorf("ошибка сериализации материала: %w", err)
		}
		if _, err := matStmt.ExecContext(ctx, i, string(data)); err != nil {
			return 0, fmt.Errorf("ошибка записи материала %d: %w", i, err)
		}
	}

	blkStmt, err := tx.PrepareContext(ctx, "INSERT INTO blocks (x, y, z, material) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer blkStmt.Close()

	for _, b := range snap.Blocks {
		if _, err := blkStmt.ExecContext(ctx, b.X, b.Y, b.Z, b.M); err != nil {
			return 0, fmt.Errorf("ошибка записи блока (%d,%d,%d): %w", b.X, b.Y, b.Z, err)
		}
	}

	header, err := json.Marshal(snap.Header)
	if err != nil {
		return 0, fmt.Errorf("ошибка сериализации заголовка: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES ('header', ?)", string(header)); err != nil {
		return 0, fmt.Errorf("ошибка записи заголовка: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	span.SetAttributes(attribute.Int("blocks", len(snap.Blocks)))
	return len(snap.Blocks), nil
}

// LoadWorld воспроизводит сохранённые блоки в sink
func (s *SQLiteWorldStorage) LoadWorld(ctx context.Context, sink BlockSink) (n int, err error) {
	ctx, span := tracer.Start(ctx, "sqlite.LoadWorld")
	defer func() { endSpan(span, err) }()

	header, err := s.readHeader(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoSave
	}
	if err != nil {
		return 0, err
	}

	snap := Snapshot{Header: header, Blocks: make([]BlockRecord, 0, header.Blocks)}

	rows, err := s.db.QueryContext(ctx, "SELECT json FROM materials ORDER BY idx")
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения материалов: %w", err)
	}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			rows.Close()
			return 0, err
		}
		var m block.Material
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			rows.Close()
			return 0, fmt.Errorf("ошибка разбора материала: %w", err)
		}
		snap.Materials = append(snap.Materials, m)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}

	rows, err = s.db.QueryContext(ctx, "SELECT x, y, z, material FROM blocks")
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения блоков: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b BlockRecord
		if err := rows.Scan(&b.X, &b.Y, &b.Z, &b.M); err != nil {
			return 0, err
		}
		snap.Blocks = append(snap.Blocks, b)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	s.worldID = header.WorldID
	span.SetAttributes(attribute.Int("blocks", len(snap.Blocks)))
	return snap.Apply(sink)
}

// Close закрывает базу
func (s *SQLiteWorldStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteWorldStorage) readHeader(ctx context.Context) (Header, error) {
	var h Header
	var data string
	if err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'header'").Scan(&data); err != nil {
		return h, err
	}
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return h, fmt.Errorf("ошибка разбора заголовка: %w", err)
	}
	return h, nil
}
