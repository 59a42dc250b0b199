package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	_ "github.com/go-sql-driver/mysql"
)

// MariaPositionRepo реализует PositionRepo для базы данных MariaDB/MySQL.
// Использует таблицу player_positions для хранения позиций игроков.
type MariaPositionRepo struct {
	db *sql.DB
}

// NewMariaPositionRepo создает новый репозиторий позиций для MariaDB.
// Автоматически создает таблицу, если она не существует.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
func NewMariaPositionRepo(ctx context.Context, dsn string) (*MariaPositionRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaPositionRepo{db: db}

	// Создаем таблицу, если она не существует
	if err := repo.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

// createTable создает таблицу player_positions, если она не существует
func (r *MariaPositionRepo) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS player_positions (
			player_id  BIGINT UNSIGNED PRIMARY KEY,
			x          DOUBLE          NOT NULL,
			y          DOUBLE          NOT NULL,
			z          DOUBLE          NOT NULL,
			updated_at TIMESTAMP       DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE       CURRENT_TIMESTAMP,
			INDEX idx_updated_at (updated_at)
		) ENGINE=InnoDB
	`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы player_positions: %w", err)
	}
	return nil
}

const upsertPositionQuery = `
	INSERT INTO player_positions (player_id, x, y, z)
	VALUES (?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		x = VALUES(x),
		y = VALUES(y),
		z = VALUES(z),
		updated_at = CURRENT_TIMESTAMP
`

// Save сохраняет позицию игрока.
// Использует INSERT ... ON DUPLICATE KEY UPDATE для обновления существующих записей.
func (r *MariaPositionRepo) Save(ctx context.Context, playerID uint64, pos mgl64.Vec3) error {
	if err := validatePosition(playerID, pos); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, upsertPositionQuery, playerID, pos[0], pos[1], pos[2]); err != nil {
		return fmt.Errorf("ошибка сохранения позиции для игрока %d: %w", playerID, err)
	}
	return nil
}

// Load загружает позицию игрока из базы данных
func (r *MariaPositionRepo) Load(ctx context.Context, playerID uint64) (mgl64.Vec3, bool, error) {
	if playerID == 0 {
		return mgl64.Vec3{}, false, fmt.Errorf("недействительный playerID: %d", playerID)
	}

	var pos mgl64.Vec3
	err := r.db.QueryRowContext(ctx,
		`SELECT x, y, z FROM player_positions WHERE player_id = ?`, playerID,
	).Scan(&pos[0], &pos[1], &pos[2])

	if err == sql.ErrNoRows {
		// Позиция не найдена - первый вход игрока
		return mgl64.Vec3{}, false, nil
	}
	if err != nil {
		return mgl64.Vec3{}, false, fmt.Errorf("ошибка загрузки позиции для игрока %d: %w", playerID, err)
	}
	return pos, true, nil
}

// Delete удаляет сохраненную позицию игрока
func (r *MariaPositionRepo) Delete(ctx context.Context, playerID uint64) error {
	if playerID == 0 {
		return fmt.Errorf("недействительный playerID: %d", playerID)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM player_positions WHERE player_id = ?`, playerID)
	if err != nil {
		return fmt.Errorf("ошибка удаления позиции для игрока %d: %w", playerID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("позиция для игрока %d не найдена", playerID)
	}
	return nil
}

// BatchSave сохраняет позиции нескольких игроков в одной транзакции
func (r *MariaPositionRepo) BatchSave(ctx context.Context, positions map[uint64]mgl64.Vec3) error {
	if len(positions) == 0 {
		return nil // Нечего сохранять
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() // Откат в случае ошибки

	stmt, err := tx.PrepareContext(ctx, upsertPositionQuery)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for playerID, pos := range positions {
		if err := validatePosition(playerID, pos); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, playerID, pos[0], pos[1], pos[2]); err != nil {
			return fmt.Errorf("ошибка сохранения позиции для игрока %d в batch: %w", playerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// Close закрывает соединение с базой данных
func (r *MariaPositionRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
