package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации песочницы.
// Незаданные поля заполняются значениями по умолчанию через геттеры.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Render    RenderConfig    `yaml:"render"`
	Player    PlayerConfig    `yaml:"player"`
	Storage   StorageConfig   `yaml:"storage"`
	Positions PositionsConfig `yaml:"positions"`
	Debug     DebugConfig     `yaml:"debug"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type WorldConfig struct {
	Generator    string `yaml:"generator"` // rows | terrain
	Noise        string `yaml:"noise"`     // perlin | simplex
	Seed         int64  `yaml:"seed"`
	Radius       int    `yaml:"radius"`
	MaxHeight    int    `yaml:"max_height"`
	MaterialsDir string `yaml:"materials_dir"`
}

type RenderConfig struct {
	SectorPad    int     `yaml:"sector_pad"`
	CubeHalfSize float64 `yaml:"cube_half_size"`
	FrameRate    int     `yaml:"frame_rate"`
}

type PlayerConfig struct {
	ID           uint64     `yaml:"id"`
	Spawn        [3]float64 `yaml:"spawn"`
	EditDistance int        `yaml:"edit_distance"`
}

type StorageConfig struct {
	Backend         string `yaml:"backend"` // badger | snapshot | sqlite
	DataDir         string `yaml:"data_dir"`
	AutosaveSeconds int    `yaml:"autosave_seconds"`
}

type PositionsConfig struct {
	Backend   string `yaml:"backend"` // memory | redis | maria
	RedisAddr string `yaml:"redis_addr"`
	MariaDSN  string `yaml:"maria_dsn"`
}

type DebugConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// Default возвращает конфигурацию по умолчанию. Порт, каталоги, бэкенд
// сохранения и частота кадров оставлены пустыми: их задают геттеры с
// учётом переменных окружения.
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Generator: "rows",
			Noise:     "perlin",
			Radius:    32,
			MaxHeight: 12,
		},
		Render: RenderConfig{
			SectorPad:    4,
			CubeHalfSize: 0.5,
		},
		Player: PlayerConfig{
			ID:           1,
			Spawn:        [3]float64{0, 3, 10},
			EditDistance: 42,
		},
		Storage: StorageConfig{
			AutosaveSeconds: 300,
		},
		Positions: PositionsConfig{
			Backend: "memory",
		},
		Debug: DebugConfig{
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "blockworld",
		},
		Logging: LoggingConfig{
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
	}
}

// GetDataDir возвращает каталог сохранений с поддержкой fallback значений
func (s *StorageConfig) GetDataDir() string {
	return getStringWithEnvFallback(s.DataDir, "GAME_DATA_DIR", "data")
}

// GetBackend возвращает бэкенд сохранения мира
func (s *StorageConfig) GetBackend() string {
	return getStringWithEnvFallback(s.Backend, "GAME_STORAGE_BACKEND", "badger")
}

// GetAutosaveInterval возвращает интервал автосохранения. 0 отключает автосохранение.
func (s *StorageConfig) GetAutosaveInterval() time.Duration {
	if s.AutosaveSeconds < 0 {
		return 0
	}
	return time.Duration(s.AutosaveSeconds) * time.Second
}

// GetRedisAddr возвращает адрес Redis с поддержкой fallback значений
func (p *PositionsConfig) GetRedisAddr() string {
	return getStringWithEnvFallback(p.RedisAddr, "GAME_REDIS_ADDR", "localhost:6379")
}

// GetMariaDSN возвращает строку подключения к MariaDB
func (p *PositionsConfig) GetMariaDSN() string {
	return getStringWithEnvFallback(p.MariaDSN, "GAME_MARIA_DSN", "")
}

// GetPort возвращает порт отладочного HTTP сервера
func (d *DebugConfig) GetPort() int {
	return getIntWithEnvFallback(d.Port, "GAME_DEBUG_PORT", 8088)
}

// GetFrameRate возвращает частоту кадров
func (r *RenderConfig) GetFrameRate() int {
	return getIntWithEnvFallback(r.FrameRate, "GAME_FRAME_RATE", 60)
}

// GetDir возвращает каталог логов
func (l *LoggingConfig) GetDir() string {
	return getStringWithEnvFallback(l.Dir, "GAME_LOG_DIR", "logs")
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	// Если значение задано в конфиге и больше 0, используем его
	if configValue > 0 {
		return configValue
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

// getStringWithEnvFallback возвращает строку с приоритетом: config -> env -> default
func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultValue
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV GAME_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return cfg, nil // конфиг не задан - использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}

	return cfg, nil
}
