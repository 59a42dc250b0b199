package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/annel0/blockworld/internal/api"
	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/export"
	"github.com/annel0/blockworld/internal/game"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/observability"
	"github.com/annel0/blockworld/internal/render"
	"github.com/annel0/blockworld/internal/storage"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию GAME_CONFIG)")
	exportSTL := flag.String("export-stl", "", "экспортировать мир в STL при завершении")
	frames := flag.Int("frames", 0, "остановиться после N кадров (0 - до сигнала)")
	walk := flag.Float64("walk", 0, "скорость движения игрока по +X, блоков в секунду")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	logging.SetLogDir(cfg.Logging.GetDir())
	if err := logging.InitDefaultLogger("sandbox"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()
	applyLogLevels(cfg.Logging)

	if err := run(cfg, *exportSTL, *frames, *walk); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Песочница остановлена")
}

func applyLogLevels(lc config.LoggingConfig) {
	console, err := logging.ParseLevel(lc.ConsoleLevel)
	if err != nil {
		logging.Warn("%v, используется INFO", err)
	}
	file, err := logging.ParseLevel(lc.FileLevel)
	if err != nil {
		logging.Warn("%v, используется INFO", err)
	}
	logging.SetDefaultLevels(console, file)
}

func run(cfg *config.Config, exportPath string, maxFrames int, walkSpeed float64) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("🎮 Запуск песочницы blockworld...")

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled)
	if err != nil {
		logging.Warn("OpenTelemetry недоступен: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("Ошибка остановки OpenTelemetry: %v", err)
		}
	}()

	// === МЕТРИКИ ===
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// === ПАЛИТРА И ГЕНЕРАТОР ===
	palette := block.DefaultPalette()
	if dir := cfg.World.MaterialsDir; dir != "" {
		n, err := palette.LoadJSONMaterials(dir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("ошибка загрузки материалов: %w", err)
		}
		logging.Debug("Загружено материалов из %s: %d", dir, n)
	}

	generator, err := newGenerator(cfg.World, palette)
	if err != nil {
		return err
	}

	// === ХРАНИЛИЩА ===
	storageLog := logging.GetStorageLogger()
	persistence, err := storage.OpenWorldPersistence(cfg.Storage.GetBackend(), cfg.Storage.GetDataDir())
	if err != nil {
		return fmt.Errorf("ошибка открытия хранилища мира: %w", err)
	}
	defer persistence.Close()
	storageLog.Info("💾 Хранилище мира: %s (%s)", cfg.Storage.GetBackend(), cfg.Storage.GetDataDir())

	positions, err := storage.OpenPositionRepo(ctx, storage.PositionsConfig{
		Backend:   cfg.Positions.Backend,
		RedisAddr: cfg.Positions.GetRedisAddr(),
		MariaDSN:  cfg.Positions.GetMariaDSN(),
	})
	if err != nil {
		// Позиции не критичны: продолжаем в памяти
		storageLog.Warn("⚠️ Репозиторий позиций %q недоступен (%v), используется память", cfg.Positions.Backend, err)
		positions = storage.NewMemoryPositionRepo()
	}
	defer positions.Close()

	// === ДВИЖОК И СЕССИЯ ===
	renderer := render.NewHeadless()
	engine := world.NewEngine(renderer, world.EngineConfig{
		SectorPad:    cfg.Render.SectorPad,
		CubeHalfSize: cfg.Render.CubeHalfSize,
		Metrics:      world.NewMetrics(registry),
	})

	frameRate := cfg.Render.GetFrameRate()
	session, err := game.NewSession(engine, game.Options{
		PlayerID:     cfg.Player.ID,
		Palette:      palette,
		Generator:    generator,
		Persistence:  persistence,
		Positions:    positions,
		Spawn:        mgl64.Vec3(cfg.Player.Spawn),
		FrameBudget:  time.Second / time.Duration(frameRate),
		EditDistance: cfg.Player.EditDistance,
		Autosave:     cfg.Storage.GetAutosaveInterval(),
		Logger:       logging.GetComponentLogger("game"),
	})
	if err != nil {
		return err
	}
	if err := session.Start(ctx); err != nil {
		return err
	}

	// === ОТЛАДОЧНЫЙ СЕРВЕР ===
	if cfg.Debug.Enabled {
		server := api.NewDebugServer(api.Config{
			Addr:        fmt.Sprintf(":%d", cfg.Debug.GetPort()),
			Session:     session,
			RenderStats: renderer.Stats,
			Registry:    registry,
			Logger:      logging.GetAPILogger(),
		})
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			if err := server.Stop(context.Background()); err != nil {
				logging.Error("❌ %v", err)
			}
		}()
	}

	// === ИГРОВОЙ ЦИКЛ ===
	position := session.Position()
	sight := mgl64.Vec3{1, 0, 0}
	frameTime := time.Second / time.Duration(frameRate)
	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	logging.Info("✅ Песочница запущена: %d кадров/с, позиция %v", frameRate, position)

	frame := 0
loop:
	for maxFrames <= 0 || frame < maxFrames {
		select {
		case <-ctx.Done():
			logging.Info("📡 Получен сигнал завершения")
			break loop
		case <-ticker.C:
		}

		position = position.Add(mgl64.Vec3{walkSpeed * frameTime.Seconds(), 0, 0})
		session.Tick(ctx, position, sight)
		frame++

		if frame%(frameRate*10) == 0 {
			st := session.Stats()
			logging.Debug("Кадр %d: блоков=%d показано=%d мешей=%d очередь=%d сектор=%v",
				st.Frame, st.Blocks, st.Shown, st.Meshes, st.Pending, st.Sector)
		}
	}

	// === ЗАВЕРШЕНИЕ ===
	// Контекст сигнала уже может быть отменён, сохраняем в отдельном
	saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := session.Save(saveCtx); err != nil {
		logging.Error("❌ Ошибка сохранения при завершении: %v", err)
	}

	if exportPath != "" {
		n, err := export.WriteSTLFile(exportPath, engine)
		if err != nil {
			return fmt.Errorf("ошибка экспорта STL: %w", err)
		}
		logging.Info("📐 Экспортировано %d треугольников в %s", n, exportPath)
	}

	return nil
}

// newGenerator выбирает генератор начального мира
func newGenerator(wc config.WorldConfig, palette *block.Palette) (world.Generator, error) {
	switch wc.Generator {
	case "", "rows":
		return world.NewRowsGenerator(palette), nil
	case "terrain":
		seed := wc.Seed
		if seed == 0 {
			seed = time.Now().UnixNano() % math.MaxInt32
		}
		logging.Info("🌱 Генератор рельефа: шум=%s seed=%d", wc.Noise, seed)
		return world.NewTerrainGenerator(wc.Noise, seed, wc.Radius, wc.MaxHeight, palette)
	default:
		return nil, fmt.Errorf("неизвестный генератор мира: %s", wc.Generator)
	}
}
