package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/blockworld/internal/game"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/middleware"
	"github.com/annel0/blockworld/internal/render"
)

// Version - версия песочницы, отдаётся в /api/server
const Version = "v0.1.0"

// StatsSource отдаёт снимок состояния игровой сессии. Вызывается из
// горутин HTTP сервера, поэтому должен быть потокобезопасным.
type StatsSource interface {
	Stats() game.Stats
}

// Config содержит конфигурацию отладочного сервера
type Config struct {
	Addr        string              // адрес для запуска сервера (":8088")
	Session     StatsSource         // состояние сессии
	RenderStats func() render.Stats // учёт мешей (может быть nil)
	Registry    *prometheus.Registry
	Logger      *logging.Logger
}

// DebugServer - отладочный HTTP сервер песочницы: health, статистика, метрики
type DebugServer struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        Config
	metrics    *ProcessMetrics
	logger     *logging.Logger
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewDebugServer создает отладочный сервер
func NewDebugServer(cfg Config) *DebugServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("debug_api"))
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())

	var reg prometheus.Registerer
	var gatherer prometheus.Gatherer
	if cfg.Registry != nil {
		reg, gatherer = cfg.Registry, cfg.Registry
	}
	promMw := middleware.NewPrometheusMiddleware("debug_api", reg)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, gatherer)

	s := &DebugServer{
		router:  router,
		cfg:     cfg,
		metrics: NewProcessMetrics(),
		logger:  cfg.Logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes настраивает маршруты
func (s *DebugServer) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/stats", s.handleStats)
		api.GET("/server", s.handleServerInfo)
	}
}

// Handler возвращает http.Handler сервера (для тестов и встраивания)
func (s *DebugServer) Handler() http.Handler {
	return s.router
}

// handleHealth проверка состояния
func (s *DebugServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleStats возвращает состояние мира, рендера и процесса
func (s *DebugServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	if s.cfg.Session != nil {
		stats["world"] = s.cfg.Session.Stats()
	}
	if s.cfg.RenderStats != nil {
		stats["render"] = s.cfg.RenderStats()
	}

	cpuPercent, err := s.metrics.GetCPUUsage()
	if err != nil {
		s.logger.Debug("Не удалось получить загрузку CPU: %v", err)
	}
	rssMB, err := s.metrics.GetRSSMegabytes()
	if err != nil {
		s.logger.Debug("Не удалось получить RSS: %v", err)
	}

	stats["process"] = map[string]interface{}{
		"uptime":      s.metrics.GetUptime(),
		"rss_mb":      fmt.Sprintf("%.2f", rssMB),
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"server_time": time.Now().Unix(),
	}
	stats["memory_details"] = s.metrics.GetDetailedMemoryStats()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

// handleServerInfo возвращает информацию о процессе
func (s *DebugServer) handleServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data: map[string]interface{}{
			"version": Version,
			"name":    "blockworld sandbox",
			"status":  "running",
			"uptime":  s.metrics.GetUptime(),
		},
	})
}

// Start запускает сервер в отдельной горутине. Ошибка занятости порта
// возвращается сразу.
func (s *DebugServer) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("не удалось открыть %s: %w", s.cfg.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("❌ Ошибка отладочного сервера: %v", err)
		}
	}()

	s.logger.Info("🌐 Отладочный сервер: http://%s (/health, /api/stats, /metrics)", ln.Addr())
	return nil
}

// Stop останавливает сервер с таймаутом
func (s *DebugServer) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка остановки HTTP сервера: %w", err)
	}
	return nil
}
