package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - набор Prometheus-метрик движка видимости.
//
// Метрики:
// * blockworld_world_blocks - gauge, блоков в мире
// * blockworld_shown_blocks - gauge, блоков в множестве Shown
// * blockworld_meshes - gauge, живых мешей у рендерера
// * blockworld_queue_pending - gauge, операций в очереди
// * blockworld_render_ops_total{op} - counter, выполненные операции show/hide
// * blockworld_render_ops_coalesced_total - counter, отменённые устаревшие операции
// * blockworld_queue_drain_seconds - histogram, время одного прохода очереди
//
// Все методы безопасны для nil-получателя: движок без метрик просто их не пишет.
type Metrics struct {
	worldBlocks  prometheus.Gauge
	shownBlocks  prometheus.Gauge
	meshes       prometheus.Gauge
	queuePending prometheus.Gauge
	renderOps    *prometheus.CounterVec
	coalesced    prometheus.Counter
	drainTime    prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// Если reg == nil, метрики создаются, но не регистрируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		worldBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Name:      "world_blocks",
			Help:      "Количество блоков в мире.",
		}),
		shownBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Name:      "shown_blocks",
			Help:      "Количество видимых (или ожидающих показа) блоков.",
		}),
		meshes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Name:      "meshes",
			Help:      "Количество живых мешей.",
		}),
		queuePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockworld",
			Name:      "queue_pending",
			Help:      "Операций в очереди рендера.",
		}),
		renderOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockworld",
			Name:      "render_ops_total",
			Help:      "Выполненные операции создания и удаления мешей.",
		}, []string{"op"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockworld",
			Name:      "render_ops_coalesced_total",
			Help:      "Отложенные операции, заменённые более новыми для той же координаты.",
		}),
		drainTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blockworld",
			Name:      "queue_drain_seconds",
			Help:      "Длительность обработки очереди за кадр.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0167, 0.025, 0.05, 0.1},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.worldBlocks, m.shownBlocks, m.meshes, m.queuePending,
			m.renderOps, m.coalesced, m.drainTime)
	}
	return m
}

func (m *Metrics) setCounts(world, shown, meshes int) {
	if m == nil {
		return
	}
	m.worldBlocks.Set(float64(world))
	m.shownBlocks.Set(float64(shown))
	m.meshes.Set(float64(meshes))
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.queuePending.Set(float64(n))
}

func (m *Metrics) incOp(kind OpKind) {
	if m == nil {
		return
	}
	m.renderOps.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) incCoalesced() {
	if m == nil {
		return
	}
	m.coalesced.Inc()
}

func (m *Metrics) observeDrain(d time.Duration) {
	if m == nil {
		return
	}
	m.drainTime.Observe(d.Seconds())
}
