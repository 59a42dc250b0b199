package world

import (
	"time"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// OpKind - вид отложенной операции рендера
type OpKind int

const (
	// OpMaterialize создаёт меш блока по снимку материала
	OpMaterialize OpKind = iota
	// OpRelease освобождает меш блока
	OpRelease
)

// String возвращает имя операции для логов и метрик
func (k OpKind) String() string {
	switch k {
	case OpMaterialize:
		return "materialize"
	case OpRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Op - отложенная операция над мешем одной координаты.
// Material заполняется только для OpMaterialize и фиксируется в момент постановки.
type Op struct {
	Kind     OpKind
	Pos      vec.Vec3
	Material block.Material
}

type pendingOp struct {
	Op
	cancelled bool
}

// RenderQueue - FIFO отложенных операций над мешами.
//
// Для каждой координаты в очереди живёт не больше одной операции:
// новая операция отменяет ещё не выполненную предыдущую (побеждает последняя).
// Отменённые записи остаются в срезе как надгробия и пропускаются при выборке.
type RenderQueue struct {
	ops     []*pendingOp
	head    int
	pending map[vec.Vec3]*pendingOp

	exec    func(Op)
	now     func() time.Time
	metrics *Metrics
}

// newRenderQueue создаёт очередь, выполняющую операции через exec
func newRenderQueue(exec func(Op), metrics *Metrics) *RenderQueue {
	return &RenderQueue{
		pending: make(map[vec.Vec3]*pendingOp),
		exec:    exec,
		now:     time.Now,
		metrics: metrics,
	}
}

// Enqueue добавляет операцию в хвост очереди.
// Ожидающая операция для той же координаты отменяется.
func (q *RenderQueue) Enqueue(op Op) {
	q.cancel(op.Pos)

	p := &pendingOp{Op: op}
	q.ops = append(q.ops, p)
	q.pending[op.Pos] = p
	q.metrics.setPending(len(q.pending))
}

// Cancel отменяет ожидающую операцию для координаты. Возвращает true, если она была.
func (q *RenderQueue) Cancel(pos vec.Vec3) bool {
	ok := q.cancel(pos)
	if ok {
		q.metrics.setPending(len(q.pending))
	}
	return ok
}

func (q *RenderQueue) cancel(pos vec.Vec3) bool {
	prev, ok := q.pending[pos]
	if !ok {
		return false
	}
	prev.cancelled = true
	delete(q.pending, pos)
	q.metrics.incCoalesced()
	return true
}

// Pending возвращает ожидающую операцию для координаты
func (q *RenderQueue) Pending(pos vec.Vec3) (Op, bool) {
	p, ok := q.pending[pos]
	if !ok {
		return Op{}, false
	}
	return p.Op, true
}

// Len возвращает количество живых (не отменённых) операций
func (q *RenderQueue) Len() int {
	return len(q.pending)
}

// DrainBudgeted выполняет операции с головы, пока очередь не пуста и
// прошедшее время меньше budget. Время проверяется перед каждой операцией,
// поэтому нулевой бюджет ничего не выполняет. Возвращает число выполненных операций.
func (q *RenderQueue) DrainBudgeted(budget time.Duration) int {
	if len(q.pending) == 0 {
		return 0
	}

	start := q.now()
	done := 0
	for len(q.pending) > 0 && q.now().Sub(start) < budget {
		if q.step() {
			done++
		}
	}
	q.finishDrain(start)
	return done
}

// DrainAll выполняет все операции без учёта времени
func (q *RenderQueue) DrainAll() int {
	if len(q.pending) == 0 {
		return 0
	}

	start := q.now()
	done := 0
	for len(q.pending) > 0 {
		if q.step() {
			done++
		}
	}
	q.finishDrain(start)
	return done
}

// step снимает одну запись с головы. Возвращает false для надгробия.
func (q *RenderQueue) step() bool {
	p := q.ops[q.head]
	q.ops[q.head] = nil
	q.head++

	if p.cancelled {
		return false
	}
	delete(q.pending, p.Pos)
	q.exec(p.Op)
	q.metrics.incOp(p.Kind)
	return true
}

func (q *RenderQueue) finishDrain(start time.Time) {
	// Сжимаем срез, когда голова ушла далеко
	if len(q.pending) == 0 {
		clear(q.ops)
		q.ops = q.ops[:0]
		q.head = 0
	} else if q.head > len(q.ops)/2 {
		oldLen := len(q.ops)
		q.ops = append(q.ops[:0], q.ops[q.head:]...)
		clear(q.ops[len(q.ops):oldLen])
		q.head = 0
	}

	q.metrics.setPending(len(q.pending))
	q.metrics.observeDrain(q.now().Sub(start))
}
