package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"taskMarket/internal/logger"
	"taskMarket/internal/metrics"
	"taskMarket/internal/notify"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("очередь уведомлений переполнена")
	ErrStopped   = errors.New("доставка уведомлений остановлена")
)

// NotificationWorker отвязывает доставку уведомлений от команд:
// Notify только ставит событие в очередь, доставка идёт в фоне.
type NotificationWorker struct {
	sink            notify.Notifier
	metrics         *metrics.Metrics
	queue           chan notify.Event
	workers         int
	deliveryTimeout time.Duration
	statsInterval   time.Duration

	// постановка в очередь и остановка под одним мьютексом: после stopped
	// в очередь ничего не попадает, и drain забирает всё
	mtx     sync.RWMutex
	stopped bool

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

type WorkerOption func(*NotificationWorker)

func WithQueueSize(size int) WorkerOption {
	return func(w *NotificationWorker) {
		if size > 0 {
			w.queue = make(chan notify.Event, size)
		}
	}
}

func WithWorkers(n int) WorkerOption {
	return func(w *NotificationWorker) {
		if n > 0 {
			w.workers = n
		}
	}
}

func WithDeliveryTimeout(d time.Duration) WorkerOption {
	return func(w *NotificationWorker) {
		if d > 0 {
			w.deliveryTimeout = d
		}
	}
}

func WithStatsInterval(d time.Duration) WorkerOption {
	return func(w *NotificationWorker) {
		if d > 0 {
			w.statsInterval = d
		}
	}
}

func NewNotificationWorker(sink notify.Notifier, m *metrics.Metrics, options ...WorkerOption) *NotificationWorker {
	w := &NotificationWorker{
		sink:            sink,
		metrics:         m,
		queue:           make(chan notify.Event, 256),
		workers:         4,
		deliveryTimeout: 5 * time.Second,
		statsInterval:   time.Minute,
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

func (w *NotificationWorker) Notify(ctx context.Context, event notify.Event) error {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- event:
		w.metrics.SetQueueDepth(len(w.queue))
		return nil
	default:
		w.dropped.Add(1)
		w.metrics.ObserveNotification(string(event.Kind), "dropped")
		return ErrQueueFull
	}
}

func (w *NotificationWorker) Start(ctx context.Context) {
	p := pool.New().WithMaxGoroutines(w.workers)
	ticker := time.NewTicker(w.statsInterval)
	defer ticker.Stop()

	logger.Info("Worker: Доставка уведомлений запущена", zap.Int("workers", w.workers))

	for {
		select {
		case event := <-w.queue:
			w.metrics.SetQueueDepth(len(w.queue))
			p.Go(func() { w.deliver(event) })
		case <-ticker.C:
			w.logStats()
		case <-ctx.Done():
			w.mtx.Lock()
			w.stopped = true
			w.mtx.Unlock()
			drained := w.drain(p)
			p.Wait()
			logger.Info("Worker: Доставка уведомлений остановлена", zap.Int("drained", drained))
			w.logStats()
			return
		}
	}
}

func (w *NotificationWorker) drain(p *pool.Pool) int {
	n := 0
	for {
		select {
		case event := <-w.queue:
			n++
			p.Go(func() { w.deliver(event) })
		default:
			w.metrics.SetQueueDepth(0)
			return n
		}
	}
}

// deliver не зависит от контекста Start, чтобы остаток очереди доставлялся при остановке
func (w *NotificationWorker) deliver(event notify.Event) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), w.deliveryTimeout)
	defer cancel()

	if err := w.sink.Notify(ctx, event); err != nil {
		w.failed.Add(1)
		w.metrics.ObserveNotification(string(event.Kind), "failed")
		logger.Warn("Worker: Ошибка доставки уведомления",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
			zap.String("kind", string(event.Kind)),
			zap.String("recipient_id", event.RecipientID.String()),
			zap.Duration("ms", time.Since(start)))
		return
	}
	w.delivered.Add(1)
	w.metrics.ObserveNotification(string(event.Kind), "delivered")
}

type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
	Queued    int
}

func (w *NotificationWorker) Stats() Stats {
	return Stats{
		Delivered: w.delivered.Load(),
		Failed:    w.failed.Load(),
		Dropped:   w.dropped.Load(),
		Queued:    len(w.queue),
	}
}

func (w *NotificationWorker) logStats() {
	s := w.Stats()
	logger.Info("Worker: Статистика уведомлений",
		zap.Int64("delivered", s.Delivered),
		zap.Int64("failed", s.Failed),
		zap.Int64("dropped", s.Dropped),
		zap.Int("queued", s.Queued))
}
