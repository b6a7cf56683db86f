package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rentdesk/internal/metrics"
)

const (
	DefaultInsertDelay = 100 * time.Millisecond
	DefaultUpdateDelay = 400 * time.Millisecond
)

// Config описывает одно представление: таблицу, фильтр и способ загрузки списка
type Config[T any] struct {
	Table  string
	Events []EventType
	Filter *Filter

	// Key возвращает id элемента, совпадающий с колонкой id в событиях
	Key func(T) string
	// Fetch загружает полный список под тем же фильтром
	Fetch func(ctx context.Context) ([]T, error)
	// Merge накладывает колонки из события на элемент. nil: только отметка unconfirmed.
	Merge func(item T, row Row) T

	InsertDelay time.Duration
	UpdateDelay time.Duration
}

// Reconciler держит список в памяти согласованным с лентой изменений.
// UPDATE применяется сразу и помечается неподтверждённым до ближайшей перезагрузки;
// INSERT и пропуски ленты приводят к отложенной перезагрузке всего списка.
type Reconciler[T any] struct {
	cfg    Config[T]
	feed   Feed
	logger *zap.Logger

	changes chan struct{}

	mu          sync.Mutex
	items       []T
	unconfirmed map[string]bool
	timer       *time.Timer
	gen         uint64
	inflight    int
	closed      bool
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewReconciler[T any](feed Feed, cfg Config[T], logger *zap.Logger) *Reconciler[T] {
	if cfg.InsertDelay <= 0 {
		cfg.InsertDelay = DefaultInsertDelay
	}
	if cfg.UpdateDelay <= 0 {
		cfg.UpdateDelay = DefaultUpdateDelay
	}
	if len(cfg.Events) == 0 {
		cfg.Events = AllEvents
	}
	return &Reconciler[T]{
		cfg:         cfg,
		feed:        feed,
		logger:      logger.With(zap.String("table", cfg.Table), zap.Stringer("filter", cfg.Filter)),
		changes:     make(chan struct{}, 1),
		unconfirmed: make(map[string]bool),
	}
}

// Start подписывается на ленту и выполняет первую загрузку.
// Подписка идёт первой, чтобы не потерять события между загрузкой и подпиской.
func (r *Reconciler[T]) Start(ctx context.Context) error {
	if r.cfg.Key == nil || r.cfg.Fetch == nil {
		return errors.New("reconciler requires Key and Fetch")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.New("reconciler is closed")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	unsubscribe, err := r.feed.Subscribe(r.cfg.Table, r.cfg.Events, r.cfg.Filter, r.handle)
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", r.cfg.Table)
	}
	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()

	if err := r.Refresh(ctx); err != nil {
		r.Close()
		return err
	}
	return nil
}

// Items возвращает копию текущего списка
func (r *Reconciler[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Unconfirmed сообщает, что элемент изменён локально и ещё не подтверждён перезагрузкой
func (r *Reconciler[T]) Unconfirmed(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unconfirmed[key]
}

// Changes сигналит после каждого изменения списка. Сигналы схлопываются.
func (r *Reconciler[T]) Changes() <-chan struct{} {
	return r.changes
}

// Refresh немедленно перезагружает список и заменяет его целиком
func (r *Reconciler[T]) Refresh(ctx context.Context) error {
	r.mu.Lock()
	gen := r.gen
	r.inflight++
	r.mu.Unlock()

	items, err := r.cfg.Fetch(ctx)
	if err != nil {
		r.fetchFailed()
		return errors.Wrapf(err, "fetch %s", r.cfg.Table)
	}
	r.replace(gen, items)
	return nil
}

func (r *Reconciler[T]) handle(ev Event) {
	switch ev.Type {
	case EventInsert, EventResync:
		r.schedule(r.cfg.InsertDelay)
	case EventUpdate:
		r.applyUpdate(ev)
		r.schedule(r.cfg.UpdateDelay)
	case EventDelete:
		r.applyDelete(ev)
	}
}

func (r *Reconciler[T]) applyUpdate(ev Event) {
	row, err := ev.NewRow()
	if err != nil || row == nil {
		r.logger.Warn("update event without row", zap.Error(err))
		return
	}
	key, ok := row.String("id")
	if !ok {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	idx := r.indexOf(key)
	if idx < 0 {
		// строка вошла в выборку: её принесёт перезагрузка
		r.mu.Unlock()
		return
	}
	if r.cfg.Filter.Match(row) {
		if r.cfg.Merge != nil {
			r.items[idx] = r.cfg.Merge(r.items[idx], row)
		}
		r.unconfirmed[key] = true
	} else {
		r.removeAt(idx)
		delete(r.unconfirmed, key)
	}
	r.mu.Unlock()
	r.notify()
}

func (r *Reconciler[T]) applyDelete(ev Event) {
	row, err := ev.OldRow()
	if err != nil || row == nil {
		row, err = ev.NewRow()
	}
	if err != nil || row == nil {
		r.logger.Warn("delete event without row", zap.Error(err))
		return
	}
	key, ok := row.String("id")
	if !ok {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	idx := r.indexOf(key)
	if idx >= 0 {
		r.removeAt(idx)
		delete(r.unconfirmed, key)
	}
	// идущая загрузка могла застать строку до удаления: её результат
	// отбрасывается через новое поколение, а список перечитывается заново
	stale := r.inflight > 0
	r.mu.Unlock()
	if idx >= 0 {
		r.notify()
	}
	if stale {
		r.schedule(r.cfg.InsertDelay)
	}
}

// schedule перезапускает единственный таймер: серия событий даёт одну перезагрузку
func (r *Reconciler[T]) schedule(delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.timer != nil && r.timer.Stop() {
		r.wg.Done()
	}
	r.gen++
	gen := r.gen
	r.wg.Add(1)
	r.timer = time.AfterFunc(delay, func() {
		defer r.wg.Done()
		r.refetch(gen)
	})
}

func (r *Reconciler[T]) refetch(gen uint64) {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	ctx := r.ctx
	r.inflight++
	r.mu.Unlock()

	items, err := r.cfg.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("refetch failed", zap.Error(err))
		}
		r.fetchFailed()
		return
	}
	r.replace(gen, items)
}

func (r *Reconciler[T]) fetchFailed() {
	r.mu.Lock()
	r.inflight--
	r.mu.Unlock()
	metrics.ReconcilerRefetches.WithLabelValues(r.cfg.Table, "error").Inc()
}

// replace отбрасывает результат, если после начала загрузки пришли новые события.
// Счётчик загрузок уменьшается под той же блокировкой, что и проверка поколения.
func (r *Reconciler[T]) replace(gen uint64, items []T) {
	r.mu.Lock()
	r.inflight--
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		metrics.ReconcilerRefetches.WithLabelValues(r.cfg.Table, "stale").Inc()
		return
	}
	r.items = append([]T(nil), items...)
	r.unconfirmed = make(map[string]bool)
	r.mu.Unlock()

	metrics.ReconcilerRefetches.WithLabelValues(r.cfg.Table, "ok").Inc()
	r.notify()
}

func (r *Reconciler[T]) notify() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

func (r *Reconciler[T]) indexOf(key string) int {
	for i := range r.items {
		if r.cfg.Key(r.items[i]) == key {
			return i
		}
	}
	return -1
}

func (r *Reconciler[T]) removeAt(idx int) {
	r.items = append(r.items[:idx], r.items[idx+1:]...)
}

// Close отписывается, снимает таймер и ждёт завершения начатой перезагрузки.
// После Close события и таймеры ничего не меняют.
func (r *Reconciler[T]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.timer != nil && r.timer.Stop() {
		r.wg.Done()
	}
	unsubscribe := r.unsubscribe
	cancel := r.cancel
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}
