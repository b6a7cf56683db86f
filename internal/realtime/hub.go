package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"rentdesk/internal/metrics"
)

type Handler func(Event)

// AnyTable: подписка на события всех таблиц
const AnyTable = "*"

// Feed: интерфейс подписки на изменения таблиц
type Feed interface {
	Subscribe(table string, events []EventType, filter *Filter, handler Handler) (unsubscribe func(), err error)
}

// Source: Feed с собственным жизненным циклом (LISTEN, pub/sub, consumer group)
type Source interface {
	Feed
	Start(ctx context.Context) error
	Close() error
}

type subscription struct {
	table   string
	events  map[EventType]bool
	filter  *Filter
	handler Handler
}

// accepts: для UPDATE достаточно совпадения старой или новой строки,
// чтобы подписчик увидел строку, покидающую выборку.
func (s *subscription) accepts(ev Event) bool {
	if ev.Type == EventResync {
		return true
	}
	if (s.table != AnyTable && ev.Table != s.table) || !s.events[ev.Type] {
		return false
	}
	if s.filter == nil {
		return true
	}
	newRow, _ := ev.NewRow()
	oldRow, _ := ev.OldRow()
	switch ev.Type {
	case EventInsert:
		return s.filter.Match(newRow)
	case EventDelete:
		return oldRow == nil || s.filter.Match(oldRow)
	default:
		return s.filter.Match(newRow) || (oldRow != nil && s.filter.Match(oldRow))
	}
}

// Hub раздаёт события подписчикам внутри процесса. Все источники строятся поверх него.
type Hub struct {
	logger *zap.Logger

	mu   sync.RWMutex
	next uint64
	subs map[uint64]*subscription
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{logger: logger, subs: make(map[uint64]*subscription)}
}

func (h *Hub) Subscribe(table string, events []EventType, filter *Filter, handler Handler) (func(), error) {
	if len(events) == 0 {
		events = AllEvents
	}
	sub := &subscription{
		table:   table,
		events:  make(map[EventType]bool, len(events)),
		filter:  filter,
		handler: handler,
	}
	for _, e := range events {
		sub.events[e] = true
	}

	h.mu.Lock()
	h.next++
	id := h.next
	h.subs[id] = sub
	h.mu.Unlock()

	h.logger.Debug("subscribed", zap.String("table", table), zap.Stringer("filter", filter))

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}, nil
}

// Publish синхронно вызывает обработчики подходящих подписок
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	matched := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.accepts(ev) {
			matched = append(matched, sub)
		}
	}
	h.mu.RUnlock()

	metrics.FeedEvents.WithLabelValues(ev.Table, string(ev.Type)).Inc()

	for _, sub := range matched {
		h.dispatch(sub, ev)
	}
}

func (h *Hub) dispatch(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("realtime handler panicked",
				zap.String("table", ev.Table), zap.String("type", string(ev.Type)), zap.Any("panic", r))
		}
	}()
	sub.handler(ev)
}

// Resync просит всех подписчиков перечитать данные
func (h *Hub) Resync() {
	h.Publish(Event{Table: AnyTable, Type: EventResync})
}

// SubscriberCount нужен для проверок отписки
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Start и Close делают Hub самостоятельным источником без внешнего транспорта
func (h *Hub) Start(context.Context) error { return nil }
func (h *Hub) Close() error                { return nil }
