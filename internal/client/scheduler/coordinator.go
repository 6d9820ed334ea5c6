// Package scheduler решает, КОГДА запускать цикл синхронизации:
// по возврату приложения на передний план, по восстановлению сети,
// по периодическому таймеру в активном состоянии и по явному запросу.
// Дебаунс схлопывает шквал локальных правок в один сетевой цикл.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/iudanet/bookkeeper/internal/client/netmon"
	"github.com/iudanet/bookkeeper/internal/client/sync"
)

// Интервалы планировщика
const (
	// DefaultDebounce — trailing-edge окно схлопывания триггеров
	DefaultDebounce = 500 * time.Millisecond

	// DefaultInterval — периодическая синхронизация в активном состоянии
	DefaultInterval = 5 * time.Minute
)

// EventKind различает сигналы для наблюдателей
type EventKind string

const (
	EventSyncCompleted EventKind = "sync_completed"
	EventSyncFailed    EventKind = "sync_failed"
)

// Event несет результат завершенного или упавшего цикла
type Event struct {
	Result *sync.Result // заполнен для EventSyncCompleted
	Err    error        // заполнен для EventSyncFailed
	Kind   EventKind
}

// Coordinator владеет single-flight состоянием планирования синхронизации.
// Конструируется один раз на процесс и передается по ссылке — никакого
// скрытого глобального состояния.
type Coordinator struct {
	engine   sync.Service
	monitor  *netmon.Monitor
	logger   *slog.Logger
	subs     map[EventKind]map[int]func(Event)
	timer    *time.Timer
	ticker   *time.Ticker
	tickStop chan struct{}
	unsubNet func()
	baseCtx  context.Context
	debounce time.Duration
	interval time.Duration
	mu       gosync.Mutex
	nextID   int
	active   bool
	closed   bool
}

// New creates a new sync coordinator.
// ctx ограничивает время жизни фоновых запусков синхронизации.
func New(ctx context.Context, engine sync.Service, monitor *netmon.Monitor, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		engine:   engine,
		monitor:  monitor,
		logger:   logger,
		subs:     make(map[EventKind]map[int]func(Event)),
		baseCtx:  ctx,
		debounce: DefaultDebounce,
		interval: DefaultInterval,
	}

	// Восстановление сети — повод синхронизироваться
	c.unsubNet = monitor.Subscribe(func(online bool) {
		if online {
			c.logger.Debug("Network restored, requesting sync")
			c.RequestSync()
		}
	})

	return c
}

// RequestSync запрашивает цикл синхронизации с trailing-edge дебаунсом:
// серия запросов в пределах окна схлопывается в один запуск
func (c *Coordinator) RequestSync() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.runCycle()
	})
}

// RunIfIdle запускает цикл немедленно, минуя дебаунс.
// Если цикл уже идет, запрос проглатывается (single-flight).
func (c *Coordinator) RunIfIdle() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.runCycle()
}

// Resume сообщает о возврате приложения на передний план:
// запускает периодический таймер и, если сеть доступна, синхронизацию
func (c *Coordinator) Resume() {
	c.mu.Lock()
	if c.closed || c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	c.ticker = time.NewTicker(c.interval)
	c.tickStop = make(chan struct{})
	ticker := c.ticker
	stop := c.tickStop
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				c.RequestSync()
			case <-stop:
				return
			}
		}
	}()

	if c.monitor.IsOnline() {
		c.RequestSync()
	}
}

// Pause сообщает об уходе приложения в фон: периодический таймер
// останавливается, явные запросы продолжают работать
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	c.active = false
	c.ticker.Stop()
	close(c.tickStop)
	c.ticker = nil
	c.tickStop = nil
}

// Subscribe регистрирует наблюдателя за событиями синхронизации.
// Возвращает функцию отписки.
func (c *Coordinator) Subscribe(kind EventKind, handler func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs[kind] == nil {
		c.subs[kind] = make(map[int]func(Event))
	}
	id := c.nextID
	c.nextID++
	c.subs[kind][id] = handler

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[kind], id)
	}
}

// Close останавливает таймеры и отписывается от монитора сети.
// Идущий цикл синхронизации не прерывается (отмены посреди цикла нет).
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.active {
		c.active = false
		c.ticker.Stop()
		close(c.tickStop)
		c.ticker = nil
		c.tickStop = nil
	}
	c.mu.Unlock()

	c.unsubNet()
}

// runCycle выполняет один цикл и уведомляет наблюдателей.
// Повторный триггер во время цикла движок отвергает ErrSyncInProgress —
// он проглатывается без события.
func (c *Coordinator) runCycle() {
	result, err := c.engine.Sync(c.baseCtx)
	if err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			c.logger.Debug("Sync already running, trigger swallowed")
			return
		}
		c.logger.Warn("Sync cycle failed", "error", err)
		c.emit(Event{Kind: EventSyncFailed, Err: err})
		return
	}

	c.emit(Event{Kind: EventSyncCompleted, Result: result})
}

// emit рассылает событие подписчикам вне лока
func (c *Coordinator) emit(event Event) {
	c.mu.Lock()
	handlers := make([]func(Event), 0, len(c.subs[event.Kind]))
	for _, h := range c.subs[event.Kind] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}
