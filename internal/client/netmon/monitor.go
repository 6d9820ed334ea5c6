// Package netmon отслеживает доступность сети для планировщика
// синхронизации. Сырые события (ручные или от периодического probe)
// дебаунсятся фиксированным окном, чтобы дребезг при переходах не
// порождал шквал переключений.
package netmon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce — окно стабилизации сырого состояния перед
// уведомлением подписчиков
const DefaultDebounce = 500 * time.Millisecond

// Monitor является дебаунсированным источником online/offline сигнала
type Monitor struct {
	logger   *slog.Logger
	subs     map[int]func(online bool)
	timer    *time.Timer
	stopC    chan struct{}
	debounce time.Duration
	mu       sync.Mutex
	nextID   int
	online   bool // дебаунсированное состояние
	raw      bool // последнее сырое состояние
	stopped  bool
}

// NewMonitor creates a new network monitor.
// Начальное состояние — online: первый же неудачный запрос или probe
// переведет монитор в offline.
func NewMonitor(logger *slog.Logger, debounce time.Duration) *Monitor {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Monitor{
		logger:   logger,
		debounce: debounce,
		subs:     make(map[int]func(online bool)),
		stopC:    make(chan struct{}),
		online:   true,
		raw:      true,
	}
}

// IsOnline returns the current debounced status synchronously
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Report принимает сырое событие доступности сети.
// Состояние фиксируется только после того, как сырой сигнал продержится
// стабильным все окно дебаунса.
func (m *Monitor) Report(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	m.raw = online

	// Сырое состояние вернулось к зафиксированному — отменяем переход
	if m.raw == m.online {
		if m.timer != nil {
			m.timer.Stop()
			m.timer = nil
		}
		return
	}

	// Перезапускаем окно: считаем от последнего сырого события
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.commit)
}

// commit фиксирует дебаунсированное состояние и уведомляет подписчиков
func (m *Monitor) commit() {
	m.mu.Lock()
	if m.stopped || m.raw == m.online {
		m.mu.Unlock()
		return
	}
	m.online = m.raw
	m.timer = nil
	online := m.online

	handlers := make([]func(bool), 0, len(m.subs))
	for _, h := range m.subs {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	m.logger.Info("Network status changed", "online", online)

	for _, h := range handlers {
		h(online)
	}
}

// Subscribe регистрирует обработчик смены статуса.
// Возвращает функцию отписки.
func (m *Monitor) Subscribe(handler func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = handler

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// StartProbe запускает периодическую активную проверку доступности.
// probe обычно бьет в GET /health сервера; результат идет через Report
// и подчиняется общему дебаунсу.
func (m *Monitor) StartProbe(ctx context.Context, probe func(ctx context.Context) error, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Report(probe(ctx) == nil)
			case <-m.stopC:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop останавливает probe и таймеры; дальнейшие Report игнорируются
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	close(m.stopC)
}
