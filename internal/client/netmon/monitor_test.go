package netmon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 20 * time.Millisecond

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	m := NewMonitor(slog.New(slog.NewTextHandler(io.Discard, nil)), testDebounce)
	t.Cleanup(m.Stop)
	return m
}

// notifications собирает уведомления подписчика потокобезопасно
type notifications struct {
	mu     gosync.Mutex
	events []bool
}

func (n *notifications) handler(online bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, online)
}

func (n *notifications) snapshot() []bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]bool, len(n.events))
	copy(out, n.events)
	return out
}

func TestMonitor_InitialStateOnline(t *testing.T) {
	m := newTestMonitor(t)
	assert.True(t, m.IsOnline())
}

func TestMonitor_TransitionAfterDebounce(t *testing.T) {
	m := newTestMonitor(t)
	var n notifications
	m.Subscribe(n.handler)

	m.Report(false)

	// Сразу после сырого события состояние еще не зафиксировано
	assert.True(t, m.IsOnline())

	require.Eventually(t, func() bool {
		return !m.IsOnline()
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []bool{false}, n.snapshot())
}

func TestMonitor_FlappingSuppressed(t *testing.T) {
	m := newTestMonitor(t)
	var n notifications
	m.Subscribe(n.handler)

	// Дребезг короче окна дебаунса: offline тут же сменяется online
	m.Report(false)
	time.Sleep(testDebounce / 4)
	m.Report(true)

	time.Sleep(3 * testDebounce)

	assert.True(t, m.IsOnline())
	assert.Empty(t, n.snapshot())
}

func TestMonitor_DebounceWindowRestarts(t *testing.T) {
	m := newTestMonitor(t)

	// Каждое сырое событие перезапускает окно от себя
	m.Report(false)
	time.Sleep(testDebounce / 2)
	m.Report(false)
	time.Sleep(testDebounce / 2)

	require.Eventually(t, func() bool {
		return !m.IsOnline()
	}, time.Second, 5*time.Millisecond)
}

func TestMonitor_RoundTrip(t *testing.T) {
	m := newTestMonitor(t)
	var n notifications
	m.Subscribe(n.handler)

	m.Report(false)
	require.Eventually(t, func() bool {
		return !m.IsOnline()
	}, time.Second, 5*time.Millisecond)

	m.Report(true)
	require.Eventually(t, func() bool {
		return m.IsOnline()
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []bool{false, true}, n.snapshot())
}

func TestMonitor_Unsubscribe(t *testing.T) {
	m := newTestMonitor(t)
	var n notifications
	unsubscribe := m.Subscribe(n.handler)
	unsubscribe()

	m.Report(false)
	require.Eventually(t, func() bool {
		return !m.IsOnline()
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, n.snapshot())
}

func TestMonitor_ReportAfterStopIgnored(t *testing.T) {
	m := NewMonitor(slog.New(slog.NewTextHandler(io.Discard, nil)), testDebounce)
	m.Stop()
	m.Stop() // повторный Stop безопасен

	m.Report(false)
	time.Sleep(3 * testDebounce)
	assert.True(t, m.IsOnline())
}

func TestMonitor_StartProbe(t *testing.T) {
	m := newTestMonitor(t)

	var mu gosync.Mutex
	healthy := false
	probe := func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if healthy {
			return nil
		}
		return errors.New("unreachable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartProbe(ctx, probe, 5*time.Millisecond)

	// Падающий probe переводит монитор в offline
	require.Eventually(t, func() bool {
		return !m.IsOnline()
	}, time.Second, 5*time.Millisecond)

	// Восстановившийся probe возвращает online
	mu.Lock()
	healthy = true
	mu.Unlock()

	require.Eventually(t, func() bool {
		return m.IsOnline()
	}, time.Second, 5*time.Millisecond)
}
