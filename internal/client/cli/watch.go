package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/bookkeeper/internal/client/scheduler"
)

const probeInterval = 30 * time.Second

// runWatch держит клиент в фоновом режиме: пробник сети, периодическая
// и событийная синхронизация. Выход по Ctrl+C.
func (c *Cli) runWatch(ctx context.Context) error {
	c.io.Println("=== Watch Mode ===")
	c.io.Println("Press Ctrl+C to stop.")
	c.io.Println()

	unsubDone := c.coordinator.Subscribe(scheduler.EventSyncCompleted, func(e scheduler.Event) {
		if e.Result == nil {
			return
		}
		if e.Result.Pushed+e.Result.Pulled+e.Result.Deleted+e.Result.Conflicts > 0 {
			c.io.Printf("[%s] synced: pushed=%d pulled=%d deleted=%d conflicts=%d\n",
				time.Now().Format("15:04:05"),
				e.Result.Pushed, e.Result.Pulled, e.Result.Deleted, e.Result.Conflicts)
		}
	})
	defer unsubDone()

	unsubFail := c.coordinator.Subscribe(scheduler.EventSyncFailed, func(e scheduler.Event) {
		c.io.Printf("[%s] sync failed: %v\n", time.Now().Format("15:04:05"), e.Err)
	})
	defer unsubFail()

	unsubNet := c.monitor.Subscribe(func(online bool) {
		if online {
			c.io.Printf("[%s] network is back\n", time.Now().Format("15:04:05"))
		} else {
			c.io.Printf("[%s] network is down, queuing edits locally\n", time.Now().Format("15:04:05"))
		}
	})
	defer unsubNet()

	c.monitor.StartProbe(ctx, c.apiClient.Health, probeInterval)
	c.coordinator.Resume()
	defer c.coordinator.Pause()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigC)

	select {
	case <-sigC:
	case <-ctx.Done():
	}

	c.io.Println()
	c.io.Println("Stopping.")
	return nil
}
