// Package cli реализует команды консольного клиента bookkeeper
package cli

import (
	"context"
	"os"

	"github.com/iudanet/bookkeeper/internal/client/api"
	"github.com/iudanet/bookkeeper/internal/client/booking"
	"github.com/iudanet/bookkeeper/internal/client/iocli"
	"github.com/iudanet/bookkeeper/internal/client/netmon"
	"github.com/iudanet/bookkeeper/internal/client/scheduler"
	"github.com/iudanet/bookkeeper/internal/client/session"
	"github.com/iudanet/bookkeeper/internal/client/storage"
	"github.com/iudanet/bookkeeper/internal/client/sync"
)

type Cli struct {
	io          iocli.IO
	apiClient   *api.Client
	sessions    *session.Store
	bookings    booking.Service
	engine      sync.Service
	coordinator *scheduler.Coordinator
	monitor     *netmon.Monitor
	syncState   storage.SyncStateStorage
}

func New(
	io iocli.IO,
	apiClient *api.Client,
	sessions *session.Store,
	bookings booking.Service,
	engine sync.Service,
	coordinator *scheduler.Coordinator,
	monitor *netmon.Monitor,
	syncState storage.SyncStateStorage,
) *Cli {
	return &Cli{
		io:          io,
		apiClient:   apiClient,
		sessions:    sessions,
		bookings:    bookings,
		engine:      engine,
		coordinator: coordinator,
		monitor:     monitor,
		syncState:   syncState,
	}
}

func (c *Cli) Run(ctx context.Context, command string, args []string) {
	var err error

	switch command {
	case "login":
		err = c.runLogin(ctx, args)
	case "logout":
		err = c.runLogout(ctx)
	case "add":
		err = c.runAdd(ctx, args)
	case "list":
		err = c.runList(ctx, args)
	case "get":
		err = c.runGet(ctx, args)
	case "update":
		err = c.runUpdate(ctx, args)
	case "delete":
		err = c.runDelete(ctx, args)
	case "pay":
		err = c.runPay(ctx, args)
	case "sync":
		err = c.runSync(ctx)
	case "status":
		err = c.runStatus(ctx)
	case "conflicts":
		err = c.runConflicts(ctx)
	case "resolve":
		err = c.runResolve(ctx, args)
	case "watch":
		err = c.runWatch(ctx)
	default:
		c.io.Errorf("Unknown command: %s\n", command)
		PrintUsage()
		os.Exit(1)
	}

	if err != nil {
		c.io.Errorf("Error: %v\n", err)
		os.Exit(1)
	}
}

func PrintUsage() {
	usage := `bookkeeper - офлайн-клиент учета бронирований

Usage:
  bookkeeper [flags] <command> [args]

Commands:
  login                      авторизоваться на сервере
  logout                     удалить сохраненную сессию
  add                        добавить бронирование (интерактивно)
  list [-from D] [-to D] [-service S]
                             список бронирований
  get <id>                   показать бронирование
  update <id> [flags]        изменить бронирование
  delete <id>                удалить бронирование
  pay <id> add|remove ...    работа с платежами бронирования
  sync                       выполнить цикл синхронизации
  status                     статус очереди и последней синхронизации
  conflicts                  список неразрешенных конфликтов
  resolve <id> local|remote  разрешить конфликт
  watch                      фоновый режим: следить и синхронизировать

Flags:
  -server string   адрес сервера (default "http://localhost:8080")
  -db string       путь к локальной базе (default "bookkeeper.db")
  -version         показать версию и выйти`
	os.Stderr.WriteString(usage + "\n")
}
