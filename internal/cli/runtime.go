package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/ordersync/internal/lifecycle"
	"github.com/roach88/ordersync/internal/model"
	"github.com/roach88/ordersync/internal/peersync"
	"github.com/roach88/ordersync/internal/shared"
	"github.com/roach88/ordersync/internal/store"
)

// redisDialTimeout bounds the startup ping. A shared store that does not
// answer in time is treated as unavailable.
const redisDialTimeout = 2 * time.Second

// peerRuntime is one running peer: durable store, engine and, when the
// shared store is reachable, the sync peer.
type peerRuntime struct {
	store  *store.Store
	engine *lifecycle.Engine
	peer   *peersync.Peer // nil in local-only mode
	shared shared.Store
	logger *slog.Logger

	// loaded counts the orders read from the database at startup.
	loaded int
}

// openRuntime opens the SQLite store, hydrates the engine from it and joins
// the shared store. Only a failure to open the database is fatal. Deferred
// work runs only in a long-lived runtime; one-shot commands exit before it
// could finish.
func openRuntime(ctx context.Context, opts *RootOptions, cmd *cobra.Command, longLived bool) (*peerRuntime, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	rt := &peerRuntime{store: st, logger: logger}
	f := opts.formatter(cmd)
	engineOpts := []lifecycle.Option{
		lifecycle.WithIDs(lifecycle.UUIDv7Generator{}),
		lifecycle.WithNotifier(f.Notifier()),
		lifecycle.WithPrinter(receiptPrinter{f: f}),
		lifecycle.WithSessions(lifecycle.SessionClearerFunc(rt.clearSession)),
		lifecycle.WithSettings(cfg.Lifecycle),
		lifecycle.WithLogger(logger),
	}
	if !longLived {
		engineOpts = append(engineOpts, lifecycle.WithoutDeferredWork())
	}
	rt.engine = lifecycle.New(st, engineOpts...)

	n, err := rt.engine.RecoverLostOrders(ctx)
	if err != nil {
		rt.close()
		return nil, WrapExitError(ExitCommandError, "failed to load orders", err)
	}
	rt.loaded = n
	logger.Debug("orders loaded", "count", n)

	if cfg.Redis.Addr == "" {
		logger.Debug("no shared store configured, running local-only")
		return rt, nil
	}
	rt.join(ctx, opts)
	return rt, nil
}

// join connects to Redis and starts the sync peer. Failure leaves the
// runtime in local-only mode.
func (rt *peerRuntime) join(ctx context.Context, opts *RootOptions) {
	cfg := opts.Config
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	origin := fmt.Sprintf("%s-%s", cfg.Peer, uuid.NewString())
	rs := shared.NewRedis(client, origin,
		shared.WithNamespace(cfg.Redis.Namespace),
		shared.WithLogger(rt.logger),
	)

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		rt.logger.Warn("shared store unavailable, continuing in local-only mode",
			"addr", cfg.Redis.Addr, "error", err)
		_ = rs.Close()
		return
	}

	p := peersync.New(rt.engine, rs, peersync.WithLogger(rt.logger))
	if err := p.Start(ctx); err != nil {
		rt.logger.Warn("sync peer failed to start, continuing in local-only mode", "error", err)
		_ = rs.Close()
		return
	}
	rt.peer = p
	rt.shared = rs
}

func (rt *peerRuntime) clearSession(customerID string) {
	if rt.peer != nil {
		rt.peer.ClearSession(customerID)
	}
}

// localOnly reports whether the runtime has no working shared store.
func (rt *peerRuntime) localOnly() bool {
	return rt.peer == nil || rt.peer.Degraded()
}

func (rt *peerRuntime) close() {
	rt.engine.Close()
	if rt.peer != nil {
		rt.peer.Close()
	}
	if rt.shared != nil {
		if err := rt.shared.Close(); err != nil {
			rt.logger.Debug("error closing shared store", "error", err)
		}
	}
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("error closing database", "error", err)
	}
}

// receiptPrinter writes the bill of a served order to the diagnostic writer.
type receiptPrinter struct {
	f *OutputFormatter
}

func (p receiptPrinter) PrintReceipt(_ context.Context, o model.Order) error {
	w := p.f.GetErrWriter()
	fmt.Fprintf(w, "--- receipt %s ---\n", o.ID)
	fmt.Fprintf(w, "%s, table %d\n", o.CustomerName, o.TableNumber)
	for _, it := range o.Items {
		fmt.Fprintf(w, "  %2d x %-20s %10s\n", it.Quantity, it.MenuItem.Name, it.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(w, "  total %27s\n", o.TotalAmount.StringFixed(2))
	return nil
}
