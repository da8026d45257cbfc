package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/ordersync/internal/lifecycle"
	"github.com/roach88/ordersync/internal/model"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Role       string
	CustomerID string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run a long-lived peer and print the board on every change",
		Long: `Run this peer until interrupted.

The peer applies changes published by other peers, runs deferred work
(auto-completion, cancel-window expiry, session clearing) and reprints
the board visible to --role whenever the order list changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Role, "role", string(model.RoleAdmin), "viewing role (admin|waiter|chef|customer)")
	cmd.Flags().StringVar(&opts.CustomerID, "customer", "", "customer id (with --role customer)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	actor, err := (&actorFlags{Role: opts.Role, CustomerID: opts.CustomerID}).actor()
	if err != nil {
		return err
	}

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.SetContext(ctx)

	f := opts.formatter(cmd)
	return runPeer(cmd, opts.RootOptions, true, func(ctx context.Context, rt *peerRuntime) error {
		if rt.peer == nil {
			rt.logger.Info("watching in local-only mode")
		}

		changed := make(chan struct{}, 1)
		detach := rt.engine.OnChange(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		defer detach()

		view := lifecycle.View{Actor: actor}
		g, gctx := errgroup.WithContext(ctx)

		if rt.peer != nil {
			g.Go(func() error {
				err := rt.peer.Run(gctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}

		g.Go(func() error {
			stopSweeper := rt.engine.StartSweeper()
			defer stopSweeper()
			<-gctx.Done()
			return nil
		})

		g.Go(func() error {
			show := func() {
				orders := rt.engine.View(view)
				if f.Format == "json" {
					_ = f.Success(orders)
					return
				}
				fmt.Fprintf(f.Writer, "== %s board ==\n", actor.Role)
				renderBoard(f.Writer, orders)
			}
			show()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-changed:
					show()
				}
			}
		})

		err := g.Wait()
		rt.logger.Info("watch stopped")
		return err
	})
}
