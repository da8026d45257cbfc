package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ordersync/internal/lifecycle"
	"github.com/roach88/ordersync/internal/model"
)

// actorFlags identifies who performs a mutating command.
type actorFlags struct {
	Role       string
	CustomerID string
}

func (a *actorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.Role, "role", "", "acting role (admin|waiter|chef|customer)")
	cmd.Flags().StringVar(&a.CustomerID, "customer", "", "acting customer id (with --role customer)")
	_ = cmd.MarkFlagRequired("role")
}

func (a *actorFlags) actor() (model.Actor, error) {
	role, err := model.ParseRole(a.Role)
	if err != nil {
		return model.Actor{}, WrapExitError(ExitCommandError, "invalid --role", err)
	}
	if role == model.RoleCustomer && a.CustomerID == "" {
		return model.Actor{}, NewExitError(ExitCommandError, "--customer is required with --role customer")
	}
	return model.Actor{Role: role, CustomerID: a.CustomerID}, nil
}

// orderOutcome is the payload of a successful mutating command.
type orderOutcome struct {
	Order     *model.Order `json:"order,omitempty"`
	OrderID   string       `json:"orderId"`
	Action    string       `json:"action"`
	LocalOnly bool         `json:"localOnly"`
}

func (o orderOutcome) String() string {
	s := fmt.Sprintf("%s %s", o.Action, o.OrderID)
	if o.Order != nil {
		s = fmt.Sprintf("%s: %s, total %s", s, o.Order.Status, o.Order.TotalAmount.StringFixed(2))
	}
	if o.LocalOnly {
		s += " (local only)"
	}
	return s
}

// withRuntime opens a one-shot peer, runs fn, and closes the peer after
// receipt printing has finished. Deferred work is left to long-lived peers.
func withRuntime(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, rt *peerRuntime) error) error {
	return runPeer(cmd, opts, false, fn)
}

func runPeer(cmd *cobra.Command, opts *RootOptions, longLived bool, fn func(ctx context.Context, rt *peerRuntime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openRuntime(ctx, opts, cmd, longLived)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(ctx, rt)
}

// mutate runs an engine operation on one order and reports the result.
func mutate(cmd *cobra.Command, opts *RootOptions, action, orderID string,
	op func(ctx context.Context, e *lifecycle.Engine) error) error {
	f := opts.formatter(cmd)
	return withRuntime(cmd, opts, func(ctx context.Context, rt *peerRuntime) error {
		if err := op(ctx, rt.engine); err != nil {
			return f.Rejected(action, err)
		}
		rt.engine.Wait()
		out := orderOutcome{OrderID: orderID, Action: action, LocalOnly: rt.localOnly()}
		if o, ok := rt.engine.Order(orderID); ok {
			out.Order = &o
		}
		return f.Success(out)
	})
}

// NewAdvanceCommand creates the advance command.
func NewAdvanceCommand(rootOpts *RootOptions) *cobra.Command {
	actor := &actorFlags{}

	cmd := &cobra.Command{
		Use:   "advance <order-id> <status>",
		Short: "Move an order to a new status",
		Long: `Request a status transition for an order.

Each role may only take its own steps: waiters confirm and serve, chefs
prepare and mark ready, admins take any single step or close any order
as completed, and customers may complete their own served order.

Examples:
  ordersync advance 0191e0c4-... confirmed --role waiter
  ordersync advance 0191e0c4-... completed --role customer --customer c-42`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := actor.actor()
			if err != nil {
				return err
			}
			target, err := model.ParseStatus(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid status", err)
			}
			return mutate(cmd, rootOpts, "advance", args[0], func(ctx context.Context, e *lifecycle.Engine) error {
				return e.RequestTransition(ctx, args[0], target, a)
			})
		},
	}
	actor.register(cmd)
	return cmd
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	actor := &actorFlags{}

	cmd := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel a pending order",
		Long: `Cancel a pending order inside its cancel window.

Customers may cancel their own orders; waiters and admins may cancel any.
The cancellation reaches every peer and the order is never restored.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := actor.actor()
			if err != nil {
				return err
			}
			return mutate(cmd, rootOpts, "cancel", args[0], func(ctx context.Context, e *lifecycle.Engine) error {
				return e.CancelOrder(ctx, args[0], a)
			})
		},
	}
	actor.register(cmd)
	return cmd
}

// NewItemCommand creates the item command.
func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	actor := &actorFlags{}

	cmd := &cobra.Command{
		Use:   "item <order-id> <item-id> <increment|decrement|remove>",
		Short: "Change a line of a pending order",
		Long: `Increment, decrement or remove a line of a pending order.

Only waiters may edit items. A decrement to zero removes the line and the
order total is recomputed.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := actor.actor()
			if err != nil {
				return err
			}
			op, err := lifecycle.ParseItemOp(args[2])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid item operation", err)
			}
			return mutate(cmd, rootOpts, "item", args[0], func(ctx context.Context, e *lifecycle.Engine) error {
				return e.ModifyPendingOrderItems(ctx, args[0], args[1], op, a)
			})
		},
	}
	actor.register(cmd)
	return cmd
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Reload orders missing from the shared list",
		Long: `Re-read the local database and merge back any order the shared order
list lost, then publish the repaired list to the other peers.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withRuntime(cmd, rootOpts, func(ctx context.Context, rt *peerRuntime) error {
				n, err := rt.engine.RecoverLostOrders(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "recover failed", err)
				}
				n += rt.loaded
				if rt.peer != nil {
					rt.peer.PublishOrders(ctx)
				}
				if f.Format == "json" {
					return f.Success(map[string]any{
						"recovered": n,
						"orders":    len(rt.engine.Orders()),
						"localOnly": rt.localOnly(),
					})
				}
				return f.Success(fmt.Sprintf("Recovered %d order(s); %d order(s) known", n, len(rt.engine.Orders())))
			})
		},
	}
}
