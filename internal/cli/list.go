package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/ordersync/internal/lifecycle"
	"github.com/roach88/ordersync/internal/model"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Role       string
	CustomerID string
	Statuses   []string
	Search     string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the order board",
		Long: `Show the orders visible to a role.

Customers see their own orders, chefs see the kitchen queue, waiters see
everything not yet completed and admins see everything. --status and
--search narrow the board further; search matches customer name, order id
or table number.

Examples:
  ordersync list --role chef
  ordersync list --role customer --customer c-42
  ordersync list --status pending --status confirmed --search alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Role, "role", string(model.RoleAdmin), "viewing role (admin|waiter|chef|customer)")
	cmd.Flags().StringVar(&opts.CustomerID, "customer", "", "customer id (with --role customer)")
	cmd.Flags().StringSliceVar(&opts.Statuses, "status", nil, "only show these statuses (repeatable)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "free-text search")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	actor, err := (&actorFlags{Role: opts.Role, CustomerID: opts.CustomerID}).actor()
	if err != nil {
		return err
	}
	view := lifecycle.View{Actor: actor, Query: opts.Search}
	for _, s := range opts.Statuses {
		status, err := model.ParseStatus(s)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --status", err)
		}
		view.Statuses = append(view.Statuses, status)
	}

	f := opts.formatter(cmd)
	return withRuntime(cmd, opts.RootOptions, func(ctx context.Context, rt *peerRuntime) error {
		orders := rt.engine.View(view)
		if f.Format == "json" {
			return f.Success(orders)
		}
		renderBoard(f.Writer, orders)
		if rt.localOnly() && rt.peer != nil {
			fmt.Fprintln(f.GetErrWriter(), "shared store unavailable: showing local orders only")
		}
		return nil
	})
}

// renderBoard writes orders as an aligned table followed by a summary line.
func renderBoard(w io.Writer, orders []model.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCUSTOMER\tTABLE\tITEMS\tTOTAL\tCANCEL")
	total := decimal.Zero
	for _, o := range orders {
		items := 0
		for _, it := range o.Items {
			items += it.Quantity
		}
		cancel := "-"
		if o.CanCancel {
			cancel = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			o.ID, o.Status, o.CustomerName, o.TableNumber, items, o.TotalAmount.StringFixed(2), cancel)
		total = total.Add(o.TotalAmount)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\n%d order(s), total %s\n", len(orders), total.StringFixed(2))
}
