package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/ordersync/internal/model"
)

// PlaceOptions holds flags for the place command.
type PlaceOptions struct {
	*RootOptions
	CustomerID   string
	CustomerName string
	Table        int
	Lines        []string // "id,name,price,qty"
}

// NewPlaceCommand creates the place command.
func NewPlaceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlaceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place a new order",
		Long: `Place a new pending order for a customer.

Each --line is "menu-id,name,price,quantity". Prices are decimal strings
and are copied into the order, so later menu changes do not affect it.

Example:
  ordersync place --customer c-42 --name Alice --table 4 \
    --line "burger,Burger,8.50,2" --line "fries,Fries,3.00,1"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CustomerID, "customer", "", "customer id (required)")
	cmd.Flags().StringVar(&opts.CustomerName, "name", "", "customer name")
	cmd.Flags().IntVar(&opts.Table, "table", 0, "table number")
	cmd.Flags().StringArrayVar(&opts.Lines, "line", nil, `order line "menu-id,name,price,quantity" (repeatable)`)
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("line")

	return cmd
}

func runPlace(opts *PlaceOptions, cmd *cobra.Command) error {
	lines := make([]model.CartLine, 0, len(opts.Lines))
	for _, raw := range opts.Lines {
		l, err := parseLine(raw)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --line", err)
		}
		lines = append(lines, l)
	}
	customer := model.Customer{ID: opts.CustomerID, Name: opts.CustomerName, TableNumber: opts.Table}

	f := opts.formatter(cmd)
	return withRuntime(cmd, opts.RootOptions, func(ctx context.Context, rt *peerRuntime) error {
		o, err := rt.engine.CreateOrder(ctx, lines, customer)
		if err != nil {
			return f.Rejected("place", err)
		}
		return f.Success(orderOutcome{Order: &o, OrderID: o.ID, Action: "place", LocalOnly: rt.localOnly()})
	})
}

// parseLine parses "id,name,price,qty".
func parseLine(raw string) (model.CartLine, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return model.CartLine{}, fmt.Errorf("%q: want menu-id,name,price,quantity", raw)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" {
		return model.CartLine{}, fmt.Errorf("%q: menu id is empty", raw)
	}
	price, err := decimal.NewFromString(parts[2])
	if err != nil {
		return model.CartLine{}, fmt.Errorf("%q: invalid price: %w", raw, err)
	}
	if price.IsNegative() {
		return model.CartLine{}, fmt.Errorf("%q: price must not be negative", raw)
	}
	qty, err := strconv.Atoi(parts[3])
	if err != nil {
		return model.CartLine{}, fmt.Errorf("%q: invalid quantity: %w", raw, err)
	}
	return model.CartLine{
		MenuItem: model.MenuItem{ID: parts[0], Name: parts[1], Price: price},
		Quantity: qty,
	}, nil
}
