package cli

import (
	"fmt"

	"github.com/orchidnexus/orchid/internal/cli/formatter"
	"github.com/orchidnexus/orchid/internal/gateway"
	"github.com/orchidnexus/orchid/internal/inventory"
	"github.com/spf13/cobra"
)

// inventoryGateway returns the gateway for commands that act on the shared
// ledger rather than a project.
func inventoryGateway(app *App) (*gateway.Gateway, error) {
	if _, err := requireUser(app); err != nil {
		return nil, err
	}
	return app.Session.Gateway()
}

func movementFlags(cmd *cobra.Command, m *inventory.Movement) {
	cmd.Flags().IntVarP(&m.ItemID, "item", "i", 0, "Item ID")
	cmd.Flags().IntVarP(&m.LocationID, "location", "l", 0, "Location ID")
	cmd.Flags().IntVarP(&m.Quantity, "quantity", "q", 0, "Quantity")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("quantity")
}

func newInventoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"inv"},
		Short:   "Stock levels per item and location",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stock for every item and location",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireUser(app); err != nil {
				return err
			}
			records, err := app.Session.Client().ListInventory(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatInventory(records))
			return nil
		},
	}

	var fromServer bool
	alerts := &cobra.Command{
		Use:   "alerts",
		Short: "List records at or below their low-stock threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireUser(app); err != nil {
				return err
			}
			client := app.Session.Client()
			if fromServer {
				records, err := client.LowStockAlerts(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatAlerts(records))
				return nil
			}
			records, err := client.ListInventory(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatAlerts(inventory.ListAlerts(records)))
			return nil
		},
	}
	alerts.Flags().BoolVar(&fromServer, "server", false, "Ask the backend for its alert list instead of deriving it locally")

	var dist inventory.Movement
	distribute := &cobra.Command{
		Use:   "distribute",
		Short: "Log stock leaving a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := inventoryGateway(app)
			if err != nil {
				return err
			}
			rec, err := gw.Distribute(cmd.Context(), dist)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Distributed %d, %d left at location #%d\n", dist.Quantity, rec.Quantity, rec.LocationID)
			if inventory.IsLow(rec) {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.StyleRedBold.Render("Low stock: at or below threshold "+rec.ThresholdLabel()))
			}
			return nil
		},
	}
	movementFlags(distribute, &dist)

	var (
		add       inventory.Movement
		threshold int
	)
	stock := &cobra.Command{
		Use:   "stock",
		Short: "Add stock at a location, optionally setting the alert threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := inventoryGateway(app)
			if err != nil {
				return err
			}
			m := add
			if cmd.Flags().Changed("threshold") {
				m.Threshold = &threshold
			}
			rec, err := gw.Stock(cmd.Context(), m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stocked %d, %d now at location #%d (threshold %s)\n",
				m.Quantity, rec.Quantity, rec.LocationID, rec.ThresholdLabel())
			return nil
		},
	}
	movementFlags(stock, &add)
	stock.Flags().IntVar(&threshold, "threshold", 0, "Low-stock threshold, 0 disables alerts")

	cmd.AddCommand(list, alerts, distribute, stock)
	return cmd
}

func newItemCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Inventory items",
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := inventoryGateway(app)
			if err != nil {
				return err
			}
			it, err := gw.CreateItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added item %s %s\n", formatter.Bold(it.Name), formatter.Dim(fmt.Sprintf("#%d", it.ID)))
			return nil
		},
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireUser(app); err != nil {
				return err
			}
			items, err := app.Session.Client().ListItems(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatItems(items))
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newLocationCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Inventory locations",
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := inventoryGateway(app)
			if err != nil {
				return err
			}
			loc, err := gw.CreateLocation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added location %s %s\n", formatter.Bold(loc.Name), formatter.Dim(fmt.Sprintf("#%d", loc.ID)))
			return nil
		},
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireUser(app); err != nil {
				return err
			}
			locs, err := app.Session.Client().ListLocations(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatLocations(locs))
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
