// Command cartctl inspects and edits the persisted cart from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gofalre.io/marketplace"
	"gofalre.io/marketplace/cart"
	"gofalre.io/marketplace/config"
	"gofalre.io/marketplace/event"
	"gofalre.io/marketplace/logging"
	"gofalre.io/marketplace/models"
)

var configPath string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cartctl",
		Short:        "Inspect and edit the GoMarketplace cart",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print the cart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStore(cmd, func(*cart.Store) error { return nil })
			},
		},
		newAddCmd(),
		&cobra.Command{
			Use:   "inc <product-id>",
			Short: "Increase the quantity of a product",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(s *cart.Store) error { return s.Increment(args[0]) })
			},
		},
		&cobra.Command{
			Use:   "dec <product-id>",
			Short: "Decrease the quantity of a product, removing it at zero",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(s *cart.Store) error { return s.Decrement(args[0]) })
			},
		},
		newResetCmd(),
		newWatchCmd(),
	)
	return root
}

func newAddCmd() *cobra.Command {
	var input models.ProductInput
	var price string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product, or one more of it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := models.ParsePrice(price)
			if err != nil {
				return err
			}
			input.Price = p
			return withStore(cmd, func(s *cart.Store) error { return s.AddToCart(input) })
		},
	}
	cmd.Flags().StringVar(&input.ID, "id", "", "product id")
	cmd.Flags().StringVar(&input.Title, "title", "", "product title")
	cmd.Flags().StringVar(&input.ImageURL, "image-url", "", "product image URL")
	cmd.Flags().StringVar(&price, "price", "0", "product price")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the persisted cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, logger, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			defer closeApp(app, logger)

			return app.Repository.Delete(cmd.Context())
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print cart events published on NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.NATS.URL == "" {
				return fmt.Errorf("nats.url (or CART_NATS_URL) is required to watch events")
			}
			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			nc, err := event.Connect(cfg.NATS.URL, logger)
			if err != nil {
				return err
			}
			defer nc.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			sub, err := event.Watch(nc, logger, func(msg event.Message) {
				_ = enc.Encode(msg)
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe() //nolint:errcheck

			<-cmd.Context().Done()
			return nil
		},
	}
}

func openApp(ctx context.Context) (*marketplace.App, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	app, err := marketplace.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app, logger, nil
}

func closeApp(app *marketplace.App, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		logger.Error("Failed to close cart", zap.Error(err))
	}
}

// withStore loads the cart, applies fn, waits for the snapshot to be written
// and prints the resulting cart.
func withStore(cmd *cobra.Command, fn func(*cart.Store) error) error {
	ctx := cmd.Context()

	app, logger, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	defer closeApp(app, logger)

	if err = app.Start(ctx); err != nil {
		return err
	}
	if err = fn(app.Store); err != nil {
		return err
	}
	if err = app.Store.Flush(ctx); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(app.Store.Products())
}
