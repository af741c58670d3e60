package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pos-terminal/internal/messaging"
	"pos-terminal/internal/services/kitchen"
)

// KitchenOptions holds flags for the kitchen command.
type KitchenOptions struct {
	*RootOptions
	Station  string
	Prefetch int
}

// NewKitchenCommand creates the kitchen ticket printer command.
func NewKitchenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KitchenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "kitchen",
		Short: "Print kitchen tickets for accepted orders",
		Long: `Print kitchen tickets for accepted orders.

Tickets are published once the back office accepts an order. Each station
reads its own durable queue; without --station the expo queue receives
every ticket.

Example:
  pos kitchen
  pos kitchen --station dine_in --prefetch 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.RabbitMQ.Enabled {
				return NewExitError(ExitCommandError, "rabbitmq is disabled in the configuration")
			}
			if _, err := messaging.KitchenQueue(opts.Station); err != nil {
				return WrapExitError(ExitCommandError, "invalid station", err)
			}
			log := opts.newLogger("pos-kitchen", os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conn, err := messaging.New(ctx, cfg, log)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to connect to rabbitmq", err)
			}
			consumer := messaging.NewConsumer(conn, log, fmt.Sprintf("pos-kitchen-%d", os.Getpid()))
			defer consumer.Close()

			worker, err := kitchen.NewWorker(opts.Station, opts.Prefetch, consumer, cmd.OutOrStdout(), log)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid station", err)
			}
			if err := worker.Start(ctx); err != nil {
				return WrapExitError(ExitFailure, "kitchen station failed", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Station, "station", "", "station queue: dine_in, takeout, delivery (default: every ticket)")
	cmd.Flags().IntVar(&opts.Prefetch, "prefetch", 1, "unacknowledged tickets held at once")
	return cmd
}
