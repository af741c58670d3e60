package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pos-terminal/internal/messaging"
	"pos-terminal/internal/services/notification"
)

// NewEventsCommand creates the events tail command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow sync events from every terminal over RabbitMQ",
		Long: `Follow sync events from every terminal over RabbitMQ.

Each invocation binds its own temporary queue to the sync fanout, so any
number of displays can follow at once. Stop with Ctrl-C.

Example:
  pos events
  pos events --format json | jq .`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.RabbitMQ.Enabled {
				return NewExitError(ExitCommandError, "rabbitmq is disabled in the configuration")
			}
			log := rootOpts.newLogger("pos-events", os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conn, err := messaging.New(ctx, cfg, log)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to connect to rabbitmq", err)
			}
			consumer := messaging.NewConsumer(conn, log, fmt.Sprintf("pos-events-%d", os.Getpid()))
			defer consumer.Close()

			sub := notification.NewSubscriber(consumer, cmd.OutOrStdout(), rootOpts.Format == "json", log)
			if err := sub.Start(ctx); err != nil {
				return WrapExitError(ExitFailure, "event stream failed", err)
			}
			return nil
		},
	}
}
