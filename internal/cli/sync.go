package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pos-terminal/internal/remote"
	"pos-terminal/internal/services/syncer"
)

// NewSyncCommand creates the one-shot sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push queued orders to the back office once and exit",
		Long: `Push queued orders to the back office once and exit.

Rejected orders are retried too. Run this while the terminal is stopped; a
running terminal syncs by itself and accepts POST /sync.

Exits 1 when any order is left pending.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts)
		},
	}
}

func runSync(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log := opts.newLogger("pos-sync", os.Stderr)
	ctx := cmd.Context()

	store, err := openLocal(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	if store.queue.Len() == 0 {
		out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return out.Success(syncer.PassResult{Manual: true}, "Nothing to sync.")
	}

	backOffice := remote.NewLazy(dialRemote(cfg, log))
	defer backOffice.Close(context.Background())

	conn, publisher := connectBroker(ctx, cfg, log)
	if conn != nil {
		defer conn.Close()
	}

	writer := syncer.NewWriter(backOffice, announcer(publisher), log, cfg.Remote.WriteTimeout)
	coordinator := syncer.NewCoordinator(store.queue, writer, nil, log, 0)

	result, _ := coordinator.SyncNow(ctx)

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	text := fmt.Sprintf("Synced %d of %d order(s) in %s; %d pending.",
		result.Synced, result.Attempted, result.Duration, result.Pending)
	if err := out.Success(result, text); err != nil {
		return err
	}
	if result.Pending > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d order(s) still pending", result.Pending))
	}
	return nil
}
