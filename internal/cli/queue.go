package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pos-terminal/internal/kvstore"
	"pos-terminal/internal/models"
	"pos-terminal/internal/queue"
)

// NewQueueCommand groups the local queue inspection commands.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect orders waiting to reach the back office",
	}
	cmd.AddCommand(newQueueListCommand(rootOpts))
	return cmd
}

// queueRow is one pending order as printed by queue list
type queueRow struct {
	LocalID     string            `json:"local_id"`
	OrderNumber string            `json:"order_number"`
	State       models.QueueState `json:"state"`
	RetryCount  int               `json:"retry_count"`
	ErrorKind   models.ErrorKind  `json:"last_error_kind,omitempty"`
	Error       string            `json:"last_error,omitempty"`
	NeedsReview bool              `json:"needs_review"`
	Total       string            `json:"total"`
	SubmittedAt string            `json:"submitted_at"`
}

func newQueueListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending orders in submission order",
		Long: `List pending orders in submission order.

The queue file is only read, so this is safe while the terminal is running.

Example:
  pos queue list
  pos queue list --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			currency, err := models.NewCurrency(cfg.Terminal.Currency, cfg.Terminal.Locale)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid terminal currency", err)
			}

			if _, err := os.Stat(cfg.Queue.Path); err != nil {
				return WrapExitError(ExitCommandError, "local store not found", err)
			}
			kv, err := kvstore.OpenSQLite(cfg.Queue.Path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open local store", err)
			}
			defer kv.Close()

			entries, err := queue.Read(cmd.Context(), kv, queue.DefaultKey)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read local queue", err)
			}

			rows := make([]queueRow, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, queueRow{
					LocalID:     e.Order.LocalID,
					OrderNumber: e.Order.Number,
					State:       e.State,
					RetryCount:  e.RetryCount,
					ErrorKind:   e.LastErrorKind,
					Error:       e.LastError,
					NeedsReview: e.NeedsReview(),
					Total:       currency.Format(e.Order.Total),
					SubmittedAt: e.SubmittedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(rows, renderQueue(rows))
		},
	}
}

func renderQueue(rows []queueRow) string {
	if len(rows) == 0 {
		return "No pending orders."
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tSUBMITTED\tTOTAL\tSTATE\tRETRIES\tLAST ERROR")
	for _, r := range rows {
		state := string(r.State)
		if r.NeedsReview {
			state = "REVIEW"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", r.OrderNumber, r.SubmittedAt, r.Total, state, r.RetryCount, r.Error)
	}
	w.Flush()
	fmt.Fprintf(&b, "%d pending", len(rows))
	return b.String()
}
