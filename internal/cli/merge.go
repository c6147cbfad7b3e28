package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"

	"github.com/roach88/eventmerge/internal/model"
)

// MergeResult is the JSON payload of the merge command.
type MergeResult struct {
	OwnerID string         `json:"owner_id"`
	Records []model.Record `json:"records"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <owner-id>",
		Short: "Merge an owner's overlapping records",
		Long: `Merge every run of overlapping records of an owner into a single record.

Overlap is inclusive: a record ending exactly when the next one starts is
merged with it. All deletions and insertions happen in one transaction; on
failure the owner's records are left unchanged. Concurrent merges of the same
owner are serialized (across processes when EVENTMERGE_LOCK_BACKEND=redis).

Exit codes:
  0 - Merge committed (or nothing to merge)
  1 - Owner not found, merge rolled back, or merged result unreadable
  2 - Command error (bad configuration, database unavailable)

Example:
  eventmerge merge <owner-id>
  eventmerge merge <owner-id> --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runMerge(opts *RootOptions, ownerID string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withApp(opts, func(a *app) error {
		f.VerboseLog("merging owner %s (lock backend: %s)", ownerID, a.cfg.LockBackend)

		ctx, span, traceID := startSpan(commandContext(cmd), "cli.merge")
		defer span.End()
		f.TraceID = traceID

		records, err := a.service.MergeAll(ctx, ownerID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return reportError(f, "merge failed", err)
		}
		slog.Info("merge complete", "owner_id", ownerID, "records", len(records), "trace_id", traceID)

		if f.Format == "json" {
			return f.Success(MergeResult{OwnerID: ownerID, Records: records})
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Owner %s: %d record(s) after merge\n", ownerID, len(records))
		writeRecords(w, records)
		return nil
	})
}
