package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/eventmerge/internal/service"
)

// RecordOptions holds flags for the record create command.
type RecordOptions struct {
	*RootOptions
	Owner        string
	Title        string
	Description  string
	Status       string
	Start        string
	End          string
	Participants []string
}

// NewRecordCommand creates the record command group.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Create, inspect and delete records",
	}

	cmd.AddCommand(newRecordCreateCommand(rootOpts))
	cmd.AddCommand(newRecordGetCommand(rootOpts))
	cmd.AddCommand(newRecordDeleteCommand(rootOpts))

	return cmd
}

func newRecordCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record for an owner",
		Long: `Create a time-bounded record for an owner.

Times are RFC 3339. When --status is omitted it is derived from the window:
TODO before it starts, IN_PROGRESS while it runs, COMPLETED after it ends.

Example:
  eventmerge record create --owner <id> --title "Standup" \
    --start 2023-11-27T09:00:00Z --end 2023-11-27T09:15:00Z \
    --participant <id> --participant <id>`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createRecord(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owning owner ID (required)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "record title (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "record description")
	cmd.Flags().StringVar(&opts.Status, "status", "", "TODO, IN_PROGRESS or COMPLETED (derived when empty)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start time, RFC 3339 (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "end time, RFC 3339 (required)")
	cmd.Flags().StringArrayVar(&opts.Participants, "participant", nil, "participant owner ID (repeatable)")
	for _, name := range []string{"owner", "title", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func createRecord(opts *RecordOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	start, err := parseFlagTime("start", opts.Start)
	if err != nil {
		return reportError(f, "invalid --start", err)
	}
	end, err := parseFlagTime("end", opts.End)
	if err != nil {
		return reportError(f, "invalid --end", err)
	}

	return withApp(opts.RootOptions, func(a *app) error {
		rec, err := a.service.CreateRecord(commandContext(cmd), service.CreateRecordInput{
			OwnerID:      opts.Owner,
			Title:        opts.Title,
			Description:  opts.Description,
			Status:       opts.Status,
			StartTime:    start,
			EndTime:      end,
			Participants: opts.Participants,
		})
		if err != nil {
			return reportError(f, "failed to create record", err)
		}
		if f.Format == "json" {
			return f.Success(rec)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created record %s\n", rec.ID)
		writeRecord(cmd.OutOrStdout(), rec)
		return nil
	})
}

// parseFlagTime parses an RFC 3339 flag value. Failures are reported as
// validation errors so they map to a command error.
func parseFlagTime(flag, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &service.ValidationError{Field: flag, Message: "must be an RFC 3339 time"}
	}
	return t, nil
}

func newRecordGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <record-id>",
		Short:         "Show a record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getRecord(rootOpts, args[0], cmd)
		},
	}
}

func getRecord(opts *RootOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withApp(opts, func(a *app) error {
		rec, err := a.service.FindRecord(commandContext(cmd), id)
		if err != nil {
			return reportError(f, "failed to get record", err)
		}
		if f.Format == "json" {
			return f.Success(rec)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Record %s (owner %s)\n", rec.ID, rec.OwnerID)
		writeRecord(w, rec)
		if rec.Description != "" {
			fmt.Fprintf(w, "\n%s\n", rec.Description)
		}
		return nil
	})
}

func newRecordDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <record-id>",
		Short:         "Delete a record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return deleteRecord(rootOpts, args[0], cmd)
		},
	}
}

func deleteRecord(opts *RootOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withApp(opts, func(a *app) error {
		if err := a.service.RemoveRecord(commandContext(cmd), id); err != nil {
			return reportError(f, "failed to delete record", err)
		}
		if f.Format == "json" {
			return f.Success(map[string]string{"deleted": id})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %s\n", id)
		return nil
	})
}
