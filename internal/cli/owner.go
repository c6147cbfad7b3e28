package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/eventmerge/internal/model"
	"github.com/roach88/eventmerge/internal/service"
)

// OwnerOptions holds flags for the owner subcommands.
type OwnerOptions struct {
	*RootOptions
	Name string
}

// NewOwnerCommand creates the owner command group.
func NewOwnerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Create, inspect and delete owners",
	}

	cmd.AddCommand(newOwnerCreateCommand(rootOpts))
	cmd.AddCommand(newOwnerGetCommand(rootOpts))
	cmd.AddCommand(newOwnerDeleteCommand(rootOpts))

	return cmd
}

func newOwnerCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OwnerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an owner",
		Long: `Create an owner. Owners hold records and can be referenced as
participants of other owners' records.

Example:
  eventmerge owner create --name "Ann"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createOwner(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "owner display name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func createOwner(opts *OwnerOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	return withApp(opts.RootOptions, func(a *app) error {
		owner, err := a.service.CreateOwner(commandContext(cmd), service.CreateOwnerInput{Name: opts.Name})
		if err != nil {
			return reportError(f, "failed to create owner", err)
		}
		if f.Format == "json" {
			return f.Success(owner)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created owner %s (%s)\n", owner.ID, owner.Name)
		return nil
	})
}

func newOwnerGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <owner-id>",
		Short:         "Show an owner and its records",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getOwner(rootOpts, args[0], cmd)
		},
	}
}

func getOwner(opts *RootOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withApp(opts, func(a *app) error {
		detail, err := a.service.FindOwner(commandContext(cmd), id)
		if err != nil {
			return reportError(f, "failed to get owner", err)
		}
		if f.Format == "json" {
			return f.Success(detail)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Owner %s (%s)\n", detail.Owner.ID, detail.Owner.Name)
		writeRecords(w, detail.Records)
		return nil
	})
}

func newOwnerDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <owner-id>",
		Short: "Delete an owner",
		Long: `Delete an owner together with its records. The owner is also removed
from the participants of every other record.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return deleteOwner(rootOpts, args[0], cmd)
		},
	}
}

func deleteOwner(opts *RootOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	return withApp(opts, func(a *app) error {
		if err := a.service.RemoveOwner(commandContext(cmd), id); err != nil {
			return reportError(f, "failed to delete owner", err)
		}
		if f.Format == "json" {
			return f.Success(map[string]string{"deleted": id})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted owner %s\n", id)
		return nil
	})
}

// writeRecords prints one line per record in the order given.
func writeRecords(w io.Writer, records []model.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "  (no records)")
		return
	}
	for _, r := range records {
		writeRecord(w, r)
	}
}

func writeRecord(w io.Writer, r model.Record) {
	fmt.Fprintf(w, "  %s  %s .. %s  %-11s  %s\n",
		r.ID,
		r.StartTime.UTC().Format(time.RFC3339),
		r.EndTime.UTC().Format(time.RFC3339),
		r.Status,
		r.Title,
	)
	if len(r.Participants) > 0 {
		names := make([]string, len(r.Participants))
		for i, p := range r.Participants {
			names[i] = p.Name
		}
		fmt.Fprintf(w, "      participants: %v\n", names)
	}
}
