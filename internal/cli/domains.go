package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacentio/ordinal/order"
	"github.com/jacentio/ordinal/store"
)

// tableWait bounds how long init waits for a new DynamoDB table.
const tableWait = 2 * time.Minute

// NewResequenceCommand creates the resequence command.
func NewResequenceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resequence <kind> <scope>",
		Short: "Rewrite a domain's positions to 0..N-1",
		Long: `Rewrite a domain's positions to 0..N-1 in read order.

Read order is position, then creation time, then id, so duplicates keep
the order in which they were created.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDomain(args[0], args[1])
			if err != nil {
				return err
			}

			return opts.withSession(cmd, func(ctx context.Context, s *Session, out *OutputFormatter) error {
				res, err := s.Orderer.Resequence(ctx, d)
				if err != nil {
					return err
				}
				return out.Success(newResultView(res), func(w io.Writer) {
					fmt.Fprintf(w, "resequenced %s (%d changes)\n", d, len(res.Changes))
				})
			})
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind> <scope>",
		Short: "List the items of a domain in order",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDomain(args[0], args[1])
			if err != nil {
				return err
			}

			return opts.withSession(cmd, func(ctx context.Context, s *Session, out *OutputFormatter) error {
				items, err := s.Orderer.List(ctx, d)
				if err != nil {
					return err
				}
				views := make([]itemView, len(items))
				for i, it := range items {
					views[i] = newItemView(it)
				}
				return out.Success(views, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "POSITION\tID")
					for _, it := range items {
						fmt.Fprintf(tw, "%d\t%s\n", it.Position, it.ID)
					}
					tw.Flush()
				})
			})
		},
	}
}

type reportView struct {
	Domain string `json:"domain"`
	order.Report
}

// NewCheckCommand creates the check command.
func NewCheckCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <kind> <scope>",
		Short: "Report gaps and duplicate positions in a domain",
		Long: `Report gaps and duplicate positions in a domain without changing it.

Exits with status 1 when the domain is not dense.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDomain(args[0], args[1])
			if err != nil {
				return err
			}

			return opts.withSession(cmd, func(ctx context.Context, s *Session, out *OutputFormatter) error {
				report, err := s.Orderer.Check(ctx, d)
				if err != nil {
					return err
				}
				err = out.Success(reportView{Domain: d.Key(), Report: report}, func(w io.Writer) {
					writeReport(w, report)
				})
				if err != nil {
					return err
				}
				if !report.Dense {
					return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%s is not dense", d), Quiet: true}
				}
				return nil
			})
		},
	}
}

func writeReport(w io.Writer, r order.Report) {
	if r.Dense {
		fmt.Fprintf(w, "%s: dense (%d items)\n", r.Domain, r.Size)
		return
	}
	fmt.Fprintf(w, "%s: not dense (%d items)\n", r.Domain, r.Size)
	for _, g := range r.Gaps {
		fmt.Fprintf(w, "  gap: positions %d-%d missing\n", g.Start, g.End)
	}
	for _, p := range r.Duplicates {
		fmt.Fprintf(w, "  duplicate: position %d\n", p)
	}
	for _, id := range r.Negative {
		fmt.Fprintf(w, "  negative: %s\n", id)
	}
}

// NewRepairCommand creates the repair command.
func NewRepairCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Resequence every domain that is not dense",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *Session, out *OutputFormatter) error {
				repaired, err := s.Orderer.Repair(ctx)
				if err != nil {
					return err
				}
				return out.Success(map[string]int{"repaired": repaired}, func(w io.Writer) {
					fmt.Fprintf(w, "repaired %d domains\n", repaired)
				})
			})
		},
	}
}

// NewInitCommand creates the init command.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Prepare the configured backend",
		Long: `Prepare the configured backend.

SQLite databases are created and migrated on open. For DynamoDB the
ordering table is created with a stream for the compactor.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *Session, out *OutputFormatter) error {
				if s.Tables != nil {
					if err := store.CreateTable(ctx, s.Tables, s.Table, tableWait); err != nil {
						return err
					}
				}
				return out.Success(map[string]string{"backend": opts.Config.Backend}, func(w io.Writer) {
					fmt.Fprintf(w, "%s backend ready\n", opts.Config.Backend)
				})
			})
		},
	}
}
