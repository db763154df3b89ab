package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <kind> <scope> [id]",
		Short: "Append a new item to the end of a domain",
		Long: `Append a new item to the end of a domain.

The item gets position max+1, or 0 in an empty domain. When no id is given
a random UUID is used.

Example:
  ordinal create membership_plan company-42 plan-basic`,
		Args: usageArgs(cobra.RangeArgs(2, 3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDomain(args[0], args[1])
			if err != nil {
				return err
			}
			id := uuid.NewString()
			if len(args) == 3 {
				id = args[2]
			}

			return opts.withSession(cmd, func(ctx context.Context, s *Session, out *OutputFormatter) error {
				res, err := s.Orderer.Create(ctx, d, id)
				if err != nil {
					return err
				}
				return out.Success(newResultView(res), func(w io.Writer) {
					fmt.Fprintf(w, "created %s at position %d in %s\n", res.Item.ID, res.Item.Position, d)
				})
			})
		},
	}
}

// NewMoveCommand creates the move command.
func NewMoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <kind> <scope> <id> <position>",
		Short: "Move an item to a new position",
		Long: `Move an item to a new position, shifting the items in between.

Positions past the end, or "end", move the item to the last position.

Example:
  ordinal move membership_plan company-42 plan-basic 0`,
		Args: usageArgs(cobra.ExactArgs(4)),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDomain(args[0], args[1])
			if err != nil {
				return err
			}
			id := args[2]
			target, err := parsePosition(args[3])
			if err != nil {
				return err
			}

			return opts.withSession(cmd, func(ctx context.Context, s *Session, out *OutputFormatter) error {
				res, err := s.Orderer.Move(ctx, d, id, target)
				if err != nil {
					return err
				}
				return out.Success(newResultView(res), func(w io.Writer) {
					fmt.Fprintf(w, "moved %s to position %d in %s (%d changes)\n", id, res.Item.Position, d, len(res.Changes))
				})
			})
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <kind> <scope> <id>",
		Short: "Remove an item and close its slot",
		Long: `Remove an item and shift every later item down by one.

Example:
  ordinal remove membership_plan company-42 plan-basic`,
		Args: usageArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDomain(args[0], args[1])
			if err != nil {
				return err
			}
			id := args[2]

			return opts.withSession(cmd, func(ctx context.Context, s *Session, out *OutputFormatter) error {
				res, err := s.Orderer.Remove(ctx, d, id)
				if err != nil {
					return err
				}
				return out.Success(newResultView(res), func(w io.Writer) {
					fmt.Fprintf(w, "removed %s from %s (%d changes)\n", id, d, len(res.Changes))
				})
			})
		},
	}
}
