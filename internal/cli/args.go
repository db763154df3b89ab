package cli

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacentio/ordinal/order"
)

// usageArgs wraps a cobra argument validator so that failures exit with
// ExitCommandError.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

func parseDomain(kind, scope string) (order.Domain, error) {
	d, err := order.NewDomain(kind, scope)
	if err != nil {
		return order.Domain{}, WrapExitError(ExitCommandError, "invalid domain", err)
	}
	return d, nil
}

// parsePosition accepts a non-negative integer or "end".
func parsePosition(s string) (int, error) {
	if strings.EqualFold(s, "end") {
		return math.MaxInt, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, NewExitError(ExitCommandError, "position must be a non-negative integer or \"end\", got "+strconv.Quote(s))
	}
	return n, nil
}
