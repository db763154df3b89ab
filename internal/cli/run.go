package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacentio/ordinal/order"
)

// Execute runs the CLI with args and returns the process exit code.
// Errors are reported on stderr, or on stdout as JSON with --format json.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{Open: OpenBackend}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format := opts.Format
	if format != "json" {
		format = "text"
	}
	f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr}
	f.Error(err)
	return GetExitCode(err)
}

// withSession opens the backend for the duration of fn.
func (o *RootOptions) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *Session, out *OutputFormatter) error) error {
	ctx := cmd.Context()
	logger := o.Logger(cmd.ErrOrStderr())

	s, err := o.Open(ctx, o.Config, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open backend", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("failed to close backend", "error", err)
		}
	}()

	if err := fn(ctx, s, o.formatter(cmd)); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return WrapExitError(ExitFailure, cmd.Name()+" failed", err)
	}
	return nil
}

type itemView struct {
	ID        string    `json:"id"`
	Position  int       `json:"position"`
	Version   int64     `json:"version,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type resultView struct {
	Domain  string         `json:"domain"`
	Item    *itemView      `json:"item,omitempty"`
	Changes []order.Change `json:"changes"`
}

func newItemView(it order.Item) itemView {
	return itemView{
		ID:        it.ID,
		Position:  it.Position,
		Version:   it.Version,
		CreatedAt: it.CreatedAt,
	}
}

func newResultView(res *order.Result) resultView {
	v := resultView{
		Domain:  res.Domain.Key(),
		Changes: res.Changes,
	}
	if v.Changes == nil {
		v.Changes = []order.Change{}
	}
	if res.Item != nil {
		iv := newItemView(*res.Item)
		v.Item = &iv
	}
	return v
}
