package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentic-research/florg/internal/service"
	"github.com/spf13/cobra"
)

func init() {
	register(
		newHistoryCmd,
		newUndoCmd,
	)
}

func newHistoryCmd(o *options) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	c := &cobra.Command{
		Use:   "history",
		Short: "List recorded changes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				entries, err := svc.History(ctx, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, entries)
				}
				for _, e := range entries {
					subject, _, _ := strings.Cut(e.Message, "\n")
					fmt.Fprintf(out, "%.7s  %s  %s\n", e.Hash, e.Date.Format(time.DateTime), subject)
				}
				return nil
			})
		},
	}
	c.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries, 0 for all")
	c.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return c
}

func newUndoCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <hash>",
		Short: "Restore the tree as it was at a recorded change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				return svc.Undo(ctx, args[0])
			})
		},
	}
}
