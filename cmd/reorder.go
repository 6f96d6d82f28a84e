package cmd

import (
	"context"
	"fmt"

	"github.com/agentic-research/florg/internal/service"
	"github.com/spf13/cobra"
)

func init() {
	register(
		newUpCmd,
		newDownCmd,
		newSortCmd,
		newCompactCmd,
		newRecoverCmd,
	)
}

func newUpCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up <path>",
		Short: "Swap a note with its previous sibling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				return svc.SwapPrevious(ctx, args[0])
			})
		},
	}
}

func newDownCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "down <path>",
		Short: "Swap a note with its next sibling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				return svc.SwapNext(ctx, args[0])
			})
		},
	}
}

func newSortCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sort [path]",
		Short: "Order the children of a note by title",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				moved, err := svc.SortChildren(ctx, pathArg(args))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d moved\n", moved)
				return nil
			})
		},
	}
}

func newCompactCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compact [path]",
		Short: "Renumber the children of a note without gaps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				moved, err := svc.CompactChildren(ctx, pathArg(args))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d moved\n", moved)
				return nil
			})
		},
	}
}

func newRecoverCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Return notes left behind by an interrupted reorder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				moved, err := svc.Recover(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d recovered\n", moved)
				return nil
			})
		},
	}
}
