package cmd

import (
	"context"

	"github.com/agentic-research/florg/internal/mcpserver"
	"github.com/agentic-research/florg/internal/service"
	"github.com/agentic-research/florg/internal/watch"
	"github.com/spf13/cobra"
)

func init() {
	register(
		newServeCmd,
	)
}

func newServeCmd(o *options) *cobra.Command {
	var watchFS bool
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the notes as MCP tools on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if watchFS {
					w, err := watch.New(svc.Storage().Root(), watch.ReloadFunc(func() error {
						_, err := svc.Reload()
						return err
					}), watch.Options{Logger: o.logger})
					if err != nil {
						return err
					}
					if err := w.Start(ctx); err != nil {
						return err
					}
					defer w.Stop()
				}
				o.logger.Info("serving", "root", svc.Storage().Root(), "watch", watchFS)
				return mcpserver.Serve(mcpserver.New(svc, o.logger))
			})
		},
	}
	c.Flags().BoolVar(&watchFS, "watch", false, "Reload when files change outside florg")
	return c
}
