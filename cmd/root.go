package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/agentic-research/florg/internal/service"
	"github.com/agentic-research/florg/internal/store"
	"github.com/agentic-research/florg/internal/versioning"
	"github.com/spf13/cobra"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	dataPath  string
	gitBinary string
	verbose   bool

	// bridge replaces git when set; used by tests.
	bridge versioning.Bridge
	logger *slog.Logger
}

func defaultDataPath() string {
	if p := os.Getenv("FLORG_DATA"); p != "" {
		return p
	}
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, "florg")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "florg"
	}
	return filepath.Join(home, ".local", "state", "florg")
}

// open loads the data root, prepares its repository and hands back the
// facade with a close function.
func (o *options) open(ctx context.Context) (*service.Service, func(), error) {
	st, err := store.Open(o.dataPath, store.Options{
		Bridge:    o.bridge,
		GitBinary: o.gitBinary,
		Logger:    o.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", o.dataPath, err)
	}
	if err := st.Init(ctx); err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return service.New(st, nil), func() { _ = st.Close() }, nil
}

// withService runs fn against an opened data root.
func (o *options) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}

// commands holds the subcommand constructors; each command file adds its
// own in init.
var commands []func(*options) *cobra.Command

func register(fns ...func(*options) *cobra.Command) {
	commands = append(commands, fns...)
}

func newRootCmd(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "florg",
		Short:         "florg: a tree of plain-text notes with full history",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if o.logger != nil {
				return
			}
			level := slog.LevelWarn
			if o.verbose {
				level = slog.LevelDebug
			}
			o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}
	root.PersistentFlags().StringVarP(&o.dataPath, "data", "d", defaultDataPath(), "Path to the data root")
	root.PersistentFlags().StringVar(&o.gitBinary, "git", "", "git executable (default: settings, then PATH)")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Log debug output")

	for _, fn := range commands {
		root.AddCommand(fn(o))
	}
	return root
}

// Execute builds the root command and runs it.
func Execute() {
	rootCmd := newRootCmd(&options{})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
