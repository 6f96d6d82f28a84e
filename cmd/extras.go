package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentic-research/florg/internal/service"
	"github.com/spf13/cobra"
)

const welcome = `Welcome to florg

Every note has a title line and any text below it. Notes nest: "A" is the
first child of this note, "AB" the second child of "A".`

func init() {
	register(
		newInitCmd,
		newCacheCmd,
		newExportCmd,
		newCalendarCmd,
		newSearchCmd,
		newSettingsCmd,
		newListsCmd,
		newReloadCmd,
	)
}

func newInitCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the data root with its repository and a welcome note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				view, err := svc.GetNode("")
				if err != nil {
					return err
				}
				if view.Node == nil || view.Node.Placeholder {
					if _, err := svc.ChangeNodeText(ctx, "", welcome); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", svc.Storage().Root())
				return nil
			})
		},
	}
}

func newCacheCmd(o *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "cache",
		Short: "Read or write the rendered form of a note",
	}
	c.AddCommand(&cobra.Command{
		Use:   "get <path>",
		Short: "Print the cached rendering if it matches the current text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				payload, ok, err := svc.GetCached(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no current rendering for %s", label(args[0]))
				}
				fmt.Fprint(cmd.OutOrStdout(), payload)
				return nil
			})
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "set <path> [payload|-]",
		Short: "Store a rendering for the current text of a note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readText(cmd, args[1:])
			if err != nil {
				return err
			}
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				view, err := svc.GetNode(args[0])
				if err != nil {
					return err
				}
				raw := ""
				if view.Node != nil {
					raw = view.Node.Raw
				}
				return svc.SetCached(args[0], raw, payload)
			})
		},
	})
	return c
}

func newExportCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export <output.db>",
		Short: "Write every note into a SQLite catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				start := time.Now()
				n, err := svc.Export(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d notes to %s in %v.\n", n, args[0], time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
}

func newCalendarCmd(o *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "calendar <path> <year>",
		Short: "Fill an empty note with month and day notes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("year %q: %w", args[1], err)
			}
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				n, err := svc.CreateCalendar(ctx, args[0], year)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d notes written below %s\n", n, label(args[0]))
				return nil
			})
		},
	}
	c.AddCommand(&cobra.Command{
		Use:   "path [date]",
		Short: "Print the position of a date (YYYY-MM-DD, default today) below a calendar note",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Now()
			if len(args) == 1 {
				var err error
				if date, err = time.Parse(time.DateOnly, args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), service.DateToPath(date))
			return nil
		},
	})
	return c
}

func newSearchCmd(o *options) *cobra.Command {
	var (
		below  string
		asJSON bool
	)
	c := &cobra.Command{
		Use:   "search <term>",
		Short: "Case-insensitive full text search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				results, err := svc.Search(ctx, below, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, results)
				}
				for _, r := range results {
					crumbs := make([]string, 0, len(r.ParentTitles))
					for i := len(r.ParentTitles) - 1; i >= 0; i-- {
						crumbs = append(crumbs, r.ParentTitles[i])
					}
					fmt.Fprintf(out, "%s  %s", label(r.Path), r.Title)
					if len(crumbs) > 0 {
						fmt.Fprintf(out, "  (%s)", strings.Join(crumbs, " > "))
					}
					fmt.Fprintln(out)
					for _, l := range r.Lines {
						fmt.Fprintf(out, "  %d: %s\n", l.Number, l.Text)
					}
				}
				return nil
			})
		},
	}
	c.Flags().StringVar(&below, "below", "", "Only search at and below this path")
	c.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return c
}

func newSettingsCmd(o *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "settings",
		Short: "Print the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				fmt.Fprintln(cmd.OutOrStdout(), svc.Settings())
				return nil
			})
		},
	}
	c.AddCommand(&cobra.Command{
		Use:   "set [file|-]",
		Short: "Replace the settings with the content of a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 && args[0] != "-" {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				raw = string(data)
			} else {
				var err error
				if raw, err = readText(cmd, nil); err != nil {
					return err
				}
			}
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				return svc.StoreSettings(ctx, raw)
			})
		},
	})
	return c
}

func newListsCmd(o *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "lists",
		Short: "Read or replace a named list of paths",
	}
	c.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Args:  cobra.ExactArgs(1),
		Short: "Print a list, one entry per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				entries, err := svc.HistoryGet(args[0])
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintln(cmd.OutOrStdout(), e)
				}
				return nil
			})
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "set <name> [entry...]",
		Args:  cobra.MinimumNArgs(1),
		Short: "Replace a list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				return svc.HistoryStore(args[0], args[1:])
			})
		},
	})
	return c
}

func newReloadCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Load the data root and report skipped or parked entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				report, err := svc.Reload()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d notes\n", svc.Storage().Len())
				for _, s := range report.Skipped {
					fmt.Fprintf(out, "skipped %s: %v\n", s.Dir, s.Err)
				}
				for _, p := range report.StaleSentinels {
					fmt.Fprintf(out, "parked %s (run florg recover)\n", p.Dir())
				}
				return nil
			})
		},
	}
}
