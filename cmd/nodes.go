package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/agentic-research/florg/internal/service"
	"github.com/spf13/cobra"
)

// pathArg returns args[0] or the root.
func pathArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func label(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	register(
		newShowCmd,
		newTreeCmd,
		newSetCmd,
		newRmCmd,
		newMvCmd,
		newNextCmd,
		newEditCmd,
	)
}

func newShowCmd(o *options) *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "show [path]",
		Short: "Print a note with its breadcrumbs and children",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				view, err := svc.GetNode(pathArg(args))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, view)
				}
				var crumbs []string
				for _, l := range view.Levels {
					crumbs = append(crumbs, fmt.Sprintf("%s %s", l.Component, l.Title))
				}
				if len(crumbs) > 0 {
					fmt.Fprintf(out, "%s\n\n", strings.Join(crumbs, " > "))
				}
				if view.Node == nil {
					fmt.Fprintf(out, "(no note at %s)\n", label(pathArg(args)))
				} else {
					fmt.Fprintf(out, "%s\n", view.Node.Raw)
				}
				if len(view.Children) > 0 {
					fmt.Fprintln(out)
				}
				for _, c := range view.Children {
					fmt.Fprintf(out, "  %-8s %s\n", c.Path, c.Header.Title)
				}
				return nil
			})
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "Print the view as JSON")
	return c
}

func newTreeCmd(o *options) *cobra.Command {
	var depth int
	c := &cobra.Command{
		Use:   "tree [path]",
		Short: "Print the titles below a note",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				return printTree(cmd.OutOrStdout(), svc, pathArg(args), 0, depth)
			})
		},
	}
	c.Flags().IntVar(&depth, "depth", 0, "Maximum depth, 0 for unlimited")
	return c
}

func printTree(w io.Writer, svc *service.Service, path string, level, maxDepth int) error {
	view, err := svc.GetNode(path)
	if err != nil {
		return err
	}
	title := ""
	if view.Node != nil {
		title = view.Node.Header.Title
	}
	fmt.Fprintf(w, "%s%s  %s\n", strings.Repeat("  ", level), label(path), title)
	if maxDepth > 0 && level >= maxDepth {
		return nil
	}
	for _, c := range view.Children {
		if err := printTree(w, svc, c.Path, level+1, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

// readText joins args, or reads stdin for "-" or no args.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func newSetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> [text|-]",
		Short: "Create or replace a note; text comes from stdin without arguments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args[1:])
			if err != nil {
				return err
			}
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				n, err := svc.ChangeNodeText(ctx, args[0], text)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", label(n.Path), n.Header.Title)
				return nil
			})
		},
	}
}

func newRmCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a note and everything below it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				return svc.DeleteNode(ctx, args[0])
			})
		},
	}
}

func newMvCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Move a note and its subtree to a free path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				return svc.MoveNode(ctx, args[0], args[1])
			})
		},
	}
}

func newNextCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "next [path]",
		Short: "Print the first free child path below a note",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				next, err := svc.FindNextEmptyChild(pathArg(args))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), next)
				return nil
			})
		},
	}
}

func newEditCmd(o *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "edit",
		Short: "Edit a note through a temp file opened by your own editor",
	}
	c.AddCommand(&cobra.Command{
		Use:   "begin <path>",
		Short: "Write the edit file and print its location and first content line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				session, err := svc.BeginEdit(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%d\n", session.File, session.Line)
				return nil
			})
		},
	})

	var abort bool
	finish := &cobra.Command{
		Use:   "finish <path>",
		Short: "Store the edit file as the note, or drop it with --abort",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				file, err := svc.EditFile(args[0])
				if err != nil {
					return err
				}
				data, readErr := os.ReadFile(file)
				if readErr != nil && !os.IsNotExist(readErr) {
					return readErr
				}
				changed, err := svc.FinishEdit(ctx, args[0], string(data), !abort && readErr == nil)
				if err != nil {
					return err
				}
				if changed {
					fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", label(args[0]))
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "unchanged")
				}
				return nil
			})
		},
	}
	finish.Flags().BoolVar(&abort, "abort", false, "Discard the edit")
	c.AddCommand(finish)
	return c
}
