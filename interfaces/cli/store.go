package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibmi-agents/db2i-go/domain/cache"
	"github.com/ibmi-agents/db2i-go/domain/note"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage"
)

// withStorage opens the configured stores for the duration of fn.
func (a *App) withStorage(ctx context.Context, fn func(*storage.Backends) error) error {
	b, err := a.storageOnly(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close(ctx) }()
	return fn(b)
}

type sessionsListOptions struct {
	limit int
}

// newSessionsCmd creates the sessions command group.
func (a *App) newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded tool-call sessions",
	}

	opts := &sessionsListOptions{}
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStorage(cmd.Context(), func(b *storage.Backends) error {
				sessions, err := b.Sessions.List(cmd.Context(), opts.limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ID\tAGENT\tCREATED")
				for _, s := range sessions {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Agent, s.CreatedAt.Local().Format(time.DateTime))
				}
				return w.Flush()
			})
		},
	}
	list.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of sessions")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session with its entries as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStorage(cmd.Context(), func(b *storage.Backends) error {
				s, err := b.Sessions.Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("session %s: %w", args[0], err)
				}
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			})
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

// newNotesCmd creates the notes command group.
func (a *App) newNotesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Manage notes shared with the MCP add-note tool",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStorage(cmd.Context(), func(b *storage.Backends) error {
				notes, err := b.Notes.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, n := range notes {
					_, _ = fmt.Fprintf(a.stdout, "%s: %s\n", n.Name, n.Content)
				}
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <name> <content>",
		Short: "Add or replace a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := note.Note{Name: args[0], Content: args[1], UpdatedAt: time.Now().UTC()}
			if err := n.Validate(); err != nil {
				return err
			}
			return a.withStorage(cmd.Context(), func(b *storage.Backends) error {
				if err := b.Notes.Put(cmd.Context(), n); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.stdout, "Added note '%s' with content: %s\n", n.Name, n.Content)
				return nil
			})
		},
	}

	cmd.AddCommand(list, add)
	return cmd
}

type cacheClearOptions struct {
	all bool
}

// newCacheCmd creates the cache command group.
func (a *App) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached tool results",
	}

	opts := &cacheClearOptions{}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop cached results for the current schema",
		Long: `Drop the cached tool results recorded for --schema (or $SCHEMA).
With --all, results of every schema are dropped.

Examples:
  db2i cache clear --schema SAMPLE
  db2i cache clear --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStorage(cmd.Context(), func(b *storage.Backends) error {
				if b.Cache == nil {
					_, _ = fmt.Fprintln(a.stdout, "Caching is disabled (CACHE_BACKEND=none)")
					return nil
				}
				prefix, scope := cache.SchemaPrefix(a.settings.Schema), "schema "+a.settings.Schema
				if opts.all {
					prefix, scope = cache.Prefix, "all schemas"
				}
				n, err := b.Cache.Invalidate(cmd.Context(), prefix)
				if err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				_, _ = fmt.Fprintf(a.stdout, "Removed %d cached results for %s\n", n, scope)
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&opts.all, "all", false, "Drop results of every schema")

	cmd.AddCommand(clearCmd)
	return cmd
}
