package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/insight/internal/history"
	"github.com/MikeSquared-Agency/insight/internal/query"
)

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect this session's query history",
	}
	cmd.AddCommand(
		newHistoryListCommand(a),
		newHistorySearchCommand(a),
		newHistoryShowCommand(a),
		newHistoryClearCommand(a),
		newHistoryExportCommand(a),
	)
	return cmd
}

// loadHistory fetches the server-side history into a local store.
func (a *app) loadHistory(cmd *cobra.Command) (*history.Store, error) {
	session, err := a.identity.GetOrCreate()
	if err != nil {
		return nil, err
	}
	records, err := a.client.History(cmd.Context(), session)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	store := history.New(session)
	store.Replace(records)
	return store, nil
}

func newHistoryListCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List previous questions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.loadHistory(cmd)
			if err != nil {
				return err
			}
			records := store.All()
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			renderRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n entries")
	return cmd
}

func newHistorySearchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Find previous questions containing term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.loadHistory(cmd)
			if err != nil {
				return err
			}
			renderRecords(cmd.OutOrStdout(), slices.Collect(store.Search(args[0])))
			return nil
		},
	}
}

func newHistoryShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <query-id>",
		Short: "Show one previous answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.loadHistory(cmd)
			if err != nil {
				return err
			}
			rec, err := store.Get(args[0])
			if err != nil {
				return fmt.Errorf("query %q: %w", args[0], err)
			}
			renderRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func newHistoryClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete this session's history on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.identity.GetOrCreate()
			if err != nil {
				return err
			}
			if err := a.client.ClearHistory(cmd.Context(), session); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("history cleared"))
			return nil
		},
	}
}

func newHistoryExportCommand(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export this session's history as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.loadHistory(cmd)
			if err != nil {
				return err
			}

			if output == "" {
				return exportRecords(cmd.OutOrStdout(), format, store.All())
			}
			if err := exportFile(output, format, store.All()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("exported %d entries to %s", store.Len(), output)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format (json, yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

// exportFile writes records to path. The file is closed before returning so a
// failed flush is reported.
func exportFile(path, format string, records []query.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exportRecords(f, format, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exportRecords(w io.Writer, format string, records []query.Record) error {
	if records == nil {
		records = []query.Record{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported format %q (json, yaml)", format)
}
