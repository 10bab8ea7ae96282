package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/insight/internal/dataset"
)

func newDatasetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Upload and inspect datasets",
	}
	cmd.AddCommand(newDatasetUploadCommand(a), newDatasetShowCommand(a), newDatasetDeleteCommand(a))
	return cmd
}

func newDatasetUploadCommand(a *app) *cobra.Command {
	var (
		name  string
		maxMB int
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a CSV, Excel or JSON file",
		Long:  "Upload a dataset for questions. Accepted types: " + strings.Join(dataset.Extensions, " "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.client.UploadDataset(cmd.Context(), args[0], name, int64(maxMB)*1024*1024)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successStyle.Render("uploaded ")+idStyle.Render(summary.DatasetID))
			renderSummary(out, summary)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (default: the file name)")
	cmd.Flags().IntVar(&maxMB, "max-size-mb", 10, "Reject files larger than this before uploading")
	return cmd
}

func newDatasetShowCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <dataset-id>",
		Short: "Show a dataset's schema and statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.client.GetDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, summary)
			}
			renderSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full summary as JSON")
	return cmd
}

func newDatasetDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <dataset-id>",
		Short: "Delete an uploaded dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteDataset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("deleted ")+idStyle.Render(args[0]))
			return nil
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
