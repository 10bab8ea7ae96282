package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newHealthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			status, err := a.client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s unreachable: %w", a.client.BaseURL(), err)
			}
			fmt.Fprintln(out, successStyle.Render(status)+"  "+idStyle.Render(a.client.BaseURL()))

			info, err := a.client.Info(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render(info.Name), info.Version)
			fmt.Fprintf(out, "providers: %s\n", strings.Join(info.LLMProviders, ", "))
			fmt.Fprintf(out, "file types: %s (max %d MB)\n", strings.Join(info.SupportedFileTypes, ", "), info.MaxFileSizeMB)
			return nil
		},
	}
}
