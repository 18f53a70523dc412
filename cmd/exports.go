package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/photobooth/api/client"
	"github.com/spf13/cobra"
)

func newExportsCmd() *cobra.Command {
	var (
		server string
		page   int
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List exported collages",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.NewBoothClient(server).ListExports(page, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLAYOUT\tFRAME\tSIZE\tCREATED")
			for _, e := range resp.Exports {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", e.Name, e.LayoutID, e.FrameID, e.SizeBytes, e.CreatedAt.Format(time.RFC3339))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d of %d exports\n", resp.Page, len(resp.Exports), resp.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "Booth server URL")
	cmd.Flags().IntVar(&page, "page", 1, "Page to list")
	cmd.Flags().IntVar(&limit, "limit", 20, "Exports per page")

	return cmd
}
