package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/aouyang1/photobooth/api/client"
	"github.com/aouyang1/photobooth/api/models"
	"github.com/aouyang1/photobooth/catalog"
	"github.com/spf13/cobra"
)

func newLayoutsCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "layouts",
		Short: "List layouts and their frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			var layouts []models.LayoutResponse
			if server != "" {
				resp, err := client.NewBoothClient(server).Layouts()
				if err != nil {
					return err
				}
				layouts = resp
			} else {
				for _, l := range catalog.Layouts() {
					layouts = append(layouts, models.LayoutResponse{Layout: l, Frames: catalog.FramesFor(l.ID)})
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LAYOUT\tNAME\tSHOTS\tCANVAS\tFRAMES")
			for _, l := range layouts {
				ids := make([]string, len(l.Frames))
				for i, f := range l.Frames {
					ids[i] = f.ID
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%dx%d\t%v\n", l.ID, l.Name, l.Shots, l.CanvasWidth, l.CanvasHeight, ids)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Booth server URL, e.g. http://localhost:8080")

	return cmd
}
