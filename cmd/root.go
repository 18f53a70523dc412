package cmd

import (
	"log/slog"
	"os"

	"github.com/aouyang1/photobooth/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photobooth",
		Short: "Browser photobooth with framed collage exports",
		Long: `Photobooth runs a kiosk where guests pick a layout and frame, take one to
four square photos and download the result as a framed collage.

The web server drives the browser kiosk. The compose command builds the same
collage offline from a directory of images.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newComposeCmd())
	cmd.AddCommand(newLayoutsCmd())
	cmd.AddCommand(newExportsCmd())

	return cmd
}

// loadConfig reads the environment and installs the slog handler.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}
