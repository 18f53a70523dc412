package cmd

import (
	"fmt"

	"github.com/aouyang1/photobooth/api"
	"github.com/aouyang1/photobooth/assets"
	"github.com/aouyang1/photobooth/capture"
	"github.com/aouyang1/photobooth/compositor"
	"github.com/aouyang1/photobooth/export"
	"github.com/aouyang1/photobooth/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the booth web server",
		Long: `Starts the booth API and websocket event stream used by the kiosk browser.

Frame artwork is read from PB_FRAMES_DIR, falling back to the bundled frames.
When PB_S3_BUCKET is set the frames directory is mirrored from the bucket
every hour.`,
		Example: `  # Start on the configured address
  photobooth serve

  # Start on a custom address
  photobooth serve --addr 127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Addr
			}

			db, err := store.NewDatabase(cfg.DBPath())
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			frames := assets.NewCache(assets.Chain{
				assets.NewDirLoader(cfg.FramesPath()),
				assets.Embedded(),
			})

			opts := api.ServerOptions{IdleTimeout: cfg.IdleTimeout}
			if cfg.S3Bucket != "" {
				remote, err := assets.NewRemoteSync(cfg.AWSProfile, cfg.S3Bucket, cfg.FramesPath())
				if err != nil {
					return fmt.Errorf("failed to initialize remote sync: %w", err)
				}
				opts.RemoteSync = remote
				opts.Frames = frames
			}

			exporter := export.NewExporter(cfg.ExportsDir(), cfg.Product)
			hub := api.NewHub()
			booth := api.NewBooth(
				capture.NewFeed(cfg.FeedWait),
				compositor.New(frames, compositor.Options{CornerRadius: cfg.CornerRadius}),
				exporter,
				db,
				hub,
				cfg.PreviewQuiet,
			)

			ws, err := api.NewWebServer(db, booth, exporter, hub, opts)
			if err != nil {
				return err
			}
			return ws.Start(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (defaults to PB_ADDR)")

	return cmd
}
