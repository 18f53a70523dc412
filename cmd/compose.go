package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aouyang1/photobooth/assets"
	"github.com/aouyang1/photobooth/capture"
	"github.com/aouyang1/photobooth/compositor"
	"github.com/aouyang1/photobooth/export"
	"github.com/aouyang1/photobooth/session"
	"github.com/spf13/cobra"
)

func newComposeCmd() *cobra.Command {
	var (
		layoutID string
		frameID  string
		caption  string
		stills   string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Build a collage from a directory of images",
		Long: `Takes the images of a directory in name order as the session's shots and
writes the framed collage into the output directory.

A directory with fewer images than the layout needs yields a collage with the
remaining slots left empty.`,
		Example: `  photobooth compose --layout 2x2 --frame white-2x2 --stills ./shots --caption "Family trip"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.ExportsDir()
			}

			s := session.FromParams(layoutID, frameID)
			s.SetCaption(caption)

			err = capture.WithHandle(cmd.Context(), capture.NewDirSource(stills), func(h capture.Handle) error {
				for !s.IsComplete() {
					still, err := capture.CaptureStill(h, nil)
					if errors.Is(err, io.EOF) {
						slog.Warn("ran out of stills", "have", s.ShotIndex(), "need", s.Layout().Shots)
						return nil
					}
					if err != nil {
						return err
					}
					if _, err := s.AppendStill(still); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to capture stills: %w", err)
			}

			frames := assets.Chain{assets.NewDirLoader(cfg.FramesPath()), assets.Embedded()}
			comp := compositor.New(frames, compositor.Options{CornerRadius: cfg.CornerRadius})

			snap := s.Snapshot()
			res, err := comp.Render(cmd.Context(), compositor.Request{
				Layout:  snap.Layout,
				Frame:   snap.Frame,
				Stills:  snap.Stills,
				Caption: snap.Caption,
			})
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				slog.Warn("collage rendered with warning", "error", w)
			}

			art, err := export.NewExporter(out, cfg.Product).Export(res)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), art.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&layoutID, "layout", "l", "", "Layout id (1x1, 1x3, 2x2)")
	cmd.Flags().StringVarP(&frameID, "frame", "f", "", "Frame id of the layout")
	cmd.Flags().StringVarP(&caption, "caption", "c", "", "Caption printed under the photos")
	cmd.Flags().StringVarP(&stills, "stills", "s", "", "Directory of images to use as shots")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (defaults to the exports directory)")
	_ = cmd.MarkFlagRequired("stills")

	return cmd
}
