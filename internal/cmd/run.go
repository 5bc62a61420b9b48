package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticstitch/internal/download"
	"github.com/MeKo-Tech/staticstitch/internal/grid"
	"github.com/MeKo-Tech/staticstitch/internal/stitch"
	"github.com/MeKo-Tech/staticstitch/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate the grid, download the tiles and stitch them",
	Long: `Run the whole flow for a bounding box: compute the tile grid, download every
primary and half tile into the project directory and stitch them into
<dir>/output.<ftype>. The tile info file is only written when tile_info_file
is configured.`,
	Example: `  staticstitch run --southwest 39.1,-83.2 --northeast 40.3,-82.4 -z 13 --ftype png`,
	RunE:    runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	addGridFlags(runCmd, "run")
	addDownloadFlags(runCmd, "run")
	addComposeFlags(runCmd, "run")
}

func runRun(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signalContext(cmd)
	defer stop()

	opts, err := gridOptionsFrom("run")
	if err != nil {
		return err
	}

	dir := projectDir()
	out, err := outputPath(dir, "run")
	if err != nil {
		return err
	}

	cfg, err := downloadConfig("run")
	if err != nil {
		return err
	}

	result, err := grid.Generate(opts)
	if err != nil {
		return err
	}
	logGrid(result)

	if name := viper.GetString("tile_info_file"); name != "" {
		path := resolvePath(dir, name)
		if err := result.Save(path); err != nil {
			return err
		}
		logger.Info("Wrote tile info", "path", path)
	}

	st, err := openStore(dir)
	if err != nil {
		return err
	}
	defer closeStore(st, &err)

	if err := fetchTiles(ctx, st, cfg, result); err != nil {
		return err
	}

	return composeImage(ctx, st, result, viper.GetInt("run.footer"), out)
}

// fetchTiles downloads the tiles of result into st and logs failed tiles.
func fetchTiles(ctx context.Context, st store.Store, cfg download.Config, result *grid.Result) error {
	d, err := download.New(st, cfg)
	if err != nil {
		return err
	}

	report, err := d.Download(ctx, result)
	if report != nil {
		for _, lr := range report.Layers {
			logger.Info("Layer downloaded",
				"layer", lr.Layer,
				"total", lr.Total,
				"fetched", lr.Fetched,
				"skipped", lr.Skipped,
				"failed", len(lr.Failed),
				"size", humanize.Bytes(lr.Bytes),
			)
		}
		for _, te := range report.Failed() {
			logger.Warn("Tile failed", "error", te)
		}
	}
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	return nil
}

// composeImage stitches result from st and writes the image to out.
func composeImage(ctx context.Context, st store.Store, result *grid.Result, footer int, out string) error {
	s := stitch.New(st, stitch.Config{FooterHeight: footer, Logger: logger})

	comp, err := s.Stitch(ctx, result)
	if err != nil {
		return fmt.Errorf("stitch failed: %w", err)
	}
	if n := len(comp.Skipped); n > 0 {
		logger.Warn("Some tiles were not placed", "count", n)
	}

	if err := stitch.Save(out, comp.Image); err != nil {
		return err
	}

	logger.Info("Wrote stitched image",
		"path", out,
		"width", comp.Image.Bounds().Dx(),
		"height", comp.Image.Bounds().Dy(),
		"primary", comp.Placed[store.LayerPrimary],
		"half", comp.Placed[store.LayerHalf],
	)
	return nil
}
