package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticstitch/internal/geo"
	"github.com/MeKo-Tech/staticstitch/internal/grid"
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Compute the tile grid for a bounding box",
	Long: `Compute the primary and half tile grid covering a bounding box and write it
as tile info JSON. The file is the input of the download and compose commands.`,
	Example: `  staticstitch grid --southwest 39.1,-83.2 --northeast 40.3,-82.4 --zoom 13
  staticstitch grid --southwest=-40,-100 --northeast 50,100 -z 2 --size 256 --out -`,
	RunE: runGrid,
}

func init() {
	rootCmd.AddCommand(gridCmd)

	addGridFlags(gridCmd, "grid")
	gridCmd.Flags().StringP("out", "o", "", "Tile info output path, - for stdout (default <dir>/tile_info.json)")

	if err := viper.BindPFlag("grid.out", gridCmd.Flags().Lookup("out")); err != nil {
		panic(fmt.Sprintf("failed to bind flag out: %v", err))
	}
}

func runGrid(cmd *cobra.Command, args []string) error {
	opts, err := gridOptionsFrom("grid")
	if err != nil {
		return err
	}

	result, err := grid.Generate(opts)
	if err != nil {
		return err
	}
	logGrid(result)

	out := viper.GetString("grid.out")
	if out == "-" {
		return result.Encode(cmd.OutOrStdout())
	}

	path := tileInfoPath(projectDir(), out)
	if err := result.Save(path); err != nil {
		return err
	}
	logger.Info("Wrote tile info", "path", path)
	return nil
}

func logGrid(r *grid.Result) {
	sw := geo.SlippyTile(r.Config.Southwest, r.Config.Zoom)
	logger.Info("Generated tile grid",
		"zoom", r.Config.Zoom,
		"columns", r.Columns(),
		"rows", r.Rows(),
		"primary", len(r.Tiles.Primary),
		"half", len(r.Tiles.Half),
		"tiles", r.Len(),
		"width", r.Columns()*r.Config.CellSize(),
		"height", r.Rows()*r.Config.CellSize(),
	)
	logger.Debug("Grid bounds", "bounds", r.Config.Bounds(), "southwest_tile", fmt.Sprintf("%d/%d/%d", sw.Z, sw.X, sw.Y))
}
