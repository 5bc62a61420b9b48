package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticstitch/internal/grid"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the tiles listed in a tile info file",
	Long: `Download every primary and half tile of a tile info file into the tile store.
Tiles that are already stored are skipped unless --force is given.`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().String("tile-info", "", "Tile info file (default <dir>/tile_info.json)")
	addDownloadFlags(downloadCmd, "download")

	if err := viper.BindPFlag("download.tile_info", downloadCmd.Flags().Lookup("tile-info")); err != nil {
		panic(fmt.Sprintf("failed to bind flag tile-info: %v", err))
	}
}

func runDownload(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signalContext(cmd)
	defer stop()

	dir := projectDir()
	path := tileInfoPath(dir, viper.GetString("download.tile_info"))
	result, err := grid.Load(path)
	if err != nil {
		return err
	}
	logger.Info("Loaded tile info", "path", path, "primary", len(result.Tiles.Primary), "half", len(result.Tiles.Half))

	cfg, err := downloadConfig("download")
	if err != nil {
		return err
	}

	st, err := openStore(dir)
	if err != nil {
		return err
	}
	defer closeStore(st, &err)

	return fetchTiles(ctx, st, cfg, result)
}
