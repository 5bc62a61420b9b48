package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticstitch/internal/grid"
	"github.com/MeKo-Tech/staticstitch/internal/stitch"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Stitch downloaded tiles into one image",
	Long: `Stitch the tiles of a tile info file from the tile store into a single image.
Half tiles are pasted over the seams with their attribution footer cropped.`,
	RunE: runCompose,
}

func init() {
	rootCmd.AddCommand(composeCmd)

	composeCmd.Flags().String("tile-info", "", "Tile info file (default <dir>/tile_info.json)")
	addComposeFlags(composeCmd, "compose")

	if err := viper.BindPFlag("compose.tile_info", composeCmd.Flags().Lookup("tile-info")); err != nil {
		panic(fmt.Sprintf("failed to bind flag tile-info: %v", err))
	}
}

// addComposeFlags registers the stitcher flags on cmd and binds them below prefix.
func addComposeFlags(cmd *cobra.Command, prefix string) {
	cmd.Flags().String("ftype", string(stitch.FormatPNG), "Output image format (png, jpeg, tiff, bmp)")
	cmd.Flags().StringP("output", "o", "", "Output image path (default <dir>/output.<ftype>)")
	cmd.Flags().Int("footer", stitch.DefaultFooterHeight, "Attribution footer height cropped from half tiles, -1 disables")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{prefix + ".ftype", "ftype"},
		{prefix + ".output", "output"},
		{prefix + ".footer", "footer"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, cmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// outputPath returns the image path for the compose settings below prefix.
func outputPath(dir, prefix string) (string, error) {
	format, err := stitch.ParseFormat(viper.GetString(prefix + ".ftype"))
	if err != nil {
		return "", err
	}
	if out := viper.GetString(prefix + ".output"); out != "" {
		return out, nil
	}
	return resolvePath(dir, "output."+string(format)), nil
}

func runCompose(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signalContext(cmd)
	defer stop()

	dir := projectDir()
	path := tileInfoPath(dir, viper.GetString("compose.tile_info"))
	result, err := grid.Load(path)
	if err != nil {
		return err
	}

	out, err := outputPath(dir, "compose")
	if err != nil {
		return err
	}

	st, err := openStore(dir)
	if err != nil {
		return err
	}
	defer closeStore(st, &err)

	return composeImage(ctx, st, result, viper.GetInt("compose.footer"), out)
}
