package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultConfigFile is read when --config is not given and the file exists.
const defaultConfigFile = "config/configuration.json"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "staticstitch",
	Short: "Stitch static map tiles into one large map image",
	Long: `StaticStitch covers a bounding box with static map tiles at a given zoom level,
downloads them from the Google Static Maps API and stitches them into a single
seamless image. The attribution footer of every tile is hidden by a second grid
of tiles shifted by half a tile.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		initLogging()
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./"+defaultConfigFile+")")
	rootCmd.PersistentFlags().String("dir", "./output", "Project directory for tiles, tile info and the stitched image")
	rootCmd.PersistentFlags().String("store", "folder", "Tile store: folder (one file per tile) or sqlite (single archive)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"dir", "dir"},
		{"store", "store"},
		{"verbose", "verbose"},
		{"log_format", "log-format"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, rootCmd.PersistentFlags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// initConfig reads the config file and environment. Keys are case
// insensitive, so GOOGLE_API_KEY in a config file sets google_api_key.
func initConfig() error {
	viper.SetEnvPrefix("STATICSTITCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	path := cfgFile
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return nil
		}
		path = defaultConfigFile
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return nil
}
