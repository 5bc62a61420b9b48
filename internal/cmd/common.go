package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticstitch/internal/download"
	"github.com/MeKo-Tech/staticstitch/internal/geo"
	"github.com/MeKo-Tech/staticstitch/internal/grid"
	"github.com/MeKo-Tech/staticstitch/internal/store"
)

const (
	// tilesDirName holds the folder store inside the project directory.
	tilesDirName = "tiles"
	// defaultTileInfoName is used when no tile_info_file is configured.
	defaultTileInfoName = "tile_info.json"
)

// addGridFlags registers the grid options on cmd and binds them below prefix.
func addGridFlags(cmd *cobra.Command, prefix string) {
	defaults := grid.DefaultOptions()

	cmd.Flags().IntP("zoom", "z", defaults.Zoom, "Zoom level (0-30)")
	cmd.Flags().Int("scale", defaults.Scale, "Pixel density multiplier (1, 2 or 4)")
	cmd.Flags().Int("size", defaults.Size, "Tile edge in pixels before scaling")
	cmd.Flags().String("maptype", defaults.Maptype, "Map type (roadmap, satellite, terrain, hybrid)")
	cmd.Flags().String("southwest", "", "South-west corner as lat,lng (required)")
	cmd.Flags().String("northeast", "", "North-east corner as lat,lng (required)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{prefix + ".zoom", "zoom"},
		{prefix + ".scale", "scale"},
		{prefix + ".size", "size"},
		{prefix + ".maptype", "maptype"},
		{prefix + ".southwest", "southwest"},
		{prefix + ".northeast", "northeast"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, cmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// gridOptionsFrom reads the grid options bound by addGridFlags.
func gridOptionsFrom(prefix string) (grid.Options, error) {
	opts := grid.Options{
		Zoom:    viper.GetInt(prefix + ".zoom"),
		Scale:   viper.GetInt(prefix + ".scale"),
		Size:    viper.GetInt(prefix + ".size"),
		Maptype: viper.GetString(prefix + ".maptype"),
	}

	sw := viper.GetString(prefix + ".southwest")
	ne := viper.GetString(prefix + ".northeast")
	if sw == "" || ne == "" {
		return opts, fmt.Errorf("--southwest and --northeast are required")
	}

	var err error
	if opts.Southwest, err = geo.ParseLatLng(sw); err != nil {
		return opts, fmt.Errorf("invalid --southwest: %w", err)
	}
	if opts.Northeast, err = geo.ParseLatLng(ne); err != nil {
		return opts, fmt.Errorf("invalid --northeast: %w", err)
	}

	return opts, opts.Validate()
}

func projectDir() string {
	return viper.GetString("dir")
}

// resolvePath returns p relative to dir unless p is absolute.
func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// tileInfoPath picks the grid JSON path: an explicit flag value wins, then the
// configured tile_info_file inside the project directory, then the default name.
func tileInfoPath(dir, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if name := viper.GetString("tile_info_file"); name != "" {
		return resolvePath(dir, name)
	}
	return filepath.Join(dir, defaultTileInfoName)
}

// openStore opens the configured tile store below dir.
func openStore(dir string) (store.Store, error) {
	kind, err := store.ParseKind(viper.GetString("store"))
	if err != nil {
		return nil, err
	}

	root := dir
	if kind == store.KindFolder {
		root = filepath.Join(dir, tilesDirName)
	}

	st, err := store.Open(kind, root)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", kind, err)
	}
	logger.Debug("Opened tile store", "kind", kind, "path", root)
	return st, nil
}

// closeStore closes st and reports its error through err unless an earlier
// error is already set. Buffered stores write their last batch on close.
func closeStore(st store.Store, err *error) {
	if cerr := st.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close tile store: %w", cerr)
	}
}

// downloadConfig assembles the provider settings shared by download and run.
func downloadConfig(prefix string) (download.Config, error) {
	cfg := download.Config{
		BaseURL:   viper.GetString(prefix + ".base_url"),
		APIKey:    viper.GetString("google_api_key"),
		BatchSize: viper.GetInt(prefix + ".batch_size"),
		Force:     viper.GetBool(prefix + ".force"),
		Progress:  viper.GetBool(prefix + ".progress"),
		Logger:    logger,
	}

	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("%w: set google_api_key in the config file or STATICSTITCH_GOOGLE_API_KEY", download.ErrMissingAPIKey)
	}

	if styleURL := viper.GetString("style_url"); styleURL != "" {
		params, err := download.ExtractStyleParams(styleURL)
		if err != nil {
			return cfg, fmt.Errorf("invalid style_url: %w", err)
		}
		cfg.StyleParams = params
	}

	return cfg, nil
}

// addDownloadFlags registers the downloader flags on cmd and binds them below prefix.
func addDownloadFlags(cmd *cobra.Command, prefix string) {
	cmd.Flags().Int("batch-size", download.DefaultBatchSize, "Number of concurrent requests per batch")
	cmd.Flags().Bool("force", false, "Download tiles that are already stored")
	cmd.Flags().Bool("progress", false, "Show a progress bar on stderr")
	cmd.Flags().String("base-url", download.DefaultBaseURL, "Static map endpoint")
	_ = cmd.Flags().MarkHidden("base-url")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{prefix + ".batch_size", "batch-size"},
		{prefix + ".force", "force"},
		{prefix + ".progress", "progress"},
		{prefix + ".base_url", "base-url"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, cmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
