package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticstitch/internal/grid"
	"github.com/MeKo-Tech/staticstitch/internal/store"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a tile folder to a SQLite archive",
	Long: `Copy the tiles of a folder store into a single SQLite archive. When a tile
info file is found, its grid configuration is stored as archive metadata.`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().String("input-dir", "", "Input directory containing tiles (default <dir>/tiles)")
	convertCmd.Flags().StringP("output", "o", "", "Output archive path (default <dir>/"+store.ArchiveName+")")
	convertCmd.Flags().String("tile-info", "", "Tile info file written as metadata (default <dir>/tile_info.json if present)")
	convertCmd.Flags().String("name", "staticstitch", "Archive name stored in the metadata")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"convert.input_dir", "input-dir"},
		{"convert.output", "output"},
		{"convert.tile_info", "tile-info"},
		{"convert.name", "name"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, convertCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runConvert(cmd *cobra.Command, args []string) (err error) {
	dir := projectDir()

	inputDir := viper.GetString("convert.input_dir")
	if inputDir == "" {
		inputDir = filepath.Join(dir, tilesDirName)
	}
	outputFile := viper.GetString("convert.output")
	if outputFile == "" {
		outputFile = filepath.Join(dir, store.ArchiveName)
	}

	if _, err := os.Stat(inputDir); os.IsNotExist(err) {
		return fmt.Errorf("input directory does not exist: %s", inputDir)
	}

	logger.Info("Converting folder tiles to SQLite archive",
		"input_dir", inputDir,
		"output", outputFile,
	)

	keys, err := scanTilesDirectory(inputDir)
	if err != nil {
		return fmt.Errorf("failed to scan tiles directory: %w", err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("no tiles found in %s", inputDir)
	}
	logger.Info("Found tiles", "count", len(keys))

	src, err := store.NewFolderStore(inputDir)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := store.NewSQLiteStore(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer closeStore(dst, &err)

	if err := writeArchiveMetadata(dst, dir); err != nil {
		return err
	}

	converted := 0
	for i, key := range keys {
		data, err := src.Get(key)
		if err != nil {
			logger.Error("Failed to read tile", "tile", key, "error", err)
			continue
		}

		if err := dst.Put(key, data); err != nil {
			logger.Error("Failed to write tile", "tile", key, "error", err)
			continue
		}
		converted++

		if (i+1)%100 == 0 {
			logger.Info("Progress", "converted", i+1, "total", len(keys))
		}
	}

	if err := dst.Flush(); err != nil {
		return fmt.Errorf("failed to flush tiles: %w", err)
	}

	logger.Info("Conversion complete", "output", dst.Path(), "tiles", converted)
	return nil
}

// writeArchiveMetadata stores the grid configuration of the tile info file,
// if one exists, in the archive.
func writeArchiveMetadata(dst *store.SQLiteStore, dir string) error {
	path := viper.GetString("convert.tile_info")
	explicit := path != ""
	path = tileInfoPath(dir, path)

	result, err := grid.Load(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			logger.Debug("No tile info found, skipping metadata", "path", path)
			return nil
		}
		return err
	}

	return dst.WriteMetadata(store.MetadataFromResult(viper.GetString("convert.name"), result))
}

// scanTilesDirectory returns the keys of all tile files in dir sorted by
// layer, row and column. Other files are ignored.
func scanTilesDirectory(dir string) ([]store.Key, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var keys []store.Key
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, err := store.ParseKey(e.Name())
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Layer != b.Layer {
			return a.Layer < b.Layer
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	return keys, nil
}
