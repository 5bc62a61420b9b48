package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/staticstitch/internal/geo"
	"github.com/MeKo-Tech/staticstitch/internal/grid"
	"github.com/MeKo-Tech/staticstitch/internal/store"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		verbose   bool
		wantDebug bool
		wantJSON  bool
	}{
		{"text info", "text", false, false, false},
		{"text debug", "text", true, true, false},
		{"json info", "json", false, false, true},
		{"json upper case", "JSON", true, true, true},
		{"unknown format falls back to text", "xml", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(&buf, tt.format, tt.verbose)

			l.Debug("debug message")
			l.Info("info message", "key", "value")

			out := buf.String()
			assert.Contains(t, out, "info message")
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug message")))

			if tt.wantJSON {
				first, _, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
				var entry map[string]any
				require.NoError(t, json.Unmarshal(first, &entry))
			} else {
				assert.Contains(t, out, "key=value")
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "info.json")

	assert.Equal(t, "", resolvePath("out", ""))
	assert.Equal(t, filepath.Join("out", "info.json"), resolvePath("out", "info.json"))
	assert.Equal(t, abs, resolvePath("out", abs))
}

func TestTileInfoPath(t *testing.T) {
	t.Cleanup(func() { viper.Set("tile_info_file", "") })

	viper.Set("tile_info_file", "")
	assert.Equal(t, filepath.Join("out", defaultTileInfoName), tileInfoPath("out", ""))
	assert.Equal(t, "explicit.json", tileInfoPath("out", "explicit.json"))

	viper.Set("tile_info_file", "grid.json")
	assert.Equal(t, filepath.Join("out", "grid.json"), tileInfoPath("out", ""))
}

func TestGridOptionsFrom(t *testing.T) {
	set := func(values map[string]any) {
		for k, v := range values {
			viper.Set("optstest."+k, v)
		}
	}
	base := map[string]any{
		"zoom":      13,
		"scale":     2,
		"size":      640,
		"maptype":   "satellite",
		"southwest": "39.1,-83.2",
		"northeast": "40.3,-82.4",
	}

	t.Run("valid", func(t *testing.T) {
		set(base)
		opts, err := gridOptionsFrom("optstest")
		require.NoError(t, err)
		assert.Equal(t, 13, opts.Zoom)
		assert.Equal(t, 2, opts.Scale)
		assert.Equal(t, 640, opts.Size)
		assert.Equal(t, "satellite", opts.Maptype)
		assert.Equal(t, geo.LatLng{Lat: 39.1, Lng: -83.2}, opts.Southwest)
		assert.Equal(t, geo.LatLng{Lat: 40.3, Lng: -82.4}, opts.Northeast)
	})

	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"missing southwest", "southwest", ""},
		{"missing northeast", "northeast", ""},
		{"malformed corner", "southwest", "39.1;-83.2"},
		{"zoom out of range", "zoom", 31},
		{"zero size", "size", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set(base)
			viper.Set("optstest."+tt.key, tt.value)
			_, err := gridOptionsFrom("optstest")
			require.Error(t, err)
		})
	}
}

// failingStore is a store whose final flush fails.
type failingStore struct {
	store.Store
	closeErr error
}

func (s *failingStore) Close() error {
	return s.closeErr
}

func TestCloseStore(t *testing.T) {
	flushErr := errors.New("disk full")

	t.Run("reports close error", func(t *testing.T) {
		var err error
		closeStore(&failingStore{closeErr: flushErr}, &err)
		require.ErrorIs(t, err, flushErr)
	})

	t.Run("keeps earlier error", func(t *testing.T) {
		earlier := errors.New("download failed")
		err := earlier
		closeStore(&failingStore{closeErr: flushErr}, &err)
		assert.Same(t, earlier, err)
	})

	t.Run("clean close", func(t *testing.T) {
		var err error
		closeStore(&failingStore{}, &err)
		assert.NoError(t, err)
	})
}

func TestScanTilesDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1x0", "0x1", "0x0", "half-1x1", "half-0x2", "notes.txt", "tile_info.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "2x2"), 0o755))

	keys, err := scanTilesDirectory(dir)
	require.NoError(t, err)

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Name()
	}
	assert.Equal(t, []string{"0x0", "1x0", "0x1", "half-1x1", "half-0x2"}, names)
}

func solidTile(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRunAndConvert(t *testing.T) {
	tile := solidTile(t, 256)
	var requests atomic.Int32
	var badKey atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Query().Get("key") != "test-key" {
			badKey.Store(true)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(tile)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("STATICSTITCH_GOOGLE_API_KEY", "test-key")
	viper.Set("tile_info_file", "info.json")
	t.Cleanup(func() { viper.Set("tile_info_file", "") })

	rootCmd.SetOut(io.Discard)
	rootCmd.SetArgs([]string{
		"run",
		"--dir", dir,
		"--southwest=-40,-100",
		"--northeast=50,100",
		"--zoom", "2",
		"--size", "256",
		"--base-url", srv.URL,
	})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, int32(14), requests.Load())
	assert.False(t, badKey.Load())

	info, err := grid.Load(filepath.Join(dir, "info.json"))
	require.NoError(t, err)
	assert.Len(t, info.Tiles.Primary, 6)
	assert.Len(t, info.Tiles.Half, 8)

	f, err := os.Open(filepath.Join(dir, "output.png"))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 3*256, cfg.Width)
	assert.Equal(t, 2*256, cfg.Height)

	folder, err := store.NewFolderStore(filepath.Join(dir, tilesDirName))
	require.NoError(t, err)
	for _, name := range []string{"0x0", "2x1", "half-3x0", "half-3x2"} {
		key, err := store.ParseKey(name)
		require.NoError(t, err)
		ok, err := folder.Has(key)
		require.NoError(t, err)
		assert.True(t, ok, name)
	}

	rootCmd.SetArgs([]string{"convert", "--dir", dir})
	require.NoError(t, rootCmd.Execute())

	archive, err := store.NewSQLiteStore(filepath.Join(dir, store.ArchiveName))
	require.NoError(t, err)
	defer archive.Close()

	data, err := archive.Get(store.Key{Layer: store.LayerHalf, X: 3, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, tile, data)

	meta, err := archive.Metadata()
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Zoom)
	assert.Equal(t, 3, meta.Columns)
	assert.Equal(t, 2, meta.Rows)
}
