// Package download fetches the tiles of a grid from a static map endpoint
// and writes them to a tile store.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MeKo-Tech/staticstitch/internal/grid"
	"github.com/MeKo-Tech/staticstitch/internal/store"
	"github.com/MeKo-Tech/staticstitch/internal/worker"
)

const (
	// DefaultBaseURL is the Google Static Maps endpoint.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/staticmap"
	// DefaultBatchSize is the number of requests in flight per batch.
	DefaultBatchSize = 10
	// DefaultTimeout bounds a single tile request.
	DefaultTimeout = 30 * time.Second

	redactedKey = "REDACTED"
	// maxErrorBody is the number of response bytes kept for error messages.
	maxErrorBody = 512
)

var (
	// ErrAllFailed is returned when no tile of a layer could be fetched.
	ErrAllFailed = errors.New("all tiles failed")
	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("missing API key")
)

// Config configures a Downloader.
type Config struct {
	BaseURL     string // defaults to DefaultBaseURL
	APIKey      string
	StyleParams string // extra query fragment, see ExtractStyleParams
	BatchSize   int    // defaults to DefaultBatchSize
	Force       bool   // fetch tiles that are already stored
	Progress    bool   // draw a progress bar on stderr

	Client *http.Client
	Logger *slog.Logger
}

// Downloader fetches grid tiles into a store.
type Downloader struct {
	cfg    Config
	client *http.Client
	store  store.Store
	logger *slog.Logger
}

// New creates a downloader writing into st.
func New(st store.Store, cfg Config) (*Downloader, error) {
	if st == nil {
		return nil, fmt.Errorf("tile store is required")
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "?")
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	return &Downloader{
		cfg:    cfg,
		client: client,
		store:  st,
		logger: cfg.Logger,
	}, nil
}

func (d *Downloader) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}

// Download fetches the primary layer and then the half layer of r. Tiles
// are requested in batches; a batch is finished before the next one starts.
// Failed tiles are collected in the report. Download returns ErrAllFailed
// when every tile of a layer failed, together with the partial report.
func (d *Downloader) Download(ctx context.Context, r *grid.Result) (*Report, error) {
	if mw, ok := d.store.(store.MetadataWriter); ok {
		if err := mw.WriteMetadata(store.MetadataFromResult("staticstitch", r)); err != nil {
			return nil, fmt.Errorf("failed to write store metadata: %w", err)
		}
	}

	report := &Report{}
	for _, layer := range store.Layers {
		lr, err := d.downloadLayer(ctx, layer, layerTiles(r, layer))
		if lr != nil {
			report.Layers = append(report.Layers, lr)
		}
		if err != nil {
			return report, err
		}
	}

	d.log().Info("download finished",
		"fetched", humanize.Bytes(report.Bytes()),
		"failed", len(report.Failed()))

	return report, nil
}

// layerTiles returns the tiles of r that belong to layer.
func layerTiles(r *grid.Result, layer store.Layer) []grid.Tile {
	if layer == store.LayerHalf {
		return r.Tiles.Half
	}
	return r.Tiles.Primary
}

func (d *Downloader) downloadLayer(ctx context.Context, layer store.Layer, tiles []grid.Tile) (*LayerReport, error) {
	lr := &LayerReport{Layer: layer, Total: len(tiles)}
	if len(tiles) == 0 {
		return lr, nil
	}

	tasks := make([]worker.Task, len(tiles))
	for i, t := range tiles {
		tasks[i] = worker.Task{
			Key:       store.Key{Layer: layer, X: t.X, Y: t.Y},
			URLParams: t.URLParams,
			Force:     d.cfg.Force,
		}
	}

	progress := worker.NewProgress(layer.String()+" tiles", len(tasks), d.cfg.Progress)
	pool := worker.New(worker.Config{
		Workers:    d.cfg.BatchSize,
		Fetcher:    &meteredFetcher{fetcher: d, progress: progress},
		OnProgress: progress.Callback(),
	})

	d.log().Info("downloading tiles", "layer", layer, "tiles", len(tasks), "batch_size", d.cfg.BatchSize)

	results := pool.RunBatches(ctx, tasks, d.cfg.BatchSize)
	progress.Done()

	for _, res := range results {
		if res.Err != nil {
			var tileErr *TileError
			if !errors.As(res.Err, &tileErr) {
				tileErr = &TileError{Key: res.Task.Key, Err: res.Err}
			}
			lr.Failed = append(lr.Failed, tileErr)
			d.log().Warn("tile download failed", "tile", res.Task.Key, "error", res.Err)
			continue
		}
		if res.Outcome.Skipped {
			lr.Skipped++
			continue
		}
		lr.Fetched++
		lr.Bytes += uint64(res.Outcome.Bytes)
	}

	d.log().Info(progress.Summary(), "layer", layer, "skipped", lr.Skipped)

	if err := ctx.Err(); err != nil {
		return lr, err
	}
	if lr.AllFailed() {
		return lr, fmt.Errorf("%w: %s layer (%d tiles, first error: %v)", ErrAllFailed, layer, lr.Total, lr.Failed[0])
	}
	return lr, nil
}

// Fetch downloads one tile and stores it. It implements worker.Fetcher.
func (d *Downloader) Fetch(ctx context.Context, task worker.Task) (worker.Outcome, error) {
	if !task.Force {
		exists, err := d.store.Has(task.Key)
		if err != nil {
			return worker.Outcome{}, &TileError{Key: task.Key, Err: err}
		}
		if exists {
			d.log().Debug("tile exists, skipping", "tile", task.Key)
			return worker.Outcome{Skipped: true}, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.RequestURL(task.URLParams), nil)
	if err != nil {
		return worker.Outcome{}, &TileError{Key: task.Key, Err: err}
	}

	d.log().Debug("fetching tile", "tile", task.Key, "url", d.redactedURL(task.URLParams))

	resp, err := d.client.Do(req)
	if err != nil {
		return worker.Outcome{}, &TileError{Key: task.Key, Err: redactError(err, d.cfg.APIKey)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return worker.Outcome{}, &TileError{Key: task.Key, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return worker.Outcome{}, &TileError{Key: task.Key, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if err := d.store.Put(task.Key, data); err != nil {
		return worker.Outcome{}, &TileError{Key: task.Key, Err: err}
	}

	return worker.Outcome{Bytes: len(data)}, nil
}

// RequestURL returns the full request URL for a tile's query fragment.
func (d *Downloader) RequestURL(params string) string {
	return d.buildURL(params, d.cfg.APIKey)
}

func (d *Downloader) redactedURL(params string) string {
	return d.buildURL(params, redactedKey)
}

func (d *Downloader) buildURL(params, key string) string {
	u := d.cfg.BaseURL + "?" + params + "&key=" + url.QueryEscape(key)
	if d.cfg.StyleParams != "" {
		u += "&" + d.cfg.StyleParams
	}
	return u
}

// redactError removes the API key from transport errors, which embed the URL.
func redactError(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, redactedKey))
}

// meteredFetcher feeds fetched bytes into a progress display.
type meteredFetcher struct {
	fetcher  worker.Fetcher
	progress *worker.Progress
}

func (m *meteredFetcher) Fetch(ctx context.Context, task worker.Task) (worker.Outcome, error) {
	outcome, err := m.fetcher.Fetch(ctx, task)
	m.progress.AddBytes(outcome.Bytes)
	return outcome, err
}
