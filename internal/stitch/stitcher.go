// Package stitch composites downloaded grid tiles into a single image.
package stitch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	// tile decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/gift"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/MeKo-Tech/staticstitch/internal/grid"
	"github.com/MeKo-Tech/staticstitch/internal/store"
)

// DefaultFooterHeight is the height of the provider attribution strip at scale 1.
const DefaultFooterHeight = 30

// maxCanvasPixels bounds the composite size.
const maxCanvasPixels = 1 << 30

var (
	// ErrNoTiles is returned when no primary tile could be placed.
	ErrNoTiles = errors.New("no tiles to stitch")
	// ErrCanvasTooLarge is returned when the composite would exceed maxCanvasPixels.
	ErrCanvasTooLarge = errors.New("composite image too large")
)

// Config configures a Stitcher.
type Config struct {
	// FooterHeight is cropped from the bottom of every half tile, multiplied
	// by the grid scale. Zero selects DefaultFooterHeight; negative disables
	// cropping.
	FooterHeight int
	Logger       *slog.Logger
}

// Stitcher reads tiles from a store and pastes them onto one canvas.
type Stitcher struct {
	store        store.Store
	footerHeight int
	logger       *slog.Logger
}

// SkippedTile is a tile that was not placed on the canvas.
type SkippedTile struct {
	Key store.Key
	Err error
}

// Composite is the stitched image together with what went into it.
type Composite struct {
	Image    *image.RGBA
	Columns  int
	Rows     int
	CellSize int
	Placed   map[store.Layer]int
	Skipped  []SkippedTile
}

// New creates a stitcher reading from st.
func New(st store.Store, cfg Config) *Stitcher {
	footer := cfg.FooterHeight
	if footer == 0 {
		footer = DefaultFooterHeight
	}
	if footer < 0 {
		footer = 0
	}
	return &Stitcher{store: st, footerHeight: footer, logger: cfg.Logger}
}

func (s *Stitcher) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Stitch builds the composite for r. Primary tiles are pasted on a grid of
// size*scale cells. Half tiles are cropped by the footer strip and pasted
// half a cell up and to the left, covering the footers of the primary tiles
// around them. Missing or undecodable tiles are skipped and reported.
func (s *Stitcher) Stitch(ctx context.Context, r *grid.Result) (*Composite, error) {
	cell := r.Config.CellSize()
	cols, rows := r.Columns(), r.Rows()
	if cell <= 0 || cols == 0 || rows == 0 {
		return nil, ErrNoTiles
	}
	if int64(cols*cell)*int64(rows*cell) > maxCanvasPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrCanvasTooLarge, cols*cell, rows*cell)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, cols*cell, rows*cell))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, xdraw.Src)

	comp := &Composite{
		Image:    canvas,
		Columns:  cols,
		Rows:     rows,
		CellSize: cell,
		Placed:   make(map[store.Layer]int),
	}

	s.log().Info("stitching tiles",
		"columns", cols, "rows", rows, "cell", cell,
		"width", canvas.Bounds().Dx(), "height", canvas.Bounds().Dy())

	footer := s.footerHeight * r.Config.Scale
	crop := gift.New(gift.Crop(image.Rect(0, 0, cell, max(cell-footer, 0))))

	layers := []struct {
		layer  store.Layer
		tiles  []grid.Tile
		offset int
		filter *gift.GIFT
	}{
		{store.LayerPrimary, r.Tiles.Primary, 0, nil},
		{store.LayerHalf, r.Tiles.Half, -cell / 2, crop},
	}

	for _, l := range layers {
		for _, t := range l.tiles {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			key := store.Key{Layer: l.layer, X: t.X, Y: t.Y}
			img, err := s.load(key)
			if err != nil {
				s.log().Warn("skipping tile", "tile", key, "error", err)
				comp.Skipped = append(comp.Skipped, SkippedTile{Key: key, Err: err})
				continue
			}

			if l.filter != nil {
				img = apply(l.filter, img)
			}

			paste(canvas, img, image.Pt(t.X*cell+l.offset, t.Y*cell+l.offset))
			comp.Placed[l.layer]++
		}
	}

	if comp.Placed[store.LayerPrimary] == 0 {
		return comp, fmt.Errorf("%w: all %d primary tiles are missing", ErrNoTiles, len(r.Tiles.Primary))
	}

	return comp, nil
}

func (s *Stitcher) load(key store.Key) (image.Image, error) {
	data, err := s.store.Get(key)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile %s: %w", key, err)
	}
	return img, nil
}

// apply runs the filter and returns the result with its origin at (0, 0).
func apply(g *gift.GIFT, src image.Image) image.Image {
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

// paste copies src onto dst with its top-left corner at pt, clipped to dst.
func paste(dst *image.RGBA, src image.Image, pt image.Point) {
	xdraw.Copy(dst, pt, src, src.Bounds(), xdraw.Src, nil)
}
