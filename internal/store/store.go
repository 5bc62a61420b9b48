// Package store persists downloaded tile images keyed by layer and grid position.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrTileNotFound is returned by Get when a tile has not been stored.
var ErrTileNotFound = errors.New("tile not found")

// Layer identifies one of the two tile grids.
type Layer int

const (
	LayerPrimary Layer = iota
	LayerHalf
)

// Layers lists all layers in download order.
var Layers = []Layer{LayerPrimary, LayerHalf}

// Prefix returns the file name prefix of the layer.
func (l Layer) Prefix() string {
	if l == LayerHalf {
		return "half-"
	}
	return ""
}

func (l Layer) String() string {
	switch l {
	case LayerPrimary:
		return "primary"
	case LayerHalf:
		return "half"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// Key addresses one stored tile.
type Key struct {
	Layer Layer
	X     int
	Y     int
}

// Name returns the tile name, e.g. "3x1" or "half-3x1".
func (k Key) Name() string {
	return fmt.Sprintf("%s%dx%d", k.Layer.Prefix(), k.X, k.Y)
}

func (k Key) String() string {
	return k.Name()
}

// ParseKey parses a tile name produced by Key.Name.
func ParseKey(name string) (Key, error) {
	key := Key{Layer: LayerPrimary}
	rest := name
	if strings.HasPrefix(rest, LayerHalf.Prefix()) {
		key.Layer = LayerHalf
		rest = strings.TrimPrefix(rest, LayerHalf.Prefix())
	}

	xs, ys, ok := strings.Cut(rest, "x")
	if !ok {
		return Key{}, fmt.Errorf("invalid tile name %q", name)
	}
	x, errX := strconv.Atoi(xs)
	y, errY := strconv.Atoi(ys)
	if errX != nil || errY != nil || x < 0 || y < 0 {
		return Key{}, fmt.Errorf("invalid tile name %q", name)
	}

	key.X, key.Y = x, y
	return key, nil
}

// Store reads and writes tile images. Implementations are safe for
// concurrent use.
type Store interface {
	Has(key Key) (bool, error)
	Put(key Key, data []byte) error
	Get(key Key) ([]byte, error)
	Close() error
}

// MetadataWriter is implemented by stores that record the grid they hold.
type MetadataWriter interface {
	WriteMetadata(meta Metadata) error
}

// Kind selects a Store implementation.
type Kind string

const (
	KindFolder Kind = "folder"
	KindSQLite Kind = "sqlite"
)

// ArchiveName is the file name of the SQLite archive inside the output directory.
const ArchiveName = "tiles.sqlite"

// ParseKind parses a store kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindFolder, "":
		return KindFolder, nil
	case KindSQLite:
		return KindSQLite, nil
	default:
		return "", fmt.Errorf("unknown store %q (expected folder or sqlite)", s)
	}
}

// Open opens the store of the given kind rooted at dir.
func Open(kind Kind, dir string) (Store, error) {
	switch kind {
	case KindFolder, "":
		return NewFolderStore(dir)
	case KindSQLite:
		return NewSQLiteStore(filepath.Join(dir, ArchiveName))
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}
