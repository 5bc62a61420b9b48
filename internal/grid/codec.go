package grid

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Encode writes the result as tile info JSON.
func (r *Result) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode tile info: %w", err)
	}
	return nil
}

// Save writes the result to path, creating parent directories as needed.
func (r *Result) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create tile info file: %w", err)
	}

	if err := r.Encode(f); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// Decode reads tile info JSON written by Encode.
func Decode(rd io.Reader) (*Result, error) {
	var r Result
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode tile info: %w", err)
	}

	if r.Config.Size <= 0 || r.Config.Scale < 1 {
		return nil, fmt.Errorf("tile info has invalid config (size=%d, scale=%d)", r.Config.Size, r.Config.Scale)
	}

	return &r, nil
}

// Load reads a tile info file written by Save.
func Load(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tile info file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
