//go:build js && wasm

package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/MeKo-Tech/staticstitch/internal/geo"
	"github.com/MeKo-Tech/staticstitch/internal/grid"
)

// GenerateGridRequest represents a grid request from JS.
type GenerateGridRequest struct {
	Southwest geo.LatLng `json:"southwest"`
	Northeast geo.LatLng `json:"northeast"`
	Zoom      int        `json:"zoom"`
	Size      int        `json:"size"`
	Scale     int        `json:"scale"`
	Maptype   string     `json:"maptype"`
}

// generateGrid is called from JavaScript with a JSON request and returns the
// tile info JSON, so a browser can preview the tiles a bounding box needs.
func generateGrid(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]any{"error": "missing arguments"}
	}

	opts := grid.DefaultOptions()
	req := GenerateGridRequest{Zoom: opts.Zoom, Size: opts.Size, Scale: opts.Scale, Maptype: opts.Maptype}
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return map[string]any{"error": fmt.Sprintf("failed to parse request: %v", err)}
	}

	opts.Southwest = req.Southwest
	opts.Northeast = req.Northeast
	opts.Zoom = req.Zoom
	opts.Size = req.Size
	opts.Scale = req.Scale
	opts.Maptype = req.Maptype

	result, err := grid.Generate(opts)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return map[string]any{"error": fmt.Sprintf("failed to encode grid: %v", err)}
	}

	return map[string]any{
		"grid":    string(data),
		"columns": result.Columns(),
		"rows":    result.Rows(),
	}
}

func main() {
	c := make(chan struct{})

	js.Global().Set("staticstitchGenerateGrid", js.FuncOf(generateGrid))

	fmt.Println("StaticStitch WASM module loaded")
	<-c
}
