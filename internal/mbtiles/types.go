// Package mbtiles stores rendered textures in an SQLite MBTiles container.
package mbtiles

import (
	"strconv"
)

// Metadata contains the MBTiles metadata rows written for a texture.
type Metadata struct {
	Name        string // Human-readable texture name
	Format      string // Tile data type, always png for textures
	Description string
	Type        string // "baselayer" or "overlay"
	Version     string
	Width       int // Source texture width in pixels
	Height      int // Source texture height in pixels
	Seamless    bool
	MinZoom     int
	MaxZoom     int
}

// ToMap converts Metadata to name/value rows. Zoom levels are always written
// because a single-tile container lives at zoom 0.
func (m Metadata) ToMap() map[string]string {
	result := map[string]string{
		"minzoom": strconv.Itoa(m.MinZoom),
		"maxzoom": strconv.Itoa(m.MaxZoom),
	}

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Format != "" {
		result["format"] = m.Format
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Type != "" {
		result["type"] = m.Type
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	if m.Width > 0 {
		result["width"] = strconv.Itoa(m.Width)
	}
	if m.Height > 0 {
		result["height"] = strconv.Itoa(m.Height)
	}
	if m.Seamless {
		result["seamless"] = "true"
	}

	return result
}

// metadataFromMap is the inverse of ToMap. Unparseable numbers are left at zero.
func metadataFromMap(rows map[string]string) Metadata {
	atoi := func(key string) int {
		v, err := strconv.Atoi(rows[key])
		if err != nil {
			return 0
		}
		return v
	}

	return Metadata{
		Name:        rows["name"],
		Format:      rows["format"],
		Description: rows["description"],
		Type:        rows["type"],
		Version:     rows["version"],
		Width:       atoi("width"),
		Height:      atoi("height"),
		Seamless:    rows["seamless"] == "true",
		MinZoom:     atoi("minzoom"),
		MaxZoom:     atoi("maxzoom"),
	}
}
