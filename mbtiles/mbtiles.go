// Package mbtiles packages a converged tile tree into a single MBTiles
// database, the portable artifact most map viewers and servers consume.
package mbtiles

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/shaxbee/go-spatialite"
	"github.com/sirupsen/logrus"

	"tileseed/cover"
	"tileseed/store"
	"tileseed/tile"
)

// Metadata describes the tileset for the MBTiles metadata table.
type Metadata struct {
	Name   string
	Bounds string // "minLon,minLat,maxLon,maxLat", empty to omit
	Zoom   cover.ZoomRange
}

// BoundsString formats a bbox the way the metadata table expects it.
func BoundsString(b cover.BBox) string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// FlipRow converts a slippy (XYZ) row into the TMS row MBTiles stores,
// counting rows from the south instead of the north.
func FlipRow(z, y int) int {
	return (1 << uint(z)) - 1 - y
}

// Export walks the plan and writes every signature-valid artifact into a
// new MBTiles file at dest, replacing any existing file. Returns the
// number of tiles packed. Invalid or absent artifacts are skipped, not
// errors; callers export after convergence when none should remain.
func Export(dest string, st *store.Store, plan *cover.Plan, meta Metadata, log logrus.FieldLogger) (int64, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.RemoveAll(dest); err != nil {
		return 0, fmt.Errorf("remove stale mbtiles: %w", err)
	}

	db, err := sql.Open("spatialite", dest)
	if err != nil {
		return 0, fmt.Errorf("open mbtiles: %w", err)
	}
	defer db.Close()

	schema := []string{
		`CREATE TABLE metadata (name TEXT, value TEXT)`,
		`CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`,
		`CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return 0, fmt.Errorf("create schema: %w", err)
		}
	}

	if err := writeMetadata(db, meta); err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tile insert: %w", err)
	}
	insert, err := tx.Prepare(`INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prepare tile insert: %w", err)
	}
	defer insert.Close()

	var packed int64
	var walkErr error
	plan.Tiles(func(c tile.Coord) bool {
		path := st.Path(c)
		if !tile.ValidFile(path) {
			log.Debugf("skipping invalid artifact %s", c)
			return true
		}
		data, err := os.ReadFile(path)
		if err != nil {
			walkErr = fmt.Errorf("read %s: %w", path, err)
			return false
		}
		if _, err := insert.Exec(c.Z, c.X, FlipRow(c.Z, c.Y), data); err != nil {
			walkErr = fmt.Errorf("insert %s: %w", c, err)
			return false
		}
		packed++
		return true
	})
	if walkErr != nil {
		tx.Rollback()
		return 0, walkErr
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tiles: %w", err)
	}

	log.Infof("packed %d tiles into %s", packed, dest)
	return packed, nil
}

func writeMetadata(db *sql.DB, meta Metadata) error {
	rows := [][2]string{
		{"name", meta.Name},
		{"format", "png"},
		{"type", "baselayer"},
		{"version", "1"},
		{"minzoom", fmt.Sprintf("%d", meta.Zoom.Min)},
		{"maxzoom", fmt.Sprintf("%d", meta.Zoom.Max)},
	}
	if meta.Bounds != "" {
		rows = append(rows, [2]string{"bounds", meta.Bounds})
	}
	for _, row := range rows {
		if _, err := db.Exec(`INSERT INTO metadata (name, value) VALUES (?, ?)`, row[0], row[1]); err != nil {
			return fmt.Errorf("write metadata %s: %w", row[0], err)
		}
	}
	return nil
}
