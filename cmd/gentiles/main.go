// Command gentiles generates synthetic satellite tiles plus a matching
// notification fixture for the configured mosaic area. Each satellite
// gets a tile covering its longitude band at a distinct grey level, so
// a composite built from them shows exactly which tile contributed
// which columns. The notifications file holds one tile event per line,
// ready to pipe into the source topic with kcat.
//
// Usage:
//
//	go run ./cmd/gentiles \
//	  -settings config/mosaic.yaml \
//	  -out-dir data/tiles \
//	  -time 2026-08-25T12:00:00Z
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nordsat/world-mosaic/internal/config"
	"github.com/nordsat/world-mosaic/internal/domain"
	"github.com/nordsat/world-mosaic/internal/grid"
	"github.com/nordsat/world-mosaic/internal/raster"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	settingsPath := flag.String("settings", "", "path to the mosaic settings YAML")
	outDir := flag.String("out-dir", "", "directory for the generated tiles")
	product := flag.String("product", "overview", "product name for tiles and notifications")
	nominalStr := flag.String("time", "", "nominal time of the slot (RFC3339, default: current hour)")
	overlap := flag.Int("overlap", 10, "columns of extra coverage on each side of a satellite's band")
	flag.Parse()

	if *settingsPath == "" || *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -settings, -out-dir")
	}

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		return err
	}

	nominal := time.Now().UTC().Truncate(time.Hour)
	if *nominalStr != "" {
		nominal, err = time.Parse(time.RFC3339, *nominalStr)
		if err != nil {
			return fmt.Errorf("parse -time: %w", err)
		}
		nominal = nominal.UTC()
	}

	area := settings.Area()
	limits := satelliteBands(settings)

	names := make([]string, 0, len(limits))
	for name := range limits {
		names = append(names, name)
	}
	sort.Strings(names)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	var events []domain.TileEvent
	for i, name := range names {
		visible := visibleColumns(area.Width, limits[name], *overlap)
		span := 0
		for _, v := range visible {
			if v {
				span++
			}
		}
		if span == 0 {
			log.Printf("skipping %s: no visible columns", name)
			continue
		}

		value := greyLevel(i, len(names))
		path := filepath.Join(*outDir, fmt.Sprintf("%s_%s.png", *product, name))
		if err := writeTile(path, area, visible, value); err != nil {
			return fmt.Errorf("write tile %s: %w", name, err)
		}

		uri, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		events = append(events, domain.TileEvent{
			URI:         uri,
			NominalTime: nominal,
			ProductName: *product,
		})
		log.Printf("%s: %d/%d columns, grey %.2f", name, span, area.Width, value)
	}

	notifPath := filepath.Join(*outDir, "notifications.jsonl")
	if err := writeNotifications(notifPath, events); err != nil {
		return fmt.Errorf("writing notifications: %w", err)
	}

	fmt.Printf("wrote %d tiles and %s for slot %s\n",
		len(events), notifPath, nominal.Format(time.RFC3339))
	return nil
}

// satelliteBands returns the longitude bands to generate tiles for:
// the explicit lon_limits from the settings when given, otherwise the
// built-in satellite table.
func satelliteBands(settings *config.Settings) map[string]grid.LonRange {
	if len(settings.LonLimits) > 0 {
		bands := make(map[string]grid.LonRange, len(settings.LonLimits))
		for name, lims := range settings.LonLimits {
			bands[name] = grid.LonRange{West: lims[0], East: lims[1]}
		}
		return bands
	}
	return grid.DefaultLonLimits()
}

// visibleColumns marks the columns a satellite's band covers, widened
// by the overlap margin with wraparound so neighbouring tiles share
// edges for the blender to work on.
func visibleColumns(width int, band grid.LonRange, margin int) []bool {
	masked := make([]bool, width)
	for _, iv := range grid.MaskIntervals(width, band) {
		lo := max(iv.Lo, 0)
		hi := min(iv.Hi, width)
		for c := lo; c < hi; c++ {
			masked[c] = true
		}
	}

	visible := make([]bool, width)
	for c := range visible {
		visible[c] = !masked[c]
	}

	widened := make([]bool, width)
	copy(widened, visible)
	for c := 0; c < width; c++ {
		if !visible[c] {
			continue
		}
		for d := 1; d <= margin; d++ {
			widened[((c-d)%width+width)%width] = true
			widened[(c+d)%width] = true
		}
	}
	return widened
}

// greyLevel spreads tile values over [0.3, 0.9] so every satellite's
// contribution is tellable apart in the composite.
func greyLevel(i, n int) float64 {
	if n <= 1 {
		return 0.6
	}
	return 0.3 + 0.6*float64(i)/float64(n-1)
}

func writeTile(path string, area grid.Definition, visible []bool, value float64) error {
	img := raster.New(area.Width, area.Height)
	for y := 0; y < area.Height; y++ {
		for x := 0; x < area.Width; x++ {
			if visible[x] {
				img.SetPixel(x, y, value, value, value, 1.0)
			}
		}
	}
	return raster.SaveMosaic(path, img)
}

func writeNotifications(path string, events []domain.TileEvent) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, evt := range events {
		if err := enc.Encode(evt); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
