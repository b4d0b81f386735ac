// Command compose builds one composite from tile files on disk, outside
// the notification loop. It applies the same masking, merging and
// blending as the service, so it is useful for reprocessing a slot or
// inspecting how a set of tiles combines.
//
// Usage:
//
//	go run ./cmd/compose \
//	  -settings config/mosaic.yaml \
//	  -product overview \
//	  -time 2026-08-25T12:00:00Z \
//	  tiles/overview_GOES-16.png tiles/overview_Meteosat-11.png
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/nordsat/world-mosaic/internal/aggregator"
	"github.com/nordsat/world-mosaic/internal/compositor"
	"github.com/nordsat/world-mosaic/internal/config"
	"github.com/nordsat/world-mosaic/internal/raster"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	settingsPath := flag.String("settings", "", "path to the mosaic settings YAML")
	product := flag.String("product", "", "product name of the tiles")
	nominalStr := flag.String("time", "", "nominal time of the slot (RFC3339)")
	outPath := flag.String("out", "", "output path (default: expand the configured out_pattern)")
	flag.Parse()

	if *settingsPath == "" || *product == "" || *nominalStr == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -settings, -product, -time")
	}
	if flag.NArg() == 0 {
		flag.Usage()
		return fmt.Errorf("no tile files given")
	}

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		return err
	}

	nominal, err := time.Parse(time.RFC3339, *nominalStr)
	if err != nil {
		return fmt.Errorf("parse -time: %w", err)
	}
	nominal = nominal.UTC()

	area := settings.Area()
	limits := settings.SatelliteLimits()
	blend := settings.BlendConfig()

	target := *outPath
	if target == "" {
		target, err = aggregator.ComposeOutPath(settings.OutPattern, *product, nominal, area.Name)
		if err != nil {
			return err
		}
	}

	// An existing composite at the target becomes the merge base, same
	// as in the service.
	img, err := raster.LoadMergeBase(target, nominal, area, limits)
	if err != nil {
		return fmt.Errorf("existing composite %s: %w", target, err)
	}
	if img != nil {
		log.Printf("merging onto existing composite: %s", target)
	} else {
		log.Printf("no composite at %s yet, starting fresh", target)
	}

	for _, path := range flag.Args() {
		tile, err := raster.LoadTile(path, nominal, area, limits)
		if err != nil {
			return fmt.Errorf("load tile %s: %w", path, err)
		}
		log.Printf("%s: satellite=%q", path, tile.Satellite)
		img, err = compositor.Merge(img, tile.Raster, blend)
		if err != nil {
			return fmt.Errorf("merge tile %s: %w", path, err)
		}
	}

	if err := raster.SaveMosaic(target, img); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", target)
	printCoverage(img)
	return nil
}

// printCoverage reports how much of the composite holds data.
func printCoverage(img *raster.Raster) {
	total := img.Width * img.Height
	covered := 0
	for _, occ := range img.Occluded {
		if !occ {
			covered++
		}
	}
	fmt.Printf("area: %dx%d, coverage: %d/%d pixels (%.1f%%)\n",
		img.Width, img.Height, covered, total, 100*float64(covered)/float64(total))
}
