// Package domain models the tile notifications and mosaic announcements
// exchanged over Kafka.
//
// # Data Source
//
// Upstream production chains render one PNG tile per (satellite, product,
// nominal time) on a shared global grid and publish a JSON notification
// to a tile topic once the file is on disk:
//
//	{"uri": "...", "nominal_time": "...", "productname": "..."}
//
// The uri is a filesystem path reachable from this service. nominal_time
// is RFC 3339 and names the observation slot, not the publish time;
// tiles from different satellites carry the same nominal time when they
// observe the same slot. productname is the rendering recipe, e.g.
// "overview" or "natural_color".
//
// # Slot Conventions
//
// A slot is the pair (nominal time, product name). Tiles for one slot
// arrive minutes apart as each satellite's processing finishes, so slots
// accumulate until either the expected number of tiles has arrived or a
// per-slot deadline passes. Nominal times are normalized to UTC on parse;
// two notifications for the same instant always address the same slot.
//
// # Satellite Coverage
//
// Tile file names carry the producing satellite's identifier. Each
// satellite is trusted only inside a longitude range halfway to its
// orbital neighbors, and the loader blanks everything outside that range
// before compositing. The identifier is matched against the path by
// substring, so both directory layouts and file name schemes work.
//
// # Mosaic Announcements
//
// After a composite is saved, a MosaicEvent may be published to a sink
// topic so downstream distribution (web maps, WMS ingestion) can pick the
// image up without polling the filesystem. ProducedAt is stamped from the
// package clock; see [SetClock].
package domain
