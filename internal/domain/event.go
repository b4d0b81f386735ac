package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TileEvent is a "tile ready" notification consumed from the source
// topics. NominalTime identifies the observation slot the tile belongs
// to, not the time the message was produced.
type TileEvent struct {
	URI         string    `json:"uri"`
	NominalTime time.Time `json:"nominal_time"`
	ProductName string    `json:"productname"`
}

// ParseTileEvent decodes a tile notification payload and normalizes its
// nominal time to UTC. Notifications carrying the same instant must land
// in the same slot regardless of the zone offset they were sent with.
func ParseTileEvent(payload []byte) (TileEvent, error) {
	var evt TileEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return TileEvent{}, fmt.Errorf("parse tile event: %w", err)
	}
	if evt.URI == "" {
		return TileEvent{}, fmt.Errorf("parse tile event: missing uri")
	}
	if evt.ProductName == "" {
		return TileEvent{}, fmt.Errorf("parse tile event: missing productname")
	}
	if evt.NominalTime.IsZero() {
		return TileEvent{}, fmt.Errorf("parse tile event: missing nominal_time")
	}
	evt.NominalTime = evt.NominalTime.UTC()
	return evt, nil
}

// MosaicEvent announces a finished composite on the sink topic.
type MosaicEvent struct {
	URI         string    `json:"uri"`
	NominalTime time.Time `json:"nominal_time"`
	ProductName string    `json:"productname"`
	AreaName    string    `json:"areaname"`
	NumTiles    int       `json:"num_tiles"`
	ProducedAt  time.Time `json:"produced_at"`
}

// NewMosaicEvent builds the announcement for a saved composite, stamped
// with the current time.
func NewMosaicEvent(uri, product, area string, nominal time.Time, numTiles int) MosaicEvent {
	return MosaicEvent{
		URI:         uri,
		NominalTime: nominal.UTC(),
		ProductName: product,
		AreaName:    area,
		NumTiles:    numTiles,
		ProducedAt:  clock.Now().UTC(),
	}
}
