package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordsat/world-mosaic/internal/domain"
)

func TestMapMessageToTileEvent(t *testing.T) {
	msg := kafkago.Message{
		Key:   []byte("key-1"),
		Value: []byte(`{"uri":"/data/tiles/overview_GOES-16.png","nominal_time":"2026-08-25T12:00:00+02:00","productname":"overview"}`),
		Topic: "tile-notifications",
	}

	evt, err := mapMessageToTileEvent(msg)
	require.NoError(t, err)

	assert.Equal(t, "/data/tiles/overview_GOES-16.png", evt.URI)
	assert.Equal(t, "overview", evt.ProductName)
	assert.Equal(t, time.UTC, evt.NominalTime.Location(), "nominal time should be normalized to UTC")
	assert.True(t, evt.NominalTime.Equal(time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)))
}

func TestMapMessageToTileEvent_Malformed(t *testing.T) {
	cases := map[string]string{
		"invalid json": `not-json{{{`,
		"missing uri":  `{"nominal_time":"2026-08-25T12:00:00Z","productname":"overview"}`,
		"missing time": `{"uri":"/data/tile.png","productname":"overview"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := mapMessageToTileEvent(kafkago.Message{Value: []byte(payload)})
			assert.Error(t, err)
		})
	}
}

func TestSerializeMosaicEvent(t *testing.T) {
	nominal := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	produced := time.Date(2026, 8, 25, 12, 45, 10, 0, time.UTC)
	event := domain.MosaicEvent{
		URI:         "/data/mosaics/overview_20260825_1200_worldeqc3km.png",
		NominalTime: nominal,
		ProductName: "overview",
		AreaName:    "worldeqc3km",
		NumTiles:    5,
		ProducedAt:  produced,
	}

	msg, err := serializeMosaicEvent(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("overview-2026-08-25T12:00:00Z"), msg.Key)
	assert.Contains(t, string(msg.Value), `"uri":"/data/mosaics/overview_20260825_1200_worldeqc3km.png"`)
	assert.Contains(t, string(msg.Value), `"num_tiles":5`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "productname", msg.Headers[0].Key)
	assert.Equal(t, []byte("overview"), msg.Headers[0].Value)
	assert.Equal(t, "produced_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(produced.Format(time.RFC3339)), msg.Headers[1].Value)
}
