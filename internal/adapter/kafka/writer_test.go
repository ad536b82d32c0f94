package kafka

import (
	"testing"
	"time"

	"github.com/DEMONNN69/hmpi-map-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	fetched := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	point := domain.SamplePoint{
		ID:            4217,
		Latitude:      26.9124,
		Longitude:     75.7873,
		Score:         130.5,
		Year:          2023,
		Category:      domain.SeverityUnsuitable,
		Color:         "#8b0000",
		HeatIntensity: 0.7,
		FetchedAt:     fetched,
	}

	msg, err := serializeToMessage(point)
	require.NoError(t, err)

	assert.Equal(t, []byte("4217"), msg.Key)
	assert.Contains(t, string(msg.Value), `"hmpi_value":130.5`)
	assert.Contains(t, string(msg.Value), `"quality_category":"Unsuitable"`)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "quality_category", msg.Headers[0].Key)
	assert.Equal(t, []byte("Unsuitable"), msg.Headers[0].Value)
	assert.Equal(t, "fetched_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2026-03-14T09:30:00Z"), msg.Headers[1].Value)
}
