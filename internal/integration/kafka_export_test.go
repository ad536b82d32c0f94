//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DEMONNN69/hmpi-map-engine/internal/adapter/backend"
	"github.com/DEMONNN69/hmpi-map-engine/internal/adapter/kafka"
	"github.com/DEMONNN69/hmpi-map-engine/internal/aggregate"
	"github.com/DEMONNN69/hmpi-map-engine/internal/config"
	"github.com/DEMONNN69/hmpi-map-engine/internal/domain"
	"github.com/DEMONNN69/hmpi-map-engine/internal/observability"
)

const testSinkTopic = "test-classified-points"

// exportedPoint holds a deserialized message read from the sink topic.
type exportedPoint struct {
	Point   domain.SamplePoint
	Key     string
	Headers map[string]string
}

func readExported(ctx context.Context, t *testing.T, consumer *kafkago.Reader) exportedPoint {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var point domain.SamplePoint
	require.NoError(t, json.Unmarshal(msg.Value, &point), "unmarshal sink message")

	return exportedPoint{Point: point, Key: string(msg.Key), Headers: headers}
}

// fakeBackend serves two pages of map data the way the dashboard backend does.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]domain.MapPage{
		"1": {
			Data: []domain.RawPoint{
				{ID: 1, Latitude: floatp(26.9124), Longitude: floatp(75.7873), HMPIValue: floatp(42.7), Year: intp(2023), LocationName: "Amber", State: "Rajasthan", District: "Jaipur"},
				{ID: 2, Latitude: floatp(28.7041), Longitude: floatp(77.1025), HMPIValue: floatp(130.2), Year: intp(2023), LocationName: "Najafgarh", State: "Delhi", District: "South West"},
			},
			Pagination: domain.Pagination{CurrentPage: 1, TotalPages: 2, TotalRecords: 3, HasNext: true, PageSize: 2},
		},
		"2": {
			Data: []domain.RawPoint{
				{ID: 3, Latitude: floatp(22.5726), Longitude: floatp(88.3639), HMPIValue: floatp(8.1), Year: intp(2022), LocationName: "Salt Lake", State: "West Bengal", District: "Kolkata"},
			},
			Pagination: domain.Pagination{CurrentPage: 2, TotalPages: 2, TotalRecords: 3, HasNext: false, PageSize: 2},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/map-data/", r.URL.Path)
		require.Equal(t, "Bearer integration-token", r.Header.Get("Authorization"))
		page, ok := pages[r.URL.Query().Get("page")]
		if !ok {
			http.Error(w, "no such page", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(server.Close)
	return server
}

// TestScanExportEndToEnd runs a full scan against a fake backend with a real
// Kafka sink and verifies every merged point lands on the topic, classified.
func TestScanExportEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}

	server := fakeBackend(t)
	metrics := observability.NewMetricsForTesting()
	client := backend.NewClient(server.URL, backend.StaticToken("integration-token"), 10*time.Second, 0, metrics, discardLogger())

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	agg := aggregate.New(client, writer, discardLogger(), metrics, 2, "basic")
	require.NoError(t, agg.RunFullScan(ctx))

	snap := agg.Snapshot()
	require.Equal(t, aggregate.StatusComplete, snap.Status)
	require.Len(t, snap.Points, 3)
	assert.Equal(t, []int{2023, 2022}, snap.AvailableYears)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make(map[string]exportedPoint, 3)
	for len(received) < 3 {
		ep := readExported(ctx, t, consumer)
		received[ep.Key] = ep
	}

	hotspot, ok := received["2"]
	require.True(t, ok, "expected point 2 on the sink topic")
	assert.Equal(t, "Unsuitable", hotspot.Headers["quality_category"])
	assert.Equal(t, domain.SeverityUnsuitable, hotspot.Point.Category)
	assert.Equal(t, "#8b0000", hotspot.Point.Color)
	assert.InEpsilon(t, 0.7, hotspot.Point.HeatIntensity, 0.0001)
	_, err := time.Parse(time.RFC3339, hotspot.Headers["fetched_at"])
	assert.NoError(t, err, "fetched_at should be valid RFC3339")

	clean, ok := received["3"]
	require.True(t, ok, "expected point 3 on the sink topic")
	assert.Equal(t, domain.SeverityExcellent, clean.Point.Category)
	assert.InEpsilon(t, 0.005, clean.Point.HeatIntensity, 0.0001)
	assert.Equal(t, 2022, clean.Point.Year)
}

func floatp(f float64) *float64 { return &f }
func intp(i int) *int           { return &i }
