//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/hazard-map-service/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-map-service/internal/adapter/usgs"
	"github.com/couchcryptid/hazard-map-service/internal/config"
	"github.com/couchcryptid/hazard-map-service/internal/domain"
	"github.com/couchcryptid/hazard-map-service/internal/observability"
	"github.com/couchcryptid/hazard-map-service/internal/pipeline"
	"github.com/couchcryptid/hazard-map-service/internal/store"
)

const testTopic = "test-hazard-events"

const feedBody = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "us1", "properties": {"mag": 4.2, "time": 1700000000000, "place": "Kathmandu"},
     "geometry": {"type": "Point", "coordinates": [85.3, 27.8, 10.0]}},
    {"type": "Feature", "id": "us2", "properties": {"mag": 7.8, "time": 1700000200000, "place": "Gorkha"},
     "geometry": {"type": "Point", "coordinates": [84.7, 28.1, 8.2]}}
  ]
}`

// publishedMessage holds a deserialized message read back from the topic.
type publishedMessage struct {
	ID       string               `json:"id"`
	Severity domain.SeverityClass `json:"severity"`
	Threat   string               `json:"threat"`
	Key      string               `json:"-"`
	Headers  map[string]string    `json:"-"`
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	kc, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("hazard-map-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := kc.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	var out publishedMessage
	require.NoError(t, json.Unmarshal(msg.Value, &out), "unmarshal message")
	out.Key = string(msg.Key)
	out.Headers = make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out.Headers[h.Key] = string(h.Value)
	}
	return out
}

// TestFetchPublishesToKafka runs a fetch against a fake catalog and reads the
// committed events back from the topic.
func TestFetchPublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feedBody))
	}))
	defer feed.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}

	writer := kafka.NewWriter(cfg, logger)
	defer writer.Close()

	events := store.New()
	coord := pipeline.New(usgs.NewClient(feed.URL, 10*time.Second, 0, metrics, logger), events,
		pipeline.Settings{Timeout: 30 * time.Second}, logger, metrics)
	coord.AddSink(writer)

	res, err := coord.Fetch(ctx, domain.FetchParams{
		Start:        time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC),
		MinMagnitude: 4,
		Region:       domain.RegionNepal,
	})
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeLoaded, res.Outcome)
	require.InDelta(t, 1, testutil.ToFloat64(metrics.SinkWrites.WithLabelValues("kafka", "success")), 0, "kafka sink should have succeeded")

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-reader-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	defer consumer.Close()

	got := map[string]publishedMessage{}
	for range 2 {
		m := readPublished(ctx, t, consumer)
		got[m.Key] = m
	}

	require.Contains(t, got, "us1")
	require.Contains(t, got, "us2")
	assert.Equal(t, domain.SeverityLow, got["us1"].Severity)
	assert.Equal(t, "CRITICAL", got["us2"].Headers["severity"])
	assert.Equal(t, "CRITICAL", got["us2"].Threat)
	assert.Equal(t, res.Range.LoadedAt.UTC().Format(time.RFC3339), got["us2"].Headers["loaded_at"])
}
