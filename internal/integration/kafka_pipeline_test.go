//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/grid-reliability-etl/internal/adapter/kafka"
	"github.com/couchcryptid/grid-reliability-etl/internal/config"
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/observability"
	"github.com/couchcryptid/grid-reliability-etl/internal/output"
	"github.com/couchcryptid/grid-reliability-etl/internal/pipeline"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-datasets"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
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
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// mirroredMessage is one document read back from the topic.
type mirroredMessage struct {
	Key     string
	Body    []byte
	Headers map[string]string
}

func readMirrored(ctx context.Context, t *testing.T, broker string, n int) []mirroredMessage {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		StartOffset: kafkago.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := make([]mirroredMessage, 0, n)
	for range n {
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read from dataset topic")
		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		out = append(out, mirroredMessage{Key: string(msg.Key), Body: msg.Value, Headers: headers})
	}
	return out
}

// TestKafkaWriterRoundTrip verifies a document published through the Writer
// arrives intact with its routing headers.
func TestKafkaWriterRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	doc, err := output.Encode(output.WholesaleFileName, map[string]int{"points": 0})
	require.NoError(t, err)
	require.NoError(t, writer.Publish(ctx, doc))

	msgs := readMirrored(ctx, t, broker, 1)
	assert.Equal(t, output.WholesaleFileName, msgs[0].Key)
	assert.Equal(t, doc.Body, msgs[0].Body)
	assert.Equal(t, output.WholesaleFileName, msgs[0].Headers["dataset"])
	assert.Equal(t, "2024-06-01T12:00:00Z", msgs[0].Headers["published_at"])
}

// TestPipelineMirrorsToKafka runs the sample commands with a file sink and a
// Kafka mirror and checks both receive every document.
func TestPipelineMirrorsToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	outDir := t.TempDir()
	sink := output.Fanout{
		Primary: output.FileSink{Dir: outDir},
		Mirrors: []output.Sink{writer},
		Logger:  discardLogger(),
	}
	r := pipeline.New(domain.DefaultRefData(), rawdata.Store{Dir: t.TempDir()}, pipeline.Sources{}, sink,
		observability.NewMetricsForTesting(), discardLogger())

	require.NoError(t, r.Build(ctx, pipeline.BuildOptions{Sample: true}))
	require.NoError(t, r.Outages(ctx, true))
	require.NoError(t, r.Wholesale(ctx, true))

	msgs := readMirrored(ctx, t, broker, 3)
	got := make(map[string][]byte, len(msgs))
	for _, m := range msgs {
		got[m.Key] = m.Body
	}
	for _, name := range []string{output.ChartFileName, output.OutageFileName, output.WholesaleFileName} {
		body, ok := got[name]
		require.True(t, ok, "%s not mirrored", name)
		assert.True(t, json.Valid(body), name)
		assert.FileExists(t, filepath.Join(outDir, name))
	}
}
