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

	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/ana"
	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/httpclient"
	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-data-etl-service/internal/config"
	"github.com/couchcryptid/hydro-data-etl-service/internal/domain"
	"github.com/couchcryptid/hydro-data-etl-service/internal/observability"
	"github.com/couchcryptid/hydro-data-etl-service/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-analysis-requests"
	testSinkTopic   = "test-analysis-results"
)

// publishedResult is a result read back from the sink topic.
type publishedResult struct {
	Result  domain.AnalysisResult
	Key     string
	Headers map[string]string
}

func readResult(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedResult {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var res domain.AnalysisResult
	require.NoError(t, json.Unmarshal(msg.Value, &res), "unmarshal sink message")
	return publishedResult{Result: res, Key: string(msg.Key), Headers: headers}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 2 * time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func publish(ctx context.Context, t *testing.T, broker string, payloads ...string) {
	t.Helper()
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, len(payloads))
	for i, p := range payloads {
		msgs[i] = kafkago.Message{Key: []byte(fmt.Sprintf("msg-%d", i)), Value: []byte(p)}
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
}

// TestKafkaReaderWriter round-trips one request through kafka.Reader, the
// analysis transformer and kafka.Writer.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	payload := `{"id":"rc-1","kind":"rating_curve","stage":[1,2,3,4],"discharge":[6,15,28,45]}`
	publish(ctx, t, broker, payload)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	batch, err := reader.ExtractBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("msg-0"), raw.Key)
	assert.JSONEq(t, payload, string(raw.Value))
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	transformer := pipeline.NewAnalysisTransformer(pipeline.Sources{}, 0, discardLogger(), observability.NewMetricsForTesting())
	out, err := transformer.Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.OutputEvent{out}))

	got := readResult(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "rc-1", got.Key)
	assert.Equal(t, "rating_curve", got.Headers["kind"])
	assert.Equal(t, domain.StatusOK, got.Headers["status"])
	_, err = time.Parse(time.RFC3339, got.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	require.NotNil(t, got.Result.RatingCurve)
	assert.InDelta(t, 2, got.Result.RatingCurve.A, 1e-9)
	assert.InDelta(t, 3, got.Result.RatingCurve.B, 1e-9)
	assert.InDelta(t, 1, got.Result.RatingCurve.C, 1e-9)
}

// TestPipelineEndToEnd runs the full pipeline against Kafka. Invalid
// requests yield failed results; a request whose upstream fetch fails is
// skipped.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	// An ANA endpoint that rejects every request.
	anaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(anaSrv.Close)

	publish(ctx, t, broker,
		`{"id":"hg-1","kind":"hydrograph","rainfall":[10,20],"unit_hydrograph":[1,2,1],"unit_depth_mm":10}`,
		`not-json{{{`,
		`{"id":"ds-1","kind":"discharge_stats","station":"56994500","start":"2023-01-01","end":"2023-01-31"}`,
		`{"id":"pf-1","kind":"peak_flow","intensity_mm_h":20,"area_km2":10,"runoff_coefficient":0.5}`,
	)

	metrics := observability.NewMetricsForTesting()
	anaClient := ana.NewClient(anaSrv.URL,
		httpclient.WithRetries(0, time.Millisecond),
		httpclient.WithLogger(discardLogger()),
	)
	transformer := pipeline.NewAnalysisTransformer(pipeline.Sources{
		StageDischarge: anaClient,
		Rainfall:       map[string]domain.RainfallSource{domain.RainSourceANA: anaClient},
	}, 0, discardLogger(), metrics)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, transformer, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	results := map[string]publishedResult{}
	for len(results) < 3 {
		got := readResult(ctx, t, consumer)
		results[string(got.Result.Kind)+"/"+got.Result.Status] = got
	}

	// The rejected discharge_stats request never reaches the sink.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no further message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
	assert.NoError(t, p.CheckReadiness(ctx))

	hg, ok := results["hydrograph/ok"]
	require.True(t, ok, "hydrograph result")
	assert.Equal(t, "hg-1", hg.Key)
	assert.Equal(t, []float64{1, 4, 5, 2}, hg.Result.Hydrograph.Ordinates)

	pf, ok := results["peak_flow/ok"]
	require.True(t, ok, "peak flow result")
	assert.InDelta(t, 27.8, *pf.Result.PeakFlow, 1e-9)

	bad, ok := results["/failed"]
	require.True(t, ok, "failed result for malformed request")
	assert.Contains(t, bad.Result.Error, "decode")
	assert.NotEmpty(t, bad.Key)
}
