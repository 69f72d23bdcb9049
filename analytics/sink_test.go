package analytics_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MouadFiali/gke-cloud-project/analytics"
	"github.com/MouadFiali/gke-cloud-project/models"
	aws_pkg "github.com/MouadFiali/gke-cloud-project/pkg/aws"
)

type fakeMetrics struct {
	counts map[string]float64
	err    error
}

func (f *fakeMetrics) RecordCount(_ context.Context, name string, value float64, _ map[string]string) error {
	if f.counts == nil {
		f.counts = make(map[string]float64)
	}
	f.counts[name] += value
	return f.err
}

type fakePublisher struct {
	topic    string
	messages [][]byte
}

func (f *fakePublisher) Publish(_ context.Context, topicArn string, message []byte) error {
	f.topic = topicArn
	f.messages = append(f.messages, message)
	return nil
}

type fakeArchiver struct {
	objects map[string][]byte
}

func (f *fakeArchiver) PutJSON(_ context.Context, key string, body []byte) error {
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = body
	return nil
}

var sampleReport = models.SummaryReport{
	WindowStart:     time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	WindowEnd:       time.Date(2026, 10, 19, 12, 5, 0, 0, time.UTC),
	ViewCount:       3,
	AddCount:        4,
	EmptyCount:      1,
	UniqueUsers:     2,
	TotalItemsAdded: 9,
	TopProducts:     []models.ProductCount{{ProductID: "SKU1", Quantity: 9}},
}

func TestLogSink_TagsBusinessCategory(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := analytics.NewLogSink(zap.New(core))

	qty := int32(7)
	require.NoError(t, sink.EmitEvent(context.Background(), models.BusinessEvent{
		EventType: models.EventLargeQuantityAddition,
		UserID:    "u1",
		ProductID: "SKU1",
		Quantity:  &qty,
	}))
	require.NoError(t, sink.EmitReport(context.Background(), sampleReport))

	entries := logs.All()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, analytics.BusinessCategory, e.ContextMap()["category"])
	}
	assert.Equal(t, "Business event", entries[0].Message)
	assert.Equal(t, int32(7), entries[0].ContextMap()["quantity"])
	assert.Equal(t, "Cart statistics summary", entries[1].Message)
	assert.Equal(t, int64(4), entries[1].ContextMap()["additions"])
}

func TestMetricsSink_OneDatumPerCounter(t *testing.T) {
	metrics := &fakeMetrics{}
	sink := analytics.NewMetricsSink(metrics, "cart-service")

	require.NoError(t, sink.EmitReport(context.Background(), sampleReport))
	require.NoError(t, sink.EmitEvent(context.Background(), models.BusinessEvent{EventType: "view_cart_error"}))

	assert.Equal(t, map[string]float64{
		aws_pkg.MetricCartViews:          3,
		aws_pkg.MetricCartAdditions:      4,
		aws_pkg.MetricCartEmpties:        1,
		aws_pkg.MetricCartUniqueUsers:    2,
		aws_pkg.MetricCartItemsAdded:     9,
		aws_pkg.MetricCartBusinessEvents: 1,
	}, metrics.counts)
}

func TestSNSSink_PublishesEventsOnly(t *testing.T) {
	pub := &fakePublisher{}
	sink := analytics.NewSNSSink(pub, "arn:aws:sns:us-east-1:000000000000:cart-events")

	require.NoError(t, sink.EmitEvent(context.Background(), models.BusinessEvent{EventType: "empty_cart_error", UserID: "u1"}))
	require.NoError(t, sink.EmitReport(context.Background(), sampleReport))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:cart-events", pub.topic)
	var ev models.BusinessEvent
	require.NoError(t, json.Unmarshal(pub.messages[0], &ev))
	assert.Equal(t, "empty_cart_error", ev.EventType)
}

func TestArchiveSink_KeysByWindowEnd(t *testing.T) {
	arch := &fakeArchiver{}
	sink := analytics.NewArchiveSink(arch)

	require.NoError(t, sink.EmitReport(context.Background(), sampleReport))

	key := analytics.ReportKey(sampleReport)
	assert.Contains(t, key, "2026/10/19/")
	require.Contains(t, arch.objects, key)
	var got models.SummaryReport
	require.NoError(t, json.Unmarshal(arch.objects[key], &got))
	assert.Equal(t, sampleReport.TotalItemsAdded, got.TotalItemsAdded)
}

func TestMultiSink_CombinesErrors(t *testing.T) {
	first := &fakeMetrics{err: errors.New("throttled")}
	second := &recordingSink{}
	sink := analytics.MultiSink{analytics.NewMetricsSink(first, "cart-service"), second}

	err := sink.EmitReport(context.Background(), sampleReport)
	assert.ErrorContains(t, err, "throttled")
	assert.Len(t, second.Reports(), 1, "later sinks still receive the report")
}
