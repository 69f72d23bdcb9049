package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/MouadFiali/gke-cloud-project/models"
	aws_pkg "github.com/MouadFiali/gke-cloud-project/pkg/aws"
)

// BusinessCategory tags every business log line.
const BusinessCategory = "Business"

// ReportSink receives immediate business events and periodic summary reports.
type ReportSink interface {
	EmitEvent(ctx context.Context, event models.BusinessEvent) error
	EmitReport(ctx context.Context, report models.SummaryReport) error
}

// MultiSink fans out to every sink and combines their errors.
type MultiSink []ReportSink

func (m MultiSink) EmitEvent(ctx context.Context, event models.BusinessEvent) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.EmitEvent(ctx, event))
	}
	return err
}

func (m MultiSink) EmitReport(ctx context.Context, report models.SummaryReport) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.EmitReport(ctx, report))
	}
	return err
}

// LogSink writes events and reports as structured log lines.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.With(zap.String("category", BusinessCategory))}
}

func (s *LogSink) EmitEvent(_ context.Context, ev models.BusinessEvent) error {
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.EventType),
		zap.String("user_id", ev.UserID),
		zap.Time("event_timestamp", ev.Timestamp),
	}
	if ev.CartID != "" {
		fields = append(fields, zap.String("cart_id", ev.CartID))
	}
	if ev.ProductID != "" {
		fields = append(fields, zap.String("product_id", ev.ProductID))
	}
	if ev.Quantity != nil {
		fields = append(fields, zap.Int32("quantity", *ev.Quantity))
	}
	if ev.TotalItems != nil {
		fields = append(fields, zap.Int("total_items", *ev.TotalItems))
	}
	if ev.ErrorDetails != "" {
		fields = append(fields, zap.String("error_details", ev.ErrorDetails))
	}
	s.logger.Info("Business event", fields...)
	return nil
}

func (s *LogSink) EmitReport(_ context.Context, r models.SummaryReport) error {
	s.logger.Info("Cart statistics summary",
		zap.Time("window_start", r.WindowStart),
		zap.Time("window_end", r.WindowEnd),
		zap.Int64("views", r.ViewCount),
		zap.Int64("additions", r.AddCount),
		zap.Int64("empties", r.EmptyCount),
		zap.Int("unique_users", r.UniqueUsers),
		zap.Int64("total_items", r.TotalItemsAdded),
		zap.Any("top_products", r.TopProducts),
	)
	return nil
}

// MetricsRecorder is satisfied by *aws.MetricsClient.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, value float64, dimensions map[string]string) error
}

// MetricsSink publishes one datum per report counter and one per event.
type MetricsSink struct {
	metrics MetricsRecorder
	service string
}

func NewMetricsSink(metrics MetricsRecorder, service string) *MetricsSink {
	return &MetricsSink{metrics: metrics, service: service}
}

func (s *MetricsSink) EmitEvent(ctx context.Context, ev models.BusinessEvent) error {
	return s.metrics.RecordCount(ctx, aws_pkg.MetricCartBusinessEvents, 1, map[string]string{
		"Service":   s.service,
		"EventType": ev.EventType,
	})
}

func (s *MetricsSink) EmitReport(ctx context.Context, r models.SummaryReport) error {
	dims := map[string]string{"Service": s.service}
	counts := []struct {
		name  string
		value float64
	}{
		{aws_pkg.MetricCartViews, float64(r.ViewCount)},
		{aws_pkg.MetricCartAdditions, float64(r.AddCount)},
		{aws_pkg.MetricCartEmpties, float64(r.EmptyCount)},
		{aws_pkg.MetricCartUniqueUsers, float64(r.UniqueUsers)},
		{aws_pkg.MetricCartItemsAdded, float64(r.TotalItemsAdded)},
	}

	var err error
	for _, c := range counts {
		err = multierr.Append(err, s.metrics.RecordCount(ctx, c.name, c.value, dims))
	}
	return err
}

// SNSSink publishes business events to a topic. Reports are not published.
type SNSSink struct {
	publisher aws_pkg.SNSPublisher
	topicArn  string
}

func NewSNSSink(publisher aws_pkg.SNSPublisher, topicArn string) *SNSSink {
	return &SNSSink{publisher: publisher, topicArn: topicArn}
}

func (s *SNSSink) EmitEvent(ctx context.Context, ev models.BusinessEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal business event: %w", err)
	}
	return s.publisher.Publish(ctx, s.topicArn, body)
}

func (s *SNSSink) EmitReport(context.Context, models.SummaryReport) error { return nil }

// Archiver is satisfied by *aws.ReportArchiver.
type Archiver interface {
	PutJSON(ctx context.Context, key string, body []byte) error
}

// ArchiveSink stores each summary report as one JSON object. Events are not archived.
type ArchiveSink struct {
	archiver Archiver
}

func NewArchiveSink(archiver Archiver) *ArchiveSink {
	return &ArchiveSink{archiver: archiver}
}

func (s *ArchiveSink) EmitEvent(context.Context, models.BusinessEvent) error { return nil }

func (s *ArchiveSink) EmitReport(ctx context.Context, r models.SummaryReport) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal summary report: %w", err)
	}
	return s.archiver.PutJSON(ctx, ReportKey(r), body)
}

// ReportKey returns "YYYY/MM/DD/<window end unix nanos>.json".
func ReportKey(r models.SummaryReport) string {
	end := r.WindowEnd.UTC()
	return end.Format("2006/01/02") + "/" + strconv.FormatInt(end.UnixNano(), 10) + ".json"
}
