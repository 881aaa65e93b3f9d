package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/colorbar-timeseries/internal/config"
	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
	"github.com/couchcryptid/colorbar-timeseries/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces finished time series to a Kafka topic.
type Publisher struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for the configured results topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger, metrics: metrics}
}

// Publish writes one result. Results for the same domain and variable share a
// key and therefore a partition.
func (p *Publisher) Publish(ctx context.Context, result *domain.TimeSeriesResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		p.metrics.ResultsPublished.WithLabelValues("error").Inc()
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.ResultsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish time series: %w", err)
	}
	p.metrics.ResultsPublished.WithLabelValues("success").Inc()
	p.logger.Debug("time series published",
		"topic", p.writer.Topic,
		"domain", result.Domain,
		"variable", result.Variable,
		"timestamps", len(result.Timestamps),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a TimeSeriesResult into a Kafka message.
func serializeToMessage(result *domain.TimeSeriesResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize time series: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.Domain + "/" + result.Variable),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "domain", Value: []byte(result.Domain)},
			{Key: "variable", Value: []byte(result.Variable)},
			{Key: "generated_at", Value: []byte(result.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
