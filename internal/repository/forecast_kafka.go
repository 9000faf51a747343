package repository

import (
	"context"
	"time"

	"EquiCast/internal/domain/models"
	"EquiCast/internal/domain/repository"
	pkgkafka "EquiCast/pkg/kafka"
)

// KafkaForecastPublisher emits each completed result bundle to a Kafka topic
// as one message per ticker, keyed by ticker so consumers see a per-symbol
// ordered stream.
type KafkaForecastPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaForecastPublisher creates a Kafka forecast publisher.
func NewKafkaForecastPublisher(producer *pkgkafka.Producer, topic string) repository.ForecastPublisher {
	if topic == "" {
		topic = "equicast.forecasts"
	}
	return &KafkaForecastPublisher{producer: producer, topic: topic}
}

// forecastEvent is the wire payload for one ticker of a completed run.
type forecastEvent struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Forecast    *models.TickerForecast `json:"forecast"`
}

func (p *KafkaForecastPublisher) Publish(ctx context.Context, entry *models.CacheEntry) error {
	return p.producer.PublishBatch(ctx, p.topic, forecastMessages(entry))
}

func forecastMessages(entry *models.CacheEntry) []pkgkafka.Message {
	msgs := make([]pkgkafka.Message, 0, len(entry.Bundle.Forecasts))
	for ticker, tf := range entry.Bundle.Forecasts {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(ticker),
			Value: forecastEvent{GeneratedAt: entry.GeneratedAt, Forecast: tf},
		})
	}
	return msgs
}

func (p *KafkaForecastPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
