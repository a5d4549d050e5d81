// Package kafka publishes enriched sightings to a Kafka topic for
// downstream consumers. The sink is optional; the CSV output remains the
// system of record.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/aerowatch/uas-sighting-etl/internal/config"
	"github.com/aerowatch/uas-sighting-etl/internal/domain"
)

// Writer produces enriched sighting messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes a batch of enriched sightings in a
// single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, records []domain.EnrichedRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// sightingMessage is the wire shape of one enriched sighting.
type sightingMessage struct {
	SourceChunk     string    `json:"source_chunk"`
	Narrative       string    `json:"narrative"`
	City            string    `json:"city,omitempty"`
	State           string    `json:"state,omitempty"`
	AircraftType    string    `json:"aircraft_type,omitempty"`
	UASColor        string    `json:"uas_color"`
	AltitudeFt      *int      `json:"altitude_ft,omitempty"`
	Evasive         string    `json:"evasive"`
	LEOAgency       string    `json:"leo_agency"`
	AssignedAirport string    `json:"assigned_airport,omitempty"`
	AirportLon      *float64  `json:"airport_longitude,omitempty"`
	AirportLat      *float64  `json:"airport_latitude,omitempty"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// serializeToMessage marshals an enriched record into a Kafka message keyed
// by source chunk, so one chunk's sightings land on one partition in order.
func serializeToMessage(rec domain.EnrichedRecord) (kafkago.Message, error) {
	data, err := json.Marshal(sightingMessage{
		SourceChunk:     rec.SourceChunk,
		Narrative:       rec.Narrative,
		City:            rec.City,
		State:           rec.State,
		AircraftType:    rec.AircraftType,
		UASColor:        rec.UASColor,
		AltitudeFt:      rec.AltitudeFt,
		Evasive:         rec.Evasive,
		LEOAgency:       rec.LEOAgency,
		AssignedAirport: rec.AssignedAirport,
		AirportLon:      rec.AirportLon,
		AirportLat:      rec.AirportLat,
		ProcessedAt:     rec.ProcessedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize sighting: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.SourceChunk),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "assigned_airport", Value: []byte(rec.AssignedAirport)},
			{Key: "processed_at", Value: []byte(rec.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
