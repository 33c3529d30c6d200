package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"
)

// publishCap bounds the outbound rate so an aggressive replay speed cannot
// flood the broker.
const publishCap = rate.Limit(200)

// Producer publishes curve ticks keyed by curve type, so each curve's ticks
// stay ordered on one partition.
type Producer struct {
	writer  *kafka.Writer
	limiter *rate.Limiter
	log     zerolog.Logger

	published int
}

func NewProducer(endpoint, topic string, log zerolog.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(endpoint),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			BatchTimeout: 5 * time.Millisecond,
		},
		limiter: rate.NewLimiter(publishCap, 1),
		log:     log,
	}
}

// Publish sends one tick and waits for broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, tick Tick) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	value, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("encode tick: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(tick.CurveType),
		Value: value,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(uuid.NewString())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish tick: %w", err)
	}

	p.published++
	p.log.Debug().
		Str("curve_type", tick.CurveType).
		Str("curve_date", tick.CurveDate).
		Int("tenors", len(tick.Rates)).
		Msg("tick published")
	return nil
}

// Published returns the number of ticks delivered so far.
func (p *Producer) Published() int { return p.published }

func (p *Producer) Close() error { return p.writer.Close() }
