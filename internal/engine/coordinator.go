package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ratesdesk/riskpipe/internal/curve"
	"github.com/ratesdesk/riskpipe/internal/instrument"
	"github.com/ratesdesk/riskpipe/internal/metrics"
	"github.com/ratesdesk/riskpipe/internal/portfolio"
	"github.com/ratesdesk/riskpipe/internal/pricing"
	"github.com/ratesdesk/riskpipe/internal/risk"
)

const aggregateEvery = 5

// MessageSource abstracts the consumer group so the control loop can be
// driven by a fake in tests. Commit must be synchronous: a tick is only
// considered delivered once its results are in the store.
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RiskStore is the slice of the store the coordinator needs.
type RiskStore interface {
	WriteRisk(ctx context.Context, m risk.Metrics, curveTimestamp int64) error
	WriteYieldCurve(ctx context.Context, rates map[string]float64, curveTimestamp int64) error
	WriteAggregates(ctx context.Context, agg portfolio.Aggregates) error
	GetAllTradeRisks(ctx context.Context) (map[string]map[string]string, error)
	SnapshotHistory(ctx context.Context, totalDV01, totalNPV float64)
}

// Calculator produces risk metrics for one instrument under the current curve.
type Calculator interface {
	Calculate(inst instrument.Instrument) (risk.Metrics, error)
}

// groupReader adapts a kafka-go consumer group reader to MessageSource.
type groupReader struct{ r *kafka.Reader }

func (g groupReader) Fetch(ctx context.Context) (kafka.Message, error) { return g.r.FetchMessage(ctx) }
func (g groupReader) Commit(ctx context.Context, msgs ...kafka.Message) error {
	return g.r.CommitMessages(ctx, msgs...)
}
func (g groupReader) Close() error { return g.r.Close() }

// NewSource opens a consumer group reader on the tick topic. Offsets start
// at latest: a restarted worker prices off live ticks, not stale history.
func NewSource(endpoint, topic, groupID string) MessageSource {
	return groupReader{r: kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{endpoint},
		Topic:          topic,
		GroupID:        groupID,
		StartOffset:    kafka.LastOffset,
		SessionTimeout: 30 * time.Second,
		MaxWait:        time.Second,
	})}
}

// Coordinator runs the tick pipeline: consume, rebuild the curve, reprice the
// portfolio, publish, then commit. Everything happens on a single goroutine;
// the curve builder and calculator share mutable quote state and are not safe
// for concurrent use.
type Coordinator struct {
	source  MessageSource
	builder *curve.Builder
	calc    Calculator
	store   RiskStore
	book    []instrument.Instrument
	metrics *metrics.Registry
	log     zerolog.Logger

	ticks   int
	started time.Time
}

func NewCoordinator(
	source MessageSource,
	builder *curve.Builder,
	calc Calculator,
	store RiskStore,
	book []instrument.Instrument,
	reg *metrics.Registry,
	log zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		source:  source,
		builder: builder,
		calc:    calc,
		store:   store,
		book:    book,
		metrics: reg,
		log:     log,
	}
}

// Run consumes ticks until the context is cancelled. Infrastructure failures
// on a tick leave its offset uncommitted so the broker redelivers it; any
// other fetch error is fatal.
func (c *Coordinator) Run(ctx context.Context) error {
	c.started = time.Now()
	c.log.Info().Int("instruments", len(c.book)).Msg("starting market data consumption")

	for {
		msg, err := c.source.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.log.Info().Int("ticks", c.ticks).Msg("consumer stopped")
				return nil
			}
			return err
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).
				Int64("offset", msg.Offset).
				Msg("tick processing failed, offset left uncommitted")
		}
	}
}

// handle processes one tick end to end. The offset is committed only after
// the curve snapshot and every instrument result reached the store, so a
// crash mid-tick replays the whole tick.
func (c *Coordinator) handle(ctx context.Context, msg kafka.Message) error {
	start := time.Now()

	tick, err := decodeTick(msg.Value)
	if err != nil {
		// Poison pill: committing skips it for the whole group.
		c.metrics.TicksFailed.Inc()
		c.log.Error().Err(err).Int64("offset", msg.Offset).Msg("dropping undecodable tick")
		return c.source.Commit(ctx, msg)
	}

	wasStale, err := c.applyRates(tick)
	if err != nil {
		c.metrics.TicksFailed.Inc()
		c.log.Error().Err(err).Str("curve_date", tick.CurveDate).Msg("dropping tick with invalid curve date")
		return c.source.Commit(ctx, msg)
	}
	if wasStale {
		c.metrics.CurveRebuilds.Inc()
	}

	curveTimestamp := tick.Timestamp
	if curveTimestamp == 0 {
		curveTimestamp = msg.Time.UnixMilli()
	}

	if err := c.store.WriteYieldCurve(ctx, tick.Rates, curveTimestamp); err != nil {
		return err
	}

	processed := 0
	for _, inst := range c.book {
		m, err := c.calc.Calculate(inst)
		if err != nil {
			var perr *pricing.PricingError
			if errors.As(err, &perr) {
				// Instrument-level failure, the rest of the book still prices.
				c.metrics.PricingErrors.WithLabelValues(string(inst.InstrumentKind())).Inc()
				c.metrics.InstrumentsDone.WithLabelValues("error").Inc()
				c.log.Warn().Err(err).Str("instrument", inst.InstrumentID()).Msg("pricing failed")
				continue
			}
			return err
		}
		if err := c.store.WriteRisk(ctx, m, curveTimestamp); err != nil {
			return err
		}
		c.metrics.InstrumentsDone.WithLabelValues("ok").Inc()
		processed++
	}

	if err := c.source.Commit(ctx, msg); err != nil {
		return err
	}

	c.ticks++
	c.metrics.TicksConsumed.Inc()
	c.metrics.TickDuration.Observe(time.Since(start).Seconds())

	if c.ticks%aggregateEvery == 0 {
		c.aggregate(ctx, processed)
	}
	return nil
}

// applyRates feeds the tick into the builder and reports whether it changed
// any quote.
func (c *Coordinator) applyRates(tick CurveTick) (bool, error) {
	before := c.builder.Stale()
	if err := c.builder.UpdateRates(tick.Rates, tick.CurveDate); err != nil {
		return false, err
	}
	return !before && c.builder.Stale(), nil
}

// aggregate recomputes portfolio totals from the store. Failures are logged
// and skipped, totals catch up on the next cycle.
func (c *Coordinator) aggregate(ctx context.Context, processed int) {
	trades, err := c.store.GetAllTradeRisks(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("aggregation scan failed")
		return
	}
	agg := portfolio.Aggregate(trades)
	if err := c.store.WriteAggregates(ctx, agg); err != nil {
		c.log.Warn().Err(err).Msg("aggregate write failed")
		return
	}
	c.store.SnapshotHistory(ctx, agg.TotalDV01, agg.TotalNPV)

	c.metrics.PortfolioNPV.Set(agg.TotalNPV)
	c.metrics.PortfolioDV01.Set(agg.TotalDV01)

	elapsed := time.Since(c.started).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(c.ticks) / elapsed
	}
	c.log.Info().
		Int("ticks", c.ticks).
		Float64("ticks_per_sec", rate).
		Int("instruments", processed).
		Float64("portfolio_dv01", agg.TotalDV01).
		Msg("portfolio aggregates updated")
}

// Close releases the consumer group membership.
func (c *Coordinator) Close() error { return c.source.Close() }
