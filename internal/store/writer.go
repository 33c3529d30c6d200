package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ratesdesk/riskpipe/internal/curve"
	"github.com/ratesdesk/riskpipe/internal/portfolio"
	"github.com/ratesdesk/riskpipe/internal/risk"
)

const (
	riskChannel     = "risk_updates"
	curveLatestKey  = "yield_curve:latest"
	curveHistoryKey = "yield_curve:history"
	aggregatesKey   = "portfolio:aggregates"
	dv01HistoryKey  = "portfolio:dv01_history"
	npvHistoryKey   = "portfolio:npv_history"

	curveHistoryWindow    = time.Hour
	snapshotHistoryWindow = 7 * 24 * time.Hour
	scanBatchSize         = 100
)

// StoreError wraps a Redis failure with the operation that produced it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// Writer publishes risk output to Redis. Per-trade hashes expire after the
// configured TTL so stale entries fall out of aggregation on their own.
type Writer struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

// NewWriter dials Redis and verifies the connection with a ping.
func NewWriter(ctx context.Context, host string, port int, ttl time.Duration, log zerolog.Logger) (*Writer, error) {
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%d", host, port)})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &StoreError{Op: "ping", Err: err}
	}
	log.Info().Str("addr", fmt.Sprintf("%s:%d", host, port)).Msg("redis connected")
	return newWriter(client, ttl, log), nil
}

func newWriter(client redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *Writer {
	return &Writer{client: client, ttl: ttl, log: log, now: time.Now}
}

func (w *Writer) Close() error { return w.client.Close() }

type riskNotice struct {
	InstrumentID string `json:"instrument_id"`
	Timestamp    int64  `json:"timestamp"`
}

// WriteRisk stores one instrument's metrics under trade:{id}:risk and
// notifies subscribers on the risk_updates channel. The hash write and its
// TTL go through a transactional pipeline so no key is left unexpiring.
func (w *Writer) WriteRisk(ctx context.Context, m risk.Metrics, curveTimestamp int64) error {
	key := fmt.Sprintf("trade:%s:risk", m.InstrumentID)

	fields := map[string]string{
		"npv":             formatFloat(m.NPV),
		"dv01":            formatFloat(m.DV01),
		"curve_timestamp": strconv.FormatInt(curveTimestamp, 10),
		"updated_at":      strconv.FormatInt(w.nowMillis(), 10),
	}
	for tenor, v := range m.KRD {
		fields[krdField(tenor)] = formatFloat(v)
	}

	err := w.withRetry(ctx, "write_risk", func() error {
		pipe := w.client.TxPipeline()
		pipe.HSet(ctx, key, sortedPairs(fields)...)
		pipe.Expire(ctx, key, w.ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}

	payload, _ := json.Marshal(riskNotice{InstrumentID: m.InstrumentID, Timestamp: curveTimestamp})
	if err := w.client.Publish(ctx, riskChannel, payload).Err(); err != nil {
		return &StoreError{Op: "publish", Err: err}
	}

	w.log.Debug().Str("instrument", m.InstrumentID).Float64("dv01", m.DV01).Msg("risk written")
	return nil
}

// WriteYieldCurve updates the latest-curve hash and appends the tick to the
// history sorted set, pruning entries older than an hour.
func (w *Writer) WriteYieldCurve(ctx context.Context, rates map[string]float64, curveTimestamp int64) error {
	fields := map[string]string{
		"timestamp":  strconv.FormatInt(curveTimestamp, 10),
		"updated_at": strconv.FormatInt(w.nowMillis(), 10),
	}
	for tenor, rate := range rates {
		fields["rate_"+strings.ToLower(tenor)] = formatFloat(rate)
	}

	history, _ := json.Marshal(rates)
	horizon := w.nowMillis() - curveHistoryWindow.Milliseconds()

	return w.withRetry(ctx, "write_yield_curve", func() error {
		pipe := w.client.TxPipeline()
		pipe.HSet(ctx, curveLatestKey, sortedPairs(fields)...)
		pipe.ZAdd(ctx, curveHistoryKey, redis.Z{Score: float64(curveTimestamp), Member: string(history)})
		pipe.ZRemRangeByScore(ctx, curveHistoryKey, "-inf", strconv.FormatInt(horizon, 10))
		_, err := pipe.Exec(ctx)
		return err
	})
}

// WriteAggregates stores portfolio-level totals under portfolio:aggregates.
func (w *Writer) WriteAggregates(ctx context.Context, agg portfolio.Aggregates) error {
	fields := map[string]string{
		"total_npv":        formatFloat(agg.TotalNPV),
		"total_dv01":       formatFloat(agg.TotalDV01),
		"instrument_count": strconv.Itoa(agg.InstrumentCount),
		"updated_at":       strconv.FormatInt(w.nowMillis(), 10),
	}
	for tenor, v := range agg.KRD {
		fields["total_krd_"+strings.ToLower(string(tenor))] = formatFloat(v)
	}

	err := w.withRetry(ctx, "write_aggregates", func() error {
		return w.client.HSet(ctx, aggregatesKey, sortedPairs(fields)...).Err()
	})
	if err != nil {
		return err
	}

	w.log.Info().
		Float64("total_dv01", agg.TotalDV01).
		Int("instruments", agg.InstrumentCount).
		Msg("portfolio aggregates updated")
	return nil
}

// GetAllTradeRisks walks trade:*:risk with SCAN and returns each hash keyed
// by instrument id.
func (w *Writer) GetAllTradeRisks(ctx context.Context) (map[string]map[string]string, error) {
	result := make(map[string]map[string]string)
	var cursor uint64

	for {
		keys, next, err := w.client.Scan(ctx, cursor, "trade:*:risk", scanBatchSize).Result()
		if err != nil {
			return nil, &StoreError{Op: "scan", Err: err}
		}

		for _, key := range keys {
			data, err := w.client.HGetAll(ctx, key).Result()
			if err != nil {
				return nil, &StoreError{Op: "hgetall", Err: err}
			}
			parts := strings.Split(key, ":")
			if len(parts) != 3 {
				continue
			}
			result[parts[1]] = data
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return result, nil
}

// SnapshotHistory appends the current portfolio DV01 and NPV to their
// sorted-set histories and prunes entries older than seven days. Failures
// are logged and swallowed, history is best-effort.
func (w *Writer) SnapshotHistory(ctx context.Context, totalDV01, totalNPV float64) {
	ts := w.nowMillis()
	horizon := strconv.FormatInt(ts-snapshotHistoryWindow.Milliseconds(), 10)

	pipe := w.client.TxPipeline()
	pipe.ZAdd(ctx, dv01HistoryKey, redis.Z{Score: float64(ts), Member: formatFloat(totalDV01)})
	pipe.ZAdd(ctx, npvHistoryKey, redis.Z{Score: float64(ts), Member: formatFloat(totalNPV)})
	pipe.ZRemRangeByScore(ctx, dv01HistoryKey, "-inf", horizon)
	pipe.ZRemRangeByScore(ctx, npvHistoryKey, "-inf", horizon)
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn().Err(err).Msg("snapshot history write failed")
	}
}

// withRetry runs fn and retries exactly once on failure.
func (w *Writer) withRetry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	w.log.Warn().Err(err).Str("op", op).Msg("redis write failed, retrying")
	if err = fn(); err != nil {
		return &StoreError{Op: op, Err: err}
	}
	return nil
}

func (w *Writer) nowMillis() int64 { return w.now().UnixMilli() }

// sortedPairs flattens a field map into HSet arguments in a stable order.
func sortedPairs(fields map[string]string) []any {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]any, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, name, fields[name])
	}
	return pairs
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func krdField(t curve.Tenor) string { return "krd_" + strings.ToLower(string(t)) }
