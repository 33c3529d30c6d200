package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratesdesk/riskpipe/internal/curve"
	"github.com/ratesdesk/riskpipe/internal/instrument"
	"github.com/ratesdesk/riskpipe/internal/metrics"
	"github.com/ratesdesk/riskpipe/internal/portfolio"
	"github.com/ratesdesk/riskpipe/internal/pricing"
	"github.com/ratesdesk/riskpipe/internal/risk"
)

// fakeSource replays a fixed message list, then reports cancellation.
type fakeSource struct {
	msgs    []kafka.Message
	next    int
	commits []int64
}

func (f *fakeSource) Fetch(_ context.Context) (kafka.Message, error) {
	if f.next >= len(f.msgs) {
		return kafka.Message{}, context.Canceled
	}
	m := f.msgs[f.next]
	f.next++
	return m, nil
}

func (f *fakeSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.commits = append(f.commits, m.Offset)
	}
	return nil
}

func (f *fakeSource) Close() error { return nil }

type fakeStore struct {
	curveWrites []int64
	riskWrites  []risk.Metrics
	aggregates  int
	snapshots   int

	failRiskOnce error
}

func (f *fakeStore) WriteRisk(_ context.Context, m risk.Metrics, _ int64) error {
	if f.failRiskOnce != nil {
		err := f.failRiskOnce
		f.failRiskOnce = nil
		return err
	}
	f.riskWrites = append(f.riskWrites, m)
	return nil
}

func (f *fakeStore) WriteYieldCurve(_ context.Context, _ map[string]float64, ts int64) error {
	f.curveWrites = append(f.curveWrites, ts)
	return nil
}

func (f *fakeStore) WriteAggregates(_ context.Context, _ portfolio.Aggregates) error {
	f.aggregates++
	return nil
}

func (f *fakeStore) GetAllTradeRisks(_ context.Context) (map[string]map[string]string, error) {
	return map[string]map[string]string{}, nil
}

func (f *fakeStore) SnapshotHistory(_ context.Context, _, _ float64) { f.snapshots++ }

type fakeCalc struct {
	err   error
	calls int
}

func (f *fakeCalc) Calculate(inst instrument.Instrument) (risk.Metrics, error) {
	f.calls++
	if f.err != nil {
		return risk.Metrics{}, f.err
	}
	return risk.Metrics{InstrumentID: inst.InstrumentID(), NPV: 100, DV01: 10}, nil
}

func tickMessage(offset int64, ts int64) kafka.Message {
	value := fmt.Sprintf(`{"timestamp":%d,"curve_date":"2026-01-28","curve_type":"USD_SOFR","rates":{"2Y":0.042,"5Y":0.041}}`, ts)
	return kafka.Message{Offset: offset, Value: []byte(value)}
}

func testBook(n int) []instrument.Instrument {
	book := make([]instrument.Instrument, 0, n)
	for i := 0; i < n; i++ {
		book = append(book, instrument.Bond{ID: fmt.Sprintf("b%d", i), Notional: 1})
	}
	return book
}

func newTestCoordinator(source MessageSource, store RiskStore, calc Calculator, book []instrument.Instrument) *Coordinator {
	return NewCoordinator(source, curve.NewBuilder(), calc, store, book, metrics.NewRegistry(), zerolog.Nop())
}

func TestCoordinatorProcessesAndCommits(t *testing.T) {
	source := &fakeSource{msgs: []kafka.Message{tickMessage(7, 1769558400000)}}
	store := &fakeStore{}
	calc := &fakeCalc{}
	c := newTestCoordinator(source, store, calc, testBook(2))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []int64{1769558400000}, store.curveWrites)
	assert.Len(t, store.riskWrites, 2)
	assert.Equal(t, []int64{7}, source.commits, "offset committed after publication")
}

func TestCoordinatorPoisonPillCommitsAndContinues(t *testing.T) {
	source := &fakeSource{msgs: []kafka.Message{
		{Offset: 1, Value: []byte("not json")},
		tickMessage(2, 1769558400000),
	}}
	store := &fakeStore{}
	calc := &fakeCalc{}
	c := newTestCoordinator(source, store, calc, testBook(1))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []int64{1, 2}, source.commits, "poison pill and good tick both committed")
	assert.Len(t, store.curveWrites, 1, "only the good tick reaches the store")
	assert.Len(t, store.riskWrites, 1)
}

func TestCoordinatorBadCurveDateDropped(t *testing.T) {
	source := &fakeSource{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"timestamp":1,"curve_date":"garbage","rates":{}}`)},
		{Offset: 2, Value: []byte(`{"timestamp":2,"rates":{"2Y":0.04}}`)},
	}}
	store := &fakeStore{}
	c := newTestCoordinator(source, store, &fakeCalc{}, testBook(1))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []int64{1, 2}, source.commits)
	assert.Empty(t, store.curveWrites, "undated and unparseable-date ticks never reach the store")
}

func TestCoordinatorStoreFailureSkipsCommit(t *testing.T) {
	source := &fakeSource{msgs: []kafka.Message{
		tickMessage(1, 100),
		tickMessage(2, 200),
	}}
	store := &fakeStore{failRiskOnce: errors.New("redis down")}
	c := newTestCoordinator(source, store, &fakeCalc{}, testBook(1))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []int64{2}, source.commits, "a failed publish leaves the offset uncommitted")
	assert.Len(t, store.riskWrites, 1)
}

func TestCoordinatorPricingErrorContained(t *testing.T) {
	source := &fakeSource{msgs: []kafka.Message{tickMessage(1, 100)}}
	store := &fakeStore{}
	calc := &fakeCalc{err: &pricing.PricingError{InstrumentID: "b0", Err: errors.New("bad schedule")}}
	c := newTestCoordinator(source, store, calc, testBook(3))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []int64{1}, source.commits, "instrument failures do not block the tick")
	assert.Empty(t, store.riskWrites)
	assert.Equal(t, 3, calc.calls, "every instrument is still attempted")
}

func TestCoordinatorUnbuiltCurveFailsTick(t *testing.T) {
	source := &fakeSource{msgs: []kafka.Message{tickMessage(1, 100)}}
	store := &fakeStore{}
	calc := &fakeCalc{err: curve.ErrUnbuilt}
	c := newTestCoordinator(source, store, calc, testBook(1))

	require.NoError(t, c.Run(context.Background()))

	assert.Empty(t, source.commits, "tick-level failures leave the offset for redelivery")
}

func TestCoordinatorAggregationCadence(t *testing.T) {
	var msgs []kafka.Message
	for i := int64(1); i <= 10; i++ {
		msgs = append(msgs, tickMessage(i, i*1000))
	}
	source := &fakeSource{msgs: msgs}
	store := &fakeStore{}
	c := newTestCoordinator(source, store, &fakeCalc{}, testBook(1))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, 2, store.aggregates, "aggregation runs every five committed ticks")
	assert.Equal(t, 2, store.snapshots)
	assert.Len(t, source.commits, 10)
}

func TestCoordinatorEmptyRatesStillPublishesCurve(t *testing.T) {
	source := &fakeSource{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"timestamp":500,"curve_date":"2026-01-28","rates":{}}`)},
	}}
	store := &fakeStore{}
	c := newTestCoordinator(source, store, &fakeCalc{}, testBook(1))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []int64{500}, store.curveWrites, "empty-rates tick still refreshes the snapshot")
	assert.Equal(t, []int64{1}, source.commits)
}

func TestDecodeTick(t *testing.T) {
	tick, err := decodeTick([]byte(`{"timestamp":1769558400000,"curve_date":"2026-01-28","curve_type":"USD_SOFR","rates":{"2Y":0.042}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1769558400000), tick.Timestamp)
	assert.Equal(t, "2026-01-28", tick.CurveDate)
	assert.Equal(t, 0.042, tick.Rates["2Y"])

	_, err = decodeTick([]byte("not json"))
	assert.Error(t, err)

	_, err = decodeTick([]byte(`{"timestamp":1,"rates":{}}`))
	assert.Error(t, err, "missing curve_date is rejected")

	tick, err = decodeTick([]byte(`{"curve_date":"2026-01-28"}`))
	require.NoError(t, err)
	assert.NotNil(t, tick.Rates, "absent rates decode to an empty map")
}
