package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Tick is the wire message published for every curve snapshot.
type Tick struct {
	Timestamp int64              `json:"timestamp"`
	CurveDate string             `json:"curve_date"`
	CurveType string             `json:"curve_type"`
	Rates     map[string]float64 `json:"rates"`
}

var tenorColumns = []string{"1M", "3M", "6M", "1Y", "2Y", "3Y", "5Y", "7Y", "10Y", "20Y", "30Y"}

const maxPause = 60 * time.Second

// parseTimestamp accepts RFC3339 (with or without zone), a bare date, or
// unix epoch milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

// Replayer streams curve snapshots out of a CSV file one row at a time,
// pacing emissions by the recorded timestamp deltas scaled by the replay
// speed. Pauses are capped so multi-day gaps in the data replay in a minute.
type Replayer struct {
	path  string
	speed float64
	loop  bool
	log   zerolog.Logger
}

func NewReplayer(path string, speed float64, loop bool, log zerolog.Logger) *Replayer {
	return &Replayer{path: path, speed: speed, loop: loop, log: log}
}

// Run emits each row through emit until the file ends (or forever when
// looping). Rows with unparseable timestamps are skipped with a warning;
// unparseable rate cells are dropped individually.
func (r *Replayer) Run(ctx context.Context, emit func(Tick) error) error {
	iteration := 0
	for {
		iteration++
		r.log.Info().Int("iteration", iteration).Str("file", r.path).Msg("starting data replay")

		rows, err := r.replayOnce(ctx, emit)
		if err != nil {
			return err
		}
		r.log.Info().Int("rows", rows).Msg("replay complete")

		if !r.loop {
			return nil
		}
		if err := sleepCtx(ctx, time.Second); err != nil {
			return err
		}
	}
}

func (r *Replayer) replayOnce(ctx context.Context, emit func(Tick) error) (int, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return 0, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	tsIdx, ok := col["timestamp"]
	if !ok {
		return 0, fmt.Errorf("data file missing timestamp column")
	}

	var prev time.Time
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("read csv row: %w", err)
		}

		ts, err := parseTimestamp(record[tsIdx])
		if err != nil {
			r.log.Warn().Err(err).Msg("skipping row with invalid timestamp")
			continue
		}

		if !prev.IsZero() {
			delta := ts.Sub(prev)
			if delta > 0 {
				pause := time.Duration(float64(delta) / r.speed)
				if pause > maxPause {
					pause = maxPause
				}
				if pause > time.Millisecond {
					if err := sleepCtx(ctx, pause); err != nil {
						return rows, err
					}
				}
			}
		}

		if err := emit(rowTick(record, col, ts)); err != nil {
			return rows, err
		}
		prev = ts
		rows++

		if rows%100 == 0 {
			r.log.Debug().Int("rows", rows).Msg("replay progress")
		}
	}
}

func rowTick(record []string, col map[string]int, ts time.Time) Tick {
	rates := make(map[string]float64, len(tenorColumns))
	for _, tenor := range tenorColumns {
		idx, ok := col[tenor]
		if !ok || idx >= len(record) || record[idx] == "" {
			continue
		}
		v, err := strconv.ParseFloat(record[idx], 64)
		if err != nil {
			continue
		}
		rates[tenor] = v
	}

	curveType := "USD_SOFR"
	if idx, ok := col["curve_type"]; ok && idx < len(record) && record[idx] != "" {
		curveType = record[idx]
	}

	return Tick{
		Timestamp: ts.UnixMilli(),
		CurveDate: ts.Format("2006-01-02"),
		CurveType: curveType,
		Rates:     rates,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
