package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/ratesdesk/riskpipe/internal/instrument"
)

// ErrUpstreamUnavailable marks reference-service failures so callers can
// distinguish them from bad data.
var ErrUpstreamUnavailable = errors.New("reference service unavailable")

const (
	requestTimeout = 30 * time.Second
	pageSize       = 100
)

// instrumentPage is the reference service's paged listing envelope.
type instrumentPage struct {
	Items    []json.RawMessage `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Pages    int               `json:"pages"`
}

// Loader fetches the tradable universe from the reference service. Records
// that fail to parse are dropped with a warning rather than failing the load.
type Loader struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

func NewLoader(baseURL string, log zerolog.Logger) *Loader {
	st := gobreaker.Settings{Name: "reference-service"}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 3 }
	return &Loader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		breaker: gobreaker.NewCircuitBreaker(st),
		log:     log,
	}
}

// Load walks every page of /api/v1/instruments and parses each record.
func (l *Loader) Load(ctx context.Context) ([]instrument.Instrument, error) {
	var (
		instruments []instrument.Instrument
		bonds       int
		swaps       int
	)

	page := 1
	for {
		listing, err := l.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if page == 1 {
			l.log.Info().Int("total", listing.Total).Msg("loading portfolio from reference service")
		}

		for _, raw := range listing.Items {
			inst, err := instrument.Parse(raw)
			if err != nil {
				l.log.Warn().Err(err).Msg("dropping unparseable instrument")
				continue
			}
			instruments = append(instruments, inst)
			switch inst.InstrumentKind() {
			case instrument.KindBond:
				bonds++
			case instrument.KindSwap:
				swaps++
			}
		}

		if page >= listing.Pages {
			break
		}
		page++
	}

	l.log.Info().
		Int("instruments", len(instruments)).
		Int("bonds", bonds).
		Int("swaps", swaps).
		Msg("portfolio loaded")
	return instruments, nil
}

func (l *Loader) fetchPage(ctx context.Context, page int) (*instrumentPage, error) {
	url := fmt.Sprintf("%s/api/v1/instruments?page=%d&page_size=%d", l.baseURL, page, pageSize)

	result, err := l.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var listing instrumentPage
		if err := json.Unmarshal(body, &listing); err != nil {
			return nil, err
		}
		return &listing, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrUpstreamUnavailable, page, err)
	}
	return result.(*instrumentPage), nil
}
