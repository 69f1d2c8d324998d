package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"shark/core/types"
	"shark/native/lending"
	"shark/observability"
)

const (
	defaultTimeout = 5 * time.Second

	queryPoolState = "pool_state"
	querySpotPrice = "spot_price"
)

// ErrStatus is returned when the LCD answers with a non-200 status.
var ErrStatus = errors.New("oracle: unexpected status")

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options tunes the HTTP oracle.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Client            HTTPDoer
}

// HTTP queries pool reserves and spot prices from an Osmosis LCD endpoint.
type HTTP struct {
	endpoint string
	client   HTTPDoer
	timeout  time.Duration
	limiter  *rate.Limiter
	metrics  *observability.OracleMetrics
}

var _ lending.PoolOracle = (*HTTP)(nil)

// NewHTTP constructs an oracle for the LCD at endpoint. A zero request rate
// disables client-side throttling.
func NewHTTP(endpoint string, opts Options) (*HTTP, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("oracle: endpoint required")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("oracle: invalid endpoint: %w", err)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &HTTP{
		endpoint: trimmed,
		client:   client,
		timeout:  timeout,
		limiter:  limiter,
		metrics:  observability.Oracle(),
	}, nil
}

type coinPayload struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// PoolState returns the reserves of poolID.
func (o *HTTP) PoolState(ctx context.Context, poolID uint64) (lending.PoolState, error) {
	start := time.Now()
	state, err := o.poolState(ctx, poolID)
	o.metrics.Observe(queryPoolState, err, time.Since(start))
	return state, err
}

func (o *HTTP) poolState(ctx context.Context, poolID uint64) (lending.PoolState, error) {
	path := fmt.Sprintf("/osmosis/gamm/v1beta1/pools/%d/total_pool_liquidity", poolID)
	var payload struct {
		Liquidity []coinPayload `json:"liquidity"`
	}
	if err := o.get(ctx, path, nil, &payload); err != nil {
		return lending.PoolState{}, err
	}
	assets := make(types.Coins, 0, len(payload.Liquidity))
	for _, entry := range payload.Liquidity {
		amount, err := types.ParseAmount(entry.Amount)
		if err != nil {
			return lending.PoolState{}, fmt.Errorf("oracle: pool %d reserve %s: %w", poolID, entry.Denom, err)
		}
		assets = append(assets, types.Coin{Denom: entry.Denom, Amount: amount})
	}
	return lending.PoolState{PoolID: poolID, Assets: assets}, nil
}

// SpotPrice returns the price of base in quote for poolID.
func (o *HTTP) SpotPrice(ctx context.Context, poolID uint64, base, quote string) (decimal.Decimal, error) {
	start := time.Now()
	price, err := o.spotPrice(ctx, poolID, base, quote)
	o.metrics.Observe(querySpotPrice, err, time.Since(start))
	return price, err
}

func (o *HTTP) spotPrice(ctx context.Context, poolID uint64, base, quote string) (decimal.Decimal, error) {
	path := fmt.Sprintf("/osmosis/gamm/v1beta1/pools/%d/prices", poolID)
	values := url.Values{}
	values.Set("base_asset_denom", base)
	values.Set("quote_asset_denom", quote)
	var payload struct {
		SpotPrice string `json:"spot_price"`
	}
	if err := o.get(ctx, path, values, &payload); err != nil {
		return decimal.Zero, err
	}
	raw := strings.TrimSpace(payload.SpotPrice)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("oracle: pool %d: empty spot price", poolID)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("oracle: pool %d: invalid spot price %q: %w", poolID, raw, err)
	}
	return price, nil
}

func (o *HTTP) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("oracle: rate limit: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	target := o.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("oracle: decode %s: %w", path, err)
	}
	return nil
}
