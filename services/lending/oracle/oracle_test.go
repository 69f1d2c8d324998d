package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"shark/core/types"
	"shark/services/lending/config"
)

func newLCD(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/osmosis/gamm/v1beta1/pools/1/total_pool_liquidity", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"liquidity":[{"denom":"uosmo","amount":"50"},{"denom":"usdc","amount":"100"}]}`))
	})
	mux.HandleFunc("/osmosis/gamm/v1beta1/pools/1/prices", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("base_asset_denom") != "uosmo" || r.URL.Query().Get("quote_asset_denom") != "usdc" {
			http.Error(w, "unknown pair", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"spot_price":"1.250000000000000000"}`))
	})
	mux.HandleFunc("/osmosis/gamm/v1beta1/pools/2/prices", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"spot_price":"not-a-number"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPPoolState(t *testing.T) {
	srv := newLCD(t)
	client, err := NewHTTP(srv.URL+"/", Options{Client: srv.Client()})
	require.NoError(t, err)

	state, err := client.PoolState(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), state.PoolID)
	require.Equal(t, "50uosmo,100usdc", state.Assets.String())
}

func TestHTTPSpotPrice(t *testing.T) {
	srv := newLCD(t)
	client, err := NewHTTP(srv.URL, Options{Client: srv.Client(), RequestsPerSecond: 100, Burst: 2})
	require.NoError(t, err)

	price, err := client.SpotPrice(context.Background(), 1, "uosmo", "usdc")
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("1.25")))

	_, err = client.SpotPrice(context.Background(), 1, "usdc", "uosmo")
	require.ErrorIs(t, err, ErrStatus)

	_, err = client.SpotPrice(context.Background(), 2, "uosmo", "usdc")
	require.Error(t, err)
}

func TestHTTPHonoursTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client, err := NewHTTP(srv.URL, Options{Client: srv.Client(), Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	_, err = client.PoolState(context.Background(), 1)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected error %v", err)
}

func TestNewHTTPRequiresEndpoint(t *testing.T) {
	_, err := NewHTTP("  ", Options{})
	require.Error(t, err)
}

func TestStaticPrices(t *testing.T) {
	static := NewStatic()
	static.SetPool(1, types.Coins{types.NewCoin("usdc", 100), types.NewCoin("uosmo", 50)})
	static.SetPrice(1, "uosmo", "usdc", decimal.NewFromInt(4))
	ctx := context.Background()

	price, err := static.SpotPrice(ctx, 1, "uosmo", "usdc")
	require.NoError(t, err)
	require.Equal(t, "4", price.String())

	inverse, err := static.SpotPrice(ctx, 1, "usdc", "uosmo")
	require.NoError(t, err)
	require.Equal(t, "0.25", inverse.String())

	_, err = static.SpotPrice(ctx, 1, "uatom", "usdc")
	require.ErrorIs(t, err, ErrUnknownPair)
	_, err = static.PoolState(ctx, 9)
	require.ErrorIs(t, err, ErrUnknownPool)
}

func TestFromConfigStatic(t *testing.T) {
	oracle, err := FromConfig(config.OracleConfig{
		Static: []config.StaticPool{{
			PoolID: 1,
			Assets: map[string]string{"usdc": "100", "uosmo": "50"},
			Price:  "1",
		}},
	}, "usdc")
	require.NoError(t, err)

	state, err := oracle.PoolState(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "50uosmo,100usdc", state.Assets.String())

	price, err := oracle.SpotPrice(context.Background(), 1, "uosmo", "usdc")
	require.NoError(t, err)
	require.Equal(t, "1", price.String())
}

func TestFromConfigRejectsBadAmounts(t *testing.T) {
	_, err := FromConfig(config.OracleConfig{
		Static: []config.StaticPool{{PoolID: 1, Assets: map[string]string{"usdc": "-1"}}},
	}, "usdc")
	require.Error(t, err)
}
