package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"shark/services/lending/config"
)

const adminAddr = "osmo1t3gjpqadhhqcd29v64xa06z66mmz7kazsvkp69"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sharkd.yaml")
	contents := []byte(`
tls:
  allow_insecure: true
auth:
  api_tokens: ["operator"]
storage:
  path: ` + filepath.Join(dir, "ledger") + `
journal:
  path: ` + filepath.Join(dir, "journal.db") + `
lending:
  admin: ` + adminAddr + `
  funds_denom: usdc
  collateral_denom: gamm/pool/1
oracle:
  static:
    - pool_id: 1
      assets:
        usdc: "100"
        uosmo: "50"
      price: "1"
`)
	require.NoError(t, os.WriteFile(path, contents, 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestAppInstantiatesOnStart(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	a, err := newApp(cfg, logger)
	require.NoError(t, err)
	got, err := a.exec.Config(context.Background())
	require.NoError(t, err)
	require.Equal(t, adminAddr, got.Admin.String())
	require.Equal(t, "usdc", got.FundsDenom)

	srv := httptest.NewServer(a.handler)
	resp, err := srv.Client().Get(srv.URL + "/v1/pool")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	srv.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, bytes.Contains(body, []byte(`"available":"0"`)), string(body))
	a.close()

	// Restarting over the same store keeps the existing configuration.
	reopened, err := newApp(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(reopened.close)
	_, err = reopened.exec.Config(context.Background())
	require.NoError(t, err)
}

func TestAppHTTPServerPlaintext(t *testing.T) {
	cfg := testConfig(t)
	a, err := newApp(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(a.close)
	srv, err := a.httpServer()
	require.NoError(t, err)
	require.Nil(t, srv.TLSConfig)
	require.Equal(t, cfg.ListenAddress, srv.Addr)
}
