package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"shark/core"
	coreerrors "shark/core/errors"
	"shark/core/events"
	"shark/core/types"
	nativecommon "shark/native/common"
	"shark/native/lending"
	"shark/services/lending/config"
	"shark/services/lending/journal"
	"shark/services/lending/oracle"
	"shark/storage"
)

const (
	ownerAddr    = "osmo1t3gjpqadhhqcd29v64xa06z66mmz7kazsvkp69"
	borrowerAddr = "osmo1y244hh4g6ku4kznyy5c53adgu9m8jucf0kmz82"
	operatorTok  = "operator-token"
	jwtSecret    = "0123456789abcdef0123456789abcdef"
)

type harness struct {
	srv     *httptest.Server
	journal *journal.Journal
}

type harnessOption func(*Options, *[]core.Option)

func withPauses(p nativecommon.PauseView) harnessOption {
	return func(_ *Options, opts *[]core.Option) { *opts = append(*opts, core.WithPauses(p)) }
}

func withRateLimit(perMinute float64, burst int) harnessOption {
	return func(o *Options, _ *[]core.Option) {
		o.RateLimit = config.RateLimitConfig{RequestsPerMinute: perMinute, Burst: burst}
	}
}

func newHarness(t *testing.T, hopts ...harnessOption) *harness {
	t.Helper()
	store, err := storage.NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	static := oracle.NewStatic()
	static.SetPool(1, types.Coins{types.NewCoin("usdc", 100), types.NewCoin("uosmo", 50)})
	static.SetPrice(1, "uosmo", "usdc", decimal.NewFromInt(1))

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	opts := Options{
		Auth:        NewAuthenticator(config.AuthConfig{APITokens: []string{operatorTok}, JWTSecret: jwtSecret}),
		Journal:     j,
		MetricsPath: "/metrics",
	}
	var execOpts []core.Option
	for _, h := range hopts {
		h(&opts, &execOpts)
	}
	fanout := &events.Fanout{}
	fanout.Add(j)
	execOpts = append(execOpts, core.WithEmitter(fanout))
	exec, err := core.NewExecutor(store, static, execOpts...)
	require.NoError(t, err)
	opts.Backend = exec

	s, err := New(opts)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &harness{srv: srv, journal: j}
}

func signJWT(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func (h *harness) do(t *testing.T, method, path, bearer string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (h *harness) bootstrap(t *testing.T) {
	t.Helper()
	status, body := h.do(t, http.MethodPost, "/v1/instantiate", operatorTok, map[string]string{
		"sender": ownerAddr, "funds_denom": "usdc", "collateral_denom": "gamm/pool/1",
	})
	require.Equal(t, http.StatusOK, status, body)
	status, body = h.do(t, http.MethodPost, "/v1/mint", operatorTok, map[string]interface{}{
		"sender": ownerAddr, "to": ownerAddr, "coins": []map[string]string{{"denom": "usdc", "amount": "200"}, {"denom": "uosmo", "amount": "500"}},
	})
	require.Equal(t, http.StatusOK, status, body)
	status, body = h.do(t, http.MethodPost, "/v1/mint", operatorTok, map[string]interface{}{
		"sender": ownerAddr, "to": borrowerAddr, "coins": []map[string]string{{"denom": "gamm/pool/1", "amount": "15"}},
	})
	require.Equal(t, http.StatusOK, status, body)
}

func TestServerBorrowFlow(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	status, body := h.do(t, http.MethodPost, "/v1/execute", operatorTok, map[string]interface{}{
		"sender": ownerAddr,
		"funds":  []map[string]string{{"denom": "usdc", "amount": "200"}},
		"msg":    map[string]interface{}{"supply_funds": map[string]interface{}{}},
	})
	require.Equal(t, http.StatusOK, status, body)

	borrower := signJWT(t, borrowerAddr)
	status, body = h.do(t, http.MethodPost, "/v1/execute", borrower, map[string]interface{}{
		"funds": []map[string]string{{"denom": "gamm/pool/1", "amount": "15"}},
		"msg":   map[string]interface{}{"supply_collateral": map[string]interface{}{}},
	})
	require.Equal(t, http.StatusOK, status, body)
	require.Len(t, body["locks"], 1)

	status, body = h.do(t, http.MethodPost, "/v1/execute", borrower, `{"msg":{"borrow":{"amount":"6"}}}`)
	require.Equal(t, http.StatusOK, status, body)

	status, body = h.do(t, http.MethodGet, "/v1/pool", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "194", body["available"])
	require.Equal(t, "6", body["used"])

	status, body = h.do(t, http.MethodGet, "/v1/borrowers/"+borrowerAddr+"/capacity", "", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "22.5", body["value"])
	require.Equal(t, "16.5", body["capacity"])

	status, body = h.do(t, http.MethodGet, "/v1/borrowers/"+borrowerAddr, "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["exists"])
	require.Equal(t, "6", body["debt"])
	require.Equal(t, "15", body["collateral"])

	status, body = h.do(t, http.MethodGet, "/v1/lenders/"+ownerAddr, "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "200", body["value"])

	status, body = h.do(t, http.MethodGet, "/v1/accounts/"+borrowerAddr+"/locks", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["locks"], 1)

	status, body = h.do(t, http.MethodGet, "/v1/actions?sender="+borrowerAddr, "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["actions"], 2)

	status, body = h.do(t, http.MethodGet, "/v1/contract", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "crates.io:shark", body["contract"])
}

func TestServerRejectsUnauthenticatedMutations(t *testing.T) {
	h := newHarness(t)
	status, _ := h.do(t, http.MethodPost, "/v1/execute", "", `{"msg":{"supply_funds":{}}}`)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.do(t, http.MethodPost, "/v1/execute", "not-a-token", `{"msg":{"supply_funds":{}}}`)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestServerSenderResolution(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	status, body := h.do(t, http.MethodPost, "/v1/execute", signJWT(t, borrowerAddr), map[string]interface{}{
		"sender": ownerAddr,
		"msg":    map[string]interface{}{"supply_funds": map[string]interface{}{}},
	})
	require.Equal(t, http.StatusForbidden, status, body)

	status, body = h.do(t, http.MethodPost, "/v1/execute", operatorTok, `{"msg":{"supply_funds":{}}}`)
	require.Equal(t, http.StatusBadRequest, status, body)

	status, body = h.do(t, http.MethodPost, "/v1/mint", signJWT(t, borrowerAddr), map[string]interface{}{
		"to": borrowerAddr, "coins": []map[string]string{{"denom": "usdc", "amount": "1"}},
	})
	require.Equal(t, http.StatusForbidden, status, body)
	require.Equal(t, string(coreerrors.ClassUnauthorized), body["class"])
}

func TestServerMapsLendingErrors(t *testing.T) {
	h := newHarness(t, withPauses(nativecommon.StaticPauses{"lending.supply_collateral": true}))
	h.bootstrap(t)
	borrower := signJWT(t, borrowerAddr)

	status, body := h.do(t, http.MethodPost, "/v1/execute", borrower, `{"msg":{"borrow":{"amount":"1"}}}`)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, string(coreerrors.ClassInsufficientCollateral), body["class"])

	status, body = h.do(t, http.MethodPost, "/v1/execute", operatorTok, map[string]interface{}{
		"sender": ownerAddr,
		"funds":  []map[string]string{{"denom": "usdc", "amount": "1"}, {"denom": "uosmo", "amount": "1"}},
		"msg":    map[string]interface{}{"supply_funds": map[string]interface{}{}},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, string(coreerrors.ClassFundsRequired), body["class"])

	status, body = h.do(t, http.MethodPost, "/v1/execute", borrower, map[string]interface{}{
		"funds": []map[string]string{{"denom": "gamm/pool/1", "amount": "15"}},
		"msg":   map[string]interface{}{"supply_collateral": map[string]interface{}{}},
	})
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, string(coreerrors.ClassPaused), body["class"])

	status, body = h.do(t, http.MethodPost, "/v1/execute", borrower, `{"msg":{"repay":{}}}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, string(coreerrors.ClassUnsupported), body["class"])

	status, body = h.do(t, http.MethodPost, "/v1/instantiate", operatorTok, map[string]string{
		"sender": ownerAddr, "funds_denom": "usdc", "collateral_denom": "gamm/pool/1",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, string(coreerrors.ClassAlreadyInstantiated), body["class"])
}

func TestServerRejectsZeroCollateral(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	status, body := h.do(t, http.MethodPost, "/v1/execute", signJWT(t, borrowerAddr), map[string]interface{}{
		"funds": []map[string]string{{"denom": "gamm/pool/1", "amount": "0"}},
		"msg":   map[string]interface{}{"supply_collateral": map[string]interface{}{}},
	})
	require.Equal(t, http.StatusBadRequest, status, body)
	require.Equal(t, string(coreerrors.ClassInvalidRequest), body["class"])

	status, body = h.do(t, http.MethodGet, "/v1/accounts/"+borrowerAddr+"/locks", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body["locks"])
}

func TestWriteErrorEchoesDiagnostics(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &lending.DiagnosticError{Msg: "pool reserves [50uosmo] must hold exactly one usdc asset and one other asset"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, string(coreerrors.ClassDiagnostic), body.Class)
	require.Contains(t, body.Error, "must hold exactly one usdc asset")

	rec = httptest.NewRecorder()
	writeError(rec, errors.New("leveldb: corrupted manifest"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, string(coreerrors.ClassInternal), body.Class)
	require.Equal(t, "internal error", body.Error)
}

func TestServerValidatesRequests(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, http.MethodPost, "/v1/execute", operatorTok, `{"sender":"`+ownerAddr+`","msg":{"supply_funds":{}},"extra":1}`)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(t, http.MethodPost, "/v1/execute", operatorTok, `{"sender":"`+ownerAddr+`"}`)
	require.Equal(t, http.StatusBadRequest, status)

	status, body := h.do(t, http.MethodPost, "/v1/instantiate", operatorTok, map[string]string{
		"sender": "cosmos1invalid", "funds_denom": "usdc", "collateral_denom": "gamm/pool/1",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body["error"], "bech32")

	status, _ = h.do(t, http.MethodGet, "/v1/lenders/not-an-address", "", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, body = h.do(t, http.MethodGet, "/v1/pool", "", nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, string(coreerrors.ClassNotInstantiated), body["class"])
}

func TestServerRateLimits(t *testing.T) {
	h := newHarness(t, withRateLimit(1, 2))
	for i := 0; i < 2; i++ {
		status, _ := h.do(t, http.MethodGet, "/healthz", "", nil)
		require.Equal(t, http.StatusOK, status)
	}
	status, _ := h.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusTooManyRequests, status)
}

func TestServerExposesMetrics(t *testing.T) {
	h := newHarness(t)
	resp, err := h.srv.Client().Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusForClasses(t *testing.T) {
	cases := map[coreerrors.Class]int{
		coreerrors.ClassInvalidFunds:           http.StatusBadRequest,
		coreerrors.ClassUnauthorized:           http.StatusForbidden,
		coreerrors.ClassInsufficientCollateral: http.StatusUnprocessableEntity,
		coreerrors.ClassInsufficientLiquidity:  http.StatusUnprocessableEntity,
		coreerrors.ClassNotInstantiated:        http.StatusConflict,
		coreerrors.ClassPaused:                 http.StatusServiceUnavailable,
		coreerrors.ClassOracle:                 http.StatusBadGateway,
		coreerrors.ClassDiagnostic:             http.StatusInternalServerError,
		coreerrors.ClassInternal:               http.StatusInternalServerError,
	}
	for class, want := range cases {
		require.Equal(t, want, statusFor(class), "class %s", class)
	}
}
