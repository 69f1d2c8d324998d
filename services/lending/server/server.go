package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shark/core"
	"shark/core/state"
	"shark/core/types"
	"shark/crypto"
	"shark/native/lending"
	"shark/services/lending/config"
	"shark/services/lending/journal"
)

// Backend is the lending executor served over HTTP.
type Backend interface {
	Instantiate(ctx context.Context, sender crypto.Address, msg lending.InstantiateMsg) (*core.Result, error)
	Execute(ctx context.Context, sender crypto.Address, funds types.Coins, msg lending.ExecuteMsg) (*core.Result, error)
	Mint(ctx context.Context, sender, to crypto.Address, coins types.Coins) (*core.Result, error)
	Config(ctx context.Context) (*lending.Config, error)
	ContractInfo(ctx context.Context) (*state.ContractInfo, error)
	Pool(ctx context.Context) (*lending.LendPool, error)
	Lender(ctx context.Context, addr crypto.Address) (*lending.Funds, error)
	Borrower(ctx context.Context, addr crypto.Address) (*core.BorrowerView, error)
	Capacity(ctx context.Context, addr crypto.Address) (*lending.Valuation, error)
	Balances(ctx context.Context, addr crypto.Address) (types.Coins, error)
	Locks(ctx context.Context, addr crypto.Address) ([]*state.TokenLock, error)
}

// ActionLog serves recorded actions.
type ActionLog interface {
	List(ctx context.Context, filter journal.Filter) ([]journal.Entry, error)
	Get(ctx context.Context, id string) (*journal.Entry, error)
}

// Options configures the HTTP API.
type Options struct {
	Backend        Backend
	Journal        ActionLog
	Auth           *Authenticator
	Logger         *slog.Logger
	Prefix         string
	RequestTimeout time.Duration
	RateLimit      config.RateLimitConfig
	MetricsPath    string
}

// Server exposes the lending executor as a JSON API. Mutating routes require
// authentication; queries are public.
type Server struct {
	backend  Backend
	journal  ActionLog
	auth     *Authenticator
	logger   *slog.Logger
	prefix   string
	timeout  time.Duration
	limiter  *rateLimiter
	metrics  string
	validate *validator.Validate
}

// New constructs the API server.
func New(opts Options) (*Server, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("server: backend required")
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("server: authenticator required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = crypto.DefaultPrefix
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Server{
		backend:  opts.Backend,
		journal:  opts.Journal,
		auth:     opts.Auth,
		logger:   logger,
		prefix:   prefix,
		timeout:  timeout,
		limiter:  newRateLimiter(opts.RateLimit.RequestsPerMinute, opts.RateLimit.Burst),
		metrics:  strings.TrimSpace(opts.MetricsPath),
		validate: newValidator(),
	}
	return s, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("bech32", func(fl validator.FieldLevel) bool {
		_, err := crypto.DecodeAddress(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("denom", func(fl validator.FieldLevel) bool {
		denom := fl.Field().String()
		return denom != "" && strings.TrimSpace(denom) == denom && !strings.ContainsAny(denom, " \t\n,")
	})
	return v
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe)
	r.Use(s.limiter.Middleware)
	r.Use(limitBody)
	r.Use(chimiddleware.Timeout(s.timeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != "" {
		r.Handle(s.metrics, promhttp.Handler())
	}

	r.Route("/v1", func(api chi.Router) {
		api.Group(func(msg chi.Router) {
			msg.Use(s.auth.Middleware)
			msg.Post("/instantiate", s.handleInstantiate)
			msg.Post("/execute", s.handleExecute)
			msg.Post("/mint", s.handleMint)
		})
		api.Get("/config", s.handleConfig)
		api.Get("/contract", s.handleContract)
		api.Get("/pool", s.handlePool)
		api.Get("/lenders/{address}", s.handleLender)
		api.Get("/borrowers/{address}", s.handleBorrower)
		api.Get("/borrowers/{address}/capacity", s.handleCapacity)
		api.Get("/accounts/{address}/balances", s.handleBalances)
		api.Get("/accounts/{address}/locks", s.handleLocks)
		api.Get("/actions", s.handleActions)
		api.Get("/actions/{id}", s.handleAction)
	})
	return r
}

// decode reads a JSON body, rejecting unknown fields and trailing data, then
// validates the struct tags of out.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "request body must contain a single JSON object")
		return false
	}
	if err := s.validate.Struct(out); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		parts = append(parts, fmt.Sprintf("field '%s' failed validation '%s'", e.Field(), e.Tag()))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (s *Server) sender(w http.ResponseWriter, r *http.Request, requested string) (crypto.Address, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", errAuthRequired.Error())
		return crypto.Address{}, false
	}
	addr, err := principal.resolveSender(requested, s.prefix)
	switch {
	case errors.Is(err, errSenderDenied):
		writeJSONError(w, http.StatusForbidden, "unauthorized", err.Error())
		return crypto.Address{}, false
	case err != nil:
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return crypto.Address{}, false
	}
	return addr, true
}

func (s *Server) address(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	addr, err := crypto.ValidateAddress(chi.URLParam(r, "address"), s.prefix)
	if err != nil {
		writeError(w, err)
		return crypto.Address{}, false
	}
	return addr, true
}

func (s *Server) handleInstantiate(w http.ResponseWriter, r *http.Request) {
	var req InstantiateRequest
	if !s.decode(w, r, &req) {
		return
	}
	sender, ok := s.sender(w, r, req.Sender)
	if !ok {
		return
	}
	res, err := s.backend.Instantiate(r.Context(), sender, lending.InstantiateMsg{
		Admin:           req.Admin,
		FundsDenom:      req.FundsDenom,
		CollateralDenom: req.CollateralDenom,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultView(res))
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Funds.Validate(); err != nil {
		writeError(w, err)
		return
	}
	sender, ok := s.sender(w, r, req.Sender)
	if !ok {
		return
	}
	res, err := s.backend.Execute(r.Context(), sender, req.Funds, *req.Msg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultView(res))
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Coins.Validate(); err != nil {
		writeError(w, err)
		return
	}
	sender, ok := s.sender(w, r, req.Sender)
	if !ok {
		return
	}
	to, err := crypto.ValidateAddress(req.To, s.prefix)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.backend.Mint(r.Context(), sender, to, req.Coins)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultView(res))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.backend.Config(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConfigView{
		Admin:           cfg.Admin.String(),
		FundsDenom:      cfg.FundsDenom,
		CollateralDenom: cfg.CollateralDenom,
	})
}

func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	info, err := s.backend.ContractInfo(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ContractView{Name: info.Name, Version: info.Version})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.backend.Pool(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PoolView{Available: amountString(pool.Available), Used: amountString(pool.Used)})
}

func (s *Server) handleLender(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.address(w, r)
	if !ok {
		return
	}
	funds, err := s.backend.Lender(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LenderView{Address: addr.String(), Value: amountString(funds.Value)})
}

func (s *Server) handleBorrower(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.address(w, r)
	if !ok {
		return
	}
	view, err := s.backend.Borrower(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	out := BorrowerView{Address: addr.String(), Exists: view.Exists, Debt: "0", Collateral: "0"}
	if view.Debt != nil {
		out.Debt = amountString(view.Debt.Debt)
		out.Collateral = amountString(view.Debt.Collateral)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.address(w, r)
	if !ok {
		return
	}
	valuation, err := s.backend.Capacity(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCapacityView(addr.String(), valuation))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.address(w, r)
	if !ok {
		return
	}
	balances, err := s.backend.Balances(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	if balances == nil {
		balances = types.Coins{}
	}
	writeJSON(w, http.StatusOK, BalancesView{Address: addr.String(), Balances: balances})
}

func (s *Server) handleLocks(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.address(w, r)
	if !ok {
		return
	}
	locks, err := s.backend.Locks(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LocksView{Address: addr.String(), Locks: toLockViews(locks)})
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "action journal disabled")
		return
	}
	q := r.URL.Query()
	filter := journal.Filter{
		Sender:  strings.TrimSpace(q.Get("sender")),
		Action:  strings.TrimSpace(q.Get("action")),
		Outcome: strings.TrimSpace(q.Get("outcome")),
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "since must be RFC3339")
			return
		}
		filter.Since = since
	}
	entries, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list actions failed", "error", err)
		writeError(w, err)
		return
	}
	views := make([]ActionView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, toActionView(entry))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"actions": views})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "action journal disabled")
		return
	}
	entry, err := s.journal.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActionView(*entry))
}
