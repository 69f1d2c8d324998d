package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"shark/core"
	"shark/core/events"
	"shark/core/state"
	"shark/crypto"
	nativecommon "shark/native/common"
	"shark/native/lending"
	"shark/observability"
	"shark/observability/logging"
	"shark/services/lending/config"
	"shark/services/lending/journal"
	"shark/services/lending/oracle"
	lendingserver "shark/services/lending/server"
	"shark/storage"
)

// app owns the long-lived resources of the daemon.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *storage.Store
	journal *journal.Journal
	exec    *core.Executor
	handler http.Handler
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	var err error
	if cfg.Storage.Path == "" {
		logger.Warn("storage path not set; ledger kept in memory")
		a.store, err = storage.NewMemStore()
	} else {
		a.store, err = storage.OpenLevelDB(cfg.Storage.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := state.EnsureStateVersion(a.store, cfg.Storage.AllowMigrate); err != nil {
		return nil, err
	}

	pools, err := oracle.FromConfig(cfg.Oracle, cfg.Lending.FundsDenom)
	if err != nil {
		return nil, fmt.Errorf("configure oracle: %w", err)
	}

	fanout := &events.Fanout{}
	if cfg.Journal.Path != "" {
		a.journal, err = journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			return nil, err
		}
		fanout.Add(a.journal)
	}

	a.exec, err = core.NewExecutor(a.store, pools,
		core.WithPauses(nativecommon.StaticPauses(cfg.Pauses.PauseTable())),
		core.WithEmitter(fanout),
		core.WithLogger(logger),
		core.WithMetrics(observability.Lending()),
		core.WithAddressPrefix(cfg.Lending.Prefix),
	)
	if err != nil {
		return nil, err
	}
	if err := a.instantiateOnStart(context.Background()); err != nil {
		return nil, err
	}

	opts := lendingserver.Options{
		Backend:        a.exec,
		Auth:           lendingserver.NewAuthenticator(cfg.Auth),
		Logger:         logger,
		Prefix:         cfg.Lending.Prefix,
		RequestTimeout: cfg.RequestTimeoutDuration(),
		RateLimit:      cfg.RateLimit,
	}
	if a.journal != nil {
		opts.Journal = a.journal
	}
	if cfg.Metrics.Enabled {
		opts.MetricsPath = cfg.Metrics.Path
	}
	srv, err := lendingserver.New(opts)
	if err != nil {
		return nil, err
	}
	a.handler = srv.Handler()
	logger.Info("api auth configured",
		slog.Int("api_tokens", len(cfg.Auth.APITokens)),
		logging.MaskField("jwt_secret", cfg.Auth.JWTSecret),
		logging.MaskField("jwt_issuer", cfg.Auth.JWTIssuer),
	)
	ok = true
	return a, nil
}

// instantiateOnStart configures an empty store from the lending section.
// An already instantiated store is left untouched.
func (a *app) instantiateOnStart(ctx context.Context) error {
	if !a.cfg.Lending.InstantiateOnStart() {
		return nil
	}
	_, err := a.exec.Config(ctx)
	if err == nil {
		a.logger.Info("lending pool already instantiated")
		return nil
	}
	if !errors.Is(err, lending.ErrNotInstantiated) {
		return err
	}
	admin, err := crypto.ValidateAddress(a.cfg.Lending.Admin, a.cfg.Lending.Prefix)
	if err != nil {
		return fmt.Errorf("lending admin: %w", err)
	}
	_, err = a.exec.Instantiate(ctx, admin, lending.InstantiateMsg{
		FundsDenom:      a.cfg.Lending.FundsDenom,
		CollateralDenom: a.cfg.Lending.CollateralDenom,
	})
	if err != nil {
		return fmt.Errorf("instantiate lending pool: %w", err)
	}
	a.logger.Info("lending pool instantiated",
		"admin", admin.String(), "funds_denom", a.cfg.Lending.FundsDenom, "collateral_denom", a.cfg.Lending.CollateralDenom)
	return nil
}

func (a *app) httpServer() (*http.Server, error) {
	srv := &http.Server{
		Addr:              a.cfg.ListenAddress,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	if a.cfg.TLS.CertPath == "" {
		return srv, nil
	}
	cert, err := tls.LoadX509KeyPair(a.cfg.TLS.CertPath, a.cfg.TLS.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load tls keypair: %w", err)
	}
	srv.TLSConfig = &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	return srv, nil
}

func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("close journal", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}
}
