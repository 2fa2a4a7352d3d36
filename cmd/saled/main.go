package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crowdsale/config"
	"crowdsale/core/events"
	"crowdsale/native/sale"
	"crowdsale/native/token"
	"crowdsale/observability/logging"
	"crowdsale/observability/metrics"
	"crowdsale/rpc"
	"crowdsale/state"
	"crowdsale/storage"
)

const envName = "CROWDSALE_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envName))
	logger := logging.Setup("saled", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.Log.File != "" {
		logger = logging.SetupFile("saled", cfg.Log.Env, cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays)
	}

	jwtSecret, err := cfg.JWTSecret()
	if err != nil {
		logger.Error("failed to resolve operator secret", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	allocations, err := cfg.GenesisAllocations()
	if err != nil {
		logger.Error("invalid genesis allocations", slog.Any("error", err))
		os.Exit(1)
	}
	applied, err := manager.ApplyGenesis(allocations)
	if err != nil {
		logger.Error("failed to apply genesis allocations", slog.Any("error", err))
		os.Exit(1)
	}
	if applied && len(allocations) > 0 {
		logger.Info("genesis allocations applied", slog.Int("accounts", len(allocations)))
	}

	params, err := cfg.SaleParams()
	if err != nil {
		logger.Error("invalid sale parameters", slog.Any("error", err))
		os.Exit(1)
	}
	saleEngine, err := sale.NewEngine(params)
	if err != nil {
		logger.Error("failed to construct sale engine", slog.Any("error", err))
		os.Exit(1)
	}
	saleEngine.SetState(manager)

	minter := saleEngine.Vault()
	if override, err := cfg.TokenMinterAddress(); err == nil && override != nil {
		minter = *override
	}
	tokenEngine := token.NewToken(minter)
	tokenEngine.SetState(manager)

	dispenser := token.NewDispenser(tokenEngine, saleEngine.Vault())
	saleEngine.SetToken(dispenser)
	saleEngine.RegisterAsset("SALE", dispenser)

	emitter := events.Multi(
		events.LogEmitter{Logger: logger},
		metrics.Sale().Emitter(),
	)
	saleEngine.SetEmitter(emitter)
	tokenEngine.SetEmitter(emitter)

	if err := seedWhitelist(cfg, saleEngine, params.Operator); err != nil {
		logger.Error("failed to seed whitelist", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.New(rpc.Config{
		Sale:      saleEngine,
		Token:     tokenEngine,
		State:     manager,
		JWTSecret: jwtSecret,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("rpc server listening", slog.String("address", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
	logger.Info("saled stopped")
}

// seedWhitelist applies the configured allow-list on startup. Reapplying the
// same entries on restart is harmless.
func seedWhitelist(cfg *config.Config, engine *sale.Engine, operator [20]byte) error {
	if err := engine.SetWhitelistEnabled(operator, cfg.Sale.WhitelistEnabled); err != nil {
		return err
	}
	parties, err := cfg.WhitelistAddresses()
	if err != nil {
		return err
	}
	if len(parties) == 0 {
		return nil
	}
	return engine.SetWhitelist(operator, parties, true)
}
