// cmd/walletmon watches a Solana wallet through Helius and logs every new
// transaction. /metrics and /healthz are served on --metrics-addr.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"soltrend/config"
	"soltrend/internal/logger"
	"soltrend/internal/metrics"
	"soltrend/internal/secrets"
	"soltrend/internal/wallet"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	metricsAddr := flag.String("metrics-addr", ":9102", "metrics and health listener")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walletmon: %v\n", err)
		os.Exit(1)
	}

	var opts []logger.Option
	if cfg.Log.Console {
		opts = append(opts, logger.Console())
	}
	logger.Init("walletmon", cfg.Log.Level, opts...)

	if cfg.Wallet.Address == "" {
		log.Fatal().Msg("WALLET_ADDRESS is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var provider secrets.Provider = secrets.EnvProvider{}
	if cfg.Vault.Enabled {
		vp, err := secrets.NewVaultProvider(cfg.Vault.Address, "", cfg.Vault.Mount, cfg.Vault.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("vault init failed")
		}
		provider = secrets.Chain{provider, vp}
	}
	key, err := secrets.Lookup(ctx, provider, cfg.Wallet.APIKeySecret)
	if err != nil || key == "" {
		log.Fatal().Err(err).Str("secret", cfg.Wallet.APIKeySecret).Msg("helius api key not configured")
	}

	m := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()
	srv := metrics.NewServer(*metricsAddr, health)
	srv.Start()

	l := wallet.NewLog(cfg.Wallet.Capacity)
	mon, err := wallet.NewMonitor(wallet.Config{
		Mode:         cfg.Wallet.Mode,
		Address:      cfg.Wallet.Address,
		APIKey:       key,
		APIBase:      cfg.Wallet.APIBase,
		StreamURL:    cfg.Wallet.StreamURL,
		PollInterval: cfg.Wallet.PollInterval,
		ErrorBackoff: cfg.Wallet.ErrorBackoff,
	}, l, m)
	if err != nil {
		log.Fatal().Err(err).Msg("wallet monitor init failed")
	}

	log.Info().
		Str("address", cfg.Wallet.Address).
		Str("mode", cfg.Wallet.Mode).
		Int("capacity", l.Cap()).
		Msg("wallet monitor running")

	if err := mon.Run(ctx); err != nil {
		log.Error().Err(err).Msg("wallet monitor stopped")
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()
	srv.Stop(shutCtx)
	log.Info().Int("transactions", l.Len()).Msg("shutdown complete")
}
