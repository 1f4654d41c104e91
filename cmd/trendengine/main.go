// cmd/trendengine fetches candles, classifies the trend on a schedule and
// serves the dashboard API.
//
// Usage:
//
//	go run ./cmd/trendengine --config=config.yaml
//	go run ./cmd/trendengine --once
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"soltrend/config"
	"soltrend/internal/api"
	"soltrend/internal/assistant"
	"soltrend/internal/gateway"
	"soltrend/internal/logger"
	"soltrend/internal/marketdata"
	"soltrend/internal/metrics"
	"soltrend/internal/notification"
	"soltrend/internal/secrets"
	redisstore "soltrend/internal/store/redis"
	sqlitestore "soltrend/internal/store/sqlite"
	"soltrend/internal/trendengine"
	"soltrend/internal/wallet"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	once := flag.Bool("once", false, "refresh once, print the summary and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trendengine: %v\n", err)
		os.Exit(1)
	}

	var opts []logger.Option
	if cfg.Log.Console {
		opts = append(opts, logger.Console())
	}
	logger.Init("trendengine", cfg.Log.Level, opts...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *once); err != nil {
		log.Fatal().Err(err).Msg("trendengine failed")
	}
}

func run(ctx context.Context, cfg *config.Config, once bool) error {
	lg := logger.Component("main")
	m := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()
	provider := newSecrets(cfg)

	// ---- Candle source ----
	binanceKey, err := secrets.Lookup(ctx, provider, "BINANCE_API_KEY")
	if err != nil {
		lg.Warn().Err(err).Msg("binance api key lookup failed, using public endpoints")
	}
	var source marketdata.Source = marketdata.NewBinanceSource(marketdata.BinanceConfig{
		BaseURL:           cfg.Market.BaseURL,
		APIKey:            binanceKey,
		RequestsPerSecond: cfg.Market.RequestsPerSecond,
		Timeout:           cfg.Market.Timeout,
	})

	var candles *sqlitestore.Store
	if cfg.SQLite.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		candles, err = sqlitestore.New(cfg.SQLite.Path)
		if err != nil {
			lg.Warn().Err(err).Msg("sqlite unavailable, continuing without candle cache")
		} else {
			defer candles.Close()
			cached := marketdata.NewCachedSource(source, candles)
			cached.OnRead = func(result string) { m.CacheReads.WithLabelValues(result).Inc() }
			source = cached
		}
	}

	// ---- Verdict store and live feed ----
	hub := gateway.NewHub(m.WSClients)
	defer hub.Close()

	var verdicts trendengine.VerdictStore = redisstore.NewMemoryStore()
	var publisher trendengine.Publisher = trendengine.PublisherFunc(
		func(_ context.Context, symbol string, payload []byte) error {
			hub.Broadcast(redisstore.Channel(symbol), payload)
			return nil
		})

	var rdb *redisstore.Store
	if cfg.Redis.Enabled {
		rdb, err = redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			OnStateChange: func(from, to redisstore.State) {
				m.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					m.RedisCircuitBreakerTrips.Inc()
				}
				log.Warn().Str("component", "redis").Stringer("from", from).Stringer("to", to).Msg("circuit breaker state change")
			},
			OnFlush: func(n int) { m.RedisVerdictsFlushed.Add(float64(n)) },
		})
		if err != nil {
			lg.Warn().Err(err).Msg("redis unavailable, verdicts kept in memory")
			health.SetRedisConnected(false)
		} else {
			defer rdb.Close()
			verdicts, publisher = rdb, rdb
			go hub.Relay(ctx, rdb.Subscribe(ctx, cfg.Market.Symbol))
		}
	}

	svc, err := trendengine.New(trendengine.Config{
		Symbol:          cfg.Market.Symbol,
		Interval:        cfg.Market.Interval,
		Limit:           cfg.Market.Limit,
		RefreshInterval: cfg.Engine.RefreshInterval,
		NotifyTimeout:   cfg.Engine.NotifyTimeout,
		SignalCount:     cfg.Engine.SignalCount,
	}, trendengine.Deps{
		Source:    source,
		Verdicts:  verdicts,
		Notifier:  newNotifier(ctx, cfg, provider),
		Publisher: publisher,
		Metrics:   m,
		Health:    health,
	})
	if err != nil {
		return err
	}

	if once {
		snap, err := svc.Refresh(ctx)
		if err != nil {
			return err
		}
		svc.Wait()
		fmt.Print(snap.Text)
		return nil
	}

	// ---- Wallet monitor (optional) ----
	var txLog api.TransactionLog
	if cfg.Wallet.Address != "" {
		l, err := startWallet(ctx, cfg, provider, m)
		if err != nil {
			lg.Warn().Err(err).Msg("wallet monitor disabled")
		} else {
			txLog = l
		}
	}

	// ---- HTTP ----
	srv, err := api.NewServer(api.ServerConfig{
		Addr:           cfg.HTTP.Addr,
		Mode:           cfg.HTTP.Mode,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, api.Deps{
		Snapshots: svc,
		Assistant: assistant.New(assistant.Config{
			BaseURL:      cfg.Assistant.BaseURL,
			Model:        cfg.Assistant.Model,
			Timeout:      cfg.Assistant.Timeout,
			APIKeySecret: cfg.Assistant.APIKeySecret,
		}, provider),
		Wallet:  txLog,
		Live:    hub,
		Health:  health,
		Metrics: m,
	})
	if err != nil {
		return err
	}

	sqlDB := candlesDB(candles)
	if rdb != nil {
		health.StartLivenessChecker(ctx, rdb.Client(), sqlDB, 15*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlDB, 15*time.Second)
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	go svc.Run(runCtx)

	lg.Info().
		Str("symbol", cfg.Market.Symbol).
		Str("interval", cfg.Market.Interval).
		Str("addr", cfg.HTTP.Addr).
		Msg("all systems running")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	lg.Info().Msg("shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		lg.Error().Err(err).Msg("http shutdown")
	}
	stopRun()
	<-svc.Done()
	svc.Wait()
	return nil
}

// newSecrets resolves secrets from the environment, then Vault when enabled.
func newSecrets(cfg *config.Config) secrets.Provider {
	chain := secrets.Chain{secrets.EnvProvider{}}
	if cfg.Vault.Enabled {
		vp, err := secrets.NewVaultProvider(cfg.Vault.Address, "", cfg.Vault.Mount, cfg.Vault.Path)
		if err != nil {
			log.Warn().Err(err).Msg("vault disabled")
		} else {
			chain = append(chain, vp)
		}
	}
	return secrets.NewCache(chain, cfg.Vault.CacheTTL)
}

// newNotifier fans alerts out to the log plus every configured channel.
func newNotifier(ctx context.Context, cfg *config.Config, p secrets.Provider) notification.Notifier {
	lg := logger.Component("main")
	out := notification.Multi{notification.NewLogNotifier()}

	if cfg.Notify.TelegramChatID != "" {
		token, err := secrets.Lookup(ctx, p, cfg.Notify.TelegramSecret)
		switch {
		case err != nil:
			lg.Warn().Err(err).Msg("telegram token lookup failed")
		case token == "":
			lg.Warn().Msg("telegram chat configured without bot token")
		default:
			out = append(out, notification.NewTelegramNotifier(token, cfg.Notify.TelegramChatID))
		}
	}
	if cfg.Notify.WebhookURL != "" {
		out = append(out, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		k, err := notification.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			lg.Warn().Err(err).Msg("kafka notifier disabled")
		} else {
			out = append(out, k)
		}
	}
	lg.Info().Int("channels", len(out)).Msg("notifier ready")
	return out
}

func startWallet(ctx context.Context, cfg *config.Config, p secrets.Provider, m *metrics.Metrics) (*wallet.Log, error) {
	key, err := secrets.Lookup(ctx, p, cfg.Wallet.APIKeySecret)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, errors.New("wallet api key not configured")
	}
	l := wallet.NewLog(cfg.Wallet.Capacity)
	mon, err := wallet.NewMonitor(walletConfig(cfg, key), l, m)
	if err != nil {
		return nil, err
	}
	go mon.Run(ctx)
	return l, nil
}

func walletConfig(cfg *config.Config, key string) wallet.Config {
	return wallet.Config{
		Mode:         cfg.Wallet.Mode,
		Address:      cfg.Wallet.Address,
		APIKey:       key,
		APIBase:      cfg.Wallet.APIBase,
		StreamURL:    cfg.Wallet.StreamURL,
		PollInterval: cfg.Wallet.PollInterval,
		ErrorBackoff: cfg.Wallet.ErrorBackoff,
	}
}

func candlesDB(s *sqlitestore.Store) *sql.DB {
	if s == nil {
		return nil
	}
	return s.DB()
}
