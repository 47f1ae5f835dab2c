package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NasaVasa/pricewatch/internal/config"
	"github.com/NasaVasa/pricewatch/internal/delivery/telegram"
	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/infra/binance"
	"github.com/NasaVasa/pricewatch/internal/infra/coinbase"
	"github.com/NasaVasa/pricewatch/internal/infra/db"
	"github.com/NasaVasa/pricewatch/internal/infra/log"
	"github.com/NasaVasa/pricewatch/internal/infra/prices"
	"github.com/NasaVasa/pricewatch/internal/retry"
	"github.com/NasaVasa/pricewatch/internal/usecase"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	bot       *telegram.Bot
	monitor   *usecase.Monitor
	stream    *binance.Stream
	scheduler *cron.Cron
	logger    *zap.Logger
	cleanupFn func() error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := log.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	catalog, router, stream, err := buildPricing(cfg, logger)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", domain.ErrPersistence, err)
	}
	cleanup := func() error {
		sqlDB, err := dbConn.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	store := db.NewStore(dbConn, logger)

	api, err := telegram.NewAPI(cfg.TelegramBotToken, time.Duration(cfg.TelegramPollTimeout)*time.Second+cfg.NotifyTimeout)
	if err != nil {
		_ = cleanup()
		return nil, err
	}

	notifier := telegram.NewNotifier(api, logger)
	wizard := usecase.NewWizard(store, catalog, logger)
	alertUC := usecase.NewAlertUsecase(store)
	handlers := telegram.NewHandlers(wizard, alertUC, catalog, logger)
	bot := telegram.NewBot(api, handlers, cfg.TelegramPollTimeout)

	monitor := usecase.NewMonitor(
		store,
		router,
		notifier,
		retry.NewBackoff(cfg.RetryMaxAttempts, cfg.RetryMinDelay, cfg.RetryMaxDelay),
		usecase.MonitorConfig{
			Interval:         cfg.MonitorInterval,
			CallTimeout:      cfg.PriceCallTimeout,
			NotifyTimeout:    cfg.NotifyTimeout,
			FetchConcurrency: cfg.FetchConcurrency,
			PrimarySource:    router.Primary(),
		},
		logger,
	)

	scheduler := cron.New(cron.WithLogger(log.CronLogger(logger)))
	sweeper := usecase.NewSessionSweeper(store, cfg.SessionTTL, logger)
	if _, err := scheduler.AddFunc(cfg.SessionSweepSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = sweeper.Sweep(sweepCtx)
	}); err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("%w: SESSION_SWEEP_SCHEDULE: %w", domain.ErrInvalidConfig, err)
	}

	logger.Info(
		"pricewatch configured",
		zap.Strings("sources", catalog.Sources),
		zap.String("primary_source", router.Primary()),
		zap.Int("symbols", len(catalog.PriceSymbols())),
		zap.Int("stablecoins", len(catalog.StablecoinSymbols())),
		zap.Int("pairs", len(catalog.Pairs)),
	)

	return &App{
		bot:       bot,
		monitor:   monitor,
		stream:    stream,
		scheduler: scheduler,
		logger:    logger,
		cleanupFn: cleanup,
	}, nil
}

// buildPricing loads the catalog, registers the configured venues and checks
// the catalog against them. Nothing here touches the network.
func buildPricing(cfg config.Config, logger *zap.Logger) (domain.Catalog, *prices.Router, *binance.Stream, error) {
	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return domain.Catalog{}, nil, nil, err
	}

	tickers := venueTickers(catalog)
	venues := []prices.Venue{
		binance.NewClient(cfg.BinanceBaseURL, cfg.PriceCallTimeout, tickers[binance.SourceName], logger),
		coinbase.NewClient(cfg.CoinbaseBaseURL, cfg.PriceCallTimeout, cfg.CoinbaseRatePerSec, tickers[coinbase.SourceName], logger),
	}
	var stream *binance.Stream
	if cfg.BinanceStreamOn {
		stream = binance.NewStream(cfg.BinanceStreamURL, cfg.BinanceStreamMaxAge, tickers[binance.StreamSourceName], logger)
		venues = append(venues, stream)
	}
	router, err := prices.NewRouter(cfg.PrimarySource, logger, venues...)
	if err != nil {
		return domain.Catalog{}, nil, nil, err
	}
	catalog.Sources = router.Names()
	if err := catalog.Validate(); err != nil {
		return domain.Catalog{}, nil, nil, err
	}
	return catalog, router, stream, nil
}

// venueTickers maps each venue name to its ticker scheme. The stream shares
// the REST client's market names.
func venueTickers(catalog domain.Catalog) map[string]prices.TickerFunc {
	binanceTickers := prices.CatalogTickers(catalog, binance.SourceName, binance.DefaultTicker)
	return map[string]prices.TickerFunc{
		binance.SourceName:       binanceTickers,
		binance.StreamSourceName: binanceTickers,
		coinbase.SourceName:      prices.CatalogTickers(catalog, coinbase.SourceName, coinbase.DefaultTicker),
	}
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("pricewatch service starting")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)
	if a.stream != nil {
		group.Go(func() error {
			a.stream.Run(ctx)
			return nil
		})
	}
	group.Go(func() error {
		defer cancel()
		if err := a.monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		defer cancel()
		return a.bot.Start(ctx)
	})
	a.scheduler.Start()

	a.logger.Info("pricewatch service started")
	return group.Wait()
}

func (a *App) Shutdown() {
	a.logger.Info("pricewatch service shutting down")
	stopped := a.scheduler.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(5 * time.Second):
		a.logger.Warn("timeout waiting for scheduled jobs")
	}
	if a.cleanupFn != nil {
		if err := a.cleanupFn(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
