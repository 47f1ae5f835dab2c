package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/retry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type MonitorConfig struct {
	Interval         time.Duration
	CallTimeout      time.Duration
	NotifyTimeout    time.Duration
	FetchConcurrency int
	// PrimarySource is the venue GetPrice uses. Empty leaves primary keys unresolved.
	PrimarySource string
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 10 * time.Second
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 8
	}
	return c
}

type TickReport struct {
	Alerts        int
	Fetched       int
	FetchFailures int
	Triggered     int
	Notified      int
	Marked        int
	Errors        int
}

// Monitor periodically evaluates every active alert and notifies owners of
// the ones that fire. Ticks never overlap.
type Monitor struct {
	alerts   domain.AlertStore
	prices   domain.PriceSource
	notifier domain.NotificationSink
	retry    retry.Policy
	cfg      MonitorConfig
	logger   *zap.Logger
	now      func() time.Time

	running atomic.Bool
	tickMu  sync.Mutex
}

func NewMonitor(alerts domain.AlertStore, prices domain.PriceSource, notifier domain.NotificationSink, policy retry.Policy, cfg MonitorConfig, logger *zap.Logger) *Monitor {
	if policy == nil {
		policy = retry.Once{}
	}
	return &Monitor{
		alerts:   alerts,
		prices:   prices,
		notifier: notifier,
		retry:    policy,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs the loop on its own goroutine. The returned channel is closed
// when the loop has exited.
func (m *Monitor) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("monitor stopped", zap.Error(err))
		}
	}()
	return done
}

// Run blocks until ctx is done. Only one Run may be active per Monitor.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return domain.ErrAlreadyRunning
	}
	defer m.running.Store(false)

	m.logger.Info("monitor starting", zap.Duration("interval", m.cfg.Interval))
	verifyCtx, cancel := context.WithTimeout(ctx, m.cfg.NotifyTimeout)
	if err := m.notifier.VerifyReachable(verifyCtx); err != nil {
		m.logger.Warn("notification sink not reachable, continuing", zap.Error(err))
	}
	cancel()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		m.Tick(ctx)
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick fetches prices for all active alerts, evaluates them, and notifies
// and marks the ones that fire. Per-alert and per-source failures are logged
// and never abort the pass.
func (m *Monitor) Tick(ctx context.Context) TickReport {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	var report TickReport
	if ctx.Err() != nil {
		return report
	}

	logger := m.logger.With(zap.String("tick_id", uuid.NewString()))
	start := time.Now()

	alerts, err := m.alerts.GetActiveAlerts(ctx)
	if err != nil {
		logger.Error("failed to load active alerts", zap.Error(err))
		report.Errors++
		return report
	}
	report.Alerts = len(alerts)
	if len(alerts) == 0 {
		logger.Debug("no active alerts")
		return report
	}

	keys := lo.Uniq(lo.FlatMap(alerts, func(alert domain.Alert, _ int) []domain.PriceKey {
		return m.requirements(alert)
	}))
	samples := m.fetchAll(ctx, logger, keys)
	report.Fetched = len(samples)
	report.FetchFailures = len(keys) - len(samples)

	for _, alert := range alerts {
		if ctx.Err() != nil {
			logger.Info("tick interrupted by shutdown", zap.Uint("next_alert_id", alert.ID))
			break
		}

		required := m.requirements(alert)
		gathered := make([]domain.PriceSample, 0, len(required))
		for _, key := range required {
			if sample, ok := samples[key]; ok {
				gathered = append(gathered, sample)
			}
		}
		if !ShouldTrigger(alert, gathered) {
			continue
		}
		report.Triggered++
		m.fire(ctx, logger, alert, gathered, &report)
	}

	logger.Info(
		"tick complete",
		zap.Int("alerts", report.Alerts),
		zap.Int("fetched", report.Fetched),
		zap.Int("fetch_failures", report.FetchFailures),
		zap.Int("triggered", report.Triggered),
		zap.Int("marked", report.Marked),
		zap.Duration("duration", time.Since(start)),
	)
	return report
}

func (m *Monitor) requirements(alert domain.Alert) []domain.PriceKey {
	keys := alert.Requirements()
	if m.cfg.PrimarySource == "" {
		return keys
	}
	return lo.Uniq(lo.Map(keys, func(key domain.PriceKey, _ int) domain.PriceKey {
		if key.Source == "" {
			key.Source = m.cfg.PrimarySource
		}
		return key
	}))
}

func (m *Monitor) fetchAll(ctx context.Context, logger *zap.Logger, keys []domain.PriceKey) map[domain.PriceKey]domain.PriceSample {
	var mu sync.Mutex
	samples := make(map[domain.PriceKey]domain.PriceSample, len(keys))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.cfg.FetchConcurrency)
	for _, key := range keys {
		key := key
		group.Go(func() error {
			sample, err := m.fetch(groupCtx, logger, key)
			if err != nil {
				logger.Warn("price unavailable this tick", zap.String("symbol", key.Symbol), zap.String("source", key.Source), zap.Error(err))
				return nil
			}
			mu.Lock()
			samples[key] = sample
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return samples
}

func (m *Monitor) fetch(ctx context.Context, logger *zap.Logger, key domain.PriceKey) (domain.PriceSample, error) {
	var sample domain.PriceSample
	err := m.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		defer cancel()

		var err error
		if key.Source == "" {
			sample, err = m.prices.GetPrice(callCtx, key.Symbol)
		} else {
			sample, err = m.prices.GetPriceFromSource(callCtx, key.Symbol, key.Source)
		}
		if errors.Is(err, domain.ErrUnsupportedSymbol) || errors.Is(err, domain.ErrUnknownSource) {
			return retry.Permanent(err)
		}
		return err
	}, func(attempt int, err error) {
		logger.Debug("price fetch retry", zap.String("symbol", key.Symbol), zap.String("source", key.Source), zap.Int("attempt", attempt), zap.Error(err))
	})
	if err != nil {
		return domain.PriceSample{}, err
	}
	sample.Symbol = key.Symbol
	return sample, nil
}

// fire notifies before marking, so a failed mark can only cause a duplicate
// notification on a later tick. A failed notification leaves the alert active.
func (m *Monitor) fire(ctx context.Context, logger *zap.Logger, alert domain.Alert, samples []domain.PriceSample, report *TickReport) {
	fields := []zap.Field{zap.Uint("alert_id", alert.ID), zap.Int64("owner", alert.Owner), zap.String("symbol", alert.Symbol)}

	// The mark must follow a sent notification even when shutdown begins.
	detached := context.WithoutCancel(ctx)

	notifyCtx, cancel := context.WithTimeout(detached, m.cfg.NotifyTimeout)
	err := m.notifier.SendAlert(notifyCtx, alert.Owner, RenderTriggerMessage(alert, samples))
	cancel()
	if err != nil {
		logger.Warn("failed to send alert", append(fields, zap.Error(err))...)
		report.Errors++
		return
	}
	report.Notified++

	markCtx, cancel := context.WithTimeout(detached, m.cfg.NotifyTimeout)
	defer cancel()
	if err := m.alerts.MarkTriggered(markCtx, alert.ID, m.now().UTC()); err != nil {
		logger.Error("failed to mark alert triggered", append(fields, zap.Error(err))...)
		report.Errors++
		return
	}
	report.Marked++
	logger.Info("alert triggered", fields...)
}
