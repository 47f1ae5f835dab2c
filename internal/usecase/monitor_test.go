package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/retry"
	"github.com/NasaVasa/pricewatch/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type monitorFixture struct {
	store    *memStore
	prices   *fakePrices
	notifier *fakeNotifier
	monitor  *usecase.Monitor
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		store:    newMemStore(),
		prices:   newFakePrices(),
		notifier: newFakeNotifier(),
	}
	f.monitor = usecase.NewMonitor(
		f.store, f.prices, f.notifier,
		retry.NewBackoff(3, 0, 0),
		usecase.MonitorConfig{Interval: 10 * time.Millisecond, CallTimeout: time.Second, NotifyTimeout: time.Second},
		zap.NewNop(),
	)
	return f
}

func (f *monitorFixture) addPriceAlert(t *testing.T, owner int64, symbol, target string, condition domain.Condition) domain.Alert {
	t.Helper()
	alert := domain.NewAlert(owner, symbol, domain.PriceVariant{TargetPrice: mustDecimal(target), Condition: condition}, time.Now())
	require.NoError(t, f.store.SaveAlert(context.Background(), &alert))
	return alert
}

func TestMonitor_TickTriggersAndMarks(t *testing.T) {
	f := newMonitorFixture(t)
	alert := f.addPriceAlert(t, 1, "BTC", "45000", domain.ConditionAbove)
	f.prices.set("BTC", "", "46000")

	report := f.monitor.Tick(context.Background())

	assert.Equal(t, 1, report.Alerts)
	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, 1, report.Marked)
	sent := f.notifier.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(1), sent[0].owner)
	assert.Contains(t, sent[0].message, "BTC")

	stored := f.store.alert(alert.ID)
	assert.False(t, stored.Active)
	require.NotNil(t, stored.TriggeredAt)
}

func TestMonitor_TriggerIsIdempotent(t *testing.T) {
	f := newMonitorFixture(t)
	f.addPriceAlert(t, 1, "BTC", "45000", domain.ConditionAbove)
	f.prices.set("BTC", "", "46000")

	f.monitor.Tick(context.Background())
	second := f.monitor.Tick(context.Background())

	assert.Equal(t, 0, second.Alerts)
	assert.Len(t, f.notifier.messages(), 1)
}

func TestMonitor_RetriesTransientFetchFailures(t *testing.T) {
	f := newMonitorFixture(t)
	f.addPriceAlert(t, 1, "BTC", "45000", domain.ConditionAbove)
	f.prices.set("BTC", "", "46000")
	f.prices.failTimes("BTC", "", 2)

	report := f.monitor.Tick(context.Background())

	assert.Equal(t, 3, f.prices.callCount("BTC", ""))
	assert.Equal(t, 0, report.FetchFailures)
	assert.Equal(t, 1, report.Marked)
	assert.Len(t, f.notifier.messages(), 1)
}

func TestMonitor_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newMonitorFixture(t)
	alert := f.addPriceAlert(t, 1, "BTC", "45000", domain.ConditionAbove)
	f.prices.set("BTC", "", "46000")
	f.prices.failTimes("BTC", "", 5)

	report := f.monitor.Tick(context.Background())

	assert.Equal(t, 3, f.prices.callCount("BTC", ""))
	assert.Equal(t, 1, report.FetchFailures)
	assert.Empty(t, f.notifier.messages())
	assert.True(t, f.store.alert(alert.ID).Active)
}

func TestMonitor_MarkFailureDoesNotBlockOtherAlerts(t *testing.T) {
	f := newMonitorFixture(t)
	first := f.addPriceAlert(t, 1, "BTC", "45000", domain.ConditionAbove)
	second := f.addPriceAlert(t, 2, "ETH", "3000", domain.ConditionBelow)
	f.prices.set("BTC", "", "46000")
	f.prices.set("ETH", "", "2900")
	f.store.failMark[first.ID] = true

	report := f.monitor.Tick(context.Background())

	assert.Equal(t, 2, report.Triggered)
	assert.Equal(t, 2, report.Notified)
	assert.Equal(t, 1, report.Marked)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, []uint{first.ID, second.ID}, f.store.markCalls)
	assert.True(t, f.store.alert(first.ID).Active)
	assert.False(t, f.store.alert(second.ID).Active)
}

func TestMonitor_NotifyFailureLeavesAlertActive(t *testing.T) {
	f := newMonitorFixture(t)
	alert := f.addPriceAlert(t, 9, "BTC", "45000", domain.ConditionAbove)
	f.prices.set("BTC", "", "46000")
	f.notifier.failOwners[9] = true

	report := f.monitor.Tick(context.Background())

	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, 0, report.Notified)
	assert.Empty(t, f.store.markCalls)
	assert.True(t, f.store.alert(alert.ID).Active)

	f.notifier.failOwners[9] = false
	report = f.monitor.Tick(context.Background())
	assert.Equal(t, 1, report.Marked)
	assert.False(t, f.store.alert(alert.ID).Active)
}

func TestMonitor_FetchesEachKeyOncePerTick(t *testing.T) {
	f := newMonitorFixture(t)
	f.addPriceAlert(t, 1, "BTC", "100000", domain.ConditionAbove)
	f.addPriceAlert(t, 2, "BTC", "200000", domain.ConditionAbove)
	f.addPriceAlert(t, 3, "BTC", "10", domain.ConditionBelow)
	f.prices.set("BTC", "", "46000")

	report := f.monitor.Tick(context.Background())

	assert.Equal(t, 1, f.prices.callCount("BTC", ""))
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 0, report.Triggered)
}

func TestMonitor_DepegUsesRequestedSources(t *testing.T) {
	f := newMonitorFixture(t)
	alert := domain.NewAlert(5, "USDT", domain.DepegVariant{
		TargetPrice:     decimal.NewFromInt(1),
		DifferentialPct: mustDecimal("1"),
		Sources:         []string{"binance", "coinbase"},
	}, time.Now())
	require.NoError(t, f.store.SaveAlert(context.Background(), &alert))
	f.prices.set("USDT", "binance", "0.99")
	f.prices.set("USDT", "coinbase", "1.02")

	report := f.monitor.Tick(context.Background())

	assert.Equal(t, 1, f.prices.callCount("USDT", "binance"))
	assert.Equal(t, 1, f.prices.callCount("USDT", "coinbase"))
	assert.Equal(t, 0, f.prices.callCount("USDT", ""))
	assert.Equal(t, 1, report.Marked)
	sent := f.notifier.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].message, "2.00%")
}

func TestMonitor_PairDepegMissingLegDoesNotFire(t *testing.T) {
	f := newMonitorFixture(t)
	alert := domain.NewAlert(5, "ETH/stETH", domain.PairDepegVariant{
		TokenA:          "ETH",
		TokenB:          "stETH",
		ExpectedRatio:   decimal.NewFromInt(1),
		DifferentialPct: mustDecimal("1"),
	}, time.Now())
	require.NoError(t, f.store.SaveAlert(context.Background(), &alert))
	f.prices.set("ETH", "", "100")

	report := f.monitor.Tick(context.Background())

	assert.Equal(t, 1, report.FetchFailures)
	assert.Equal(t, 0, report.Triggered)
	assert.True(t, f.store.alert(alert.ID).Active)
}

func TestMonitor_CancelledTickDoesNothing(t *testing.T) {
	f := newMonitorFixture(t)
	f.addPriceAlert(t, 1, "BTC", "45000", domain.ConditionAbove)
	f.prices.set("BTC", "", "46000")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := f.monitor.Tick(ctx)

	assert.Equal(t, usecase.TickReport{}, report)
	assert.Equal(t, 0, f.prices.callCount("BTC", ""))
}

func TestMonitor_RunContinuesWhenSinkUnreachable(t *testing.T) {
	f := newMonitorFixture(t)
	f.notifier.unreachable = true
	f.addPriceAlert(t, 1, "BTC", "45000", domain.ConditionAbove)
	f.prices.set("BTC", "", "46000")

	ctx, cancel := context.WithCancel(context.Background())
	done := f.monitor.Start(ctx)

	require.Eventually(t, func() bool {
		return len(f.notifier.messages()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestMonitor_SecondRunIsRejected(t *testing.T) {
	f := newMonitorFixture(t)
	f.addPriceAlert(t, 1, "BTC", "45000", domain.ConditionAbove)
	f.prices.set("BTC", "", "46000")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := f.monitor.Start(ctx)

	require.Eventually(t, func() bool {
		return len(f.notifier.messages()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, f.monitor.Run(ctx), domain.ErrAlreadyRunning)

	cancel()
	<-done
}

func TestMonitor_CallTimeoutCountsAsFailedAttempt(t *testing.T) {
	f := newMonitorFixture(t)
	f.monitor = usecase.NewMonitor(
		f.store, f.prices, f.notifier,
		retry.NewBackoff(3, 0, 0),
		usecase.MonitorConfig{CallTimeout: 30 * time.Millisecond, NotifyTimeout: time.Second},
		zap.NewNop(),
	)
	alert := f.addPriceAlert(t, 1, "BTC", "45000", domain.ConditionAbove)
	f.prices.hang[domain.PriceKey{Symbol: "BTC"}] = true

	start := time.Now()
	report := f.monitor.Tick(context.Background())

	assert.Equal(t, 3, f.prices.callCount("BTC", ""))
	assert.Equal(t, 1, report.FetchFailures)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, f.store.alert(alert.ID).Active)
}

func TestMonitor_PermanentFetchErrorIsNotRetried(t *testing.T) {
	f := newMonitorFixture(t)
	f.addPriceAlert(t, 1, "NOPE", "1", domain.ConditionAbove)
	f.prices.permanent[domain.PriceKey{Symbol: "NOPE"}] = domain.ErrUnsupportedSymbol

	report := f.monitor.Tick(context.Background())

	assert.Equal(t, 1, f.prices.callCount("NOPE", ""))
	assert.Equal(t, 1, report.FetchFailures)
}

func TestMonitor_PrimaryAndExplicitSourceShareOneFetch(t *testing.T) {
	f := newMonitorFixture(t)
	f.monitor = usecase.NewMonitor(
		f.store, f.prices, f.notifier,
		retry.Once{},
		usecase.MonitorConfig{CallTimeout: time.Second, NotifyTimeout: time.Second, PrimarySource: "binance"},
		zap.NewNop(),
	)
	f.addPriceAlert(t, 1, "USDT", "2", domain.ConditionAbove)
	depeg := domain.NewAlert(2, "USDT", domain.DepegVariant{
		TargetPrice:     decimal.NewFromInt(1),
		DifferentialPct: mustDecimal("5"),
		Sources:         []string{"binance"},
	}, time.Now())
	require.NoError(t, f.store.SaveAlert(context.Background(), &depeg))
	f.prices.set("USDT", "binance", "1.001")

	report := f.monitor.Tick(context.Background())

	assert.Equal(t, 1, f.prices.callCount("USDT", "binance"))
	assert.Equal(t, 0, f.prices.callCount("USDT", ""))
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 0, report.FetchFailures)
}

func TestMonitor_TicksDoNotOverlap(t *testing.T) {
	f := newMonitorFixture(t)
	alert := f.addPriceAlert(t, 1, "BTC", "45000", domain.ConditionAbove)
	f.prices.set("BTC", "", "46000")
	gate := make(chan struct{})
	f.prices.gate = gate

	first := make(chan usecase.TickReport, 1)
	go func() { first <- f.monitor.Tick(context.Background()) }()
	require.Eventually(t, func() bool {
		return f.prices.callCount("BTC", "") == 1
	}, time.Second, 5*time.Millisecond)

	second := make(chan usecase.TickReport, 1)
	go func() { second <- f.monitor.Tick(context.Background()) }()
	assert.Never(t, func() bool { return len(second) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	close(gate)
	assert.Equal(t, 1, (<-first).Marked)
	assert.Equal(t, 0, (<-second).Alerts)
	assert.Equal(t, 1, f.prices.callCount("BTC", ""))
	assert.Len(t, f.notifier.messages(), 1)
	assert.False(t, f.store.alert(alert.ID).Active)
}

func TestMonitor_ShutdownStopsBetweenAlerts(t *testing.T) {
	f := newMonitorFixture(t)
	first := f.addPriceAlert(t, 1, "BTC", "45000", domain.ConditionAbove)
	second := f.addPriceAlert(t, 2, "ETH", "3000", domain.ConditionBelow)
	f.prices.set("BTC", "", "46000")
	f.prices.set("ETH", "", "2900")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.notifier.onSend = cancel

	report := f.monitor.Tick(ctx)

	assert.Equal(t, 2, report.Alerts)
	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, 1, report.Marked)
	assert.Len(t, f.notifier.messages(), 1)
	assert.False(t, f.store.alert(first.ID).Active)
	assert.True(t, f.store.alert(second.ID).Active)
}
