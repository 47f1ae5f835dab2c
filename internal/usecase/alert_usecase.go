package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"go.uber.org/zap"
)

var ErrAlertNotFound = errors.New("alert not found")

type AlertUsecase struct {
	alerts domain.AlertRepository
}

func NewAlertUsecase(alerts domain.AlertRepository) *AlertUsecase {
	return &AlertUsecase{alerts: alerts}
}

func (u *AlertUsecase) ListAlerts(ctx context.Context, owner int64) ([]domain.Alert, error) {
	alerts, err := u.alerts.ListByOwner(ctx, owner)
	if err != nil {
		return nil, persistenceError("list alerts", err)
	}
	return alerts, nil
}

// DeleteAlert removes one of owner's alerts. Alerts of other owners are
// reported as not found.
func (u *AlertUsecase) DeleteAlert(ctx context.Context, owner int64, alertID uint) error {
	if err := u.alerts.Delete(ctx, owner, alertID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAlertNotFound
		}
		return persistenceError("delete alert", err)
	}
	return nil
}

type SessionSweeper struct {
	store  domain.SessionSweeper
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewSessionSweeper(store domain.SessionSweeper, ttl time.Duration, logger *zap.Logger) *SessionSweeper {
	return &SessionSweeper{store: store, ttl: ttl, logger: logger, now: time.Now}
}

func (s *SessionSweeper) Sweep(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.ttl)
	removed, err := s.store.SweepConversationStates(ctx, cutoff)
	if err != nil {
		s.logger.Warn("session sweep failed", zap.Error(err))
		return 0, persistenceError("sweep conversation states", err)
	}
	if removed > 0 {
		s.logger.Info("stale sessions removed", zap.Int64("count", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}
