package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) GetActiveAlerts(ctx context.Context) ([]domain.Alert, error) {
	var models []alertModel
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&models).Error; err != nil {
		return nil, wrap("load active alerts", err)
	}
	return s.mapAlerts(models), nil
}

func (s *Store) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	return wrap("save alert", createAlert(s.db.WithContext(ctx), alert))
}

func (s *Store) MarkTriggered(ctx context.Context, alertID uint, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&alertModel{}).
		Where("id = ? AND active = ?", alertID, true).
		Updates(map[string]interface{}{"active": false, "triggered_at": at})
	if result.Error != nil {
		return wrap("mark alert triggered", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, owner int64) ([]domain.Alert, error) {
	var models []alertModel
	if err := s.db.WithContext(ctx).Where("owner = ?", owner).Order("id").Find(&models).Error; err != nil {
		return nil, wrap("list alerts", err)
	}
	return s.mapAlerts(models), nil
}

func (s *Store) Delete(ctx context.Context, owner int64, alertID uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND owner = ?", alertID, owner).Delete(&alertModel{})
	if result.Error != nil {
		return wrap("delete alert", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) GetConversationState(ctx context.Context, sessionID int64) (*domain.ConversationState, error) {
	var model conversationModel
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap("load conversation state", err)
	}
	state, err := mapStateToDomain(model)
	if err != nil {
		return nil, wrap("load conversation state", err)
	}
	return &state, nil
}

func (s *Store) SaveConversationState(ctx context.Context, state *domain.ConversationState) error {
	model := mapStateToModel(*state)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "step", "symbol", "target_price", "condition", "differential",
			"sources", "token_a", "token_b", "expected_ratio", "touched_at", "updated_at",
		}),
	}).Create(&model).Error
	return wrap("save conversation state", err)
}

// ClearConversationState is a no-op for idle sessions.
func (s *Store) ClearConversationState(ctx context.Context, sessionID int64) error {
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&conversationModel{}).Error
	return wrap("clear conversation state", err)
}

func (s *Store) CompleteConversation(ctx context.Context, sessionID int64, alert *domain.Alert) error {
	created := *alert
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createAlert(tx, &created); err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionID).Delete(&conversationModel{}).Error
	})
	if err != nil {
		return wrap("complete conversation", err)
	}
	*alert = created
	return nil
}

func (s *Store) SweepConversationStates(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("touched_at < ?", before.UTC()).Delete(&conversationModel{})
	if result.Error != nil {
		return 0, wrap("sweep conversation states", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) mapAlerts(models []alertModel) []domain.Alert {
	alerts := make([]domain.Alert, 0, len(models))
	for _, model := range models {
		alert, err := mapAlertToDomain(model)
		if err != nil {
			s.logger.Warn("skipping undecodable alert", zap.Uint("alert_id", model.ID), zap.Error(err))
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts
}

func createAlert(tx *gorm.DB, alert *domain.Alert) error {
	model, err := mapAlertToModel(*alert)
	if err != nil {
		return err
	}
	if err := tx.Create(&model).Error; err != nil {
		return err
	}
	alert.ID = model.ID
	alert.CreatedAt = model.CreatedAt
	return nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
