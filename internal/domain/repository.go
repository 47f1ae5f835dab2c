package domain

import (
	"context"
	"time"
)

// AlertStore persists alerts and wizard progress. GetConversationState
// returns ErrNotFound when the session is idle.
type AlertStore interface {
	GetActiveAlerts(ctx context.Context) ([]Alert, error)
	SaveAlert(ctx context.Context, alert *Alert) error
	MarkTriggered(ctx context.Context, alertID uint, at time.Time) error
	GetConversationState(ctx context.Context, sessionID int64) (*ConversationState, error)
	SaveConversationState(ctx context.Context, state *ConversationState) error
	ClearConversationState(ctx context.Context, sessionID int64) error
	// CompleteConversation saves alert and clears the session state atomically.
	CompleteConversation(ctx context.Context, sessionID int64, alert *Alert) error
}

type AlertRepository interface {
	ListByOwner(ctx context.Context, owner int64) ([]Alert, error)
	Delete(ctx context.Context, owner int64, alertID uint) error
}

type SessionSweeper interface {
	SweepConversationStates(ctx context.Context, before time.Time) (int64, error)
}

type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (PriceSample, error)
	GetPriceFromSource(ctx context.Context, symbol, source string) (PriceSample, error)
}

type NotificationSink interface {
	SendAlert(ctx context.Context, owner int64, message string) error
	VerifyReachable(ctx context.Context) error
}
