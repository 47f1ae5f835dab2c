package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OutcomeKind string

const (
	OutcomePrompt    OutcomeKind = "prompt"
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is what a wizard operation tells the transport layer. A Prompt
// with a non-empty Reason means the last input was rejected.
type Outcome struct {
	Kind      OutcomeKind
	AlertKind domain.AlertKind
	Step      domain.Step
	Reason    string
	Options   []string
	Alert     *domain.Alert
}

var differentialSuggestions = []string{"0.5", "1", "2", "5"}

// Transition applies one input to state. On rejected input the returned state
// is the one passed in. On completion the returned state is zero and the
// outcome carries the finished alert.
func Transition(catalog domain.Catalog, state domain.ConversationState, input string, now time.Time) (domain.ConversationState, Outcome) {
	next := state
	input = strings.TrimSpace(input)

	switch state.Kind {
	case domain.KindPrice:
		switch state.Step {
		case domain.StepSelectSymbol:
			symbol, ok := catalog.LookupPrice(input)
			if !ok {
				return state, prompt(catalog, state, fmt.Sprintf("%q is not a supported symbol", input))
			}
			next.Symbol = symbol
			next.Step = domain.StepEnterPrice
		case domain.StepEnterPrice:
			price, reason := parsePositive(input, "price")
			if reason != "" {
				return state, prompt(catalog, state, reason)
			}
			next.TargetPrice = &price
			next.Step = domain.StepSelectCondition
		case domain.StepSelectCondition:
			condition, err := domain.ParseCondition(input)
			if err != nil {
				return state, prompt(catalog, state, "condition must be above or below")
			}
			if next.TargetPrice == nil {
				return state, prompt(catalog, state, "target price missing, start the wizard again")
			}
			next.Condition = condition
			alert := domain.NewAlert(state.SessionID, next.Symbol, domain.PriceVariant{
				TargetPrice: *next.TargetPrice,
				Condition:   condition,
			}, now)
			return domain.ConversationState{}, completed(state.Kind, alert)
		default:
			return state, prompt(catalog, state, "unexpected wizard step")
		}

	case domain.KindDepeg:
		switch state.Step {
		case domain.StepSelectSymbol:
			symbol, ok := catalog.LookupStablecoin(input)
			if !ok {
				return state, prompt(catalog, state, fmt.Sprintf("%q is not a supported stablecoin", input))
			}
			peg := decimal.NewFromInt(1)
			next.Symbol = symbol
			next.TargetPrice = &peg
			next.Step = domain.StepEnterDifferential
		case domain.StepEnterDifferential:
			differential, reason := parsePositive(input, "differential")
			if reason != "" {
				return state, prompt(catalog, state, reason)
			}
			next.Differential = &differential
			if next.TargetPrice == nil {
				peg := decimal.NewFromInt(1)
				next.TargetPrice = &peg
			}
			sources := next.Sources
			if len(sources) == 0 {
				sources = catalog.DefaultDepegSources
			}
			alert := domain.NewAlert(state.SessionID, next.Symbol, domain.DepegVariant{
				TargetPrice:     *next.TargetPrice,
				DifferentialPct: differential,
				Sources:         domain.NormalizeSources(sources),
			}, now)
			return domain.ConversationState{}, completed(state.Kind, alert)
		default:
			return state, prompt(catalog, state, "unexpected wizard step")
		}

	case domain.KindPairDepeg:
		switch state.Step {
		case domain.StepSelectTokenPair:
			pair, ok := catalog.LookupPair(input)
			if !ok {
				return state, prompt(catalog, state, fmt.Sprintf("%q is not a supported pair", input))
			}
			next.TokenA = pair.TokenA
			next.TokenB = pair.TokenB
			next.Step = domain.StepEnterRatio
		case domain.StepEnterRatio:
			ratio, reason := parsePositive(input, "ratio")
			if reason != "" {
				return state, prompt(catalog, state, reason)
			}
			next.ExpectedRatio = &ratio
			next.Step = domain.StepEnterDifferential
		case domain.StepEnterDifferential:
			differential, reason := parsePositive(input, "differential")
			if reason != "" {
				return state, prompt(catalog, state, reason)
			}
			if next.ExpectedRatio == nil {
				return state, prompt(catalog, state, "expected ratio missing, start the wizard again")
			}
			next.Differential = &differential
			alert := domain.NewAlert(state.SessionID, domain.PairSymbol(next.TokenA, next.TokenB), domain.PairDepegVariant{
				TokenA:          next.TokenA,
				TokenB:          next.TokenB,
				ExpectedRatio:   *next.ExpectedRatio,
				DifferentialPct: differential,
			}, now)
			return domain.ConversationState{}, completed(state.Kind, alert)
		default:
			return state, prompt(catalog, state, "unexpected wizard step")
		}

	default:
		return state, Outcome{Kind: OutcomePrompt, Step: state.Step, Reason: "unknown wizard"}
	}

	next.UpdatedAt = now
	return next, prompt(catalog, next, "")
}

func prompt(catalog domain.Catalog, state domain.ConversationState, reason string) Outcome {
	outcome := Outcome{Kind: OutcomePrompt, AlertKind: state.Kind, Step: state.Step, Reason: reason}
	switch state.Step {
	case domain.StepSelectSymbol:
		if state.Kind == domain.KindDepeg {
			outcome.Options = catalog.StablecoinSymbols()
		} else {
			outcome.Options = catalog.PriceSymbols()
		}
	case domain.StepSelectCondition:
		outcome.Options = []string{string(domain.ConditionAbove), string(domain.ConditionBelow)}
	case domain.StepSelectTokenPair:
		outcome.Options = catalog.PairSymbols()
	case domain.StepEnterRatio:
		if pair, ok := catalog.LookupPair(domain.PairSymbol(state.TokenA, state.TokenB)); ok && pair.ExpectedRatio.IsPositive() {
			outcome.Options = []string{pair.ExpectedRatio.String()}
		}
	case domain.StepEnterDifferential:
		outcome.Options = differentialSuggestions
	}
	return outcome
}

func completed(kind domain.AlertKind, alert domain.Alert) Outcome {
	return Outcome{Kind: OutcomeCompleted, AlertKind: kind, Alert: &alert}
}

func parsePositive(input, field string) (decimal.Decimal, string) {
	cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(input, "$"), "%"))
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Sprintf("%s must be a number, for example 45000.50", field)
	}
	if !value.IsPositive() {
		return decimal.Zero, fmt.Sprintf("%s must be greater than zero", field)
	}
	return value, ""
}

// Wizard runs the alert creation dialogs, persisting progress after every
// accepted input. Calls for one session must be serialized by the caller.
type Wizard struct {
	store   domain.AlertStore
	catalog domain.Catalog
	logger  *zap.Logger
	now     func() time.Time
}

func NewWizard(store domain.AlertStore, catalog domain.Catalog, logger *zap.Logger) *Wizard {
	return &Wizard{store: store, catalog: catalog, logger: logger, now: time.Now}
}

type StartOption func(state *domain.ConversationState)

func WithSources(sources ...string) StartOption {
	return func(state *domain.ConversationState) {
		state.Sources = domain.NormalizeSources(sources)
	}
}

func (w *Wizard) Start(ctx context.Context, sessionID int64, kind domain.AlertKind, opts ...StartOption) (Outcome, error) {
	state := domain.ConversationState{
		SessionID: sessionID,
		Kind:      kind,
		Step:      domain.FirstStep(kind),
		UpdatedAt: w.now(),
	}
	for _, opt := range opts {
		opt(&state)
	}
	if kind != domain.KindDepeg {
		state.Sources = nil
	}
	for _, source := range state.Sources {
		if !w.catalog.HasSource(source) {
			return Outcome{}, fmt.Errorf("%w: %s", domain.ErrUnknownSource, source)
		}
	}

	if err := w.store.SaveConversationState(ctx, &state); err != nil {
		w.logger.Warn("wizard start failed", zap.Int64("session_id", sessionID), zap.String("kind", string(kind)), zap.Error(err))
		return Outcome{}, persistenceError("save conversation state", err)
	}
	w.logger.Info("wizard started", zap.Int64("session_id", sessionID), zap.String("kind", string(kind)))
	return prompt(w.catalog, state, ""), nil
}

func (w *Wizard) Advance(ctx context.Context, sessionID int64, input string) (Outcome, error) {
	state, err := w.store.GetConversationState(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Outcome{}, domain.ErrWizardNotStarted
		}
		return Outcome{}, persistenceError("load conversation state", err)
	}

	next, outcome := Transition(w.catalog, *state, input, w.now())
	switch outcome.Kind {
	case OutcomeCompleted:
		if err := w.store.CompleteConversation(ctx, sessionID, outcome.Alert); err != nil {
			w.logger.Warn("wizard completion failed", zap.Int64("session_id", sessionID), zap.Error(err))
			return Outcome{}, persistenceError("complete conversation", err)
		}
		w.logger.Info(
			"alert created",
			zap.Int64("session_id", sessionID),
			zap.Uint("alert_id", outcome.Alert.ID),
			zap.String("kind", string(outcome.AlertKind)),
			zap.String("symbol", outcome.Alert.Symbol),
		)
		return outcome, nil
	case OutcomePrompt:
		if outcome.Reason != "" {
			w.logger.Debug("wizard input rejected", zap.Int64("session_id", sessionID), zap.String("step", string(state.Step)), zap.String("reason", outcome.Reason))
			return outcome, nil
		}
		if err := w.store.SaveConversationState(ctx, &next); err != nil {
			w.logger.Warn("wizard transition failed", zap.Int64("session_id", sessionID), zap.Error(err))
			return Outcome{}, persistenceError("save conversation state", err)
		}
		return outcome, nil
	default:
		return outcome, nil
	}
}

func (w *Wizard) Cancel(ctx context.Context, sessionID int64) (Outcome, error) {
	if err := w.store.ClearConversationState(ctx, sessionID); err != nil {
		return Outcome{}, persistenceError("clear conversation state", err)
	}
	w.logger.Info("wizard cancelled", zap.Int64("session_id", sessionID))
	return Outcome{Kind: OutcomeCancelled}, nil
}

func persistenceError(op string, err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
