package db

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
)

// variantParams is the JSON shape of the params column. Which fields are
// set depends on the alert kind.
type variantParams struct {
	TargetPrice     *decimal.Decimal `json:"target_price,omitempty"`
	Condition       string           `json:"condition,omitempty"`
	DifferentialPct *decimal.Decimal `json:"differential_pct,omitempty"`
	Sources         []string         `json:"sources,omitempty"`
	TokenA          string           `json:"token_a,omitempty"`
	TokenB          string           `json:"token_b,omitempty"`
	ExpectedRatio   *decimal.Decimal `json:"expected_ratio,omitempty"`
}

func encodeVariant(variant domain.Variant) (string, string, error) {
	var params variantParams
	switch v := variant.(type) {
	case domain.PriceVariant:
		params = variantParams{TargetPrice: &v.TargetPrice, Condition: string(v.Condition)}
	case domain.DepegVariant:
		params = variantParams{TargetPrice: &v.TargetPrice, DifferentialPct: &v.DifferentialPct, Sources: v.Sources}
	case domain.PairDepegVariant:
		params = variantParams{TokenA: v.TokenA, TokenB: v.TokenB, ExpectedRatio: &v.ExpectedRatio, DifferentialPct: &v.DifferentialPct}
	default:
		return "", "", fmt.Errorf("unsupported alert variant %T", variant)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "", "", err
	}
	return string(variant.Kind()), string(raw), nil
}

func decodeVariant(kind, raw string) (domain.Variant, error) {
	var params variantParams
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("decode %s params: %w", kind, err)
	}

	alertKind, err := domain.ParseAlertKind(kind)
	if err != nil {
		return nil, err
	}
	switch alertKind {
	case domain.KindPrice:
		condition, err := domain.ParseCondition(params.Condition)
		if err != nil || params.TargetPrice == nil {
			return nil, fmt.Errorf("incomplete price params %q", raw)
		}
		return domain.PriceVariant{TargetPrice: *params.TargetPrice, Condition: condition}, nil
	case domain.KindDepeg:
		if params.TargetPrice == nil || params.DifferentialPct == nil {
			return nil, fmt.Errorf("incomplete depeg params %q", raw)
		}
		return domain.DepegVariant{TargetPrice: *params.TargetPrice, DifferentialPct: *params.DifferentialPct, Sources: params.Sources}, nil
	default:
		if params.ExpectedRatio == nil || params.DifferentialPct == nil || params.TokenA == "" || params.TokenB == "" {
			return nil, fmt.Errorf("incomplete pair params %q", raw)
		}
		return domain.PairDepegVariant{
			TokenA:          params.TokenA,
			TokenB:          params.TokenB,
			ExpectedRatio:   *params.ExpectedRatio,
			DifferentialPct: *params.DifferentialPct,
		}, nil
	}
}

func mapAlertToModel(alert domain.Alert) (alertModel, error) {
	kind, params, err := encodeVariant(alert.Variant)
	if err != nil {
		return alertModel{}, err
	}
	return alertModel{
		ID:          alert.ID,
		Owner:       alert.Owner,
		Symbol:      alert.Symbol,
		Kind:        kind,
		Params:      params,
		Active:      alert.Active,
		TriggeredAt: alert.TriggeredAt,
		CreatedAt:   alert.CreatedAt,
	}, nil
}

func mapAlertToDomain(model alertModel) (domain.Alert, error) {
	variant, err := decodeVariant(model.Kind, model.Params)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("alert %d: %w", model.ID, err)
	}
	return domain.Alert{
		ID:          model.ID,
		Owner:       model.Owner,
		Symbol:      model.Symbol,
		Variant:     variant,
		CreatedAt:   model.CreatedAt,
		TriggeredAt: model.TriggeredAt,
		Active:      model.Active,
	}, nil
}

func mapStateToModel(state domain.ConversationState) conversationModel {
	return conversationModel{
		SessionID:     state.SessionID,
		Kind:          string(state.Kind),
		Step:          string(state.Step),
		Symbol:        state.Symbol,
		TargetPrice:   decimalString(state.TargetPrice),
		Condition:     string(state.Condition),
		Differential:  decimalString(state.Differential),
		Sources:       strings.Join(state.Sources, ","),
		TokenA:        state.TokenA,
		TokenB:        state.TokenB,
		ExpectedRatio: decimalString(state.ExpectedRatio),
		TouchedAt:     state.UpdatedAt.UTC(),
	}
}

func mapStateToDomain(model conversationModel) (domain.ConversationState, error) {
	state := domain.ConversationState{
		SessionID: model.SessionID,
		Kind:      domain.AlertKind(model.Kind),
		Step:      domain.Step(model.Step),
		Symbol:    model.Symbol,
		Condition: domain.Condition(model.Condition),
		TokenA:    model.TokenA,
		TokenB:    model.TokenB,
		UpdatedAt: model.TouchedAt,
	}
	if model.Sources != "" {
		state.Sources = strings.Split(model.Sources, ",")
	}

	var err error
	if state.TargetPrice, err = parseDecimal(model.TargetPrice); err != nil {
		return domain.ConversationState{}, err
	}
	if state.Differential, err = parseDecimal(model.Differential); err != nil {
		return domain.ConversationState{}, err
	}
	if state.ExpectedRatio, err = parseDecimal(model.ExpectedRatio); err != nil {
		return domain.ConversationState{}, err
	}
	return state, nil
}

func decimalString(value *decimal.Decimal) *string {
	if value == nil {
		return nil
	}
	s := value.String()
	return &s
}

func parseDecimal(value *string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(*value)
	if err != nil {
		return nil, fmt.Errorf("decode conversation decimal %q: %w", *value, err)
	}
	return &parsed, nil
}
