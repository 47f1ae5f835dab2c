package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Step string

const (
	StepSelectSymbol      Step = "select_symbol"
	StepEnterPrice        Step = "enter_price"
	StepSelectCondition   Step = "select_condition"
	StepEnterDifferential Step = "enter_differential"
	StepSelectTokenPair   Step = "select_token_pair"
	StepEnterRatio        Step = "enter_ratio"
)

// ConversationState is the progress of one wizard run for a session. Fields
// are filled as steps are confirmed and are never cleared by later steps.
type ConversationState struct {
	SessionID     int64
	Kind          AlertKind
	Step          Step
	Symbol        string
	TargetPrice   *decimal.Decimal
	Condition     Condition
	Differential  *decimal.Decimal
	Sources       []string
	TokenA        string
	TokenB        string
	ExpectedRatio *decimal.Decimal
	UpdatedAt     time.Time
}

func FirstStep(kind AlertKind) Step {
	switch kind {
	case KindPairDepeg:
		return StepSelectTokenPair
	default:
		return StepSelectSymbol
	}
}
