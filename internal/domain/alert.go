package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type AlertKind string

const (
	KindPrice     AlertKind = "price"
	KindDepeg     AlertKind = "depeg"
	KindPairDepeg AlertKind = "pair_depeg"
)

func ParseAlertKind(input string) (AlertKind, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "price", "alert":
		return KindPrice, nil
	case "depeg":
		return KindDepeg, nil
	case "pair_depeg", "pairdepeg", "pair":
		return KindPairDepeg, nil
	default:
		return "", fmt.Errorf("unknown alert kind %q", input)
	}
}

type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

func ParseCondition(input string) (Condition, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "above", ">":
		return ConditionAbove, nil
	case "below", "<":
		return ConditionBelow, nil
	default:
		return "", fmt.Errorf("unknown condition %q", input)
	}
}

type Variant interface {
	Kind() AlertKind
	isVariant()
}

type PriceVariant struct {
	TargetPrice decimal.Decimal
	Condition   Condition
}

type DepegVariant struct {
	TargetPrice     decimal.Decimal
	DifferentialPct decimal.Decimal
	Sources         []string
}

type PairDepegVariant struct {
	TokenA          string
	TokenB          string
	ExpectedRatio   decimal.Decimal
	DifferentialPct decimal.Decimal
}

func (PriceVariant) Kind() AlertKind     { return KindPrice }
func (DepegVariant) Kind() AlertKind     { return KindDepeg }
func (PairDepegVariant) Kind() AlertKind { return KindPairDepeg }

func (PriceVariant) isVariant()     {}
func (DepegVariant) isVariant()     {}
func (PairDepegVariant) isVariant() {}

// Alert is a price watch owned by a session. Only Active and TriggeredAt
// change after creation, and Active is false iff TriggeredAt is set.
type Alert struct {
	ID          uint
	Owner       int64
	Symbol      string
	Variant     Variant
	CreatedAt   time.Time
	TriggeredAt *time.Time
	Active      bool
}

func NewAlert(owner int64, symbol string, variant Variant, now time.Time) Alert {
	return Alert{
		Owner:     owner,
		Symbol:    symbol,
		Variant:   variant,
		CreatedAt: now,
		Active:    true,
	}
}

// Requirements lists the quotes the alert needs in one evaluation pass.
// An empty Source means the primary venue.
func (a Alert) Requirements() []PriceKey {
	switch v := a.Variant.(type) {
	case PriceVariant:
		return []PriceKey{{Symbol: a.Symbol}}
	case DepegVariant:
		keys := make([]PriceKey, 0, len(v.Sources))
		for _, source := range v.Sources {
			keys = append(keys, PriceKey{Symbol: a.Symbol, Source: source})
		}
		return lo.Uniq(keys)
	case PairDepegVariant:
		return lo.Uniq([]PriceKey{{Symbol: v.TokenA}, {Symbol: v.TokenB}})
	default:
		return nil
	}
}

func PairSymbol(tokenA, tokenB string) string {
	return tokenA + "/" + tokenB
}

func NormalizeSources(sources []string) []string {
	normalized := make([]string, 0, len(sources))
	for _, source := range sources {
		source = strings.ToLower(strings.TrimSpace(source))
		if source == "" {
			continue
		}
		normalized = append(normalized, source)
	}
	return lo.Uniq(normalized)
}
