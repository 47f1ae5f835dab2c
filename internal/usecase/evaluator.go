package usecase

import (
	"strings"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ShouldTrigger decides whether alert fires given the samples gathered for it
// in the current tick. Alerts that cannot be evaluated never fire.
func ShouldTrigger(alert domain.Alert, samples []domain.PriceSample) bool {
	switch v := alert.Variant.(type) {
	case domain.PriceVariant:
		sample, ok := findSample(samples, alert.Symbol)
		if !ok {
			return false
		}
		return priceCrossed(v.Condition, sample.Price, v.TargetPrice)
	case domain.DepegVariant:
		deviation, ok := DepegDeviation(v, alert.Symbol, samples)
		return ok && deviation.GreaterThan(v.DifferentialPct)
	case domain.PairDepegVariant:
		deviation, _, ok := PairDeviation(v, samples)
		return ok && deviation.GreaterThan(v.DifferentialPct)
	default:
		return false
	}
}

func priceCrossed(condition domain.Condition, price, target decimal.Decimal) bool {
	switch condition {
	case domain.ConditionAbove:
		return price.GreaterThan(target)
	case domain.ConditionBelow:
		return price.LessThan(target)
	default:
		return false
	}
}

// DepegDeviation is the largest distance from the peg over the sources that
// answered, as a percentage of the peg. ok is false when no source answered.
func DepegDeviation(v domain.DepegVariant, symbol string, samples []domain.PriceSample) (decimal.Decimal, bool) {
	if !v.TargetPrice.IsPositive() {
		return decimal.Zero, false
	}
	var (
		worst decimal.Decimal
		seen  bool
	)
	for _, sample := range samples {
		if !strings.EqualFold(sample.Symbol, symbol) {
			continue
		}
		distance := sample.Price.Sub(v.TargetPrice).Abs()
		if !seen || distance.GreaterThan(worst) {
			worst = distance
			seen = true
		}
	}
	if !seen {
		return decimal.Zero, false
	}
	return worst.Div(v.TargetPrice).Mul(hundred), true
}

func PairDeviation(v domain.PairDepegVariant, samples []domain.PriceSample) (deviation, ratio decimal.Decimal, ok bool) {
	a, okA := findSample(samples, v.TokenA)
	b, okB := findSample(samples, v.TokenB)
	if !okA || !okB || !b.Price.IsPositive() || !v.ExpectedRatio.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}
	ratio = a.Price.Div(b.Price)
	deviation = ratio.Sub(v.ExpectedRatio).Abs().Div(v.ExpectedRatio).Mul(hundred)
	return deviation, ratio, true
}

func findSample(samples []domain.PriceSample, symbol string) (domain.PriceSample, bool) {
	for _, sample := range samples {
		if strings.EqualFold(sample.Symbol, symbol) {
			return sample, true
		}
	}
	return domain.PriceSample{}, false
}
