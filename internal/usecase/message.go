package usecase

import (
	"fmt"
	"strings"

	"github.com/NasaVasa/pricewatch/internal/domain"
)

func RenderTriggerMessage(alert domain.Alert, samples []domain.PriceSample) string {
	switch v := alert.Variant.(type) {
	case domain.PriceVariant:
		price := "n/a"
		if sample, ok := findSample(samples, alert.Symbol); ok {
			price = sample.Price.String()
		}
		return fmt.Sprintf(
			"Alert #%d triggered: %s is %s %s (price %s)",
			alert.ID, alert.Symbol, v.Condition, v.TargetPrice.String(), price,
		)
	case domain.DepegVariant:
		deviation, _ := DepegDeviation(v, alert.Symbol, samples)
		quotes := make([]string, 0, len(samples))
		for _, sample := range samples {
			quotes = append(quotes, fmt.Sprintf("%s %s", sample.Source, sample.Price.String()))
		}
		return fmt.Sprintf(
			"Depeg alert #%d triggered: %s is %s%% away from %s (threshold %s%%; %s)",
			alert.ID, alert.Symbol, deviation.StringFixed(2), v.TargetPrice.String(),
			v.DifferentialPct.String(), strings.Join(quotes, ", "),
		)
	case domain.PairDepegVariant:
		deviation, ratio, _ := PairDeviation(v, samples)
		return fmt.Sprintf(
			"Pair depeg alert #%d triggered: %s ratio %s deviates %s%% from %s (threshold %s%%)",
			alert.ID, domain.PairSymbol(v.TokenA, v.TokenB), ratio.StringFixed(4),
			deviation.StringFixed(2), v.ExpectedRatio.String(), v.DifferentialPct.String(),
		)
	default:
		return fmt.Sprintf("Alert #%d triggered: %s", alert.ID, alert.Symbol)
	}
}

func DescribeAlert(alert domain.Alert) string {
	status := "active"
	if !alert.Active {
		status = "triggered"
		if alert.TriggeredAt != nil {
			status += " " + alert.TriggeredAt.UTC().Format("2006-01-02 15:04")
		}
	}

	switch v := alert.Variant.(type) {
	case domain.PriceVariant:
		return fmt.Sprintf("#%d %s %s %s [%s]", alert.ID, alert.Symbol, v.Condition, v.TargetPrice.String(), status)
	case domain.DepegVariant:
		return fmt.Sprintf(
			"#%d depeg %s ±%s%% from %s via %s [%s]",
			alert.ID, alert.Symbol, v.DifferentialPct.String(), v.TargetPrice.String(), strings.Join(v.Sources, ","), status,
		)
	case domain.PairDepegVariant:
		return fmt.Sprintf(
			"#%d pair %s ratio %s ±%s%% [%s]",
			alert.ID, domain.PairSymbol(v.TokenA, v.TokenB), v.ExpectedRatio.String(), v.DifferentialPct.String(), status,
		)
	default:
		return fmt.Sprintf("#%d %s [%s]", alert.ID, alert.Symbol, status)
	}
}
