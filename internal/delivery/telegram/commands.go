package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/usecase"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"
)

const HelpText = `Commands:
/start - welcome message
/help - show this help
/alert - create a price alert
/depeg [sources...] - create a stablecoin depeg alert
/pairdepeg - create a token pair ratio alert
/cancel - abandon the alert being created
/alerts - list your alerts
/delete <alert_id> - delete an alert
/symbols - list supported assets

Notes:
- Price alerts fire once when the price strictly crosses the target.
- Depeg alerts fire when any source deviates from 1.0 by more than the given percent.
- Sources default to the configured list, e.g. /depeg binance coinbase.
`

const (
	callbackPrefix  = "w:"
	buttonsPerRow   = 3
	maxCallbackData = 64
)

var ErrInvalidArguments = errors.New("invalid arguments")

func ParseAlertID(args string) (uint, error) {
	idStr := strings.TrimPrefix(strings.TrimSpace(args), "#")
	if idStr == "" {
		return 0, ErrInvalidArguments
	}
	value, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || value == 0 {
		return 0, ErrInvalidArguments
	}
	return uint(value), nil
}

// ParseSources splits /depeg arguments on spaces and commas.
func ParseSources(args string) []string {
	fields := strings.FieldsFunc(args, func(r rune) bool { return r == ',' || r == ' ' })
	return domain.NormalizeSources(fields)
}

func FormatOutcome(outcome usecase.Outcome) string {
	switch outcome.Kind {
	case usecase.OutcomeCompleted:
		if outcome.Alert == nil {
			return "Alert created."
		}
		return "Alert created: " + usecase.DescribeAlert(*outcome.Alert)
	case usecase.OutcomeCancelled:
		return "Alert creation cancelled."
	}

	var builder strings.Builder
	if outcome.Reason != "" {
		builder.WriteString("Invalid input: " + outcome.Reason + "\n")
	}
	builder.WriteString(stepPrompt(outcome))
	return builder.String()
}

func stepPrompt(outcome usecase.Outcome) string {
	switch outcome.Step {
	case domain.StepSelectSymbol:
		if outcome.AlertKind == domain.KindDepeg {
			return "Choose a stablecoin:"
		}
		return "Choose a cryptocurrency:"
	case domain.StepEnterPrice:
		return "Enter the target price, e.g. 45000.50:"
	case domain.StepSelectCondition:
		return "Alert when the price goes above or below the target?"
	case domain.StepEnterDifferential:
		return "Enter the allowed deviation in percent, e.g. 1:"
	case domain.StepSelectTokenPair:
		return "Choose a token pair:"
	case domain.StepEnterRatio:
		return "Enter the expected price ratio between the tokens:"
	default:
		return "Send /cancel and start again."
	}
}

// Keyboard lays options out as inline buttons. Options that do not fit in
// callback data are left for the user to type.
func Keyboard(options []string) *tgbotapi.InlineKeyboardMarkup {
	buttons := lo.FilterMap(options, func(option string, _ int) (tgbotapi.InlineKeyboardButton, bool) {
		data := callbackPrefix + option
		return tgbotapi.NewInlineKeyboardButtonData(option, data), len(data) <= maxCallbackData
	})
	if len(buttons) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(lo.Chunk(buttons, buttonsPerRow)...)
	return &markup
}

func ParseCallback(data string) (string, bool) {
	if !strings.HasPrefix(data, callbackPrefix) {
		return "", false
	}
	return strings.TrimPrefix(data, callbackPrefix), true
}

func formatSymbols(catalog domain.Catalog) string {
	return fmt.Sprintf(
		"Cryptocurrencies: %s\nStablecoins: %s\nPairs: %s\nSources: %s (depeg default: %s)",
		strings.Join(catalog.PriceSymbols(), ", "),
		strings.Join(catalog.StablecoinSymbols(), ", "),
		strings.Join(catalog.PairSymbols(), ", "),
		strings.Join(catalog.Sources, ", "),
		strings.Join(catalog.DefaultDepegSources, ", "),
	)
}

func formatAlerts(alerts []domain.Alert) string {
	var builder strings.Builder
	builder.WriteString("Your alerts:\n")
	for _, alert := range alerts {
		builder.WriteString(usecase.DescribeAlert(alert) + "\n")
	}
	return builder.String()
}
