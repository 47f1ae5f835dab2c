package prices

import (
	"strings"

	"github.com/NasaVasa/pricewatch/internal/domain"
)

type TickerFunc func(symbol string) string

// CatalogTickers prefers the catalog's per-asset ticker for source and falls
// back to fallback for symbols without one.
func CatalogTickers(catalog domain.Catalog, source string, fallback TickerFunc) TickerFunc {
	return func(symbol string) string {
		if ticker, ok := catalog.Ticker(symbol, source); ok && ticker != "" {
			return ticker
		}
		return fallback(symbol)
	}
}

func QuotedIn(quote, separator string) TickerFunc {
	return func(symbol string) string {
		return strings.ToUpper(strings.TrimSpace(symbol)) + separator + quote
	}
}
