package domain

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type Asset struct {
	Symbol  string
	Name    string
	Tickers map[string]string
}

type Pair struct {
	TokenA        string
	TokenB        string
	ExpectedRatio decimal.Decimal
}

func (p Pair) String() string {
	return PairSymbol(p.TokenA, p.TokenB)
}

// Catalog is the set of assets and venues the service accepts. It is loaded
// once at start and passed to the components that need it.
type Catalog struct {
	Cryptocurrencies    []Asset
	Stablecoins         []Asset
	Pairs               []Pair
	Sources             []string
	DefaultDepegSources []string
}

func (c Catalog) PriceSymbols() []string {
	return lo.Map(c.Cryptocurrencies, func(a Asset, _ int) string { return a.Symbol })
}

func (c Catalog) StablecoinSymbols() []string {
	return lo.Map(c.Stablecoins, func(a Asset, _ int) string { return a.Symbol })
}

func (c Catalog) PairSymbols() []string {
	return lo.Map(c.Pairs, func(p Pair, _ int) string { return p.String() })
}

func (c Catalog) LookupPrice(input string) (string, bool) {
	return lookupSymbol(c.Cryptocurrencies, input)
}

func (c Catalog) LookupStablecoin(input string) (string, bool) {
	return lookupSymbol(c.Stablecoins, input)
}

// LookupPair accepts "A/B", "A-B", "A_B" or "A B".
func (c Catalog) LookupPair(input string) (Pair, bool) {
	normalized := strings.NewReplacer("-", "/", "_", "/", " ", "/").Replace(strings.TrimSpace(input))
	for _, pair := range c.Pairs {
		if strings.EqualFold(pair.String(), normalized) {
			return pair, true
		}
	}
	return Pair{}, false
}

func (c Catalog) HasSource(name string) bool {
	return lo.Contains(c.Sources, strings.ToLower(strings.TrimSpace(name)))
}

func (c Catalog) Ticker(symbol, source string) (string, bool) {
	for _, asset := range append(append([]Asset{}, c.Cryptocurrencies...), c.Stablecoins...) {
		if !strings.EqualFold(asset.Symbol, symbol) {
			continue
		}
		ticker, ok := asset.Tickers[source]
		return ticker, ok
	}
	return "", false
}

func (c Catalog) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no price sources configured", ErrInvalidConfig)
	}
	if len(c.DefaultDepegSources) == 0 {
		return fmt.Errorf("%w: default depeg sources are empty", ErrInvalidConfig)
	}
	for _, source := range c.DefaultDepegSources {
		if !c.HasSource(source) {
			return fmt.Errorf("%w: default depeg source %q is not a configured source", ErrInvalidConfig, source)
		}
	}
	for _, pair := range c.Pairs {
		if pair.TokenA == "" || pair.TokenB == "" {
			return fmt.Errorf("%w: pair with empty token", ErrInvalidConfig)
		}
	}
	return nil
}

func lookupSymbol(assets []Asset, input string) (string, bool) {
	input = strings.TrimSpace(input)
	for _, asset := range assets {
		if strings.EqualFold(asset.Symbol, input) {
			return asset.Symbol, true
		}
	}
	return "", false
}
