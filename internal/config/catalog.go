package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Cryptocurrencies    []assetEntry `yaml:"cryptocurrencies"`
	Stablecoins         []assetEntry `yaml:"stablecoins"`
	SyntheticPairs      []pairEntry  `yaml:"synthetic_pairs"`
	DefaultDepegSources []string     `yaml:"default_depeg_sources"`
}

type assetEntry struct {
	Symbol      string            `yaml:"symbol"`
	Name        string            `yaml:"name"`
	CoingeckoID string            `yaml:"coingecko_id"`
	TargetPrice string            `yaml:"target_price"`
	Tickers     map[string]string `yaml:"tickers"`
}

type pairEntry struct {
	Token1        string `yaml:"token1"`
	Token2        string `yaml:"token2"`
	ExpectedRatio string `yaml:"expected_ratio"`
}

// LoadCatalog reads the asset catalog from a YAML file. Venue names are not
// part of the file; callers fill Catalog.Sources and call Validate.
func LoadCatalog(path string) (domain.Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: read catalog: %w", domain.ErrInvalidConfig, err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (domain.Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: parse catalog: %w", domain.ErrInvalidConfig, err)
	}
	if len(file.Cryptocurrencies) == 0 && len(file.Stablecoins) == 0 && len(file.SyntheticPairs) == 0 {
		return domain.Catalog{}, fmt.Errorf("%w: catalog is empty", domain.ErrInvalidConfig)
	}

	catalog := domain.Catalog{DefaultDepegSources: domain.NormalizeSources(file.DefaultDepegSources)}
	for _, entry := range file.Cryptocurrencies {
		asset, err := entry.toDomain()
		if err != nil {
			return domain.Catalog{}, err
		}
		catalog.Cryptocurrencies = append(catalog.Cryptocurrencies, asset)
	}
	for _, entry := range file.Stablecoins {
		asset, err := entry.toDomain()
		if err != nil {
			return domain.Catalog{}, err
		}
		if entry.TargetPrice != "" {
			target, err := decimal.NewFromString(entry.TargetPrice)
			if err != nil || !target.Equal(decimal.NewFromInt(1)) {
				return domain.Catalog{}, fmt.Errorf("%w: stablecoin %s must target 1.0", domain.ErrInvalidConfig, entry.Symbol)
			}
		}
		catalog.Stablecoins = append(catalog.Stablecoins, asset)
	}
	for _, entry := range file.SyntheticPairs {
		pair, err := entry.toDomain()
		if err != nil {
			return domain.Catalog{}, err
		}
		catalog.Pairs = append(catalog.Pairs, pair)
	}
	return catalog, nil
}

func (e assetEntry) toDomain() (domain.Asset, error) {
	symbol := strings.TrimSpace(e.Symbol)
	if symbol == "" {
		return domain.Asset{}, fmt.Errorf("%w: asset without symbol", domain.ErrInvalidConfig)
	}
	tickers := make(map[string]string, len(e.Tickers))
	for source, ticker := range e.Tickers {
		tickers[strings.ToLower(strings.TrimSpace(source))] = strings.TrimSpace(ticker)
	}
	return domain.Asset{Symbol: symbol, Name: e.Name, Tickers: tickers}, nil
}

func (e pairEntry) toDomain() (domain.Pair, error) {
	a, b := strings.TrimSpace(e.Token1), strings.TrimSpace(e.Token2)
	if a == "" || b == "" {
		return domain.Pair{}, fmt.Errorf("%w: synthetic pair with empty token", domain.ErrInvalidConfig)
	}
	ratio := decimal.NewFromInt(1)
	if e.ExpectedRatio != "" {
		parsed, err := decimal.NewFromString(e.ExpectedRatio)
		if err != nil || !parsed.IsPositive() {
			return domain.Pair{}, fmt.Errorf("%w: pair %s/%s has invalid expected_ratio %q", domain.ErrInvalidConfig, a, b, e.ExpectedRatio)
		}
		ratio = parsed
	}
	return domain.Pair{TokenA: a, TokenB: b, ExpectedRatio: ratio}, nil
}
