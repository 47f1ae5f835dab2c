package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/NasaVasa/pricewatch/internal/config"
	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// CheckCatalog validates the catalog against the configured venues and
// prints the market name each venue will be asked for, per asset.
func CheckCatalog(cfg config.Config, out io.Writer) error {
	catalog, router, _, err := buildPricing(cfg, zap.NewNop())
	if err != nil {
		return err
	}
	sources := router.Names()
	tickers := venueTickers(catalog)

	table := tablewriter.NewWriter(out)
	table.Header(lo.ToAnySlice(append([]string{"Asset", "Kind"}, sources...))...)
	write := func(asset domain.Asset, kind string) error {
		row := []string{asset.Symbol, kind}
		for _, source := range sources {
			row = append(row, tickers[source](asset.Symbol))
		}
		return table.Append(lo.ToAnySlice(row)...)
	}
	for _, asset := range catalog.Cryptocurrencies {
		if err := write(asset, "crypto"); err != nil {
			return err
		}
	}
	for _, asset := range catalog.Stablecoins {
		if err := write(asset, "stablecoin"); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Pairs: %s\n", strings.Join(catalog.PairSymbols(), ", "))
	fmt.Fprintf(out, "Primary source: %s, depeg default: %s\n", router.Primary(), strings.Join(catalog.DefaultDepegSources, ", "))
	return nil
}
