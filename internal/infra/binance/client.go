package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/infra/prices"
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const codeInvalidSymbol = -1121

const (
	SourceName       = "binance"
	StreamSourceName = "binance-stream"
)

// DefaultTicker quotes symbols against USDT, e.g. BTC -> BTCUSDT.
var DefaultTicker = prices.QuotedIn("USDT", "")

type Client struct {
	name    string
	api     *binance.Client
	tickers prices.TickerFunc
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, tickers prices.TickerFunc, logger *zap.Logger) *Client {
	api := binance.NewClient("", "")
	if baseURL != "" {
		api.BaseURL = strings.TrimRight(baseURL, "/")
	}
	api.HTTPClient = &http.Client{Timeout: timeout}
	if tickers == nil {
		tickers = DefaultTicker
	}
	return &Client{name: SourceName, api: api, tickers: tickers, logger: logger}
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Quote(ctx context.Context, symbol string) (domain.PriceSample, error) {
	ticker := c.tickers(symbol)

	start := time.Now()
	c.logger.Debug("binance request start", zap.String("symbol", symbol), zap.String("ticker", ticker))
	quotes, err := c.api.NewListPricesService().Symbol(ticker).Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeInvalidSymbol {
			return domain.PriceSample{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedSymbol, ticker)
		}
		c.logger.Warn("binance request failed", zap.String("ticker", ticker), zap.Error(err))
		return domain.PriceSample{}, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	c.logger.Debug("binance request complete", zap.String("ticker", ticker), zap.Duration("duration", time.Since(start)))

	for _, quote := range quotes {
		if quote == nil || !strings.EqualFold(quote.Symbol, ticker) {
			continue
		}
		price, err := decimal.NewFromString(quote.Price)
		if err != nil {
			return domain.PriceSample{}, fmt.Errorf("%w: bad price %q for %s", domain.ErrSourceUnavailable, quote.Price, ticker)
		}
		return domain.PriceSample{Symbol: symbol, Source: c.name, Price: price, ObservedAt: time.Now()}, nil
	}
	return domain.PriceSample{}, fmt.Errorf("%w: no quote for %s", domain.ErrUnsupportedSymbol, ticker)
}
