package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/infra/prices"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const SourceName = "coinbase"

// DefaultTicker quotes symbols in USD, e.g. BTC -> BTC-USD.
var DefaultTicker = prices.QuotedIn("USD", "-")

type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	tickers prices.TickerFunc
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, ratePerSec float64, tickers prices.TickerFunc, logger *zap.Logger) *Client {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	if tickers == nil {
		tickers = DefaultTicker
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		tickers: tickers,
		logger:  logger,
	}
}

func (c *Client) Name() string {
	return SourceName
}

func (c *Client) Quote(ctx context.Context, symbol string) (domain.PriceSample, error) {
	pair := c.tickers(symbol)
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.PriceSample{}, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}

	endpoint := fmt.Sprintf("%s/v2/prices/%s/spot", c.baseURL, url.PathEscape(pair))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.PriceSample{}, err
	}

	start := time.Now()
	c.logger.Debug("coinbase request start", zap.String("pair", pair), zap.String("url", endpoint))
	response, err := c.client.Do(request)
	if err != nil {
		c.logger.Warn("coinbase request failed", zap.String("pair", pair), zap.Error(err))
		return domain.PriceSample{}, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	defer response.Body.Close()

	c.logger.Debug(
		"coinbase request complete",
		zap.String("pair", pair),
		zap.Int("status", response.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if response.StatusCode == http.StatusNotFound {
		return domain.PriceSample{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedSymbol, pair)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return domain.PriceSample{}, fmt.Errorf("%w: coinbase status %d", domain.ErrSourceUnavailable, response.StatusCode)
	}

	var payload spotPriceResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return domain.PriceSample{}, fmt.Errorf("%w: decode spot price: %w", domain.ErrSourceUnavailable, err)
	}
	if !payload.Data.Amount.Valid {
		return domain.PriceSample{}, fmt.Errorf("%w: no amount for %s", domain.ErrSourceUnavailable, pair)
	}

	return domain.PriceSample{Symbol: symbol, Source: c.Name(), Price: payload.Data.Amount.Decimal, ObservedAt: time.Now()}, nil
}
