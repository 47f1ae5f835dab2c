package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/infra/prices"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type miniTicker struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	Close     decimal.Decimal `json:"c"`
}

type cachedQuote struct {
	price decimal.Decimal
	at    time.Time
}

// Stream keeps the latest miniTicker close for every Binance market and
// serves quotes from memory. Quotes older than maxAge are unavailable.
type Stream struct {
	url     string
	dialer  *websocket.Dialer
	maxAge  time.Duration
	tickers prices.TickerFunc
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.RWMutex
	quotes map[string]cachedQuote
}

func NewStream(url string, maxAge time.Duration, tickers prices.TickerFunc, logger *zap.Logger) *Stream {
	if tickers == nil {
		tickers = DefaultTicker
	}
	return &Stream{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		maxAge:  maxAge,
		tickers: tickers,
		logger:  logger,
		now:     time.Now,
		quotes:  make(map[string]cachedQuote),
	}
}

func (s *Stream) Name() string {
	return StreamSourceName
}

func (s *Stream) Quote(_ context.Context, symbol string) (domain.PriceSample, error) {
	ticker := strings.ToUpper(s.tickers(symbol))

	s.mu.RLock()
	quote, ok := s.quotes[ticker]
	s.mu.RUnlock()

	if !ok {
		return domain.PriceSample{}, fmt.Errorf("%w: no streamed quote for %s", domain.ErrSourceUnavailable, ticker)
	}
	if s.maxAge > 0 && s.now().Sub(quote.at) > s.maxAge {
		return domain.PriceSample{}, fmt.Errorf("%w: streamed quote for %s is stale", domain.ErrSourceUnavailable, ticker)
	}
	return domain.PriceSample{Symbol: symbol, Source: s.Name(), Price: quote.price, ObservedAt: quote.at}, nil
}

// Run keeps the stream connected until ctx is done, reconnecting with
// exponential backoff.
func (s *Stream) Run(ctx context.Context) {
	delays := &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true}
	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			s.logger.Info("ws stream stopped")
			return
		}
		if connected {
			delays.Reset()
		}
		wait := delays.Duration()
		s.logger.Warn("ws stream disconnected", zap.Error(err), zap.Duration("retry_in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Stream) session(ctx context.Context) (bool, error) {
	s.logger.Info("ws connect start", zap.String("url", s.url))
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.logger.Error("ws connect failed", zap.String("url", s.url), zap.Error(err))
		return false, err
	}
	s.logger.Info("ws connect success", zap.String("url", s.url))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()

	for {
		if s.maxAge > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.maxAge))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		tickers, err := decodeMiniTickers(data)
		if err != nil {
			s.logger.Debug("ws message ignored", zap.Error(err))
			continue
		}
		s.store(tickers)
	}
}

func (s *Stream) store(tickers []miniTicker) {
	received := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ticker := range tickers {
		if ticker.Symbol == "" || !ticker.Close.IsPositive() {
			continue
		}
		at := received
		if ticker.EventTime > 0 {
			at = time.UnixMilli(ticker.EventTime)
		}
		s.quotes[strings.ToUpper(ticker.Symbol)] = cachedQuote{price: ticker.Close, at: at}
	}
}

func decodeMiniTickers(data []byte) ([]miniTicker, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty message")
	}

	if trimmed[0] == '[' {
		var payloads []miniTicker
		if err := json.Unmarshal(trimmed, &payloads); err != nil {
			return nil, fmt.Errorf("decode ws message array: %w", err)
		}
		return payloads, nil
	}

	var payload miniTicker
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("decode ws message: %w", err)
	}
	if payload.EventType != "24hrMiniTicker" {
		return nil, fmt.Errorf("unexpected event %q", payload.EventType)
	}
	return []miniTicker{payload}, nil
}
