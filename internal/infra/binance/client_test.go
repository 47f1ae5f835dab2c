package binance_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/infra/binance"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_Quote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		switch r.URL.Query().Get("symbol") {
		case "BTCUSDT":
			_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"45123.45000000"}`))
		case "NOPEUSDT":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"code":-1000,"msg":"boom"}`))
		}
	}))
	defer server.Close()

	client := binance.NewClient(server.URL, time.Second, nil, zap.NewNop())
	assert.Equal(t, "binance", client.Name())

	sample, err := client.Quote(context.Background(), "btc")
	require.NoError(t, err)
	assert.True(t, sample.Price.Equal(decimal.RequireFromString("45123.45")), sample.Price.String())
	assert.Equal(t, "binance", sample.Source)

	_, err = client.Quote(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrUnsupportedSymbol)

	_, err = client.Quote(context.Background(), "eth")
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestClient_QuoteHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := binance.NewClient(server.URL, 5*time.Second, nil, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Quote(ctx, "BTC")
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}
