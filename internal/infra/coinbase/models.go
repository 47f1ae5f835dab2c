package coinbase

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

type spotPriceResponse struct {
	Data struct {
		Base     string          `json:"base"`
		Currency string          `json:"currency"`
		Amount   NullableDecimal `json:"amount"`
	} `json:"data"`
	Errors []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"errors"`
}

// NullableDecimal accepts a JSON number, a quoted number or null.
type NullableDecimal struct {
	Decimal decimal.Decimal
	Valid   bool
}

func (n *NullableDecimal) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		n.Valid = false
		return nil
	}
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) == 0 {
		n.Valid = false
		return nil
	}
	if trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		trimmed = strings.Trim(trimmed, "\"")
	}
	dec, err := decimal.NewFromString(trimmed)
	if err != nil {
		n.Valid = false
		return err
	}
	n.Decimal = dec
	n.Valid = true
	return nil
}
