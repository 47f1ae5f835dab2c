package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceKey struct {
	Symbol string
	Source string
}

type PriceSample struct {
	Symbol     string
	Source     string
	Price      decimal.Decimal
	ObservedAt time.Time
}
