package domain

import (
	"fmt"
	"math"
	"time"
)

// DefaultCurrency is used when an adapter does not report one
const DefaultCurrency = "EUR"

// Quote is a single store's price observation for a query
type Quote struct {
	ID              string    `json:"id"`
	StoreID         string    `json:"storeId"`
	Store           string    `json:"store"`
	Price           float64   `json:"price"`
	Currency        string    `json:"currency,omitempty"`
	OriginalPrice   *float64  `json:"originalPrice,omitempty"`
	DiscountPercent *float64  `json:"discountPercent,omitempty"`
	ProductURL      string    `json:"productUrl,omitempty"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// Normalize fills defaults and drops optional fields that break the quote invariants:
// an original price below the price, or a discount outside 0-100.
func (q Quote) Normalize() Quote {
	if q.ID == "" {
		q.ID = q.StoreID
	}
	if q.Currency == "" {
		q.Currency = DefaultCurrency
	}
	if q.OriginalPrice != nil && (!finite(*q.OriginalPrice) || *q.OriginalPrice < q.Price) {
		q.OriginalPrice = nil
	}
	if q.DiscountPercent != nil && (!finite(*q.DiscountPercent) || *q.DiscountPercent < 0 || *q.DiscountPercent > 100) {
		q.DiscountPercent = nil
	}
	if q.LastUpdated.IsZero() {
		q.LastUpdated = time.Now().UTC()
	}
	return q
}

// Validate checks the invariants a quote must satisfy before it is stored
func (q Quote) Validate() error {
	if q.StoreID == "" {
		return fmt.Errorf("%w: missing store id", ErrInvalidQuote)
	}
	if !finite(q.Price) {
		return fmt.Errorf("%w: price %v is not finite", ErrInvalidQuote, q.Price)
	}
	if q.Price < 0 {
		return fmt.Errorf("%w: negative price %.2f", ErrInvalidQuote, q.Price)
	}
	if q.OriginalPrice != nil && !finite(*q.OriginalPrice) {
		return fmt.Errorf("%w: original price %v is not finite", ErrInvalidQuote, *q.OriginalPrice)
	}
	if q.OriginalPrice != nil && *q.OriginalPrice < q.Price {
		return fmt.Errorf("%w: original price %.2f below price %.2f", ErrInvalidQuote, *q.OriginalPrice, q.Price)
	}
	if q.DiscountPercent != nil && (!finite(*q.DiscountPercent) || *q.DiscountPercent < 0 || *q.DiscountPercent > 100) {
		return fmt.Errorf("%w: discount %.2f out of range", ErrInvalidQuote, *q.DiscountPercent)
	}
	return nil
}

// finite rejects NaN and both infinities, which compare false against every bound
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// RankedQuote is a Quote annotated by the ranker. Derived on every read, never stored.
type RankedQuote struct {
	Quote
	Savings      *float64 `json:"savings,omitempty"`
	DiscountText string   `json:"discountText,omitempty"`
	IsBest       bool     `json:"isBest"`
}

// PriceStats summarises a quote set after outlier removal
type PriceStats struct {
	Count  int      `json:"count"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	Median *float64 `json:"median,omitempty"`
}

// Float64 returns a pointer to v, for optional quote fields
func Float64(v float64) *float64 { return &v }
