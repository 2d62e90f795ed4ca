package pricelist

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/discounthunter/backend/internal/domain"
)

// Config describes a price-list backed store
type Config struct {
	ID       string
	Name     string
	Path     string // YAML leaflet file
	Currency string // overrides the leaflet's currency when set
	MinScore float64
}

// Adapter is a domain.StoreAdapter answering from a store's printed leaflet
type Adapter struct {
	id       string
	name     string
	path     string
	currency string
	matcher  *Matcher
	now      func() time.Time

	mu      sync.RWMutex
	leaflet *Leaflet
}

// NewAdapter loads the leaflet at config.Path
func NewAdapter(config Config) (*Adapter, error) {
	leaflet, err := LoadLeaflet(config.Path)
	if err != nil {
		return nil, err
	}
	log.Printf("[PRICELIST] %s: loaded %d items from %s", config.Name, len(leaflet.Items), config.Path)
	return newAdapter(config, leaflet), nil
}

// NewAdapterFromLeaflet builds an adapter around an already parsed leaflet
func NewAdapterFromLeaflet(config Config, leaflet *Leaflet) *Adapter {
	return newAdapter(config, leaflet)
}

func newAdapter(config Config, leaflet *Leaflet) *Adapter {
	currency := config.Currency
	if currency == "" {
		currency = leaflet.Currency
	}
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return &Adapter{
		id:       config.ID,
		name:     config.Name,
		path:     config.Path,
		currency: currency,
		matcher:  NewMatcher(config.MinScore, 0),
		now:      func() time.Time { return time.Now().UTC() },
		leaflet:  leaflet,
	}
}

func (a *Adapter) ID() string   { return a.id }
func (a *Adapter) Name() string { return a.name }

// Reload re-reads the leaflet file; the previous leaflet stays in use on error
func (a *Adapter) Reload() error {
	leaflet, err := LoadLeaflet(a.path)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.leaflet = leaflet
	a.mu.Unlock()
	log.Printf("[PRICELIST] %s: reloaded %d items", a.name, len(leaflet.Items))
	return nil
}

// FetchQuote matches query against the current leaflet. An expired leaflet has no quotes.
func (a *Adapter) FetchQuote(ctx context.Context, query string) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	leaflet := a.leaflet
	a.mu.RUnlock()

	now := a.now()
	if !leaflet.ActiveAt(now) {
		log.Printf("[PRICELIST] %s: leaflet not valid on %s", a.name, now.Format(time.DateOnly))
		return nil, domain.ErrQuoteNotFound
	}

	idx, score := a.matcher.Best(query, leaflet.Items)
	if idx < 0 {
		return nil, domain.ErrQuoteNotFound
	}
	item := leaflet.Items[idx]
	log.Printf("[PRICELIST] %s: %q -> %q (score %.1f)", a.name, query, item.Name, score)

	quote := &domain.Quote{
		ID:          a.id,
		StoreID:     a.id,
		Store:       a.name,
		Price:       item.Price,
		Currency:    a.currency,
		ProductURL:  item.URL,
		LastUpdated: now,
	}
	if item.OriginalPrice != nil && *item.OriginalPrice > item.Price {
		original := *item.OriginalPrice
		quote.OriginalPrice = &original
	}
	return quote, nil
}
