package scrapingbee

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/discounthunter/backend/internal/domain"
)

// StoreConfig describes one retailer's search page
type StoreConfig struct {
	ID        string
	Name      string
	SearchURL string // contains a {query} placeholder
	Currency  string
	RenderJS  bool
	WaitMS    int
}

// Adapter is a domain.StoreAdapter that scrapes a store's search results page
type Adapter struct {
	store  StoreConfig
	client *Client
}

// NewAdapter creates a store adapter backed by client
func NewAdapter(store StoreConfig, client *Client) *Adapter {
	if store.Currency == "" {
		store.Currency = domain.DefaultCurrency
	}
	return &Adapter{store: store, client: client}
}

func (a *Adapter) ID() string   { return a.store.ID }
func (a *Adapter) Name() string { return a.store.Name }

// SearchURL returns the store page searched for query
func (a *Adapter) SearchURL(query string) string {
	return strings.ReplaceAll(a.store.SearchURL, "{query}", url.QueryEscape(query))
}

// FetchQuote scrapes the first product listed for query
func (a *Adapter) FetchQuote(ctx context.Context, query string) (*domain.Quote, error) {
	target := a.SearchURL(query)

	page, err := a.client.Fetch(ctx, target, FetchOptions{RenderJS: a.store.RenderJS, WaitMS: a.store.WaitMS})
	if err != nil {
		return nil, err
	}

	listing, err := ParseListing(page, target)
	if errors.Is(err, ErrNoPrice) {
		log.Printf("[SCRAPINGBEE] %s: no price for %q", a.store.Name, query)
		return nil, domain.ErrQuoteNotFound
	}
	if err != nil {
		return nil, domain.NewAdapterError(a.store.Name, domain.AdapterParse, err)
	}

	log.Printf("[SCRAPINGBEE] %s: %q -> %q at %.2f", a.store.Name, query, listing.Title, listing.Price)

	return &domain.Quote{
		ID:              a.store.ID,
		StoreID:         a.store.ID,
		Store:           a.store.Name,
		Price:           listing.Price,
		Currency:        a.store.Currency,
		OriginalPrice:   listing.OriginalPrice,
		DiscountPercent: listing.DiscountPercent,
		ProductURL:      listing.URL,
		LastUpdated:     time.Now().UTC(),
	}, nil
}
