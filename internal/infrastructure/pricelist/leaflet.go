package pricelist

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Item is one product line of a printed price leaflet
type Item struct {
	Name          string   `yaml:"name"`
	Price         float64  `yaml:"price"`
	OriginalPrice *float64 `yaml:"original_price,omitempty"`
	URL           string   `yaml:"url,omitempty"`
}

// Leaflet is a store's price list for a validity period.
// Zero ValidFrom or ValidTo leaves that side open.
type Leaflet struct {
	Store     string    `yaml:"store"`
	Currency  string    `yaml:"currency"`
	ValidFrom time.Time `yaml:"valid_from"`
	ValidTo   time.Time `yaml:"valid_to"`
	Items     []Item    `yaml:"items"`
}

// LoadLeaflet reads a leaflet from a YAML file
func LoadLeaflet(path string) (*Leaflet, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from service configuration
	if err != nil {
		return nil, fmt.Errorf("read price list: %w", err)
	}
	leaflet, err := ParseLeaflet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return leaflet, nil
}

// ParseLeaflet decodes and validates a leaflet document
func ParseLeaflet(data []byte) (*Leaflet, error) {
	var leaflet Leaflet
	if err := yaml.Unmarshal(data, &leaflet); err != nil {
		return nil, fmt.Errorf("decode price list: %w", err)
	}
	if err := leaflet.validate(); err != nil {
		return nil, err
	}
	return &leaflet, nil
}

func (l *Leaflet) validate() error {
	if !l.ValidFrom.IsZero() && !l.ValidTo.IsZero() && l.ValidTo.Before(l.ValidFrom) {
		return errors.New("price list valid_to is before valid_from")
	}
	for i, item := range l.Items {
		if item.Name == "" {
			return fmt.Errorf("price list item %d has no name", i)
		}
		if !finite(item.Price) {
			return fmt.Errorf("price list item %q has a non-finite price", item.Name)
		}
		if item.Price < 0 {
			return fmt.Errorf("price list item %q has a negative price", item.Name)
		}
		if item.OriginalPrice != nil && !finite(*item.OriginalPrice) {
			return fmt.Errorf("price list item %q has a non-finite original price", item.Name)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ActiveAt reports whether the leaflet applies at t. ValidTo covers the whole day.
func (l *Leaflet) ActiveAt(t time.Time) bool {
	if !l.ValidFrom.IsZero() && t.Before(l.ValidFrom) {
		return false
	}
	if !l.ValidTo.IsZero() && !t.Before(l.ValidTo.AddDate(0, 0, 1)) {
		return false
	}
	return true
}
