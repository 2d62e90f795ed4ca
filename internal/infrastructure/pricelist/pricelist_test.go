package pricelist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discounthunter/backend/internal/domain"
)

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func newTestAdapter(t *testing.T, now time.Time) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(Config{ID: "aibe", Name: "Aibė", Path: filepath.Join("testdata", "aibe.yaml")})
	require.NoError(t, err)
	adapter.now = func() time.Time { return now }
	return adapter
}

func TestLoadLeaflet(t *testing.T) {
	leaflet, err := LoadLeaflet(filepath.Join("testdata", "aibe.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "Aibė", leaflet.Store)
	assert.Equal(t, "EUR", leaflet.Currency)
	assert.Equal(t, date(2026, time.October, 12, 0), leaflet.ValidFrom)
	assert.Equal(t, date(2026, time.October, 25, 0), leaflet.ValidTo)
	require.Len(t, leaflet.Items, 4)
	require.NotNil(t, leaflet.Items[0].OriginalPrice)
	assert.Equal(t, 1.29, *leaflet.Items[0].OriginalPrice)
	assert.Nil(t, leaflet.Items[1].OriginalPrice)

	_, err = LoadLeaflet(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

func TestParseLeaflet_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "items: [unclosed"},
		{"inverted validity", "valid_from: 2026-10-20\nvalid_to: 2026-10-10\n"},
		{"item without name", "items:\n  - price: 1.00\n"},
		{"negative price", "items:\n  - name: Duona\n    price: -1\n"},
		{"nan price", "items:\n  - name: Duona\n    price: .nan\n"},
		{"infinite price", "items:\n  - name: Duona\n    price: .inf\n"},
		{"negative infinite price", "items:\n  - name: Duona\n    price: -.inf\n"},
		{"nan original price", "items:\n  - name: Duona\n    price: 1.00\n    original_price: .nan\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLeaflet([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLeaflet_ActiveAt(t *testing.T) {
	leaflet := &Leaflet{ValidFrom: date(2026, time.October, 12, 0), ValidTo: date(2026, time.October, 25, 0)}

	assert.False(t, leaflet.ActiveAt(date(2026, time.October, 11, 23)))
	assert.True(t, leaflet.ActiveAt(date(2026, time.October, 12, 0)))
	assert.True(t, leaflet.ActiveAt(date(2026, time.October, 25, 23)), "valid_to covers the whole day")
	assert.False(t, leaflet.ActiveAt(date(2026, time.October, 26, 0)))

	open := &Leaflet{}
	assert.True(t, open.ActiveAt(time.Now()))
}

func TestMatcher_Score(t *testing.T) {
	m := NewMatcher(0, 0)

	tests := []struct {
		name     string
		query    string
		item     string
		minScore float64
		maxScore float64
	}{
		{"exact product", "pienas", "Pienas 2,5% 1 l", 100, 100},
		{"key term among other words", "kava", "Malta kava 500 g", 80, 95},
		{"typo matched fuzzily", "pienass", "Pienas 2,5% 1 l", 50, 65},
		{"unrelated", "caviar", "Sviestas 82% 200 g", 0, 0},
		{"only units", "500 g", "Malta kava 500 g", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := m.Score(tt.query, tt.item)
			assert.GreaterOrEqual(t, score, tt.minScore)
			assert.LessOrEqual(t, score, tt.maxScore)
		})
	}
}

func TestMatcher_Best(t *testing.T) {
	items := []Item{{Name: "Sviestas 82% 200 g"}, {Name: "Pienas 2,5% 1 l"}, {Name: "Pienas 3,2% 1 l"}}
	m := NewMatcher(0, 0)

	idx, _ := m.Best("pienas", items)
	assert.Equal(t, 1, idx, "ties keep the earlier item")

	idx, _ = m.Best("caviar", items)
	assert.Equal(t, -1, idx)

	idx, _ = m.Best("milk", nil)
	assert.Equal(t, -1, idx)
}

func TestFuzzyTokenMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"pienas", "pienas", true},
		{"pienas", "pienass", true},
		{"sūris", "suris", true},
		{"kava", "kavos", false},
		{"tea", "tee", false}, // too short
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, fuzzyTokenMatch(tt.a, tt.b, 1))
		})
	}
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("kava", "kava"))
	assert.Equal(t, 3, levenshteinDistance("", "alu"))
	assert.Equal(t, 1, levenshteinDistance("šokoladas", "sokoladas"))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"malta", "kava"}, tokenize("Malta kava, 500 g"))
	assert.Equal(t, []string{"pienas"}, tokenize("Pienas 2,5% 1 l"))
	assert.Nil(t, tokenize("  "))
	assert.Equal(t, []string{"suris", "dziugas"}, tokenize("Sūris DŽIUGAS 180 g"))
}

func TestAdapter_FetchQuote(t *testing.T) {
	adapter := newTestAdapter(t, date(2026, time.October, 18, 12))
	ctx := context.Background()

	assert.Equal(t, "aibe", adapter.ID())
	assert.Equal(t, "Aibė", adapter.Name())

	quote, err := adapter.FetchQuote(ctx, "kava")
	require.NoError(t, err)
	assert.Equal(t, "aibe", quote.StoreID)
	assert.Equal(t, "Aibė", quote.Store)
	assert.Equal(t, 5.99, quote.Price)
	assert.Equal(t, "EUR", quote.Currency)
	require.NotNil(t, quote.OriginalPrice)
	assert.Equal(t, 7.49, *quote.OriginalPrice)
	assert.Equal(t, "https://www.aibe.lt/leidiniai", quote.ProductURL)
	assert.NoError(t, quote.Validate())

	quote, err = adapter.FetchQuote(ctx, "Wireless Bluetooth Headphones")
	require.NoError(t, err)
	assert.Equal(t, 29.99, quote.Price)
	assert.Nil(t, quote.OriginalPrice)

	_, err = adapter.FetchQuote(ctx, "caviar")
	assert.ErrorIs(t, err, domain.ErrQuoteNotFound)
}

func TestAdapter_ExpiredLeafletIsNotFound(t *testing.T) {
	adapter := newTestAdapter(t, date(2026, time.October, 26, 9))

	_, err := adapter.FetchQuote(context.Background(), "kava")
	assert.ErrorIs(t, err, domain.ErrQuoteNotFound)
}

func TestAdapter_HonoursCanceledContext(t *testing.T) {
	adapter := newTestAdapter(t, date(2026, time.October, 18, 12))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.FetchQuote(ctx, "kava")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdapter_CurrencyOverride(t *testing.T) {
	adapter := NewAdapterFromLeaflet(Config{ID: "x", Name: "X", Currency: "PLN"}, &Leaflet{Items: []Item{{Name: "Duona", Price: 1}}})

	quote, err := adapter.FetchQuote(context.Background(), "duona")
	require.NoError(t, err)
	assert.Equal(t, "PLN", quote.Currency)
}

func TestAdapter_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items:\n  - name: Duona\n    price: 1.10\n"), 0o600))

	adapter, err := NewAdapter(Config{ID: "norfa", Name: "Norfa", Path: path})
	require.NoError(t, err)

	quote, err := adapter.FetchQuote(context.Background(), "duona")
	require.NoError(t, err)
	assert.Equal(t, 1.10, quote.Price)

	require.NoError(t, os.WriteFile(path, []byte("items:\n  - name: Duona\n    price: 0.95\n"), 0o600))
	require.NoError(t, adapter.Reload())

	quote, err = adapter.FetchQuote(context.Background(), "duona")
	require.NoError(t, err)
	assert.Equal(t, 0.95, quote.Price)

	require.NoError(t, os.WriteFile(path, []byte("items: [broken"), 0o600))
	assert.Error(t, adapter.Reload())

	quote, err = adapter.FetchQuote(context.Background(), "duona")
	require.NoError(t, err)
	assert.Equal(t, 0.95, quote.Price, "failed reload keeps the previous leaflet")
}

func TestFoldDiacritics(t *testing.T) {
	assert.Equal(t, "kava", foldDiacritics("kavą"))
	assert.Equal(t, "ausines", foldDiacritics("ausinės"))
	assert.Equal(t, "plain", foldDiacritics("plain"))
}

func TestMatcher_IgnoresDiacritics(t *testing.T) {
	m := NewMatcher(0, 0)
	items := []Item{{Name: "Sviestas 82% 200 g", Price: 2.49}, {Name: "Šokoladas juodasis", Price: 1.59}}

	idx, score := m.Best("sokoladas", items)
	assert.Equal(t, 1, idx)
	assert.GreaterOrEqual(t, score, 40.0)
}
