package scrapingbee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = "https://www.barbora.lt/paieska?q=headphones"

func TestParseListing_ProductCard(t *testing.T) {
	page := `<html><body>
	<nav>Delivery from 1.99 €</nav>
	<div class="product-card">
	  <a href="/produktai/wireless-headphones-123"><img src="/img/1.jpg"></a>
	  <h3 class="product-title">  Wireless   Bluetooth Headphones </h3>
	  <div class="product-price">
	    <del class="old-price">35,99 €</del>
	    <span>24,99&nbsp;€</span>
	  </div>
	  <span class="badge discount">-31%</span>
	</div>
	<div class="product-card">
	  <h3 class="product-title">Cheaper but second</h3>
	  <div class="price">9.99 €</div>
	</div>
	</body></html>`

	listing, err := ParseListing([]byte(page), searchPage)
	require.NoError(t, err)

	assert.Equal(t, "Wireless Bluetooth Headphones", listing.Title)
	assert.Equal(t, 24.99, listing.Price)
	require.NotNil(t, listing.OriginalPrice)
	assert.Equal(t, 35.99, *listing.OriginalPrice)
	require.NotNil(t, listing.DiscountPercent)
	assert.Equal(t, 31.0, *listing.DiscountPercent)
	assert.Equal(t, "https://www.barbora.lt/produktai/wireless-headphones-123", listing.URL)
}

func TestParseListing_SkipsCardsWithoutPrice(t *testing.T) {
	page := `<ul>
	  <li class="product-item"><h2>Sold out item</h2><span class="note">coming soon</span></li>
	  <li class="product-item"><h2>Oat milk 1L</h2><span class="price">2.19</span><a href="https://www.lidl.lt/p/oat">view</a></li>
	</ul>`

	listing, err := ParseListing([]byte(page), "https://www.lidl.lt/c/search?q=oat")
	require.NoError(t, err)

	assert.Equal(t, "Oat milk 1L", listing.Title)
	assert.Equal(t, 2.19, listing.Price)
	assert.Nil(t, listing.OriginalPrice)
	assert.Nil(t, listing.DiscountPercent)
	assert.Equal(t, "https://www.lidl.lt/p/oat", listing.URL)
}

func TestParseListing_DataTestAttributes(t *testing.T) {
	page := `<article class="b-product">
	  <span data-test="product-title">Butter 82%</span>
	  <span data-test="product-price">3,49 €</span>
	</article>`

	listing, err := ParseListing([]byte(page), searchPage)
	require.NoError(t, err)
	assert.Equal(t, "Butter 82%", listing.Title)
	assert.Equal(t, 3.49, listing.Price)
	assert.Equal(t, searchPage, listing.URL, "no link falls back to the search page")
}

func TestParseListing_FallsBackToPageText(t *testing.T) {
	page := `<html><head><script>var shipping = "0.00";</script></head>
	<body><p>Kaina: € 4,59</p></body></html>`

	listing, err := ParseListing([]byte(page), searchPage)
	require.NoError(t, err)
	assert.Equal(t, 4.59, listing.Price)
	assert.Empty(t, listing.Title)
	assert.Equal(t, searchPage, listing.URL)
}

func TestParseListing_NoPrice(t *testing.T) {
	page := `<html><body><p>Nieko nerasta</p></body></html>`

	_, err := ParseListing([]byte(page), searchPage)
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		text   string
		want   float64
		wantOK bool
	}{
		{"€ 12.50", 12.50, true},
		{"12,5 €", 0, false},
		{"only 3,99 today", 3.99, true},
		{"0.00", 0, false},
		{"no digits", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := extractPrice(pagePriceRegex, tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, searchPage, resolveURL(searchPage, ""))
	assert.Equal(t, "https://www.barbora.lt/p/1", resolveURL(searchPage, "/p/1"))
	assert.Equal(t, "https://cdn.example/p", resolveURL(searchPage, "https://cdn.example/p"))
}
