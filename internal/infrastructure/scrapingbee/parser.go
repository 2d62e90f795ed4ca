package scrapingbee

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoPrice is returned when a page has no recognisable price
var ErrNoPrice = errors.New("no price on page")

var (
	pagePriceRegex    = regexp.MustCompile(`(?:€|\b)\s*(\d+[.,]\d{2})`)
	elementPriceRegex = regexp.MustCompile(`(\d+[.,]\d{2})`)
	discountRegex     = regexp.MustCompile(`(\d{1,3})\s*%`)
)

// Listing is the first product found on a store's search results page
type Listing struct {
	Title           string
	Price           float64
	OriginalPrice   *float64
	DiscountPercent *float64
	URL             string
}

// ParseListing extracts the first product card with both a title and a price.
// Pages without product cards fall back to the first price-like token in the text.
func ParseListing(page []byte, pageURL string) (*Listing, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var found *Listing
	walk(doc, func(n *html.Node) bool {
		if !isProductCard(n) {
			return true
		}
		if listing := parseCard(n, pageURL); listing != nil {
			found = listing
			return false
		}
		return true
	})
	if found != nil {
		return found, nil
	}

	if price, ok := extractPrice(pagePriceRegex, textContent(doc)); ok {
		return &Listing{Price: price, URL: pageURL}, nil
	}
	return nil, ErrNoPrice
}

// walk visits n and its descendants depth-first until visit returns false
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func isProductCard(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Div, atom.Article, atom.Li:
		return classContains(n, "product")
	}
	return false
}

func parseCard(card *html.Node, pageURL string) *Listing {
	var (
		title, href          string
		price, originalPrice *float64
		discount             *float64
	)

	walk(card, func(n *html.Node) bool {
		if n == card || n.Type != html.ElementNode {
			return true
		}

		if isOldPrice(n) {
			if originalPrice == nil {
				if v, ok := extractPrice(elementPriceRegex, textContent(n)); ok {
					originalPrice = &v
				}
			}
			return true
		}
		if insideOldPrice(n, card) {
			return true
		}

		switch {
		case title == "" && isTitle(n):
			title = strings.Join(strings.Fields(textContent(n)), " ")
		case price == nil && isPrice(n):
			if v, ok := extractPrice(elementPriceRegex, currentPriceText(n)); ok {
				price = &v
			}
		case discount == nil && (classContains(n, "discount") || classContains(n, "badge")):
			if m := discountRegex.FindStringSubmatch(textContent(n)); m != nil {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 && v <= 100 {
					discount = &v
				}
			}
		}

		if href == "" && n.DataAtom == atom.A {
			href = attr(n, "href")
		}
		return true
	})

	if title == "" || price == nil {
		return nil
	}

	return &Listing{
		Title:           title,
		Price:           *price,
		OriginalPrice:   originalPrice,
		DiscountPercent: discount,
		URL:             resolveURL(pageURL, href),
	}
}

func isTitle(n *html.Node) bool {
	if strings.Contains(attr(n, "data-test"), "title") || strings.Contains(attr(n, "data-testid"), "title") {
		return true
	}
	if classContains(n, "title") {
		return true
	}
	return n.DataAtom == atom.H2 || n.DataAtom == atom.H3
}

func isPrice(n *html.Node) bool {
	return classContains(n, "price") || strings.Contains(attr(n, "data-test"), "price")
}

func isOldPrice(n *html.Node) bool {
	if n.DataAtom == atom.Del || n.DataAtom == atom.S {
		return true
	}
	for _, marker := range []string{"old-price", "price-old", "price--old", "original-price", "was-price", "crossed"} {
		if classContains(n, marker) {
			return true
		}
	}
	return false
}

func insideOldPrice(n, card *html.Node) bool {
	for p := n.Parent; p != nil && p != card; p = p.Parent {
		if isOldPrice(p) {
			return true
		}
	}
	return false
}

func classContains(n *html.Node, substr string) bool {
	return strings.Contains(strings.ToLower(attr(n, "class")), substr)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent concatenates the text below n, skipping scripts and styles
func textContent(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb, isScript)
	return strings.ReplaceAll(sb.String(), "\u00a0", " ")
}

// currentPriceText is the text of a price element without any struck-through price inside it
func currentPriceText(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb, func(c *html.Node) bool {
		return isScript(c) || (c != n && isOldPrice(c))
	})
	return strings.ReplaceAll(sb.String(), "\u00a0", " ")
}

func collectText(n *html.Node, sb *strings.Builder, skip func(*html.Node) bool) {
	if n.Type == html.ElementNode && skip(n) {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb, skip)
	}
}

func isScript(n *html.Node) bool {
	return n.DataAtom == atom.Script || n.DataAtom == atom.Style
}

func extractPrice(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return math.Round(v*100) / 100, true
}

func resolveURL(pageURL, href string) string {
	if href == "" {
		return pageURL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return pageURL
	}
	return base.ResolveReference(ref).String()
}
