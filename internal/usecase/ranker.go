package usecase

import (
	"fmt"
	"math"

	"github.com/discounthunter/backend/internal/domain"
)

// Rank annotates quotes with savings, discount text and the single best deal.
// Order is preserved. The best deal is the strict minimum price; on ties the
// earliest quote wins, so ranking the same arrival order always picks the same quote.
func Rank(quotes []domain.Quote) []domain.RankedQuote {
	ranked := make([]domain.RankedQuote, len(quotes))
	best := -1

	for i, q := range quotes {
		ranked[i] = domain.RankedQuote{Quote: q}

		if q.OriginalPrice != nil {
			savings := roundCents(*q.OriginalPrice - q.Price)
			ranked[i].Savings = &savings
		}
		ranked[i].DiscountText = discountText(q)

		if best < 0 || q.Price < quotes[best].Price {
			best = i
		}
	}

	if best >= 0 {
		ranked[best].IsBest = true
	}
	return ranked
}

// discountText prefers the store's own percentage and otherwise derives it
// from the original price, rounded to the nearest whole percent.
func discountText(q domain.Quote) string {
	var percent float64
	switch {
	case q.DiscountPercent != nil:
		percent = math.Round(*q.DiscountPercent)
	case q.OriginalPrice != nil && *q.OriginalPrice > 0:
		percent = math.Round((*q.OriginalPrice - q.Price) / *q.OriginalPrice * 100)
	default:
		return ""
	}
	if percent <= 0 {
		return ""
	}
	return fmt.Sprintf("%d%% OFF", int(percent))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
