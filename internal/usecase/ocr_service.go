package usecase

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/discounthunter/backend/internal/domain"
)

// DefaultFallbackProductName is returned when no OCR provider is configured
const DefaultFallbackProductName = "Wireless Bluetooth Headphones"

const minProductLineLength = 3

var (
	// Matches size/quantity tokens like "500 g", "1,5 l", "330ml", "12 oz"
	sizeQuantityPattern = regexp.MustCompile(`(?i)\b\d+([.,]\d+)?\s*(fl\s*)?(oz|lbs?|ml|l|kg|g|vnt|pcs)\b`)

	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// labelNoise marks label lines that are never the product name
var labelNoise = []string{"barcode", "price", "kaina", "€", "$", "weight", "svoris", "www", ".com", ".lt"}

// OCRService turns a product photo into a query for a scrape job
type OCRService struct {
	client         domain.OCRClient
	fallbackName   string
	maxQueryLength int
}

// NewOCRService creates an OCR service. A nil client always answers with the fallback name.
func NewOCRService(client domain.OCRClient, fallbackName string, maxQueryLength int) *OCRService {
	if fallbackName == "" {
		fallbackName = DefaultFallbackProductName
	}
	if maxQueryLength <= 0 {
		maxQueryLength = defaultMaxQueryLength
	}
	return &OCRService{client: client, fallbackName: fallbackName, maxQueryLength: maxQueryLength}
}

// ExtractProductName recognises the image and picks the line most likely to be the product name
func (s *OCRService) ExtractProductName(ctx context.Context, filename string, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrInvalidImage)
	}

	if s.client == nil {
		log.Printf("[OCR] No provider configured, using fallback name")
		return s.fallbackName, nil
	}

	text, err := s.client.Recognize(ctx, filename, image)
	if err != nil {
		log.Printf("[OCR] ERROR: %v", err)
		return "", err
	}

	name := extractProductName(text)
	if name == "" {
		log.Printf("[OCR] No usable line in recognised text, using fallback name")
		return s.fallbackName, nil
	}
	return truncateRunes(name, s.maxQueryLength), nil
}

// extractProductName returns the first label line that reads like a product name:
// at least three characters, contains letters, no price/barcode/web noise.
func extractProductName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < minProductLineLength || !hasLetter(line) || isLabelNoise(line) {
			continue
		}

		cleaned := sizeQuantityPattern.ReplaceAllString(line, " ")
		cleaned = strings.TrimSpace(multiSpacePattern.ReplaceAllString(cleaned, " "))
		if utf8.RuneCountInString(cleaned) < minProductLineLength || !hasLetter(cleaned) {
			continue
		}
		return cleaned
	}
	return ""
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func isLabelNoise(line string) bool {
	lower := strings.ToLower(line)
	for _, noise := range labelNoise {
		if strings.Contains(lower, noise) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}
