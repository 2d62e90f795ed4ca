package pricelist

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Token weights for scoring
const (
	weightKeyTerm     = 3.0 // product nouns (milk, pienas, coffee)
	weightDefault     = 1.0 // everything else
	fuzzyWeightFactor = 0.8 // fuzzy matches get 80% of normal weight
)

// Scoring bonuses
const (
	substringMatchBonus = 10.0
	defaultMinScore     = 40.0
	defaultEditDistance = 1
)

// keyTerms are product nouns in English and Lithuanian (diacritics folded) that dominate a match
var keyTerms = map[string]bool{
	"milk": true, "pienas": true, "bread": true, "duona": true, "butter": true, "sviestas": true,
	"cheese": true, "suris": true, "eggs": true, "kiausiniai": true, "coffee": true, "kava": true,
	"tea": true, "arbata": true, "yogurt": true, "jogurtas": true, "chicken": true, "vistiena": true,
	"pork": true, "kiauliena": true, "beef": true, "jautiena": true, "rice": true, "ryziai": true,
	"pasta": true, "makaronai": true, "sugar": true, "cukrus": true, "flour": true, "miltai": true,
	"apples": true, "obuoliai": true, "bananas": true, "bananai": true, "juice": true, "sultys": true,
	"water": true, "vanduo": true, "chocolate": true, "sokoladas": true, "beer": true, "alus": true,
	"headphones": true, "ausines": true,
}

// stopWords are dropped before matching: connectives, units and packaging
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true, "with": true, "for": true,
	"ir": true, "su": true, "be": true,
	"g": true, "kg": true, "ml": true, "l": true, "vnt": true, "pak": true, "oz": true, "lb": true,
	"pack": true, "bottle": true, "butelis": true, "dezute": true,
}

// Matcher scores leaflet item names against a query
type Matcher struct {
	minScore     float64
	editDistance int
}

// NewMatcher creates a matcher; zero values select the defaults
func NewMatcher(minScore float64, editDistance int) *Matcher {
	if minScore <= 0 {
		minScore = defaultMinScore
	}
	if editDistance <= 0 {
		editDistance = defaultEditDistance
	}
	return &Matcher{minScore: minScore, editDistance: editDistance}
}

// Best returns the index of the highest scoring item at or above the threshold, or -1.
// Ties keep the earlier item.
func (m *Matcher) Best(query string, items []Item) (int, float64) {
	best, bestScore := -1, -1.0
	for i, item := range items {
		score := m.Score(query, item.Name)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < m.minScore {
		return -1, bestScore
	}
	return best, bestScore
}

// Score computes a 0-100 similarity between query and an item name from:
//   - query coverage: weighted share of query tokens found in the name (60%)
//   - name coverage: share of name tokens found in the query (20%)
//   - Jaccard overlap (20%)
//   - a bonus when one string contains the other
func (m *Matcher) Score(query, name string) float64 {
	queryTokens := tokenize(query)
	nameTokens := tokenize(name)
	if len(queryTokens) == 0 || len(nameTokens) == 0 {
		return 0
	}

	var matchedWeight, totalWeight float64
	matched := 0
	for _, qt := range queryTokens {
		w := tokenWeight(qt)
		totalWeight += w
		switch {
		case contains(nameTokens, qt):
			matchedWeight += w
			matched++
		case m.fuzzyContains(nameTokens, qt):
			matchedWeight += w * fuzzyWeightFactor
			matched++
		}
	}
	queryCoverage := matchedWeight / totalWeight

	nameMatched, _ := findIntersection(nameTokens, queryTokens)
	nameCoverage := float64(nameMatched) / float64(len(nameTokens))

	jaccard := min(1, float64(matched)/float64(findUnion(queryTokens, nameTokens)))

	score := (queryCoverage*0.60 + nameCoverage*0.20 + jaccard*0.20) * 100

	queryLower := foldDiacritics(strings.ToLower(strings.TrimSpace(query)))
	nameLower := foldDiacritics(strings.ToLower(name))
	if utf8.RuneCountInString(queryLower) > 3 && strings.Contains(nameLower, queryLower) {
		score += substringMatchBonus
	}

	if score > 100 {
		score = 100
	}
	return score
}

func (m *Matcher) fuzzyContains(tokens []string, token string) bool {
	for _, t := range tokens {
		if fuzzyTokenMatch(t, token, m.editDistance) {
			return true
		}
	}
	return false
}

func tokenWeight(token string) float64 {
	if keyTerms[token] {
		return weightKeyTerm
	}
	return weightDefault
}

// tokenize splits a string into normalized lowercase tokens with diacritics folded.
// Drops punctuation, stop words, single characters and pure numbers.
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(foldDiacritics(strings.ToLower(s)), " ")

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(word) <= 1 || stopWords[word] || isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// foldDiacritics maps "sūris" to "suris" so leaflet and OCR spellings meet
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func contains(tokens []string, token string) bool {
	for _, t := range tokens {
		if t == token {
			return true
		}
	}
	return false
}

// fuzzyTokenMatch checks if two tokens are similar within the edit distance threshold.
// Only tokens of 4+ runes are compared to avoid false positives.
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}

	n1, n2 := utf8.RuneCountInString(token1), utf8.RuneCountInString(token2)
	if n1 < 4 || n2 < 4 {
		return false
	}

	lenDiff := n1 - n2
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}

	return levenshteinDistance(token1, token2) <= threshold
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// two rows instead of a full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// findIntersection returns the count of common tokens and the list of matched tokens
func findIntersection(tokens1, tokens2 []string) (int, []string) {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}

	var matched []string
	seen := make(map[string]bool)
	for _, t := range tokens2 {
		if set[t] && !seen[t] {
			matched = append(matched, t)
			seen[t] = true
		}
	}

	return len(matched), matched
}

// findUnion returns the count of unique tokens across both sets
func findUnion(tokens1, tokens2 []string) int {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}
	for _, t := range tokens2 {
		set[t] = true
	}
	return len(set)
}
