// Package query interprets free-text generation requests. It is the
// single parsing component behind the core's Target and DateRange
// inputs; front-ends never parse text themselves.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rohanswami293875/Entsoe-Generation/internal/entsoe"
	"github.com/rohanswami293875/Entsoe-Generation/internal/pipeline"
)

// Parse errors.
var (
	ErrMissingDates = errors.New("query must contain two YYYY-MM-DD dates")
	ErrNoCountry    = errors.New("query does not name a catalog country")
)

// UnknownCountryError carries closest-name suggestions for display. The
// suggestions are advisory only; resolution never auto-picks one.
type UnknownCountryError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownCountryError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown country %q", e.Name)
	}
	return fmt.Sprintf("unknown country %q (did you mean %s?)",
		e.Name, strings.Join(e.Suggestions, ", "))
}

func (e *UnknownCountryError) Unwrap() error { return entsoe.ErrUnknownCountry }

// Request is a fully resolved generation request.
type Request struct {
	Country string             `json:"country"`
	Targets []pipeline.Target  `json:"targets"`
	Range   pipeline.DateRange `json:"range"`
}

var dateRe = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

// Parse interprets text as a generation request: a catalog country name
// plus two YYYY-MM-DD dates (start day first). The country expands to
// every bidding zone plus the aggregate total.
func Parse(text string) (Request, error) {
	r, err := ParseRange(text)
	if err != nil {
		return Request{}, err
	}

	country, err := matchCountry(text)
	if err != nil {
		return Request{}, err
	}

	targets, err := entsoe.ResolveTargets(country, nil, true)
	if err != nil {
		return Request{}, err
	}

	return Request{Country: country, Targets: targets, Range: r}, nil
}

// ParseRange extracts the date range from text: the first YYYY-MM-DD
// token is the start day and the second the end day, inclusive. Later
// date tokens are ignored.
func ParseRange(text string) (pipeline.DateRange, error) {
	matches := dateRe.FindAllString(text, 3)
	if len(matches) < 2 {
		return pipeline.DateRange{}, ErrMissingDates
	}

	start, err := time.Parse("2006-01-02", matches[0])
	if err != nil {
		return pipeline.DateRange{}, fmt.Errorf("invalid start date %q: %w", matches[0], err)
	}
	end, err := time.Parse("2006-01-02", matches[1])
	if err != nil {
		return pipeline.DateRange{}, fmt.Errorf("invalid end date %q: %w", matches[1], err)
	}

	return pipeline.DayRange(start, end)
}

// matchCountry finds the longest catalog country name mentioned in
// text, case-insensitively. When no name matches, the error carries
// near-miss suggestions for any word that is close to a catalog name.
func matchCountry(text string) (string, error) {
	lower := strings.ToLower(text)

	best := ""
	for _, name := range catalogNames() {
		if strings.Contains(lower, strings.ToLower(name)) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return best, nil
	}

	cleaned := dateRe.ReplaceAllString(lower, " ")
	words := strings.FieldsFunc(cleaned, func(r rune) bool {
		return !('a' <= r && r <= 'z')
	})

	// Alternative spellings (Germany, Czechia) resolve through the
	// catalog's alias table.
	for _, w := range words {
		if c, ok := entsoe.FindCountry(w); ok {
			return c.Name, nil
		}
	}

	// No match: suggest near misses from the non-date words.
	seen := make(map[string]struct{})
	var suggestions []string
	for _, w := range words {
		if len(w) < 4 {
			continue
		}
		for _, name := range catalogNames() {
			if _, dup := seen[name]; dup {
				continue
			}
			if levenshtein(w, strings.ToLower(name)) <= 3 {
				seen[name] = struct{}{}
				suggestions = append(suggestions, name)
			}
		}
	}
	if len(suggestions) > 0 {
		sort.Strings(suggestions)
		return "", &UnknownCountryError{Name: strings.TrimSpace(text), Suggestions: suggestions}
	}
	return "", ErrNoCountry
}

func catalogNames() []string {
	return entsoe.CountryNames()
}

// levenshtein computes the edit distance between a and b.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
