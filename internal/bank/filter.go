package bank

import (
	"math/rand/v2"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/marcus/pratica/internal/fold"
	"github.com/marcus/pratica/internal/models"
)

// Filter narrows the bank. Empty or "all" fields match everything.
type Filter struct {
	Text       string
	Category   string
	Difficulty string
}

// FromModel converts stored filters.
func FromModel(f models.Filters) Filter {
	return Filter{Text: f.Text, Category: f.Category, Difficulty: f.Difficulty}
}

// Model converts to the filters a session records.
func (f Filter) Model() models.Filters {
	return models.Filters{Text: f.Text, Category: f.Category, Difficulty: f.Difficulty}.Sanitized()
}

func active(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != models.FilterAll
}

// Match reports whether q passes the filter. Text is searched in the
// statement, topic, category and base text; all comparisons ignore accents
// and case.
func (f Filter) Match(q Question) bool {
	if needle := strings.TrimSpace(f.Text); needle != "" {
		hay := strings.Join([]string{q.Statement, q.Topic, q.Category, q.BaseText}, " ")
		if !fold.Contains(hay, needle) {
			return false
		}
	}
	if active(f.Category) && !fold.Equal(q.Category, f.Category) {
		return false
	}
	if active(f.Difficulty) && !fold.Equal(q.Difficulty, f.Difficulty) {
		return false
	}
	return true
}

// Apply returns the questions that match, in bank order.
func (f Filter) Apply(items []Question) []Question {
	out := make([]Question, 0, len(items))
	for _, q := range items {
		if f.Match(q) {
			out = append(out, q)
		}
	}
	return out
}

// Page is one page of a listing.
type Page struct {
	Items []Question
	Page  int
	Pages int
	Total int
}

// Paginate returns page (1-based) of items. Out of range pages are clamped.
func Paginate(items []Question, page, size int) Page {
	if size <= 0 {
		size = len(items)
		if size == 0 {
			size = 1
		}
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	page = max(1, min(page, pages))
	start := min((page-1)*size, total)
	end := min(start+size, total)
	return Page{Items: items[start:end], Page: page, Pages: pages, Total: total}
}

// Pick returns up to n supported questions in random order.
func Pick(items []Question, n int, rng *rand.Rand) []Question {
	pool := make([]Question, 0, len(items))
	for _, q := range items {
		if q.Supported() {
			pool = append(pool, q)
		}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if n > 0 && n < len(pool) {
		pool = pool[:n]
	}
	return pool
}

// Categories lists distinct non-empty categories in pt-BR order.
func Categories(items []Question) []string {
	return distinct(items, func(q Question) string { return q.Category })
}

// Difficulties lists distinct non-empty difficulties in pt-BR order.
func Difficulties(items []Question) []string {
	return distinct(items, func(q Question) string { return q.Difficulty })
}

func distinct(items []Question, field func(Question) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range items {
		v := field(q)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	collate.New(language.BrazilianPortuguese).SortStrings(out)
	return out
}
