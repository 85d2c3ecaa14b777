package relevance

import "strings"

// defaultTerms: темы, которые явно не относятся к содержимому картинки.
var defaultTerms = []string{
	"weather", "time", "date", "news", "stock", "price",
	"temperature", "population", "distance", "location",
	"what is your name", "who are you", "how old",
}

// Filter decides whether a prompt is plausibly about the uploaded image.
// It is a heuristic: a prompt is rejected when any denylisted term occurs in it
// as a case-insensitive substring. The term list is fixed at construction.
type Filter struct {
	terms []string
}

func New(terms ...string) *Filter {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			// пустая строка является подстрокой любого промпта
			continue
		}
		out = append(out, t)
	}
	return &Filter{terms: out}
}

// DefaultTerms returns a fresh copy of the built-in denylist.
func DefaultTerms() []string {
	return append([]string(nil), defaultTerms...)
}

func Default() *Filter { return New(defaultTerms...) }

// Allow reports whether the prompt may proceed to inference.
func (f *Filter) Allow(prompt string) bool {
	_, matched := f.Match(prompt)
	return !matched
}

// Match returns the first denylisted term found in the prompt.
func (f *Filter) Match(prompt string) (string, bool) {
	p := strings.ToLower(prompt)
	for _, t := range f.terms {
		if strings.Contains(p, t) {
			return t, true
		}
	}
	return "", false
}

func (f *Filter) Terms() []string {
	return append([]string(nil), f.terms...)
}
