package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/models"
	"github.com/spf13/pflag"
)

// filterValue is a repeatable --filter key=value flag that fills a bank.Filter.
// Keys: q (text), cat (category), dif (difficulty), with long aliases.
type filterValue struct {
	f   *bank.Filter
	set []string
}

var _ pflag.Value = (*filterValue)(nil)

func newFilterValue(f *bank.Filter) *filterValue {
	return &filterValue{f: f}
}

func (v *filterValue) String() string {
	return strings.Join(v.set, ",")
}

func (v *filterValue) Type() string { return "key=value" }

func (v *filterValue) Set(s string) error {
	key, val, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	val = strings.TrimSpace(val)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "q", "text":
		v.f.Text = val
	case "cat", "category", "categoria":
		v.f.Category = orAll(val)
	case "dif", "difficulty", "dificuldade":
		v.f.Difficulty = orAll(val)
	default:
		return fmt.Errorf("unknown filter key %q (use q, cat or dif)", key)
	}
	v.set = append(v.set, s)
	return nil
}

// Changed reports whether the flag was given at least once.
func (v *filterValue) Changed() bool { return len(v.set) > 0 }

func orAll(s string) string {
	if s == "" {
		return models.FilterAll
	}
	return s
}

// addFilterFlag registers --filter on fs, writing into f.
func addFilterFlag(fs *pflag.FlagSet, f *bank.Filter) *filterValue {
	v := newFilterValue(f)
	fs.VarP(v, "filter", "f", "filter questions: q=<text>, cat=<category>, dif=<difficulty> (repeatable)")
	return v
}
