package cmd

import (
	"testing"

	"github.com/marcus/pratica/internal/bank"
	"github.com/spf13/pflag"
)

func TestFilterFlag(t *testing.T) {
	var f bank.Filter
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := addFilterFlag(fs, &f)

	if err := fs.Parse([]string{"--filter", "q=crase", "-f", "cat=Regência", "--filter=dif="}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Text != "crase" || f.Category != "Regência" || f.Difficulty != "all" {
		t.Errorf("filter = %+v", f)
	}
	if !v.Changed() {
		t.Error("Changed() = false")
	}
	if v.String() != "q=crase,cat=Regência,dif=" {
		t.Errorf("String() = %q", v.String())
	}
}

func TestFilterFlagRejectsBadInput(t *testing.T) {
	for _, arg := range []string{"nokey", "color=red"} {
		var f bank.Filter
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		addFilterFlag(fs, &f)
		if err := fs.Parse([]string{"--filter", arg}); err == nil {
			t.Errorf("expected error for %q", arg)
		}
	}
}
