package bank

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/marcus/pratica/internal/models"
)

const sampleBank = `[
  {"id": 1, "tipo": "multipla_escolha", "categoria": "Crase", "dificuldade": "fácil",
   "tema": "Uso da crase", "enunciado": "Assinale a alternativa correta.",
   "alternativas": ["a", "à", "há"], "resposta": 1},
  {"id": "2", "tipo": "Lacuna", "categoria": "Acentuação", "dificuldade": "médio",
   "enunciado": "Complete: a ___ do texto.", "resposta": ["ação", "acão"]},
  {"id": 3, "tipo": "verdadeiro_falso", "categoria": "Crase", "dificuldade": "difícil",
   "enunciado": "Há crase antes de verbo.", "texto_base": "Regras de ocorrência", "resposta": false},
  {"id": 4, "tipo": "dissertativa", "categoria": "Redação", "enunciado": "Escreva."}
]`

func loadSample(t *testing.T) []Question {
	t.Helper()
	qs, err := Parse([]byte(sampleBank))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return qs
}

func TestParseShapes(t *testing.T) {
	qs := loadSample(t)
	if len(qs) != 4 {
		t.Fatalf("got %d questions", len(qs))
	}
	if qs[0].ID != "1" || qs[1].ID != "2" {
		t.Errorf("ids = %q, %q", qs[0].ID, qs[1].ID)
	}
	if qs[1].Type != models.TypeFillBlank {
		t.Errorf("type not lower-cased: %q", qs[1].Type)
	}
	if !qs[0].Answer.Set || qs[0].Answer.Index != 1 {
		t.Errorf("mc key = %+v", qs[0].Answer)
	}
	if qs[3].Answer.Set {
		t.Error("question without resposta should have no key")
	}

	wrapped, err := Parse([]byte(`{"questoes": ` + sampleBank + `}`))
	if err != nil || len(wrapped) != 4 {
		t.Fatalf("wrapped Parse = %d, %v", len(wrapped), err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exercicios.json")
	if err := os.WriteFile(path, []byte(sampleBank), 0644); err != nil {
		t.Fatal(err)
	}
	qs, err := Load(path)
	if err != nil || len(qs) != 4 {
		t.Fatalf("Load = %d, %v", len(qs), err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFilter(t *testing.T) {
	qs := loadSample(t)
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty", Filter{}, []string{"1", "2", "3", "4"}},
		{"all", Filter{Category: "all", Difficulty: "all"}, []string{"1", "2", "3", "4"}},
		{"category folded", Filter{Category: "crase"}, []string{"1", "3"}},
		{"difficulty accents", Filter{Difficulty: "DIFICIL"}, []string{"3"}},
		{"text in statement", Filter{Text: "ALTERNATIVA"}, []string{"1"}},
		{"text in topic", Filter{Text: "uso da"}, []string{"1"}},
		{"text in base text", Filter{Text: "ocorrencia"}, []string{"3"}},
		{"text in category", Filter{Text: "acentuacao"}, []string{"2"}},
		{"combined", Filter{Text: "crase", Category: "Crase", Difficulty: "facil"}, []string{"1"}},
		{"no match", Filter{Text: "zzz"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, q := range tt.filter.Apply(qs) {
				got = append(got, q.ID)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	qs := loadSample(t)
	tests := []struct {
		page, size        int
		wantPage, wantLen int
		wantPages         int
	}{
		{1, 3, 1, 3, 2},
		{2, 3, 2, 1, 2},
		{9, 3, 2, 1, 2},
		{0, 3, 1, 3, 2},
		{1, 0, 1, 4, 1},
	}
	for _, tt := range tests {
		p := Paginate(qs, tt.page, tt.size)
		if p.Page != tt.wantPage || len(p.Items) != tt.wantLen || p.Pages != tt.wantPages || p.Total != 4 {
			t.Errorf("Paginate(%d,%d) = page %d len %d pages %d", tt.page, tt.size, p.Page, len(p.Items), p.Pages)
		}
	}

	empty := Paginate(nil, 3, 10)
	if empty.Page != 1 || empty.Pages != 1 || len(empty.Items) != 0 {
		t.Errorf("empty = %+v", empty)
	}
}

func TestCheck(t *testing.T) {
	qs := loadSample(t)
	mc, fill, tf, essay := qs[0], qs[1], qs[2], qs[3]

	tests := []struct {
		name  string
		q     Question
		value models.AnswerValue
		want  bool
		err   error
	}{
		{"mc right", mc, models.IndexAnswer(1), true, nil},
		{"mc wrong", mc, models.IndexAnswer(0), false, nil},
		{"mc from text", mc, models.TextAnswer("1"), true, nil},
		{"mc bool", mc, models.BoolAnswer(true), false, ErrWrongAnswerKind},
		{"fill case and spaces", fill, models.TextAnswer("  AÇÃO "), true, nil},
		{"fill alternative", fill, models.TextAnswer("acão"), true, nil},
		{"fill accents matter", fill, models.TextAnswer("acao"), false, nil},
		{"tf right", tf, models.BoolAnswer(false), true, nil},
		{"tf from option index", tf, models.IndexAnswer(1), true, nil},
		{"tf wrong", tf, models.BoolAnswer(true), false, nil},
		{"unsupported", essay, models.TextAnswer("x"), false, ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Check(tt.q, tt.value)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Check = %v, %v; want %v", got, err, tt.want)
			}
		})
	}

	noKey := Question{ID: "9", Type: models.TypeTrueFalse}
	if _, err := Check(noKey, models.BoolAnswer(true)); !errors.Is(err, ErrNoAnswerKey) {
		t.Errorf("err = %v, want ErrNoAnswerKey", err)
	}
}

func TestExpected(t *testing.T) {
	qs := loadSample(t)
	if got := Expected(qs[0]); got != "B) à" {
		t.Errorf("mc expected = %q", got)
	}
	if got := Expected(qs[1]); got != "ação" {
		t.Errorf("fill expected = %q", got)
	}
	if got := Expected(qs[2]); got != "falso" {
		t.Errorf("tf expected = %q", got)
	}
}

func TestPickSkipsUnsupported(t *testing.T) {
	qs := loadSample(t)
	rng := rand.New(rand.NewPCG(1, 2))

	all := Pick(qs, 0, rng)
	if len(all) != 3 {
		t.Fatalf("picked %d, want the 3 supported", len(all))
	}
	for _, q := range all {
		if q.ID == "4" {
			t.Error("unsupported question picked")
		}
	}
	if got := Pick(qs, 2, rng); len(got) != 2 {
		t.Errorf("picked %d, want 2", len(got))
	}
	if len(qs) != 4 || qs[0].ID != "1" {
		t.Error("Pick must not reorder the input")
	}
}

func TestListings(t *testing.T) {
	qs := loadSample(t)
	if got := Categories(qs); !slices.Equal(got, []string{"Acentuação", "Crase", "Redação"}) {
		t.Errorf("categories = %v", got)
	}
	if got := Difficulties(qs); !slices.Equal(got, []string{"difícil", "fácil", "médio"}) {
		t.Errorf("difficulties = %v", got)
	}
}

func TestTitleAndSummary(t *testing.T) {
	qs := loadSample(t)
	if got := qs[0].Title(); got != "Questão 1 — Uso da crase" {
		t.Errorf("title = %q", got)
	}
	if got := qs[1].Title(); got != "Questão 2 — Acentuação" {
		t.Errorf("title = %q", got)
	}
	if got := qs[0].Summary(8); got != "Assinal…" {
		t.Errorf("summary = %q", got)
	}
}
