package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marcus/pratica/internal/models"
)

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ExamCount != 0 || cfg.QuestionBank != "" {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestFiltersSanitized(t *testing.T) {
	dir := t.TempDir()
	if err := SetFilters(dir, models.Filters{Text: "crase"}); err != nil {
		t.Fatalf("SetFilters: %v", err)
	}
	f, err := GetFilters(dir)
	if err != nil {
		t.Fatalf("GetFilters: %v", err)
	}
	want := models.Filters{Text: "crase", Category: models.FilterAll, Difficulty: models.FilterAll}
	if f != want {
		t.Errorf("filters = %+v, want %+v", f, want)
	}
}

func TestExamDefaults(t *testing.T) {
	dir := t.TempDir()
	d, err := GetExamDefaults(dir)
	if err != nil {
		t.Fatal(err)
	}
	if d.Count != DefaultExamCount || d.Duration != DefaultExamDuration {
		t.Errorf("defaults = %+v", d)
	}

	if err := SetExamDefaults(dir, ExamDefaults{Count: 5, Duration: 90 * time.Second}); err != nil {
		t.Fatal(err)
	}
	d, _ = GetExamDefaults(dir)
	if d.Count != 5 || d.Duration != 90*time.Second {
		t.Errorf("saved = %+v", d)
	}
}

func TestBadDurationFallsBack(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, &models.Config{ExamDuration: "forever"}); err != nil {
		t.Fatal(err)
	}
	d, _ := GetExamDefaults(dir)
	if d.Duration != DefaultExamDuration {
		t.Errorf("duration = %v, want default", d.Duration)
	}
}

func TestQuestionBankPath(t *testing.T) {
	dir := t.TempDir()
	p, _ := GetQuestionBank(dir)
	if p != filepath.Join(dir, DefaultQuestionBank) {
		t.Errorf("default bank = %q", p)
	}
	if err := SetQuestionBank(dir, "/abs/bank.json"); err != nil {
		t.Fatal(err)
	}
	if p, _ := GetQuestionBank(dir); p != "/abs/bank.json" {
		t.Errorf("bank = %q", p)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, &models.Config{PageSize: 7}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, ".pratica"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
	if GetPageSize(dir) != 7 {
		t.Errorf("page size = %d", GetPageSize(dir))
	}
}

func TestConcurrentUpdatesKeepBothFields(t *testing.T) {
	dir := t.TempDir()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		SetQuestionBank(dir, "bank.json")
	}()
	go func() {
		defer wg.Done()
		SetExamDefaults(dir, ExamDefaults{Count: 3, Duration: time.Minute})
	}()
	wg.Wait()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.QuestionBank != "bank.json" || cfg.ExamCount != 3 {
		t.Errorf("lost update: %+v", cfg)
	}
}
