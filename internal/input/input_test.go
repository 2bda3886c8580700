package input

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestExpandArgsPassThrough(t *testing.T) {
	got, err := ExpandArgs([]string{"1", "2"}, strings.NewReader("ignored"))
	if err != nil || !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestExpandArgsStdinAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	if err := os.WriteFile(path, []byte("# crase\n10\n\n 11 \n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := ExpandArgs([]string{"1", "-", "@" + path}, strings.NewReader("7\n8\n"))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"1", "7", "8", "10", "11"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandArgsStdinOnce(t *testing.T) {
	_, err := ExpandArgs([]string{"-", "-"}, strings.NewReader("1\n"))
	if !errors.Is(err, ErrStdinReused) {
		t.Errorf("err = %v", err)
	}
}

func TestExpandArgsMissingFile(t *testing.T) {
	if _, err := ExpandArgs([]string{"@/does/not/exist"}, nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExpandArgsLoneAt(t *testing.T) {
	got, err := ExpandArgs([]string{"@"}, nil)
	if err != nil || !reflect.DeepEqual(got, []string{"@"}) {
		t.Errorf("got %v, %v", got, err)
	}
}
