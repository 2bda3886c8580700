package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/models"
)

// parseAnswer reads a command-line answer for q: an option letter (A, B, ...)
// or a 0-based index for multiple choice, v/f style words for true/false,
// and free text for fill-in questions.
func parseAnswer(q bank.Question, s string) (models.AnswerValue, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.AnswerValue{}, errors.New("empty answer")
	}

	switch q.Type {
	case models.TypeMultipleChoice:
		idx := -1
		if n, err := strconv.Atoi(s); err == nil {
			idx = n
		} else if r, size := utf8.DecodeRuneInString(strings.ToUpper(s)); size == len(s) && r >= 'A' && r <= 'Z' {
			idx = int(r - 'A')
		}
		if idx < 0 || (len(q.Options) > 0 && idx >= len(q.Options)) {
			return models.AnswerValue{}, fmt.Errorf("invalid option %q", s)
		}
		return models.IndexAnswer(idx), nil
	case models.TypeTrueFalse:
		switch strings.ToLower(s) {
		case "v", "verdadeiro", "true", "t", "c", "certo", "sim", "1":
			return models.BoolAnswer(true), nil
		case "f", "falso", "false", "e", "errado", "nao", "não", "0":
			return models.BoolAnswer(false), nil
		}
		return models.AnswerValue{}, fmt.Errorf("invalid true/false answer %q", s)
	case models.TypeFillBlank:
		return models.TextAnswer(s), nil
	}
	return models.AnswerValue{}, fmt.Errorf("%w: %q", bank.ErrUnsupportedType, q.Type)
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// askQuestion shows q as a huh form and returns the chosen answer. The form
// is abandoned when ctx ends.
func askQuestion(ctx context.Context, q bank.Question, title string) (models.AnswerValue, error) {
	var (
		idx   int
		truth bool
		text  string
		field huh.Field
	)

	desc := q.Statement
	if q.BaseText != "" {
		desc = q.BaseText + "\n\n" + q.Statement
	}

	switch q.Type {
	case models.TypeMultipleChoice:
		opts := make([]huh.Option[int], len(q.Options))
		for i, o := range q.Options {
			opts[i] = huh.NewOption(fmt.Sprintf("%c) %s", 'A'+i, o), i)
		}
		field = huh.NewSelect[int]().Title(title).Description(desc).Options(opts...).Value(&idx)
	case models.TypeTrueFalse:
		field = huh.NewSelect[bool]().Title(title).Description(desc).
			Options(huh.NewOption("Verdadeiro", true), huh.NewOption("Falso", false)).
			Value(&truth)
	case models.TypeFillBlank:
		field = huh.NewInput().Title(title).Description(desc).Value(&text).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("digite uma resposta")
				}
				return nil
			})
	default:
		return models.AnswerValue{}, fmt.Errorf("%w: %q", bank.ErrUnsupportedType, q.Type)
	}

	if err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx); err != nil {
		return models.AnswerValue{}, err
	}

	switch q.Type {
	case models.TypeMultipleChoice:
		return models.IndexAnswer(idx), nil
	case models.TypeTrueFalse:
		return models.BoolAnswer(truth), nil
	}
	return models.TextAnswer(text), nil
}

// confirm asks a yes/no question; non-interactive sessions get false.
func confirm(title string) (bool, error) {
	if !isInteractive() {
		return false, nil
	}
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Affirmative("Sim").Negative("Não").Value(&ok),
	)).Run()
	return ok, err
}
