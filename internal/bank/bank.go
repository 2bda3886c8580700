// Package bank loads the exercise file and answers the questions the CLI
// asks about it: which exercises match a filter, which page to show, and
// whether a submitted answer is right.
package bank

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/marcus/pratica/internal/models"
)

// Sentinel errors returned by Check.
var (
	ErrUnsupportedType = errors.New("unsupported question type")
	ErrNoAnswerKey     = errors.New("question has no answer key")
	ErrWrongAnswerKind = errors.New("answer does not fit the question type")
)

// Question is one exercise of the bank.
type Question struct {
	ID         string
	Type       models.QuestionType
	Category   string
	Difficulty string
	Topic      string
	Statement  string
	BaseText   string
	Options    []string
	Answer     AnswerKey
}

// AnswerKey is the expected answer. Which field is meaningful depends on the
// question type; Set is false when the file had no answer.
type AnswerKey struct {
	Set   bool
	Index int
	Bool  bool
	Texts []string
}

type questionJSON struct {
	ID          json.RawMessage `json:"id"`
	Tipo        string          `json:"tipo"`
	Categoria   string          `json:"categoria"`
	Dificuldade string          `json:"dificuldade"`
	Tema        string          `json:"tema"`
	Enunciado   string          `json:"enunciado"`
	TextoBase   string          `json:"texto_base"`
	Alter       []string        `json:"alternativas"`
	Resposta    json.RawMessage `json:"resposta"`
}

// UnmarshalJSON accepts numeric or string ids and any answer shape the
// exercise file uses.
func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*q = Question{
		ID:         scalar(w.ID),
		Type:       models.QuestionType(strings.ToLower(strings.TrimSpace(w.Tipo))),
		Category:   w.Categoria,
		Difficulty: w.Dificuldade,
		Topic:      w.Tema,
		Statement:  w.Enunciado,
		BaseText:   w.TextoBase,
		Options:    w.Alter,
	}
	key, err := parseAnswerKey(w.Resposta)
	if err != nil {
		return fmt.Errorf("question %s: %w", q.ID, err)
	}
	q.Answer = key
	return nil
}

// MarshalJSON writes the exercise file shape back out.
func (q Question) MarshalJSON() ([]byte, error) {
	var resposta any
	switch {
	case !q.Answer.Set:
	case q.Type == models.TypeMultipleChoice:
		resposta = q.Answer.Index
	case q.Type == models.TypeTrueFalse:
		resposta = q.Answer.Bool
	case len(q.Answer.Texts) == 1:
		resposta = q.Answer.Texts[0]
	default:
		resposta = q.Answer.Texts
	}
	return json.Marshal(map[string]any{
		"id":           q.ID,
		"tipo":         q.Type,
		"categoria":    q.Category,
		"dificuldade":  q.Difficulty,
		"tema":         q.Topic,
		"enunciado":    q.Statement,
		"texto_base":   q.BaseText,
		"alternativas": q.Options,
		"resposta":     resposta,
	})
}

func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func parseAnswerKey(raw json.RawMessage) (AnswerKey, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return AnswerKey{}, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return AnswerKey{}, err
	}
	switch x := v.(type) {
	case float64:
		return AnswerKey{Set: true, Index: int(x), Bool: x != 0, Texts: []string{strconv.Itoa(int(x))}}, nil
	case bool:
		return AnswerKey{Set: true, Bool: x, Texts: []string{strconv.FormatBool(x)}}, nil
	case string:
		return AnswerKey{Set: true, Bool: x != "", Texts: []string{x}}, nil
	case []any:
		key := AnswerKey{Set: true, Bool: len(x) > 0}
		for _, item := range x {
			if s, ok := item.(string); ok {
				key.Texts = append(key.Texts, s)
			} else {
				key.Texts = append(key.Texts, fmt.Sprint(item))
			}
		}
		return key, nil
	}
	return AnswerKey{}, fmt.Errorf("unsupported answer %s", raw)
}

// Ref returns the fields an attempt records about the question.
func (q Question) Ref() models.QuestionRef {
	return models.QuestionRef{ID: q.ID, Type: q.Type, Category: q.Category, Difficulty: q.Difficulty}
}

// Supported reports whether the question type can be answered.
func (q Question) Supported() bool {
	return models.IsValidQuestionType(q.Type)
}

// Title is the heading shown for a question.
func (q Question) Title() string {
	label := q.Topic
	if label == "" {
		label = q.Category
	}
	if label == "" {
		label = "Português"
	}
	return fmt.Sprintf("Questão %s — %s", q.ID, label)
}

// Summary shortens the statement to n runes.
func (q Question) Summary(n int) string {
	r := []rune(q.Statement)
	if n <= 0 || len(r) <= n {
		return q.Statement
	}
	return string(r[:n-1]) + "…"
}

// Parse reads a bank document: either a bare array or {"questoes": [...]}.
func Parse(data []byte) ([]Question, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var qs []Question
		if err := json.Unmarshal(data, &qs); err != nil {
			return nil, fmt.Errorf("parse bank: %w", err)
		}
		return qs, nil
	}
	var doc struct {
		Questoes []Question `json:"questoes"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse bank: %w", err)
	}
	return doc.Questoes, nil
}

// Load reads and parses the bank file at path.
func Load(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bank: %w", err)
	}
	return Parse(data)
}

// Find returns the question with the given id.
func Find(items []Question, id string) (Question, bool) {
	for _, q := range items {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}
