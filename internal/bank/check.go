package bank

import (
	"fmt"
	"strings"

	"github.com/marcus/pratica/internal/models"
)

// Check grades value against the answer key of q. The value is coerced to
// the shape the question type expects first, so "2" answers a multiple
// choice question as option 2.
func Check(q Question, value models.AnswerValue) (bool, error) {
	if !q.Supported() {
		return false, fmt.Errorf("%w: %q", ErrUnsupportedType, q.Type)
	}
	if !q.Answer.Set {
		return false, fmt.Errorf("%w: %s", ErrNoAnswerKey, q.ID)
	}
	v := value.Coerce(q.Type)

	switch q.Type {
	case models.TypeMultipleChoice:
		if v.Kind != models.AnswerIndex {
			return false, ErrWrongAnswerKind
		}
		return v.Index == q.Answer.Index, nil
	case models.TypeTrueFalse:
		if v.Kind != models.AnswerBool {
			return false, ErrWrongAnswerKind
		}
		return v.Bool == q.Answer.Bool, nil
	default:
		if v.Kind != models.AnswerText {
			return false, ErrWrongAnswerKind
		}
		given := normalizeAnswer(v.Text)
		for _, want := range q.Answer.Texts {
			if normalizeAnswer(want) == given {
				return true, nil
			}
		}
		return false, nil
	}
}

// Expected renders the answer key for feedback after a wrong answer.
func Expected(q Question) string {
	if !q.Answer.Set {
		return ""
	}
	switch q.Type {
	case models.TypeMultipleChoice:
		if q.Answer.Index >= 0 && q.Answer.Index < len(q.Options) {
			return fmt.Sprintf("%c) %s", 'A'+rune(q.Answer.Index), q.Options[q.Answer.Index])
		}
		return fmt.Sprint(q.Answer.Index)
	case models.TypeTrueFalse:
		return models.BoolAnswer(q.Answer.Bool).String()
	}
	if len(q.Answer.Texts) > 0 {
		return q.Answer.Texts[0]
	}
	return ""
}

// Accents matter in Portuguese answers, so only case and spacing are folded.
func normalizeAnswer(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
