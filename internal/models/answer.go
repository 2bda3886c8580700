package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AnswerKind discriminates the shape of a submitted answer
type AnswerKind int

const (
	AnswerNone AnswerKind = iota
	AnswerIndex
	AnswerBool
	AnswerText
	AnswerRaw // anything we could not classify, kept verbatim
)

// AnswerValue is the submitted value of an attempt. Multiple choice answers carry an
// option index, true/false answers a bool and fill-in answers a string.
type AnswerValue struct {
	Kind  AnswerKind
	Index int
	Bool  bool
	Text  string
	Raw   json.RawMessage
}

// IndexAnswer builds a multiple choice answer
func IndexAnswer(i int) AnswerValue { return AnswerValue{Kind: AnswerIndex, Index: i} }

// BoolAnswer builds a true/false answer
func BoolAnswer(b bool) AnswerValue { return AnswerValue{Kind: AnswerBool, Bool: b} }

// TextAnswer builds a fill-in answer
func TextAnswer(s string) AnswerValue { return AnswerValue{Kind: AnswerText, Text: s} }

// IsZero reports whether no answer was given
func (v AnswerValue) IsZero() bool { return v.Kind == AnswerNone }

// MarshalJSON writes the bare JSON value (number, bool, string or null)
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case AnswerIndex:
		return []byte(strconv.Itoa(v.Index)), nil
	case AnswerBool:
		return json.Marshal(v.Bool)
	case AnswerText:
		return json.Marshal(v.Text)
	case AnswerRaw:
		if len(v.Raw) == 0 {
			return []byte("null"), nil
		}
		return v.Raw, nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON classifies the incoming JSON value by its shape
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*v = AnswerValue{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return fmt.Errorf("answer bool: %w", err)
		}
		*v = BoolAnswer(b)
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("answer text: %w", err)
		}
		*v = TextAnswer(s)
	default:
		var f float64
		if err := json.Unmarshal(trimmed, &f); err == nil && f == math.Trunc(f) && math.Abs(f) < math.MaxInt32 {
			*v = IndexAnswer(int(f))
			return nil
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return fmt.Errorf("answer value: %w", err)
		}
		v.Kind = AnswerRaw
		v.Raw = json.RawMessage(buf.Bytes())
	}
	return nil
}

// Coerce adapts the value to the shape a question type expects.
// A multiple choice answer stored as "2" becomes index 2, "true" becomes a bool, etc.
// Values that cannot be adapted are returned unchanged.
func (v AnswerValue) Coerce(t QuestionType) AnswerValue {
	switch t {
	case TypeMultipleChoice:
		if v.Kind == AnswerText {
			if n, err := strconv.Atoi(strings.TrimSpace(v.Text)); err == nil {
				return IndexAnswer(n)
			}
		}
	case TypeTrueFalse:
		switch v.Kind {
		case AnswerText:
			if b, err := strconv.ParseBool(strings.TrimSpace(v.Text)); err == nil {
				return BoolAnswer(b)
			}
		case AnswerIndex:
			// option 0 is "Verdadeiro", option 1 is "Falso"
			if v.Index == 0 || v.Index == 1 {
				return BoolAnswer(v.Index == 0)
			}
		}
	case TypeFillBlank:
		switch v.Kind {
		case AnswerIndex:
			return TextAnswer(strconv.Itoa(v.Index))
		case AnswerBool:
			return TextAnswer(strconv.FormatBool(v.Bool))
		}
	}
	return v
}

// String renders the value for display
func (v AnswerValue) String() string {
	switch v.Kind {
	case AnswerIndex:
		return strconv.Itoa(v.Index)
	case AnswerBool:
		if v.Bool {
			return "verdadeiro"
		}
		return "falso"
	case AnswerText:
		return v.Text
	case AnswerRaw:
		return string(v.Raw)
	default:
		return "—"
	}
}

// Equal compares two answers by kind and payload
func (v AnswerValue) Equal(o AnswerValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case AnswerIndex:
		return v.Index == o.Index
	case AnswerBool:
		return v.Bool == o.Bool
	case AnswerText:
		return v.Text == o.Text
	case AnswerRaw:
		return bytes.Equal(v.Raw, o.Raw)
	}
	return true
}
