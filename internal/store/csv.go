package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/marcus/pratica/internal/models"
)

// CSVHeader is the first row written by WriteAttemptsCSV.
var CSVHeader = []string{"time", "session_id", "question_id", "type", "category", "difficulty", "value", "correct"}

// WriteAttemptsCSV writes every attempt, oldest first. The value column
// holds the JSON encoding of the submitted answer.
func (s *Store) WriteAttemptsCSV(w io.Writer) error {
	attempts := s.Attempts()
	sort.SliceStable(attempts, func(i, j int) bool { return attempts[i].At < attempts[j].At })

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, a := range attempts {
		if err := cw.Write(attemptRow(a)); err != nil {
			return fmt.Errorf("write attempt %s: %w", a.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func attemptRow(a models.Attempt) []string {
	value, err := json.Marshal(a.Value)
	if err != nil {
		value = []byte("null")
	}
	return []string{
		models.TimeOf(a.At).UTC().Format(time.RFC3339),
		a.SessionID,
		a.QuestionID,
		string(a.Type),
		a.Category,
		a.Difficulty,
		string(value),
		strconv.FormatBool(a.Correct),
	}
}
