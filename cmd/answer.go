package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/models"
	"github.com/marcus/pratica/internal/output"
	"github.com/spf13/cobra"
)

var answerCmd = &cobra.Command{
	Use:   "answer <question-id> [answer]",
	Short: "Answer a question and record the attempt",
	Long: `Grades an answer and records it as an attempt.

Multiple choice takes an option letter (A, B, ...) or a 0-based index,
true/false takes v/f (or sim/não), fill-in takes the text. Without an
answer argument the question is asked interactively.`,
	Example: `  pratica answer 12 B
  pratica answer 31 v
  pratica answer 7 "à medida que" --session s_01J...`,
	GroupID: "practice",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()

		items, err := loadBank(a.baseDir)
		if err != nil {
			output.Error("load question bank: %v", err)
			return err
		}
		q, ok := bank.Find(items, args[0])
		if !ok {
			return fmt.Errorf("question %s: %w", args[0], errNotFound)
		}

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID != "" {
			if _, ok := a.store.Session(sessionID); !ok {
				return fmt.Errorf("session %s: %w", sessionID, errNotFound)
			}
		}

		var value models.AnswerValue
		if len(args) == 2 {
			value, err = parseAnswer(q, args[1])
		} else if isInteractive() {
			value, err = askQuestion(cmd.Context(), q, q.Title())
		} else {
			err = errors.New("answer required when not running in a terminal")
		}
		if err != nil {
			return err
		}

		res, err := grade(a, sessionID, q, value)
		if err != nil {
			return err
		}
		if jsonFlag {
			return output.JSON(res)
		}
		printGrade(res)
		return nil
	},
}

type gradeResult struct {
	Attempt  models.Attempt `json:"attempt"`
	Expected string         `json:"expected,omitempty"`
	Rollup   models.Rollup  `json:"rollup"`
}

// grade checks value against q and records the attempt.
func grade(a *app, sessionID string, q bank.Question, value models.AnswerValue) (gradeResult, error) {
	correct, err := bank.Check(q, value)
	if err != nil {
		return gradeResult{}, err
	}
	att := a.store.RecordAttempt(sessionID, q.Ref(), value.Coerce(q.Type), correct, time.Now().UnixMilli())
	if att == nil {
		return gradeResult{}, fmt.Errorf("attempt for %s was not recorded", q.ID)
	}
	res := gradeResult{Attempt: *att}
	if !correct {
		res.Expected = bank.Expected(q)
	}
	res.Rollup, _ = a.store.Rollup(q.ID)
	return res, nil
}

func printGrade(res gradeResult) {
	if res.Attempt.Correct {
		output.Success("%s correct", output.ResultMark(true))
	} else {
		output.Error("%s wrong, expected: %s", output.ResultMark(false), res.Expected)
	}
	fmt.Printf("  streak %d, %s\n", res.Rollup.Streak, output.FormatAccuracy(res.Rollup.Correct, res.Rollup.Count))
}

// askAndGrade asks q interactively and grades it; ctx ending abandons the prompt.
func askAndGrade(ctx context.Context, a *app, sessionID string, q bank.Question, title string) (gradeResult, error) {
	value, err := askQuestion(ctx, q, title)
	if err != nil {
		return gradeResult{}, err
	}
	return grade(a, sessionID, q, value)
}

func init() {
	answerCmd.Flags().String("session", "", "record the attempt as part of this session")
	rootCmd.AddCommand(answerCmd)
}
