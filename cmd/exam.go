package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/config"
	"github.com/marcus/pratica/internal/exam"
	"github.com/marcus/pratica/internal/output"
	"github.com/spf13/cobra"
)

var (
	examFilter     bank.Filter
	examFilterFlag *filterValue
)

var examCmd = &cobra.Command{
	Use:   "exam",
	Short: "Run a timed exam over a random pick of questions",
	Long: `Picks questions at random from the filtered bank and asks them one by
one against a countdown. Answers given after the time runs out are not
recorded. Esc or Ctrl-C ends the exam early.`,
	GroupID: "practice",
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if !isInteractive() {
			return errors.New("exam needs a terminal")
		}
		items, err := loadBank(a.baseDir)
		if err != nil {
			output.Error("load question bank: %v", err)
			return err
		}
		filter, err := resolveFilter(a.baseDir, cmd, examFilter, examFilterFlag)
		if err != nil {
			return err
		}

		defaults, _ := config.GetExamDefaults(a.baseDir)
		if cmd.Flags().Changed("count") {
			defaults.Count, _ = cmd.Flags().GetInt("count")
		}
		if cmd.Flags().Changed("duration") {
			defaults.Duration, _ = cmd.Flags().GetDuration("duration")
		}
		if save, _ := cmd.Flags().GetBool("save"); save {
			if err := config.SetExamDefaults(a.baseDir, defaults); err != nil {
				return err
			}
		}

		picked := bank.Pick(filter.Apply(items), defaults.Count, newRand())
		if len(picked) == 0 {
			return errors.New("no supported questions match the filters")
		}

		e := exam.Start(a.store, picked, filter.Model(), defaults.Duration)
		runExam(cmd.Context(), e)
		sum := e.Finish()

		if jsonFlag {
			return output.JSON(sum)
		}
		printExamSummary(sum)
		return nil
	}),
}

// runExam asks questions until the exam is done, the clock runs out or the
// user aborts.
func runExam(parent context.Context, e *exam.Exam) {
	deadline, _ := e.Timer().Deadline()
	ctx, cancel := context.WithDeadline(parent, deadline)
	defer cancel()

	for !e.Done() {
		q, _ := e.Current()
		pos, total := e.Position()
		t := e.Timer()
		title := fmt.Sprintf("%d/%d  %s  %s", pos, total, output.FormatClock(string(t.Phase()), t.String()), q.Title())

		value, err := askQuestion(ctx, q, title)
		switch {
		case ctx.Err() != nil:
			output.Warning("time is up")
			return
		case errors.Is(err, huh.ErrUserAborted):
			return
		case errors.Is(err, bank.ErrUnsupportedType):
			e.Skip()
			continue
		case err != nil:
			output.Error("%v", err)
			return
		}

		out, err := e.Answer(value)
		switch {
		case errors.Is(err, exam.ErrExpired):
			output.Warning("time is up; last answer not recorded")
			return
		case errors.Is(err, bank.ErrNoAnswerKey):
			e.Skip()
			continue
		case err != nil:
			output.Error("%v", err)
			continue
		}
		if out.Correct {
			output.Success("%s correct", output.ResultMark(true))
		} else {
			output.Error("%s wrong, expected: %s", output.ResultMark(false), bank.Expected(q))
		}
	}
}

func printExamSummary(sum exam.Summary) {
	fmt.Print(output.SectionHeader("exam"))
	fmt.Printf("  session  %s\n", sum.SessionID)
	fmt.Printf("  answered %d of %d\n", sum.Answered, sum.Total)
	fmt.Printf("  correct  %s\n", output.FormatAccuracy(sum.Correct, sum.Answered))
	fmt.Printf("  time     %s\n", sum.Elapsed.Round(time.Second))
	if sum.TimedOut {
		output.Warning("  ran out of time")
	}
}

func init() {
	examFilterFlag = addFilterFlag(examCmd.Flags(), &examFilter)
	examCmd.Flags().IntP("count", "n", config.DefaultExamCount, "number of questions")
	examCmd.Flags().DurationP("duration", "d", config.DefaultExamDuration, "time limit")
	examCmd.Flags().Bool("save", false, "remember count and duration as workspace defaults")
	examCmd.Flags().Bool("reset", false, "ignore and clear saved filters")
	rootCmd.AddCommand(examCmd)
}
