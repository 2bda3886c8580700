package cmd

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/dateparse"
	"github.com/marcus/pratica/internal/models"
	"github.com/marcus/pratica/internal/output"
	"github.com/spf13/cobra"
)

var (
	sessionFilter     bank.Filter
	sessionFilterFlag *filterValue
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "Manage practice sessions",
	GroupID: "practice",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a session over a random pick of filtered questions",
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
		filter, err := resolveFilter(a.baseDir, cmd, sessionFilter, sessionFilterFlag)
		if err != nil {
			return err
		}

		count, _ := cmd.Flags().GetInt("count")
		picked := bank.Pick(filter.Apply(items), count, newRand())
		if len(picked) == 0 {
			return errors.New("no supported questions match the filters")
		}
		ids := make([]string, len(picked))
		for i, q := range picked {
			ids[i] = q.ID
		}

		f := filter.Model()
		id := a.store.StartSession(&f, ids)
		if jsonFlag {
			return output.JSON(map[string]any{"id": id, "questionIds": ids})
		}
		output.Success("STARTED %s with %d questions", id, len(ids))
		fmt.Printf("  answer them with 'pratica session next %s'\n", id)
		return nil
	},
}

var sessionNextCmd = &cobra.Command{
	Use:   "next <session-id>",
	Short: "Ask the next unanswered question of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isInteractive() {
			return errors.New("session next needs a terminal; use 'pratica answer <id> <answer> --session'")
		}
		a, err := openApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()

		sess, ok := a.store.Session(args[0])
		if !ok {
			return fmt.Errorf("session %s: %w", args[0], errNotFound)
		}
		if sess.FinishedAt != nil {
			return fmt.Errorf("session %s is finished", sess.ID)
		}
		items, err := loadBank(a.baseDir)
		if err != nil {
			output.Error("load question bank: %v", err)
			return err
		}

		answered := make(map[string]bool, len(sess.Results))
		for _, r := range sess.Results {
			answered[r.QuestionID] = true
		}
		for i, qid := range sess.QuestionIDs {
			if answered[qid] {
				continue
			}
			q, ok := bank.Find(items, qid)
			if !ok {
				output.Warning("question %s is no longer in the bank", qid)
				continue
			}
			res, err := askAndGrade(cmd.Context(), a, sess.ID, q, fmt.Sprintf("%d/%d  %s", i+1, len(sess.QuestionIDs), q.Title()))
			if err != nil {
				return err
			}
			printGrade(res)
			return nil
		}
		output.Info("all questions answered; run 'pratica session finish %s'", sess.ID)
		return nil
	},
}

var sessionFinishCmd = &cobra.Command{
	Use:   "finish <session-id>",
	Short: "Finish a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()

		if _, ok := a.store.Session(args[0]); !ok {
			return fmt.Errorf("session %s: %w", args[0], errNotFound)
		}
		a.store.FinishSession(args[0], nil)
		sess, _ := a.store.Session(args[0])
		if jsonFlag {
			return output.JSON(sess)
		}
		output.Success("FINISHED %s", output.FormatSession(sess))
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()

		sessions := a.store.Sessions()
		if since, _ := cmd.Flags().GetString("since"); since != "" {
			from, err := dateparse.SinceMillis(since, time.Now())
			if err != nil {
				return err
			}
			sessions = slices.DeleteFunc(sessions, func(s models.Session) bool { return s.StartedAt < from })
		}
		if open, _ := cmd.Flags().GetBool("open"); open {
			sessions = slices.DeleteFunc(sessions, func(s models.Session) bool { return s.FinishedAt != nil })
		}
		if jsonFlag {
			return output.JSON(sessions)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions")
			return nil
		}
		for _, s := range sessions {
			fmt.Println(output.FormatSession(s))
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session with its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()

		sess, ok := a.store.Session(args[0])
		if !ok {
			return fmt.Errorf("session %s: %w", args[0], errNotFound)
		}
		if jsonFlag {
			return output.JSON(sess)
		}
		fmt.Println(output.FormatSession(sess))
		if sess.Filters != nil {
			fmt.Printf("  filters: q=%q cat=%s dif=%s\n", sess.Filters.Text, sess.Filters.Category, sess.Filters.Difficulty)
		}
		if len(sess.Results) > 0 {
			fmt.Print(output.SectionHeader("results"))
			for _, r := range sess.Results {
				fmt.Printf("  %s questão %s: %s\n", output.ResultMark(r.Correct), r.QuestionID, r.Value)
			}
		}
		return nil
	},
}

func init() {
	sessionFilterFlag = addFilterFlag(sessionStartCmd.Flags(), &sessionFilter)
	sessionStartCmd.Flags().IntP("count", "n", 10, "number of questions")
	sessionStartCmd.Flags().Bool("reset", false, "ignore and clear saved filters")

	sessionListCmd.Flags().String("since", "", "only sessions started since: 7d, 2w, today, week, 2026-03-01")
	sessionListCmd.Flags().Bool("open", false, "only unfinished sessions")

	sessionCmd.AddCommand(sessionStartCmd, sessionNextCmd, sessionFinishCmd, sessionListCmd, sessionShowCmd)
	rootCmd.AddCommand(sessionCmd)
}
