package cmd

import (
	"fmt"
	"slices"
	"time"

	"github.com/marcus/pratica/internal/dateparse"
	"github.com/marcus/pratica/internal/models"
	"github.com/marcus/pratica/internal/output"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show totals, breakdowns and recent attempts",
	GroupID: "progress",
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		recent, _ := cmd.Flags().GetInt("recent")
		stats := a.store.Stats(recent)
		if jsonFlag {
			return output.JSON(stats)
		}

		if report, _ := cmd.Flags().GetBool("report"); report {
			md := output.StatsMarkdown(stats)
			rendered, err := output.RenderMarkdown(md)
			if err != nil {
				fmt.Print(md)
				return nil
			}
			fmt.Print(rendered)
			return nil
		}

		t := stats.Totals
		fmt.Printf("Attempts:  %d\n", t.Attempts)
		fmt.Printf("Accuracy:  %s\n", output.FormatAccuracy(t.Correct, t.Attempts))
		fmt.Printf("Questions: %d\n", t.UniqueQuestionCount)
		if t.LastAttemptAt != nil {
			fmt.Printf("Last:      %s\n", output.FormatMillisAgo(*t.LastAttemptAt))
		}
		if len(stats.RecentAttempts) > 0 {
			fmt.Print(output.SectionHeader("recent"))
			for _, att := range stats.RecentAttempts {
				fmt.Println("  " + output.FormatAttempt(att))
			}
		}
		return nil
	}),
}

var historyCmd = &cobra.Command{
	Use:     "history <question-id>",
	Short:   "List every attempt at a question",
	GroupID: "progress",
	Args:    cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		attempts := a.store.AttemptsFor(args[0])
		if since, _ := cmd.Flags().GetString("since"); since != "" {
			from, err := dateparse.SinceMillis(since, time.Now())
			if err != nil {
				return err
			}
			attempts = slices.DeleteFunc(attempts, func(att models.Attempt) bool { return att.At < from })
		}
		if jsonFlag {
			return output.JSON(attempts)
		}
		if len(attempts) == 0 {
			fmt.Printf("No attempts at %s\n", args[0])
			return nil
		}
		for _, att := range attempts {
			fmt.Println(output.FormatAttempt(att))
		}
		r, _ := a.store.Rollup(args[0])
		fmt.Printf("\nstreak %d (best %d), %s\n", r.Streak, r.BestStreak, output.FormatAccuracy(r.Correct, r.Count))
		return nil
	}),
}

func init() {
	statsCmd.Flags().Int("recent", 10, "how many recent attempts to include")
	statsCmd.Flags().Bool("report", false, "render a markdown report")
	historyCmd.Flags().String("since", "", "only attempts since: 7d, 2w, today, week, 2026-03-01")
	rootCmd.AddCommand(statsCmd, historyCmd)
}
