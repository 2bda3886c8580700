package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/config"
	"github.com/marcus/pratica/internal/models"
	"github.com/marcus/pratica/internal/output"
	"github.com/marcus/pratica/internal/suggest"
	"github.com/spf13/cobra"
)

var (
	listFilter     bank.Filter
	listFilterFlag *filterValue
)

var questionsCmd = &cobra.Command{
	Use:     "questions",
	Aliases: []string{"ls", "list"},
	Short:   "List questions of the bank",
	Long: `Lists bank questions matching the filters, one page at a time.

Filters given with --filter are remembered for the next run and for new
sessions; --reset clears them.`,
	GroupID: "practice",
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

		filter, err := resolveFilter(a.baseDir, cmd, listFilter, listFilterFlag)
		if err != nil {
			return err
		}
		matched := filter.Apply(items)

		if favOnly, _ := cmd.Flags().GetBool("fav"); favOnly {
			matched = keepIDs(matched, a.store.Favorites())
		}
		if colID, _ := cmd.Flags().GetString("collection"); colID != "" {
			col, ok := a.store.Collection(colID)
			if !ok {
				return fmt.Errorf("collection %s: %w", colID, errNotFound)
			}
			matched = keepIDs(matched, col.QuestionIDs)
		}

		page, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("size")
		if size == 0 {
			size = config.GetPageSize(a.baseDir)
		}
		p := bank.Paginate(matched, page, size)

		if jsonFlag {
			return output.JSON(p)
		}
		if p.Total == 0 {
			fmt.Println("No questions match")
			hintFilterValue("category", filter.Category, bank.Categories(items))
			hintFilterValue("difficulty", filter.Difficulty, bank.Difficulties(items))
			return nil
		}
		for _, q := range p.Items {
			r, _ := a.store.Rollup(q.ID)
			fmt.Println(output.FormatQuestionShort(q, &r, a.store.IsFavorite(q.ID)))
		}
		fmt.Printf("\npage %d/%d, %d questions\n", p.Page, p.Pages, p.Total)
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Short:   "List the categories and difficulties of the bank",
	GroupID: "practice",
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := loadBank(getBaseDir())
		if err != nil {
			output.Error("load question bank: %v", err)
			return err
		}
		cats, difs := bank.Categories(items), bank.Difficulties(items)
		if jsonFlag {
			return output.JSON(map[string][]string{"categories": cats, "difficulties": difs})
		}
		fmt.Print(output.SectionHeader("categories"))
		for _, c := range cats {
			fmt.Println("  " + c)
		}
		fmt.Print(output.SectionHeader("difficulties"))
		for _, d := range difs {
			fmt.Println("  " + d)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <question-id>",
	Short:   "Show a question with your progress on it",
	GroupID: "practice",
	Args:    cobra.ExactArgs(1),
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
		r, hasRollup := a.store.Rollup(q.ID)

		if jsonFlag {
			out := map[string]any{
				"question":    q,
				"favorite":    a.store.IsFavorite(q.ID),
				"collections": a.store.CollectionsContaining(q.ID),
				"attempts":    a.store.AttemptsFor(q.ID),
			}
			if hasRollup {
				out["rollup"] = r
			}
			return output.JSON(out)
		}
		fmt.Print(output.FormatQuestionLong(q, &r, a.store.IsFavorite(q.ID), a.store.CollectionsContaining(q.ID)))
		return nil
	},
}

// resolveFilter returns the flag filter when given (and remembers it) or the
// saved one otherwise.
func resolveFilter(dir string, cmd *cobra.Command, f bank.Filter, v *filterValue) (bank.Filter, error) {
	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		f = bank.Filter{}
		if err := config.SetFilters(dir, f.Model()); err != nil {
			return f, err
		}
		return f, nil
	}
	if v.Changed() {
		if err := config.SetFilters(dir, f.Model()); err != nil {
			return f, err
		}
		return f, nil
	}
	saved, err := config.GetFilters(dir)
	if err != nil {
		return f, err
	}
	return bank.FromModel(saved), nil
}

// hintFilterValue suggests close bank values for a mistyped filter value.
func hintFilterValue(name, value string, known []string) {
	if value == "" || value == models.FilterAll {
		return
	}
	if hints := suggest.Similar(value, known); len(hints) > 0 {
		output.Info("unknown %s %q, did you mean: %s?", name, value, strings.Join(hints, ", "))
	}
}

func keepIDs(items []bank.Question, ids []string) []bank.Question {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []bank.Question
	for _, q := range items {
		if set[q.ID] {
			out = append(out, q)
		}
	}
	return out
}

func init() {
	listFilterFlag = addFilterFlag(questionsCmd.Flags(), &listFilter)
	questionsCmd.Flags().Int("page", 1, "page number")
	questionsCmd.Flags().Int("size", 0, "page size (default from workspace config)")
	questionsCmd.Flags().Bool("fav", false, "only favorites")
	questionsCmd.Flags().String("collection", "", "only questions of this collection")
	questionsCmd.Flags().Bool("reset", false, "clear saved filters")
	rootCmd.AddCommand(questionsCmd, categoriesCmd, showCmd)
}
