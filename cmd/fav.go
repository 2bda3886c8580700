package cmd

import (
	"fmt"
	"os"

	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/input"
	"github.com/marcus/pratica/internal/output"
	"github.com/spf13/cobra"
)

var favCmd = &cobra.Command{
	Use:     "fav [question-id|-|@file...]",
	Aliases: []string{"favorite"},
	Short:   "Toggle favorites, or list them without arguments",
	GroupID: "practice",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			return listFavorites(a)
		}
		args, err = input.ExpandArgs(args, os.Stdin)
		if err != nil {
			return err
		}

		set, _ := cmd.Flags().GetBool("on")
		unset, _ := cmd.Flags().GetBool("off")
		out := make(map[string]bool, len(args))
		for _, qid := range args {
			switch {
			case set:
				a.store.SetFavorite(qid, true)
				out[qid] = true
			case unset:
				a.store.SetFavorite(qid, false)
				out[qid] = false
			default:
				out[qid] = a.store.ToggleFavorite(qid)
			}
		}
		if jsonFlag {
			return output.JSON(out)
		}
		for _, qid := range args {
			if out[qid] {
				output.Success("%s %s favorited", output.FavoriteMark(true), qid)
			} else {
				fmt.Printf("%s unfavorited\n", qid)
			}
		}
		return nil
	},
}

func listFavorites(a *app) error {
	ids := a.store.Favorites()
	if jsonFlag {
		return output.JSON(ids)
	}
	if len(ids) == 0 {
		fmt.Println("No favorites")
		return nil
	}
	items, err := loadBank(a.baseDir)
	if err != nil {
		// Ids are still useful without the bank.
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}
	for _, id := range ids {
		if q, ok := bank.Find(items, id); ok {
			r, _ := a.store.Rollup(id)
			fmt.Println(output.FormatQuestionShort(q, &r, true))
		} else {
			fmt.Printf("%s (not in bank)\n", id)
		}
	}
	return nil
}

func init() {
	favCmd.Flags().Bool("on", false, "mark as favorite instead of toggling")
	favCmd.Flags().Bool("off", false, "unmark instead of toggling")
	favCmd.MarkFlagsMutuallyExclusive("on", "off")
	rootCmd.AddCommand(favCmd)
}
