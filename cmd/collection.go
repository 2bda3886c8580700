package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/input"
	"github.com/marcus/pratica/internal/output"
	"github.com/spf13/cobra"
)

var collectionCmd = &cobra.Command{
	Use:     "collection",
	Aliases: []string{"col", "collections"},
	Short:   "Manage named question collections",
	GroupID: "practice",
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an empty collection",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		id := a.store.CreateCollection(name)
		if jsonFlag {
			return output.JSON(map[string]string{"id": id})
		}
		output.Success("CREATED %s", id)
		return nil
	}),
}

var collectionRenameCmd = &cobra.Command{
	Use:   "rename <collection-id> <name>",
	Short: "Rename a collection",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if !a.store.RenameCollection(args[0], args[1]) {
			return fmt.Errorf("collection %s: %w", args[0], errNotFound)
		}
		output.Success("RENAMED %s", args[0])
		return nil
	}),
}

var collectionDeleteCmd = &cobra.Command{
	Use:     "delete <collection-id>",
	Aliases: []string{"rm-col"},
	Short:   "Delete a collection",
	Args:    cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if !a.store.DeleteCollection(args[0]) {
			return fmt.Errorf("collection %s: %w", args[0], errNotFound)
		}
		output.Success("DELETED %s", args[0])
		return nil
	}),
}

var collectionAddCmd = &cobra.Command{
	Use:   "add <collection-id> <question-id|-|@file...>",
	Short: "Add questions to a collection",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if _, ok := a.store.Collection(args[0]); !ok {
			return fmt.Errorf("collection %s: %w", args[0], errNotFound)
		}
		qids, err := input.ExpandArgs(args[1:], os.Stdin)
		if err != nil {
			return err
		}
		added := 0
		for _, qid := range qids {
			if a.store.AddToCollection(args[0], qid) {
				added++
			}
		}
		output.Success("ADDED %d to %s", added, args[0])
		return nil
	}),
}

var collectionRemoveCmd = &cobra.Command{
	Use:   "rm <collection-id> <question-id|-|@file...>",
	Short: "Remove questions from a collection",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if _, ok := a.store.Collection(args[0]); !ok {
			return fmt.Errorf("collection %s: %w", args[0], errNotFound)
		}
		qids, err := input.ExpandArgs(args[1:], os.Stdin)
		if err != nil {
			return err
		}
		removed := 0
		for _, qid := range qids {
			if a.store.RemoveFromCollection(args[0], qid) {
				removed++
			}
		}
		output.Success("REMOVED %d from %s", removed, args[0])
		return nil
	}),
}

var collectionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List collections",
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		cols := a.store.Collections()
		if jsonFlag {
			return output.JSON(cols)
		}
		if len(cols) == 0 {
			fmt.Println("No collections")
			return nil
		}
		for _, c := range cols {
			fmt.Println(output.FormatCollection(c))
		}
		return nil
	}),
}

var collectionShowCmd = &cobra.Command{
	Use:   "show <collection-id>",
	Short: "Show a collection's questions",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		c, ok := a.store.Collection(args[0])
		if !ok {
			return fmt.Errorf("collection %s: %w", args[0], errNotFound)
		}
		if jsonFlag {
			return output.JSON(c)
		}
		fmt.Println(output.FormatCollection(c))
		items, _ := loadBank(a.baseDir)
		for _, qid := range c.QuestionIDs {
			if q, ok := bank.Find(items, qid); ok {
				r, _ := a.store.Rollup(qid)
				fmt.Println("  " + output.FormatQuestionShort(q, &r, a.store.IsFavorite(qid)))
			} else {
				fmt.Printf("  %s\n", qid)
			}
		}
		return nil
	}),
}

var collectionExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write collections as JSON to a file or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		data, err := a.store.ExportCollections()
		if err != nil {
			return err
		}
		return writeOut(args, data)
	}),
}

var collectionImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Merge collections from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		data, err := readIn(args[0])
		if err != nil {
			return err
		}
		n, err := a.store.ImportCollections(data)
		if err != nil {
			return err
		}
		output.Success("IMPORTED %d collections", n)
		return nil
	}),
}

// writeOut writes data to the file in args, or stdout when none.
func writeOut(args []string, data []byte) error {
	if len(args) == 0 || args[0] == "-" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return err
	}
	output.Success("WROTE %s", args[0])
	return nil
}

// readIn reads path, or stdin for "-".
func readIn(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func init() {
	collectionCmd.AddCommand(
		collectionCreateCmd, collectionRenameCmd, collectionDeleteCmd,
		collectionAddCmd, collectionRemoveCmd, collectionListCmd,
		collectionShowCmd, collectionExportCmd, collectionImportCmd,
	)
	rootCmd.AddCommand(collectionCmd)
}
