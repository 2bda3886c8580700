package cmd

import (
	"errors"
	"os"

	"github.com/marcus/pratica/internal/output"
	"github.com/marcus/pratica/internal/store"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export [file]",
	Short:   "Export all progress as JSON (or attempts as CSV)",
	GroupID: "data",
	Args:    cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if asCSV, _ := cmd.Flags().GetBool("csv"); asCSV {
			w := os.Stdout
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return a.store.WriteAttemptsCSV(w)
		}
		data, err := a.store.Export()
		if err != nil {
			return err
		}
		return writeOut(args, data)
	}),
}

var importCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import a progress export",
	Long: `Merges a progress export into the local store. With --replace the
file's contents replace local progress instead.`,
	GroupID: "data",
	Args:    cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		data, err := readIn(args[0])
		if err != nil {
			return err
		}
		replace, _ := cmd.Flags().GetBool("replace")
		if err := a.store.Import(data, store.ImportOptions{Replace: replace}); err != nil {
			return err
		}
		if replace {
			output.Success("REPLACED local progress from %s", args[0])
		} else {
			output.Success("MERGED %s", args[0])
		}
		return nil
	}),
}

var clearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Erase all local progress",
	GroupID: "data",
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			ok, err := confirm("Apagar todo o progresso local?")
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("aborted (use --force when not in a terminal)")
			}
		}
		a.store.Clear()
		output.Success("CLEARED local progress")
		return nil
	}),
}

func init() {
	exportCmd.Flags().Bool("csv", false, "write attempts as CSV")
	importCmd.Flags().Bool("replace", false, "replace local progress instead of merging")
	clearCmd.Flags().Bool("force", false, "skip confirmation")
	rootCmd.AddCommand(exportCmd, importCmd, clearCmd)
}
