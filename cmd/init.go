package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcus/pratica/internal/config"
	"github.com/marcus/pratica/internal/db"
	"github.com/marcus/pratica/internal/output"
	"github.com/marcus/pratica/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize a pratica workspace",
	Long:    `Creates the local .pratica directory with its SQLite store.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()
		existed := db.Exists(dir)

		database, err := db.Initialize(dir)
		if err != nil {
			output.Error("failed to initialize database: %v", err)
			return err
		}
		defer database.Close()

		// Writes the empty document on first open.
		store.New(database, nil)

		if bankPath, _ := cmd.Flags().GetString("bank"); bankPath != "" {
			if err := config.SetQuestionBank(dir, bankPath); err != nil {
				output.Error("failed to save question bank path: %v", err)
				return err
			}
		}

		if existed {
			output.Warning(".pratica/ already exists")
		} else {
			fmt.Println("INITIALIZED .pratica/")
			addToGitignore(filepath.Join(dir, ".gitignore"))
		}

		path, _ := config.GetQuestionBank(dir)
		if _, err := os.Stat(path); err != nil {
			output.Warning("question bank %s not found; set one with 'pratica init --bank <file>'", path)
		}
		return nil
	},
}

// addToGitignore appends .pratica/ to an existing .gitignore once.
func addToGitignore(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == ".pratica/" || strings.TrimSpace(line) == ".pratica" {
			return
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	prefix := ""
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		prefix = "\n"
	}
	fmt.Fprintf(f, "%s.pratica/\n", prefix)
}

func init() {
	initCmd.Flags().String("bank", "", "question bank JSON file (default: exercicios.json)")
	rootCmd.AddCommand(initCmd)
}
