package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/marcus/pratica/internal/output"
	"github.com/marcus/pratica/internal/workdir"
	"github.com/spf13/cobra"
)

var (
	version string
	baseDir string

	debugFlag bool
	jsonFlag  bool
	dirFlag   string
)

// SetVersion records the build version for `pratica version` and --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "pratica",
	Short: "Practice Portuguese exercises and track your progress",
	Long: `pratica - a local-first practice tracker for Portuguese-language exercises.

Attempts, sessions, favorites and collections live in the nearest .pratica/
directory at or above the working directory (or wherever a .pratica-root
file points), and can be synced to a pratica-sync server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if debugFlag {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the command line and exits non-zero on error.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if jsonFlag {
		printJSONError(err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the version",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonFlag {
			return output.JSON(map[string]string{"version": version, "go": runtime.Version(), "platform": runtime.GOOS + "/" + runtime.GOARCH})
		}
		fmt.Println(version)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initBaseDir)

	rootCmd.AddGroup(
		&cobra.Group{ID: "practice", Title: "Practice:"},
		&cobra.Group{ID: "progress", Title: "Progress:"},
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&debugFlag, "debug", false, "log debug output to stderr")
	pf.BoolVar(&jsonFlag, "json", false, "print machine-readable JSON")
	pf.StringVarP(&dirFlag, "dir", "C", "", "workspace directory (default: nearest .pratica above the working directory)")

	rootCmd.AddCommand(versionCmd)
}

func initBaseDir() {
	if dirFlag != "" {
		baseDir = dirFlag
		return
	}
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
		os.Exit(1)
	}
	baseDir = workdir.ResolveBaseDir(wd)
}

func getBaseDir() string {
	return baseDir
}
