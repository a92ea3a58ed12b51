package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kitchenops/mealgroom/internal/config"
	"github.com/kitchenops/mealgroom/internal/log"
	"github.com/kitchenops/mealgroom/internal/userconfig"
)

// Version is the current version of mealgroom
var Version = "0.2.0"

var (
	flagVerbose bool
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "mealgroom",
	Short: "Batch-resolve unparsed ingredients on a Mealie server",
	Long: `mealgroom finds recipe ingredients whose free text was never matched to
a unit or food, groups them by pattern, and lets you resolve each pattern
once: create the missing unit or food, or attach the text as an alias to
an existing entry. Every ingredient sharing the pattern is then rewritten
in one batch.

Progress is journaled to a session file, so an interrupted run resumes
where it left off.

Configuration comes from the environment:
  MEALIE_URL      base URL of the Mealie instance (required)
  MEALIE_API_KEY  API token (required)`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		if flagQuiet {
			level = slog.LevelWarn
		}
		log.SetDefault(log.NewText(os.Stderr, level))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log warnings and errors")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err: err}
	})
}

// loadConfig builds the effective configuration: environment first, then
// file-backed defaults for anything the environment left unset.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	userCfg, err := userconfig.Load(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	userCfg.Apply(cfg)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitWithCode(exitCodeFor(err))
	}
}
