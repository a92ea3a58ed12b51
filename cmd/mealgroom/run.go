package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kitchenops/mealgroom/internal/config"
	"github.com/kitchenops/mealgroom/internal/log"
	"github.com/kitchenops/mealgroom/internal/mealie"
	"github.com/kitchenops/mealgroom/internal/orchestrator"
	"github.com/kitchenops/mealgroom/internal/session"
)

var flagParser string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive resolution session",
	Long: `Fetch the recipe snapshot, analyze unparsed ingredient patterns, and
walk through them interactively. Each decision is applied to every
matching ingredient as one batch, and progress is saved after every
step so the session can be resumed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runSession(cmd.Context(), cfg)
	},
}

func init() {
	runCmd.Flags().StringVar(&flagParser, "parser", "nlp",
		"server-side parser used for advisory hints (nlp or brute)")
	rootCmd.AddCommand(runCmd)
}

// newClient builds the shared recipe-service client from configuration.
func newClient(cfg *config.Config) *mealie.Client {
	return mealie.New(mealie.Options{
		BaseURL:    cfg.ServerURL,
		Token:      cfg.Token,
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.MaxRetries,
		PoolSize:   config.MaxPoolSize,
		Logger:     log.Default(),
	})
}

func runSession(ctx context.Context, cfg *config.Config) error {
	if err := cfg.EnsureHomeDir(); err != nil {
		return err
	}

	// First interrupt stops new work gracefully; a second one kills.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newClient(cfg)
	store := session.NewStore(cfg.SessionFile, log.Default())
	ui := newConsoleUI(os.Stdin, os.Stdout)

	orch := orchestrator.New(orchestrator.Options{
		Client:              client,
		Store:               store,
		UI:                  ui,
		BatchWidth:          cfg.BatchWidth,
		SimilarityThreshold: cfg.SimilarityThreshold,
		Parser:              flagParser,
		Progress:            ui.progressEvent,
		Logger:              log.Default(),
	})
	return orch.Run(ctx)
}
