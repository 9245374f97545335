package main

import (
	"os"

	"github.com/jason-s-yu/skirmish/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "skirmish",
	Short: "Turn-based card duel engine",
	Long: `skirmish runs player-versus-opponent card duels: initiative, action
stacks, contested d20 combat, threats and round-end scenarios.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, ".env files to load (default .env)")
}

// setup loads configuration and builds the process logger.
func setup() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := cfg.Logger()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
