package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voip_chat/internal/config"
	"voip_chat/internal/utils/log"
)

var (
	configPath string
	cfg        config.Config
	logger     *zap.Logger
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "server",
		Short:         "Roster-gated private messaging server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(configPath); err != nil {
				return err
			}
			if logger, err = log.New(cfg.LogLevel); err != nil {
				return err
			}
			log.SetLogger(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml or json); VOIP_* env vars override it")

	root.AddCommand(serveCmd(), rosterCmd())
	return root
}
