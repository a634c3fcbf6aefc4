package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voip_chat/internal/service/app"
	"voip_chat/internal/service/client"
	"voip_chat/internal/utils/log"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		addr      string
		id        string
		username  string
		plaintext bool
		logFile   string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:          "client",
		Short:        "Terminal chat client",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			// The TUI owns the terminal, so logs go to a file.
			logger, err := log.New(logLevel, logFile)
			if err != nil {
				return err
			}
			log.SetLogger(logger)
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			c, err := client.Dial(dialCtx, addr, client.Options{Plaintext: plaintext, Logger: logger})
			if err != nil {
				return err
			}
			defer c.Close()

			name, err := c.Connect(dialCtx, id, username)
			if err != nil {
				return err
			}
			fmt.Printf("Connected as %s\n", name)

			ui := app.NewApp(c)
			go func() {
				<-ctx.Done()
				ui.Stop()
			}()
			if err := ui.Run(ctx); err != nil {
				log.Error("client stopped", zap.Error(err))
				return err
			}
			ui.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "server address")
	cmd.Flags().StringVar(&id, "id", "", "roster identity")
	cmd.Flags().StringVar(&username, "username", "", "display name sent with CONNECT")
	cmd.Flags().BoolVar(&plaintext, "plaintext", false, "skip the key exchange")
	cmd.Flags().StringVar(&logFile, "log-file", "client.log", "log output path")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}
