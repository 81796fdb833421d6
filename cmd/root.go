// Package cmd implements the evstation CLI.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evstation/app"
	"github.com/kilianp07/evstation/config"
	"github.com/kilianp07/evstation/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "evstation",
	Short: "EV charging station controller",
	Long: `Runs the charging station controller: waiting-area admission, pile
scheduling with time-of-use billing, and the HTTP control API. Time can be
accelerated or pinned at runtime through the /api/time endpoints.`,
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.NewZerologLogger("main")
	log.Infof("station layout: %d piles, waiting capacity %d, api %s",
		len(cfg.Station.Piles), cfg.Station.WaitingCapacity, cfg.API.Addr)
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
