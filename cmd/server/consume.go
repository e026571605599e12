package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/book-ratings-api/internal/queue"
)

var auditDir string

// consumeCmd drains the domain event queue into the audit log.
var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume domain events and append them to the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		if cfg.AMQPURL == "" {
			return errors.New("RABBITMQ_URL is not set")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		audit := &queue.AuditLog{Dir: auditDir}
		err = queue.RunConsumer(ctx, cfg.AMQPURL, cfg.EventsQueue, audit.Handle, log)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	consumeCmd.Flags().StringVar(&auditDir, "dir", "logs", "directory holding audit.log")
	rootCmd.AddCommand(consumeCmd)
}
