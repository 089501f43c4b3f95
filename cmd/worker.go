package cmd

import (
	"context"
	"os/signal"
	"syscall"

	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/papyr-app/papyr-api/library/log"
)

var workerCMD = &cobra.Command{
	Use:   "worker",
	Short: "worker",
	Long:  `document ingestion worker for papyr`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(),
			syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svcs, err := buildServices(ctx)
		if err != nil {
			log.Logger.Panic("build services", zap.Error(err))
		}

		if err = svcs.docs.StartWorkers(ctx); err != nil {
			log.Logger.Panic("start ingest workers", zap.Error(err))
		}

		log.Logger.Info("ingest workers running")
		<-ctx.Done()
		log.Logger.Info("shutting down")
	},
}

func init() {
	rootCMD.AddCommand(workerCMD)
}
