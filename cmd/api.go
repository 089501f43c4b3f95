package cmd

import (
	"context"

	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/papyr-app/papyr-api/internal/web"
	"github.com/papyr-app/papyr-api/library/log"
)

var apiCMD = &cobra.Command{
	Use:   "api",
	Short: "api",
	Long:  `HTTP API service for papyr`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		svcs, err := buildServices(ctx)
		if err != nil {
			log.Logger.Panic("build services", zap.Error(err))
		}

		// API processes also consume the ingest queue so a single-node
		// deployment needs no separate worker process.
		if err = svcs.docs.StartWorkers(ctx); err != nil {
			log.Logger.Panic("start ingest workers", zap.Error(err))
		}

		srv := web.NewServer(svcs.docs, svcs.chats,
			web.LoadSettingsFromConfig(), log.Logger.Named("web"))
		srv.Run(gconfig.Shared.GetString("listen"))
	},
}

func init() {
	rootCMD.AddCommand(apiCMD)
}
