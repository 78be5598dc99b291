package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Whoagir/Afisha/internal/config"
	"github.com/Whoagir/Afisha/internal/infrastructure/notifier"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
)

// mailerCommand はローカル開発用の配送サービス。受け取った通知をログに出す
func mailerCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "mailer",
		Short: "通知をログに出すだけの配送サービスを起動する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.Init(cfg.Log.Env, cfg.Log.Level)
			defer logger.Sync()

			if addr == "" {
				addr = cfg.Notification.GRPCAddr
			}
			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen に失敗: %w", err)
			}

			srv := notifier.NewGRPCServer(log, notifier.NewServer(notifier.LogHandler(log.Named("mailer"))))
			go func() {
				<-cmd.Context().Done()
				srv.GracefulStop()
			}()

			log.Info("配送サービスを起動します", zap.String("addr", addr))
			return srv.Serve(lis)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "待ち受けアドレス（省略時は NOTIFIER_GRPC_ADDR）")
	return cmd
}
