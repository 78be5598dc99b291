package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "eventbooker",
		Short:        "イベント予約とライフサイクル管理",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		apiCommand(),
		schedulerCommand(),
		notifierCommand(),
		migrateCommand(),
		mailerCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
