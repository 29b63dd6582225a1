package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"momentum-quiz-service/internal/jobs"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued notification deliveries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" {
				return fmt.Errorf("redis addr not configured")
			}
			notifier, err := newNotifier(cfg, slog.Default())
			if err != nil {
				return err
			}
			return jobs.NewWorker(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, notifier, slog.Default()).Run()
		},
	}
}
