package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workflow-report-cli/internal/storage"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove report output older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		days := cleanupDays
		if !cmd.Flags().Changed("days") && cfg.Storage.RetentionDays > 0 {
			days = cfg.Storage.RetentionDays
		}

		store, err := storage.NewLocalStore(cfg.Storage.Dir, zap.L())
		if err != nil {
			return err
		}

		removed, err := store.CleanupOldFiles(time.Duration(days) * 24 * time.Hour)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d run directories older than %d days\n", removed, days)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "remove output older than this many days")
	rootCmd.AddCommand(cleanupCmd)
}
