package cmd

import (
	"fmt"

	"offload/internal/model"
	"offload/internal/repository"

	"github.com/spf13/cobra"
)

var (
	historyN      int
	historyTask   string
	historyFailed bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent run results",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := repository.NewRunRepository()

		var (
			records []model.RunRecord
			err     error
		)
		switch {
		case historyFailed:
			records, err = repo.GetFailed()
		case historyTask != "":
			records, err = repo.GetByTask(historyTask, historyN)
		default:
			records, err = repo.GetRecent(historyN)
		}
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, r := range records {
			mark := "✓"
			if r.Status != model.StatusSuccess {
				mark = "✗"
			}

			fmt.Printf("%s [%s] %-12s %-5s %-7s processed=%d failed=%d\n",
				mark,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.TaskLabel, r.Phase, r.Status,
				r.FilesProcessed, r.FilesFailed)

			for _, path := range r.FailedEvictionPaths() {
				fmt.Printf("    eviction failed: %s\n", path)
			}
		}

		stats, err := repo.GetStats()
		if err != nil {
			return err
		}
		fmt.Printf("\n%d runs total, %d succeeded, %d partial/failed\n",
			stats.Total, stats.Success, stats.Failed)

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of entries to show")
	historyCmd.Flags().StringVar(&historyTask, "task", "", "filter by task label")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "show only partial/failed phases")
	rootCmd.AddCommand(historyCmd)
}
