package cmd

import (
	"fmt"

	"offload/internal/config"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List configured sync tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := config.LoadTasks(cfg.TasksFile)
		if err != nil {
			return err
		}

		if len(tasks) == 0 {
			fmt.Println("no tasks configured")
			return nil
		}

		fmt.Printf("%-12s %-30s %-30s %-20s %s\n",
			"LABEL", "SOURCE", "TARGET", "LAST COPY", "LAST EVICT")

		for _, t := range tasks {
			lastCopy, lastEvict := "-", "-"
			if !t.LastCopyTime.IsZero() {
				lastCopy = t.LastCopyTime.Format("2006-01-02 15:04:05")
			}
			if !t.LastEvictTime.IsZero() {
				lastEvict = t.LastEvictTime.Format("2006-01-02 15:04:05")
			}

			fmt.Printf("%-12s %-30s %-30s %-20s %s\n",
				t.Label, t.Source, t.Target, lastCopy, lastEvict)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
