package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"offload/internal/scheduler"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result struct {
			Tasks []scheduler.Snapshot `json:"tasks"`
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		if len(result.Tasks) == 0 {
			fmt.Println("no tasks configured")
			return nil
		}

		fmt.Printf("%-12s %-8s %-6s %-20s %s\n",
			"TASK", "STATE", "PHASE", "LAST COPY", "LAST RESULT")

		for _, snap := range result.Tasks {
			state := "idle"
			phase := "-"
			if snap.Running {
				state = "running"
				phase = string(snap.Phase)
			}

			lastCopy := "-"
			if !snap.LastCopyTime.IsZero() {
				lastCopy = snap.LastCopyTime.Format("2006-01-02 15:04:05")
			}

			lastResult := "-"
			if snap.LastResult != nil {
				lastResult = fmt.Sprintf("%s %s (%d processed, %d failed)",
					snap.LastResult.Phase, snap.LastResult.Status,
					snap.LastResult.FilesProcessed, snap.LastResult.FilesFailed)
			}

			fmt.Printf("%-12s %-8s %-6s %-20s %s\n",
				snap.Label, state, phase, lastCopy, lastResult)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
