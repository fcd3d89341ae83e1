package cmd

import (
	"fmt"
	"time"

	"offload/internal/config"
	"offload/internal/logger"
	"offload/internal/model"
	"offload/internal/repository"
	"offload/internal/scheduler"
	"offload/internal/task"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runAll   bool
	runScan  bool
	runCopy  bool
	runEvict bool
)

var runCmd = &cobra.Command{
	Use:   "run [label]",
	Short: "Run sync phases for one task or all tasks",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		if !runAll && len(args) == 0 {
			return fmt.Errorf("a task label or --all is required")
		}

		tasks, err := config.LoadTasks(cfg.TasksFile)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("no tasks configured")
			return nil
		}

		store := config.NewStore(cfg.TasksFile, tasks)
		defer store.Close()

		runner := task.New(store, cfg.Eviction, nil, nil)
		sched := scheduler.New(store, runner, 0)
		repo := repository.NewRunRepository()

		phases := selectedPhases()

		done := make(chan struct{})
		var failures int
		go func() {
			defer close(done)

			for result := range sched.Events() {
				if result.Status == model.StatusRunning {
					continue
				}

				if err := repo.Save(result); err != nil {
					logger.Log.Warn("failed to save run record",
						zap.Error(err))
				}

				printResult(result)
				if result.Status != model.StatusSuccess {
					failures++
				}
			}
		}()

		if runAll {
			started := sched.RunAll(phases)
			fmt.Printf("running %d tasks: %v\n", started, phases)
		} else {
			if err := sched.RunTask(args[0], phases); err != nil {
				sched.Close()
				<-done
				return err
			}
		}

		sched.Close()
		<-done

		if failures > 0 {
			fmt.Printf("done with %d phase(s) not fully successful\n", failures)
		}
		return nil
	},
}

// selectedPhases folds in the phase dependencies: evict needs a copy, copy
// needs a scan. No flags means scan+copy.
func selectedPhases() []model.Phase {
	if !runScan && !runCopy && !runEvict {
		return scheduler.DefaultPhases
	}

	if runEvict {
		runCopy = true
	}
	if runCopy {
		runScan = true
	}

	var phases []model.Phase
	if runScan {
		phases = append(phases, model.PhaseScan)
	}
	if runCopy {
		phases = append(phases, model.PhaseCopy)
	}
	if runEvict {
		phases = append(phases, model.PhaseEvict)
	}

	return phases
}

func printResult(r model.PhaseResult) {
	mark := "✓"
	if r.Status != model.StatusSuccess {
		mark = "✗"
	}

	fmt.Printf("%s %-12s %-5s %-7s processed=%d skipped=%d failed=%d elapsed=%s\n",
		mark, r.TaskLabel, r.Phase, r.Status,
		r.FilesProcessed, r.FilesSkipped, r.FilesFailed,
		r.Elapsed.Round(time.Millisecond))

	for _, path := range r.FailedEvictions {
		fmt.Printf("    eviction failed: %s\n", path)
	}
}

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every configured task")
	runCmd.Flags().BoolVar(&runScan, "scan", false, "run the scan phase")
	runCmd.Flags().BoolVar(&runCopy, "copy", false, "run the copy phase (implies --scan)")
	runCmd.Flags().BoolVar(&runEvict, "evict", false, "run the evict phase (implies --copy)")
	rootCmd.AddCommand(runCmd)
}
