package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"offload/internal/config"
	"offload/internal/daemon"
	"offload/internal/logger"
	"offload/internal/scheduler"
	"offload/internal/task"
	"offload/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the offload daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		tasks, err := config.LoadTasks(cfg.TasksFile)
		if err != nil {
			return err
		}

		store := config.NewStore(cfg.TasksFile, tasks)
		defer store.Close()

		runner := task.New(store, cfg.Eviction, nil, nil)
		sched := scheduler.New(store, runner, cfg.Watch.BufferSize)

		srv := daemon.NewServer(sched, cfg.DaemonPort)
		srv.Start()

		var watcher *watch.Watcher
		if cfg.Watch.Enabled {
			watcher, err = watch.New(sched, cfg.Watch.Debounce)
			if err != nil {
				return err
			}

			for _, t := range store.Tasks() {
				if err := watcher.Add(t); err != nil {
					logger.Log.Warn("task not watched",
						zap.String("task", t.Label),
						zap.Error(err))
				}
			}

			watcher.Start()
		}

		logger.Log.Info("offload daemon ready",
			zap.Int("port", cfg.DaemonPort),
			zap.Int("tasks", len(store.Tasks())),
			zap.Bool("watch", cfg.Watch.Enabled))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigCh:
		case <-srv.StopCh():
		}

		if watcher != nil {
			watcher.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
