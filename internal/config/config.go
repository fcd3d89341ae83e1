package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"offload/internal/model"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the program settings. The task table lives in a separate
// tasks file so that timestamp write-back never touches the settings file.
type Config struct {
	DaemonPort int      `mapstructure:"daemon_port"`
	DBPath     string   `mapstructure:"db_path"`
	LogFile    string   `mapstructure:"log_file"`
	TasksFile  string   `mapstructure:"tasks_file"`
	Eviction   Eviction `mapstructure:"eviction"`
	Watch      Watch    `mapstructure:"watch"`
}

type Eviction struct {
	Command     string        `mapstructure:"command"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

type Watch struct {
	Enabled    bool          `mapstructure:"enabled"`
	Debounce   time.Duration `mapstructure:"debounce"`
	BufferSize int           `mapstructure:"buffer_size"`
}

var Default = Config{
	DaemonPort: 9777,
	DBPath:     "offload.db",
	TasksFile:  "tasks.yaml",
	Eviction: Eviction{
		Command:     "cloudfile",
		Timeout:     5 * time.Second,
		SettleDelay: 3 * time.Second,
		RetryDelay:  2 * time.Second,
	},
	Watch: Watch{
		Debounce:   2 * time.Second,
		BufferSize: 100,
	},
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	configDir := filepath.Join(home, ".offload")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	viper.SetDefault("daemon_port", Default.DaemonPort)
	viper.SetDefault("db_path", filepath.Join(configDir, Default.DBPath))
	viper.SetDefault("log_file", "")
	viper.SetDefault("tasks_file", filepath.Join(configDir, Default.TasksFile))
	viper.SetDefault("eviction.command", Default.Eviction.Command)
	viper.SetDefault("eviction.timeout", Default.Eviction.Timeout)
	viper.SetDefault("eviction.settle_delay", Default.Eviction.SettleDelay)
	viper.SetDefault("eviction.retry_delay", Default.Eviction.RetryDelay)
	viper.SetDefault("watch.enabled", Default.Watch.Enabled)
	viper.SetDefault("watch.debounce", Default.Watch.Debounce)
	viper.SetDefault("watch.buffer_size", Default.Watch.BufferSize)

	viper.SetEnvPrefix("OFFLOAD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

type tasksFile struct {
	Tasks []model.Task `yaml:"tasks"`
}

// LoadTasks reads the task table. A missing file is an empty table, not an
// error, so a fresh install starts clean.
func LoadTasks(path string) ([]model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tasks file: %w", err)
	}

	var tf tasksFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse tasks file: %w", err)
	}

	seen := make(map[string]bool, len(tf.Tasks))
	for _, t := range tf.Tasks {
		if t.Label == "" {
			return nil, fmt.Errorf("task with empty label in %s", path)
		}
		if seen[t.Label] {
			return nil, fmt.Errorf("duplicate task label %q in %s", t.Label, path)
		}
		seen[t.Label] = true
	}

	return tf.Tasks, nil
}
