package model

import (
	"fmt"
	"strings"
	"time"
)

type Phase string

const (
	PhaseScan  Phase = "SCAN"
	PhaseCopy  Phase = "COPY"
	PhaseEvict Phase = "EVICT"
)

// ParsePhase accepts the lowercase wire/CLI spelling.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scan":
		return PhaseScan, nil
	case "copy":
		return PhaseCopy, nil
	case "evict":
		return PhaseEvict, nil
	default:
		return "", fmt.Errorf("unknown phase: %q", s)
	}
}

// IgnoreRule excludes path components by case-insensitive prefix or suffix.
// A matching directory name prunes its whole subtree during a scan.
type IgnoreRule struct {
	Prefixes []string `mapstructure:"startswith" yaml:"startswith,omitempty"`
	Suffixes []string `mapstructure:"endswith" yaml:"endswith,omitempty"`
}

// Task is one configured source→target sync relationship. LastCopyTime and
// LastEvictTime are the only fields the program ever writes back.
type Task struct {
	Label         string       `mapstructure:"label" yaml:"label"`
	Name          string       `mapstructure:"name" yaml:"name,omitempty"`
	Source        string       `mapstructure:"source" yaml:"source"`
	Target        string       `mapstructure:"target" yaml:"target"`
	NameFilter    string       `mapstructure:"name_filter" yaml:"name_filter,omitempty"`
	Ignore        []IgnoreRule `mapstructure:"ignore" yaml:"ignore,omitempty"`
	LastCopyTime  time.Time    `mapstructure:"last_copy_time" yaml:"last_copy_time,omitempty"`
	LastEvictTime time.Time    `mapstructure:"last_evict_time" yaml:"last_evict_time,omitempty"`
}

func (t Task) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Label
}
