package model_test

import (
	"testing"

	"offload/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in   string
		want model.Phase
	}{
		{"scan", model.PhaseScan},
		{"COPY", model.PhaseCopy},
		{" evict ", model.PhaseEvict},
	}

	for _, tt := range tests {
		phase, err := model.ParsePhase(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, phase)
	}

	_, err := model.ParsePhase("purge")
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Documents", model.Task{Label: "docs", Name: "Documents"}.DisplayName())
	assert.Equal(t, "docs", model.Task{Label: "docs"}.DisplayName())
}
