package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "run_progress",
			expected: []string{"run_progress"},
		},
		{
			name:     "two values",
			input:    "run_progress, run_completed",
			expected: []string{"run_progress", "run_completed"},
		},
		{
			name:     "varied spacing",
			input:    "run_started,  run_failed , result_saved",
			expected: []string{"run_started", "run_failed", "result_saved"},
		},
		{
			name:     "no spaces after comma",
			input:    "tfim,xxz",
			expected: []string{"tfim", "xxz"},
		},
		{
			name:     "trailing comma",
			input:    "run_progress,",
			expected: []string{"run_progress"},
		},
		{
			name:     "leading comma",
			input:    ",run_completed",
			expected: []string{"run_completed"},
		},
		{
			name:     "only spaces",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "comma only",
			input:    ",",
			expected: nil,
		},
		{
			name:     "multiple commas",
			input:    ",,run_progress,,archive_created,,",
			expected: []string{"run_progress", "archive_created"},
		},
		{
			name:     "internal spaces preserved",
			input:    "system status, log file",
			expected: []string{"system status", "log file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCSV(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseCSV_PreservesInput(t *testing.T) {
	input := "run_progress, run_completed"
	originalInput := input

	_ = ParseCSV(input)

	assert.Equal(t, originalInput, input, "input should not be modified")
}
