package config

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseCLI(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		check         func(t *testing.T, o *CLIOptions)
		expectError   bool
		errorContains string
	}{
		{
			name: "No arguments",
			args: nil,
			check: func(t *testing.T, o *CLIOptions) {
				if o.Mode != "" || len(o.Directories) != 0 {
					t.Errorf("expected empty options, got %+v", o)
				}
			},
		},
		{
			name: "Help",
			args: []string{"-help"},
			check: func(t *testing.T, o *CLIOptions) {
				if !o.ShowHelp {
					t.Error("ShowHelp not set")
				}
			},
		},
		{
			name: "Statistics with interspersed flags",
			args: []string{"statistics", "-csv", "out.csv", "logs/a", "-elo", "1300", "logs/b"},
			check: func(t *testing.T, o *CLIOptions) {
				if o.Mode != "statistics" || o.CSVPath != "out.csv" {
					t.Errorf("Mode = %q, CSVPath = %q", o.Mode, o.CSVPath)
				}
				if !o.MinimumEloSet || o.MinimumElo != 1300 {
					t.Errorf("MinimumElo = %v (set %v)", o.MinimumElo, o.MinimumEloSet)
				}
				if strings.Join(o.Directories, ",") != "logs/a,logs/b" {
					t.Errorf("Directories = %v", o.Directories)
				}
			},
		},
		{
			name: "Statistics alias without minimum ELO",
			args: []string{"winrates", "-pretty", "table.txt", "logs"},
			check: func(t *testing.T, o *CLIOptions) {
				if o.Mode != "statistics" || o.HumanReadablePath != "table.txt" || o.MinimumEloSet {
					t.Errorf("unexpected options %+v", o)
				}
			},
		},
		{
			name: "Explicit zero minimum ELO",
			args: []string{"stats", "-minimum-elo", "0", "logs"},
			check: func(t *testing.T, o *CLIOptions) {
				if !o.MinimumEloSet {
					t.Error("MinimumEloSet not set for an explicit zero")
				}
			},
		},
		{
			name: "Search with global flags",
			args: []string{"-j", "4", "-exclude", "private", "s", "Annika", "-w", "-f", "logs"},
			check: func(t *testing.T, o *CLIOptions) {
				if o.Threads != 4 || o.Exclude != "private" {
					t.Errorf("Threads = %d, Exclude = %q", o.Threads, o.Exclude)
				}
				if o.Mode != "search" || o.Username != "Annika" || !o.WinsOnly || !o.ForfeitsOnly {
					t.Errorf("unexpected search options %+v", o)
				}
				if len(o.Directories) != 1 || o.Directories[0] != "logs" {
					t.Errorf("Directories = %v", o.Directories)
				}
			},
		},
		{
			name: "Anonymize",
			args: []string{"-collection", "ladder", "anonymize", "-o", "out", "-safe"},
			check: func(t *testing.T, o *CLIOptions) {
				if o.Collection != "ladder" || o.OutputDir != "out" || !o.Safe || len(o.Directories) != 0 {
					t.Errorf("unexpected anonymize options %+v", o)
				}
			},
		},
		{
			name:          "Search without username",
			args:          []string{"search"},
			expectError:   true,
			errorContains: "username is required",
		},
		{
			name:          "Unknown command",
			args:          []string{"export", "logs"},
			expectError:   true,
			errorContains: "invalid mode",
		},
		{
			name:          "Flag of another command",
			args:          []string{"statistics", "-safe", "logs"},
			expectError:   true,
			errorContains: "statistics",
		},
		{
			name:        "Unknown global flag",
			args:        []string{"-bogus", "statistics"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseCLI(tt.args)
			checkError(t, err, tt.expectError, tt.errorContains)
			if err == nil && tt.check != nil {
				tt.check(t, opts)
			}
		})
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf, "battletools")
	out := buf.String()
	for _, want := range []string{"statistics", "search", "anonymize", "-minimum-elo", "-safe", "battletools"} {
		if !strings.Contains(out, want) {
			t.Errorf("usage does not mention %q", want)
		}
	}
}
