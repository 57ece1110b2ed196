package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/danieljhkim/ledgerfs/internal/engine"
)

func TestFormatJSON(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
	}{
		{"simple map", map[string]string{"key": "value"}},
		{"empty map", map[string]string{}},
		{"array", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatJSON(tt.input)
			if err != nil {
				t.Fatalf("formatJSON() error = %v", err)
			}
			var v interface{}
			if err := json.Unmarshal([]byte(got), &v); err != nil {
				t.Errorf("formatJSON() produced invalid JSON: %v", err)
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	got := formatError(os.ErrNotExist)
	if !strings.Contains(got, "Error:") {
		t.Errorf("formatError() = %q, expected to contain 'Error:'", got)
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	orig := errOutput
	errOutput = &buf
	defer func() { errOutput = orig }()

	PrintError(errors.New("disk full"))
	if got := buf.String(); !strings.Contains(got, "Error: disk full") {
		t.Errorf("PrintError() wrote %q, expected it to contain 'Error: disk full'", got)
	}
}

func TestPrintSaveResultWarnings(t *testing.T) {
	var buf bytes.Buffer
	origOut, origNoColor := color.Output, color.NoColor
	color.Output, color.NoColor = &buf, true
	defer func() { color.Output, color.NoColor = origOut, origNoColor }()

	printSaveResult(&engine.SaveResult{
		Written:  []string{"a.json"},
		Warnings: []string{"saved, but cleanup failed: busy"},
	})

	got := buf.String()
	if !strings.Contains(got, "⚠ saved, but cleanup failed: busy") {
		t.Errorf("printSaveResult() output %q is missing the warning", got)
	}
	if !strings.Contains(got, "a.json") {
		t.Errorf("printSaveResult() output %q is missing the written record", got)
	}
}

func TestOutputJSON(t *testing.T) {
	var buf strings.Builder
	if err := outputJSON(&buf, map[string]string{"test": "value"}); err != nil {
		t.Fatalf("outputJSON() error = %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(buf.String()), &v); err != nil {
		t.Fatalf("outputJSON() produced invalid JSON: %v", err)
	}
	if v["test"] != "value" {
		t.Errorf("outputJSON() = %q", buf.String())
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    int
		wantErr bool
	}{
		{"default", nil, 1, false},
		{"explicit", []string{"3"}, 3, false},
		{"zero", []string{"0"}, 0, true},
		{"negative", []string{"-2"}, 0, true},
		{"not a number", []string{"two"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCount(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCount(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseCount(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1500, "1.5 kB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.n); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
