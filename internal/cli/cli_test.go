package cli_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/raysh454/veritas/internal/cli"
)

func TestParseArgs(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		args []string
		want cli.CLIArgs
	}{
		"no args serves": {
			args: nil,
			want: cli.CLIArgs{Command: cli.CommandServe},
		},
		"flags without command serve": {
			args: []string{"-addr", ":9000", "-config", "veritas.yaml"},
			want: cli.CLIArgs{Command: cli.CommandServe, ListenAddr: ":9000", ConfigPath: "veritas.yaml"},
		},
		"explicit serve": {
			args: []string{"serve", "-log-level", "debug"},
			want: cli.CLIArgs{Command: cli.CommandServe, LogLevel: "debug"},
		},
		"analyze": {
			args: []string{"analyze", "-file", "photo.jpg", "-compact"},
			want: cli.CLIArgs{Command: cli.CommandAnalyze, File: "photo.jpg", Compact: true},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := cli.ParseArgs(tc.args)
			if err != nil {
				t.Fatalf("ParseArgs: %v", err)
			}
			if diff := cmp.Diff(tc.want, *got, cmpopts.IgnoreFields(cli.CLIArgs{}, "RawArgs")); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseArgs_Errors(t *testing.T) {
	t.Parallel()
	tests := map[string][]string{
		"unknown command":   {"scan"},
		"analyze sans file": {"analyze"},
		"blank file":        {"analyze", "-file", "  "},
		"stray argument":    {"serve", "extra"},
	}
	for name, args := range tests {
		if _, err := cli.ParseArgs(args); !errors.Is(err, cli.ErrUsage) {
			t.Errorf("%s: expected ErrUsage, got %v", name, err)
		}
	}

	if _, err := cli.ParseArgs([]string{"-nope"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestParseArgs_KeepsRawArgs(t *testing.T) {
	t.Parallel()
	args := []string{"analyze", "-file", "a.jpg"}
	got, err := cli.ParseArgs(args)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if !cmp.Equal(got.RawArgs, args) {
		t.Errorf("RawArgs = %v", got.RawArgs)
	}
}
