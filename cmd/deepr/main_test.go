package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hession/deepr/internal/cli"
	"github.com/hession/deepr/internal/config"
)

func TestLogConfigInfo(t *testing.T) {
	keys := []string{"test-api-key-12345", "short", ""}
	for _, key := range keys {
		cfg := config.DefaultConfig()
		cfg.Model.APIKey = key

		// Should not panic
		logConfigInfo(cfg)
	}
}

func TestVersion(t *testing.T) {
	if version != "0.1.0" {
		t.Errorf("Expected version '0.1.0', got '%s'", version)
	}

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if out.String() != "deepr v0.1.0\n" {
		t.Errorf("Unexpected version output %q", out.String())
	}
}

func TestValidateOptions(t *testing.T) {
	valid := cli.Options{Breadth: 2, Depth: 1, Mode: "report"}

	tests := []struct {
		name    string
		mutate  func(o *cli.Options)
		wantErr string
	}{
		{"valid", func(o *cli.Options) {}, ""},
		{"answer mode", func(o *cli.Options) { o.Mode = "answer" }, ""},
		{"breadth too small", func(o *cli.Options) { o.Breadth = 1 }, "breadth"},
		{"depth zero", func(o *cli.Options) { o.Depth = 0 }, "depth"},
		{"bad mode", func(o *cli.Options) { o.Mode = "pdf" }, "mode"},
		{"negative followups", func(o *cli.Options) { o.Followups = -1 }, "followups"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			err := validateOptions(opts)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"research"},
		{"questions"},
		{"history", "list"},
		{"history", "show"},
		{"history", "search"},
		{"history", "delete"},
		{"history", "clear"},
		{"history", "export"},
		{"history", "import"},
		{"config"},
		{"version"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("Expected command %v to exist", path)
		}
	}

	research, _, _ := root.Find([]string{"research"})
	for _, flag := range []string{"breadth", "depth", "mode", "followups", "no-followups", "output", "raw"} {
		if research.Flags().Lookup(flag) == nil {
			t.Errorf("Expected research flag --%s", flag)
		}
	}
}

func TestHistoryListEmpty(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEEPR_HISTORY_DB_PATH", filepath.Join(dir, "history.db"))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config-dir", dir, "history", "list"})
	if err := root.Execute(); err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	if strings.TrimSpace(out.String()) != "No research history yet" {
		t.Errorf("Unexpected output %q", out.String())
	}
}
