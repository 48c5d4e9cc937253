package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"bomstudio/internal/deps"
	"bomstudio/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	yes, no := true, false
	reqs := []deps.Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Key", Configured: &yes},
		{Name: "Absent key", Configured: &no},
	}

	results := deps.CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if !results[2].Available || results[3].Available || results[3].Detail != "not configured" {
		t.Fatalf("unexpected credential results %#v", results[2:])
	}
	if missing := deps.Missing(results); len(missing) != 2 {
		t.Fatalf("expected two missing requirements, got %#v", missing)
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(map[string]string{
		"ffmpeg":  "exit 0",
		"ffprobe": "exit 0",
	}))
	results := deps.CheckBinaries(deps.Requirements(cfg))
	if missing := deps.Missing(results); len(missing) != 0 {
		t.Fatalf("expected nothing missing, got %#v", missing)
	}

	cfg.Voice.APIKey = ""
	cfg.Delivery.Enabled = true
	results = deps.CheckBinaries(deps.Requirements(cfg))
	missing := deps.Missing(results)
	if len(missing) != 2 || missing[0].Name != "ElevenLabs key" || missing[1].Name != "Drive credentials" {
		t.Fatalf("unexpected missing %#v", missing)
	}
}
