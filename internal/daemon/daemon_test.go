package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"bomstudio/internal/config"
	"bomstudio/internal/daemon"
	"bomstudio/internal/logging"
	"bomstudio/internal/store"
	"bomstudio/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config, s store.Store) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	stages, err := daemon.BuildStages(cfg, logger)
	if err != nil {
		t.Fatalf("BuildStages: %v", err)
	}
	d, err := daemon.New(cfg, s, logger, stages, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("daemon-secret"))
	s := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, s)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.APIAddress == "" {
		t.Fatal("expected api address")
	}
	if len(status.Dependencies) == 0 {
		t.Fatal("expected dependency report")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	resp, err := http.Get("http://" + status.APIAddress + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", resp.StatusCode, body)
	}

	unauth, err := http.Get("http://" + status.APIAddress + "/api/v1/clients")
	if err != nil {
		t.Fatalf("GET clients: %v", err)
	}
	unauth.Body.Close()
	if unauth.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", unauth.StatusCode)
	}
	req, _ := http.NewRequest(http.MethodGet, "http://"+status.APIAddress+"/api/v1/clients", nil)
	req.Header.Set("Authorization", "Bearer daemon-secret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET clients with token: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", authed.StatusCode)
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	first := newDaemon(t, cfg, s)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start first: %v", err)
	}

	second := newDaemon(t, cfg, s)
	err := second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestDaemonStartRollsBackInterruptedPipelines(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	_, _, v := testsupport.SeedVideo(t, s)
	testsupport.SetVideoStatus(t, s, v, store.VideoRendering)

	d := newDaemon(t, cfg, s)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, err := s.GetVideo(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.Status != store.VideoScripting || got.PipelineRunning {
		t.Fatalf("expected rollback to scripting, got %s running=%v", got.Status, got.PipelineRunning)
	}
	if got.ApprovalNote == nil || !strings.Contains(*got.ApprovalNote, "interrupted") {
		t.Fatalf("expected interruption note, got %v", got.ApprovalNote)
	}
}
