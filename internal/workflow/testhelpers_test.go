package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"bomstudio/internal/config"
	"bomstudio/internal/logging"
	"bomstudio/internal/notifications"
	"bomstudio/internal/services"
	"bomstudio/internal/services/render"
	"bomstudio/internal/services/scriptgen"
	"bomstudio/internal/store"
	"bomstudio/internal/store/sqlite"
	"bomstudio/internal/testsupport"
	"bomstudio/internal/workflow"
)

type fakeScript struct {
	mu     sync.Mutex
	briefs []scriptgen.Brief
	block  chan struct{}
	err    error
}

func (f *fakeScript) GenerateScript(ctx context.Context, brief scriptgen.Brief) (*store.Script, error) {
	f.mu.Lock()
	f.briefs = append(f.briefs, brief)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &store.Script{
		Hook: "Stop scrolling.",
		Scenes: []store.Scene{
			{Text: "We bake daily.", Visual: "bakery"},
			{Text: "Fresh bread.", Visual: "bread"},
			{Text: "Open early.", Visual: "sunrise"},
		},
		CTA: "Visit today.",
	}, nil
}

func (f *fakeScript) lastBrief() scriptgen.Brief {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.briefs[len(f.briefs)-1]
}

type fakePrompts struct{}

func (fakePrompts) GeneratePrompts(_ context.Context, script *store.Script, industry string) ([]string, error) {
	prompts := make([]string, len(script.Scenes))
	for i, scene := range script.Scenes {
		prompts[i] = fmt.Sprintf("%s for %s", scene.Visual, industry)
	}
	return prompts, nil
}

// fakeImages fails when a prompt index is listed in failAt.
type fakeImages struct {
	t      *testing.T
	st     store.Store
	failAt map[int]bool
	seen   store.VideoStatus
}

func (f *fakeImages) GenerateAll(ctx context.Context, prompts []string) ([]string, error) {
	if id, ok := services.VideoIDFromContext(ctx); ok {
		if v, err := f.st.GetVideo(ctx, id); err == nil {
			f.seen = v.Status
		}
	}
	urls := make([]string, len(prompts))
	for i := range prompts {
		if f.failAt[i] {
			return nil, services.Wrap(services.ErrGeneration, "images", "generate", fmt.Sprintf("prompt %d failed", i), nil)
		}
		urls[i] = fmt.Sprintf("https://images.test/%d.png", i)
	}
	return urls, nil
}

type fakeVoice struct {
	language string
}

func (f *fakeVoice) Synthesize(_ context.Context, text, language, _ string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("empty text")
	}
	f.language = language
	return []byte("ID3" + text), nil
}

type fakeRender struct {
	dir  string
	err  error
	seen store.VideoStatus
	st   store.Store
	req  render.Request
}

func (f *fakeRender) Render(ctx context.Context, req render.Request) (render.Result, error) {
	f.req = req
	if v, err := f.st.GetVideo(ctx, req.VideoID); err == nil {
		f.seen = v.Status
	}
	if f.err != nil {
		return render.Result{}, f.err
	}
	path := filepath.Join(f.dir, req.VideoID+"_"+req.Format+".mp4")
	if err := os.WriteFile(path, []byte("mp4"), 0o644); err != nil {
		return render.Result{}, err
	}
	return render.Result{Format: req.Format, Path: path, AudioSeconds: 30, SecondsPerImg: 30 / float64(len(req.Images))}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) has(event notifications.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type harness struct {
	cfg      *config.Config
	store    *sqlite.Store
	script   *fakeScript
	images   *fakeImages
	voice    *fakeVoice
	render   *fakeRender
	notifier *recordingNotifier
	orch     *workflow.Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.Costs = config.Costs{ScriptCents: 2, PromptsCents: 1, ImageCents: 3, VoiceCents: 5}
	st := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:      cfg,
		store:    st,
		script:   &fakeScript{},
		images:   &fakeImages{t: t, st: st},
		voice:    &fakeVoice{},
		render:   &fakeRender{dir: t.TempDir(), st: st},
		notifier: &recordingNotifier{},
	}
	orch, err := workflow.New(cfg, st, workflow.Stages{
		Script:  h.script,
		Prompts: fakePrompts{},
		Images:  h.images,
		Voice:   h.voice,
		Render:  h.render,
	}, h.notifier, logging.NewNop())
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	t.Cleanup(orch.Stop)
	h.orch = orch
	return h
}

func (h *harness) enqueue(t *testing.T) workflow.Submission {
	t.Helper()
	sub, err := h.orch.Enqueue(context.Background(), workflow.Request{
		Email: "A@B.com",
		Brief: scriptgen.Brief{BusinessName: "Acme", WhatTheySell: "bread", Tone: "friendly", Language: "EN", Topic: "Spring Sale"},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return sub
}

func (h *harness) video(t *testing.T, id string) *store.Video {
	t.Helper()
	v, err := h.store.GetVideo(context.Background(), id)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	return v
}

func (h *harness) projectStatus(t *testing.T, id string) store.ProjectStatus {
	t.Helper()
	p, err := h.store.GetProject(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	return p.Status
}
