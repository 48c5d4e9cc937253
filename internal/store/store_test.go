package store_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"bomstudio/internal/services"
	"bomstudio/internal/store"
)

func TestVoiceoverTextSkipsEmptyParts(t *testing.T) {
	script := &store.Script{
		Hook:   "Stop scrolling.",
		Scenes: []store.Scene{{Text: "We bake bread."}, {Text: "  "}, {Text: "Every morning."}},
		CTA:    "",
	}
	if got, want := script.VoiceoverText(), "Stop scrolling. We bake bread. Every morning."; got != want {
		t.Fatalf("VoiceoverText() = %q, want %q", got, want)
	}
	if script.IsEmpty() {
		t.Fatal("expected script with text to be non-empty")
	}
	if !(&store.Script{Scenes: []store.Scene{{Visual: "bakery"}}}).IsEmpty() {
		t.Fatal("expected script without spoken text to be empty")
	}
	var nilScript *store.Script
	if !nilScript.IsEmpty() {
		t.Fatal("expected nil script to be empty")
	}
}

func TestPrepareClientNormalizesAndValidates(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	client := &store.Client{Name: " Acme ", Email: "  Owner@Example.COM "}
	if err := store.PrepareClient(client, now); err != nil {
		t.Fatalf("PrepareClient returned error: %v", err)
	}
	if client.Email != "owner@example.com" {
		t.Fatalf("expected normalized email, got %q", client.Email)
	}
	if client.Package != store.PackageKickstart {
		t.Fatalf("expected kickstart default, got %q", client.Package)
	}
	if client.ID == "" || !client.CreatedAt.Equal(now) {
		t.Fatalf("expected identity assigned, got %#v", client)
	}

	bad := &store.Client{Name: "Acme", Email: "not-an-email", Package: "platinum"}
	err := store.PrepareClient(bad, now)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, fragment := range []string{"email must be a valid email address", "package must be one of"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
}

func TestPrepareVideoForcesScripting(t *testing.T) {
	video := &store.Video{ProjectID: "p1", Title: "Launch", Status: store.VideoApproved, PipelineRunning: true}
	if err := store.PrepareVideo(video, time.Now()); err != nil {
		t.Fatalf("PrepareVideo returned error: %v", err)
	}
	if video.Status != store.VideoScripting || video.PipelineRunning {
		t.Fatalf("expected fresh scripting video, got %s running=%v", video.Status, video.PipelineRunning)
	}
	if err := store.PrepareVideo(&store.Video{ProjectID: "p1"}, time.Now()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing title, got %v", err)
	}
}

func TestVideoPatchNeverLowersCost(t *testing.T) {
	video := &store.Video{CostCents: 40}
	lower := 10
	store.VideoPatch{CostCents: &lower}.Apply(video)
	if video.CostCents != 40 {
		t.Fatalf("expected cost to stay at 40, got %d", video.CostCents)
	}
	higher := 55
	title := "New title"
	store.VideoPatch{CostCents: &higher, Title: &title}.Apply(video)
	if video.CostCents != 55 || video.Title != title {
		t.Fatalf("unexpected patched video %#v", video)
	}
}

func TestPageNormalize(t *testing.T) {
	page := store.Page{Offset: -3, Limit: 0}.Normalize()
	if page.Offset != 0 || page.Limit != store.DefaultLimit {
		t.Fatalf("unexpected defaults %#v", page)
	}
	if got := (store.Page{Limit: 10_000}).Normalize().Limit; got != store.MaxLimit {
		t.Fatalf("expected limit clamp, got %d", got)
	}
}

func TestFormatsPrimaryPrefersVertical(t *testing.T) {
	formats := store.Formats{"square": "/r/sq.mp4", "vertical": "/r/v.mp4"}
	name, url, ok := formats.Primary()
	if !ok || name != "vertical" || url != "/r/v.mp4" {
		t.Fatalf("unexpected primary %q %q %v", name, url, ok)
	}
	if _, _, ok := (store.Formats{}).Primary(); ok {
		t.Fatal("expected empty formats to have no primary")
	}
}

func TestParseVideoStatus(t *testing.T) {
	if status, ok := store.ParseVideoStatus(" Review "); !ok || status != store.VideoReview {
		t.Fatalf("unexpected parse result %q %v", status, ok)
	}
	if _, ok := store.ParseVideoStatus("published"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
