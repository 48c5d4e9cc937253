package testsupport

import (
	"context"
	"testing"

	"bomstudio/internal/config"
	"bomstudio/internal/store"
	"bomstudio/internal/store/sqlite"
)

// MustOpenStore opens a sqlite store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sqlite.Store {
	t.Helper()

	s, err := sqlite.Open(cfg)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// NewClient creates a client with the given email.
func NewClient(t testing.TB, s store.Store, name, email string) *store.Client {
	t.Helper()

	client := &store.Client{Name: name, Email: email}
	if err := s.CreateClient(context.Background(), client); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	return client
}

// NewProject creates a project owned by clientID.
func NewProject(t testing.TB, s store.Store, clientID, name string) *store.Project {
	t.Helper()

	project := &store.Project{ClientID: clientID, Name: name, Status: store.ProjectInProgress}
	if err := s.CreateProject(context.Background(), project); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return project
}

// NewVideo creates a scripting video inside projectID.
func NewVideo(t testing.TB, s store.Store, projectID, title string) *store.Video {
	t.Helper()

	video := &store.Video{ProjectID: projectID, Title: title}
	if err := s.CreateVideo(context.Background(), video); err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	return video
}

// SeedVideo creates a client, project, and scripting video in one call.
func SeedVideo(t testing.TB, s store.Store) (*store.Client, *store.Project, *store.Video) {
	t.Helper()

	client := NewClient(t, s, "Acme", "owner@acme.test")
	project := NewProject(t, s, client.ID, "Auto: Launch")
	video := NewVideo(t, s, project.ID, "Launch")
	return client, project, video
}

// SetVideoStatus forces a video into status, bypassing the state machine.
func SetVideoStatus(t testing.TB, s store.Store, video *store.Video, status store.VideoStatus) {
	t.Helper()

	stored, err := s.GetVideo(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	video.Status = status
	if err := s.SaveVideo(context.Background(), video, stored.Status); err != nil {
		t.Fatalf("SaveVideo: %v", err)
	}
}
