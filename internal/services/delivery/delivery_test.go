package delivery_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"

	"bomstudio/internal/services"
	"bomstudio/internal/services/delivery"
	"bomstudio/internal/testsupport"
	"bomstudio/internal/video"
)

type fakeDrive struct {
	mu            sync.Mutex
	folders       map[string]string
	queries       []string
	uploads       []string
	createdFolder int
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		q := r.URL.Query().Get("q")
		f.queries = append(f.queries, q)
		for name, id := range f.folders {
			if strings.Contains(q, "name = '"+name+"'") {
				_, _ = io.WriteString(w, `{"files":[{"id":"`+id+`","name":"`+name+`"}]}`)
				return
			}
		}
		_, _ = io.WriteString(w, `{"files":[]}`)
	case r.URL.Query().Get("uploadType") != "":
		body, _ := io.ReadAll(r.Body)
		f.uploads = append(f.uploads, string(body))
		_, _ = io.WriteString(w, `{"id":"file-1","webViewLink":"https://drive.example/file-1"}`)
	default:
		f.createdFolder++
		_, _ = io.WriteString(w, `{"id":"folder-new"}`)
	}
}

func newDrive(t *testing.T, fake *fakeDrive) *delivery.Drive {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	d, err := delivery.NewWithOptions(context.Background(), delivery.Config{ParentFolderID: "parent-1"}, nil,
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	return d
}

func renderedFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "output_vertical.mp4")
	testsupport.WriteFile(t, p, 64)
	return p
}

func TestDeliverCreatesClientFolder(t *testing.T) {
	fake := &fakeDrive{folders: map[string]string{}}
	d := newDrive(t, fake)

	link, err := d.Deliver(context.Background(), video.DeliveryRequest{
		ClientID: "c1", ClientName: "Acme", VideoID: "v1", Title: "Launch", Format: "vertical",
		FilePath: renderedFile(t),
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if link != "https://drive.example/file-1" {
		t.Fatalf("unexpected link %q", link)
	}
	if fake.createdFolder != 1 || len(fake.uploads) != 1 {
		t.Fatalf("expected one folder and one upload, got %d/%d", fake.createdFolder, len(fake.uploads))
	}
	if !strings.Contains(fake.queries[0], "'parent-1' in parents") {
		t.Fatalf("query missing parent: %s", fake.queries[0])
	}
	if !strings.Contains(fake.uploads[0], "Launch (vertical).mp4") {
		t.Fatalf("upload metadata missing name")
	}
}

func TestDeliverReusesExistingFolder(t *testing.T) {
	fake := &fakeDrive{folders: map[string]string{"Acme": "folder-acme"}}
	d := newDrive(t, fake)

	if _, err := d.Deliver(context.Background(), video.DeliveryRequest{ClientName: "Acme", VideoID: "v1", FilePath: renderedFile(t)}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if fake.createdFolder != 0 {
		t.Fatalf("expected existing folder reuse, created %d", fake.createdFolder)
	}
	if !strings.Contains(fake.uploads[0], "folder-acme") {
		t.Fatalf("upload not placed in existing folder")
	}
}

func TestDeliverMissingFile(t *testing.T) {
	d := newDrive(t, &fakeDrive{folders: map[string]string{}})
	_, err := d.Deliver(context.Background(), video.DeliveryRequest{VideoID: "v1", FilePath: filepath.Join(t.TempDir(), "nope.mp4")})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := delivery.New(context.Background(), delivery.Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
