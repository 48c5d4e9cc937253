package imagegen_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bomstudio/internal/services"
	"bomstudio/internal/services/imagegen"
)

// fakeReplicate succeeds each prediction after pending polls; prompts
// containing "fail" end in the failed state and "slow" never finish.
type fakeReplicate struct {
	t       *testing.T
	server  *httptest.Server
	pending int

	mu     sync.Mutex
	polls  map[string]int
	bodies []map[string]any
}

func newFakeReplicate(t *testing.T, pending int) *fakeReplicate {
	f := &fakeReplicate{t: t, pending: pending, polls: map[string]int{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeReplicate) handle(w http.ResponseWriter, r *http.Request) {
	if got := r.Header.Get("Authorization"); got != "Token secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/predictions":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.bodies = append(f.bodies, body)
		f.mu.Unlock()
		prompt := body["input"].(map[string]any)["prompt"].(string)
		id := strings.ReplaceAll(prompt, " ", "-")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     id,
			"status": "starting",
			"urls":   map[string]string{"get": f.server.URL + "/predictions/" + id},
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/predictions/"):
		id := strings.TrimPrefix(r.URL.Path, "/predictions/")
		f.mu.Lock()
		f.polls[id]++
		polls := f.polls[id]
		f.mu.Unlock()
		status := "processing"
		var output any
		switch {
		case strings.Contains(id, "fail"):
			status = "failed"
		case strings.Contains(id, "slow"):
		case polls > f.pending:
			status = "succeeded"
			output = []string{"https://cdn.test/" + id + ".png"}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "status": status, "output": output, "error": "nsfw"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newClient(f *fakeReplicate, attempts int) *imagegen.Client {
	return imagegen.New(imagegen.Config{
		APIToken:     "secret",
		BaseURL:      f.server.URL,
		PollAttempts: attempts,
		PollInterval: time.Millisecond,
	})
}

func TestGeneratePollsUntilSucceeded(t *testing.T) {
	f := newFakeReplicate(t, 2)
	url, err := newClient(f, 60).Generate(context.Background(), "bakery front")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if url != "https://cdn.test/bakery-front.png" {
		t.Fatalf("unexpected url %q", url)
	}
	input := f.bodies[0]["input"].(map[string]any)
	if f.bodies[0]["version"] != "black-forest-labs/flux-schnell" || input["aspect_ratio"] != "9:16" || input["output_format"] != "png" {
		t.Fatalf("unexpected request body %#v", f.bodies[0])
	}
	if f.polls["bakery-front"] != 3 {
		t.Fatalf("expected 3 polls, got %d", f.polls["bakery-front"])
	}
}

func TestGenerateTimesOutAfterBoundedPolls(t *testing.T) {
	f := newFakeReplicate(t, 0)
	_, err := newClient(f, 5).Generate(context.Background(), "slow one")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if f.polls["slow-one"] != 5 {
		t.Fatalf("expected 5 polls, got %d", f.polls["slow-one"])
	}
}

func TestGenerateFailedPrediction(t *testing.T) {
	f := newFakeReplicate(t, 0)
	_, err := newClient(f, 5).Generate(context.Background(), "fail me")
	if !errors.Is(err, services.ErrGeneration) || !strings.Contains(err.Error(), "nsfw") {
		t.Fatalf("expected generation error carrying cause, got %v", err)
	}
}

func TestGenerateRequiresToken(t *testing.T) {
	c := imagegen.New(imagegen.Config{})
	if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGenerateAllPreservesOrder(t *testing.T) {
	f := newFakeReplicate(t, 1)
	urls, err := newClient(f, 10).GenerateAll(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	want := []string{"https://cdn.test/a.png", "https://cdn.test/b.png", "https://cdn.test/c.png"}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], urls[i])
		}
	}
}

func TestGenerateAllFailsWholeBatch(t *testing.T) {
	f := newFakeReplicate(t, 1)
	urls, err := newClient(f, 10).GenerateAll(context.Background(), []string{"p1", "p2 fail", "p3"})
	if !errors.Is(err, services.ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if urls != nil {
		t.Fatalf("expected no partial urls, got %v", urls)
	}
}

func TestGenerateAllRunsConcurrently(t *testing.T) {
	var inFlight, peak int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		if n == 3 {
			close(release)
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		atomic.AddInt32(&inFlight, -1)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "x", "status": "succeeded", "output": "https://cdn.test/x.png"})
	}))
	defer server.Close()

	c := imagegen.New(imagegen.Config{APIToken: "secret", BaseURL: server.URL, PollInterval: time.Millisecond})
	if _, err := c.GenerateAll(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if atomic.LoadInt32(&peak) != 3 {
		t.Fatalf("expected 3 concurrent predictions, peak was %d", peak)
	}
}

func TestGenerateAllRejectsEmptyPrompts(t *testing.T) {
	c := imagegen.New(imagegen.Config{APIToken: "secret"})
	if _, err := c.GenerateAll(context.Background(), nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
