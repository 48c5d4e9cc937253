package render_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bomstudio/internal/services"
	"bomstudio/internal/services/render"
	"bomstudio/internal/testsupport"
)

const (
	probe30s    = `echo '{"format":{"duration":"30.0"}}'`
	ffmpegWrite = `for last; do :; done; echo video > "$last"`
)

func newRenderer(t *testing.T, scripts map[string]string) *render.Renderer {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(scripts))
	return render.New(render.Config{
		FFmpegBinary:  cfg.Render.FFmpegBinary,
		FFprobeBinary: cfg.Render.FFprobeBinary,
		WorkDir:       cfg.Paths.RenderDir,
	})
}

func writeInputs(t *testing.T, images int) ([]string, string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i := range images {
		p := filepath.Join(dir, "img"+string(rune('a'+i))+".png")
		testsupport.WriteFile(t, p, 16)
		paths = append(paths, p)
	}
	audio := filepath.Join(dir, "voice.mp3")
	testsupport.WriteFile(t, audio, 16)
	return paths, audio
}

func TestPerImageDuration(t *testing.T) {
	got, err := render.PerImageDuration(30, 5)
	if err != nil || got != 6.0 {
		t.Fatalf("expected 6.0s, got %v (%v)", got, err)
	}
	if _, err := render.PerImageDuration(30, 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for zero images, got %v", err)
	}
}

func TestConcatListRepeatsLastImage(t *testing.T) {
	list := render.ConcatList([]string{"/a.png", "/it's.png"}, 6)
	want := "file '/a.png'\nduration 6.000\nfile '/it'\\''s.png'\nduration 6.000\nfile '/it'\\''s.png'\n"
	if list != want {
		t.Fatalf("unexpected concat list:\n%s", list)
	}
}

func TestFFmpegArgsUseFormatDimensions(t *testing.T) {
	dims, ok := render.FormatDimensions("square")
	if !ok || dims.Width != 1080 || dims.Height != 1080 {
		t.Fatalf("unexpected square dims %+v", dims)
	}
	args := strings.Join(render.FFmpegArgs("c.txt", "a.mp3", "out.mp4", dims), " ")
	if !strings.Contains(args, "scale=1080:1080:force_original_aspect_ratio=decrease,pad=1080:1080:(ow-iw)/2:(oh-ih)/2:black") {
		t.Fatalf("filter missing: %s", args)
	}
	if !strings.HasSuffix(args, "-shortest -movflags +faststart out.mp4") {
		t.Fatalf("unexpected tail: %s", args)
	}
}

func TestRenderProducesOutput(t *testing.T) {
	r := newRenderer(t, map[string]string{"ffprobe": probe30s, "ffmpeg": ffmpegWrite})
	images, audio := writeInputs(t, 5)

	result, err := r.Render(context.Background(), render.Request{VideoID: "vid-1", Images: images, AudioPath: audio})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if result.Format != "vertical" || result.SecondsPerImg != 6.0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	concat, err := os.ReadFile(filepath.Join(filepath.Dir(result.Path), "concat.txt"))
	if err != nil {
		t.Fatalf("read concat: %v", err)
	}
	if strings.Count(string(concat), "duration 6.000") != 5 {
		t.Fatalf("unexpected concat list:\n%s", concat)
	}
}

func TestRenderFallsBackWhenProbeFails(t *testing.T) {
	r := newRenderer(t, map[string]string{"ffprobe": "exit 1", "ffmpeg": ffmpegWrite})
	images, audio := writeInputs(t, 3)

	result, err := r.Render(context.Background(), render.Request{VideoID: "vid-2", Images: images, AudioPath: audio, Format: "horizontal"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if result.AudioSeconds != 30 || result.SecondsPerImg != 10 {
		t.Fatalf("expected fallback pacing, got %+v", result)
	}
}

func TestRenderSurfacesFFmpegStderr(t *testing.T) {
	r := newRenderer(t, map[string]string{"ffprobe": probe30s, "ffmpeg": "echo 'encoder exploded' >&2; exit 1"})
	images, audio := writeInputs(t, 2)

	_, err := r.Render(context.Background(), render.Request{VideoID: "vid-3", Images: images, AudioPath: audio})
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected render error, got %v", err)
	}
	if !strings.Contains(err.Error(), "encoder exploded") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestRenderRejectsEmptyInputs(t *testing.T) {
	r := newRenderer(t, map[string]string{"ffprobe": probe30s, "ffmpeg": ffmpegWrite})
	_, audio := writeInputs(t, 0)
	if _, err := r.Render(context.Background(), render.Request{VideoID: "v", AudioPath: audio}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	images, _ := writeInputs(t, 1)
	if _, err := r.Render(context.Background(), render.Request{VideoID: "v", Images: images, AudioPath: audio, Format: "cinema"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for format, got %v", err)
	}
}

func TestRenderDownloadsRemoteImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("png"))
	}))
	defer server.Close()

	r := newRenderer(t, map[string]string{"ffprobe": probe30s, "ffmpeg": ffmpegWrite})
	_, audio := writeInputs(t, 0)
	result, err := r.Render(context.Background(), render.Request{
		VideoID:   "vid-4",
		Images:    []string{server.URL + "/one.png", server.URL + "/two.png"},
		AudioPath: audio,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(result.Path), "image_001.png")); err != nil {
		t.Fatalf("expected downloaded image: %v", err)
	}

	_, err = r.Render(context.Background(), render.Request{
		VideoID:   "vid-5",
		Images:    []string{server.URL + "/missing.png"},
		AudioPath: audio,
	})
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected render error for failed download, got %v", err)
	}
}
