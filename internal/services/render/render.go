package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bomstudio/internal/logging"
	"bomstudio/internal/media/ffprobe"
	"bomstudio/internal/services"
)

const stageName = "render"

// Dimensions is an output frame size.
type Dimensions struct {
	Width  int
	Height int
}

var formats = map[string]Dimensions{
	"vertical":   {Width: 1080, Height: 1920},
	"square":     {Width: 1080, Height: 1080},
	"horizontal": {Width: 1920, Height: 1080},
}

// FormatDimensions returns the frame size for a named output format.
func FormatDimensions(format string) (Dimensions, bool) {
	dims, ok := formats[strings.ToLower(strings.TrimSpace(format))]
	return dims, ok
}

// Config holds render settings.
type Config struct {
	FFmpegBinary  string
	FFprobeBinary string
	// WorkDir is the parent of the per-video working directories.
	WorkDir       string
	FallbackAudio time.Duration
}

// Request describes one render.
type Request struct {
	VideoID string
	// Images are http(s) URLs or local file paths, in display order.
	Images    []string
	AudioPath string
	Format    string
}

// Result describes the rendered file.
type Result struct {
	Format        string
	Path          string
	AudioSeconds  float64
	SecondsPerImg float64
}

type commandRunner func(ctx context.Context, name string, args ...string) error

// Renderer runs ffmpeg against downloaded assets.
type Renderer struct {
	cfg        Config
	httpClient *http.Client
	run        commandRunner
	logger     *slog.Logger
}

// Option customizes the renderer.
type Option func(*Renderer)

// WithHTTPClient overrides the client used to download images.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Renderer) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs a Renderer.
func New(cfg Config, opts ...Option) *Renderer {
	if strings.TrimSpace(cfg.FFmpegBinary) == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(cfg.FFprobeBinary) == "" {
		cfg.FFprobeBinary = "ffprobe"
	}
	if cfg.FallbackAudio <= 0 {
		cfg.FallbackAudio = 30 * time.Second
	}
	r := &Renderer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		run:        runFFmpeg,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PerImageDuration splits the audio length evenly across the images.
func PerImageDuration(audioSeconds float64, imageCount int) (float64, error) {
	if imageCount <= 0 {
		return 0, services.Wrap(services.ErrValidation, stageName, "pace", "no images to render", nil)
	}
	if audioSeconds <= 0 {
		return 0, services.Wrap(services.ErrValidation, stageName, "pace", "audio duration must be positive", nil)
	}
	return audioSeconds / float64(imageCount), nil
}

// Render builds the output video for req and returns its location.
func (r *Renderer) Render(ctx context.Context, req Request) (Result, error) {
	if len(req.Images) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "render", "no images to render", nil)
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = "vertical"
	}
	dims, ok := FormatDimensions(format)
	if !ok {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "render", fmt.Sprintf("unknown format %q", req.Format), nil)
	}
	if strings.TrimSpace(req.AudioPath) == "" {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "render", "audio track missing", nil)
	}

	workDir := filepath.Join(r.cfg.WorkDir, req.VideoID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrRender, stageName, "prepare", "create work dir", err)
	}

	imagePaths := make([]string, 0, len(req.Images))
	for i, source := range req.Images {
		local, err := r.fetch(ctx, source, filepath.Join(workDir, fmt.Sprintf("image_%03d", i)))
		if err != nil {
			return Result{}, services.Wrap(services.ErrRender, stageName, "download image", source, err)
		}
		imagePaths = append(imagePaths, local)
	}
	audioPath, err := r.fetch(ctx, req.AudioPath, filepath.Join(workDir, "voiceover"))
	if err != nil {
		return Result{}, services.Wrap(services.ErrRender, stageName, "download audio", req.AudioPath, err)
	}

	audioSeconds, err := ffprobe.AudioDuration(ctx, r.cfg.FFprobeBinary, audioPath)
	if err != nil {
		audioSeconds = r.cfg.FallbackAudio.Seconds()
		r.logger.Warn("audio probe failed; using fallback duration",
			logging.String(logging.FieldEventType, "render_probe_fallback"),
			logging.Float64("fallback_seconds", audioSeconds),
			logging.Error(err),
		)
	}
	perImage, err := PerImageDuration(audioSeconds, len(imagePaths))
	if err != nil {
		return Result{}, err
	}

	concatPath := filepath.Join(workDir, "concat.txt")
	if err := os.WriteFile(concatPath, []byte(ConcatList(imagePaths, perImage)), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrRender, stageName, "prepare", "write concat list", err)
	}

	output := filepath.Join(workDir, fmt.Sprintf("output_%s.mp4", format))
	if err := r.run(ctx, r.cfg.FFmpegBinary, FFmpegArgs(concatPath, audioPath, output, dims)...); err != nil {
		if ctx.Err() != nil {
			return Result{}, services.Wrap(services.ErrTimeout, stageName, "ffmpeg", "", err)
		}
		return Result{}, services.Wrap(services.ErrRender, stageName, "ffmpeg", err.Error(), nil)
	}
	if info, err := os.Stat(output); err != nil || info.Size() == 0 {
		return Result{}, services.Wrap(services.ErrRender, stageName, "ffmpeg", "output file missing", err)
	}

	r.logger.Info("render completed",
		logging.String(logging.FieldEventType, "render_completed"),
		logging.String("format", format),
		logging.String("output", output),
		logging.Int("images", len(imagePaths)),
		logging.Float64("seconds_per_image", perImage),
	)
	return Result{Format: format, Path: output, AudioSeconds: audioSeconds, SecondsPerImg: perImage}, nil
}

// ConcatList builds an ffmpeg concat demuxer script. The last image is
// repeated because the demuxer ignores the final duration directive.
func ConcatList(paths []string, seconds float64) string {
	var b strings.Builder
	duration := strconv.FormatFloat(seconds, 'f', 3, 64)
	for _, p := range paths {
		fmt.Fprintf(&b, "file '%s'\nduration %s\n", escapeConcatPath(p), duration)
	}
	if len(paths) > 0 {
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(paths[len(paths)-1]))
	}
	return b.String()
}

// FFmpegArgs returns the argument list muxing the slideshow with the audio.
func FFmpegArgs(concatPath, audioPath, output string, dims Dimensions) []string {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black",
		dims.Width, dims.Height, dims.Width, dims.Height,
	)
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", concatPath,
		"-i", audioPath,
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		"-movflags", "+faststart",
		output,
	}
}

func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

// fetch returns a local path for source, downloading it to destBase (plus the
// URL's extension) when it is an http(s) URL.
func (r *Renderer) fetch(ctx context.Context, source, destBase string) (string, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		if _, err := os.Stat(source); err != nil {
			return "", err
		}
		return source, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}
	ext := path.Ext(req.URL.Path)
	if ext == "" || len(ext) > 5 {
		ext = ".bin"
	}
	dest := destBase + ext
	file, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return dest, nil
}

func runFFmpeg(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
