package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bomstudio/internal/logging"
	"bomstudio/internal/services"
	"bomstudio/internal/services/render"
	"bomstudio/internal/services/scriptgen"
	"bomstudio/internal/store"
	"bomstudio/internal/video"
)

const voiceoverFile = "voiceover.mp3"

// Providers recorded on the usage ledger.
const (
	providerLLM    = "openai"
	providerImages = "replicate"
	providerVoice  = "elevenlabs"
)

// pipeline is the state of one run.
type pipeline struct {
	o       *Orchestrator
	video   *store.Video
	client  *store.Client
	project *store.Project
	brief   scriptgen.Brief
	voice   string
	format  string

	mu          sync.Mutex
	runCost     int
	failedStage string
}

func (p *pipeline) run(ctx context.Context) error {
	if err := p.execute(ctx); err != nil {
		p.fail(ctx, err)
		return err
	}
	return nil
}

func (p *pipeline) execute(ctx context.Context) error {
	o := p.o
	v := p.video

	var script *store.Script
	err := p.stage(ctx, StageScript, func(ctx context.Context) error {
		var err error
		script, err = o.stages.Script.GenerateScript(ctx, p.brief)
		if err != nil {
			return err
		}
		p.charge(ctx, providerLLM, "script", o.cfg.Pipeline.Costs.ScriptCents)
		return nil
	})
	if err != nil {
		return err
	}
	v.Script = script
	if err := p.transition(ctx, video.EventScriptGenerated, video.Input{}); err != nil {
		return err
	}

	var prompts []string
	err = p.stage(ctx, StagePrompts, func(ctx context.Context) error {
		var err error
		prompts, err = o.stages.Prompts.GeneratePrompts(ctx, script, p.brief.Industry())
		if err != nil {
			return err
		}
		p.charge(ctx, providerLLM, "image_prompts", o.cfg.Pipeline.Costs.PromptsCents)
		return nil
	})
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		p.failedStage = StagePrompts
		return services.Wrap(services.ErrGeneration, StagePrompts, "generate prompts", "no image prompts produced", nil)
	}

	images, audioPath, err := p.generateAssets(ctx, prompts, script)
	if err != nil {
		return err
	}
	if err := p.transition(ctx, video.EventAssetsReady, video.Input{ImageCount: len(images), AudioReady: audioPath != ""}); err != nil {
		return err
	}

	var result render.Result
	err = p.stage(ctx, StageRender, func(ctx context.Context) error {
		var err error
		result, err = o.stages.Render.Render(ctx, render.Request{
			VideoID:   v.ID,
			Images:    images,
			AudioPath: audioPath,
			Format:    p.renderFormat(),
		})
		return err
	})
	if err != nil {
		return err
	}

	if err := p.persistAssets(ctx, prompts, images, audioPath, result); err != nil {
		p.failedStage = StageRender
		return err
	}
	v.CostCents += p.runCost
	if err := p.transition(ctx, video.EventRenderSucceeded, video.Input{Format: result.Format, OutputPath: result.Path}); err != nil {
		return err
	}

	review := store.ProjectReview
	if _, err := o.store.UpdateProject(ctx, p.project.ID, store.ProjectPatch{Status: &review}); err != nil {
		o.logger.Warn("project status not advanced to review",
			logging.String(logging.FieldProjectID, p.project.ID),
			logging.String(logging.FieldEventType, "project_update_failed"),
			logging.Error(err),
		)
	}
	o.publishDraftReady(ctx, p)
	logging.WithContext(ctx, o.logger).Info("pipeline completed",
		logging.String(logging.FieldVideoID, v.ID),
		logging.String(logging.FieldEventType, "pipeline_completed"),
		logging.Int("images", len(images)),
		logging.Int("cost_cents", v.CostCents),
		logging.String("output", result.Path),
	)
	return nil
}

// generateAssets runs image generation and voice synthesis concurrently.
// Either failure cancels the other and nothing is returned.
func (p *pipeline) generateAssets(ctx context.Context, prompts []string, script *store.Script) ([]string, string, error) {
	o := p.o
	var (
		images    []string
		audioPath string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.stage(gctx, StageImages, func(ctx context.Context) error {
			urls, err := o.stages.Images.GenerateAll(ctx, prompts)
			if err != nil {
				return err
			}
			if len(urls) != len(prompts) {
				return services.Wrap(services.ErrGeneration, StageImages, "generate images",
					fmt.Sprintf("expected %d images, got %d", len(prompts), len(urls)), nil)
			}
			images = urls
			for range urls {
				p.charge(ctx, providerImages, "image", o.cfg.Pipeline.Costs.ImageCents)
			}
			return nil
		})
	})
	g.Go(func() error {
		return p.stage(gctx, StageVoice, func(ctx context.Context) error {
			audio, err := o.stages.Voice.Synthesize(ctx, script.VoiceoverText(), p.brief.Language, p.voice)
			if err != nil {
				return err
			}
			path, err := p.writeAudio(audio)
			if err != nil {
				return err
			}
			audioPath = path
			p.charge(ctx, providerVoice, "voice", o.cfg.Pipeline.Costs.VoiceCents)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, "", err
	}
	return images, audioPath, nil
}

func (p *pipeline) writeAudio(audio []byte) (string, error) {
	dir := filepath.Join(p.o.cfg.Paths.RenderDir, p.video.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrInternal, StageVoice, "store audio", "create work dir", err)
	}
	path := filepath.Join(dir, voiceoverFile)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", services.Wrap(services.ErrInternal, StageVoice, "store audio", "write voiceover", err)
	}
	return path, nil
}

// persistAssets records the images, voiceover and clip of a successful run in
// one write, so failed runs leave no assets behind.
func (p *pipeline) persistAssets(ctx context.Context, prompts, images []string, audioPath string, result render.Result) error {
	assets := make([]*store.Asset, 0, len(images)+2)
	for i, url := range images {
		meta, err := assetMeta(map[string]any{"index": i, "prompt": prompts[i]})
		if err != nil {
			return services.Wrap(services.ErrInternal, StageRender, "persist assets", "encode image metadata", err)
		}
		assets = append(assets, &store.Asset{VideoID: p.video.ID, Type: store.AssetImage, URL: url, Metadata: meta})
	}
	meta, err := assetMeta(map[string]any{"language": p.brief.Language})
	if err != nil {
		return services.Wrap(services.ErrInternal, StageRender, "persist assets", "encode audio metadata", err)
	}
	assets = append(assets, &store.Asset{VideoID: p.video.ID, Type: store.AssetAudio, URL: audioPath, Metadata: meta})
	clip, err := assetMeta(map[string]any{"format": result.Format, "seconds_per_image": result.SecondsPerImg, "audio_seconds": result.AudioSeconds})
	if err != nil {
		return services.Wrap(services.ErrInternal, StageRender, "persist assets", "encode clip metadata", err)
	}
	assets = append(assets, &store.Asset{VideoID: p.video.ID, Type: store.AssetClip, URL: result.Path, Metadata: clip})
	return p.o.store.CreateAssets(ctx, assets)
}

func assetMeta(fields map[string]any) (json.RawMessage, error) {
	return json.Marshal(fields)
}

func (p *pipeline) renderFormat() string {
	if f := strings.TrimSpace(p.format); f != "" {
		return f
	}
	return p.o.cfg.Render.Format
}

// stage runs fn under the stage timeout with stage-scoped logging.
func (p *pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx = services.WithStage(ctx, name)
	if timeout := p.o.cfg.StageTimeout(name); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger := logging.WithContext(ctx, p.o.logger)
	start := time.Now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	if err := fn(ctx); err != nil {
		p.mu.Lock()
		if p.failedStage == "" {
			p.failedStage = name
		}
		p.mu.Unlock()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && services.Kind(err) != services.KindTimeout {
			err = services.Wrap(services.ErrTimeout, name, "run stage", fmt.Sprintf("exceeded %s", p.o.cfg.StageTimeout(name)), err)
		}
		logger.Warn("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Duration("stage_duration", time.Since(start)),
			logging.Error(err),
		)
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(start)),
	)
	return nil
}

// charge appends one usage record for a successful billable call.
func (p *pipeline) charge(ctx context.Context, provider, action string, cents int) {
	record := &store.UsageRecord{Provider: provider, Action: action, ProjectID: p.project.ID, CostCents: cents}
	if err := p.o.store.AppendUsage(ctx, record); err != nil {
		p.o.logger.Warn("usage record not appended",
			logging.String(logging.FieldVideoID, p.video.ID),
			logging.String(logging.FieldEventType, "usage_append_failed"),
			logging.String("provider", provider),
			logging.String("action", action),
			logging.Error(err),
		)
	}
	p.mu.Lock()
	p.runCost += cents
	p.mu.Unlock()
}

// transition applies event and flushes the video.
func (p *pipeline) transition(ctx context.Context, event video.Event, in video.Input) error {
	from := p.video.Status
	if err := p.o.machine.Apply(p.video, event, in); err != nil {
		if p.failedStage == "" {
			p.failedStage = string(from)
		}
		return err
	}
	if err := p.o.store.SaveVideo(ctx, p.video, from); err != nil {
		return err
	}
	logging.WithContext(ctx, p.o.logger).Info("video transitioned",
		logging.String(logging.FieldEventType, "video_transitioned"),
		logging.String("event", string(event)),
		logging.String("from", string(from)),
		logging.String("to", string(p.video.Status)),
	)
	return nil
}
