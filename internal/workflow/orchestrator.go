package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bomstudio/internal/config"
	"bomstudio/internal/logging"
	"bomstudio/internal/notifications"
	"bomstudio/internal/services"
	"bomstudio/internal/services/scriptgen"
	"bomstudio/internal/store"
	"bomstudio/internal/video"
)

const (
	defaultClientName = "Unknown"
	defaultVideoTitle = "Generated Video"
	defaultTopicLabel = "Video"
)

// Orchestrator runs generation pipelines in the background.
type Orchestrator struct {
	cfg      *config.Config
	store    store.Store
	stages   Stages
	machine  *video.Machine
	notifier notifications.Service
	logger   *slog.Logger

	stopCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	running map[string]time.Time
}

// New constructs an Orchestrator. notifier may be nil.
func New(cfg *config.Config, st store.Store, stages Stages, notifier notifications.Service, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("workflow: config and store are required")
	}
	if !stages.complete() {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "init", "all pipeline stages must be provided", nil)
	}
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	stopCtx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:      cfg,
		store:    st,
		stages:   stages,
		machine:  video.NewMachine(),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		stopCtx:  stopCtx,
		stop:     stop,
		running:  make(map[string]time.Time),
	}, nil
}

// Enqueue resolves or creates the client, creates a project and a video in
// scripting, and starts the pipeline without waiting for it.
func (o *Orchestrator) Enqueue(ctx context.Context, req Request) (Submission, error) {
	if err := o.stopCtx.Err(); err != nil {
		return Submission{}, services.Wrap(services.ErrInternal, "workflow", "enqueue", "orchestrator stopped", nil)
	}
	email := store.NormalizeEmail(req.Email)
	if email == "" {
		return Submission{}, services.Wrap(services.ErrValidation, "workflow", "enqueue", "email required", nil)
	}

	client, err := o.resolveClient(ctx, email, req.Brief)
	if err != nil {
		return Submission{}, err
	}

	topic := strings.TrimSpace(req.Brief.Topic)
	projectLabel := topic
	if projectLabel == "" {
		projectLabel = defaultTopicLabel
	}
	project := &store.Project{
		ClientID: client.ID,
		Name:     "Auto: " + projectLabel,
		Status:   store.ProjectInProgress,
	}
	if err := o.store.CreateProject(ctx, project); err != nil {
		return Submission{}, err
	}

	title := topic
	if title == "" {
		title = defaultVideoTitle
	}
	v := &store.Video{ProjectID: project.ID, Title: title, Status: store.VideoScripting}
	if err := o.store.CreateVideo(ctx, v); err != nil {
		return Submission{}, err
	}

	sub := Submission{ClientID: client.ID, ProjectID: project.ID, VideoID: v.ID}
	if err := o.start(ctx, job{client: client, project: project, brief: req.Brief, voice: req.Voice, format: req.Format, videoID: v.ID}); err != nil {
		return sub, err
	}
	return sub, nil
}

// Retry re-runs the pipeline for a video sitting in scripting, typically after
// a failed run. The brief is rebuilt from the client's brand kit.
func (o *Orchestrator) Retry(ctx context.Context, videoID string) (*store.Video, error) {
	if err := o.stopCtx.Err(); err != nil {
		return nil, services.Wrap(services.ErrInternal, "workflow", "retry", "orchestrator stopped", nil)
	}
	v, err := o.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.Status != store.VideoScripting {
		return nil, services.Wrap(services.ErrInvalidTransition, "workflow", "retry",
			fmt.Sprintf("video %s is %s, retry requires %s", v.ID, v.Status, store.VideoScripting), nil)
	}
	project, err := o.store.GetProject(ctx, v.ProjectID)
	if err != nil {
		return nil, err
	}
	client, err := o.store.GetClient(ctx, project.ClientID)
	if err != nil {
		return nil, err
	}
	brief := briefFromClient(client, v)

	inProgress := store.ProjectInProgress
	if project, err = o.store.UpdateProject(ctx, project.ID, store.ProjectPatch{Status: &inProgress}); err != nil {
		return nil, err
	}
	if err := o.start(ctx, job{client: client, project: project, brief: brief, videoID: v.ID}); err != nil {
		return nil, err
	}
	return o.store.GetVideo(ctx, videoID)
}

// Running lists the ids of videos with a pipeline in flight in this process.
func (o *Orchestrator) Running() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.running))
	for id := range o.running {
		ids = append(ids, id)
	}
	return ids
}

// Wait blocks until every started pipeline has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Stop cancels in-flight pipelines and waits for them to record their outcome.
// Runs not yet registered when Stop begins are refused.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.stop()
	o.mu.Unlock()
	o.wg.Wait()
}

type job struct {
	client  *store.Client
	project *store.Project
	brief   scriptgen.Brief
	voice   string
	format  string
	videoID string
}

// start claims the video and launches the run detached from ctx's
// cancellation. ctx values (request id) carry over into the run.
func (o *Orchestrator) start(ctx context.Context, j job) error {
	claimed, err := o.store.ClaimPipeline(ctx, j.videoID)
	if err != nil {
		return err
	}

	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = services.WithRequestID(services.WithVideoID(runCtx, claimed.ID), requestID)
	stopWatch := context.AfterFunc(o.stopCtx, cancel)
	if overall := o.cfg.OverallTimeout(); overall > 0 {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithTimeout(runCtx, overall)
		prevCancel := cancel
		cancel = func() { cancelDeadline(); prevCancel() }
	}

	o.mu.Lock()
	if o.stopCtx.Err() != nil {
		o.mu.Unlock()
		stopWatch()
		cancel()
		o.release(ctx, claimed.ID)
		return services.Wrap(services.ErrInternal, "workflow", "start", "orchestrator stopped", nil)
	}
	o.running[claimed.ID] = time.Now()
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		defer stopWatch()
		defer cancel()
		defer o.finish(runCtx, claimed.ID)

		p := &pipeline{o: o, video: claimed, client: j.client, project: j.project, brief: j.brief, voice: j.voice, format: j.format}
		if err := p.run(runCtx); err != nil {
			logging.ErrorWithContext(logging.WithContext(runCtx, o.logger), "pipeline failed", "pipeline_failed",
				logging.String(logging.FieldVideoID, claimed.ID),
				logging.String(logging.FieldStage, p.failedStage),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.String(logging.FieldErrorHint, "fix the cause, then retry the video"),
				logging.Error(err),
			)
		}
	}()
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, videoID string) {
	o.release(ctx, videoID)
	o.mu.Lock()
	delete(o.running, videoID)
	o.mu.Unlock()
}

// release clears the pipeline guard even when ctx is already cancelled.
func (o *Orchestrator) release(ctx context.Context, videoID string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.store.ReleasePipeline(releaseCtx, videoID); err != nil {
		o.logger.Warn("pipeline guard release failed",
			logging.String(logging.FieldVideoID, videoID),
			logging.String(logging.FieldEventType, "pipeline_release_failed"),
			logging.String(logging.FieldErrorHint, "restart the daemon to reset stale guards"),
			logging.Error(err),
		)
	}
}

func (o *Orchestrator) resolveClient(ctx context.Context, email string, brief scriptgen.Brief) (*store.Client, error) {
	client, err := o.store.GetClientByEmail(ctx, email)
	if err == nil {
		if len(client.BrandKit) == 0 {
			if kit, err := brandKit(brief); err == nil {
				if updated, err := o.store.UpdateClient(ctx, client.ID, store.ClientPatch{BrandKit: kit}); err == nil {
					client = updated
				}
			}
		}
		return client, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}

	name := strings.TrimSpace(brief.BusinessName)
	if name == "" {
		name = defaultClientName
	}
	kit, err := brandKit(brief)
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, "workflow", "resolve client", "encode brand kit", err)
	}
	client = &store.Client{Name: name, Email: email, Package: store.PackageKickstart, BrandKit: kit}
	if err := o.store.CreateClient(ctx, client); err != nil {
		if errors.Is(err, services.ErrConflict) {
			return o.store.GetClientByEmail(ctx, email)
		}
		return nil, err
	}
	return client, nil
}

// brandKit stores the durable part of a brief on the client.
func brandKit(brief scriptgen.Brief) (json.RawMessage, error) {
	brief.Topic = ""
	return json.Marshal(brief)
}

func briefFromClient(client *store.Client, v *store.Video) scriptgen.Brief {
	var brief scriptgen.Brief
	if len(client.BrandKit) > 0 {
		_ = json.Unmarshal(client.BrandKit, &brief)
	}
	if strings.TrimSpace(brief.BusinessName) == "" && client.Name != defaultClientName {
		brief.BusinessName = client.Name
	}
	if v.Title != defaultVideoTitle {
		brief.Topic = v.Title
	}
	return brief
}
