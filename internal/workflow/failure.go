package workflow

import (
	"context"
	"time"

	"bomstudio/internal/logging"
	"bomstudio/internal/store"
	"bomstudio/internal/video"
)

const failurePersistTimeout = 15 * time.Second

// fail rolls the video back to scripting with the error in its approval note
// and returns the project to draft. It runs even after the run context is
// cancelled.
func (p *pipeline) fail(ctx context.Context, stageErr error) {
	o := p.o
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failurePersistTimeout)
	defer cancel()
	logger := logging.WithContext(ctx, o.logger)

	current, err := o.store.GetVideo(ctx, p.video.ID)
	if err != nil {
		logger.Error("failed to load video for rollback",
			logging.String(logging.FieldEventType, "pipeline_rollback_failed"),
			logging.Error(err),
		)
		return
	}
	from := current.Status
	current.CostCents += p.runCost
	if err := o.machine.Apply(current, video.EventStageFailed, video.Input{Err: stageErr}); err != nil {
		logger.Error("pipeline rollback rejected",
			logging.String(logging.FieldEventType, "pipeline_rollback_failed"),
			logging.String("status", string(current.Status)),
			logging.Error(err),
		)
	} else if err := o.store.SaveVideo(ctx, current, from); err != nil {
		logger.Error("failed to persist pipeline rollback",
			logging.String(logging.FieldEventType, "pipeline_rollback_failed"),
			logging.Error(err),
		)
	}

	draft := store.ProjectDraft
	if _, err := o.store.UpdateProject(ctx, p.project.ID, store.ProjectPatch{Status: &draft}); err != nil {
		logger.Error("failed to roll back project status",
			logging.String(logging.FieldProjectID, p.project.ID),
			logging.String(logging.FieldEventType, "pipeline_rollback_failed"),
			logging.Error(err),
		)
	}
	o.publishFailure(ctx, p, stageErr)
}
