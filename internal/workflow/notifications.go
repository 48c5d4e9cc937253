package workflow

import (
	"context"

	"bomstudio/internal/logging"
	"bomstudio/internal/notifications"
)

func (o *Orchestrator) publishDraftReady(ctx context.Context, p *pipeline) {
	o.publish(ctx, notifications.EventDraftReady, notifications.Payload{
		"title":  p.video.Title,
		"client": p.client.Name,
	})
}

func (o *Orchestrator) publishFailure(ctx context.Context, p *pipeline, stageErr error) {
	o.publish(ctx, notifications.EventError, notifications.Payload{
		"title": p.video.Title,
		"stage": p.failedStage,
		"error": stageErr.Error(),
	})
}

func (o *Orchestrator) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		o.logger.Debug("notification failed",
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
