package video

import (
	"context"
	"log/slog"

	"bomstudio/internal/logging"
	"bomstudio/internal/notifications"
	"bomstudio/internal/services"
	"bomstudio/internal/store"
)

// DeliveryRequest describes a rendered file handed to a Deliverer.
type DeliveryRequest struct {
	ClientID   string
	ClientName string
	VideoID    string
	Title      string
	Format     string
	FilePath   string
}

// Deliverer publishes a rendered video and returns a shareable URL.
type Deliverer interface {
	Deliver(ctx context.Context, req DeliveryRequest) (string, error)
}

// Service runs review actions against stored videos.
type Service struct {
	store     store.Store
	machine   *Machine
	deliverer Deliverer
	notifier  notifications.Service
	logger    *slog.Logger
}

// NewService builds a review Service. deliverer may be nil, in which case
// delivery records the primary rendered format as the delivery URL.
func NewService(st store.Store, deliverer Deliverer, logger *slog.Logger) *Service {
	return &Service{
		store:     st,
		machine:   NewMachine(),
		deliverer: deliverer,
		logger:    logging.NewComponentLogger(logger, "video"),
	}
}

// WithNotifier publishes review milestones through n.
func (s *Service) WithNotifier(n notifications.Service) *Service {
	s.notifier = n
	return s
}

// Submit moves a draft into review. Only the owning client may submit; other
// callers see the video as not found.
func (s *Service) Submit(ctx context.Context, videoID, callerClientID string) (*store.Video, error) {
	v, err := s.store.GetVideoForClient(ctx, videoID, callerClientID)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, v.ProjectID)
	if err != nil {
		return nil, err
	}
	in := Input{CallerClientID: callerClientID, OwnerClientID: project.ClientID}
	updated, err := s.transition(ctx, v, EventSubmit, in)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notifications.EventReviewRequested, notifications.Payload{"title": updated.Title})
	return updated, nil
}

// Approve moves a reviewed video to approved. A nil note keeps the existing one.
func (s *Service) Approve(ctx context.Context, videoID string, note *string) (*store.Video, error) {
	v, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	updated, err := s.transition(ctx, v, EventApprove, Input{Note: note})
	if err != nil {
		return nil, err
	}
	s.advanceProject(ctx, updated.ProjectID, store.ProjectApproved)
	payload := notifications.Payload{"title": updated.Title}
	if updated.ApprovalNote != nil {
		payload["note"] = *updated.ApprovalNote
	}
	s.publish(ctx, notifications.EventVideoApproved, payload)
	return updated, nil
}

// Reject sends a reviewed video back to draft.
func (s *Service) Reject(ctx context.Context, videoID string, note *string) (*store.Video, error) {
	v, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, v, EventReject, Input{Note: note})
}

// Review is the single-endpoint form of Approve and Reject.
func (s *Service) Review(ctx context.Context, videoID string, approved bool, note *string) (*store.Video, error) {
	if approved {
		return s.Approve(ctx, videoID, note)
	}
	return s.Reject(ctx, videoID, note)
}

// Deliver publishes an approved video. With a Deliverer configured the
// primary rendered file is uploaded and its URL recorded.
func (s *Service) Deliver(ctx context.Context, videoID string) (*store.Video, error) {
	v, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	// Check the edge before uploading anything.
	if _, ok := Target(v.Status, EventDeliver); !ok || len(v.Formats) == 0 {
		probe := *v
		return nil, s.machine.Apply(&probe, EventDeliver, Input{})
	}

	var url string
	if s.deliverer != nil {
		format, path, _ := v.Formats.Primary()
		req := DeliveryRequest{VideoID: v.ID, Title: v.Title, Format: format, FilePath: path}
		if project, err := s.store.GetProject(ctx, v.ProjectID); err == nil {
			req.ClientID = project.ClientID
			if client, err := s.store.GetClient(ctx, project.ClientID); err == nil {
				req.ClientName = client.Name
			}
		}
		url, err = s.deliverer.Deliver(ctx, req)
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "delivery", "deliver video", "upload failed", err)
		}
	}

	updated, err := s.transition(ctx, v, EventDeliver, Input{DeliveryURL: url})
	if err != nil {
		return nil, err
	}
	s.advanceProject(ctx, updated.ProjectID, store.ProjectDelivered)
	payload := notifications.Payload{"title": updated.Title}
	if updated.DeliveryURL != nil {
		payload["url"] = *updated.DeliveryURL
	}
	s.publish(ctx, notifications.EventVideoDelivered, payload)
	return updated, nil
}

func (s *Service) transition(ctx context.Context, v *store.Video, event Event, in Input) (*store.Video, error) {
	from := v.Status
	if err := s.machine.Apply(v, event, in); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "video transition rejected", "video_transition_rejected",
			logging.String(logging.FieldVideoID, v.ID),
			logging.String(logging.FieldErrorHint, "check the video status before retrying the action"),
			logging.String("event", string(event)),
			logging.String("from", string(from)),
			logging.Error(err),
		)
		return nil, err
	}
	if err := s.store.SaveVideo(ctx, v, from); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "video transition not saved", "video_transition_conflict",
			logging.String(logging.FieldVideoID, v.ID),
			logging.String(logging.FieldErrorHint, "reload the video; another action changed it first"),
			logging.String("event", string(event)),
			logging.String("from", string(from)),
			logging.Error(err),
		)
		return nil, err
	}
	logging.WithContext(ctx, s.logger).Info("video transitioned",
		logging.String(logging.FieldVideoID, v.ID),
		logging.String(logging.FieldEventType, "video_transitioned"),
		logging.String("event", string(event)),
		logging.String("from", string(from)),
		logging.String("to", string(v.Status)),
	)
	return v, nil
}

func (s *Service) advanceProject(ctx context.Context, projectID string, status store.ProjectStatus) {
	if _, err := s.store.UpdateProject(ctx, projectID, store.ProjectPatch{Status: &status}); err != nil {
		s.logger.Warn("project status update failed",
			logging.String(logging.FieldProjectID, projectID),
			logging.String("status", string(status)),
			logging.Error(err),
		)
	}
}

func (s *Service) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		s.logger.Debug("notification failed",
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
