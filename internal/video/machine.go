package video

import (
	"fmt"
	"os"
	"strings"
	"time"

	"bomstudio/internal/services"
	"bomstudio/internal/store"
)

// Event names a request to move a video between states.
type Event string

const (
	EventScriptGenerated Event = "script_generated"
	EventAssetsReady     Event = "assets_ready"
	EventRenderSucceeded Event = "render_succeeded"
	EventSubmit          Event = "submit"
	EventApprove         Event = "approve"
	EventReject          Event = "reject"
	EventDeliver         Event = "deliver"
	EventStageFailed     Event = "stage_failed"
)

// FailureNotePrefix starts the approval note recorded on pipeline failure.
const FailureNotePrefix = "Generation failed: "

type edge struct {
	from  store.VideoStatus
	event Event
}

var transitions = map[edge]store.VideoStatus{
	{store.VideoScripting, EventScriptGenerated}: store.VideoGenerating,
	{store.VideoGenerating, EventAssetsReady}:    store.VideoRendering,
	{store.VideoRendering, EventRenderSucceeded}: store.VideoDraft,
	{store.VideoDraft, EventSubmit}:              store.VideoReview,
	{store.VideoReview, EventApprove}:            store.VideoApproved,
	{store.VideoReview, EventReject}:             store.VideoDraft,
	{store.VideoApproved, EventDeliver}:          store.VideoDelivered,
	{store.VideoScripting, EventStageFailed}:     store.VideoScripting,
	{store.VideoGenerating, EventStageFailed}:    store.VideoScripting,
	{store.VideoRendering, EventStageFailed}:     store.VideoScripting,
}

// eventTargets lists the nominal destination of each event, used to name the
// requested state when the current state has no matching edge.
var eventTargets = map[Event]store.VideoStatus{
	EventScriptGenerated: store.VideoGenerating,
	EventAssetsReady:     store.VideoRendering,
	EventRenderSucceeded: store.VideoDraft,
	EventSubmit:          store.VideoReview,
	EventApprove:         store.VideoApproved,
	EventReject:          store.VideoDraft,
	EventDeliver:         store.VideoDelivered,
	EventStageFailed:     store.VideoScripting,
}

// Target reports the state event leads to from status.
func Target(from store.VideoStatus, event Event) (store.VideoStatus, bool) {
	to, ok := transitions[edge{from, event}]
	return to, ok
}

// Events lists the events accepted in status.
func Events(status store.VideoStatus) []Event {
	var events []Event
	for _, event := range []Event{
		EventScriptGenerated, EventAssetsReady, EventRenderSucceeded,
		EventSubmit, EventApprove, EventReject, EventDeliver, EventStageFailed,
	} {
		if _, ok := Target(status, event); ok {
			events = append(events, event)
		}
	}
	return events
}

// TransitionError reports an illegal transition or a failed guard. It matches
// services.ErrInvalidTransition.
type TransitionError struct {
	From   store.VideoStatus
	To     store.VideoStatus
	Event  Event
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition %s -> %s (%s)", e.From, e.To, e.Event)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is lets errors.Is(err, services.ErrInvalidTransition) succeed.
func (e *TransitionError) Is(target error) bool {
	return target == services.ErrInvalidTransition
}

// Input carries the facts a guard needs.
type Input struct {
	// CallerClientID and OwnerClientID gate EventSubmit.
	CallerClientID string
	OwnerClientID  string
	// Note replaces approval_note when non-blank (approve, reject).
	Note *string
	// ImageCount and AudioReady gate EventAssetsReady.
	ImageCount int
	AudioReady bool
	// Format and OutputPath describe the rendered file for EventRenderSucceeded.
	Format     string
	OutputPath string
	// DeliveryURL is recorded on EventDeliver; the primary format is used when empty.
	DeliveryURL string
	// Err is the stage failure recorded on EventStageFailed.
	Err error
}

// Machine applies events to videos.
type Machine struct {
	now func() time.Time
}

// NewMachine returns a Machine stamping times from the wall clock.
func NewMachine() *Machine {
	return &Machine{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a copy of m using now for timestamps.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	return &Machine{now: now}
}

// Apply validates event against v's current status and the event guard, then
// mutates v. On error v is left untouched.
func (m *Machine) Apply(v *store.Video, event Event, in Input) error {
	if v == nil {
		return services.Wrap(services.ErrValidation, "video", "apply", "video is nil", nil)
	}
	to, ok := Target(v.Status, event)
	if !ok {
		requested, known := eventTargets[event]
		if !known {
			return &TransitionError{From: v.Status, Event: event, Reason: "unknown event"}
		}
		return &TransitionError{From: v.Status, To: requested, Event: event}
	}
	if reason := guard(v, event, in); reason != "" {
		return &TransitionError{From: v.Status, To: to, Event: event, Reason: reason}
	}

	now := m.now()
	switch event {
	case EventRenderSucceeded:
		if v.Formats == nil {
			v.Formats = store.Formats{}
		}
		v.Formats[in.Format] = in.OutputPath
	case EventScriptGenerated:
		v.ApprovalNote = nil
	case EventApprove:
		v.ApprovedAt = &now
		if hasNote(in.Note) {
			v.ApprovalNote = in.Note
		}
	case EventReject:
		if hasNote(in.Note) {
			v.ApprovalNote = in.Note
		}
	case EventDeliver:
		url := in.DeliveryURL
		if url == "" {
			_, url, _ = v.Formats.Primary()
		}
		v.DeliveryURL = &url
		v.DeliveredAt = &now
	case EventStageFailed:
		note := FailureNotePrefix + in.Err.Error()
		v.ApprovalNote = &note
	}
	v.Status = to
	v.UpdatedAt = now
	return nil
}

func hasNote(note *string) bool {
	return note != nil && strings.TrimSpace(*note) != ""
}

func guard(v *store.Video, event Event, in Input) string {
	switch event {
	case EventScriptGenerated:
		if v.Script.IsEmpty() {
			return "script is empty"
		}
	case EventAssetsReady:
		if in.ImageCount <= 0 {
			return "no images produced"
		}
		if !in.AudioReady {
			return "voiceover not produced"
		}
	case EventRenderSucceeded:
		if strings.TrimSpace(in.Format) == "" {
			return "render format missing"
		}
		if strings.TrimSpace(in.OutputPath) == "" {
			return "render output missing"
		}
		if info, err := os.Stat(in.OutputPath); err != nil || info.IsDir() {
			return "render output does not exist"
		}
	case EventSubmit:
		if in.CallerClientID == "" || in.CallerClientID != in.OwnerClientID {
			return "caller does not own the project"
		}
	case EventDeliver:
		if len(v.Formats) == 0 {
			return "no rendered formats to deliver"
		}
	case EventStageFailed:
		if in.Err == nil {
			return "stage failure without error"
		}
	}
	return ""
}
