package store

import "context"

// Clients persists Client records.
type Clients interface {
	CreateClient(ctx context.Context, client *Client) error
	GetClient(ctx context.Context, id string) (*Client, error)
	GetClientByEmail(ctx context.Context, email string) (*Client, error)
	FindClients(ctx context.Context, filter ClientFilter) ([]*Client, error)
	UpdateClient(ctx context.Context, id string, patch ClientPatch) (*Client, error)
	DeleteClient(ctx context.Context, id string) error
}

// Projects persists Project records.
type Projects interface {
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	GetProjectForClient(ctx context.Context, id, clientID string) (*Project, error)
	FindProjects(ctx context.Context, filter ProjectFilter) ([]*Project, error)
	UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// Videos persists Video records and the per-video pipeline guard.
type Videos interface {
	CreateVideo(ctx context.Context, video *Video) error
	GetVideo(ctx context.Context, id string) (*Video, error)
	GetVideoForClient(ctx context.Context, id, clientID string) (*Video, error)
	FindVideos(ctx context.Context, filter VideoFilter) ([]*Video, error)
	UpdateVideo(ctx context.Context, id string, patch VideoPatch) (*Video, error)
	// SaveVideo writes every mutable column of video provided the stored
	// status still equals from; otherwise it fails with ErrConflict. It is
	// the only path that changes status and is reserved for the state machine.
	SaveVideo(ctx context.Context, video *Video, from VideoStatus) error
	DeleteVideo(ctx context.Context, id string) error

	// ClaimPipeline atomically sets the in-flight guard on a video in the
	// scripting state. It fails with ErrConflict when a run already holds it.
	ClaimPipeline(ctx context.Context, id string) (*Video, error)
	ReleasePipeline(ctx context.Context, id string) error
	// ResetStalePipelines clears guards left behind by a crashed process and
	// rolls interrupted videos back to scripting.
	ResetStalePipelines(ctx context.Context, note string) (int64, error)
}

// Assets persists immutable Asset records.
type Assets interface {
	CreateAssets(ctx context.Context, assets []*Asset) error
	GetAsset(ctx context.Context, id string) (*Asset, error)
	ListAssets(ctx context.Context, videoID string) ([]*Asset, error)
}

// Usage persists the append-only usage ledger.
type Usage interface {
	AppendUsage(ctx context.Context, records ...*UsageRecord) error
	ListUsage(ctx context.Context, filter UsageFilter) ([]*UsageRecord, error)
	SumUsage(ctx context.Context, filter UsageFilter) (int, error)
}

// Store is the complete entity store contract.
type Store interface {
	Clients
	Projects
	Videos
	Assets
	Usage
	Close() error
}
