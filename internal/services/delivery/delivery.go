// Package delivery uploads approved videos to Google Drive, one folder per
// client.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"bomstudio/internal/logging"
	"bomstudio/internal/services"
	"bomstudio/internal/video"
)

const (
	stageName      = "delivery"
	folderMimeType = "application/vnd.google-apps.folder"
)

// Config holds Drive settings.
type Config struct {
	CredentialsFile string
	// ParentFolderID holds the per-client folders. Empty means the drive root.
	ParentFolderID string
}

// Drive uploads rendered files and returns their web view links.
type Drive struct {
	files  *drive.FilesService
	parent string
	logger *slog.Logger
}

// New authenticates with a service-account key file and builds a Drive
// deliverer.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Drive, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "credentials", "read credentials file", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveFileScope)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "credentials", "parse credentials", err)
	}
	return NewWithOptions(ctx, cfg, logger, option.WithHTTPClient(oauth2.NewClient(ctx, creds.TokenSource)))
}

// NewWithOptions builds a Drive deliverer from explicit client options.
func NewWithOptions(ctx context.Context, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "create drive service", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Drive{
		files:  svc.Files,
		parent: strings.TrimSpace(cfg.ParentFolderID),
		logger: logger,
	}, nil
}

// Deliver uploads req.FilePath into the client's folder.
func (d *Drive) Deliver(ctx context.Context, req video.DeliveryRequest) (string, error) {
	file, err := os.Open(req.FilePath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "upload", "open rendered file", err)
	}
	defer file.Close()

	folderID, err := d.clientFolder(ctx, folderName(req))
	if err != nil {
		return "", err
	}

	meta := &drive.File{
		Name:    uploadName(req),
		Parents: []string{folderID},
	}
	uploaded, err := d.files.Create(meta).Media(file).Fields("id", "webViewLink").Context(ctx).Do()
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "upload", meta.Name, err)
	}
	link := uploaded.WebViewLink
	if link == "" {
		link = fmt.Sprintf("https://drive.google.com/file/d/%s/view", uploaded.Id)
	}
	d.logger.Info("video uploaded",
		logging.String(logging.FieldEventType, "delivery_uploaded"),
		logging.String(logging.FieldVideoID, req.VideoID),
		logging.String("drive_file_id", uploaded.Id),
	)
	return link, nil
}

func (d *Drive) clientFolder(ctx context.Context, name string) (string, error) {
	parent := d.parent
	if parent == "" {
		parent = "root"
	}
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), folderMimeType, escapeQuery(parent))
	list, err := d.files.List().Q(query).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "find folder", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}
	folder, err := d.files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parent},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "create folder", name, err)
	}
	return folder.Id, nil
}

func folderName(req video.DeliveryRequest) string {
	if name := strings.TrimSpace(req.ClientName); name != "" {
		return name
	}
	return req.ClientID
}

func uploadName(req video.DeliveryRequest) string {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.VideoID
	}
	ext := filepath.Ext(req.FilePath)
	if ext == "" {
		ext = ".mp4"
	}
	if req.Format != "" {
		return fmt.Sprintf("%s (%s)%s", title, req.Format, ext)
	}
	return title + ext
}

func escapeQuery(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, "'", `\'`)
}
