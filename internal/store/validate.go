package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct runs tag validation and converts failures into ErrValidation.
func ValidateStruct(operation string, value any) error {
	err := Validator().Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Invalid(operation, err.Error(), nil)
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describeFieldError(fe))
	}
	return Invalid(operation, strings.Join(messages, "; "), nil)
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// PrepareClient applies defaults, normalizes, and validates a new client.
func PrepareClient(client *Client, now time.Time) error {
	if client == nil {
		return Invalid("create client", "client is nil", nil)
	}
	client.Name = strings.TrimSpace(client.Name)
	client.Email = NormalizeEmail(client.Email)
	if client.Package == "" {
		client.Package = PackageKickstart
	}
	if err := ValidateStruct("create client", client); err != nil {
		return err
	}
	assignIdentity(&client.ID, &client.CreatedAt, now)
	client.UpdatedAt = now
	return nil
}

// PrepareProject applies defaults and validates a new project.
func PrepareProject(project *Project, now time.Time) error {
	if project == nil {
		return Invalid("create project", "project is nil", nil)
	}
	project.Name = strings.TrimSpace(project.Name)
	if project.Status == "" {
		project.Status = ProjectDraft
	}
	if err := ValidateStruct("create project", project); err != nil {
		return err
	}
	assignIdentity(&project.ID, &project.CreatedAt, now)
	project.UpdatedAt = now
	return nil
}

// PrepareVideo applies defaults and validates a new video. New videos always
// start in the scripting state.
func PrepareVideo(video *Video, now time.Time) error {
	if video == nil {
		return Invalid("create video", "video is nil", nil)
	}
	video.Title = strings.TrimSpace(video.Title)
	video.Status = VideoScripting
	video.PipelineRunning = false
	if err := ValidateStruct("create video", video); err != nil {
		return err
	}
	assignIdentity(&video.ID, &video.CreatedAt, now)
	video.UpdatedAt = now
	return nil
}

// PrepareAsset validates a new asset.
func PrepareAsset(asset *Asset, now time.Time) error {
	if asset == nil {
		return Invalid("create asset", "asset is nil", nil)
	}
	if err := ValidateStruct("create asset", asset); err != nil {
		return err
	}
	assignIdentity(&asset.ID, &asset.CreatedAt, now)
	return nil
}

// PrepareUsage validates a new ledger entry.
func PrepareUsage(record *UsageRecord, now time.Time) error {
	if record == nil {
		return Invalid("append usage", "usage record is nil", nil)
	}
	if err := ValidateStruct("append usage", record); err != nil {
		return err
	}
	assignIdentity(&record.ID, &record.CreatedAt, now)
	return nil
}

func assignIdentity(id *string, createdAt *time.Time, now time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = now
	}
}
