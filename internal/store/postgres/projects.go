package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bomstudio/internal/store"
)

// CreateProject inserts a project. A missing client fails with ErrValidation
// that also matches ErrNotFound.
func (s *Store) CreateProject(ctx context.Context, project *store.Project) error {
	if err := store.PrepareProject(project, time.Now().UTC()); err != nil {
		return err
	}
	row := projectModelFromEntity(project)
	err := s.db.WithContext(ctx).Create(&row).Error
	switch {
	case err == nil:
		return nil
	case isForeignKeyViolation(err):
		return missingParent("create project", "client", project.ClientID)
	case isUniqueViolation(err):
		return store.Conflict("create project", "project id already exists", nil)
	default:
		return store.Internal("create project", err)
	}
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*store.Project, error) {
	return getProject(s.db.WithContext(ctx).Where("id = ?", id), id)
}

// GetProjectForClient fetches a project only when it belongs to clientID.
func (s *Store) GetProjectForClient(ctx context.Context, id, clientID string) (*store.Project, error) {
	return getProject(s.db.WithContext(ctx).Where("id = ? AND client_id = ?", id, clientID), id)
}

func getProject(tx *gorm.DB, id string) (*store.Project, error) {
	var row projectModel
	if err := tx.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.NotFound("project", id)
		}
		return nil, store.Internal("get project", err)
	}
	return row.toEntity(), nil
}

// FindProjects lists projects matching filter, newest first.
func (s *Store) FindProjects(ctx context.Context, filter store.ProjectFilter) ([]*store.Project, error) {
	tx := s.db.WithContext(ctx).Model(&projectModel{})
	if filter.ClientID != "" {
		tx = tx.Where("client_id = ?", filter.ClientID)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	var rows []projectModel
	if err := paginate(tx.Order("created_at DESC, id"), filter.Page).Find(&rows).Error; err != nil {
		return nil, store.Internal("find projects", err)
	}
	projects := make([]*store.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.toEntity())
	}
	return projects, nil
}

// UpdateProject applies a partial update.
func (s *Store) UpdateProject(ctx context.Context, id string, patch store.ProjectPatch) (*store.Project, error) {
	if err := store.ValidateStruct("update project", patch); err != nil {
		return nil, err
	}
	var updated *store.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := getProject(tx.Where("id = ?", id), id)
		if err != nil {
			return err
		}
		patch.Apply(project)
		project.UpdatedAt = time.Now().UTC()
		if err := tx.Model(&projectModel{}).Where("id = ?", id).Updates(map[string]any{
			"name":       project.Name,
			"status":     string(project.Status),
			"updated_at": project.UpdatedAt,
		}).Error; err != nil {
			return err
		}
		updated = project
		return nil
	})
	if err != nil {
		return nil, asStoreError("update project", err)
	}
	return updated, nil
}

// DeleteProject removes a project and its videos.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.deleteByID(ctx, &projectModel{}, "project", id)
}
