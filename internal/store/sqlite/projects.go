package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bomstudio/internal/store"
)

const projectColumns = "id, client_id, name, status, created_at, updated_at"

func scanProject(row scanner) (*store.Project, error) {
	var (
		project                store.Project
		status                 string
		createdRaw, updatedRaw sql.NullString
	)
	if err := row.Scan(&project.ID, &project.ClientID, &project.Name, &status, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	project.Status = store.ProjectStatus(status)
	project.CreatedAt = parseTime(createdRaw)
	project.UpdatedAt = parseTime(updatedRaw)
	return &project, nil
}

// CreateProject inserts a project. A missing client fails with ErrValidation
// (the error also matches ErrNotFound).
func (s *Store) CreateProject(ctx context.Context, project *store.Project) error {
	if err := store.PrepareProject(project, time.Now().UTC()); err != nil {
		return err
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM clients WHERE id = ?`, project.ClientID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return missingParent("create project", "client", project.ClientID)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			project.ID, project.ClientID, project.Name, string(project.Status),
			formatTime(project.CreatedAt), formatTime(project.UpdatedAt),
		)
		if isForeignKeyViolation(err) {
			return missingParent("create project", "client", project.ClientID)
		}
		if isUniqueViolation(err) {
			return store.Conflict("create project", "project id already exists", nil)
		}
		return err
	})
	return asStoreError("create project", err)
}

func missingParent(operation, entity, id string) error {
	return store.Invalid(operation, entity+" not found", store.NotFound(entity, id))
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*store.Project, error) {
	return s.getProject(ctx, s.db, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
}

// GetProjectForClient fetches a project only when it belongs to clientID.
func (s *Store) GetProjectForClient(ctx context.Context, id, clientID string) (*store.Project, error) {
	return s.getProject(ctx, s.db, `SELECT `+projectColumns+` FROM projects WHERE id = ? AND client_id = ?`, id, clientID)
}

func (s *Store) getProject(ctx context.Context, q querier, query string, args ...any) (*store.Project, error) {
	project, err := scanProject(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("project", args[0].(string))
	}
	if err != nil {
		return nil, store.Internal("get project", err)
	}
	return project, nil
}

// FindProjects lists projects matching filter, newest first.
func (s *Store) FindProjects(ctx context.Context, filter store.ProjectFilter) ([]*store.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE 1 = 1`
	var args []any
	if filter.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	limit, limitArgs := pageClause(filter.Page)
	query += ` ORDER BY created_at DESC, id` + limit
	args = append(args, limitArgs...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Internal("find projects", err)
	}
	defer rows.Close()

	var projects []*store.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, store.Internal("scan project", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Internal("find projects", err)
	}
	return projects, nil
}

// UpdateProject applies a partial update inside a transaction.
func (s *Store) UpdateProject(ctx context.Context, id string, patch store.ProjectPatch) (*store.Project, error) {
	if err := store.ValidateStruct("update project", patch); err != nil {
		return nil, err
	}
	var updated *store.Project
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		project, err := s.getProject(ctx, tx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
		if err != nil {
			return err
		}
		patch.Apply(project)
		project.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE projects SET name = ?, status = ?, updated_at = ? WHERE id = ?`,
			project.Name, string(project.Status), formatTime(project.UpdatedAt), id,
		); err != nil {
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

// DeleteProject removes a project and its videos. Usage records keep their
// amounts with the project reference cleared.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "projects", "project", id)
}
