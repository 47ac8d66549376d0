package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reqforge/apiserver/types"
)

// ProjectRepository handles persistence for projects.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ListByUser returns the user's projects, most recently updated first.
func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]types.Project, error) {
	const query = `
		SELECT id, user_id, name, description, requirement_doc, user_stories, entities, db_design, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0)
	for rows.Next() {
		var project types.Project
		if err := rows.Scan(
			&project.ID,
			&project.UserID,
			&project.Name,
			&project.Description,
			&project.RequirementDoc,
			&project.UserStories,
			&project.Entities,
			&project.DBDesign,
			&project.CreatedAt,
			&project.UpdatedAt,
		); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return projects, nil
}

// Get returns the project only if it belongs to the given user.
func (r *ProjectRepository) Get(ctx context.Context, id, userID string) (types.Project, error) {
	const query = `
		SELECT id, user_id, name, description, requirement_doc, user_stories, entities, db_design, created_at, updated_at
		FROM projects
		WHERE id = $1 AND user_id = $2`
	var project types.Project
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&project.ID,
		&project.UserID,
		&project.Name,
		&project.Description,
		&project.RequirementDoc,
		&project.UserStories,
		&project.Entities,
		&project.DBDesign,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.ID == "" {
		project.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO projects (id, user_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		project.ID,
		project.UserID,
		project.Name,
		project.Description,
		project.CreatedAt,
		project.UpdatedAt,
	); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

// SetRequirementDoc replaces the requirements document text.
func (r *ProjectRepository) SetRequirementDoc(ctx context.Context, id, userID, doc string) error {
	const query = `
		UPDATE projects
		SET requirement_doc = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4`
	return r.execOwned(ctx, query, doc, time.Now(), id, userID)
}

// SetArtifact stores generated content in the column matching the artifact kind.
func (r *ProjectRepository) SetArtifact(ctx context.Context, id, userID string, artifact types.Artifact, content string) error {
	if !artifact.Valid() {
		return fmt.Errorf("unknown artifact kind %q", artifact)
	}
	// Column names come from the fixed Artifact constants, never from user input.
	query := fmt.Sprintf(`
		UPDATE projects
		SET %s = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4`, string(artifact))
	return r.execOwned(ctx, query, content, time.Now(), id, userID)
}

func (r *ProjectRepository) Delete(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM projects WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) execOwned(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
