package services

import (
	"context"
	"errors"

	"github.com/reqforge/apiserver/internal/ai"
	"github.com/reqforge/apiserver/internal/events"
	"github.com/reqforge/apiserver/internal/logging"
	"github.com/reqforge/apiserver/types"
)

// ErrNoRequirementDoc is returned when generation is requested before a
// requirements document has been saved.
var ErrNoRequirementDoc = errors.New("project has no requirements document")

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	ListByUser(ctx context.Context, userID string) ([]types.Project, error)
	Get(ctx context.Context, id, userID string) (types.Project, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
	SetRequirementDoc(ctx context.Context, id, userID, doc string) error
	SetArtifact(ctx context.Context, id, userID string, artifact types.Artifact, content string) error
	Delete(ctx context.Context, id, userID string) error
}

// ProjectService encapsulates project use-cases, including artifact
// generation against the hosted model.
type ProjectService struct {
	repo      ProjectRepository
	generator ai.Generator
	bus       events.Publisher
	log       logging.Logger
}

func NewProjectService(repo ProjectRepository, generator ai.Generator, bus events.Publisher, log logging.Logger) *ProjectService {
	return &ProjectService{
		repo:      repo,
		generator: generator,
		bus:       bus,
		log:       log,
	}
}

func (s *ProjectService) List(ctx context.Context, userID string) ([]types.Project, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *ProjectService) Get(ctx context.Context, id, userID string) (types.Project, error) {
	return s.repo.Get(ctx, id, userID)
}

func (s *ProjectService) Create(ctx context.Context, userID, name string, description *string) (types.Project, error) {
	project, err := s.repo.Create(ctx, types.Project{
		UserID:      userID,
		Name:        name,
		Description: description,
	})
	if err != nil {
		return types.Project{}, err
	}

	s.publish(ctx, events.Event{
		Kind:      events.KindProjectCreated,
		ProjectID: project.ID,
		UserID:    userID,
	})
	return project, nil
}

func (s *ProjectService) UpdateRequirementDoc(ctx context.Context, id, userID, doc string) error {
	return s.repo.SetRequirementDoc(ctx, id, userID, doc)
}

// Generate derives one artifact from the project's requirements document,
// persists it and returns the generated content.
func (s *ProjectService) Generate(ctx context.Context, id, userID string, artifact types.Artifact) (string, error) {
	project, err := s.repo.Get(ctx, id, userID)
	if err != nil {
		return "", err
	}
	if project.RequirementDoc == nil || *project.RequirementDoc == "" {
		return "", ErrNoRequirementDoc
	}

	content, err := s.generator.Generate(ctx, artifact, *project.RequirementDoc)
	if err != nil {
		return "", err
	}

	if err := s.repo.SetArtifact(ctx, id, userID, artifact, content); err != nil {
		return "", err
	}

	s.publish(ctx, events.Event{
		Kind:      events.KindArtifactGenerated,
		ProjectID: id,
		UserID:    userID,
		Artifact:  artifact,
	})
	return content, nil
}

func (s *ProjectService) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}

	s.publish(ctx, events.Event{
		Kind:      events.KindProjectDeleted,
		ProjectID: id,
		UserID:    userID,
	})
	return nil
}

// publish is best-effort; a broker outage never fails the request.
func (s *ProjectService) publish(ctx context.Context, event events.Event) {
	if err := s.bus.Publish(ctx, event); err != nil {
		s.log.Warn(ctx, "event publish failed", "kind", event.Kind, "project_id", event.ProjectID, "error", err)
	}
}
