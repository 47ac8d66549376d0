package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reqforge/apiserver/internal/events"
	"github.com/reqforge/apiserver/internal/logging"
	"github.com/reqforge/apiserver/internal/storage"
	"github.com/reqforge/apiserver/types"
)

const exportContentType = "application/json"

// ExportBundle is the object written to storage for a project export.
type ExportBundle struct {
	Project    types.Project `json:"project"`
	ExportedAt time.Time     `json:"exported_at"`
}

// ExportService snapshots a project's document and artifacts into object
// storage.
type ExportService struct {
	repo    ProjectRepository
	objects storage.ObjectStorage
	bus     events.Publisher
	log     logging.Logger
}

func NewExportService(repo ProjectRepository, objects storage.ObjectStorage, bus events.Publisher, log logging.Logger) *ExportService {
	return &ExportService{
		repo:    repo,
		objects: objects,
		bus:     bus,
		log:     log,
	}
}

// Export writes the project bundle to object storage and returns the object key.
func (s *ExportService) Export(ctx context.Context, id, userID string) (string, error) {
	project, err := s.repo.Get(ctx, id, userID)
	if err != nil {
		return "", err
	}

	now := time.Now()
	bundle := ExportBundle{Project: project, ExportedAt: now}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("exports/%s/%s.json", project.ID, now.UTC().Format("20060102T150405Z"))
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), exportContentType); err != nil {
		return "", err
	}

	if err := s.bus.Publish(ctx, events.Event{
		Kind:      events.KindProjectExported,
		ProjectID: project.ID,
		UserID:    userID,
		At:        now,
	}); err != nil {
		s.log.Warn(ctx, "event publish failed", "kind", events.KindProjectExported, "project_id", project.ID, "error", err)
	}

	return key, nil
}
