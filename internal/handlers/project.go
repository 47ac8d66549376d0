package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reqforge/apiserver/internal/logging"
	"github.com/reqforge/apiserver/internal/services"
	"github.com/reqforge/apiserver/internal/store"
	"github.com/reqforge/apiserver/types"
)

// artifactSlugs maps URL path segments to artifact kinds.
var artifactSlugs = map[string]types.Artifact{
	"user-stories": types.ArtifactUserStories,
	"entities":     types.ArtifactEntities,
	"db-design":    types.ArtifactDBDesign,
}

// ProjectHandler provides the project CRUD, generation and export endpoints.
type ProjectHandler struct {
	projects *services.ProjectService
	exports  *services.ExportService
	log      logging.Logger
}

func NewProjectHandler(projects *services.ProjectService, exports *services.ExportService, log logging.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, exports: exports, log: log}
}

// ProjectRouter registers project routes on the given router. All of them
// sit behind the session middleware. exports may be nil when no storage
// backend is configured.
func ProjectRouter(
	r chi.Router,
	projects *services.ProjectService,
	exports *services.ExportService,
	requireSession func(http.Handler) http.Handler,
	log logging.Logger,
) {
	handler := NewProjectHandler(projects, exports, log)

	r.Use(requireSession)
	r.Get("/dashboard", handler.Dashboard)
	r.Route("/projects", func(r chi.Router) {
		r.Post("/", handler.CreateProject)
		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", handler.GetProject)
			r.Put("/requirements", handler.UpdateRequirements)
			r.Post("/generate/{artifact}", handler.Generate)
			r.Post("/export", handler.Export)
			r.Delete("/", handler.DeleteProject)
		})
	})
}

// Dashboard lists the user's projects, most recently updated first.
func (h *ProjectHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	projects, err := h.projects.List(r.Context(), userID)
	if err != nil {
		h.log.Error(r.Context(), "list projects failed", "error", err)
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// CreateProject creates a project and redirects to it.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	name := formValue(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "project name is required")
		return
	}
	var description *string
	if value := formValue(r, "description"); value != "" {
		description = &value
	}

	project, err := h.projects.Create(r.Context(), userID, name, description)
	if err != nil {
		h.log.Error(r.Context(), "create project failed", "error", err)
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}

	http.Redirect(w, r, "/projects/"+project.ID, http.StatusSeeOther)
}

// GetProject returns the project with its document and artifacts.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	project, err := h.projects.Get(r.Context(), chi.URLParam(r, "projectID"), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.log.Error(r.Context(), "get project failed", "error", err)
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// UpdateRequirements replaces the project's requirements document.
func (h *ProjectHandler) UpdateRequirements(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	doc := r.PostFormValue("requirement_doc")

	if err := h.projects.UpdateRequirementDoc(r.Context(), chi.URLParam(r, "projectID"), userID, doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.log.Error(r.Context(), "update requirements failed", "error", err)
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Generate derives one artifact from the requirements document.
func (h *ProjectHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	artifact, ok := artifactSlugs[chi.URLParam(r, "artifact")]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown artifact")
		return
	}

	content, err := h.projects.Generate(r.Context(), chi.URLParam(r, "projectID"), userID, artifact)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "project not found")
		case errors.Is(err, services.ErrNoRequirementDoc):
			writeError(w, http.StatusBadRequest, "save a requirements document first")
		default:
			h.log.Error(r.Context(), "generation failed", "artifact", string(artifact), "error", err)
			writeError(w, http.StatusBadGateway, "generation failed, please try again later")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"artifact": artifact,
		"content":  content,
	})
}

// Export snapshots the project into object storage.
func (h *ProjectHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		writeError(w, http.StatusNotImplemented, "export storage is not configured")
		return
	}

	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	key, err := h.exports.Export(r.Context(), chi.URLParam(r, "projectID"), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.log.Error(r.Context(), "export failed", "error", err)
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"key": key})
}

// DeleteProject removes the project.
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.projects.Delete(r.Context(), chi.URLParam(r, "projectID"), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.log.Error(r.Context(), "delete project failed", "error", err)
		writeError(w, http.StatusInternalServerError, genericRetryMessage)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
