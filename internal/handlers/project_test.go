package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/reqforge/apiserver/internal/events"
	"github.com/reqforge/apiserver/internal/services"
	"github.com/reqforge/apiserver/internal/store"
	"github.com/reqforge/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*types.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: make(map[string]*types.Project)}
}

func (r *memProjectRepo) ListByUser(_ context.Context, userID string) ([]types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]types.Project, 0)
	for _, project := range r.projects {
		if project.UserID == userID {
			result = append(result, *project)
		}
	}
	return result, nil
}

func (r *memProjectRepo) Get(_ context.Context, id, userID string) (types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if project, ok := r.projects[id]; ok && project.UserID == userID {
		return *project, nil
	}
	return types.Project{}, store.ErrNotFound
}

func (r *memProjectRepo) Create(_ context.Context, project types.Project) (types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	project.ID = uuid.NewString()
	project.CreatedAt = time.Now()
	project.UpdatedAt = project.CreatedAt
	r.projects[project.ID] = &project
	return project, nil
}

func (r *memProjectRepo) SetRequirementDoc(_ context.Context, id, userID, doc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	project, ok := r.projects[id]
	if !ok || project.UserID != userID {
		return store.ErrNotFound
	}
	project.RequirementDoc = &doc
	return nil
}

func (r *memProjectRepo) SetArtifact(_ context.Context, id, userID string, artifact types.Artifact, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	project, ok := r.projects[id]
	if !ok || project.UserID != userID {
		return store.ErrNotFound
	}
	switch artifact {
	case types.ArtifactUserStories:
		project.UserStories = &content
	case types.ArtifactEntities:
		project.Entities = &content
	case types.ArtifactDBDesign:
		project.DBDesign = &content
	}
	return nil
}

func (r *memProjectRepo) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if project, ok := r.projects[id]; ok && project.UserID == userID {
		delete(r.projects, id)
		return nil
	}
	return store.ErrNotFound
}

type fakeGenerator struct {
	content string
	err     error
}

func (g *fakeGenerator) Generate(context.Context, types.Artifact, string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.content, nil
}

const testUserID = "user-1"

// asUser stands in for the session middleware during handler tests.
func asUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), contextUserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type projectEnv struct {
	router    *chi.Mux
	repo      *memProjectRepo
	generator *fakeGenerator
}

func newProjectEnv(t *testing.T) *projectEnv {
	t.Helper()
	repo := newMemProjectRepo()
	generator := &fakeGenerator{content: "generated output"}
	projects := services.NewProjectService(repo, generator, events.NoopPublisher{}, nopLogger{})

	router := chi.NewRouter()
	ProjectRouter(router, projects, nil, asUser(testUserID), nopLogger{})
	return &projectEnv{router: router, repo: repo, generator: generator}
}

func (e *projectEnv) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	r := httptest.NewRequest(method, path, body)
	if form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func (e *projectEnv) createProject(t *testing.T) string {
	t.Helper()
	w := e.do(http.MethodPost, "/projects/", url.Values{"name": {"Webshop"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	return location[strings.LastIndex(location, "/")+1:]
}

func TestCreateProjectRedirects(t *testing.T) {
	env := newProjectEnv(t)

	w := env.do(http.MethodPost, "/projects/", url.Values{"name": {"Webshop"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/projects/"))
}

func TestCreateProjectRequiresName(t *testing.T) {
	env := newProjectEnv(t)

	w := env.do(http.MethodPost, "/projects/", url.Values{"name": {"   "}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProjectScopedToOwner(t *testing.T) {
	env := newProjectEnv(t)
	projectID := env.createProject(t)

	w := env.do(http.MethodGet, "/projects/"+projectID+"/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Webshop")

	// Same route, different user: the project does not exist for them.
	other := newProjectEnv(t)
	w = other.do(http.MethodGet, "/projects/"+projectID+"/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboardListsProjects(t *testing.T) {
	env := newProjectEnv(t)
	env.createProject(t)

	w := env.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Webshop")
}

func TestGenerateWithoutDocument(t *testing.T) {
	env := newProjectEnv(t)
	projectID := env.createProject(t)

	w := env.do(http.MethodPost, "/projects/"+projectID+"/generate/user-stories", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "requirements document")
}

func TestGenerateUnknownArtifact(t *testing.T) {
	env := newProjectEnv(t)
	projectID := env.createProject(t)

	w := env.do(http.MethodPost, "/projects/"+projectID+"/generate/wireframes", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown artifact")
}

func TestGeneratePersistsArtifact(t *testing.T) {
	env := newProjectEnv(t)
	projectID := env.createProject(t)

	w := env.do(http.MethodPut, "/projects/"+projectID+"/requirements", url.Values{
		"requirement_doc": {"The shop sells things."},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/projects/"+projectID+"/generate/db-design", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "generated output")

	stored, err := env.repo.Get(context.Background(), projectID, testUserID)
	require.NoError(t, err)
	require.NotNil(t, stored.DBDesign)
	assert.Equal(t, "generated output", *stored.DBDesign)
}

func TestGenerateUpstreamFailure(t *testing.T) {
	env := newProjectEnv(t)
	projectID := env.createProject(t)

	w := env.do(http.MethodPut, "/projects/"+projectID+"/requirements", url.Values{
		"requirement_doc": {"doc"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	env.generator.err = errors.New("upstream timeout")
	w = env.do(http.MethodPost, "/projects/"+projectID+"/generate/entities", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestExportUnconfigured(t *testing.T) {
	env := newProjectEnv(t)
	projectID := env.createProject(t)

	w := env.do(http.MethodPost, "/projects/"+projectID+"/export", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestDeleteProject(t *testing.T) {
	env := newProjectEnv(t)
	projectID := env.createProject(t)

	w := env.do(http.MethodDelete, "/projects/"+projectID+"/", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/projects/"+projectID+"/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
