package types

import "time"

// Artifact identifies one of the generated outputs of a project.
type Artifact string

const (
	ArtifactUserStories Artifact = "user_stories"
	ArtifactEntities    Artifact = "entities"
	ArtifactDBDesign    Artifact = "db_design"
)

// Valid reports whether a is a known artifact kind.
func (a Artifact) Valid() bool {
	switch a {
	case ArtifactUserStories, ArtifactEntities, ArtifactDBDesign:
		return true
	}
	return false
}

// Project is a requirements-analysis workspace owned by a single user.
type Project struct {
	// ID is the unique identifier of the project.
	ID string `json:"id" db:"id"`

	// UserID is the owning user. Every project operation is scoped to it.
	UserID string `json:"user_id" db:"user_id"`

	// Name is the project title.
	Name string `json:"name" db:"name"`

	// Description is an optional free-text summary.
	Description *string `json:"description" db:"description"`

	// RequirementDoc is the pasted requirements document the three
	// artifacts are generated from.
	RequirementDoc *string `json:"requirement_doc" db:"requirement_doc"`

	// UserStories holds the generated user stories, if any.
	UserStories *string `json:"user_stories" db:"user_stories"`

	// Entities holds the generated entity analysis, if any.
	Entities *string `json:"entities" db:"entities"`

	// DBDesign holds the generated database design, if any.
	DBDesign *string `json:"db_design" db:"db_design"`

	// CreatedAt is the timestamp when the project was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the project.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
