package models

import (
	"encoding/json"
	"fmt"
	"os"
)

// ProjectStatus tracks a project through the pipeline stages.
type ProjectStatus string

const (
	ProjectStatusPending  ProjectStatus = "pending"
	ProjectStatusPrepared ProjectStatus = "prepared"
	ProjectStatusRendered ProjectStatus = "rendered"
	ProjectStatusFailed   ProjectStatus = "failed"
)

// VisualKind discriminates a project's visual asset. A project resolves to
// exactly one kind during prepare; the renderer switches on it and nothing else.
type VisualKind string

const (
	VisualNone          VisualKind = ""
	VisualStaticImage   VisualKind = "static_image"
	VisualEnhancedVideo VisualKind = "enhanced_video"
)

// VisualAsset is the tagged union of a project's visual: either a still
// graphic or an enhanced (generated) video clip reel.
type VisualAsset struct {
	Kind VisualKind `json:"kind"`
	Path string     `json:"path"`
}

// Project is one unit of content to narrate. The Script/Name/URL fields come
// from the input list; asset paths and status are filled in during prepare.
type Project struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	GitHubURL string          `json:"github_url"`
	Script    string          `json:"script_text"`
	Metadata  ProjectMetadata `json:"metadata,omitempty"`

	// Derived during prepare
	AudioPath     string      `json:"audio_path,omitempty"`
	AudioDuration float64     `json:"audio_duration_sec,omitempty"`
	Visual        VisualAsset `json:"visual,omitempty"`

	// Derived during render
	SegmentPath string `json:"segment_path,omitempty"`

	Status       ProjectStatus `json:"status,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

type ProjectMetadata struct {
	Stars    int    `json:"stars,omitempty"`
	Forks    int    `json:"forks,omitempty"`
	Language string `json:"language,omitempty"`
}

// Failed marks the project failed with a cause. Each project is owned by a
// single prepare worker, so no locking is needed.
func (p *Project) Failed(err error) {
	p.Status = ProjectStatusFailed
	p.ErrorMessage = err.Error()
}

// HasVisual reports whether prepare produced a usable visual asset.
func (p *Project) HasVisual() bool {
	return p.Visual.Kind != VisualNone && p.Visual.Path != ""
}

// LoadProjects reads the project list artifact and assigns positional ids
// (p1, p2, …) to any record missing one.
func LoadProjects(path string) ([]*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project list %s: %w", path, err)
	}

	var projects []*Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse project list %s: %w", path, err)
	}

	AssignIDs(projects)

	for _, p := range projects {
		if p.Script == "" {
			return nil, fmt.Errorf("project %s (%s) has no script_text", p.ID, p.Name)
		}
		if p.Status == "" {
			p.Status = ProjectStatusPending
		}
	}

	return projects, nil
}

// AssignIDs fills missing ids with stable positional ones.
func AssignIDs(projects []*Project) {
	for i, p := range projects {
		if p.ID == "" {
			p.ID = fmt.Sprintf("p%d", i+1)
		}
	}
}

// SaveProjects writes the enriched project list for downstream consumers
// (description/post generators read the same artifact).
func SaveProjects(path string, projects []*Project) error {
	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project list: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write project list %s: %w", path, err)
	}

	return nil
}
