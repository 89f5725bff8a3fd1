package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/repositories"
)

// ProjectRepository implements repositories.ProjectRepository on a Store
type ProjectRepository struct {
	store *Store
}

// NewProjectRepository creates a project repository backed by store
func NewProjectRepository(store *Store) repositories.ProjectRepository {
	return &ProjectRepository{store: store}
}

func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.store.write(ctx, func(st *state) error {
		if project.ID == "" {
			project.ID = uuid.NewString()
		}
		if _, exists := st.projects[project.ID]; exists {
			return fmt.Errorf("project %s already exists: %w", project.ID, domain.ErrConflict)
		}
		if project.Status == "" {
			project.Status = models.ProjectStatusQueued
		}
		now := time.Now().UTC()
		project.CreatedAt = now
		project.UpdatedAt = now
		st.projects[project.ID] = *project
		return nil
	})
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	err := r.store.read(ctx, func(st *state) error {
		p, ok := st.projects[id]
		if !ok {
			return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetForUpdate is GetByID; the surrounding transaction already holds the store lock
func (r *ProjectRepository) GetForUpdate(ctx context.Context, id string) (*models.Project, error) {
	return r.GetByID(ctx, id)
}

func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]models.Project, error) {
	projects := []models.Project{}
	err := r.store.read(ctx, func(st *state) error {
		for _, p := range st.projects {
			if p.UserID == userID {
				projects = append(projects, p)
			}
		}
		return nil
	})
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
	})
	return projects, err
}

func (r *ProjectRepository) ListPublished(ctx context.Context, limit int) ([]models.Project, error) {
	projects := []models.Project{}
	err := r.store.read(ctx, func(st *state) error {
		for _, p := range st.projects {
			if p.IsPublished {
				projects = append(projects, p)
			}
		}
		return nil
	})
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	if limit > 0 && len(projects) > limit {
		projects = projects[:limit]
	}
	return projects, err
}

func (r *ProjectRepository) UpdateName(ctx context.Context, id, name string) error {
	return r.update(ctx, id, func(p *models.Project) error {
		p.Name = name
		return nil
	})
}

func (r *ProjectRepository) SetPublished(ctx context.Context, id string, published bool) error {
	return r.update(ctx, id, func(p *models.Project) error {
		if published && p.CurrentVersion == nil {
			return fmt.Errorf("project %s has no revision to publish: %w", id, domain.ErrInvalidState)
		}
		p.IsPublished = published
		return nil
	})
}

func (r *ProjectRepository) SetCurrentVersion(ctx context.Context, id string, version int) error {
	return r.update(ctx, id, func(p *models.Project) error {
		if p.CurrentVersion != nil && *p.CurrentVersion >= version {
			return fmt.Errorf("project %s cannot move to version %d: %w", id, version, domain.ErrInvalidState)
		}
		p.CurrentVersion = &version
		return nil
	})
}

func (r *ProjectRepository) CompareAndSetStatus(ctx context.Context, id string, from, to models.ProjectStatus) (bool, error) {
	swapped := false
	err := r.store.write(ctx, func(st *state) error {
		p, ok := st.projects[id]
		if !ok || p.Status != from {
			return nil
		}
		p.Status = to
		p.FailureReason = nil
		p.UpdatedAt = time.Now().UTC()
		st.projects[id] = p
		swapped = true
		return nil
	})
	return swapped, err
}

func (r *ProjectRepository) SetStatus(ctx context.Context, id string, status models.ProjectStatus, failureReason *string) error {
	return r.update(ctx, id, func(p *models.Project) error {
		p.Status = status
		p.FailureReason = failureReason
		return nil
	})
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.projects[id]; !ok {
			return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		delete(st.projects, id)
		return nil
	})
}

func (r *ProjectRepository) update(ctx context.Context, id string, mutate func(p *models.Project) error) error {
	return r.store.write(ctx, func(st *state) error {
		p, ok := st.projects[id]
		if !ok {
			return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		if err := mutate(&p); err != nil {
			return err
		}
		p.UpdatedAt = time.Now().UTC()
		st.projects[id] = p
		return nil
	})
}
