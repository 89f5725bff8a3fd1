package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/repositories"
)

// RevisionRepository implements repositories.RevisionRepository on a Store
type RevisionRepository struct {
	store *Store
}

// NewRevisionRepository creates a revision repository backed by store
func NewRevisionRepository(store *Store) repositories.RevisionRepository {
	return &RevisionRepository{store: store}
}

// Insert enforces the same (project, version) uniqueness as the SQL schema
func (r *RevisionRepository) Insert(ctx context.Context, revision *models.Revision) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.projects[revision.ProjectID]; !ok {
			return fmt.Errorf("project %s: %w", revision.ProjectID, domain.ErrNotFound)
		}

		list := st.revisions[revision.ProjectID]
		for _, existing := range list {
			if existing.VersionNumber == revision.VersionNumber {
				return &domain.ConflictError{
					ProjectID:       revision.ProjectID,
					ExpectedVersion: revision.VersionNumber - 1,
					ActualVersion:   list[len(list)-1].VersionNumber,
				}
			}
		}

		if revision.ID == "" {
			revision.ID = uuid.NewString()
		}
		revision.CreatedAt = time.Now().UTC()

		stored := *revision
		list = append(list, &stored)
		for i := len(list) - 1; i > 0 && list[i].VersionNumber < list[i-1].VersionNumber; i-- {
			list[i], list[i-1] = list[i-1], list[i]
		}
		st.revisions[revision.ProjectID] = list
		return nil
	})
}

func (r *RevisionRepository) LatestVersion(ctx context.Context, projectID string) (int, error) {
	latest := 0
	err := r.store.read(ctx, func(st *state) error {
		if list := st.revisions[projectID]; len(list) > 0 {
			latest = list[len(list)-1].VersionNumber
		}
		return nil
	})
	return latest, err
}

func (r *RevisionRepository) Get(ctx context.Context, projectID string, version int) (*models.Revision, error) {
	var found *models.Revision
	err := r.store.read(ctx, func(st *state) error {
		for _, rev := range st.revisions[projectID] {
			if rev.VersionNumber == version {
				copied := *rev
				found = &copied
				return nil
			}
		}
		return fmt.Errorf("project %s version %d: %w", projectID, version, domain.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *RevisionRepository) List(ctx context.Context, projectID string) ([]models.Revision, error) {
	revisions := []models.Revision{}
	err := r.store.read(ctx, func(st *state) error {
		for _, rev := range st.revisions[projectID] {
			revisions = append(revisions, *rev)
		}
		return nil
	})
	return revisions, err
}

func (r *RevisionRepository) DeleteByProject(ctx context.Context, projectID string) error {
	return r.store.write(ctx, func(st *state) error {
		delete(st.revisions, projectID)
		return nil
	})
}
