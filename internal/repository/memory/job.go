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

// JobRepository implements repositories.JobRepository on a Store
type JobRepository struct {
	store *Store
}

// NewJobRepository creates a job repository backed by store
func NewJobRepository(store *Store) repositories.JobRepository {
	return &JobRepository{store: store}
}

func (r *JobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.projects[job.ProjectID]; !ok {
			return fmt.Errorf("project %s: %w", job.ProjectID, domain.ErrNotFound)
		}
		for _, existing := range st.jobs {
			if existing.ProjectID == job.ProjectID && existing.Status == models.JobStatusRunning {
				return fmt.Errorf("project %s: %w", job.ProjectID, domain.ErrAlreadyGenerating)
			}
		}

		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		job.Status = models.JobStatusRunning
		if job.StartedAt.IsZero() {
			job.StartedAt = time.Now().UTC()
		}
		st.jobs[job.ID] = *job
		return nil
	})
}

func (r *JobRepository) Get(ctx context.Context, id string) (*models.GenerationJob, error) {
	var job models.GenerationJob
	err := r.store.read(ctx, func(st *state) error {
		j, ok := st.jobs[id]
		if !ok {
			return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) GetActive(ctx context.Context, projectID string) (*models.GenerationJob, error) {
	var active *models.GenerationJob
	err := r.store.read(ctx, func(st *state) error {
		for _, j := range st.jobs {
			if j.ProjectID == projectID && j.Status == models.JobStatusRunning {
				active = &j
				return nil
			}
		}
		return fmt.Errorf("no running job for project %s: %w", projectID, domain.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

func (r *JobRepository) Finish(ctx context.Context, id string, outcome *models.JobOutcome) (bool, error) {
	won := false
	err := r.store.write(ctx, func(st *state) error {
		j, ok := st.jobs[id]
		if !ok || j.Status != models.JobStatusRunning {
			return nil
		}
		j.Status = outcome.Status
		j.ResultVersion = outcome.ResultVersion
		j.Error = outcome.Error
		if outcome.Model != nil {
			j.Model = outcome.Model
		}
		finishedAt := outcome.FinishedAt
		j.FinishedAt = &finishedAt
		st.jobs[id] = j
		won = true
		return nil
	})
	return won, err
}

func (r *JobRepository) ListStale(ctx context.Context, startedBefore time.Time) ([]models.GenerationJob, error) {
	jobs := []models.GenerationJob{}
	err := r.store.read(ctx, func(st *state) error {
		for _, j := range st.jobs {
			if j.Status == models.JobStatusRunning && j.StartedAt.Before(startedBefore) {
				jobs = append(jobs, j)
			}
		}
		return nil
	})
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].StartedAt.Before(jobs[k].StartedAt) })
	return jobs, err
}

func (r *JobRepository) DeleteByProject(ctx context.Context, projectID string) error {
	return r.store.write(ctx, func(st *state) error {
		for id, j := range st.jobs {
			if j.ProjectID == projectID {
				delete(st.jobs, id)
			}
		}
		return nil
	})
}
