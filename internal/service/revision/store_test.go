package revision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/config"
	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/services"
	"webforge/internal/repository/memory"
)

func setup(t *testing.T) (services.RevisionStore, *memory.Store, string) {
	t.Helper()
	store := memory.NewStore()
	projects := memory.NewProjectRepository(store)
	revisions := NewStore(
		projects,
		memory.NewRevisionRepository(store),
		memory.NewJobRepository(store),
		store,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	project := &models.Project{UserID: "u1", Name: "site"}
	require.NoError(t, projects.Create(context.Background(), project))
	return revisions, store, project.ID
}

func intPtr(v int) *int { return &v }

func appendCode(t *testing.T, s services.RevisionStore, projectID, code string, expected *int) *models.Revision {
	t.Helper()
	rev, err := s.AppendRevision(context.Background(), &services.AppendRevisionRequest{
		ProjectID:             projectID,
		Code:                  code,
		Origin:                models.OriginManualEdit,
		ExpectedParentVersion: expected,
	})
	require.NoError(t, err)
	return rev
}

func TestAppendRevisionSequence(t *testing.T) {
	s, _, projectID := setup(t)
	ctx := context.Background()

	_, err := s.GetCurrent(ctx, projectID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "no current revision before the first append")

	for i := 0; i < 5; i++ {
		var expected *int
		if i > 0 {
			expected = intPtr(i)
		}
		rev := appendCode(t, s, projectID, "<p>v</p>", expected)
		assert.Equal(t, i+1, rev.VersionNumber)
	}

	revisions, err := s.ListRevisions(ctx, projectID)
	require.NoError(t, err)
	for i, rev := range revisions {
		assert.Equal(t, i+1, rev.VersionNumber, "versions are 1..N without gaps")
		if i == 0 {
			assert.Nil(t, rev.ParentVersion)
		} else {
			require.NotNil(t, rev.ParentVersion)
			assert.Equal(t, i, *rev.ParentVersion)
		}
	}

	current, err := s.GetCurrent(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, 5, current.VersionNumber)
}

func TestAppendRevisionConflict(t *testing.T) {
	s, _, projectID := setup(t)
	appendCode(t, s, projectID, "<p>1</p>", nil)

	_, err := s.AppendRevision(context.Background(), &services.AppendRevisionRequest{
		ProjectID: projectID,
		Code:      "<p>stale</p>",
		Origin:    models.OriginManualEdit,
	})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 0, conflict.ExpectedVersion)
	assert.Equal(t, 1, conflict.ActualVersion)

	_, err = s.AppendRevision(context.Background(), &services.AppendRevisionRequest{
		ProjectID:             projectID,
		Code:                  "<p>future</p>",
		Origin:                models.OriginManualEdit,
		ExpectedParentVersion: intPtr(7),
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestConcurrentAppendsOneWins(t *testing.T) {
	s, _, projectID := setup(t)
	appendCode(t, s, projectID, "<p>1</p>", nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AppendRevision(context.Background(), &services.AppendRevisionRequest{
				ProjectID:             projectID,
				Code:                  "<p>edit</p>",
				Origin:                models.OriginManualEdit,
				ExpectedParentVersion: intPtr(1),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 9, conflicts)
}

func TestRollbackAppendsForward(t *testing.T) {
	s, _, projectID := setup(t)
	ctx := context.Background()

	v1 := appendCode(t, s, projectID, "<html>original</html>", nil)
	appendCode(t, s, projectID, "<html>A</html>", intPtr(1))

	rev, err := s.RollbackTo(ctx, projectID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, rev.VersionNumber)
	assert.Equal(t, models.OriginRollback, rev.Origin)
	assert.Equal(t, v1.Code, rev.Code)
	require.NotNil(t, rev.ParentVersion)
	assert.Equal(t, 2, *rev.ParentVersion)

	revisions, err := s.ListRevisions(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, revisions, 3, "rollback never shortens history")
	assert.Equal(t, "<html>A</html>", revisions[1].Code)

	_, err = s.RollbackTo(ctx, projectID, 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.RollbackTo(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAppendRevisionValidation(t *testing.T) {
	s, _, projectID := setup(t)

	_, err := s.AppendRevision(context.Background(), &services.AppendRevisionRequest{
		ProjectID: projectID,
		Code:      strings.Repeat("x", config.MaxCodeSize+1),
		Origin:    models.OriginManualEdit,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.AppendRevision(context.Background(), &services.AppendRevisionRequest{
		ProjectID: projectID,
		Code:      "<p></p>",
		Origin:    "imported",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDeleteProject(t *testing.T) {
	s, store, projectID := setup(t)
	ctx := context.Background()
	appendCode(t, s, projectID, "<p>1</p>", nil)
	require.NoError(t, memory.NewJobRepository(store).Create(ctx, &models.GenerationJob{ProjectID: projectID, UserID: "u1"}))

	require.NoError(t, s.DeleteProject(ctx, projectID))

	_, err := s.ListRevisions(ctx, projectID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = memory.NewJobRepository(store).GetActive(ctx, projectID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	latest, err := memory.NewRevisionRepository(store).LatestVersion(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, 0, latest)

	assert.ErrorIs(t, s.DeleteProject(ctx, projectID), domain.ErrNotFound)
}
