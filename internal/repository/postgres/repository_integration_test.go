package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/services"
)

func createTestProject(t *testing.T, config *RepositoryConfig) *models.Project {
	t.Helper()
	project := &models.Project{UserID: "user-" + uuid.NewString(), Name: "Test Site", InitialPrompt: "landing page"}
	require.NoError(t, NewProjectRepository(config).Create(context.Background(), project))
	return project
}

func TestProjectLifecycle(t *testing.T) {
	config := getTestConfig(t)
	ctx := context.Background()
	projects := NewProjectRepository(config)

	project := createTestProject(t, config)
	assert.Equal(t, models.ProjectStatusQueued, project.Status)
	assert.False(t, project.CreatedAt.IsZero())

	swapped, err := projects.CompareAndSetStatus(ctx, project.ID, models.ProjectStatusQueued, models.ProjectStatusGenerating)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = projects.CompareAndSetStatus(ctx, project.ID, models.ProjectStatusQueued, models.ProjectStatusGenerating)
	require.NoError(t, err)
	assert.False(t, swapped)

	err = projects.SetPublished(ctx, project.ID, true)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = projects.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, projects.Delete(ctx, project.ID))
	_, err = projects.GetByID(ctx, project.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRevisionUniqueVersion(t *testing.T) {
	config := getTestConfig(t)
	ctx := context.Background()
	revisions := NewRevisionRepository(config)
	project := createTestProject(t, config)

	require.NoError(t, revisions.Insert(ctx, &models.Revision{ProjectID: project.ID, VersionNumber: 1, Code: "<p>1</p>", Origin: models.OriginGenerated}))

	err := revisions.Insert(ctx, &models.Revision{ProjectID: project.ID, VersionNumber: 1, Code: "<p>x</p>", Origin: models.OriginManualEdit})
	assert.ErrorIs(t, err, domain.ErrConflict)

	latest, err := revisions.LatestVersion(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, latest)

	list, err := revisions.List(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.OriginGenerated, list[0].Origin)
}

func TestTransactionRollsBack(t *testing.T) {
	config := getTestConfig(t)
	ctx := context.Background()
	tm := NewTransactionManager(config)
	projects := NewProjectRepository(config)
	project := createTestProject(t, config)

	boom := errors.New("boom")
	err := tm.ExecTx(ctx, func(ctx context.Context) error {
		require.NoError(t, projects.UpdateName(ctx, project.ID, "renamed"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := projects.GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Site", got.Name)
}

func TestJobSingleRunning(t *testing.T) {
	config := getTestConfig(t)
	ctx := context.Background()
	jobs := NewJobRepository(config)
	project := createTestProject(t, config)

	job := &models.GenerationJob{ProjectID: project.ID, UserID: project.UserID, Prompt: "p", Cost: 1, Provider: "lorem"}
	require.NoError(t, jobs.Create(ctx, job))

	err := jobs.Create(ctx, &models.GenerationJob{ProjectID: project.ID, UserID: project.UserID, Prompt: "p", Cost: 1, Provider: "lorem"})
	assert.ErrorIs(t, err, domain.ErrAlreadyGenerating)

	var wg sync.WaitGroup
	wins := make(chan bool, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := jobs.Finish(ctx, job.ID, &models.JobOutcome{Status: models.JobStatusFailed, FinishedAt: time.Now()})
			assert.NoError(t, err)
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for won := range wins {
		if won {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestLedgerIdempotency(t *testing.T) {
	config := getTestConfig(t)
	ctx := context.Background()
	ledger := NewCreditLedger(config, 5)
	userID := "user-" + uuid.NewString()

	entry := &services.LedgerEntry{UserID: userID, Amount: 3, Reason: models.CreditReasonGeneration, IdempotencyKey: "job:" + uuid.NewString() + ":debit"}
	require.NoError(t, ledger.Debit(ctx, entry))
	require.NoError(t, ledger.Debit(ctx, entry))

	balance, err := ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance)

	err = ledger.Debit(ctx, &services.LedgerEntry{UserID: userID, Amount: 3, Reason: models.CreditReasonGeneration, IdempotencyKey: "job:" + uuid.NewString() + ":debit"})
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	balance, err = ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance, "a refused debit leaves no trace")
}
