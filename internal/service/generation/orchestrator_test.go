package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/services"
	"webforge/internal/lock"
	"webforge/internal/repository/memory"
	"webforge/internal/service/revision"
)

type generateFunc func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error)

type fakeGenerator struct {
	fn    generateFunc
	calls atomic.Int32
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
	g.calls.Add(1)
	return g.fn(ctx, req)
}

func succeedWith(code string) generateFunc {
	return func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
		return &services.GenerateResult{Code: code, Model: "fake-1"}, nil
	}
}

type harness struct {
	store        *memory.Store
	revisions    services.RevisionStore
	ledger       *memory.CreditLedger
	orchestrator *Orchestrator
	generator    *fakeGenerator
}

func newHarness(t *testing.T, fn generateFunc, signupCredits int, opts Options) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.NewStore()
	projectRepo := memory.NewProjectRepository(store)
	revisionRepo := memory.NewRevisionRepository(store)
	jobRepo := memory.NewJobRepository(store)
	ledger := memory.NewCreditLedger(store, signupCredits, logger)
	revisions := revision.NewStore(projectRepo, revisionRepo, jobRepo, store, logger)
	gen := &fakeGenerator{fn: fn}

	if opts.Cost == 0 {
		opts.Cost = 1
	}
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	o := NewOrchestrator(Deps{
		ProjectRepo: projectRepo,
		JobRepo:     jobRepo,
		Revisions:   revisions,
		Ledger:      ledger,
		Generator:   gen,
		TxManager:   store,
		Locker:      lock.NewLocalLocker(),
		Logger:      logger,
	}, opts)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Wait(ctx)
	})

	return &harness{
		store:        store,
		revisions:    revisions,
		ledger:       ledger,
		orchestrator: o,
		generator:    gen,
	}
}

func (h *harness) createProject(t *testing.T, userID string) *models.Project {
	t.Helper()
	project := &models.Project{UserID: userID, Name: "Landing", InitialPrompt: "landing page"}
	require.NoError(t, memory.NewProjectRepository(h.store).Create(context.Background(), project))
	return project
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.orchestrator.Wait(ctx))
}

func (h *harness) balance(t *testing.T, userID string) int {
	t.Helper()
	balance, err := h.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return balance
}

func (h *harness) status(t *testing.T, projectID string) *services.StatusView {
	t.Helper()
	view, err := h.orchestrator.GetStatus(context.Background(), projectID)
	require.NoError(t, err)
	return view
}

func TestGenerationSucceeds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, succeedWith("<!DOCTYPE html><p>landing</p>"), 5, Options{})
	project := h.createProject(t, "u1")

	handle, err := h.orchestrator.RequestGeneration(ctx, &services.GenerationRequest{
		ProjectID: project.ID, UserID: "u1", Prompt: "landing page",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusGenerating, handle.Status)
	assert.NotEmpty(t, handle.JobID)

	h.wait(t)

	view := h.status(t, project.ID)
	assert.Equal(t, models.ProjectStatusReady, view.Status)
	require.NotNil(t, view.CurrentVersion)
	assert.Equal(t, 1, *view.CurrentVersion)
	assert.Nil(t, view.ActiveJobID)

	revisions, err := h.revisions.ListRevisions(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 1)
	assert.Equal(t, 1, revisions[0].VersionNumber)
	assert.Equal(t, models.OriginGenerated, revisions[0].Origin)
	assert.Nil(t, revisions[0].ParentVersion)
	require.NotNil(t, revisions[0].Prompt)
	assert.Equal(t, "landing page", *revisions[0].Prompt)

	assert.Equal(t, 4, h.balance(t, "u1"), "debited exactly once")
}

func TestGenerationFailureRefunds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
		return nil, errors.New("model overloaded")
	}, 5, Options{Cost: 2})
	project := h.createProject(t, "u1")

	_, err := h.orchestrator.RequestGeneration(ctx, &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "shop"})
	require.NoError(t, err)
	h.wait(t)

	view := h.status(t, project.ID)
	assert.Equal(t, models.ProjectStatusFailed, view.Status)
	assert.Nil(t, view.CurrentVersion)
	require.NotNil(t, view.FailureReason)
	assert.Contains(t, *view.FailureReason, "model overloaded")

	revisions, err := h.revisions.ListRevisions(ctx, project.ID)
	require.NoError(t, err)
	assert.Empty(t, revisions)

	assert.Equal(t, 5, h.balance(t, "u1"))

	txns, err := h.ledger.Transactions(ctx, "u1")
	require.NoError(t, err)
	var reasons []string
	for _, txn := range txns {
		reasons = append(reasons, txn.Reason)
	}
	assert.ElementsMatch(t, []string{models.CreditReasonSignup, models.CreditReasonGeneration, models.CreditReasonRefund}, reasons)
}

func TestEmptyOutputFails(t *testing.T) {
	h := newHarness(t, succeedWith("   "), 5, Options{})
	project := h.createProject(t, "u1")

	_, err := h.orchestrator.RequestGeneration(context.Background(), &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "x"})
	require.NoError(t, err)
	h.wait(t)

	assert.Equal(t, models.ProjectStatusFailed, h.status(t, project.ID).Status)
	assert.Equal(t, 5, h.balance(t, "u1"))
}

func TestGenerationTimeout(t *testing.T) {
	h := newHarness(t, func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, 5, Options{Timeout: 20 * time.Millisecond})
	project := h.createProject(t, "u1")

	_, err := h.orchestrator.RequestGeneration(context.Background(), &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "x"})
	require.NoError(t, err)
	h.wait(t)

	view := h.status(t, project.ID)
	assert.Equal(t, models.ProjectStatusFailed, view.Status)
	require.NotNil(t, view.FailureReason)
	assert.Contains(t, *view.FailureReason, "timed out")
	assert.Equal(t, 5, h.balance(t, "u1"))
}

func TestDuplicateRequestRejected(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
		<-release
		return &services.GenerateResult{Code: "<html>v1</html>"}, nil
	}, 5, Options{})
	project := h.createProject(t, "u1")

	_, err := h.orchestrator.RequestGeneration(ctx, &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "landing page"})
	require.NoError(t, err)

	view := h.status(t, project.ID)
	assert.Equal(t, models.ProjectStatusGenerating, view.Status)
	assert.NotNil(t, view.ActiveJobID)

	_, err = h.orchestrator.RequestGeneration(ctx, &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "landing page"})
	assert.ErrorIs(t, err, domain.ErrAlreadyGenerating)
	assert.Equal(t, 4, h.balance(t, "u1"), "exactly one debit")

	close(release)
	h.wait(t)
	assert.Equal(t, models.ProjectStatusReady, h.status(t, project.ID).Status)
	assert.Equal(t, 4, h.balance(t, "u1"))
}

func TestConcurrentRequestsAcceptOne(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
		<-release
		return &services.GenerateResult{Code: "<html></html>"}, nil
	}, 10, Options{})
	project := h.createProject(t, "u1")

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		rejected atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orchestrator.RequestGeneration(context.Background(), &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "x"})
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, domain.ErrAlreadyGenerating):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(release)
	h.wait(t)

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(7), rejected.Load())
	assert.Equal(t, 9, h.balance(t, "u1"))
	assert.Equal(t, int32(1), h.generator.calls.Load())
}

func TestInsufficientCredits(t *testing.T) {
	h := newHarness(t, succeedWith("<html></html>"), 0, Options{})
	project := h.createProject(t, "u1")

	_, err := h.orchestrator.RequestGeneration(context.Background(), &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "x"})
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	view := h.status(t, project.ID)
	assert.Equal(t, models.ProjectStatusQueued, view.Status, "no job starts")
	assert.Nil(t, view.ActiveJobID)
	assert.Equal(t, int32(0), h.generator.calls.Load())
}

func TestRevisionRequestGetsCurrentCode(t *testing.T) {
	ctx := context.Background()
	var seen []*string
	var mu sync.Mutex
	h := newHarness(t, func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
		mu.Lock()
		seen = append(seen, req.CurrentCode)
		mu.Unlock()
		return &services.GenerateResult{Code: "<html>" + req.Prompt + "</html>"}, nil
	}, 5, Options{})
	project := h.createProject(t, "u1")

	for _, prompt := range []string{"first", "second"} {
		_, err := h.orchestrator.RequestGeneration(ctx, &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: prompt})
		require.NoError(t, err)
		h.wait(t)
	}

	require.Len(t, seen, 2)
	assert.Nil(t, seen[0])
	require.NotNil(t, seen[1])
	assert.Equal(t, "<html>first</html>", *seen[1])

	current, err := h.revisions.GetCurrent(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.VersionNumber)
	require.NotNil(t, current.ParentVersion)
	assert.Equal(t, 1, *current.ParentVersion)
	assert.Equal(t, 3, h.balance(t, "u1"))
}

func TestWatchdogFailsStaleJobAndDiscardsLateResult(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
		<-release
		return &services.GenerateResult{Code: "<html>late</html>"}, nil
	}, 5, Options{Timeout: time.Minute, StaleAfter: 10 * time.Minute})
	project := h.createProject(t, "u1")

	_, err := h.orchestrator.RequestGeneration(ctx, &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "x"})
	require.NoError(t, err)

	swept, err := h.orchestrator.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept, "fresh jobs are left alone")

	h.orchestrator.now = func() time.Time { return time.Now().Add(time.Hour) }
	swept, err = h.orchestrator.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	view := h.status(t, project.ID)
	assert.Equal(t, models.ProjectStatusFailed, view.Status)
	assert.Equal(t, 5, h.balance(t, "u1"))

	close(release)
	h.wait(t)

	view = h.status(t, project.ID)
	assert.Equal(t, models.ProjectStatusFailed, view.Status, "status never reverts")
	assert.Nil(t, view.CurrentVersion)
	assert.Equal(t, 5, h.balance(t, "u1"), "refunded exactly once")

	swept, err = h.orchestrator.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}

func TestDeletedProjectDiscardsResult(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
		<-release
		return &services.GenerateResult{Code: "<html></html>"}, nil
	}, 5, Options{})
	project := h.createProject(t, "u1")

	_, err := h.orchestrator.RequestGeneration(ctx, &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "x"})
	require.NoError(t, err)
	require.NoError(t, h.revisions.DeleteProject(ctx, project.ID))

	close(release)
	h.wait(t)

	_, err = h.orchestrator.GetStatus(ctx, project.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t, succeedWith("<html></html>"), 5, Options{})
	project := h.createProject(t, "u1")

	_, err := h.orchestrator.RequestGeneration(context.Background(), &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.orchestrator.RequestGeneration(context.Background(), &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: strings.Repeat("網", 4001)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.orchestrator.RequestGeneration(context.Background(), &services.GenerationRequest{ProjectID: "missing", UserID: "u1", Prompt: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 5, h.balance(t, "u1"))

	// The limit counts characters, not bytes
	_, err = h.orchestrator.RequestGeneration(context.Background(), &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: strings.Repeat("網", 4000)})
	require.NoError(t, err)
	h.wait(t)
	assert.Equal(t, models.ProjectStatusReady, h.status(t, project.ID).Status)
}

func TestStaleJobWaitingForWorkerSkipsGenerator(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
		started <- struct{}{}
		<-release
		return &services.GenerateResult{Code: "<html>late</html>"}, nil
	}, 5, Options{Workers: 1, Timeout: time.Minute, StaleAfter: 10 * time.Minute})
	first := h.createProject(t, "u1")
	second := h.createProject(t, "u1")

	for _, p := range []*models.Project{first, second} {
		_, err := h.orchestrator.RequestGeneration(ctx, &services.GenerationRequest{ProjectID: p.ID, UserID: "u1", Prompt: "x"})
		require.NoError(t, err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("no generation started")
	}
	assert.Equal(t, int32(1), h.generator.calls.Load(), "one worker slot")

	h.orchestrator.now = func() time.Time { return time.Now().Add(time.Hour) }
	swept, err := h.orchestrator.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	close(release)
	h.wait(t)

	assert.Equal(t, int32(1), h.generator.calls.Load(), "failed job never reaches the generator")
	assert.Equal(t, models.ProjectStatusFailed, h.status(t, first.ID).Status)
	assert.Equal(t, models.ProjectStatusFailed, h.status(t, second.ID).Status)
	assert.Equal(t, 5, h.balance(t, "u1"))
}

func TestRetryClearsFailureReason(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
		return nil, errors.New("model overloaded")
	}, 5, Options{})
	project := h.createProject(t, "u1")

	_, err := h.orchestrator.RequestGeneration(ctx, &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "x"})
	require.NoError(t, err)
	h.wait(t)
	require.NotNil(t, h.status(t, project.ID).FailureReason)

	release := make(chan struct{})
	h.generator.fn = func(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResult, error) {
		<-release
		return &services.GenerateResult{Code: "<html></html>"}, nil
	}
	_, err = h.orchestrator.RequestGeneration(ctx, &services.GenerationRequest{ProjectID: project.ID, UserID: "u1", Prompt: "x"})
	require.NoError(t, err)

	view := h.status(t, project.ID)
	assert.Equal(t, models.ProjectStatusGenerating, view.Status)
	assert.Nil(t, view.FailureReason)

	close(release)
	h.wait(t)
	assert.Equal(t, models.ProjectStatusReady, h.status(t, project.ID).Status)
}

func TestFailTreatsMissingProjectAsFinished(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, succeedWith("<html></html>"), 5, Options{})
	project := h.createProject(t, "u1")

	job := &models.GenerationJob{ProjectID: project.ID, UserID: "u1", Prompt: "x", Cost: 1, Provider: "fake"}
	require.NoError(t, memory.NewJobRepository(h.store).Create(ctx, job))
	require.NoError(t, memory.NewProjectRepository(h.store).Delete(ctx, project.ID))

	assert.False(t, h.orchestrator.fail(job, "stale", "watchdog"))
	assert.Equal(t, 5, h.balance(t, "u1"), "no refund for a project that is gone")
}
