package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"webforge/internal/config"
	"webforge/internal/domain"
	"webforge/internal/domain/models"
	"webforge/internal/domain/repositories"
	"webforge/internal/domain/services"
	"webforge/internal/lock"
	"webforge/internal/metrics"
)

var (
	// errJobFinished aborts a finishing transaction whose job already left running
	errJobFinished = errors.New("job already finished")
	errEmptyResult = errors.New("generator returned empty code")
)

// Options tunes the orchestrator
type Options struct {
	Cost       int           // credits per generation
	Timeout    time.Duration // per generator call
	StaleAfter time.Duration // running jobs older than this are failed by SweepStale
	Workers    int           // concurrent generator calls
}

// Orchestrator implements services.GenerationOrchestrator.
//
// A job leaves running exactly once (JobRepository.Finish is a compare-and-set)
// and only the winner applies its side effects: the generated revision on
// success, the refund on failure.
type Orchestrator struct {
	projectRepo repositories.ProjectRepository
	jobRepo     repositories.JobRepository
	revisions   services.RevisionStore
	ledger      services.CreditLedger
	generator   services.Generator
	txManager   repositories.TransactionManager
	locker      lock.Locker
	logger      *slog.Logger
	opts        Options

	sem *semaphore.Weighted
	wg  sync.WaitGroup
	now func() time.Time
}

// Deps groups the orchestrator's collaborators
type Deps struct {
	ProjectRepo repositories.ProjectRepository
	JobRepo     repositories.JobRepository
	Revisions   services.RevisionStore
	Ledger      services.CreditLedger
	Generator   services.Generator
	TxManager   repositories.TransactionManager
	Locker      lock.Locker
	Logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Minute
	}
	if opts.StaleAfter < opts.Timeout {
		opts.StaleAfter = opts.Timeout
	}
	return &Orchestrator{
		projectRepo: deps.ProjectRepo,
		jobRepo:     deps.JobRepo,
		revisions:   deps.Revisions,
		ledger:      deps.Ledger,
		generator:   deps.Generator,
		txManager:   deps.TxManager,
		locker:      deps.Locker,
		logger:      deps.Logger,
		opts:        opts,
		sem:         semaphore.NewWeighted(int64(opts.Workers)),
		now:         time.Now,
	}
}

// Cost returns the credits charged per generation
func (o *Orchestrator) Cost() int {
	return o.opts.Cost
}

// RequestGeneration debits the user, records a running job and flips the
// project to generating in one transaction, then schedules the generator call.
func (o *Orchestrator) RequestGeneration(ctx context.Context, req *services.GenerationRequest) (*services.JobHandle, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := validateGenerationRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	unlock, err := o.locker.Lock(ctx, lock.ProjectKey(req.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("lock project: %w", err)
	}
	defer unlock()

	job := &models.GenerationJob{
		ID:        uuid.NewString(),
		ProjectID: req.ProjectID,
		UserID:    req.UserID,
		Prompt:    req.Prompt,
		Cost:      o.opts.Cost,
		Provider:  o.generator.Name(),
	}

	err = o.txManager.ExecTx(ctx, func(ctx context.Context) error {
		project, err := o.projectRepo.GetForUpdate(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		if project.Status == models.ProjectStatusGenerating {
			return fmt.Errorf("project %s: %w", project.ID, domain.ErrAlreadyGenerating)
		}
		job.BaseVersion = project.CurrentVersion

		if err := o.ledger.Debit(ctx, &services.LedgerEntry{
			UserID:         req.UserID,
			Amount:         job.Cost,
			Reason:         models.CreditReasonGeneration,
			IdempotencyKey: job.DebitKey(),
		}); err != nil {
			return err
		}

		if err := o.jobRepo.Create(ctx, job); err != nil {
			return err
		}

		swapped, err := o.projectRepo.CompareAndSetStatus(ctx, project.ID, project.Status, models.ProjectStatusGenerating)
		if err != nil {
			return err
		}
		if !swapped {
			return fmt.Errorf("project %s: %w", project.ID, domain.ErrAlreadyGenerating)
		}
		return nil
	})
	if err != nil {
		metrics.GenerationRequests.WithLabelValues(domain.Code(err)).Inc()
		return nil, err
	}

	metrics.GenerationRequests.WithLabelValues("accepted").Inc()
	metrics.CreditsMoved.WithLabelValues("debit").Add(float64(job.Cost))
	o.logger.Info("generation accepted",
		"project_id", job.ProjectID,
		"job_id", job.ID,
		"user_id", job.UserID,
		"cost", job.Cost,
	)

	o.wg.Add(1)
	go o.run(job)

	return &services.JobHandle{
		JobID:     job.ID,
		ProjectID: job.ProjectID,
		Status:    models.ProjectStatusGenerating,
	}, nil
}

// run calls the generator in the background. Request contexts are already
// gone by now, so it works on its own timeout.
func (o *Orchestrator) run(job *models.GenerationJob) {
	defer o.wg.Done()

	if err := o.sem.Acquire(context.Background(), 1); err != nil {
		o.fail(job, "worker unavailable", "worker")
		return
	}
	defer o.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.Timeout)
	defer cancel()

	// The watchdog may have failed the job while it waited for a slot
	current, err := o.jobRepo.Get(ctx, job.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		o.logger.Info("skipping generation of deleted project", "project_id", job.ProjectID, "job_id", job.ID)
		return
	case err != nil:
		o.fail(job, "load job: "+err.Error(), "worker")
		return
	case current.Status != models.JobStatusRunning:
		o.logger.Warn("skipping generation of finished job",
			"project_id", job.ProjectID,
			"job_id", job.ID,
			"status", current.Status,
		)
		return
	}

	req := &services.GenerateRequest{Prompt: job.Prompt}
	revision, err := o.revisions.GetCurrent(ctx, job.ProjectID)
	switch {
	case err == nil:
		req.CurrentCode = &revision.Code
	case errors.Is(err, domain.ErrNotFound):
		// First generation, or the project was deleted; completion sorts that out
	default:
		o.fail(job, "load current code: "+err.Error(), "worker")
		return
	}

	start := time.Now()
	metrics.GenerationsInFlight.Inc()
	result, err := o.generator.Generate(ctx, req)
	metrics.GenerationsInFlight.Dec()
	metrics.GenerationDuration.WithLabelValues(job.Provider).Observe(time.Since(start).Seconds())

	if err == nil && strings.TrimSpace(result.Code) == "" {
		err = errEmptyResult
	}
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("generation timed out after %s", o.opts.Timeout)
		}
		o.logger.Warn("generation failed", "project_id", job.ProjectID, "job_id", job.ID, "error", err)
		o.fail(job, reason, "worker")
		return
	}

	o.complete(job, result)
}

// complete stores the result. Status ready and the new current version are
// committed together so no reader sees one without the other.
func (o *Orchestrator) complete(job *models.GenerationJob, result *services.GenerateResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var revision *models.Revision
	err := o.txManager.ExecTx(ctx, func(ctx context.Context) error {
		project, err := o.projectRepo.GetForUpdate(ctx, job.ProjectID)
		if err != nil {
			return err
		}
		current, err := o.jobRepo.Get(ctx, job.ID)
		if err != nil {
			return err
		}
		if current.Status != models.JobStatusRunning {
			return errJobFinished
		}

		prompt := job.Prompt
		revision, err = o.revisions.AppendRevision(ctx, &services.AppendRevisionRequest{
			ProjectID:             job.ProjectID,
			Code:                  result.Code,
			Origin:                models.OriginGenerated,
			ExpectedParentVersion: project.CurrentVersion,
			Prompt:                &prompt,
		})
		if err != nil {
			return err
		}

		var model *string
		if result.Model != "" {
			model = &result.Model
		}
		won, err := o.jobRepo.Finish(ctx, job.ID, &models.JobOutcome{
			Status:        models.JobStatusSucceeded,
			ResultVersion: &revision.VersionNumber,
			Model:         model,
			FinishedAt:    o.now().UTC(),
		})
		if err != nil {
			return err
		}
		if !won {
			return errJobFinished
		}

		return o.projectRepo.SetStatus(ctx, job.ProjectID, models.ProjectStatusReady, nil)
	})

	switch {
	case err == nil:
		metrics.GenerationResults.WithLabelValues(string(models.JobStatusSucceeded), "worker").Inc()
		o.logger.Info("generation succeeded",
			"project_id", job.ProjectID,
			"job_id", job.ID,
			"version", revision.VersionNumber,
			"model", result.Model,
			"input_tokens", result.InputTokens,
			"output_tokens", result.OutputTokens,
		)
	case errors.Is(err, errJobFinished):
		o.logger.Warn("discarding result of finished job", "project_id", job.ProjectID, "job_id", job.ID)
	case errors.Is(err, domain.ErrNotFound):
		o.logger.Info("discarding result of deleted project", "project_id", job.ProjectID, "job_id", job.ID)
	default:
		o.logger.Error("store generation result", "project_id", job.ProjectID, "job_id", job.ID, "error", err)
		o.fail(job, "store result: "+err.Error(), "worker")
	}
}

// fail marks the job and project failed and refunds the debit, all in one
// transaction. Returns false when someone else finished the job first.
func (o *Orchestrator) fail(job *models.GenerationJob, reason, finisher string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := o.txManager.ExecTx(ctx, func(ctx context.Context) error {
		// Project row first, like complete, so the two never deadlock
		if _, err := o.projectRepo.GetForUpdate(ctx, job.ProjectID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return errJobFinished
			}
			return err
		}

		won, err := o.jobRepo.Finish(ctx, job.ID, &models.JobOutcome{
			Status:     models.JobStatusFailed,
			Error:      &reason,
			FinishedAt: o.now().UTC(),
		})
		if err != nil {
			return err
		}
		if !won {
			return errJobFinished
		}

		if err := o.projectRepo.SetStatus(ctx, job.ProjectID, models.ProjectStatusFailed, &reason); err != nil {
			return err
		}

		return o.ledger.Credit(ctx, &services.LedgerEntry{
			UserID:         job.UserID,
			Amount:         job.Cost,
			Reason:         models.CreditReasonRefund,
			IdempotencyKey: job.RefundKey(),
		})
	})

	switch {
	case err == nil:
		metrics.GenerationResults.WithLabelValues(string(models.JobStatusFailed), finisher).Inc()
		metrics.CreditsMoved.WithLabelValues("refund").Add(float64(job.Cost))
		o.logger.Info("generation failed and refunded",
			"project_id", job.ProjectID,
			"job_id", job.ID,
			"reason", reason,
			"finisher", finisher,
		)
		return true
	case errors.Is(err, errJobFinished):
		return false
	default:
		// Job stays running; the watchdog retries once it is stale
		o.logger.Error("record generation failure", "project_id", job.ProjectID, "job_id", job.ID, "error", err)
		return false
	}
}

// GetStatus reads the project row, whose status and current version are
// always written together
func (o *Orchestrator) GetStatus(ctx context.Context, projectID string) (*services.StatusView, error) {
	project, err := o.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	view := &services.StatusView{
		ProjectID:      project.ID,
		Status:         project.Status,
		CurrentVersion: project.CurrentVersion,
		FailureReason:  project.FailureReason,
		UpdatedAt:      project.UpdatedAt,
	}

	if project.Status == models.ProjectStatusGenerating {
		job, err := o.jobRepo.GetActive(ctx, projectID)
		switch {
		case err == nil:
			view.ActiveJobID = &job.ID
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	return view, nil
}

// SweepStale fails and refunds running jobs older than the stale bound
func (o *Orchestrator) SweepStale(ctx context.Context) (int, error) {
	cutoff := o.now().Add(-o.opts.StaleAfter)
	jobs, err := o.jobRepo.ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	failed := 0
	for i := range jobs {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		reason := fmt.Sprintf("generation did not finish within %s", o.opts.StaleAfter)
		if o.fail(&jobs[i], reason, "watchdog") {
			failed++
		}
	}

	if failed > 0 {
		o.logger.Warn("watchdog failed stale generations", "count", failed)
	}
	return failed, nil
}

// Wait blocks until every scheduled generation has finished or ctx is done
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validateGenerationRequest(req *services.GenerationRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ProjectID, validation.Required),
		validation.Field(&req.UserID, validation.Required),
		validation.Field(&req.Prompt,
			validation.Required,
			validation.RuneLength(1, config.MaxPromptLength),
		),
	)
}
