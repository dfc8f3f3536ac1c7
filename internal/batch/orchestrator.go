package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/config"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/errors"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/logger"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/metrics"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/matching"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

// Mapper is the single-term pipeline consumed by the orchestrator.
type Mapper interface {
	MapTerm(ctx context.Context, req matching.MapRequest) (*matching.MappingResponse, error)
}

// sweeper is implemented by job stores that expire terminal jobs locally.
// Stores with server-side expiry (Redis) do not implement it.
type sweeper interface {
	Sweep(retention time.Duration) int
}

// Orchestrator fans batch requests into per-term pipeline calls executed
// by a bounded worker pool. Per-term failures are recorded in the term's
// result slot and never abort the job; cancellation is cooperative and
// observed between terms.
type Orchestrator struct {
	mapper    Mapper
	store     JobStore
	workers   int
	maxTerms  int
	backlog   int
	retention time.Duration
	logger    logger.Logger

	mu      sync.Mutex
	cancels map[string]chan struct{}
	active  sync.WaitGroup
}

// NewOrchestrator wires an orchestrator from the batch configuration.
func NewOrchestrator(mapper Mapper, store JobStore, cfg config.BatchConfig, log logger.Logger) *Orchestrator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	retention := time.Duration(cfg.Retention) * time.Millisecond
	if retention <= 0 {
		retention = time.Hour
	}

	return &Orchestrator{
		mapper:    mapper,
		store:     store,
		workers:   workers,
		maxTerms:  cfg.MaxTerms,
		backlog:   cfg.QueueBacklog,
		retention: retention,
		logger:    log.WithFields(map[string]interface{}{"component": "batch-orchestrator"}),
		cancels:   make(map[string]chan struct{}),
	}
}

// Submit validates the request, persists a pending job and starts its
// execution. The returned snapshot is visible to readers immediately.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Job, error) {
	if len(req.Terms) == 0 {
		return nil, errors.NewInvalidParameterError("terms must not be empty")
	}
	if o.maxTerms > 0 && len(req.Terms) > o.maxTerms {
		return nil, errors.NewBatchTooLargeError(len(req.Terms), o.maxTerms)
	}
	if len(req.Systems) == 0 {
		req.Systems = terminology.All()
	}

	o.mu.Lock()
	inFlight := len(o.cancels)
	o.mu.Unlock()
	if o.backlog > 0 && inFlight >= o.backlog {
		return nil, errors.NewOrchestratorFaultError(
			fmt.Errorf("job backlog full: %d jobs in flight", inFlight))
	}

	job := NewJob(req)
	if err := o.store.Save(ctx, job); err != nil {
		return nil, errors.NewOrchestratorFaultError(err)
	}

	cancel := make(chan struct{})
	o.mu.Lock()
	o.cancels[job.ID] = cancel
	o.mu.Unlock()

	o.active.Add(1)
	go o.run(job, cancel)

	o.logger.Info("batch job accepted", map[string]interface{}{
		"jobId":      job.ID,
		"totalTerms": job.TotalTerms,
	})

	return job.Clone(), nil
}

// Status returns the latest snapshot of a job.
func (o *Orchestrator) Status(ctx context.Context, id string) (*Job, error) {
	return o.store.Get(ctx, id)
}

// Result returns a completed job's full results. Non-terminal jobs yield a
// JobNotCompleted error; cancelled and failed jobs return their partial
// results.
func (o *Orchestrator) Result(ctx context.Context, id string) (*Job, error) {
	job, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, errors.NewJobNotCompletedError(id, string(job.Status))
	}
	return job, nil
}

// Cancel marks a job cancelled. In-flight terms finish; unstarted terms
// are never scheduled. Cancelling a terminal job is a no-op.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (*Job, error) {
	job, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	o.mu.Lock()
	if cancel, ok := o.cancels[id]; ok {
		select {
		case <-cancel:
			// already signalled
		default:
			close(cancel)
		}
	}
	o.mu.Unlock()

	o.logger.Info("batch job cancellation requested", map[string]interface{}{
		"jobId": id,
	})
	return job, nil
}

// Shutdown cancels all running jobs and waits for their workers to drain
// or the context to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, cancel := range o.cancels {
		select {
		case <-cancel:
		default:
			close(cancel)
		}
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunRetentionSweeper periodically removes expired terminal jobs from
// stores that expire locally. It blocks until the context is cancelled.
func (o *Orchestrator) RunRetentionSweeper(ctx context.Context) {
	s, ok := o.store.(sweeper)
	if !ok {
		return
	}

	interval := o.retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(o.retention); removed > 0 {
				o.logger.Info("expired batch jobs removed", map[string]interface{}{
					"count": removed,
				})
			}
		}
	}
}

// ==========================
// Job Execution
// ==========================

// run executes one job to a terminal state.
func (o *Orchestrator) run(job *Job, cancel <-chan struct{}) {
	defer o.active.Done()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, job.ID)
		o.mu.Unlock()
	}()

	start := time.Now()
	ctx := context.Background()

	var state sync.Mutex // guards job mutation and snapshot writes

	job.Status = StatusProcessing
	o.persist(ctx, job)

	indexes := make(chan int, job.TotalTerms)
	for i := range job.Request.Terms {
		indexes <- i
	}
	close(indexes)

	// unreachable counts terms for which every requested vocabulary was
	// unavailable; if that holds for the whole batch the fault is
	// systemic, not per-term.
	unreachable := 0

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				select {
				case <-cancel:
					return
				default:
				}

				result, allVocabsDown := o.mapOne(ctx, job.Request, job.Request.Terms[idx])

				state.Lock()
				job.Results[idx] = result
				job.ProcessedTerms++
				if allVocabsDown {
					unreachable++
				}
				o.persist(ctx, job)
				state.Unlock()
			}
		}()
	}
	wg.Wait()

	state.Lock()
	defer state.Unlock()

	cancelled := false
	select {
	case <-cancel:
		cancelled = true
	default:
	}

	switch {
	case cancelled:
		job.Status = StatusCancelled
		// Unscheduled terms get explicit entries so processed always
		// reaches total on a terminal job.
		for i := range job.Results {
			if job.Results[i].Response == nil && job.Results[i].Error == "" {
				job.Results[i].Error = "job cancelled before term was processed"
				job.ProcessedTerms++
			}
		}
	case unreachable == job.TotalTerms:
		job.Status = StatusFailed
		job.FaultReason = errors.NewOrchestratorFaultError(
			fmt.Errorf("vocabulary stores unreachable for all %d terms", job.TotalTerms)).Error()
	default:
		job.Status = StatusCompleted
	}

	now := time.Now().UTC()
	job.CompletedAt = &now
	o.persist(ctx, job)

	metrics.BatchJobs.WithLabelValues(string(job.Status)).Inc()
	metrics.BatchJobDuration.Observe(time.Since(start).Seconds())

	o.logger.Info("batch job finished", map[string]interface{}{
		"jobId":     job.ID,
		"status":    string(job.Status),
		"processed": job.ProcessedTerms,
		"duration":  time.Since(start).String(),
	})
}

// mapOne maps a single term, converting panics and errors into the term's
// result slot. The second return reports whether every requested
// vocabulary failed and at least one failure was a store fault.
func (o *Orchestrator) mapOne(ctx context.Context, req Request, term string) (result TermResult, allVocabsDown bool) {
	result = TermResult{Term: term}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("term mapping panicked", map[string]interface{}{
				"term":  term,
				"panic": fmt.Sprintf("%v", r),
			})
			result.Response = nil
			result.Error = errors.NewTermMappingFailedError(term, fmt.Errorf("panic: %v", r)).Error()
			allVocabsDown = false
		}
	}()

	metrics.BatchTermsActive.Inc()
	defer metrics.BatchTermsActive.Dec()

	resp, err := o.mapper.MapTerm(ctx, matching.MapRequest{
		Term:       term,
		Context:    req.Context,
		Systems:    req.Systems,
		Threshold:  req.Threshold,
		MaxResults: req.MaxResults,
	})
	if err != nil {
		result.Error = err.Error()
		return result, false
	}

	result.Response = resp

	// Vocabularies disabled in configuration are not outages. Only count
	// the term toward the systemic-fault check when a store actually
	// failed and nothing answered.
	down := 0
	for _, f := range resp.Failures {
		if f.Reason != matching.ReasonVocabularyDisabled {
			down++
		}
	}
	return result, down > 0 && len(resp.Failures) == len(req.Systems) && len(resp.Results) == 0
}

// persist writes a snapshot, logging rather than failing on store errors
// so a flaky store cannot kill a running job.
func (o *Orchestrator) persist(ctx context.Context, job *Job) {
	if err := o.store.Save(ctx, job); err != nil {
		o.logger.Error("failed to persist job snapshot", map[string]interface{}{
			"jobId": job.ID,
			"error": err.Error(),
		})
	}
}
