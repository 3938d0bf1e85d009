package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/logger"
	"github.com/farxc/envelopa-auditoria/internal/metrics"
	"github.com/farxc/envelopa-auditoria/internal/result"
	"github.com/google/uuid"
)

// ContractSource pages through the contracts to audit.
type ContractSource interface {
	CountContracts(ctx context.Context) (int, error)
	ContractPage(ctx context.Context, offset, limit int) ([]models.Contract, error)
	ContractsByIDs(ctx context.Context, ids []int64) ([]models.Contract, error)
}

// RelatedLoader fetches everything a page of contracts needs in one go.
type RelatedLoader interface {
	LoadRelated(ctx context.Context, contracts []models.Contract) (*aggregate.Related, error)
}

// RunRecorder persists run history. A Runner without one keeps nothing.
type RunRecorder interface {
	StartRun(ctx context.Context, run *Run) error
	RecordFindings(ctx context.Context, runID uuid.UUID, reports []Report) error
	FinishRun(ctx context.Context, run *Run) error
}

const (
	RunStatusInProgress = "in_progress"
	RunStatusSuccess    = "success"
	RunStatusFailure    = "failure"
	RunStatusPartial    = "partial"
)

const (
	TriggerManual = "manual"
	TriggerAPI    = "api"
)

type Run struct {
	ID         uuid.UUID
	Trigger    string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    RunSummary
}

type StageCounts struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

type ErrorCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type RunSummary struct {
	RunID     uuid.UUID             `json:"run_id"`
	Contracts int                   `json:"contracts"`
	Batches   int                   `json:"batches"`
	Validated int                   `json:"validated"`
	Stages    map[Stage]StageCounts `json:"stages"`
	TopErrors []ErrorCount          `json:"top_errors"`
	Failures  []Report              `json:"failures,omitempty"`
	Duration  time.Duration         `json:"duration_ns"`
}

const (
	topErrorLimit = 5
	errorKeyLen   = 60
)

// RunOptions narrows a run. Zero values audit every contract.
type RunOptions struct {
	ContractIDs []int64
	Limit       int
	// BatchSize overrides the runner's page size when positive.
	BatchSize int
	Trigger   string
	// OnReport is called from a single goroutine for every audited contract.
	OnReport func(Report)
}

type Runner struct {
	auditor   *Auditor
	contracts ContractSource
	loader    RelatedLoader
	recorder  RunRecorder
	appLogger *logger.Logger
	metrics   *metrics.Metrics

	batchSize      int
	maxConcurrency int
}

func NewRunner(auditor *Auditor, contracts ContractSource, loader RelatedLoader, recorder RunRecorder, appLogger *logger.Logger, m *metrics.Metrics, batchSize, concurrency int) *Runner {
	if batchSize <= 0 {
		batchSize = 100
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		auditor:        auditor,
		contracts:      contracts,
		loader:         loader,
		recorder:       recorder,
		appLogger:      appLogger,
		metrics:        m,
		batchSize:      batchSize,
		maxConcurrency: concurrency,
	}
}

type auditJob struct {
	contract models.Contract
	sources  aggregate.Sources
}

// run holds the channels and tallies of one Run call.
type run struct {
	jobChan    chan auditJob
	resultChan chan Report
	wg         sync.WaitGroup
	batchSize  int

	summary RunSummary
	errors  map[string]int
}

// Run audits contracts batch by batch on a bounded worker pool. A failing
// contract never stops its siblings; only source errors abort the run.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	const component = "Runner"
	start := time.Now()

	trigger := opts.Trigger
	if trigger == "" {
		trigger = TriggerManual
	}
	record := &Run{ID: uuid.New(), Trigger: trigger, Status: RunStatusInProgress, StartedAt: start}
	if r.recorder != nil {
		if err := r.recorder.StartRun(ctx, record); err != nil {
			return RunSummary{}, fmt.Errorf("failed to start audit run: %w", err)
		}
	}

	batchSize := r.batchSize
	if opts.BatchSize > 0 {
		batchSize = opts.BatchSize
	}

	st := &run{
		jobChan:    make(chan auditJob, batchSize),
		resultChan: make(chan Report, batchSize),
		batchSize:  batchSize,
		summary:    RunSummary{RunID: record.ID, Stages: make(map[Stage]StageCounts)},
		errors:     make(map[string]int),
	}

	r.appLogger.Info(component, "Starting audit run: id=%s batchSize=%d concurrency=%d", record.ID, batchSize, r.maxConcurrency)

	for i := 0; i < r.maxConcurrency; i++ {
		st.wg.Add(1)
		go r.worker(ctx, st)
	}

	done := make(chan struct{})
	go r.listenToResults(st, opts.OnReport, done)

	batches, dispatchErr := r.dispatch(ctx, st, opts)
	close(st.jobChan)
	st.wg.Wait()
	close(st.resultChan)
	<-done

	st.summary.Batches = batches
	st.summary.TopErrors = topErrors(st.errors, topErrorLimit)
	st.summary.Duration = time.Since(start)
	r.metrics.ObserveRun(st.summary.Duration)

	record.Summary = st.summary
	record.FinishedAt = time.Now()
	record.Status = runStatus(st.summary, dispatchErr)

	if r.recorder != nil {
		if err := r.recorder.RecordFindings(ctx, record.ID, st.summary.Failures); err != nil {
			r.appLogger.Error(component, "Failed to record findings: id=%s err=%v", record.ID, err)
		}
		if err := r.recorder.FinishRun(ctx, record); err != nil {
			r.appLogger.Error(component, "Failed to finish audit run: id=%s status=%s err=%v", record.ID, record.Status, err)
		}
	}

	r.appLogger.Info(component, "Audit run finished: id=%s status=%s contracts=%d validated=%d duration=%s",
		record.ID, record.Status, st.summary.Contracts, st.summary.Validated, st.summary.Duration)

	if dispatchErr != nil {
		return st.summary, dispatchErr
	}
	return st.summary, nil
}

func runStatus(s RunSummary, err error) string {
	switch {
	case err != nil:
		return RunStatusFailure
	case s.Validated < s.Contracts:
		return RunStatusPartial
	default:
		return RunStatusSuccess
	}
}

// dispatch pages contracts, loads their related data and queues one job per
// contract. It returns the number of batches sent.
func (r *Runner) dispatch(ctx context.Context, st *run, opts RunOptions) (int, error) {
	const component = "Loader"

	if len(opts.ContractIDs) > 0 {
		batches := 0
		for offset := 0; offset < len(opts.ContractIDs); offset += st.batchSize {
			end := min(offset+st.batchSize, len(opts.ContractIDs))
			contracts, err := r.contracts.ContractsByIDs(ctx, opts.ContractIDs[offset:end])
			if err != nil {
				return batches, fmt.Errorf("failed to load contracts: %w", err)
			}
			if err := r.enqueueBatch(ctx, st, contracts); err != nil {
				return batches, err
			}
			batches++
		}
		return batches, nil
	}

	total, err := r.contracts.CountContracts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count contracts: %w", err)
	}
	if opts.Limit > 0 && opts.Limit < total {
		total = opts.Limit
	}
	r.appLogger.Info(component, "Contracts to audit: total=%d", total)

	batches := 0
	for offset := 0; offset < total; offset += st.batchSize {
		size := min(st.batchSize, total-offset)
		contracts, err := r.contracts.ContractPage(ctx, offset, size)
		if err != nil {
			return batches, fmt.Errorf("failed to load contract page at offset %d: %w", offset, err)
		}
		if len(contracts) == 0 {
			break
		}
		if err := r.enqueueBatch(ctx, st, contracts); err != nil {
			return batches, err
		}
		batches++
		r.appLogger.Debug(component, "Batch queued: batch=%d contracts=%d progress=%d/%d", batches, len(contracts), offset+len(contracts), total)
	}
	return batches, nil
}

func (r *Runner) enqueueBatch(ctx context.Context, st *run, contracts []models.Contract) error {
	const component = "Loader"

	loadStart := time.Now()
	related, err := r.loader.LoadRelated(ctx, contracts)
	r.metrics.ObserveBatchLoad(time.Since(loadStart))

	if err != nil {
		r.appLogger.Error(component, "Failed to load related data: contracts=%d err=%v", len(contracts), err)
		f := &result.Failure{Kind: result.KindFetch, Message: err.Error()}
		for _, c := range contracts {
			select {
			case st.resultChan <- FailedReport(c.ID, f):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	for _, c := range contracts {
		select {
		case st.jobChan <- auditJob{contract: c, sources: related}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Runner) worker(ctx context.Context, st *run) {
	const component = "Worker"
	defer st.wg.Done()

	for job := range st.jobChan {
		rep := r.auditor.AuditContract(ctx, job.contract, job.sources)
		if !rep.Validated {
			r.appLogger.Debug(component, "Contract failed: contract=%d stage=%s rule=%s msg=%s", rep.ContractID, rep.Stage, rep.Rule, rep.Message)
		}
		st.resultChan <- rep
	}
}

func (r *Runner) listenToResults(st *run, onReport func(Report), done chan<- struct{}) {
	defer close(done)

	for rep := range st.resultChan {
		st.summary.Contracts++
		if rep.Validated {
			st.summary.Validated++
		} else {
			st.summary.Failures = append(st.summary.Failures, rep)
			st.errors[errorKey(rep)]++
		}

		for stage := range stageOrder {
			counts := st.summary.Stages[stage]
			switch rep.Outcome(stage) {
			case OutcomePassed:
				counts.Passed++
			case OutcomeSkipped:
				continue
			default:
				counts.Failed++
			}
			st.summary.Stages[stage] = counts
		}

		if onReport != nil {
			onReport(rep)
		}
	}
}

// errorKey buckets a failed report for the top-errors tally. Rule violations
// group by rule name; other failures group by kind and message with every
// word carrying a digit (ids, dates, amounts) masked.
func errorKey(rep Report) string {
	if rep.Rule != "" {
		return rep.Rule
	}
	words := strings.Fields(rep.Message)
	for i, w := range words {
		if strings.ContainsAny(w, "0123456789") {
			words[i] = "#"
		}
	}
	msg := strings.Join(words, " ")
	if utf8.RuneCountInString(msg) > errorKeyLen {
		msg = string([]rune(msg)[:errorKeyLen])
	}
	kind := rep.Kind
	if kind == "" {
		kind = "unknown"
	}
	return kind + ": " + msg
}

func topErrors(counts map[string]int, limit int) []ErrorCount {
	out := make([]ErrorCount, 0, len(counts))
	for msg, n := range counts {
		out = append(out, ErrorCount{Message: msg, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Message < out[j].Message
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
