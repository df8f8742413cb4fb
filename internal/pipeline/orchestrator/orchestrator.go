// Package orchestrator implements the Job Orchestrator (C10): the
// top-level driver that advances a job through analyze -> storyboard
// -> render -> compose, maps progress onto fixed bands, publishes
// events on the Event Bus, and owns terminal cleanup.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/novelvideo/internal/pipeline/domain"
	"github.com/yungbote/novelvideo/internal/pipeline/eventbus"
	"github.com/yungbote/novelvideo/internal/pipeline/pipeerr"
	"github.com/yungbote/novelvideo/internal/pipeline/scratch"
	"github.com/yungbote/novelvideo/internal/pipeline/stages/analyze"
	"github.com/yungbote/novelvideo/internal/pipeline/stages/compose"
	"github.com/yungbote/novelvideo/internal/pipeline/stages/render"
	"github.com/yungbote/novelvideo/internal/pipeline/stages/storyboard"
	"github.com/yungbote/novelvideo/internal/pipeline/voice"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

// Progress bands from spec §4.10: init 0 -> stage1 (0,20) -> stage2
// (20,30) -> stage3 (30,70, linear in scenes) -> stage4 (70,100) -> done 100.
const (
	bandAnalyzeStart    = 0
	bandAnalyzeEnd      = 20
	bandStoryboardStart = 20
	bandStoryboardEnd   = 30
	bandRenderStart     = 30
	bandRenderEnd       = 70
	bandComposeStart    = 70
	bandComposeEnd      = 100
)

// Engine drives every submitted job. One Engine instance is shared
// across jobs; each job owns its own *domain.Job and scratch subtree.
type Engine struct {
	bus         eventbus.Bus
	scratch     *scratch.Store
	voiceCatalog *voice.Catalog
	analyzer    *analyze.Analyzer
	renderer    *render.Renderer
	composer    *compose.Composer
	log         *logger.Logger

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	jobs    map[uuid.UUID]*domain.Job
}

// Deps bundles the Engine's collaborators, one instance per adapter
// stack (HTTP adapters or fakes, depending on environment).
type Deps struct {
	Bus          eventbus.Bus
	Scratch      *scratch.Store
	VoiceCatalog *voice.Catalog
	Analyzer     *analyze.Analyzer
	Renderer     *render.Renderer
	Composer     *compose.Composer
	Log          *logger.Logger
}

func NewEngine(d Deps) *Engine {
	return &Engine{
		bus:          d.Bus,
		scratch:      d.Scratch,
		voiceCatalog: d.VoiceCatalog,
		analyzer:     d.Analyzer,
		renderer:     d.Renderer,
		composer:     d.Composer,
		log:          d.Log,
		cancels:      make(map[uuid.UUID]context.CancelFunc),
		jobs:         make(map[uuid.UUID]*domain.Job),
	}
}

// Submit creates a pending Job, returns its id synchronously, and
// begins running it on a new goroutine.
func (e *Engine) Submit(ctx context.Context, inputText string, opts domain.Options) uuid.UUID {
	jobID := uuid.New()
	opts = opts.WithDefaults()
	now := time.Now()
	job := &domain.Job{
		ID:          jobID,
		InputText:   inputText,
		Options:     opts,
		Status:      domain.JobPending,
		Stage:       domain.StageInit,
		ProgressPct: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if opts.JobTimeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, opts.JobTimeout)
	}

	e.mu.Lock()
	e.jobs[jobID] = job
	e.cancels[jobID] = cancel
	e.mu.Unlock()

	go e.run(runCtx, job)

	return jobID
}

// Cancel requests cooperative cancellation of a running job. It is a
// no-op if the job is unknown or already terminal.
func (e *Engine) Cancel(jobID uuid.UUID) {
	e.mu.Lock()
	cancel, ok := e.cancels[jobID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// Job returns a snapshot of a job's current state.
func (e *Engine) Job(jobID uuid.UUID) (domain.Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return *j, true
}

func (e *Engine) run(ctx context.Context, job *domain.Job) {
	defer e.finalizeCancel(job.ID)

	defer func() {
		if r := recover(); r != nil {
			e.fail(ctx, job, pipeerr.NewExternalService(job.Stage, "unhandled panic in orchestrator", nil))
		}
	}()

	e.setRunning(job)

	registry := voice.NewRegistry(e.voiceCatalog)

	jobDir, err := e.scratch.ForJob(job.ID)
	if err != nil {
		e.fail(ctx, job, err)
		return
	}

	analyzed, err := e.runAnalyze(ctx, job)
	if err != nil {
		e.fail(ctx, job, err)
		return
	}

	sb := storyboard.Build(analyzed, job.Options)
	e.emitProgress(ctx, job, domain.StageStoryboard, bandStoryboardEnd, "storyboard built")

	rendered, err := e.runRender(ctx, job, sb, jobDir, registry)
	if err != nil {
		e.fail(ctx, job, err)
		return
	}

	final, err := e.composer.Compose(ctx, job.ID, rendered, jobDir)
	if err != nil {
		e.fail(ctx, job, err)
		return
	}
	e.emitProgress(ctx, job, domain.StageCompose, bandComposeEnd, "composition complete")

	e.succeed(ctx, job, final)
}

func (e *Engine) runAnalyze(ctx context.Context, job *domain.Job) (domain.AnalyzedText, error) {
	e.emitProgress(ctx, job, domain.StageAnalyze, bandAnalyzeStart, "analyzing text")
	if err := ctx.Err(); err != nil {
		return domain.AnalyzedText{}, pipeerr.NewCancelled(domain.StageAnalyze)
	}

	result, err := e.analyzer.Analyze(ctx, job.InputText, job.Options)
	if err != nil {
		return domain.AnalyzedText{}, err
	}
	for _, w := range result.Warnings {
		e.log.Warn("analysis warning", "job_id", job.ID.String(), "warning", w)
	}
	e.emitProgress(ctx, job, domain.StageAnalyze, bandAnalyzeEnd, "text analyzed")
	return result.Text, nil
}

func (e *Engine) runRender(ctx context.Context, job *domain.Job, sb domain.Storyboard, jobDir *scratch.JobDir, registry *voice.Registry) (domain.RenderedStoryboard, error) {
	e.emitProgress(ctx, job, domain.StageRender, bandRenderStart, "rendering scenes")

	total := sb.TotalScenes()
	onProgress := func(completed, total int) {
		pct := bandRenderStart
		if total > 0 {
			pct = bandRenderStart + (completed*(bandRenderEnd-bandRenderStart))/total
		}
		e.emitProgress(ctx, job, domain.StageRender, pct, "scene rendered")
	}
	if total == 0 {
		onProgress = func(int, int) {}
	}

	rendered, err := e.renderer.Render(ctx, sb, jobDir, registry, job.Options, onProgress)
	if err != nil {
		return domain.RenderedStoryboard{}, err
	}
	e.emitProgress(ctx, job, domain.StageRender, bandRenderEnd, "all scenes rendered")
	return rendered, nil
}

func (e *Engine) setRunning(job *domain.Job) {
	e.mu.Lock()
	job.Status = domain.JobRunning
	job.UpdatedAt = time.Now()
	e.mu.Unlock()
}

// emitProgress clamps pct to be monotonically non-decreasing against
// the job's last recorded progress before publishing.
func (e *Engine) emitProgress(ctx context.Context, job *domain.Job, stage string, pct int, msg string) {
	// mu is held across the Publish call, not just the field update: a
	// job whose render stage fans progress out across goroutines
	// (MaxParallelScenes > 1) can otherwise have two callers update
	// ProgressPct under the lock in one order but Publish in the other
	// order once released, letting a later Sequence carry an earlier
	// (smaller) progress_pct downstream.
	e.mu.Lock()
	defer e.mu.Unlock()

	if pct < job.ProgressPct {
		pct = job.ProgressPct
	}
	job.Stage = stage
	job.ProgressPct = pct
	job.Message = msg
	job.UpdatedAt = time.Now()

	_ = e.bus.Publish(ctx, domain.Event{
		JobID:    job.ID,
		Type:     domain.EventProgress,
		Stage:    stage,
		Progress: pct,
		Message:  msg,
	})
}

func (e *Engine) fail(ctx context.Context, job *domain.Job, err error) {
	kind, ok := pipeerr.KindOf(err)
	if !ok {
		kind = pipeerr.KindExternalService
	}

	e.mu.Lock()
	if kind == pipeerr.KindCancelled {
		job.Status = domain.JobCancelled
	} else {
		job.Status = domain.JobFailed
	}
	job.ErrorKind = domain.ErrorKindName(kind)
	job.ErrorDetail = err.Error()
	job.UpdatedAt = time.Now()
	retain := job.Options.RetainScratchOnFailure
	jobID := job.ID
	e.mu.Unlock()

	_ = e.bus.Publish(context.Background(), domain.Event{
		JobID:       jobID,
		Type:        domain.EventFailed,
		ErrorKind:   domain.ErrorKindName(kind),
		ErrorDetail: err.Error(),
	})

	if !retain {
		if cerr := e.scratch.Cleanup(jobID); cerr != nil && e.log != nil {
			e.log.Warn("scratch cleanup failed after job failure", "job_id", jobID.String(), "error", cerr.Error())
		}
	}

	if e.log != nil {
		e.log.Error("job failed", "job_id", jobID.String(), "stage", job.Stage, "kind", string(kind), "detail", err.Error())
	}
	_ = ctx
}

func (e *Engine) succeed(ctx context.Context, job *domain.Job, final domain.FinalVideo) {
	e.mu.Lock()
	job.Status = domain.JobCompleted
	job.Stage = domain.StageDone
	job.ProgressPct = 100
	job.Message = "done"
	job.Result = &final
	job.UpdatedAt = time.Now()
	jobID := job.ID
	e.mu.Unlock()

	_ = e.bus.Publish(context.Background(), domain.Event{
		JobID:  jobID,
		Type:   domain.EventCompleted,
		Result: &final,
	})

	if cerr := e.scratch.Cleanup(jobID); cerr != nil && e.log != nil {
		e.log.Warn("scratch cleanup failed after job success", "job_id", jobID.String(), "error", cerr.Error())
	}

	if e.log != nil {
		e.log.Info("job completed", "job_id", jobID.String(), "video_path", final.Path, "duration", final.DurationSec)
	}
	_ = ctx
}

func (e *Engine) finalizeCancel(jobID uuid.UUID) {
	e.mu.Lock()
	delete(e.cancels, jobID)
	e.mu.Unlock()
}
