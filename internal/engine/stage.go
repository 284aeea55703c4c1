package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stagehand/internal/dispatch"
	"stagehand/internal/local"
	"stagehand/internal/metrics"
	"stagehand/internal/plan"
	"stagehand/internal/resolve"
)

const stageConcurrencyDefault = 16

// Config bounds the executor. Passed explicitly into constructors; there
// is no ambient configuration state.
type Config struct {
	// DispatchTimeout caps the wait for one worker result.
	DispatchTimeout time.Duration
	// StageConcurrency caps concurrently running steps within a stage.
	StageConcurrency int
	// PermitNullResults forwards the lenient null-output resolution
	// choice to the reference resolver.
	PermitNullResults bool
}

func (c Config) withDefaults() Config {
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 60 * time.Second
	}
	if c.StageConcurrency <= 0 {
		c.StageConcurrency = stageConcurrencyDefault
	}
	return c
}

// PostProcessor optionally replaces a completed step's processed output
// (e.g. summarizing an oversized result). A post-processing failure
// degrades to the raw value; it never fails the step.
type PostProcessor func(ctx context.Context, entry *ContextEntry) (any, bool, error)

// StageResult aggregates one stage's fan-in.
type StageResult struct {
	Success       bool
	Entries       []ContextEntry
	PartialErrors []string
	KeyFindings   []string
	FirstFailure  *FailureDetails
	Metrics       metrics.StageMetrics
}

// StageExecutor runs one stage: fan out every step concurrently, join all
// of them, post-process, and record outputs. Worker-bound steps travel
// through the dispatch queue; local steps run in-process.
type StageExecutor struct {
	queue   *dispatch.Queue
	results *dispatch.ResultRouter
	local   *local.Runner
	post    PostProcessor
	cfg     Config
	logger  *log.Logger
}

func NewStageExecutor(queue *dispatch.Queue, results *dispatch.ResultRouter, localRunner *local.Runner, post PostProcessor, cfg Config, logger *log.Logger) *StageExecutor {
	if logger == nil {
		logger = log.Default()
	}
	return &StageExecutor{
		queue:   queue,
		results: results,
		local:   localRunner,
		post:    post,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// settledStep is one step's private result before the post-join commit.
type settledStep struct {
	def      plan.StepDefinition
	subID    string
	output   plan.StepOutput
	isFinal  bool
	partials []string
	metrics  metrics.StepMetrics
}

// Run executes one stage against the accumulated step outputs. outputs is
// written only here, strictly after the join; concurrent steps never see
// each other's results.
func (e *StageExecutor) Run(ctx context.Context, stageNum int, stage plan.Stage, outputs map[string]*plan.StepOutput, execCtx *ExecutionContext, journal *Journal, parentTaskID string) *StageResult {
	sm := metrics.StageMetrics{Stage: stageNum, Start: time.Now()}
	journal.Record(JournalStageStart, fmt.Sprintf("stage %d: starting %d step(s)", stageNum, len(stage)), nil)

	// Snapshot before fan-out so every step in the stage resolves against
	// the same view of the world.
	previousOutput := execCtx.LastOutputText()

	settled := make([]settledStep, len(stage))
	var mu sync.Mutex

	// errgroup is used as a bounded join: sibling failures are recorded,
	// never propagated, so no step cancels another.
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.StageConcurrency)

	for i := range stage {
		idx := i
		step := stage[idx]
		g.Go(func() (rerr error) {
			defer func() {
				if rec := recover(); rec != nil {
					mu.Lock()
					settled[idx] = e.failedStep(step, "", fmt.Sprintf("panic in step '%s': %v", step.StepID, rec), time.Now())
					mu.Unlock()
				}
			}()
			result := e.runStep(ctx, step, outputs, previousOutput, journal, parentTaskID)
			mu.Lock()
			settled[idx] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result := &StageResult{Success: true}
	for i := range settled {
		s := &settled[i]

		if s.output.Status == plan.StatusCompleted && e.post != nil {
			e.postProcess(ctx, s, journal, result)
		}

		outputs[s.def.StepID] = &s.output
		entry := ContextEntry{
			SubTaskID:     s.subID,
			StepID:        s.def.StepID,
			Role:          s.def.Role,
			Tool:          s.def.Tool,
			Narrative:     s.def.Narrative,
			Output:        s.output,
			isFinalAnswer: s.isFinal,
		}
		result.Entries = append(result.Entries, entry)
		result.PartialErrors = append(result.PartialErrors, s.partials...)
		sm.Steps = append(sm.Steps, s.metrics)

		if s.output.Status == plan.StatusFailed {
			result.Success = false
			if result.FirstFailure == nil {
				result.FirstFailure = &FailureDetails{
					StepID:       s.def.StepID,
					Narrative:    s.def.Narrative,
					Role:         s.def.Role,
					Tool:         s.def.Tool,
					ErrorDetails: s.output.ErrorDetails,
				}
			}
		}
	}
	execCtx.Append(result.Entries...)

	sm.End = time.Now()
	sm.Finalize()
	result.Metrics = sm

	if result.Success {
		journal.Record(JournalStageComplete, fmt.Sprintf("stage %d: completed", stageNum), nil)
	} else {
		journal.Record(JournalStageFailed,
			fmt.Sprintf("stage %d: failed at step '%s'", stageNum, result.FirstFailure.StepID),
			result.FirstFailure)
	}
	return result
}

// postProcess lets the hook replace processed_result_data. result_data is
// never altered, and hook failures degrade to the raw value.
func (e *StageExecutor) postProcess(ctx context.Context, s *settledStep, journal *Journal, result *StageResult) {
	entry := ContextEntry{
		SubTaskID: s.subID,
		StepID:    s.def.StepID,
		Role:      s.def.Role,
		Tool:      s.def.Tool,
		Narrative: s.def.Narrative,
		Output:    s.output,
	}
	processed, replaced, err := e.post(ctx, &entry)
	if err != nil {
		e.logger.Printf("[StageExecutor] post-processing for step '%s' failed, using raw output: %v", s.def.StepID, err)
		return
	}
	if replaced {
		s.output.ProcessedResultData = processed
		journal.Record(JournalSummarized, fmt.Sprintf("step '%s': output post-processed", s.def.StepID), nil)
		if text, ok := processed.(string); ok && text != "" {
			result.KeyFindings = append(result.KeyFindings, fmt.Sprintf("%s: %s", s.def.StepID, text))
		}
	}
}

func (e *StageExecutor) failedStep(def plan.StepDefinition, subID, errDetails string, start time.Time) settledStep {
	end := time.Now()
	return settledStep{
		def:   def,
		subID: subID,
		output: plan.StepOutput{
			Status:       plan.StatusFailed,
			ErrorDetails: errDetails,
		},
		metrics: metrics.StepMetrics{
			StepID:     def.StepID,
			Role:       def.Role,
			Tool:       def.Tool,
			Start:      start,
			End:        end,
			DurationMs: end.Sub(start).Milliseconds(),
			Success:    false,
			Err:        errDetails,
		},
	}
}

// runStep settles one step: resolve its input, then either run the local
// action in-process or dispatch to a worker and await the correlated
// result. Every failure path converts to a FAILED output; nothing is
// thrown past the stage executor.
func (e *StageExecutor) runStep(ctx context.Context, def plan.StepDefinition, outputs map[string]*plan.StepOutput, previousOutput string, journal *Journal, parentTaskID string) settledStep {
	start := time.Now()

	resolved, err := resolve.Resolve(def.Input, outputs, resolve.Options{
		PermitNullResults: e.cfg.PermitNullResults,
	})
	if err != nil {
		journal.Record(JournalStepFailed, fmt.Sprintf("step '%s': input resolution failed: %v", def.StepID, err), nil)
		return e.failedStep(def, "", err.Error(), start)
	}

	if def.Role == plan.RoleLocal {
		return e.runLocalStep(ctx, def, resolved, previousOutput, journal, parentTaskID, start)
	}
	return e.runWorkerStep(ctx, def, resolved, journal, parentTaskID, start)
}

func (e *StageExecutor) runLocalStep(ctx context.Context, def plan.StepDefinition, resolved any, previousOutput string, journal *Journal, parentTaskID string, start time.Time) settledStep {
	subID := uuid.NewString()
	input, ok := resolved.(map[string]any)
	if !ok {
		return e.failedStep(def, subID, fmt.Sprintf("local step '%s': input is not an object", def.StepID), start)
	}

	journal.Record(JournalStepDispatched, fmt.Sprintf("step '%s': running local action %s", def.StepID, def.Tool), nil)
	res, err := e.local.Run(ctx, parentTaskID, def.Tool, input, previousOutput)
	end := time.Now()
	if err != nil {
		journal.Record(JournalStepFailed, fmt.Sprintf("step '%s': %v", def.StepID, err), nil)
		return e.failedStep(def, subID, err.Error(), start)
	}

	journal.Record(JournalStepResult, fmt.Sprintf("step '%s': local action completed", def.StepID), nil)
	return settledStep{
		def:   def,
		subID: subID,
		output: plan.StepOutput{
			Status:     plan.StatusCompleted,
			ResultData: res.Data,
		},
		isFinal:  res.IsFinalAnswer,
		partials: res.PartialErrors,
		metrics: metrics.StepMetrics{
			StepID:     def.StepID,
			Role:       def.Role,
			Tool:       def.Tool,
			Start:      start,
			End:        end,
			DurationMs: end.Sub(start).Milliseconds(),
			Success:    true,
		},
	}
}

func (e *StageExecutor) runWorkerStep(ctx context.Context, def plan.StepDefinition, resolved any, journal *Journal, parentTaskID string, start time.Time) settledStep {
	subID := uuid.NewString()

	// Register before enqueueing so a fast worker cannot answer into a
	// registry with no waiter.
	reg, err := e.results.Register(parentTaskID, subID)
	if err != nil {
		return e.failedStep(def, subID, err.Error(), start)
	}

	task := &dispatch.TaskMessage{
		SubTaskID:    subID,
		ParentTaskID: parentTaskID,
		Role:         def.Role,
		Tool:         def.Tool,
		Input:        resolved,
		StepID:       def.StepID,
		Narrative:    def.Narrative,
	}
	journal.Record(JournalStepDispatched,
		fmt.Sprintf("step '%s': dispatched to role '%s' as sub-task %s", def.StepID, def.Role, subID), nil)

	if err := e.queue.Enqueue(task); err != nil {
		reg.Cancel()
		journal.Record(JournalStepFailed, fmt.Sprintf("step '%s': enqueue failed: %v", def.StepID, err), nil)
		return e.failedStep(def, subID, err.Error(), start)
	}

	msg, err := reg.Await(ctx, e.cfg.DispatchTimeout)
	end := time.Now()
	if err != nil {
		if _, mismatch := err.(*dispatch.MismatchError); mismatch {
			journal.Record(JournalAnomaly, fmt.Sprintf("step '%s': %v", def.StepID, err), nil)
		} else {
			journal.Record(JournalStepFailed, fmt.Sprintf("step '%s': %v", def.StepID, err), nil)
		}
		return e.failedStep(def, subID, err.Error(), start)
	}

	if msg.Status != plan.StatusCompleted {
		details := msg.ErrorDetails
		if details == "" {
			details = fmt.Sprintf("worker '%s' reported status %s", msg.WorkerRole, msg.Status)
		}
		journal.Record(JournalStepFailed, fmt.Sprintf("step '%s': worker failure: %s", def.StepID, details), nil)
		return e.failedStep(def, subID, details, start)
	}

	journal.Record(JournalStepResult, fmt.Sprintf("step '%s': result received from role '%s'", def.StepID, msg.WorkerRole), nil)
	return settledStep{
		def:   def,
		subID: subID,
		output: plan.StepOutput{
			Status:     plan.StatusCompleted,
			ResultData: msg.ResultData,
		},
		metrics: metrics.StepMetrics{
			StepID:     def.StepID,
			Role:       def.Role,
			Tool:       def.Tool,
			Start:      start,
			End:        end,
			DurationMs: end.Sub(start).Milliseconds(),
			Success:    true,
		},
	}
}
