// Package engine is the plan execution core: a stage executor that fans
// steps out and joins them, and a sequencer that runs stages strictly in
// order, halts at the first failed stage, and hands enough state to the
// replanning flow.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"stagehand/internal/metrics"
	"stagehand/internal/plan"
)

// RunResult is everything a run produced: the journal, the working
// context, the designated final answer if one exists, and on failure the
// details the external replanner needs.
type RunResult struct {
	Success                bool
	Context                *ExecutionContext
	Journal                []JournalEntry
	FinalAnswer            any
	FinalAnswerSynthesized bool
	FailedStep             *FailureDetails
	KeyFindings            []string
	Errors                 []string
	Metrics                *metrics.RunMetrics
}

// Engine sequences stages. The plan must have passed validation before
// Run is called; the engine itself only enforces execution semantics.
type Engine struct {
	stages *StageExecutor
	logger *log.Logger
}

func New(stages *StageExecutor, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{stages: stages, logger: logger}
}

// Run executes a validated plan for one parent task. Stages run strictly
// in order; the first failed stage halts the run without starting later
// stages, which are assumed to depend on its output.
func (e *Engine) Run(ctx context.Context, p plan.Plan, parentTaskID string) *RunResult {
	rm := &metrics.RunMetrics{ParentTaskID: parentTaskID, Start: time.Now()}
	defer func() {
		rm.End = time.Now()
		rm.Finalize()
	}()

	journal := NewJournal(e.logger)
	execCtx := &ExecutionContext{}
	outputs := make(map[string]*plan.StepOutput, p.Steps())
	result := &RunResult{Context: execCtx, Metrics: rm}

	journal.Record(JournalRunStart,
		fmt.Sprintf("task %s: executing plan with %d stage(s), %d step(s)", parentTaskID, len(p), p.Steps()), nil)

	for si, stage := range p {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err.Error())
			journal.Record(JournalRunFailed, fmt.Sprintf("task %s: cancelled before stage %d", parentTaskID, si+1), nil)
			result.Journal = journal.Entries()
			rm.Succeeded = false
			return result
		}
		if len(stage) == 0 {
			continue
		}

		stageResult := e.stages.Run(ctx, si+1, stage, outputs, execCtx, journal, parentTaskID)
		rm.Stages = append(rm.Stages, stageResult.Metrics)
		result.Errors = append(result.Errors, stageResult.PartialErrors...)
		result.KeyFindings = append(result.KeyFindings, stageResult.KeyFindings...)

		if !stageResult.Success {
			result.FailedStep = stageResult.FirstFailure
			journal.Record(JournalRunFailed,
				fmt.Sprintf("task %s: halted at stage %d (step '%s')", parentTaskID, si+1, stageResult.FirstFailure.StepID),
				stageResult.FirstFailure)
			result.Journal = journal.Entries()
			rm.Succeeded = false
			return result
		}
	}

	result.Success = true
	rm.Succeeded = true
	e.detectFinalAnswer(result)
	journal.Record(JournalRunComplete, fmt.Sprintf("task %s: all stages completed", parentTaskID), nil)
	result.Journal = journal.Entries()
	return result
}

// detectFinalAnswer scans the last context entry: a local text-generation
// step whose input flagged itself as the final answer becomes the
// designated, synthesized answer. Otherwise FinalAnswer stays absent.
func (e *Engine) detectFinalAnswer(result *RunResult) {
	last := result.Context.Last()
	if last == nil {
		return
	}
	if last.Role != plan.RoleLocal || last.Tool != plan.LocalGenerateText {
		return
	}
	if !last.isFinalAnswer || last.Output.Status != plan.StatusCompleted {
		return
	}
	if answer, ok := last.Output.Field(plan.FieldProcessedResultData); ok {
		result.FinalAnswer = answer
		result.FinalAnswerSynthesized = true
	}
}
