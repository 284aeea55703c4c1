// Package supervisor owns the mission lifecycle: it queues missions,
// drives the engine, and feeds failed attempts back into the planner for
// revision. The engine itself never retries; all recovery lives here.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"stagehand/internal/engine"
	"stagehand/internal/plan"
	"stagehand/internal/planner"
)

const missionQueueCapacity = 100

// Supervisor runs missions one at a time from a buffered queue.
type Supervisor struct {
	engine      *engine.Engine
	planner     planner.Planner
	logger      *log.Logger
	maxAttempts int

	queue   chan *Mission
	Results chan MissionResult

	mu         sync.Mutex
	curMission *Mission
	curCancel  context.CancelFunc
}

func New(eng *engine.Engine, pl planner.Planner, maxAttempts int, logger *log.Logger) *Supervisor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Supervisor{
		engine:      eng,
		planner:     pl,
		logger:      logger,
		maxAttempts: maxAttempts,
		queue:       make(chan *Mission, missionQueueCapacity),
		Results:     make(chan MissionResult, missionQueueCapacity),
	}
}

// Start consumes the mission queue in the background.
func (s *Supervisor) Start() {
	go func() {
		for mission := range s.queue {
			s.logger.Printf("[Supervisor] Starting mission '%s' (ID: %s)", mission.Goal, mission.ID)
			mission.State = StatusRunning
			s.runMission(mission)
		}
	}()
}

// Submit enqueues a validated plan for execution and returns the mission
// (parent task) id.
func (s *Supervisor) Submit(goal string, p plan.Plan) string {
	id := uuid.New().String()[:8]
	s.queue <- &Mission{
		ID:          id,
		Goal:        goal,
		State:       StatusPending,
		MaxAttempts: s.maxAttempts,
		Plan:        p,
	}
	return id
}

// Cancel stops the currently running mission. An empty id targets
// whichever mission is running.
func (s *Supervisor) Cancel(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curMission == nil || s.curMission.State != StatusRunning {
		return "", fmt.Errorf("no mission is currently running")
	}
	if id != "" && !strings.EqualFold(s.curMission.ID, id) {
		return "", fmt.Errorf("mission %s is not running (current: %s)", id, s.curMission.ID)
	}
	if s.curCancel == nil {
		return "", fmt.Errorf("internal error: cancel function not set")
	}
	cancelled := s.curMission.ID
	s.curCancel()
	return cancelled, nil
}

func (s *Supervisor) runMission(m *Mission) {
	missionCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.curMission = m
	s.curCancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		if s.curMission != nil && s.curMission.ID == m.ID {
			s.curMission = nil
			s.curCancel = nil
		}
		s.mu.Unlock()
	}()

	result := MissionResult{MissionID: m.ID, Goal: m.Goal}
	currentPlan := m.Plan

	for m.Attempt < m.MaxAttempts {
		m.Attempt++

		// Each attempt runs with a fresh execution context; prior
		// attempts inform only the revision prompt.
		run := s.engine.Run(missionCtx, currentPlan, m.ID)

		result.Attempts = m.Attempt
		result.Metrics = run.Metrics
		result.KeyFindings = run.KeyFindings

		if run.Success {
			s.logger.Printf("[Supervisor] Mission '%s' SUCCEEDED (ID: %s)", m.Goal, m.ID)
			m.State = StatusSucceeded
			result.FinalAnswer = run.FinalAnswer
			result.FinalAnswerSynthesized = run.FinalAnswerSynthesized
			result.Error = ""
			break
		}

		if errors.Is(missionCtx.Err(), context.Canceled) {
			s.logger.Printf("[Supervisor] Mission '%s' CANCELLED (ID: %s)", m.Goal, m.ID)
			m.State = StatusCancelled
			result.Error = "mission cancelled"
			break
		}

		failure := "stage execution failed"
		if run.FailedStep != nil {
			failure = fmt.Sprintf("step '%s' failed: %s", run.FailedStep.StepID, run.FailedStep.ErrorDetails)
		}
		result.Error = failure
		s.logger.Printf("[Supervisor] Mission '%s' FAILED on attempt %d/%d (ID: %s): %s",
			m.Goal, m.Attempt, m.MaxAttempts, m.ID, failure)

		if m.Attempt >= m.MaxAttempts || s.planner == nil {
			m.State = StatusFailed
			break
		}

		revised, err := s.planner.GetPlan(missionCtx, m.Goal, &planner.ReplanContext{
			PriorPlan:   currentPlan,
			Failed:      run.FailedStep,
			Context:     run.Context,
			Errors:      run.Errors,
			KeyFindings: run.KeyFindings,
		})
		if err != nil {
			if errors.Is(err, plan.ErrNothingToDo) {
				s.logger.Printf("[Supervisor] Mission %s: replanner returned an empty plan; stopping", m.ID)
			} else {
				s.logger.Printf("[Supervisor] Mission %s: replanning failed: %v", m.ID, err)
			}
			m.State = StatusFailed
			break
		}
		currentPlan = revised
	}

	result.State = m.State
	s.Results <- result
}
