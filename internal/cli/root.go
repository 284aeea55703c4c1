// Package cli is the interactive front end: it reads goals, previews
// risky plans for confirmation, and hands accepted plans to the
// supervisor. All heavy lifting happens in the background; mission
// results arrive asynchronously above the prompt.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stagehand/internal/display"
	"stagehand/internal/listener"
	"stagehand/internal/plan"
	"stagehand/internal/planner"
	"stagehand/internal/supervisor"
)

const planGenerationTimeout = 60 * time.Second

// App wires the interactive loop to its collaborators.
type App struct {
	Supervisor *supervisor.Supervisor
	Planner    planner.Planner
	Catalog    *plan.Catalog
	Logger     *log.Logger
}

// Execute runs the root command until the user exits.
func (a *App) Execute() error {
	rootCmd := &cobra.Command{
		Use:   "stagehand",
		Short: "A staged plan execution engine",
		Long:  `Turns a goal into a multi-stage execution plan and runs it across local actions and role-based workers, with automatic revision on failure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInteractive()
		},
	}
	return rootCmd.Execute()
}

func (a *App) runInteractive() error {
	lis, err := listener.New()
	if err != nil {
		return fmt.Errorf("failed to init terminal input: %w", err)
	}
	defer lis.Close()

	a.Supervisor.Start()
	go a.consumeResults(lis)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nGoodbye!")
		os.Exit(0)
	}()

	lis.AsyncPrintln("Hello! What should I work on? (type 'exit' or press Ctrl+C to quit)")
	lis.AsyncPrintln("Commands: run <plan.json>  |  cancel [mission-id]  |  or just describe a goal.")

	for {
		input := lis.GetInput()
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"):
			fmt.Println("Goodbye!")
			return nil
		case strings.HasPrefix(strings.ToLower(input), "run "):
			a.handleManualPlan(lis, strings.TrimSpace(input[len("run "):]))
		case strings.EqualFold(input, "cancel") || strings.HasPrefix(strings.ToLower(input), "cancel "):
			id := strings.TrimSpace(input[len("cancel"):])
			if cancelled, err := a.Supervisor.Cancel(id); err != nil {
				lis.AsyncPrintln(fmt.Sprintf("[Cancel] %v", err))
			} else {
				lis.AsyncPrintln(fmt.Sprintf("[Cancel] Mission %s is being cancelled", cancelled))
			}
		default:
			a.handleGoal(lis, input)
		}
	}
}

// handleManualPlan loads a plan file, validates it, and submits it after a
// preview. Manual plans always get a confirmation dialog.
func (a *App) handleManualPlan(lis *listener.Listener, path string) {
	p, err := plan.Load(path)
	if err != nil {
		if errors.Is(err, plan.ErrNothingToDo) {
			lis.AsyncPrintln("[Manual] Plan file is empty; nothing to do.")
			return
		}
		lis.AsyncPrintln(fmt.Sprintf("[Manual] %v", err))
		return
	}
	if err := plan.Validate(p, a.Catalog); err != nil {
		lis.AsyncPrintln(fmt.Sprintf("[Manual] Invalid plan: %v", err))
		return
	}

	lis.AsyncPrintln(display.FormatPlan(p))
	if !lis.AskYesNo(fmt.Sprintf("Execute the plan from %s?", path)) {
		lis.AsyncPrintln("[Manual] Cancelled.")
		return
	}

	missionID := a.Supervisor.Submit("manual plan: "+path, p)
	lis.AsyncPrintln(fmt.Sprintf("[Manual] Mission %s started", missionID))
}

func (a *App) handleGoal(lis *listener.Listener, goal string) {
	lis.AsyncPrintln("Generating a plan for the above goal ...")

	planCtx, cancel := context.WithTimeout(context.Background(), planGenerationTimeout)
	defer cancel()

	p, err := a.Planner.GetPlan(planCtx, goal, nil)
	if err != nil {
		if errors.Is(err, plan.ErrNothingToDo) {
			lis.AsyncPrintln("Nothing to do for that goal.")
			return
		}
		lis.AsyncPrintln(fmt.Sprintf("[Plan generation FAILED] %v", err))
		return
	}

	a.Logger.Printf("Plan for goal %q (FULL):\n%s", goal, display.FormatPlanFull(p))

	// Destructive file operations always get a preview.
	if supervisor.IsPlanRisky(p) {
		lis.AsyncPrintln(display.FormatPlan(p))
		if !lis.AskYesNo("This plan contains destructive operations. Execute it?") {
			lis.AsyncPrintln("[Plan REJECTED]")
			return
		}
	}

	missionID := a.Supervisor.Submit(goal, p)
	lis.AsyncPrintln(fmt.Sprintf("[Plan ACCEPTED] Mission %s started", missionID))
}

// consumeResults prints mission completions without breaking the line
// currently being typed.
func (a *App) consumeResults(lis *listener.Listener) {
	for result := range a.Supervisor.Results {
		switch result.State {
		case supervisor.StatusSucceeded:
			lis.AsyncPrintln(fmt.Sprintf("[Mission %s SUCCEEDED after %d attempt(s)]", result.MissionID, result.Attempts))
			if result.FinalAnswer != nil {
				lis.AsyncPrintln("Answer:\n" + fmt.Sprintf("%v", result.FinalAnswer))
			}
		case supervisor.StatusCancelled:
			lis.AsyncPrintln(fmt.Sprintf("[Mission %s CANCELLED]", result.MissionID))
		default:
			lis.AsyncPrintln(fmt.Sprintf("[Mission %s FAILED after %d attempt(s)] %s", result.MissionID, result.Attempts, result.Error))
		}

		for _, finding := range result.KeyFindings {
			lis.AsyncPrintln("  finding: " + finding)
		}
		if result.Metrics != nil {
			lis.AsyncPrintln(display.FormatRunMetrics(result.Metrics))
		}
	}
}
