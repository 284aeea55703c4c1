package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"stagehand/internal/cli"
	"stagehand/internal/config"
	"stagehand/internal/dispatch"
	"stagehand/internal/engine"
	"stagehand/internal/llm"
	"stagehand/internal/local"
	"stagehand/internal/logger"
	"stagehand/internal/plan"
	"stagehand/internal/planner"
	"stagehand/internal/supervisor"
	"stagehand/internal/worker"
	"stagehand/internal/workspace"
)

func main() {
	configPath := flag.String("config", "stagehand.yaml", "path to the configuration file")
	flag.Parse()

	// A missing .env is fine; API keys may come from the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Fatal Error: Could not load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.LogFile)
	if err != nil {
		log.Fatalf("Fatal Error: Could not initialize logger: %v", err)
	}

	client, err := llm.New(llm.Config{
		Backend:    cfg.LLM.Backend,
		Model:      cfg.LLM.Model,
		OllamaHost: cfg.LLM.OllamaHost,
	})
	if err != nil {
		log.Fatalf("Fatal Error: Could not initialize LLM client: %v", err)
	}

	// The role catalog: built-in roles plus any extras from a catalog file.
	roles := []plan.RoleDefinition{worker.WebRoleDefinition()}
	if cfg.CatalogFile != "" {
		extra, err := plan.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			log.Fatalf("Fatal Error: Could not load role catalog: %v", err)
		}
		roles = append(roles, extra.Roles...)
	}
	catalog := plan.NewCatalog(roles)

	workspaces, err := workspace.NewManager(cfg.WorkspaceRoot)
	if err != nil {
		log.Fatalf("Fatal Error: Could not prepare workspace root: %v", err)
	}

	queue := dispatch.NewQueue(cfg.Execution.QueueCapacity)
	results := dispatch.NewResultRouter(appLogger)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	worker.NewWebWorker(queue, results, httpClient, appLogger).Start(context.Background())

	localRunner := local.NewRunner(client, workspaces, httpClient, local.Options{
		PerLinkTimeout:   cfg.PerLinkTimeout(),
		MaxLinkContent:   cfg.Explore.MaxLinkContent,
		FetchConcurrency: cfg.Explore.FetchConcurrency,
	})

	summarizer := engine.NewSummarizer(client, cfg.Execution.SummarizeThreshold, cfg.LLM.Model)
	stages := engine.NewStageExecutor(queue, results, localRunner, summarizer, engine.Config{
		DispatchTimeout:   cfg.DispatchTimeout(),
		StageConcurrency:  cfg.Execution.StageConcurrency,
		PermitNullResults: cfg.Execution.PermitNullResults,
	}, appLogger)
	eng := engine.New(stages, appLogger)

	pl := planner.NewLLMPlanner(client, catalog, cfg.LLM.Model)
	sup := supervisor.New(eng, pl, cfg.Execution.MaxAttempts, appLogger)

	app := &cli.App{
		Supervisor: sup,
		Planner:    pl,
		Catalog:    catalog,
		Logger:     appLogger,
	}
	if err := app.Execute(); err != nil {
		log.Fatalf("Fatal Error: %v", err)
	}
}
