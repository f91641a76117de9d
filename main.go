package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "taskpilot/app/configs"
	"taskpilot/app/core/agent"
	"taskpilot/app/core/guardrails"
	"taskpilot/app/core/interaction/cli"
	"taskpilot/app/core/interaction/gateway"
	"taskpilot/app/core/interaction/http"
	"taskpilot/app/core/llm"
	"taskpilot/app/core/orchestrator/db"
	"taskpilot/app/core/orchestrator/task"
	"taskpilot/app/core/service"
	"taskpilot/app/pkg/logger"
)

func main() {
	if err := logger.Init("output/logs"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("TaskPilot Starting...")

	cfgManager, err := config.NewManager(config.DefaultPath())
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	database, err := db.NewSQLiteDB("output/db")
	if err != nil {
		logger.Error("Failed to initialize DB: %v", err)
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("Database initialized successfully")

	taskStore := task.NewStore(database)

	client, err := llm.NewClient(os.Getenv("OPENAI_API_KEY"), cfg.Chat.MaxToolRounds)
	if err != nil {
		logger.Error("Failed to initialize LLM client: %v", err)
		os.Exit(1)
	}

	newManager := func() (*agent.TaskManager, error) {
		return agent.NewTaskManager(client, cfg.Models.TaskManager, cfg.Memory.TaskManagerTurns, taskStore)
	}
	newOrchestrator := func() (*agent.Orchestrator, error) {
		intent, err := agent.NewIntentEmotionAgent(client, cfg.Models.Specialist, cfg.Memory.IntentTurns)
		if err != nil {
			return nil, err
		}
		question, err := agent.NewQuestionAgent(client, cfg.Models.Specialist, cfg.Memory.QuestionTurns)
		if err != nil {
			return nil, err
		}
		status, err := agent.NewStatusAgent(client, cfg.Models.Specialist, cfg.Memory.StatusTurns)
		if err != nil {
			return nil, err
		}
		return agent.NewOrchestrator(agent.OrchestratorOptions{
			Completer:   client,
			Model:       cfg.Models.Orchestrator,
			MemoryTurns: cfg.Memory.OrchestratorTurns,
			Store:       taskStore,
			Intent:      intent,
			Question:    question,
			Status:      status,
			NewManager:  newManager,
		})
	}

	sessions, err := agent.NewSessions(newOrchestrator)
	if err != nil {
		logger.Error("Failed to initialize sessions: %v", err)
		os.Exit(1)
	}

	filter := guardrails.NewFilter(cfg.Chat.ForbiddenKeywords)
	assistant := service.NewAssistant(sessions, filter, time.Duration(cfg.Chat.RequestTimeoutSec)*time.Second)

	gw := gateway.NewGateway(assistant)
	if tracer, err := gateway.NewTraceRecorder("output/traces"); err != nil {
		logger.Warn("Trace recorder disabled: %v", err)
	} else {
		gw.SetTraceRecorder(tracer)
	}

	cliChannel := cli.NewCLIChannel(cfg.Chat.CLIUserID, agent.DefaultSession)
	gw.RegisterChannel(cliChannel)

	httpChannel := http.NewHTTPChannel(cfg.HTTP.Port, taskStore)
	httpChannel.SetResponseTimeout(time.Duration(cfg.Chat.RequestTimeoutSec) * time.Second)
	gw.RegisterChannel(httpChannel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := gw.Start(ctx); err != nil {
			logger.Error("Gateway crashed: %v", err)
			os.Exit(1)
		}
	}()

	logger.Info("%s is ready to serve.", cfg.Agent.Name)
	fmt.Println("- CLI Interface: Interactive")
	fmt.Printf("- Chat API:      http://localhost:%d/chat (POST)\n", cfg.HTTP.Port)
	fmt.Printf("- Tasks API:     http://localhost:%d/tasks\n", cfg.HTTP.Port)
	fmt.Printf("- Web Console:   http://localhost:%d/\n", cfg.HTTP.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal: %v. TaskPilot shutting down...", sig)
	cancel()
}
