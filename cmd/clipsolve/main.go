package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/agenthands/clipsolve/internal/clipboard"
	"github.com/agenthands/clipsolve/internal/config"
	"github.com/agenthands/clipsolve/internal/evidence"
	"github.com/agenthands/clipsolve/internal/llm"
	"github.com/agenthands/clipsolve/internal/reference"
	"github.com/agenthands/clipsolve/internal/server"
	"github.com/agenthands/clipsolve/internal/solver"
	"github.com/agenthands/clipsolve/internal/telemetry"
)

func dataDir() string {
	if d := os.Getenv("CLIPSOLVE_DIR"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".clipsolve")
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	dir := dataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir %s: %v", dir, err)
	}

	store, err := config.NewStore(filepath.Join(dir, "config.toml"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := store.Get()

	logger, err := telemetry.NewFileLogger(dir, cfg.TelemetryFile, cfg.Debug)
	if err != nil {
		log.Printf("Warning: telemetry disabled: %v", err)
		logger = telemetry.Nop()
	}
	status := telemetry.NewStatus(logger)

	client, err := llm.NewClient(context.Background(), cfg.LLM, config.ResolveAPIKey(&cfg))
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	invoker := llm.NewInvoker(client, logger)

	engine, err := evidence.NewEngine(invoker, logger,
		config.GraphExtractionModel,
		time.Duration(cfg.LLM.ExtractTimeout)*time.Second,
		cfg.Evidence.SnapThreshold,
		cfg.Evidence.DarkSnapThreshold)
	if err != nil {
		log.Fatalf("Failed to initialize evidence engine: %v", err)
	}

	refs, err := reference.NewStore(filepath.Join(dir, "reference"))
	if err != nil {
		log.Fatalf("Failed to open reference store: %v", err)
	}

	clip := clipboard.System{}
	writer := &clipboard.Writer{
		CB:       clip,
		Attempts: cfg.Clipboard.WriteAttempts,
		Delay:    time.Duration(cfg.Clipboard.WriteDelayMS) * time.Millisecond,
	}
	committer := &clipboard.Committer{
		Writer: writer,
		Settle: time.Duration(cfg.Clipboard.SettleMillis) * time.Millisecond,
		Log:    logger,
	}

	active := solver.NewActiveSolve(logger)
	coordinator := &solver.Coordinator{
		Cfg:       store,
		Clip:      clip,
		Committer: committer,
		Refs:      refs,
		Inv:       invoker,
		Status:    status,
		Log:       logger,
		Active:    active,
	}
	models := &solver.Models{
		Cfg:    store,
		Inv:    invoker,
		Writer: writer,
		Status: status,
		Log:    logger,
		Active: active,
	}
	primer := &reference.Primer{
		Clip:   clip,
		Store:  refs,
		Inv:    invoker,
		Engine: engine,
		Cfg:    store,
		Status: status,
		Log:    logger,
	}

	go models.StartupProbes(context.Background())

	srv := &server.Server{
		Cfg:    store,
		Solver: coordinator,
		Models: models,
		Primer: primer,
		Refs:   refs,
		Status: status,
	}
	r := srv.SetupRouter()

	log.Printf("Starting control server on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}
