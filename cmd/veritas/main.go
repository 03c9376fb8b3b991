package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/makr-code/VCC-Veritas-sub012/internal/agents"
	"github.com/makr-code/VCC-Veritas-sub012/internal/engine"
	"github.com/makr-code/VCC-Veritas-sub012/internal/executors"
	"github.com/makr-code/VCC-Veritas-sub012/internal/expressions"
	"github.com/makr-code/VCC-Veritas-sub012/internal/logging"
	"github.com/makr-code/VCC-Veritas-sub012/internal/schedule"
	"github.com/makr-code/VCC-Veritas-sub012/internal/store"
	"github.com/makr-code/VCC-Veritas-sub012/internal/stream"
	"github.com/makr-code/VCC-Veritas-sub012/internal/validation"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "veritas:", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		usage()
		return nil
	}

	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	switch os.Args[1] {
	case "run":
		return cmdRun(cfg, logger, os.Args[2:])
	case "validate":
		return cmdValidate(os.Args[2:])
	case "serve":
		return cmdServe(cfg, logger)
	case "version":
		printVersion()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: veritas <command> [flags]

commands:
  run <pipeline.json>       execute a pipeline document
  validate <pipeline.json>  validate a pipeline document without running it
  serve                     start the MCP server on stdio
  version                   print version`)
}

// deps bundles the wired components shared by the run and serve commands.
type deps struct {
	engines   *expressions.Set
	execs     *executors.Registry
	providers *agents.Registry
	recorder  store.RunRecorder
	documents *validation.DocumentValidator
	scheduler *engine.Scheduler
}

// buildDeps wires the shared components. hub may be nil; when set, every
// recorder write is also published to it as a live run event.
func buildDeps(ctx context.Context, cfg Config, logger *slog.Logger, hub *stream.MemoryHub) (*deps, error) {
	engines, err := expressions.DefaultSet()
	if err != nil {
		return nil, fmt.Errorf("build expression engines: %w", err)
	}

	providers := agents.NewRegistry()
	coordinator := engine.NewCoordinator(providers, cfg.MaxParallel, logger)

	execs := executors.NewRegistry()
	if err := execs.Register(executors.NewTransformExecutor(engines)); err != nil {
		return nil, err
	}
	if err := execs.Register(engine.NewFanOutExecutor(coordinator)); err != nil {
		return nil, err
	}

	var recorder store.RunRecorder = store.NopRecorder{}
	if cfg.HistoryEnabled {
		if mkErr := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create data dir: %w", mkErr)
		}
		rec, openErr := store.NewLibSQLRecorder(ctx, "file:"+cfg.DBPath)
		if openErr != nil {
			return nil, fmt.Errorf("open run history: %w", openErr)
		}
		recorder = rec
	}
	if hub != nil {
		recorder = stream.NewRecorder(recorder, hub)
	}

	documents, err := validation.NewDocumentValidator()
	if err != nil {
		return nil, err
	}

	return &deps{
		engines:   engines,
		execs:     execs,
		providers: providers,
		recorder:  recorder,
		documents: documents,
		scheduler: engine.NewScheduler(execs, engines, recorder, logger),
	}, nil
}

func cmdRun(cfg Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	inputJSON := fs.String("input", "", "initial input as inline JSON object")
	events := fs.Bool("events", false, "print run events to stderr as JSON lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run: expected exactly one pipeline document path")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var hub *stream.MemoryHub
	if *events {
		hub = stream.NewMemoryHub()
	}

	d, err := buildDeps(ctx, cfg, logger, hub)
	if err != nil {
		return err
	}
	defer d.recorder.Close()

	if hub != nil {
		ch, cancel, subErr := hub.Subscribe(ctx, stream.Filter{})
		if subErr != nil {
			return subErr
		}
		defer cancel()
		go func() {
			enc := json.NewEncoder(os.Stderr)
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-ch:
					_ = enc.Encode(ev)
				}
			}
		}()
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	pipeline, err := d.documents.ParseDocument(data, d.execs, d.engines)
	if err != nil {
		return err
	}

	var input map[string]any
	if *inputJSON != "" {
		if err := json.Unmarshal([]byte(*inputJSON), &input); err != nil {
			return fmt.Errorf("parse -input: %w", err)
		}
	}

	result, runErr := d.scheduler.Execute(ctx, pipeline, input)
	if result != nil {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
	}
	return runErr
}

func cmdValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("validate: expected exactly one pipeline document path")
	}

	engines, err := expressions.DefaultSet()
	if err != nil {
		return err
	}
	documents, err := validation.NewDocumentValidator()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	// Validation without a wired registry accepts any executor reference.
	execs := executors.NewRegistry()
	if _, err := documents.ParseDocument(data, permissiveLookup{execs}, engines); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

// permissiveLookup treats every executor reference as registered so documents
// can be checked offline, before the runtime registry exists.
type permissiveLookup struct {
	inner *executors.Registry
}

func (p permissiveLookup) Has(name string) bool                    { return true }
func (p permissiveLookup) SupportsMethod(name, method string) bool { return true }
func (p permissiveLookup) FanOut(name string) bool {
	return p.inner.FanOut(name) || name == engine.FanOutName
}

func cmdServe(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer d.recorder.Close()

	if cfg.JobsPath != "" {
		sched := schedule.NewScheduler(d.scheduler, logger)
		if err := loadJobs(cfg.JobsPath, d, sched); err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := mcp.NewVeritasServer(mcp.VeritasServerDeps{
		Scheduler: d.scheduler,
		Documents: d.documents,
		Executors: d.execs,
		Providers: d.providers,
		Engines:   d.engines,
		Recorder:  d.recorder,
		Logger:    logger,
	})

	logger.Info("mcp server listening on stdio")
	return srv.Serve(ctx)
}

// jobSpec is one entry of the jobs file: a cron expression plus the path of
// the pipeline document it runs.
type jobSpec struct {
	ID       string         `json:"id"`
	Cron     string         `json:"cron"`
	Pipeline string         `json:"pipeline"`
	Input    map[string]any `json:"input,omitempty"`
	Disabled bool           `json:"disabled,omitempty"`
}

func loadJobs(path string, d *deps, sched *schedule.Scheduler) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read jobs file: %w", err)
	}
	var specs []jobSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return fmt.Errorf("parse jobs file: %w", err)
	}

	for _, spec := range specs {
		doc, err := os.ReadFile(spec.Pipeline)
		if err != nil {
			return fmt.Errorf("job %q: read pipeline: %w", spec.ID, err)
		}
		pipeline, err := d.documents.ParseDocument(doc, d.execs, d.engines)
		if err != nil {
			return fmt.Errorf("job %q: %w", spec.ID, err)
		}
		if err := sched.Add(&schedule.Job{
			ID:             spec.ID,
			CronExpression: spec.Cron,
			Config:         pipeline,
			Input:          spec.Input,
			Enabled:        !spec.Disabled,
		}); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
