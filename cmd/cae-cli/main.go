package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/cae-assist/cae-cli/internal/cad"
	"github.com/cae-assist/cae-cli/internal/optimize"
	"github.com/cae-assist/cae-cli/internal/report"
	"github.com/cae-assist/cae-cli/internal/score"
	"github.com/cae-assist/cae-cli/internal/store"
	"github.com/cae-assist/cae-cli/internal/sweepd"
	"github.com/cae-assist/cae-cli/pkg/config"
	"github.com/cae-assist/cae-cli/pkg/logger"
	"github.com/cae-assist/cae-cli/pkg/utils"
)

const version = "0.3.0"

func usage() {
	fmt.Fprintf(os.Stderr, `cae-cli %s - parametric CAD optimization assistant

Usage:
  cae-cli optimize [flags]   run a parameter sweep against a CAD model
  cae-cli params   [flags]   list the parameters of the open document
  cae-cli serve    [flags]   run the HTTP sweep service
  cae-cli history  [flags]   list past sweeps from the history database
  cae-cli version            print the version

Run 'cae-cli <command> -h' for command flags.
`, version)
}

func main() {
	// Local .env overrides are optional.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "optimize":
		err = runOptimize(os.Args[2:])
	case "params":
		err = runParams(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "history":
		err = runHistory(os.Args[2:])
	case "version":
		fmt.Printf("cae-cli %s\n", version)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	if cfg.LogFormat == "text" {
		logger.SetDefault(logger.NewText(cfg.LogLevel, os.Stderr))
	} else {
		logger.SetDefault(logger.New(cfg.LogLevel, os.Stderr))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

// openSession connects to the requested CAD backend and opens the model.
// The returned closer shuts the session down.
func openSession(ctx context.Context, backend, bridgeAddr, modelFile string, cfg *config.Config) (cad.Connector, func(), error) {
	var conn cad.Connector
	switch backend {
	case "mock":
		conn = cad.NewMock()
	case "bridge":
		addr := bridgeAddr
		if addr == "" {
			addr = cfg.Bridge.Addr
		}
		conn = cad.NewBridge(cad.BridgeConfig{
			Addr:           addr,
			Timeout:        cfg.Bridge.GetTimeout(),
			ConnectRetries: cfg.Bridge.ConnectRetries,
		})
	default:
		return nil, nil, fmt.Errorf("unknown CAD backend %q (must be bridge or mock)", backend)
	}

	if err := conn.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to CAD backend: %w", err)
	}
	if err := conn.Open(ctx, modelFile); err != nil {
		_ = conn.Close(context.Background())
		return nil, nil, fmt.Errorf("open model: %w", err)
	}
	return conn, func() { _ = conn.Close(context.Background()) }, nil
}

func runOptimize(args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	sweepFile := fs.String("sweep", "", "load the sweep definition from a YAML file")
	modelFile := fs.String("file", "", "CAD model file to open")
	parameter := fs.String("parameter", "", "name of the parameter to sweep")
	minVal := fs.Float64("min", 0, "lower bound of the sweep range")
	maxVal := fs.Float64("max", 0, "upper bound of the sweep range")
	steps := fs.Int("steps", 5, "number of trials")
	stepMode := fs.String("step-mode", "", "step spacing: linear or geometric")
	backend := fs.String("cad", "mock", "CAD backend: bridge or mock")
	bridgeAddr := fs.String("bridge-addr", "", "bridge server address (overrides config)")
	outputDir := fs.String("output-dir", "", "artifact directory (default <output.dir>/<run-id>)")
	jsonPath := fs.String("json", "", "also write the JSON summary to this path")
	plotPath := fs.String("plot", "", "write a PNG score plot to this path")
	reportPath := fs.String("report", "", "write a Markdown report to this path")
	htmlPath := fs.String("html", "", "write an HTML chart to this path")
	dbPath := fs.String("db", "", "record the sweep in this SQLite database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	spec := optimize.ParameterSpec{
		Name:  *parameter,
		Min:   *minVal,
		Max:   *maxVal,
		Steps: *steps,
	}
	model := *modelFile
	if *sweepFile != "" {
		sweep, err := config.LoadSweep(*sweepFile)
		if err != nil {
			return err
		}
		spec.Name = sweep.Parameter
		spec.Min = sweep.Min
		spec.Max = sweep.Max
		spec.Steps = sweep.Steps
		*stepMode = sweep.StepMode
		if model == "" {
			model = sweep.ModelFile
		}
	}
	spec.Mode, err = optimize.ParseStepMode(*stepMode)
	if err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if model == "" && *backend == "bridge" {
		return fmt.Errorf("-file is required with the bridge backend")
	}

	runID := utils.GenerateRunID()
	dir := *outputDir
	if dir == "" {
		base := cfg.Output.Dir
		if base == "" {
			base = "optimization_results"
		}
		dir = filepath.Join(base, runID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, closeSession, err := openSession(ctx, *backend, *bridgeAddr, model, cfg)
	if err != nil {
		return err
	}
	defer closeSession()

	engine := optimize.NewEngine(session, score.GeometryScorer{})
	if *backend == "mock" {
		engine.Ext = ".stl"
	} else if cfg.Output.ExportFormat == "stl" {
		engine.Ext = ".stl"
	}

	result, err := engine.Run(ctx, spec, dir)
	if err != nil {
		return err
	}

	fmt.Println(report.Markdown(result))

	if *jsonPath != "" {
		if err := optimize.WriteSummary(result, *jsonPath); err != nil {
			return fmt.Errorf("write JSON summary: %w", err)
		}
	}
	if *reportPath != "" {
		if err := report.SaveMarkdown(result, *reportPath); err != nil {
			return fmt.Errorf("write Markdown report: %w", err)
		}
	}
	if *plotPath != "" {
		if err := report.SavePlot(result, *plotPath); err != nil {
			return fmt.Errorf("write plot: %w", err)
		}
	}
	if *htmlPath != "" {
		if err := report.SaveHTML(result, *htmlPath); err != nil {
			return fmt.Errorf("write HTML chart: %w", err)
		}
	}
	if *dbPath != "" {
		db, err := store.Open(*dbPath)
		if err != nil {
			return fmt.Errorf("open history database: %w", err)
		}
		defer db.Close()
		if err := db.SaveResult(ctx, runID, result); err != nil {
			return fmt.Errorf("record sweep: %w", err)
		}
		logger.Info("sweep recorded", "sweep_id", runID, "db", *dbPath)
	}

	return nil
}

func runParams(args []string) error {
	fs := flag.NewFlagSet("params", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	modelFile := fs.String("file", "", "CAD model file to open")
	backend := fs.String("cad", "mock", "CAD backend: bridge or mock")
	bridgeAddr := fs.String("bridge-addr", "", "bridge server address (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, closeSession, err := openSession(ctx, *backend, *bridgeAddr, *modelFile, cfg)
	if err != nil {
		return err
	}
	defer closeSession()

	params, err := session.Parameters(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVALUE\tUNIT\tOBJECT")
	for _, p := range params {
		fmt.Fprintf(w, "%s\t%g\t%s\t%s\n", p.Name, p.Value, p.Unit, p.Object)
	}
	return w.Flush()
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	httpAddr := fs.String("http-addr", ":8080", "HTTP listen address")
	bridgeAddr := fs.String("bridge-addr", "", "bridge server address (overrides config)")
	dataDir := fs.String("data-dir", "", "base directory for sweep artifacts (default <output.dir>)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	addr := *bridgeAddr
	if addr == "" {
		addr = cfg.Bridge.Addr
	}
	baseDir := *dataDir
	if baseDir == "" {
		baseDir = cfg.Output.Dir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepStore := sweepd.NewSweepStore()
	executor := sweepd.NewExecutor(sweepStore, addr, baseDir)

	httpSrv := &http.Server{
		Addr:              *httpAddr,
		Handler:           sweepd.NewHTTPServer(sweepStore, executor).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", *httpAddr, "bridge_addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	dbPath := fs.String("db", "", "SQLite database path (default from config)")
	limit := fs.Int("limit", 20, "maximum number of sweeps to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	path := *dbPath
	if path == "" {
		path = cfg.Database.Path
	}

	db, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeps, err := db.ListSweeps(ctx, *limit)
	if err != nil {
		return err
	}
	if len(sweeps) == 0 {
		fmt.Println("no sweeps recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPARAMETER\tRANGE\tSTEPS\tTRIALS\tBEST\tCREATED")
	for _, s := range sweeps {
		best := "-"
		if s.BestIndex > 0 {
			best = fmt.Sprintf("%.1f", s.BestScore)
		}
		fmt.Fprintf(w, "%s\t%s\t%g..%g\t%d\t%d\t%s\t%s\n",
			s.ID, s.Parameter, s.Min, s.Max, s.Steps, s.Trials, best,
			s.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
