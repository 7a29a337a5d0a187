// Package main is the entry point for qboost, a boosted variational
// ground state search. The pipeline alternates variational training of a
// layered circuit with double-bracket diagonalization flows on the
// Hamiltonian, and records every round's histories as run artifacts.
//
// Three commands share one configuration surface (environment, optional
// YAML experiment file, command-line flags, in rising precedence):
//   - run: execute a boosting run in the foreground and record it
//   - serve: run the HTTP API with live progress streaming and
//     scheduled maintenance
//   - runs: list recorded runs from the index
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qboost/internal/config"
	"github.com/aristath/qboost/internal/database"
	"github.com/aristath/qboost/internal/events"
	"github.com/aristath/qboost/internal/modules/results"
	"github.com/aristath/qboost/internal/reliability"
	"github.com/aristath/qboost/internal/scheduler"
	"github.com/aristath/qboost/internal/server"
	"github.com/aristath/qboost/internal/services"
	"github.com/aristath/qboost/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCommand(os.Args[2:])
	case "serve":
		serveCommand(os.Args[2:])
	case "runs":
		runsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `qboost - boosted variational ground state search

Usage:
  qboost run [flags]    Execute a boosting run and record its artifacts
  qboost serve [flags]  Serve the HTTP API with live progress streaming
  qboost runs [flags]   List recorded runs from the index

Run 'qboost <command> -h' for the flags of a command.
`)
}

// runCommand executes one boosting run in the foreground. SIGINT and
// SIGTERM cancel the run; a cancelled run records nothing.
func runCommand(args []string) {
	cfg := mustLoadConfig()
	log := newLogger(cfg)

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	experiment := fs.String("experiment", "", "YAML experiment file overlaying the run parameters")
	flags := newRunFlags(fs, cfg.Run)
	_ = fs.Parse(args)

	// Precedence: flags beat the experiment file, the file beats the
	// environment defaults. The file is applied first, then only the
	// flags the caller actually set.
	runCfg := cfg.Run
	if *experiment != "" {
		if err := runCfg.ApplyExperiment(*experiment); err != nil {
			log.Fatal().Err(err).Str("file", *experiment).Msg("Failed to apply experiment file")
		}
		log.Info().Str("file", *experiment).Msg("Applied experiment file")
	}
	flags.overlay(fs, &runCfg)

	db := mustOpenIndex(cfg, log)
	defer db.Close()

	store, err := results.NewStore(db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize run index")
	}

	bus := events.NewBus(log)
	manager := events.NewManager(bus, log)
	recorder := results.NewRecorder(log)
	runService := services.NewRunService(cfg.DataDir, store, recorder, manager, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meta, err := runService.Execute(ctx, runCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Run failed")
	}

	log.Info().
		Str("run_id", meta.RunID).
		Float64("best_loss", meta.BestLoss).
		Float64("ground_energy", meta.TrueGroundEnergy).
		Float64("final_energy", meta.Energy).
		Bool("success", meta.Success).
		Float64("duration_s", meta.DurationSeconds).
		Msg("Run completed")
	fmt.Printf("Run %s recorded in %s\n", meta.RunID, filepath.Join(runCfg.OutputDir(cfg.DataDir), meta.RunID))
}

// serveCommand starts the HTTP API. The startup sequence:
//  1. Load configuration and initialize logging
//  2. Open the run index database
//  3. Wire the event bus, run service and (when configured) the
//     archive service with its auto-archive subscriber
//  4. Register scheduled maintenance jobs
//  5. Start the server and block until SIGINT/SIGTERM
//  6. Cancel any active run and shut down gracefully
func serveCommand(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 0, "listen port (default: QBOOST_PORT or 8001)")
	_ = fs.Parse(args)

	cfg := mustLoadConfig()
	if *port != 0 {
		cfg.Port = *port
	}

	log := newLogger(cfg)
	log.Info().Msg("Starting qboost")

	db := mustOpenIndex(cfg, log)
	defer db.Close()

	store, err := results.NewStore(db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize run index")
	}

	bus := events.NewBus(log)
	manager := events.NewManager(bus, log)
	recorder := results.NewRecorder(log)
	runService := services.NewRunService(cfg.DataDir, store, recorder, manager, log)

	// Archiving is optional. Without an object store the archive
	// endpoints respond 503 and no rotation job is scheduled.
	var archiveService *reliability.ArchiveService
	if cfg.Archive.Enabled {
		objectStore, err := reliability.NewObjectStore(
			cfg.Archive.Endpoint,
			cfg.Archive.Region,
			cfg.Archive.Bucket,
			cfg.Archive.AccessKey,
			cfg.Archive.SecretKey,
			log,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize object store, archiving disabled")
		} else {
			archiveService = reliability.NewArchiveService(objectStore, manager, cfg.DataDir, cfg.Archive.MinKeep, log)
			subscribeAutoArchive(bus, archiveService, log)
			log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Archive service initialized")
		}
	}

	sched := scheduler.New(log)
	if err := registerJobs(sched, db, store, archiveService, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:            log,
		Config:         cfg,
		RunsDB:         db,
		Store:          store,
		RunService:     runService,
		ArchiveService: archiveService,
		EventBus:       bus,
		EventManager:   manager,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop the active run, if any, so its executor goroutine winds down
	if runService.Cancel() {
		log.Info().Msg("Cancelled active run")
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// runsCommand prints recent runs from the index.
func runsCommand(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum number of runs to list")
	_ = fs.Parse(args)

	cfg := mustLoadConfig()
	log := newLogger(cfg)

	db := mustOpenIndex(cfg, log)
	defer db.Close()

	store, err := results.NewStore(db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize run index")
	}

	rows, err := store.List(*limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}

	if len(rows) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tID\tHAMILTONIAN\tQUBITS\tLAYERS\tOPTIMIZER\tBEST LOSS\tSUCCESS")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%.6f\t%t\n",
			row.CreatedAt.Local().Format("2006-01-02 15:04"),
			row.ID,
			row.Hamiltonian,
			row.NQubits,
			row.NLayers,
			row.Optimizer,
			row.BestLoss,
			row.Success,
		)
	}
	_ = w.Flush()
}

// registerJobs wires the recurring maintenance work. Schedules use the
// six-field cron syntax with a leading seconds column.
func registerJobs(
	sched *scheduler.Scheduler,
	db *database.DB,
	store *results.Store,
	archiveService *reliability.ArchiveService,
	cfg *config.Config,
	log zerolog.Logger,
) error {
	maintenance := reliability.NewMaintenanceJob(db, store, cfg.DataDir, log)

	// Daily at 03:00: integrity check, WAL checkpoint, disk space check
	if err := sched.AddJob("0 0 3 * * *", maintenance); err != nil {
		return err
	}

	// Monthly on the 1st at 05:00: compact the run index
	if err := sched.AddJob("0 0 5 1 * *", reliability.NewVacuumJob(maintenance)); err != nil {
		return err
	}

	// Daily at 04:00: archive retention rotation
	if archiveService != nil {
		rotation := reliability.NewArchiveRotationJob(archiveService, cfg.Archive.RetentionDays, log)
		if err := sched.AddJob("0 0 4 * * *", rotation); err != nil {
			return err
		}
	}

	return nil
}

// subscribeAutoArchive uploads every successful run's artifact directory
// as soon as its result lands in the index. Upload failures are logged
// and not retried; the artifacts stay safe on local disk either way.
func subscribeAutoArchive(bus *events.Bus, service *reliability.ArchiveService, log zerolog.Logger) {
	bus.Subscribe(events.ResultSaved, func(event *events.Event) {
		saved, ok := event.GetTypedData().(*events.ResultSavedData)
		if !ok || !saved.Success {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if _, err := service.ArchiveRun(ctx, saved.RunID, saved.Path); err != nil {
			log.Error().Err(err).Str("run_id", saved.RunID).Msg("Automatic archive failed")
		}
	})
}

// mustLoadConfig loads configuration, reporting failures through a
// fallback logger because the configured log level is not known yet.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}
	return cfg
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
}

// mustOpenIndex opens the run index database under the data directory.
func mustOpenIndex(cfg *config.Config, log zerolog.Logger) *database.DB {
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "runs.db"),
		Profile: database.ProfileDurable,
		Name:    "runs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open run index")
	}
	return db
}
