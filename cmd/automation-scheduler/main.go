package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/practiq/automation/pkg/actions/logexec"
	"github.com/practiq/automation/pkg/channels/gochannel"
	"github.com/practiq/automation/pkg/eventbus"
	"github.com/practiq/automation/pkg/eventtrigger"
	"github.com/practiq/automation/pkg/log"
	"github.com/practiq/automation/pkg/otelhelper"
	"github.com/practiq/automation/pkg/persistence/postgresql"
	"github.com/practiq/automation/pkg/scheduler"
)

func main() {
	cmd := &cli.Command{
		Name:                  "automation-scheduler",
		Usage:                 "Start the workflow automation scheduler and event engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often due triggers are polled",
				Value:   time.Minute,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = fmt.Sprintf("scheduler-%s", uuid.New().String()[:8])
	}

	logger := log.WithModule("automation-scheduler").With("worker_id", workerID)

	logger.Info("Initializing automation scheduler", "worker_id", workerID)

	persistence, err := postgresql.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	defer func() {
		if err := persistence.Close(context.Background()); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	executor := logexec.NewExecutor(logger)

	pub, sub := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
	bus := eventbus.NewWatermillEventBus(pub, sub, logger)
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	engine := eventtrigger.NewEngine(persistence, executor, persistence, logger)
	if err := engine.Bind(bus); err != nil {
		return fmt.Errorf("failed to bind event handlers: %w", err)
	}

	if err := bus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	opts := []scheduler.Option{
		scheduler.WithPollInterval(command.Duration("poll-interval")),
	}

	if tracer, err := otelhelper.NewTracer(ctx, "automation-scheduler"); err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		opts = append(opts, scheduler.WithTracer(tracer))
	}

	triggerScheduler := scheduler.NewTriggerScheduler(workerID, persistence, executor, logger, opts...)

	if err := triggerScheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	return triggerScheduler.Stop(context.Background())
}
