// Command scheduler runs the resume/tick loop standalone: it polls for a
// running pipeline run and ticks the orchestrator on its behalf, and
// admits a fresh run once a day so the pipeline keeps moving without a
// manual trigger.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/nova-retail/catalogsync/config"
	"github.com/nova-retail/catalogsync/pkg/bootstrap"
	"github.com/nova-retail/catalogsync/pkg/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := cfg.Logger()

	runs, err := bootstrap.BuildRunStore(cfg)
	if err != nil {
		log.Fatalf("build run store: %v", err)
	}
	lockStore, err := bootstrap.BuildLockStore(cfg)
	if err != nil {
		log.Fatalf("build lock store: %v", err)
	}
	objStore, err := bootstrap.BuildObjectStore(cfg)
	if err != nil {
		log.Fatalf("build object store: %v", err)
	}

	env := bootstrap.BuildEnvironment(cfg, objStore)
	handlers := bootstrap.BuildHandlers(cfg, env, objStore, logger)
	orch := bootstrap.NewOrchestrator(cfg, runs, lockStore, handlers, logger)

	sched := scheduler.New(orch, runs, logger)
	sched.CronSpec = &scheduler.DailyAt{Hour: 3, Minute: 0}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("scheduler_started", map[string]interface{}{"interval_seconds": sched.Interval.Seconds()})
	sched.Run(ctx)
}
