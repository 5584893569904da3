// Command orchestrator exposes the single manual-trigger HTTP endpoint
// that drives catalogsync's tick loop: one POST runs one orchestrator Tick,
// which advances the running (or newly admitted) pipeline run through as
// many steps as complete within its budget, not just one.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nova-retail/catalogsync/config"
	"github.com/nova-retail/catalogsync/core"
	"github.com/nova-retail/catalogsync/pkg/bootstrap"
	"github.com/nova-retail/catalogsync/pkg/orchestrator"
	"github.com/nova-retail/catalogsync/pkg/store"
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

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/tick", tickHandler(orch, logger))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("orchestrator_listening", map[string]interface{}{"port": cfg.Port})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("serve: %v", err)
	}
}

type tickRequestBody struct {
	ResumeRunID string `json:"resume_run_id"`
	Trigger     string `json:"trigger"`
	Diagnostics bool   `json:"diagnostics"`
}

func tickHandler(orch *orchestrator.Orchestrator, logger core.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body tickRequestBody
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
		}
		trigger := store.TriggerManual
		if body.Trigger == "cron" {
			trigger = store.TriggerCron
		}
		result, err := orch.Tick(r.Context(), orchestrator.TickRequest{
			ResumeRunID: body.ResumeRunID,
			Trigger:     trigger,
			Diagnostics: body.Diagnostics,
		})
		if err != nil {
			logger.Error("tick_request_failed", map[string]interface{}{"error": err.Error()})
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}
