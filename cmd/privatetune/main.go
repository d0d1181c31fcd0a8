// Package main is the privatetune CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/privatetune/internal/adapters/driven/backend/rest"
	"github.com/custodia-labs/privatetune/internal/adapters/driven/clock"
	"github.com/custodia-labs/privatetune/internal/adapters/driven/config/file"
	"github.com/custodia-labs/privatetune/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/privatetune/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/privatetune/internal/adapters/driving/cli"
	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
	"github.com/custodia-labs/privatetune/internal/core/services"
	"github.com/custodia-labs/privatetune/internal/logger"
)

var version = "dev"

// memoryBackendURL selects the in-process backend instead of the REST client.
const memoryBackendURL = "memory://"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := services.NewEventBus()

	configStore, err := file.NewConfigStore(os.Getenv("PRIVATETUNE_HOME"))
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, bus)
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}

	backend, err := newBackend(settings.Backend)
	if err != nil {
		// Keep the settings commands usable so the URL can be fixed.
		fmt.Fprintf(os.Stderr, "warning: %v; using %s until 'privatetune settings backend' fixes it\n", err, rest.DefaultBaseURL)
		fallback := settings.Backend
		fallback.URL = rest.DefaultBaseURL
		if backend, err = newBackend(fallback); err != nil {
			return err
		}
	}

	store, err := sqlite.NewStore(filepath.Join(configStore.Dir(), "data"))
	if err != nil {
		return fmt.Errorf("opening local state: %w", err)
	}
	defer store.Close()

	templateStore, err := file.NewTemplateStore(filepath.Join(configStore.Dir(), "templates"))
	if err != nil {
		return fmt.Errorf("opening template library: %w", err)
	}

	sys := clock.New()
	fragments := services.NewFragmentEngine(backend, bus)
	dataset := services.NewAnnotationDataset(backend, bus)
	generation := services.NewGenerationController(backend, fragments, dataset, settingsService, sys, bus)
	items := services.NewTrainingItemRegistry(backend, fragments, dataset, generation, bus)
	generation.UseActiveItems(items)
	monitor := services.NewJobMonitor(backend, dataset, sys, bus)
	finetuning := services.NewFineTuningSubmitter(backend, dataset, monitor, settings.FineTuning, bus)

	session := services.NewSessionKeeper(store.SessionStore(), fragments, items, generation, sys, bus)
	session.KeepHistory(store.OutcomeStore())
	defer session.Close()

	templates := services.NewTemplateLibrary(templateStore, generation)

	// Edits made to config.toml by hand reach a running TUI.
	go func() {
		if err := configStore.Watch(ctx, func() { bus.Emit(domain.EventSettingsChanged) }); err != nil {
			logger.Warn("config watcher stopped: %v", err)
		}
	}()

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Fragments:  fragments,
		Items:      items,
		Generation: generation,
		Dataset:    dataset,
		FineTuning: finetuning,
		Monitor:    monitor,
		Settings:   settingsService,
		Session:    session,
		Templates:  templates,
		Events:     bus,
	})

	return cli.Execute(ctx)
}

// newBackend returns the REST client for the configured backend, or the
// in-memory backend for memory://.
func newBackend(s domain.BackendSettings) (driven.Backend, error) {
	if s.URL == memoryBackendURL {
		logger.Debug("using in-memory backend")
		return memory.NewBackend(), nil
	}
	client, err := rest.NewClient(rest.ConfigFromSettings(s))
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	return client, nil
}
