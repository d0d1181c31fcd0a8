package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/privatetune/internal/adapters/driven/clock"
	"github.com/custodia-labs/privatetune/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
	"github.com/custodia-labs/privatetune/internal/core/services"
)

// fixture is a workspace on the in-memory backend: three fragments, one
// training item with two saved annotations, and one fine-tuning job.
type fixture struct {
	backend *memory.Backend
	ports   *Ports
	itemID  int64
	jobID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	backend := memory.NewBackend()
	backend.AddFragments(
		domain.Fragment{DocumentID: 1, ChunkIndex: 0, DocumentName: "go.md", Content: "Goroutines are cheap", Weight: 4, Keywords: []string{"concurrency"}},
		domain.Fragment{DocumentID: 1, ChunkIndex: 1, DocumentName: "go.md", Content: "Channels carry values", Weight: 2, Keywords: []string{"concurrency"}},
		domain.Fragment{DocumentID: 2, ChunkIndex: 0, DocumentName: "sql.md", Content: "Indexes speed up reads", Weight: 5},
	)

	item, err := backend.SaveTrainingItem(ctx, "concurrency", []domain.FragmentKey{"1:0", "1:1", "9:9"}, domain.DefaultPromptTemplate)
	require.NoError(t, err)
	_, err = backend.SaveTrainingSet(ctx, []domain.Annotation{
		{Instruction: "What is a goroutine?", Response: "A lightweight thread.", Score: 5},
		{Instruction: "What does a channel do?", Response: "It carries values.", Score: 2},
	}, &item.ID)
	require.NoError(t, err)

	saved, err := backend.LoadTrainingSet(ctx, &item.ID)
	require.NoError(t, err)
	job, err := backend.SubmitFineTuningJob(ctx, saved[:1], "openai", "gpt-4o-mini", domain.FormatSFT)
	require.NoError(t, err)

	bus := services.NewEventBus()
	sys := clock.New()
	fragments := services.NewFragmentEngine(backend, bus)
	dataset := services.NewAnnotationDataset(backend, bus)
	generation := services.NewGenerationController(backend, fragments, dataset, services.NewSettingsService(nil, bus), sys, bus)
	items := services.NewTrainingItemRegistry(backend, fragments, dataset, generation, bus)
	monitor := services.NewJobMonitor(backend, dataset, sys, bus)
	t.Cleanup(generation.Stop)
	t.Cleanup(monitor.Stop)

	return &fixture{
		backend: backend,
		ports: &Ports{
			Fragments:  fragments,
			Items:      items,
			Dataset:    dataset,
			Generation: generation,
			Monitor:    monitor,
		},
		itemID: item.ID,
		jobID:  job.ID,
	}
}

func (f *fixture) server(t *testing.T) *Server {
	t.Helper()
	server, err := NewServer(f.ports)
	require.NoError(t, err)
	return server
}

// failingFragments is a fragment service whose corpus cannot be loaded.
type failingFragments struct {
	driving.FragmentService
	err error
}

func (f *failingFragments) Refresh(context.Context) error {
	return f.err
}
