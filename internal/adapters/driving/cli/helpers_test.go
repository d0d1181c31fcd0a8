package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/privatetune/internal/adapters/driven/clock"
	"github.com/custodia-labs/privatetune/internal/adapters/driven/config/file"
	"github.com/custodia-labs/privatetune/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/services"
)

// testEnv holds the real services installed for a command test.
type testEnv struct {
	backend    *memory.Backend
	bus        *services.EventBus
	fragments  *services.FragmentEngine
	dataset    *services.AnnotationDataset
	settings   *services.SettingsService
	generation *services.GenerationController
	items      *services.TrainingItemRegistry
	monitor    *services.JobMonitor
	finetuning *services.FineTuningSubmitter
	session    *services.SessionKeeper
	templates  *services.TemplateLibrary
}

// setupTestServices wires the core over an in-memory backend seeded with
// three fragments, loads the corpus and installs it for the commands.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	backend := memory.NewBackend()
	backend.AddFragments(
		domain.Fragment{DocumentID: 1, ChunkIndex: 0, DocumentName: "go.md", Content: "Goroutines are cheap", Weight: 4, Keywords: []string{"concurrency"}},
		domain.Fragment{DocumentID: 1, ChunkIndex: 1, DocumentName: "go.md", Content: "Channels carry values", Weight: 2, Keywords: []string{"concurrency"}},
		domain.Fragment{DocumentID: 2, ChunkIndex: 0, DocumentName: "sql.md", Content: "Indexes speed up reads", Weight: 5},
	)

	configStore, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)
	templateStore, err := file.NewTemplateStore(t.TempDir())
	require.NoError(t, err)

	bus := services.NewEventBus()
	sys := clock.New()
	settings := services.NewSettingsService(configStore, bus)
	fragments := services.NewFragmentEngine(backend, bus)
	dataset := services.NewAnnotationDataset(backend, bus)
	generation := services.NewGenerationController(backend, fragments, dataset, settings, sys, bus)
	items := services.NewTrainingItemRegistry(backend, fragments, dataset, generation, bus)
	generation.UseActiveItems(items)
	monitor := services.NewJobMonitor(backend, dataset, sys, bus)
	finetuning := services.NewFineTuningSubmitter(backend, dataset, monitor, domain.FineTuningSettings{
		Platform:    domain.PlatformDeepSeek.String(),
		Model:       "deepseek-chat",
		Format:      domain.FormatSFT,
		DatasetSize: 10,
	}, bus)
	session := services.NewSessionKeeper(memory.NewSessionStore(), fragments, items, generation, sys, bus)
	session.KeepHistory(memory.NewOutcomeStore())
	templates := services.NewTemplateLibrary(templateStore, generation)

	// Select only accepts keys of the loaded corpus.
	require.NoError(t, fragments.Refresh(context.Background()))

	t.Cleanup(func() {
		generation.Stop()
		monitor.Stop()
		SetServices(Services{})
	})

	env := &testEnv{
		backend:    backend,
		bus:        bus,
		fragments:  fragments,
		dataset:    dataset,
		settings:   settings,
		generation: generation,
		items:      items,
		monitor:    monitor,
		finetuning: finetuning,
		session:    session,
		templates:  templates,
	}
	SetServices(env.services())
	return env
}

// services returns the environment as injectable services.
func (e *testEnv) services() Services {
	return Services{
		Fragments:  e.fragments,
		Items:      e.items,
		Generation: e.generation,
		Dataset:    e.dataset,
		FineTuning: e.finetuning,
		Monitor:    e.monitor,
		Settings:   e.settings,
		Session:    e.session,
		Templates:  e.templates,
		Events:     e.bus,
	}
}

// seedAnnotations saves annotations in the unscoped set.
func (e *testEnv) seedAnnotations(t *testing.T, anns ...domain.Annotation) {
	t.Helper()
	_, err := e.backend.SaveTrainingSet(context.Background(), anns, nil)
	require.NoError(t, err)
}

// resetFlags restores every flag to its default. Flag variables are
// package globals and outlive a single Execute.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// run executes the root command with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
