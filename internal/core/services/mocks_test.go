package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
)

// --- Mock implementations shared by service tests ---

// mockBackend implements driven.Backend for testing.
type mockBackend struct {
	mu sync.Mutex

	// Fragments
	fragments     []domain.Fragment
	listFragErr   error
	listFragCalls int
	weights       map[int64]float64
	weightErr     error
	excluded      []int64
	excludeErr    error

	// Training items
	items       []domain.TrainingItem
	nextItemID  int64
	saveItemErr error
	itemSaves   int
	deleteErr   error

	// Generation
	genJobID    string
	submitErr   error
	genRequests []domain.GenerationRequest
	statusFn    func(jobID string) (*domain.GenerationJob, error)
	statusCalls int
	recentJobs  []domain.GenerationJob
	recentErr   error

	// Training set
	savedSets  [][]domain.Annotation
	saveSetErr error
	loadFn     func(id *int64) ([]domain.Annotation, error)
	loadCalls  int

	// Fine-tuning
	estimateFn    func(size int, model, platform string) (*domain.CostEstimate, error)
	estimateCalls int
	submittedFT   [][]domain.Annotation
	submitFTErr   error
	ftJob         *domain.FineTuningJob
	jobs          []domain.FineTuningJob
	listJobsErr   error
	listJobsCalls int
	detailFn      func(jobID string) (*domain.JobStatusDetail, error)
	logsFn        func(jobID string, limit int) ([]domain.JobLogEntry, error)
}

var _ driven.Backend = (*mockBackend)(nil)

func newMockBackend() *mockBackend {
	return &mockBackend{
		weights:    make(map[int64]float64),
		nextItemID: 1,
		genJobID:   "gen-1",
	}
}

func (m *mockBackend) ListFragments(_ context.Context, page, pageSize int, _ float64) (*domain.FragmentPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listFragCalls++
	if m.listFragErr != nil {
		return nil, m.listFragErr
	}
	start := (page - 1) * pageSize
	if start > len(m.fragments) {
		start = len(m.fragments)
	}
	end := start + pageSize
	if end > len(m.fragments) {
		end = len(m.fragments)
	}
	items := append([]domain.Fragment(nil), m.fragments[start:end]...)
	return &domain.FragmentPage{Items: items, Total: len(m.fragments)}, nil
}

func (m *mockBackend) UpdateFragmentWeight(_ context.Context, id int64, weight float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.weightErr != nil {
		return m.weightErr
	}
	m.weights[id] = weight
	return nil
}

func (m *mockBackend) SetFragmentExcluded(_ context.Context, id int64, excluded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.excludeErr != nil {
		return m.excludeErr
	}
	if excluded {
		m.excluded = append(m.excluded, id)
	}
	return nil
}

func (m *mockBackend) ListTrainingItems(_ context.Context) ([]domain.TrainingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TrainingItem(nil), m.items...), nil
}

func (m *mockBackend) SaveTrainingItem(
	_ context.Context,
	name string,
	keys []domain.FragmentKey,
	template string,
) (*domain.TrainingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemSaves++
	if m.saveItemErr != nil {
		return nil, m.saveItemErr
	}
	for i := range m.items {
		if m.items[i].Name == name {
			m.items[i].FragmentKeys = keys
			m.items[i].PromptTemplate = template
			item := m.items[i]
			return &item, nil
		}
	}
	item := domain.TrainingItem{ID: m.nextItemID, Name: name, FragmentKeys: keys, PromptTemplate: template}
	m.nextItemID++
	m.items = append(m.items, item)
	return &item, nil
}

func (m *mockBackend) DeleteTrainingItem(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockBackend) SubmitGenerationJob(_ context.Context, req domain.GenerationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return "", m.submitErr
	}
	m.genRequests = append(m.genRequests, req)
	return m.genJobID, nil
}

func (m *mockBackend) GetGenerationJobStatus(_ context.Context, jobID string) (*domain.GenerationJob, error) {
	m.mu.Lock()
	m.statusCalls++
	fn := m.statusFn
	m.mu.Unlock()
	if fn == nil {
		return &domain.GenerationJob{ID: jobID, Status: domain.GenerationRunning}, nil
	}
	return fn(jobID)
}

func (m *mockBackend) statusCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}

func (m *mockBackend) ListRecentGenerationJobs(_ context.Context, limit int) ([]domain.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	jobs := m.recentJobs
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return append([]domain.GenerationJob(nil), jobs...), nil
}

func (m *mockBackend) SaveTrainingSet(_ context.Context, annotations []domain.Annotation, _ *int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveSetErr != nil {
		return 0, m.saveSetErr
	}
	m.savedSets = append(m.savedSets, annotations)
	count := 0
	for i := range annotations {
		if annotations[i].IsComplete() {
			count++
		}
	}
	return count, nil
}

func (m *mockBackend) LoadTrainingSet(_ context.Context, id *int64) ([]domain.Annotation, error) {
	m.mu.Lock()
	m.loadCalls++
	fn := m.loadFn
	m.mu.Unlock()
	if fn == nil {
		return []domain.Annotation{}, nil
	}
	return fn(id)
}

func (m *mockBackend) EstimateFineTuningCost(
	_ context.Context,
	size int,
	model, platform string,
) (*domain.CostEstimate, error) {
	m.mu.Lock()
	m.estimateCalls++
	fn := m.estimateFn
	m.mu.Unlock()
	if fn == nil {
		return &domain.CostEstimate{EstimatedCostUSD: float64(size) * 0.01}, nil
	}
	return fn(size, model, platform)
}

func (m *mockBackend) SubmitFineTuningJob(
	_ context.Context,
	annotations []domain.Annotation,
	platform, model string,
	_ domain.TrainingFormat,
) (*domain.FineTuningJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitFTErr != nil {
		return nil, m.submitFTErr
	}
	m.submittedFT = append(m.submittedFT, annotations)
	if m.ftJob != nil {
		job := *m.ftJob
		return &job, nil
	}
	return &domain.FineTuningJob{ID: "ft-1", Platform: platform, Model: model, Status: "submitted"}, nil
}

func (m *mockBackend) ListFineTuningJobs(_ context.Context) ([]domain.FineTuningJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listJobsCalls++
	if m.listJobsErr != nil {
		return nil, m.listJobsErr
	}
	return append([]domain.FineTuningJob(nil), m.jobs...), nil
}

func (m *mockBackend) GetFineTuningJobStatus(_ context.Context, jobID string) (*domain.JobStatusDetail, error) {
	m.mu.Lock()
	fn := m.detailFn
	m.mu.Unlock()
	if fn == nil {
		return &domain.JobStatusDetail{JobID: jobID, Status: "running", Progress: 50}, nil
	}
	return fn(jobID)
}

func (m *mockBackend) GetFineTuningJobLogs(_ context.Context, jobID string, limit int) ([]domain.JobLogEntry, error) {
	m.mu.Lock()
	fn := m.logsFn
	m.mu.Unlock()
	if fn == nil {
		return []domain.JobLogEntry{{Message: "started " + jobID}}, nil
	}
	return fn(jobID, limit)
}

// fakeClock implements driven.Clock with manually fired tickers.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

var _ driven.Clock = (*fakeClock)(nil)

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) driven.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time), interval: d}
	c.tickers = append(c.tickers, t)
	return t
}

// tickerCount returns the number of tickers created so far.
func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// fire delivers one tick to the newest ticker. Returns false if nobody received it.
func (c *fakeClock) fire() bool {
	c.mu.Lock()
	if len(c.tickers) == 0 {
		c.mu.Unlock()
		return false
	}
	t := c.tickers[len(c.tickers)-1]
	now := c.now
	c.mu.Unlock()

	select {
	case t.ch <- now:
		return true
	case <-time.After(time.Second):
		return false
	}
}

type fakeTicker struct {
	ch       chan time.Time
	interval time.Duration
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

// mockConfigStore implements driven.ConfigStore in memory.
type mockConfigStore struct {
	mu      sync.RWMutex
	values  map[string]any
	setErr  error
	saveErr error
}

var _ driven.ConfigStore = (*mockConfigStore)(nil)

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{values: make(map[string]any)}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	v, _ := m.Get(key)
	s, _ := v.(string)
	return s
}

func (m *mockConfigStore) GetInt(key string) int {
	v, _ := m.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

func (m *mockConfigStore) GetBool(key string) bool {
	v, _ := m.Get(key)
	b, _ := v.(bool)
	return b
}

func (m *mockConfigStore) GetFloat(key string) float64 {
	v, _ := m.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func (m *mockConfigStore) Set(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockConfigStore) Save() error { return m.saveErr }
func (m *mockConfigStore) Load() error { return nil }
func (m *mockConfigStore) Path() string {
	return "/tmp/privatetune/config.toml"
}

// eventRecorder collects published events.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func recordEvents(bus *EventBus) *eventRecorder {
	r := &eventRecorder{}
	bus.Subscribe(func(ev domain.Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	return r
}

func (r *eventRecorder) count(kind domain.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) notices() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Kind == domain.EventNotice {
			out = append(out, ev)
		}
	}
	return out
}

// configuredSettings returns a settings source with generation configured.
func configuredSettings() *SettingsService {
	store := newMockConfigStore()
	_ = store.Set(keyGenPlatform, "deepseek")
	_ = store.Set(keyGenModel, "deepseek-chat")
	_ = store.Set(keyGenCandidates, 3)
	return NewSettingsService(store, nil)
}

// fragmentsFixture builds n fragments across two documents with weights 0..5 cycling.
func fragmentsFixture(n int) []domain.Fragment {
	frags := make([]domain.Fragment, n)
	for i := range frags {
		doc := int64(1 + i%2)
		frags[i] = domain.Fragment{
			ID:           int64(100 + i),
			DocumentID:   doc,
			ChunkIndex:   i,
			Content:      "fragment content " + string(rune('a'+i%26)),
			Weight:       float64(i % 6),
			DocumentName: map[int64]string{1: "alpha.pdf", 2: "beta.md"}[doc],
			Keywords:     []string{"kw" + string(rune('a'+i%26))},
		}
	}
	return frags
}

func (m *mockBackend) listJobsCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listJobsCalls
}
