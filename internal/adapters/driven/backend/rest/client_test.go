package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// fakeBackend records requests routed through a chi mux.
type fakeBackend struct {
	mu       sync.Mutex
	bodies   map[string]map[string]any
	headers  map[string]http.Header
	queries  map[string]string
	router   chi.Router
	server   *httptest.Server
	requests int
}

func newFakeBackend(t *testing.T, routes func(r chi.Router, fb *fakeBackend)) (*fakeBackend, *Client) {
	t.Helper()
	fb := &fakeBackend{
		bodies:  make(map[string]map[string]any),
		headers: make(map[string]http.Header),
		queries: make(map[string]string),
		router:  chi.NewRouter(),
	}
	fb.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Method + " " + r.URL.Path
			fb.mu.Lock()
			fb.requests++
			fb.headers[key] = r.Header.Clone()
			fb.queries[key] = r.URL.RawQuery
			if r.Body != nil && r.ContentLength != 0 {
				var body map[string]any
				if json.NewDecoder(r.Body).Decode(&body) == nil {
					fb.bodies[key] = body
				}
			}
			fb.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	routes(fb.router, fb)
	fb.server = httptest.NewServer(fb.router)
	t.Cleanup(fb.server.Close)

	client, err := NewClient(Config{BaseURL: fb.server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return fb, client
}

func (fb *fakeBackend) body(key string) map[string]any {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.bodies[key]
}

func (fb *fakeBackend) query(key string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.queries[key]
}

func (fb *fakeBackend) header(key string) http.Header {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.headers[key]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
	assert.Nil(t, c.limiter)
}

func TestNewClient_TrimsSlashAndRejectsBadURL(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://localhost:9000/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", c.BaseURL())

	_, err = NewClient(Config{BaseURL: "not a url"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewClient_RateLimiter(t *testing.T) {
	c, err := NewClient(Config{RequestsPerSecond: 0.5})
	require.NoError(t, err)
	require.NotNil(t, c.limiter)
	assert.Equal(t, 1, c.limiter.Burst())
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(domain.BackendSettings{
		URL:               "http://backend",
		Token:             "tok",
		Timeout:           3 * time.Second,
		RequestsPerSecond: 2,
	})
	assert.Equal(t, "http://backend", cfg.BaseURL)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 2.0, cfg.RequestsPerSecond)
}

func TestClient_SendsBearerTokenAndRequestID(t *testing.T) {
	var gotAuth, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotID = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Token: "secret"})
	require.NoError(t, err)
	require.NoError(t, c.Ping(context.Background()))

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Len(t, gotID, 36)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   error
		msg    string
	}{
		{"not found", http.StatusNotFound, map[string]string{"detail": "Job not found"}, domain.ErrNotFound, "Job not found"},
		{"bad request", http.StatusBadRequest, map[string]string{"detail": "name is required"}, domain.ErrSubmission, "name is required"},
		{"validation", http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "field required"}}}, domain.ErrSubmission, "field required"},
		{"server", http.StatusInternalServerError, map[string]string{"detail": "boom"}, domain.ErrTransient, "boom"},
		{"throttled", http.StatusTooManyRequests, nil, domain.ErrTransient, "Too Many Requests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.body == nil {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			c, err := NewClient(Config{BaseURL: srv.URL})
			require.NoError(t, err)

			err = c.Ping(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.msg)
			assert.True(t, IsStatus(err, tt.status))
		})
	}
}

func TestClient_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	err = c.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Ping(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_MalformedResponseIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.ListTrainingItems(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestListFragments(t *testing.T) {
	fb, c := newFakeBackend(t, func(r chi.Router, _ *fakeBackend) {
		r.Get("/documents/knowledge-points", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"knowledge_points": []map[string]any{
					{
						"id": 7, "content": "alpha", "document_id": 3, "document_name": "a.md",
						"chunk_index": 2, "weight": 4.5, "excluded": false, "is_manual": true,
						"keywords": []string{"k1", "k2"},
					},
				},
				"total": 41,
			})
		})
	})

	page, err := c.ListFragments(context.Background(), 2, 20, 1.5)
	require.NoError(t, err)
	assert.Equal(t, 41, page.Total)
	require.Len(t, page.Items, 1)

	f := page.Items[0]
	assert.Equal(t, int64(7), f.ID)
	assert.Equal(t, domain.FragmentKey("3:2"), f.Key())
	assert.Equal(t, "a.md", f.DocumentName)
	assert.Equal(t, 4.5, f.Weight)
	assert.True(t, f.IsManual)
	assert.Equal(t, []string{"k1", "k2"}, f.Keywords)

	assert.Equal(t, "min_weight=1.5&page=2&page_size=20", fb.query("GET /documents/knowledge-points"))
}

func TestListFragments_NoMinWeight(t *testing.T) {
	fb, c := newFakeBackend(t, func(r chi.Router, _ *fakeBackend) {
		r.Get("/documents/knowledge-points", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"knowledge_points": []any{}, "total": 0})
		})
	})

	page, err := c.ListFragments(context.Background(), 1, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, "page=1&page_size=50", fb.query("GET /documents/knowledge-points"))
}

func TestUpdateFragment(t *testing.T) {
	fb, c := newFakeBackend(t, func(r chi.Router, _ *fakeBackend) {
		r.Patch("/documents/knowledge-points/{id}", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": chi.URLParam(r, "id")})
		})
		r.Patch("/documents/knowledge-points/{id}/excluded", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": chi.URLParam(r, "id")})
		})
	})
	ctx := context.Background()

	require.NoError(t, c.UpdateFragmentWeight(ctx, 9, 3.5))
	assert.Equal(t, 3.5, fb.body("PATCH /documents/knowledge-points/9")["weight"])
	assert.Equal(t, "application/json", fb.header("PATCH /documents/knowledge-points/9").Get("Content-Type"))

	require.NoError(t, c.SetFragmentExcluded(ctx, 9, true))
	assert.Equal(t, true, fb.body("PATCH /documents/knowledge-points/9/excluded")["excluded"])
}

func TestTrainingItems(t *testing.T) {
	fb, c := newFakeBackend(t, func(r chi.Router, _ *fakeBackend) {
		r.Get("/training-items", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"items": []map[string]any{{
					"id": 1, "name": "faq", "knowledge_point_keys": []string{"1:0", "2:3"},
					"prompt_template": "T {knowledge_point}",
					"created_at":      "2026-01-02T03:04:05.123456",
					"updated_at":      "2026-01-03T03:04:05",
				}},
			})
		})
		r.Post("/training-items", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"id": 5, "name": "new", "knowledge_point_keys": []string{"4:1"},
				"prompt_template": "P", "created_at": nil,
			})
		})
		r.Delete("/training-items/{id}", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "id") != "5" {
				writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Training item not found"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		})
	})
	ctx := context.Background()

	items, err := c.ListTrainingItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []domain.FragmentKey{"1:0", "2:3"}, items[0].FragmentKeys)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 123456000, time.UTC), items[0].CreatedAt)
	assert.Equal(t, time.Date(2026, 1, 3, 3, 4, 5, 0, time.UTC), items[0].UpdatedAt)

	item, err := c.SaveTrainingItem(ctx, "new", []domain.FragmentKey{"4:1"}, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(5), item.ID)
	assert.True(t, item.CreatedAt.IsZero())
	body := fb.body("POST /training-items")
	assert.Equal(t, "new", body["name"])
	assert.Equal(t, []any{"4:1"}, body["knowledge_point_keys"])
	assert.Equal(t, "P", body["prompt_template"])

	require.NoError(t, c.DeleteTrainingItem(ctx, 5))
	assert.ErrorIs(t, c.DeleteTrainingItem(ctx, 6), domain.ErrNotFound)
}

func TestGenerationJobs(t *testing.T) {
	fb, c := newFakeBackend(t, func(r chi.Router, _ *fakeBackend) {
		r.Post("/annotations/jobs", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"job_id": "gen-1"})
		})
		r.Get("/annotations/jobs", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"jobs": []map[string]any{
				{"job_id": "gen-2", "status": "running", "progress": 40},
				{"job_id": "gen-1", "status": "completed", "progress": 100},
			}})
		})
		r.Get("/annotations/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			switch chi.URLParam(r, "id") {
			case "gen-1":
				writeJSON(w, http.StatusOK, map[string]any{
					"job_id": "gen-1", "status": "completed", "progress": 100,
					"annotations": []map[string]any{
						{"instruction": "Q1", "response": "A1"},
						{"instruction": "Q2", "response": "A2"},
					},
				})
			case "gen-2":
				writeJSON(w, http.StatusOK, map[string]any{
					"status": "in_progress", "progress": 55.5,
					"annotations": []map[string]any{{"instruction": "partial", "response": "x"}},
				})
			default:
				writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Job not found"})
			}
		})
	})
	ctx := context.Background()

	id, err := c.SubmitGenerationJob(ctx, domain.GenerationRequest{
		Prompts: []string{"p1", "p2"},
		Model: domain.ModelConfig{
			Platform: "deepseek", Model: "deepseek-chat", APIKey: "k", CandidateCount: 99,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "gen-1", id)
	body := fb.body("POST /annotations/jobs")
	assert.Equal(t, []any{"p1", "p2"}, body["knowledge_points"])
	assert.Equal(t, "deepseek", body["platform"])
	assert.Equal(t, "deepseek-chat", body["model"])
	assert.Equal(t, "k", body["api_key"])
	assert.Equal(t, float64(domain.MaxCandidateCount), body["candidate_count"])
	assert.NotContains(t, body, "base_url")

	job, err := c.GetGenerationJobStatus(ctx, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationCompleted, job.Status)
	require.Len(t, job.Annotations, 2)
	assert.Equal(t, "Q2", job.Annotations[1].Instruction)
	assert.False(t, job.Annotations[0].Finetuned)

	running, err := c.GetGenerationJobStatus(ctx, "gen-2")
	require.NoError(t, err)
	assert.Equal(t, "gen-2", running.ID)
	assert.Equal(t, domain.GenerationRunning, running.Status)
	assert.Equal(t, 55.5, running.Progress)
	assert.Nil(t, running.Annotations, "annotations are only read from completed jobs")

	_, err = c.GetGenerationJobStatus(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	jobs, err := c.ListRecentGenerationJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.True(t, jobs[0].Status.IsActive())
	assert.Equal(t, "limit=10", fb.query("GET /annotations/jobs"))
}

func TestSubmitGenerationJob_EmptyIDRejected(t *testing.T) {
	_, c := newFakeBackend(t, func(r chi.Router, _ *fakeBackend) {
		r.Post("/annotations/jobs", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{})
		})
	})

	_, err := c.SubmitGenerationJob(context.Background(), domain.GenerationRequest{
		Prompts: []string{"p"},
		Model:   domain.ModelConfig{Model: "m", Platform: "openai"},
	})
	assert.ErrorIs(t, err, domain.ErrSubmission)
}

func TestTrainingSet(t *testing.T) {
	fb, c := newFakeBackend(t, func(r chi.Router, _ *fakeBackend) {
		r.Post("/training-set", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]int{"count": 2})
		})
		r.Get("/training-set", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"annotations": []map[string]any{
					{
						"id": 11, "instruction": "Q", "response": "A", "score": 9,
						"training_item_id": 3, "created_at": "2026-02-01T10:00:00+00:00",
						"finetuned": true, "finetuned_count": 1,
						"linked_jobs": []map[string]any{{
							"job_id": "ft-1", "used_at": "2026-02-02T10:00:00",
							"job_status": "completed", "job_platform": "openai", "job_model": "gpt",
						}},
					},
					{"id": 12, "instruction": "Q2", "response": "A2", "score": nil},
				},
				"count": 2,
			})
		})
	})
	ctx := context.Background()
	itemID := int64(3)

	count, err := c.SaveTrainingSet(ctx, []domain.Annotation{
		{Instruction: "Q", Response: "A", Score: 4},
		{Instruction: "Q2", Response: "A2"},
	}, &itemID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	body := fb.body("POST /training-set")
	assert.Equal(t, float64(3), body["training_item_id"])
	anns, ok := body["annotations"].([]any)
	require.True(t, ok)
	require.Len(t, anns, 2)
	assert.Equal(t, float64(4), anns[0].(map[string]any)["score"])
	assert.NotContains(t, anns[1].(map[string]any), "score", "unscored annotations omit the score")

	loaded, err := c.LoadTrainingSet(ctx, &itemID)
	require.NoError(t, err)
	assert.Equal(t, "training_item_id=3", fb.query("GET /training-set"))
	require.Len(t, loaded, 2)

	first := loaded[0]
	assert.Equal(t, int64(11), first.ID)
	assert.Equal(t, domain.MaxScore, first.Score)
	assert.True(t, first.Finetuned)
	assert.Equal(t, 1, first.FinetunedCount)
	require.Len(t, first.LinkedJobs, 1)
	assert.Equal(t, "ft-1", first.LinkedJobs[0].JobID)
	assert.Equal(t, "openai", first.LinkedJobs[0].Platform)
	require.NotNil(t, first.TrainingItemID)
	assert.Equal(t, int64(3), *first.TrainingItemID)

	assert.False(t, loaded[1].HasScore())
	assert.False(t, loaded[1].Finetuned)
}

func TestLoadTrainingSet_Unscoped(t *testing.T) {
	fb, c := newFakeBackend(t, func(r chi.Router, _ *fakeBackend) {
		r.Get("/training-set", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"annotations": []any{}, "count": 0})
		})
	})

	loaded, err := c.LoadTrainingSet(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.Empty(t, fb.query("GET /training-set"))
}

func TestFineTuning(t *testing.T) {
	fb, c := newFakeBackend(t, func(r chi.Router, _ *fakeBackend) {
		r.Post("/finetuning/estimate", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"estimated_cost_usd": 1.25, "dataset_size": 4})
		})
		r.Post("/finetuning/submit", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"job_id": "ft-9", "id": "ft-9", "status": "submitted"})
		})
		r.Get("/finetuning/jobs", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": "ft-9", "platform": "openai", "model": "gpt", "status": "running",
					"progress": 150, "costUsd": nil, "createdAt": "2026-03-01T08:00:00"},
				{"id": "ft-8", "platform": "openai", "model": "gpt", "status": "completed",
					"progress": 100, "costUsd": 2.5, "createdAt": nil},
			})
		})
		r.Get("/finetuning/jobs/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"job_id": chi.URLParam(r, "id"), "status": "running", "progress": 42,
				"estimated_time_remaining": 90.0,
				"cost_tracking":            map[string]any{"total": 0.5},
			})
		})
		r.Get("/finetuning/jobs/{id}/logs", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{
				{"timestamp": "2026-03-01T08:00:01.5", "job_id": "ft-9", "progress": 10,
					"status": "running", "details": map[string]any{"message": "epoch 1"}},
				{"timestamp": "2026-03-01T08:00:02", "job_id": "ft-9", "progress": nil,
					"status": "running", "details": map[string]any{"step": 3}},
				{"timestamp": "2026-03-01T08:00:03", "job_id": "ft-9", "status": "running", "details": "plain"},
			})
		})
	})
	ctx := context.Background()

	est, err := c.EstimateFineTuningCost(ctx, 4, "gpt", "openai")
	require.NoError(t, err)
	assert.Equal(t, 1.25, est.EstimatedCostUSD)
	assert.Equal(t, 4, est.DatasetSize)
	assert.Equal(t, float64(4), fb.body("POST /finetuning/estimate")["dataset_size"])

	job, err := c.SubmitFineTuningJob(ctx, []domain.Annotation{{ID: 2, Instruction: "Q", Response: "A"}}, "openai", "gpt", domain.FormatDPO)
	require.NoError(t, err)
	assert.Equal(t, "ft-9", job.ID)
	assert.Equal(t, "submitted", job.Status)
	assert.Equal(t, "openai", job.Platform)
	assert.Equal(t, "gpt", job.Model)
	submitted := fb.body("POST /finetuning/submit")
	data := submitted["training_data"].(map[string]any)
	assert.Equal(t, "dpo", data["format_type"])
	assert.Equal(t, float64(2), data["annotations"].([]any)[0].(map[string]any)["id"])

	jobs, err := c.ListFineTuningJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Nil(t, jobs[0].CostUSD)
	assert.Equal(t, 150.0, jobs[0].Progress, "clamping is left to the monitor")
	require.NotNil(t, jobs[1].CostUSD)
	assert.Equal(t, 2.5, *jobs[1].CostUSD)
	assert.True(t, jobs[1].CreatedAt.IsZero())

	status, err := c.GetFineTuningJobStatus(ctx, "ft-9")
	require.NoError(t, err)
	assert.Equal(t, "ft-9", status.JobID)
	require.NotNil(t, status.EstimatedSecondsRemaining)
	assert.Equal(t, 90.0, *status.EstimatedSecondsRemaining)
	assert.Equal(t, 0.5, status.CostTracking["total"])

	logs, err := c.GetFineTuningJobLogs(ctx, "ft-9", 25)
	require.NoError(t, err)
	assert.Equal(t, "limit=25", fb.query("GET /finetuning/jobs/ft-9/logs"))
	require.Len(t, logs, 3)
	assert.Equal(t, "epoch 1", logs[0].Message)
	require.NotNil(t, logs[0].Progress)
	assert.Equal(t, 10.0, *logs[0].Progress)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 1, 500000000, time.UTC), logs[0].Timestamp)
	assert.Nil(t, logs[1].Progress)
	assert.JSONEq(t, `{"step":3}`, logs[1].Message)
	assert.Equal(t, "plain", logs[2].Message)
}

func TestSubmitFineTuningJob_Rejected(t *testing.T) {
	_, c := newFakeBackend(t, func(r chi.Router, _ *fakeBackend) {
		r.Post("/finetuning/submit", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "API key not configured"})
		})
	})

	_, err := c.SubmitFineTuningJob(context.Background(), nil, "openai", "gpt", domain.FormatSFT)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubmission)
	assert.Contains(t, err.Error(), "API key not configured")
}

func TestWireTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2026-01-02T03:04:05Z"`, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{`"2026-01-02T05:04:05+02:00"`, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{`"2026-01-02 03:04:05"`, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{`null`, time.Time{}},
		{`""`, time.Time{}},
	}
	for _, tt := range tests {
		var wt wireTime
		require.NoError(t, json.Unmarshal([]byte(tt.in), &wt), tt.in)
		assert.True(t, tt.want.Equal(wt.Time), tt.in)
	}

	var wt wireTime
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &wt))
}
