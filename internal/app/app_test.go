package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/worker"
	"go.uber.org/mock/gomock"

	ghmocks "github.com/stacklok/toolhive-skill-sync/internal/github/mocks"
	"github.com/stacklok/toolhive-skill-sync/internal/api"
	"github.com/stacklok/toolhive-skill-sync/internal/objectstore"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
	"github.com/stacklok/toolhive-skill-sync/internal/workflows"
)

// fakeWorker records registrations and lifecycle calls. Methods it does not
// override panic through the nil embedded Worker.
type fakeWorker struct {
	worker.Worker

	mu         sync.Mutex
	workflows  int
	activities int
	started    bool
	stopped    bool
}

func (w *fakeWorker) RegisterWorkflow(any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.workflows++
}

func (w *fakeWorker) RegisterActivity(any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.activities++
}

func (w *fakeWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = true
	return nil
}

func (w *fakeWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}

func (w *fakeWorker) state() (started, stopped bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started, w.stopped
}

func TestSkillSyncApp_Lifecycle(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sc := &mocks.ScheduleClient{}
	sc.On("Create", mock.Anything, mock.MatchedBy(func(o client.ScheduleOptions) bool {
		return o.ID == workflows.ScheduledSyncWorkflowID
	})).Return(nil, nil)
	tc := &mocks.Client{}
	tc.On("ScheduleClient").Return(sc)

	// No registries, so the coordinator never launches a discovery.
	cfg := createTestConfig()
	cfg.Discovery.Registries = nil

	fw := &fakeWorker{}
	var queue string
	app, err := NewSkillSyncApp(context.Background(),
		WithConfig(cfg),
		WithStore(store.NewMemory()),
		WithObjectStorage(objectstore.NewMemory("")),
		WithGitHubClient(ghmocks.NewMockClient(ctrl)),
		WithTemporalClient(tc),
		WithAddress("127.0.0.1:0"),
		WithWorkerFactory(func(_ client.Client, taskQueue string) worker.Worker {
			queue = taskQueue
			return fw
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, "skill-sync", queue)
	assert.Equal(t, 3, fw.workflows)
	assert.Equal(t, 1, fw.activities)
	assert.NotNil(t, app.GetConfig())
	assert.NotNil(t, app.GetComponents().Service)

	done := make(chan error, 1)
	go func() { done <- app.Start() }()

	require.Eventually(t, func() bool {
		started, _ := fw.state()
		return started
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, app.Stop(5*time.Second))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	_, stopped := fw.state()
	assert.True(t, stopped)
	sc.AssertExpectations(t)
}

func TestSkillSyncApp_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewSkillSyncApp(context.Background())
	require.ErrorContains(t, err, "config is required")
}

func TestSkillSyncApp_AdminAPI(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	tc := &mocks.Client{}
	tc.On("CheckHealth", mock.Anything, mock.Anything).Return(&client.CheckHealthResponse{}, nil)

	st := store.NewMemory()
	id, _, err := st.UpsertDiscoveredRepository(context.Background(), store.DiscoveredRepository{
		Platform: "github", Owner: "acme", Name: "skills", URL: "https://github.com/acme/skills",
	})
	require.NoError(t, err)

	app, err := NewSkillSyncApp(context.Background(),
		WithConfig(createTestConfig()),
		WithStore(st),
		WithObjectStorage(objectstore.NewMemory("")),
		WithGitHubClient(ghmocks.NewMockClient(ctrl)),
		WithTemporalClient(tc),
		WithVersion(api.VersionResponse{Version: "v9.9.9"}),
		WithWorkerFactory(func(client.Client, string) worker.Worker { return &fakeWorker{} }),
	)
	require.NoError(t, err)
	handler := app.GetHTTPServer().Handler

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{path: "/health", wantStatus: http.StatusOK, wantBody: "healthy"},
		{path: "/readiness", wantStatus: http.StatusOK, wantBody: "ready"},
		{path: "/version", wantStatus: http.StatusOK, wantBody: "v9.9.9"},
		{path: "/v1/repositories/" + id.String(), wantStatus: http.StatusOK, wantBody: "acme/skills"},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.wantStatus, rr.Code, tt.path)
		assert.Contains(t, rr.Body.String(), tt.wantBody, tt.path)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/repositories/pending", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var pending struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pending))
	assert.Equal(t, 1, pending.Count)
}

func TestSkillSyncApp_AdminAPIRequiresToken(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := createTestConfig()
	cfg.API.AuthToken = "operator-token"

	app, err := NewSkillSyncApp(context.Background(),
		WithConfig(cfg),
		WithStore(store.NewMemory()),
		WithObjectStorage(objectstore.NewMemory("")),
		WithGitHubClient(ghmocks.NewMockClient(ctrl)),
		WithTemporalClient(&mocks.Client{}),
		WithWorkerFactory(func(client.Client, string) worker.Worker { return &fakeWorker{} }),
	)
	require.NoError(t, err)
	handler := app.GetHTTPServer().Handler

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/repositories/pending", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/repositories/pending", nil)
	req.Header.Set("Authorization", "Bearer operator-token")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
