package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	v1 "github.com/stacklok/toolhive-skill-sync/internal/api/v1"
	"github.com/stacklok/toolhive-skill-sync/internal/service"
	"github.com/stacklok/toolhive-skill-sync/internal/service/mocks"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
)

func TestListPending(t *testing.T) {
	t.Parallel()

	ids := []uuid.UUID{uuid.New(), uuid.New()}

	tests := []struct {
		name       string
		query      string
		setupMock  func(*mocks.MockSyncService)
		wantStatus int
		wantCount  int
	}{
		{
			name:  "default limit",
			query: "",
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().ListPendingRepositoryIDs(gomock.Any(), gomock.Any()).Return(ids, nil)
			},
			wantStatus: http.StatusOK,
			wantCount:  2,
		},
		{
			name:  "explicit limit",
			query: "?limit=1",
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().ListPendingRepositoryIDs(gomock.Any(), gomock.Any()).Return(ids[:1], nil)
			},
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:       "non-numeric limit",
			query:      "?limit=many",
			setupMock:  func(*mocks.MockSyncService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero limit",
			query:      "?limit=0",
			setupMock:  func(*mocks.MockSyncService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "store failure",
			query: "",
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().ListPendingRepositoryIDs(gomock.Any(), gomock.Any()).
					Return(nil, errors.New("connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			mockSvc := mocks.NewMockSyncService(ctrl)
			tt.setupMock(mockSvc)

			rr := httptest.NewRecorder()
			v1.Router(mockSvc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/repositories/pending"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp v1.PendingResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCount, resp.Count)
			assert.Len(t, resp.RepositoryIDs, tt.wantCount)
		})
	}
}

func TestListPending_PassesLimit(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockSvc := mocks.NewMockSyncService(ctrl)

	mockSvc.EXPECT().ListPendingRepositoryIDs(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, opts ...service.Option) ([]uuid.UUID, error) {
			o := &service.ListPendingOptions{}
			for _, opt := range opts {
				require.NoError(t, opt(o))
			}
			assert.Equal(t, 25, o.Limit)
			return []uuid.UUID{}, nil
		})

	rr := httptest.NewRecorder()
	v1.Router(mockSvc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/repositories/pending?limit=25", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGetRepository(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	synced := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	detail := &service.RepositoryDetail{
		Repository: &store.Repository{
			ID:           id,
			Platform:     "github",
			Owner:        "acme",
			Name:         "skills",
			URL:          "https://github.com/acme/skills",
			Status:       store.StatusActive,
			RepoType:     store.RepoTypeMarketplace,
			LastSyncedAt: &synced,
		},
		Skills:  []store.Skill{{Name: "pdf", LatestVersion: "1.2.0", IsActive: true}},
		Plugins: []store.Plugin{{Name: "docs", Source: "./plugins/docs", LatestVersion: "0.1.0", IsActive: false}},
	}

	tests := []struct {
		name       string
		path       string
		setupMock  func(*mocks.MockSyncService)
		wantStatus int
	}{
		{
			name: "found",
			path: "/repositories/" + id.String(),
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().GetRepository(gomock.Any(), id).Return(detail, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not found",
			path: "/repositories/" + id.String(),
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().GetRepository(gomock.Any(), id).Return(nil, service.ErrRepositoryNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "malformed id",
			path:       "/repositories/acme-skills",
			setupMock:  func(*mocks.MockSyncService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			mockSvc := mocks.NewMockSyncService(ctrl)
			tt.setupMock(mockSvc)

			rr := httptest.NewRecorder()
			v1.Router(mockSvc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp v1.RepositoryResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, "acme/skills", resp.FullName)
			assert.Equal(t, "active", resp.Status)
			assert.Equal(t, "marketplace", resp.RepoType)
			require.NotNil(t, resp.LastSyncedAt)
			assert.True(t, synced.Equal(*resp.LastSyncedAt))
			require.Len(t, resp.Skills, 1)
			assert.Equal(t, "1.2.0", resp.Skills[0].LatestVersion)
			require.Len(t, resp.Plugins, 1)
			assert.False(t, resp.Plugins[0].Active)
		})
	}
}

func TestTriggerSync(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	tests := []struct {
		name       string
		setupMock  func(*mocks.MockSyncService)
		wantStatus int
		wantRunID  string
	}{
		{
			name: "started",
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().TriggerSync(gomock.Any(), id).Return("run-1", nil)
			},
			wantStatus: http.StatusAccepted,
			wantRunID:  "run-1",
		},
		{
			name: "unknown repository",
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().TriggerSync(gomock.Any(), id).Return("", service.ErrRepositoryNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "no workflow client",
			setupMock: func(m *mocks.MockSyncService) {
				m.EXPECT().TriggerSync(gomock.Any(), id).Return("", service.ErrNoTrigger)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			mockSvc := mocks.NewMockSyncService(ctrl)
			tt.setupMock(mockSvc)

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/repositories/"+id.String()+"/sync", nil)
			v1.Router(mockSvc).ServeHTTP(rr, req)
			require.Equal(t, tt.wantStatus, rr.Code)

			if tt.wantRunID != "" {
				var resp v1.TriggerResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, id, resp.RepositoryID)
				assert.Equal(t, tt.wantRunID, resp.RunID)
			}
		})
	}
}

func TestTriggerSync_RequiresPost(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mockSvc := mocks.NewMockSyncService(ctrl)

	rr := httptest.NewRecorder()
	v1.Router(mockSvc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/repositories/"+uuid.NewString()+"/sync", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
