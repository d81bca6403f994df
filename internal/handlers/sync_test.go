package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"task-reminder/backend/internal/handlers"
	"task-reminder/backend/internal/models"
	"task-reminder/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) ProcessChanges(db *gorm.DB, userID uuid.UUID, changes []services.Change) services.SyncResult {
	args := m.Called(db, userID, changes)
	return args.Get(0).(services.SyncResult)
}

func newSyncRouter(svc services.SyncService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := handlers.NewSyncHandler(nil, svc)
	router.POST("/sync", testAuth, h.Sync)
	return router
}

func TestSyncReturnsBatchResult(t *testing.T) {
	conflictID := uuid.Must(uuid.NewV4())
	svc := new(MockSyncService)
	svc.On("ProcessChanges", mock.Anything, testUserID, mock.MatchedBy(func(changes []services.Change) bool {
		return len(changes) == 2 &&
			changes[0].Action == models.ActionCreate &&
			changes[1].Action == models.ActionUpdate
	})).Return(services.SyncResult{
		Processed: 1,
		Errors:    []services.ChangeError{},
		Conflicts: []services.ChangeConflict{{
			ID:     conflictID,
			Type:   models.EntityTask,
			Reason: "server copy is newer",
		}},
	})

	router := newSyncRouter(svc)
	w := doJSON(t, router, http.MethodPost, "/sync", map[string]interface{}{
		"changes": []map[string]interface{}{
			{
				"type":   "task",
				"action": "create",
				"data":   map[string]string{"title": "Offline task", "due_date": "2026-09-01"},
			},
			{
				"type":            "task",
				"action":          "update",
				"data":            map[string]string{"title": "Edited offline"},
				"clientTimestamp": time.Now().UTC().Format(time.RFC3339),
			},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Processed int                       `json:"processed"`
		Errors    []services.ChangeError    `json:"errors"`
		Conflicts []services.ChangeConflict `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Processed)
	assert.Empty(t, resp.Errors)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, conflictID, resp.Conflicts[0].ID)
	svc.AssertExpectations(t)
}

func TestSyncRejectsMissingChanges(t *testing.T) {
	svc := new(MockSyncService)
	router := newSyncRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/sync", map[string]interface{}{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ProcessChanges", mock.Anything, mock.Anything, mock.Anything)
}
