package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"taskhub/internal/auth"
	"taskhub/internal/events"
	"taskhub/internal/handler"
	"taskhub/internal/middleware"
	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/rules"
	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type taskAPI struct {
	router *gin.Engine
	events *recorder
	userID uuid.UUID
	token  string
}

func setupTaskAPI(t *testing.T) *taskAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Task{}))

	rec := &recorder{}
	tokens := auth.NewTokenManager(testSecret, time.Hour)
	svc := service.NewTaskService(repository.NewTaskRepository(db), rules.NewEngine(), rec)
	taskHandler := handler.NewTaskHandler(svc)

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(tokens))
	api.POST("/tasks", taskHandler.Create)
	api.GET("/tasks", taskHandler.List)
	api.GET("/tasks/:id", taskHandler.GetByID)
	api.PUT("/tasks/:id", taskHandler.Update)
	api.DELETE("/tasks/:id", taskHandler.Delete)

	userID := uuid.New()
	token, err := tokens.GenerateToken(userID, "owner@example.com")
	require.NoError(t, err)

	return &taskAPI{router: r, events: rec, userID: userID, token: token}
}

func (a *taskAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp := httptest.NewRecorder()
	a.router.ServeHTTP(resp, req)
	return resp
}

func (a *taskAPI) create(t *testing.T, body map[string]any) model.Task {
	t.Helper()
	resp := a.do("POST", "/api/v1/tasks", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var task model.Task
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &task))
	return task
}

func inOneHour() string {
	return time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
}

func TestTaskHandler_CreateAppliesDefaults(t *testing.T) {
	api := setupTaskAPI(t)

	task := api.create(t, map[string]any{"title": "Write docs", "dueDate": inOneHour()})

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, model.StatusTodo, task.Status)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, api.userID, task.CreatorID)
	assert.Nil(t, task.AssignedToID)
	assert.Equal(t, []events.Kind{events.TaskCreated}, api.events.kinds())
}

func TestTaskHandler_CreateUsesCamelCaseFields(t *testing.T) {
	api := setupTaskAPI(t)

	resp := api.do("POST", "/api/v1/tasks", map[string]any{"title": "Shape", "dueDate": inOneHour()})

	require.Equal(t, http.StatusCreated, resp.Code)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &raw))
	for _, key := range []string{"id", "title", "description", "dueDate", "priority", "status", "creatorId", "createdAt", "updatedAt"} {
		assert.Contains(t, raw, key)
	}
}

func TestTaskHandler_CreateValidation(t *testing.T) {
	api := setupTaskAPI(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"dueDate": inOneHour()}},
		{"missing due date", map[string]any{"title": "No date"}},
		{"bad priority", map[string]any{"title": "x", "dueDate": inOneHour(), "priority": "CRITICAL"}},
		{"bad status", map[string]any{"title": "x", "dueDate": inOneHour(), "status": "DONE"}},
		{"bad assignee", map[string]any{"title": "x", "dueDate": inOneHour(), "assignedToId": "nobody"}},
		{"bad date format", map[string]any{"title": "x", "dueDate": "tomorrow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.do("POST", "/api/v1/tasks", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
		})
	}
	assert.Empty(t, api.events.kinds())
}

func TestTaskHandler_CreatePastDueDateIsRuleViolation(t *testing.T) {
	api := setupTaskAPI(t)

	resp := api.do("POST", "/api/v1/tasks", map[string]any{
		"title":   "Yesterday",
		"dueDate": time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	var body struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "Business rule violation", body.Error)
	assert.Equal(t, rules.ErrInvalidDueDate.Error(), body.Details["rule"])
	assert.Equal(t, "dueDate", body.Details["field"])
	assert.Empty(t, api.events.kinds())

	list := api.do("GET", "/api/v1/tasks", nil)
	assert.JSONEq(t, "[]", list.Body.String())
}

func TestTaskHandler_RequiresAuthentication(t *testing.T) {
	api := setupTaskAPI(t)

	req, _ := http.NewRequest("GET", "/api/v1/tasks", nil)
	resp := httptest.NewRecorder()
	api.router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestTaskHandler_GetUnknownAndMalformedID(t *testing.T) {
	api := setupTaskAPI(t)

	assert.Equal(t, http.StatusNotFound, api.do("GET", "/api/v1/tasks/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do("GET", "/api/v1/tasks/42", nil).Code)
}

func TestTaskHandler_UpdateStatusAndAssignee(t *testing.T) {
	api := setupTaskAPI(t)
	task := api.create(t, map[string]any{"title": "Review PR", "dueDate": inOneHour()})
	assignee := uuid.New()

	resp := api.do("PUT", "/api/v1/tasks/"+task.ID.String(), map[string]any{
		"status":       "REVIEW",
		"assignedToId": assignee.String(),
		"creatorId":    uuid.NewString(),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var updated model.Task
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &updated))
	assert.Equal(t, model.StatusReview, updated.Status)
	require.NotNil(t, updated.AssignedToID)
	assert.Equal(t, assignee, *updated.AssignedToID)
	assert.Equal(t, api.userID, updated.CreatorID)
	assert.Equal(t, task.Title, updated.Title)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))
	assert.Equal(t,
		[]events.Kind{events.TaskCreated, events.TaskUpdated, events.TaskAssigned},
		api.events.kinds())

	resp = api.do("PUT", "/api/v1/tasks/"+task.ID.String(), map[string]any{"assignedToId": nil})
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &updated))
	assert.Nil(t, updated.AssignedToID)
	assert.Equal(t, model.StatusReview, updated.Status)
}

func TestTaskHandler_UpdateUnknownTask(t *testing.T) {
	api := setupTaskAPI(t)

	resp := api.do("PUT", "/api/v1/tasks/"+uuid.NewString(), map[string]any{"title": "ghost"})

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTaskHandler_DeleteThenNotFound(t *testing.T) {
	api := setupTaskAPI(t)
	task := api.create(t, map[string]any{"title": "Temporary", "dueDate": inOneHour()})
	path := "/api/v1/tasks/" + task.ID.String()

	resp := api.do("DELETE", path, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, resp.Body.String())

	assert.Equal(t, http.StatusNotFound, api.do("GET", path, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do("DELETE", path, nil).Code)
}

func TestTaskHandler_ListFilters(t *testing.T) {
	api := setupTaskAPI(t)
	later := api.create(t, map[string]any{"title": "later", "dueDate": time.Now().Add(3 * time.Hour).UTC().Format(time.RFC3339)})
	sooner := api.create(t, map[string]any{"title": "sooner", "dueDate": inOneHour()})
	api.create(t, map[string]any{"title": "urgent", "dueDate": inOneHour(), "priority": "URGENT", "status": "IN_PROGRESS"})

	resp := api.do("GET", "/api/v1/tasks?status=TODO", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var tasks []model.Task
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)
	assert.Equal(t, sooner.ID, tasks[0].ID)
	assert.Equal(t, later.ID, tasks[1].ID)

	resp = api.do("GET", "/api/v1/tasks?priority=URGENT&creatorId="+api.userID.String(), nil)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "urgent", tasks[0].Title)

	for _, q := range []string{"status=DONE", "priority=NOW", "creatorId=me", "assignedToId=x"} {
		assert.Equal(t, http.StatusBadRequest, api.do("GET", "/api/v1/tasks?"+q, nil).Code, q)
	}
}
