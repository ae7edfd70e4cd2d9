package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"taskhub/internal/middleware"
	"taskhub/internal/model"
	"taskhub/internal/rules"
	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TaskHandler struct {
	tasks *service.TaskService
}

func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// CreateTaskRequest is the body of POST /tasks
type CreateTaskRequest struct {
	Title        string     `json:"title" binding:"required,max=100"`
	Description  string     `json:"description"`
	DueDate      *time.Time `json:"dueDate" binding:"required"`
	Priority     string     `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Status       string     `json:"status" binding:"omitempty,oneof=TODO IN_PROGRESS REVIEW COMPLETED"`
	AssignedToID *uuid.UUID `json:"assignedToId"`
}

// UpdateTaskRequest is the body of PUT /tasks/:id. Absent fields stay unchanged.
type UpdateTaskRequest struct {
	Title        *string      `json:"title" binding:"omitempty,max=100"`
	Description  *string      `json:"description"`
	DueDate      *time.Time   `json:"dueDate"`
	Priority     *string      `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Status       *string      `json:"status" binding:"omitempty,oneof=TODO IN_PROGRESS REVIEW COMPLETED"`
	AssignedToID OptionalUUID `json:"assignedToId" swaggertype:"string"`
}

// OptionalUUID tells an absent field apart from an explicit null.
type OptionalUUID struct {
	Set   bool
	Value *uuid.UUID
}

func (o *OptionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

func (r UpdateTaskRequest) patch() model.TaskPatch {
	p := model.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
	}
	if r.Priority != nil {
		priority := model.Priority(*r.Priority)
		p.Priority = &priority
	}
	if r.Status != nil {
		status := model.Status(*r.Status)
		p.Status = &status
	}
	if r.AssignedToID.Set {
		if r.AssignedToID.Value == nil {
			p.ClearAssignee = true
		} else {
			p.AssignedToID = r.AssignedToID.Value
		}
	}
	return p
}

// Create
// @Summary      Create a task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        task  body      CreateTaskRequest  true  "Task"
// @Success      201   {object}  model.Task
// @Failure      400   {object}  map[string]interface{}
// @Failure      401   {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), userID, service.CreateTaskInput{
		Title:        req.Title,
		Description:  req.Description,
		DueDate:      *req.DueDate,
		Priority:     model.Priority(req.Priority),
		Status:       model.Status(req.Status),
		AssignedToID: req.AssignedToID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// GetByID
// @Summary      Get a task
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  model.Task
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// List
// @Summary      List tasks ordered by due date
// @Tags         Tasks
// @Produce      json
// @Param        status        query     string  false  "TODO, IN_PROGRESS, REVIEW or COMPLETED"
// @Param        priority      query     string  false  "LOW, MEDIUM, HIGH or URGENT"
// @Param        creatorId     query     string  false  "Creator ID"
// @Param        assignedToId  query     string  false  "Assignee ID"
// @Success      200  {array}   model.Task
// @Failure      400  {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter", "details": err.Error()})
		return
	}

	tasks, err := h.tasks.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

// Update
// @Summary      Update task fields
// @Description  Only the fields present in the body change. "assignedToId": null unassigns.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Task ID"
// @Param        task  body      UpdateTaskRequest  true  "Changed fields"
// @Success      200   {object}  model.Task
// @Failure      400   {object}  map[string]interface{}
// @Failure      404   {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), id, req.patch())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Delete
// @Summary      Delete a task
// @Tags         Tasks
// @Param        id   path  string  true  "Task ID"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func taskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID format"})
		return uuid.Nil, false
	}
	return id, true
}

func parseFilter(c *gin.Context) (model.TaskFilter, error) {
	var f model.TaskFilter

	if v := c.Query("status"); v != "" {
		f.Status = model.Status(v)
		if !f.Status.IsValid() {
			return f, errors.New("invalid status")
		}
	}
	if v := c.Query("priority"); v != "" {
		f.Priority = model.Priority(v)
		if !f.Priority.IsValid() {
			return f, errors.New("invalid priority")
		}
	}
	if v := c.Query("creatorId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errors.New("invalid creatorId")
		}
		f.CreatorID = &id
	}
	if v := c.Query("assignedToId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errors.New("invalid assignedToId")
		}
		f.AssignedToID = &id
	}
	return f, nil
}

func respondError(c *gin.Context, err error) {
	var violation *rules.Violation
	switch {
	case errors.As(err, &violation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Business rule violation",
			"details": gin.H{
				"rule":   violation.Kind.Error(),
				"field":  violation.Field,
				"reason": violation.Reason,
			},
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	default:
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
