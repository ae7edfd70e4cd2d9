package main

import (
	"bytes"
	"testing"
	"time"

	"taskhub/internal/model"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestOverdueTasks(t *testing.T) {
	tasks := []model.Task{
		{Title: "late", DueDate: now.Add(-time.Hour), Status: model.StatusTodo},
		{Title: "done late", DueDate: now.Add(-time.Hour), Status: model.StatusCompleted},
		{Title: "upcoming", DueDate: now.Add(time.Hour), Status: model.StatusInProgress},
	}

	got := overdueTasks(tasks, now)

	assert.Len(t, got, 1)
	assert.Equal(t, "late", got[0].Title)
}

func TestRenderList(t *testing.T) {
	var buf bytes.Buffer

	renderList(&buf, "tasks?status=TODO", []model.Task{
		{Title: "late", DueDate: now.Add(-time.Hour), Status: model.StatusTodo, Priority: model.PriorityHigh},
		{Title: "soon", DueDate: now.Add(time.Hour), Status: model.StatusTodo, Priority: model.PriorityLow},
	}, now)

	out := buf.String()
	assert.Contains(t, out, "== tasks?status=TODO (2)")
	assert.Contains(t, out, "! TODO        HIGH")
	assert.Contains(t, out, "  TODO        LOW")
}

func TestRenderList_Empty(t *testing.T) {
	var buf bytes.Buffer

	renderList(&buf, "overdue", nil, now)

	assert.Contains(t, buf.String(), "(none)")
}

func TestConnectFlags_RequireCredentials(t *testing.T) {
	f := connectFlags{server: "http://localhost:1"}

	_, _, err := f.connect(t.Context())

	assert.Error(t, err)
}

func TestConnectFlags_RejectUnknownStatus(t *testing.T) {
	f := connectFlags{server: "http://localhost:1", token: "t", status: "DONE"}

	_, _, err := f.connect(t.Context())

	assert.ErrorContains(t, err, "unknown status")
}
