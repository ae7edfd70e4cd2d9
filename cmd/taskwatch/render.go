package main

import (
	"fmt"
	"io"
	"time"

	"taskhub/internal/model"
)

const timeLayout = "2006-01-02 15:04"

func renderList(w io.Writer, title string, tasks []model.Task, now time.Time) {
	fmt.Fprintf(w, "\n== %s (%d) @ %s\n", title, len(tasks), now.Format("15:04:05"))
	if len(tasks) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, t := range tasks {
		marker := " "
		if t.IsOverdue(now) {
			marker = "!"
		}
		fmt.Fprintf(w, "%s %-11s %-6s %s  %s\n", marker, t.Status, t.Priority, t.DueDate.Local().Format(timeLayout), t.Title)
	}
}

func renderToast(w io.Writer, t model.Task) {
	fmt.Fprintf(w, "\n🔔 Assigned to you: %s (due %s)\n", t.Title, t.DueDate.Local().Format(timeLayout))
}

// overdueTasks keeps the tasks past their due date that are not completed.
func overdueTasks(tasks []model.Task, now time.Time) []model.Task {
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if t.IsOverdue(now) {
			out = append(out, t)
		}
	}
	return out
}
