package rules

import "taskhub/internal/model"

// next is the strict workflow: each status may only advance one step.
var next = map[model.Status]model.Status{
	model.StatusTodo:       model.StatusInProgress,
	model.StatusInProgress: model.StatusReview,
	model.StatusReview:     model.StatusCompleted,
}

func isAllowedTransition(from, to model.Status) bool {
	if from == to {
		return true
	}
	n, ok := next[from]
	return ok && n == to
}
