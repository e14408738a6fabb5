package runner

import (
	"context"
	"sort"
	"time"
)

// Task is a background job run on a cron schedule.
type Task interface {
	Name() string
	// Schedule is a six-field cron expression (with seconds). An empty
	// schedule keeps the task registered for RunOnce only.
	Schedule() string
	Run(ctx context.Context) error
	Timeout() time.Duration
}

// TaskRegistry holds the tasks of a process by name.
type TaskRegistry struct {
	tasks map[string]Task
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: make(map[string]Task)}
}

// Register adds task, replacing any task of the same name.
func (r *TaskRegistry) Register(task Task) {
	r.tasks[task.Name()] = task
}

func (r *TaskRegistry) Get(name string) (Task, bool) {
	task, ok := r.tasks[name]
	return task, ok
}

// All returns the tasks sorted by name.
func (r *TaskRegistry) All() []Task {
	out := make([]Task, 0, len(r.tasks))
	for _, name := range r.Names() {
		out = append(out, r.tasks[name])
	}
	return out
}

func (r *TaskRegistry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
