package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdt-io/bdt/internal/metrics"
)

type countingTask struct {
	name     string
	schedule string
	runs     atomic.Int32
	err      error
}

func (t *countingTask) Name() string           { return t.name }
func (t *countingTask) Schedule() string       { return t.schedule }
func (t *countingTask) Timeout() time.Duration { return time.Second }
func (t *countingTask) Run(context.Context) error {
	t.runs.Add(1)
	return t.err
}

func TestRegistry(t *testing.T) {
	reg := NewTaskRegistry()
	reg.Register(&countingTask{name: "b"})
	reg.Register(&countingTask{name: "a"})

	assert.Equal(t, []string{"a", "b"}, reg.Names())
	require.Len(t, reg.All(), 2)
	assert.Equal(t, "a", reg.All()[0].Name())
	_, ok := reg.Get("a")
	assert.True(t, ok)
	_, ok = reg.Get("c")
	assert.False(t, ok)
}

func TestRunOnceRecordsMetrics(t *testing.T) {
	reg := NewTaskRegistry()
	ok := &countingTask{name: "ok", schedule: "@every 1h"}
	bad := &countingTask{name: "bad", schedule: "@every 1h", err: errors.New("boom")}
	reg.Register(ok)
	reg.Register(bad)
	m := metrics.New()
	r := NewRunner(reg, m, zerolog.Nop())

	require.NoError(t, r.RunOnce(context.Background(), "ok"))
	assert.Error(t, r.RunOnce(context.Background(), "bad"))
	assert.Error(t, r.RunOnce(context.Background(), "missing"))

	assert.Equal(t, int32(1), ok.runs.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskRuns.WithLabelValues("ok", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskRuns.WithLabelValues("bad", "failure")))
}

func TestStartRunsScheduledTasks(t *testing.T) {
	reg := NewTaskRegistry()
	task := &countingTask{name: "tick", schedule: "* * * * * *"}
	reg.Register(task)
	r := NewRunner(reg, nil, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Start(ctx))
	assert.GreaterOrEqual(t, task.runs.Load(), int32(1))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	reg := NewTaskRegistry()
	reg.Register(&countingTask{name: "broken", schedule: "not a schedule"})
	r := NewRunner(reg, nil, zerolog.Nop())

	assert.Error(t, r.Start(context.Background()))
}

func TestStartSkipsUnscheduledTasks(t *testing.T) {
	reg := NewTaskRegistry()
	task := &countingTask{name: "manual"}
	reg.Register(task)
	r := NewRunner(reg, nil, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Start(ctx))
	assert.Zero(t, task.runs.Load())
}
