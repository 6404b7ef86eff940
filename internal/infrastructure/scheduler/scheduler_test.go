package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Description() string           { return "test job" }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func TestRegister_Errors(t *testing.T) {
	s := New(Config{})
	job := funcJob{name: "a", run: func(context.Context) error { return nil }}

	assert.ErrorIs(t, s.Register(nil, Every(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrNilSchedule)
	require.NoError(t, s.Register(job, Every(time.Second)))
	assert.ErrorIs(t, s.Register(job, Every(time.Second)), ErrJobAlreadyExists)

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunNow_RecordsHistory(t *testing.T) {
	s := New(Config{JobTimeout: time.Second})
	boom := errors.New("boom")
	require.NoError(t, s.Register(funcJob{name: "fail", run: func(context.Context) error { return boom }}, Every(time.Hour)))

	var completed atomic.Int32
	s.OnJobComplete(func(JobResult) { completed.Add(1) })

	res, err := s.RunNow(context.Background(), "fail")
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Success())
	assert.True(t, res.Manual)
	assert.Equal(t, int32(1), completed.Load())
	require.Len(t, s.History(0), 1)
}

func TestJobTimeout(t *testing.T) {
	s := New(Config{JobTimeout: 20 * time.Millisecond})
	require.NoError(t, s.Register(funcJob{name: "slow", run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}, Every(time.Hour)))

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStart_RunOnStartAndNoOverlap(t *testing.T) {
	s := New(Config{Tick: 5 * time.Millisecond, RunOnStart: true})

	var runs atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.Register(funcJob{name: "sync", run: func(ctx context.Context) error {
		runs.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	info, err := s.GetJobInfo("sync")
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, "@every 1ms", info.Schedule)

	close(release)
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}
