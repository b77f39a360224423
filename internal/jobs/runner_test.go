package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emrgen/impact/internal/model"
	"github.com/emrgen/impact/internal/service"
	"github.com/emrgen/impact/internal/store"
	"github.com/emrgen/impact/internal/tester"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs    atomic.Int32
	active  atomic.Int32
	overlap atomic.Bool
	block   chan struct{}
}

func (c *countingJob) Schedule() string {
	return "@every 1s"
}

func (c *countingJob) Run() {
	if c.active.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.active.Add(-1)

	c.runs.Add(1)
	if c.block != nil {
		<-c.block
	}
}

func TestTaskExecutor_RunsJobs(t *testing.T) {
	cronJob := &countingJob{}
	job := &countingJob{}

	executor := NewTaskExecutor([]Job{job}, []CronJob{cronJob})
	require.NoError(t, executor.Run())
	defer executor.Stop()

	assert.Eventually(t, func() bool {
		return cronJob.runs.Load() >= 2 && job.runs.Load() >= 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestTaskExecutor_SkipsRunningJob(t *testing.T) {
	job := &countingJob{block: make(chan struct{})}

	executor := NewTaskExecutor(nil, []CronJob{job})
	require.NoError(t, executor.Run())
	defer executor.Stop()

	// two more ticks pass while the first run is blocked
	time.Sleep(3500 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	close(job.block)
	assert.Eventually(t, func() bool {
		return job.runs.Load() >= 2
	}, 3*time.Second, 50*time.Millisecond)
	assert.False(t, job.overlap.Load())
}

type badSchedule struct{ countingJob }

func (b *badSchedule) Schedule() string {
	return "every now and then"
}

func TestTaskExecutor_BadSchedule(t *testing.T) {
	executor := NewTaskExecutor(nil, []CronJob{&badSchedule{}})
	assert.Error(t, executor.Run())
}

func TestOrphanSweepTask(t *testing.T) {
	db := tester.TestDB(t)
	s := store.NewGormStore(db, nil)
	ctx := context.Background()

	require.NoError(t, s.CreateImpact(ctx, &model.Impact{
		ID:                    uuid.New().String(),
		ArticleID:             uuid.New().String(),
		ImpactedEntity:        "Shippers",
		Impact:                "Rerouted cargo",
		Source:                "system",
		SupportingEvidenceIDs: []string{},
	}))

	task := NewOrphanSweepTask(service.NewMaintenanceService(s, nil, 0), "@every 10m")
	assert.Equal(t, "@every 10m", task.Schedule())
	task.Run()

	var n int64
	require.NoError(t, db.Model(&model.Impact{}).Count(&n).Error)
	assert.Zero(t, n)
}
