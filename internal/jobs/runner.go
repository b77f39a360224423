package jobs

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

type Job interface {
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// TaskExecutor runs cron jobs on their schedule and plain jobs every second.
// A job is never started again while a previous run is still going.
type TaskExecutor struct {
	cron            *cron.Cron
	jobs            []Job
	cronJobs        []CronJob
	runningJobs     mapset.Set[Job]
	runningCronJobs mapset.Set[CronJob]
	muJobs          sync.Mutex
	muCronJobs      sync.Mutex
}

func NewTaskExecutor(jobs []Job, cronJobs []CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:            cron.New(),
		jobs:            jobs,
		cronJobs:        cronJobs,
		runningCronJobs: mapset.NewThreadUnsafeSet[CronJob](),
		runningJobs:     mapset.NewThreadUnsafeSet[Job](),
	}
}

// Run the jobs in its own goroutine inside the cron.
func (t *TaskExecutor) Run() error {
	for _, job := range t.cronJobs {
		err := t.cron.AddFunc(job.Schedule(), func() {
			if !acquire(&t.muCronJobs, t.runningCronJobs, job) {
				logrus.Warnf("task %T is still running, skipping this run", job)
				return
			}
			defer release(&t.muCronJobs, t.runningCronJobs, job)

			job.Run()
		})
		if err != nil {
			logrus.Errorf("failed to add task %T to cron: %v", job, err)
			return err
		}
	}

	for _, job := range t.jobs {
		err := t.cron.AddFunc("@every 1s", func() {
			if !acquire(&t.muJobs, t.runningJobs, job) {
				return
			}
			defer release(&t.muJobs, t.runningJobs, job)

			job.Run()
		})
		if err != nil {
			return err
		}
	}

	t.cron.Start()
	return nil
}

func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all tasks")
	t.cron.Stop()
}

func acquire[T comparable](mu *sync.Mutex, running mapset.Set[T], job T) bool {
	mu.Lock()
	defer mu.Unlock()

	if running.Contains(job) {
		return false
	}
	running.Add(job)
	return true
}

func release[T comparable](mu *sync.Mutex, running mapset.Set[T], job T) {
	mu.Lock()
	defer mu.Unlock()
	running.Remove(job)
}
