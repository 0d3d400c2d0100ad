package packsync

import (
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Clock supplies the current time to the scheduler and the resolver.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Scheduler runs delayed tasks: temporary override expiry and delayed pack sends.
// Due tasks are executed by a worker pool.
type Scheduler struct {
	queue *taskQueue
	clock Clock
	log   *slog.Logger

	// Worker pool
	workers    int
	workerPool chan func()
	workerWG   sync.WaitGroup

	// Execution state
	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	tickRate time.Duration
}

// newScheduler creates a new scheduler.
func newScheduler(clock Clock, log *slog.Logger) *Scheduler {
	workers := max(runtime.GOMAXPROCS(0), 1)

	return &Scheduler{
		queue:      newTaskQueue(),
		clock:      clock,
		log:        log,
		workers:    workers,
		workerPool: make(chan func(), workers*4),
		tickRate:   50 * time.Millisecond, // one game tick
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the scheduler's tick loop.
func (s *Scheduler) Start() {
	if s.running.Swap(true) {
		return
	}

	for i := 0; i < s.workers; i++ {
		s.workerWG.Add(1)
		go s.worker()
	}
	go s.tickLoop()
}

// Stop shuts the scheduler down and drops pending tasks.
func (s *Scheduler) Stop() {
	if !s.running.Swap(false) {
		return
	}

	close(s.stopCh)
	<-s.doneCh

	close(s.workerPool)
	s.workerWG.Wait()
	s.queue.Clear()
}

// ScheduleAt schedules fn to run at the given time. A time in the past runs on the
// next tick.
func (s *Scheduler) ScheduleAt(at time.Time, fn func()) *TaskHandle {
	task := &scheduledTask{executeAt: at, run: fn}
	s.queue.Push(task)
	return &TaskHandle{task: task}
}

// Schedule schedules fn to run after delay.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) *TaskHandle {
	return s.ScheduleAt(s.clock.Now().Add(delay), fn)
}

// Pending returns the number of queued tasks, cancelled ones included.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

func (s *Scheduler) worker() {
	defer s.workerWG.Done()
	for fn := range s.workerPool {
		fn()
	}
}

func (s *Scheduler) tickLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(s.clock.Now())
		case <-s.queue.Notify():
			s.tick(s.clock.Now())
		}
	}
}

// tick runs every task due at now and waits for them to finish.
func (s *Scheduler) tick(now time.Time) {
	due := s.queue.PopDue(now)
	if len(due) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, task := range due {
		wg.Add(1)
		job := func() {
			defer wg.Done()
			s.execute(task)
		}

		if !s.running.Load() {
			job()
			continue
		}
		select {
		case s.workerPool <- job:
		default:
			// Worker pool full, run inline
			job()
		}
	}
	wg.Wait()
}

func (s *Scheduler) execute(task *scheduledTask) {
	if task.cancelled.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("packsync: panic in scheduled task", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task.run()
}
