// Package queue implements the in-process task queue the worker
// runtime pulls jobs from: a buffered channel plus a small pool of
// goroutine workers, a periodic scanner that recovers jobs stuck in
// `pending` (e.g. after a crash between insert and enqueue), and an
// auto-scaler that grows/shrinks the pool with load.
package queue

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/subraAntoine/apilexia/internal/repository"
	"github.com/subraAntoine/apilexia/pkg/logger"
)

// JobProcessor runs one task to completion. Implementations must
// (re)bind any network/database resources inside ProcessJob, not at
// construction time, since a worker may run many tasks across its
// lifetime and must never carry state bound to a previous task's
// scheduler context.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// TaskQueue manages job dispatch to a pool of workers.
type TaskQueue struct {
	minWorkers     int
	maxWorkers     int
	currentWorkers int64

	jobChannel chan string
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	processor  JobProcessor
	jobs       repository.JobRepository

	runningJobs map[string]context.CancelFunc
	jobsMutex   sync.RWMutex
	autoScale   bool
	lastScale   time.Time
}

func getOptimalWorkerCount() (min, max int) {
	numCPU := runtime.NumCPU()

	if workerStr := os.Getenv("QUEUE_WORKERS"); workerStr != "" {
		if workers, err := strconv.Atoi(workerStr); err == nil && workers > 0 {
			return workers, workers
		}
	}

	switch {
	case numCPU <= 2:
		return 1, 2
	case numCPU <= 4:
		return 1, 3
	case numCPU <= 8:
		return 2, 4
	default:
		return 2, 6
	}
}

// NewTaskQueue creates a new task queue. legacyWorkers, if positive,
// pins a fixed worker count and disables auto-scaling.
func NewTaskQueue(legacyWorkers int, processor JobProcessor, jobs repository.JobRepository) *TaskQueue {
	ctx, cancel := context.WithCancel(context.Background())

	min, max := getOptimalWorkerCount()
	if legacyWorkers > 0 {
		min, max = legacyWorkers, legacyWorkers
	}

	autoScale := os.Getenv("QUEUE_AUTO_SCALE") != "false" && min != max

	return &TaskQueue{
		minWorkers:     min,
		maxWorkers:     max,
		currentWorkers: int64(min),
		jobChannel:     make(chan string, 200),
		ctx:            ctx,
		cancel:         cancel,
		processor:      processor,
		jobs:           jobs,
		runningJobs:    make(map[string]context.CancelFunc),
		autoScale:      autoScale,
		lastScale:      time.Now(),
	}
}

// Start launches the worker pool, the pending-job scanner, and the
// auto-scaler (if enabled).
func (tq *TaskQueue) Start() {
	workers := int(atomic.LoadInt64(&tq.currentWorkers))
	logger.Info("Starting task queue",
		"workers", workers,
		"min_workers", tq.minWorkers,
		"max_workers", tq.maxWorkers,
		"auto_scale", tq.autoScale)

	for i := 0; i < workers; i++ {
		tq.wg.Add(1)
		go tq.worker(i)
	}

	tq.wg.Add(1)
	go tq.jobScanner()

	if tq.autoScale {
		tq.wg.Add(1)
		go tq.autoScaler()
	}
}

// Stop signals every worker to exit and waits for them to drain.
func (tq *TaskQueue) Stop() {
	logger.Info("Stopping task queue")
	tq.cancel()
	close(tq.jobChannel)
	tq.wg.Wait()
	logger.Info("Task queue stopped")
}

// EnqueueJob hands jobID to the next free worker, or fails fast if
// the queue is shutting down or its buffer is full. The returned
// error carries no retry guidance; callers treat enqueue failure as
// "stays pending, the scanner will pick it up."
func (tq *TaskQueue) EnqueueJob(jobID string) error {
	select {
	case tq.jobChannel <- jobID:
		return nil
	case <-tq.ctx.Done():
		return fmt.Errorf("queue is shutting down")
	default:
		return fmt.Errorf("queue is full")
	}
}

func (tq *TaskQueue) worker(id int) {
	defer tq.wg.Done()
	logger.Info("Worker started", "worker_id", id)

	for {
		select {
		case jobID, ok := <-tq.jobChannel:
			if !ok {
				logger.Info("Worker stopped", "worker_id", id)
				return
			}
			tq.runTask(id, jobID)

		case <-tq.ctx.Done():
			logger.Info("Worker stopped due to shutdown", "worker_id", id)
			return
		}
	}
}

func (tq *TaskQueue) runTask(workerID int, jobID string) {
	logger.WorkerInfo(workerID, jobID, "start")

	jobCtx, jobCancel := context.WithCancel(tq.ctx)
	tq.jobsMutex.Lock()
	tq.runningJobs[jobID] = jobCancel
	tq.jobsMutex.Unlock()

	defer func() {
		jobCancel()
		tq.jobsMutex.Lock()
		delete(tq.runningJobs, jobID)
		tq.jobsMutex.Unlock()
	}()

	if err := tq.processor.ProcessJob(jobCtx, jobID); err != nil {
		logger.WorkerInfo(workerID, jobID, "failed", "error", err)
	} else {
		logger.WorkerInfo(workerID, jobID, "done")
	}
}

// jobScanner periodically re-enqueues jobs stuck in `pending` — the
// recovery path for a crash between row insert and channel enqueue.
func (tq *TaskQueue) jobScanner() {
	defer tq.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tq.scanPendingJobs()
		case <-tq.ctx.Done():
			return
		}
	}
}

func (tq *TaskQueue) scanPendingJobs() {
	jobs, err := tq.jobs.ListPending(context.Background(), 200)
	if err != nil {
		logger.Warn("job scanner failed to list pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		select {
		case tq.jobChannel <- job.ID:
			logger.Info("scanner re-enqueued pending job", "job_id", job.ID)
		default:
			logger.Warn("queue full, leaving job pending", "job_id", job.ID)
		}
	}
}

// CancelQueued best-effort cancels jobID's context if a worker has
// already claimed it but not yet finished; the worker removes the
// entry from the running-job tracking map when its task returns. A
// job still waiting in the channel is not removed from it. It does
// not force-terminate in-flight backend calls.
func (tq *TaskQueue) CancelQueued(jobID string) {
	tq.jobsMutex.Lock()
	defer tq.jobsMutex.Unlock()
	if cancel, ok := tq.runningJobs[jobID]; ok {
		cancel()
	}
}

// IsRunning reports whether a worker currently holds jobID.
func (tq *TaskQueue) IsRunning(jobID string) bool {
	tq.jobsMutex.RLock()
	defer tq.jobsMutex.RUnlock()
	_, ok := tq.runningJobs[jobID]
	return ok
}

func (tq *TaskQueue) autoScaler() {
	defer tq.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tq.checkAndScale()
		case <-tq.ctx.Done():
			return
		}
	}
}

func (tq *TaskQueue) checkAndScale() {
	if time.Since(tq.lastScale) < time.Minute {
		return
	}

	queueSize := len(tq.jobChannel)
	currentWorkers := int(atomic.LoadInt64(&tq.currentWorkers))

	tq.jobsMutex.RLock()
	runningCount := len(tq.runningJobs)
	tq.jobsMutex.RUnlock()

	switch {
	case queueSize > 10 && currentWorkers < tq.maxWorkers:
		newCount := currentWorkers + 1
		logger.Info("scaling workers up", "from", currentWorkers, "to", newCount, "queue_size", queueSize)
		atomic.StoreInt64(&tq.currentWorkers, int64(newCount))
		tq.wg.Add(1)
		go tq.worker(newCount - 1)
		tq.lastScale = time.Now()

	case queueSize == 0 && runningCount <= 1 && currentWorkers > tq.minWorkers:
		newCount := currentWorkers - 1
		logger.Info("scaling workers down", "from", currentWorkers, "to", newCount)
		atomic.StoreInt64(&tq.currentWorkers, int64(newCount))
		tq.lastScale = time.Now()
	}
}

// Stats reports a snapshot of queue and worker-pool state.
func (tq *TaskQueue) Stats() map[string]interface{} {
	tq.jobsMutex.RLock()
	runningCount := len(tq.runningJobs)
	tq.jobsMutex.RUnlock()

	return map[string]interface{}{
		"queue_size":      len(tq.jobChannel),
		"queue_capacity":  cap(tq.jobChannel),
		"current_workers": int(atomic.LoadInt64(&tq.currentWorkers)),
		"min_workers":     tq.minWorkers,
		"max_workers":     tq.maxWorkers,
		"auto_scale":      tq.autoScale,
		"running_jobs":    runningCount,
	}
}
