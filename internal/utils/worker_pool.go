package utils

import (
	"sync"
	"sync/atomic"
)

// Job represents a task to be executed by a worker.
type Job struct {
	Task func()
}

// WorkerPool manages a pool of workers to execute jobs.
type WorkerPool struct {
	workers   int
	jobQueue  chan Job
	idle      atomic.Int32 // workers minus jobs queued or running
	waitGroup sync.WaitGroup
}

// NewWorkerPool creates a new WorkerPool with the specified number of workers.
func NewWorkerPool(workers int) *WorkerPool {
	pool := &WorkerPool{
		workers:  workers,
		jobQueue: make(chan Job, workers),
	}
	pool.idle.Store(int32(workers))

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

// worker processes jobs from the jobQueue.
func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for job := range wp.jobQueue {
		job.Task()
		wp.idle.Add(1)
	}
}

// Submit adds a new job to the worker pool, blocking while the queue is full.
func (wp *WorkerPool) Submit(task func()) {
	wp.idle.Add(-1)
	wp.jobQueue <- Job{Task: task}
}

// TrySubmit accepts task only when a worker is free to start it right away,
// so nothing waits behind a busy worker. It reports whether task was accepted.
func (wp *WorkerPool) TrySubmit(task func()) bool {
	for {
		n := wp.idle.Load()
		if n <= 0 {
			return false
		}
		if wp.idle.CompareAndSwap(n, n-1) {
			break
		}
	}
	// outstanding jobs are below the worker count, so the buffer has room
	wp.jobQueue <- Job{Task: task}
	return true
}

// Shutdown closes the queue and waits for queued jobs to finish.
func (wp *WorkerPool) Shutdown() {
	close(wp.jobQueue)
	wp.waitGroup.Wait()
}
