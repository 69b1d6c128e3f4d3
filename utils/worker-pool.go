package utils

import (
	"runtime"
	"sync"
)

// WorkerPool manages a pool of goroutines for parallel processing of
// independent items. The repair engine itself is strictly sequential; the
// pool is only used for read-only phases such as parsing input features.
type WorkerPool struct {
	NumWorkers int
	JobQueue   chan interface{}
	Results    chan interface{}
	wg         sync.WaitGroup
	started    bool
	mu         sync.Mutex
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
func NewWorkerPool(numWorkers int, jobBufferSize int, resultBufferSize int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	return &WorkerPool{
		NumWorkers: numWorkers,
		JobQueue:   make(chan interface{}, jobBufferSize),
		Results:    make(chan interface{}, resultBufferSize),
	}
}

// StartWorkers starts the worker goroutines with the given work function.
func (wp *WorkerPool) StartWorkers(workFunc func(interface{}) interface{}) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return
	}

	wp.started = true
	wp.wg.Add(wp.NumWorkers)

	for i := 0; i < wp.NumWorkers; i++ {
		go wp.worker(workFunc)
	}
}

func (wp *WorkerPool) worker(workFunc func(interface{}) interface{}) {
	defer wp.wg.Done()

	for job := range wp.JobQueue {
		wp.Results <- workFunc(job)
	}
}

// SubmitJob adds a job to the job queue.
func (wp *WorkerPool) SubmitJob(job interface{}) {
	wp.JobQueue <- job
}

// ParallelProcessor provides batch processing over a worker pool.
type ParallelProcessor struct {
	NumWorkers int
}

// NewParallelProcessor creates a new parallel processor.
func NewParallelProcessor(numWorkers int) *ParallelProcessor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &ParallelProcessor{NumWorkers: numWorkers}
}

// ProcessBatch processes a batch of items in parallel and returns the results
// in completion order.
func (pp *ParallelProcessor) ProcessBatch(items []interface{},
	workFunc func(interface{}) interface{},
	progressName string) []interface{} {

	if len(items) == 0 {
		return nil
	}

	tracker := NewProgressTracker(int64(len(items)), progressName)
	wp := NewWorkerPool(pp.NumWorkers, len(items), len(items))

	wp.StartWorkers(func(job interface{}) interface{} {
		result := workFunc(job)
		tracker.Increment()
		return result
	})

	for _, item := range items {
		wp.SubmitJob(item)
	}
	close(wp.JobQueue)

	results := make([]interface{}, 0, len(items))
	for i := 0; i < len(items); i++ {
		if result := <-wp.Results; result != nil {
			results = append(results, result)
		}
	}

	wp.wg.Wait()
	close(wp.Results)
	tracker.Done()

	return results
}
