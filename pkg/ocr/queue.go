// Package ocr runs document OCR jobs one at a time. The engine is too heavy
// to run concurrently, so a Queue never has more than one job in flight.
package ocr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/eduardo5010/study-cycle/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrQueueClosed = goerr.New("ocr queue is closed")
)

// Processor handles one document
type Processor interface {
	Process(ctx context.Context, job model.OCRJob) error
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, job model.OCRJob) error

func (f ProcessorFunc) Process(ctx context.Context, job model.OCRJob) error {
	return f(ctx, job)
}

type queuedJob struct {
	ctx context.Context
	job model.OCRJob
}

// Queue is a FIFO of OCR jobs drained by at most one worker. It is idle when
// the queue is empty and no job runs, and running otherwise.
type Queue struct {
	processor Processor

	mu     sync.Mutex
	jobs   []queuedJob
	busy   bool
	closed bool
	// idle is closed whenever the worker is not running
	idle chan struct{}
}

// NewQueue creates an idle queue
func NewQueue(processor Processor) *Queue {
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		processor: processor,
		idle:      idle,
	}
}

// Enqueue appends a job and starts the worker if it is idle. It never blocks
// on processing. Jobs submitted after Close are dropped with a warning.
func (q *Queue) Enqueue(ctx context.Context, path string, contentID model.ContentID, userID model.LearnerID) {
	job := model.OCRJob{Path: path, ContentID: contentID, UserID: userID}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		logging.From(ctx).Warn("dropping OCR job",
			"error", ErrQueueClosed,
			"path", path,
			"content_id", contentID)
		return
	}

	// jobs outlive the request that submitted them
	q.jobs = append(q.jobs, queuedJob{ctx: context.WithoutCancel(ctx), job: job})
	if q.busy {
		return
	}
	q.busy = true
	q.idle = make(chan struct{})
	go q.drain(q.idle)
}

func (q *Queue) drain(idle chan struct{}) {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.busy = false
			close(idle)
			q.mu.Unlock()
			return
		}
		next := q.jobs[0]
		q.jobs[0] = queuedJob{}
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		q.run(next)
	}
}

func (q *Queue) run(qj queuedJob) {
	logger := logging.From(qj.ctx).With("path", qj.job.Path, "content_id", qj.job.ContentID)
	started := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = goerr.New("OCR processor panicked", goerr.V("panic", fmt.Sprint(r)))
			}
		}()
		return q.processor.Process(qj.ctx, qj.job)
	}()

	if err != nil {
		logger.Warn("OCR job failed", "error", err)
		return
	}
	logger.Info("OCR job completed", "duration", time.Since(started))
}

// Len returns the number of jobs waiting, excluding the one running
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Busy reports whether a job is running
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// Wait blocks until the queue is idle or ctx is done
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "OCR queue did not drain",
			goerr.V("pending", q.Len()))
	}
}

// Close stops accepting jobs and waits for the queued ones to finish
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return q.Wait(ctx)
}
