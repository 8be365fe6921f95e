package jobqueue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/raceops/courseflow/internal/domain/model"
	"github.com/raceops/courseflow/pkg/logger"
	"github.com/raceops/courseflow/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Analyzer runs the full per-segment pipeline against the loaded field.
// Implementations never return an error; failures are folded into the
// result with status error so one bad segment cannot take down the run.
type Analyzer interface {
	AnalyzeSegment(ctx context.Context, seg model.Segment) model.SegmentResult
}

// Sink receives finished segment results.
type Sink interface {
	Collect(ctx context.Context, res model.SegmentResult)
}

// Worker drains jobs and pushes results to the sink until the queue closes.
type Worker struct {
	queue    Queue
	analyzer Analyzer
	sink     Sink
	name     string
	done     chan struct{}
	log      logger.Logger
}

// NewWorker creates a worker bound to a queue, analyzer, and sink.
func NewWorker(q Queue, a Analyzer, s Sink, name string) *Worker {
	return &Worker{
		queue:    q,
		analyzer: a,
		sink:     s,
		name:     name,
		done:     make(chan struct{}),
		log:      logger.Get().Named(name),
	}
}

// Run processes jobs until the queue closes or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	for job := range w.queue.Dequeue(ctx) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		res := w.analyzer.AnalyzeSegment(ctx, job)
		metrics.RecordSegmentComputeLatency(float64(time.Since(start).Milliseconds()))

		w.sink.Collect(ctx, res)
		w.log.Debug(ctx, "segment analysed",
			logger.String("segment", job.ID),
			logger.String("status", string(res.Status)))
	}
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*Worker
	queue   Queue
	wg      sync.WaitGroup
	log     logger.Logger
}

// NewPool creates a pool of workerCount workers.
func NewPool(workerCount int, q Queue, a Analyzer, s Sink) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*Worker, workerCount),
		queue:   q,
		log:     logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewWorker(q, a, s, "worker-"+strconv.Itoa(i))
	}
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Drain closes the queue and waits for workers to finish remaining jobs.
func (p *Pool) Drain(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.log.Error(ctx, "error closing queue", logger.Error(err))
	}

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(poolShutdownTimeout):
		p.log.Warn(ctx, "worker pool drain timed out")
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}
