package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrDispatcherBusy   = errors.New("conversion queue full")
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

type Options struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type sessionQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher runs jobs on a bounded pool, round-robin across sessions so one
// busy operator cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job
	logger   *zap.Logger

	mu        sync.Mutex
	queues    map[string]*sessionQueue
	ready     *list.List // LRU queue of session keys
	positions map[string]*list.Element

	closeOnce sync.Once
	quit      chan struct{}
	done      chan struct{}
}

func NewDispatcher(opts Options, converter Converter, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	d := &Dispatcher{
		pool:      newJobChannelPool(opts.MinWorkers, opts.MaxWorkers, opts.IdleTimeout, converter, logger),
		jobQueue:  make(chan Job, opts.QueueSize),
		logger:    logger,
		queues:    make(map[string]*sessionQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for i := 0; i < opts.MinWorkers; i++ {
		d.pool.spawnWorker()
	}
	go d.run()
	return d
}

// Submit queues a conversion without blocking.
func (d *Dispatcher) Submit(ctx context.Context, sessionKey string, input []byte) (<-chan Result, error) {
	job := Job{Type: Convert, Ctx: ctx, SessionKey: sessionKey, Input: input, result: make(chan Result, 1)}
	select {
	case <-d.quit:
		return nil, ErrDispatcherClosed
	default:
	}
	select {
	case d.jobQueue <- job:
		return job.result, nil
	default:
		return nil, ErrDispatcherBusy
	}
}

// Convert submits a job and waits for its result or for ctx to end.
func (d *Dispatcher) Convert(ctx context.Context, sessionKey string, input []byte) ([]byte, error) {
	ch, err := d.Submit(ctx, sessionKey, input)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		return res.Output, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CancelSession drops every queued job of the session.
func (d *Dispatcher) CancelSession(sessionKey string) {
	d.drainIncoming()

	d.mu.Lock()
	q := d.queues[sessionKey]
	delete(d.queues, sessionKey)
	if elem, ok := d.positions[sessionKey]; ok {
		d.ready.Remove(elem)
		delete(d.positions, sessionKey)
	}
	d.mu.Unlock()

	if q != nil {
		for _, job := range q.jobs {
			job.reply(Result{Err: context.Canceled})
		}
	}
}

// Close stops accepting jobs, fails the queued ones and stops idle workers.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.quit)
		d.pool.close()
		<-d.done

		d.drainIncoming()
		d.mu.Lock()
		queues := d.queues
		d.queues = make(map[string]*sessionQueue)
		d.ready.Init()
		d.positions = make(map[string]*list.Element)
		d.mu.Unlock()
		for _, q := range queues {
			for _, job := range q.jobs {
				job.reply(Result{Err: ErrDispatcherClosed})
			}
		}
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		if !d.dispatchOne() {
			select {
			case <-d.quit:
				return
			case job := <-d.jobQueue:
				d.enqueueJob(job)
			}
			continue
		}
		select {
		case <-d.quit:
			return
		default:
		}
	}
}

func (d *Dispatcher) drainIncoming() {
	for {
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		default:
			return
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.SessionKey]
	if q == nil {
		q = &sessionQueue{}
		d.queues[job.SessionKey] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.SessionKey] = d.ready.PushBack(job.SessionKey)
}

func (d *Dispatcher) hasReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready.Len() > 0
}

// popLocked takes the next job of the session at the front of the LRU queue.
func (d *Dispatcher) popLocked() (Job, bool) {
	elem := d.ready.Front()
	if elem == nil {
		return Job{}, false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		d.ready.MoveToBack(elem)
	}
	return job, true
}

// dispatchOne waits for a free worker, then hands it the next fair job.
// Jobs whose context already ended are answered without a worker.
func (d *Dispatcher) dispatchOne() bool {
	if !d.hasReady() {
		return false
	}
	workerChan := d.pool.acquire()
	if workerChan == nil {
		return false
	}
	// pick up everything submitted while waiting so the choice is fair
	d.drainIncoming()

	for {
		d.mu.Lock()
		job, ok := d.popLocked()
		d.mu.Unlock()
		if !ok {
			d.pool.Release(workerChan)
			return true
		}
		if job.Ctx != nil && job.Ctx.Err() != nil {
			job.reply(Result{Err: job.Ctx.Err()})
			continue
		}
		d.logger.Debug("dispatch job",
			zap.Stringer("type", job.Type),
			zap.String("session", job.SessionKey),
			zap.Int("worker", d.pool.workerID(workerChan)),
		)
		workerChan <- job
		return true
	}
}
