package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type JobType int

const (
	Convert JobType = iota
	Stop
)

func (t JobType) String() string {
	switch t {
	case Convert:
		return "convert"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("job(%d)", int(t))
	}
}

// Converter is the blocking operation executed by workers.
type Converter interface {
	Convert(ctx context.Context, input []byte) ([]byte, error)
}

type Result struct {
	Output []byte
	Err    error
}

type Job struct {
	Type       JobType
	Ctx        context.Context
	SessionKey string
	Input      []byte
	result     chan Result
}

func (j Job) reply(res Result) {
	if j.result != nil {
		j.result <- res
	}
}

type Worker struct {
	id         int
	pool       *jobChannelPool
	converter  Converter
	jobChannel chan Job
	logger     *zap.Logger
}

func newWorker(id int, pool *jobChannelPool, converter Converter, logger *zap.Logger) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		converter:  converter,
		jobChannel: make(chan Job),
		logger:     logger,
	}
}

func (w *Worker) Start() {
	go func() {
		for {
			if !w.pool.Release(w.jobChannel) {
				w.pool.retire(w.jobChannel)
				return
			}
			job := <-w.jobChannel
			if job.Type == Stop {
				w.logger.Debug("worker stopped", zap.Int("worker", w.id))
				w.pool.retire(w.jobChannel)
				return
			}
			w.handle(job)
		}
	}()
}

func (w *Worker) handle(job Job) {
	ctx := job.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		job.reply(Result{Err: err})
		return
	}
	out, err := w.converter.Convert(ctx, job.Input)
	if err != nil {
		w.logger.Debug("job failed",
			zap.Int("worker", w.id),
			zap.String("session", job.SessionKey),
			zap.Error(err),
		)
	}
	job.reply(Result{Output: out, Err: err})
}
