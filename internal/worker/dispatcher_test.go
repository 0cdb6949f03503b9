package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingConverter struct {
	mu      sync.Mutex
	order   []string
	gate    chan struct{}
	started chan string
}

func newRecordingConverter() *recordingConverter {
	return &recordingConverter{
		gate:    make(chan struct{}),
		started: make(chan string, 16),
	}
}

func (c *recordingConverter) Convert(ctx context.Context, input []byte) ([]byte, error) {
	name := string(input)
	c.started <- name
	if name == "block" {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Lock()
	c.order = append(c.order, name)
	c.mu.Unlock()
	return []byte("pdf:" + name), nil
}

func (c *recordingConverter) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

func waitStarted(t *testing.T, c *recordingConverter, want string) {
	t.Helper()
	select {
	case got := <-c.started:
		if got != want {
			t.Fatalf("started %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job %q never started", want)
	}
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("no result")
	}
	return Result{}
}

func TestDispatcherConvert(t *testing.T) {
	conv := newRecordingConverter()
	d := NewDispatcher(Options{MaxWorkers: 2, QueueSize: 4}, conv, zap.NewNop())
	defer d.Close()

	out, err := d.Convert(context.Background(), "s1", []byte("doc"))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if string(out) != "pdf:doc" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDispatcherRoundRobinAcrossSessions(t *testing.T) {
	conv := newRecordingConverter()
	d := NewDispatcher(Options{MaxWorkers: 1, QueueSize: 8}, conv, zap.NewNop())
	defer d.Close()

	first, err := d.Submit(context.Background(), "a", []byte("block"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitStarted(t, conv, "block")

	var results []<-chan Result
	for _, job := range []struct{ session, name string }{
		{"a", "a1"}, {"a", "a2"}, {"a", "a3"}, {"b", "b1"},
	} {
		ch, err := d.Submit(context.Background(), job.session, []byte(job.name))
		if err != nil {
			t.Fatalf("submit %s: %v", job.name, err)
		}
		results = append(results, ch)
	}
	close(conv.gate)

	waitResult(t, first)
	for _, ch := range results {
		if res := waitResult(t, ch); res.Err != nil {
			t.Fatalf("job failed: %v", res.Err)
		}
	}

	got := conv.seen()
	want := []string{"block", "a1", "b1", "a2", "a3"}
	if len(got) != len(want) {
		t.Fatalf("order %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
}

func TestDispatcherBusyWhenQueueFull(t *testing.T) {
	conv := newRecordingConverter()
	d := NewDispatcher(Options{MaxWorkers: 1, QueueSize: 1}, conv, zap.NewNop())
	defer func() {
		close(conv.gate)
		d.Close()
	}()

	if _, err := d.Submit(context.Background(), "a", []byte("block")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitStarted(t, conv, "block")

	// one job is held by the dispatcher waiting for a worker, one fills the queue
	var busy bool
	for i := 0; i < 4; i++ {
		if _, err := d.Submit(context.Background(), "a", []byte("next")); errors.Is(err, ErrDispatcherBusy) {
			busy = true
			break
		}
	}
	if !busy {
		t.Fatalf("expected ErrDispatcherBusy once the queue is full")
	}
}

func TestDispatcherSkipsCancelledJobs(t *testing.T) {
	conv := newRecordingConverter()
	d := NewDispatcher(Options{MaxWorkers: 1, QueueSize: 4}, conv, zap.NewNop())
	defer d.Close()

	if _, err := d.Submit(context.Background(), "a", []byte("block")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitStarted(t, conv, "block")

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := d.Submit(ctx, "b", []byte("skipped"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	cancel()
	close(conv.gate)

	res := waitResult(t, ch)
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
	for _, name := range conv.seen() {
		if name == "skipped" {
			t.Fatalf("cancelled job reached the converter")
		}
	}
}

func TestDispatcherConvertTimeout(t *testing.T) {
	conv := newRecordingConverter()
	d := NewDispatcher(Options{MaxWorkers: 1, QueueSize: 4}, conv, zap.NewNop())
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := d.Convert(ctx, "a", []byte("block"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDispatcherCancelSession(t *testing.T) {
	conv := newRecordingConverter()
	d := NewDispatcher(Options{MaxWorkers: 1, QueueSize: 4}, conv, zap.NewNop())
	defer d.Close()

	if _, err := d.Submit(context.Background(), "a", []byte("block")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitStarted(t, conv, "block")

	// first queued job may already be held by the dispatcher; the second is not
	if _, err := d.Submit(context.Background(), "x", []byte("x1")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ch, err := d.Submit(context.Background(), "b", []byte("b1"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	d.CancelSession("b")
	close(conv.gate)

	res := waitResult(t, ch)
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected cancelled result, got %v", res.Err)
	}
}

func TestDispatcherClosed(t *testing.T) {
	d := NewDispatcher(Options{MaxWorkers: 1}, newRecordingConverter(), zap.NewNop())
	d.Close()
	if _, err := d.Submit(context.Background(), "a", []byte("doc")); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
}
