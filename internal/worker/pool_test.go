package worker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

type echoConverter struct{}

func (echoConverter) Convert(_ context.Context, input []byte) ([]byte, error) {
	return input, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached")
}

func TestPoolWarmUpAndExpiry(t *testing.T) {
	p := newJobChannelPool(1, 3, 20*time.Millisecond, echoConverter{}, zap.NewNop())
	defer p.close()

	for i := 0; i < 3; i++ {
		p.spawnWorker()
	}
	if running, _ := p.size(); running != 3 {
		t.Fatalf("running = %d, want 3", running)
	}

	// idle workers above the minimum are retired
	waitFor(t, func() bool {
		running, _ := p.size()
		return running == 1
	})
}

func TestPoolSpawnRespectsMax(t *testing.T) {
	p := newJobChannelPool(0, 2, time.Minute, echoConverter{}, zap.NewNop())
	defer p.close()

	for i := 0; i < 5; i++ {
		p.spawnWorker()
	}
	running, _ := p.size()
	if running != 2 {
		t.Fatalf("running = %d, want 2", running)
	}
}

func TestPoolAcquireRunsJob(t *testing.T) {
	p := newJobChannelPool(0, 1, time.Minute, echoConverter{}, zap.NewNop())
	defer p.close()

	ch := p.acquire()
	if ch == nil {
		t.Fatalf("expected a worker")
	}
	if id := p.workerID(ch); id != 1 {
		t.Fatalf("worker id = %d, want 1", id)
	}
	result := make(chan Result, 1)
	ch <- Job{Type: Convert, Ctx: context.Background(), Input: []byte("x"), result: result}
	select {
	case res := <-result:
		if string(res.Output) != "x" {
			t.Fatalf("unexpected output %q", res.Output)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no result")
	}
}

func TestPoolAcquireAfterClose(t *testing.T) {
	p := newJobChannelPool(0, 1, time.Minute, echoConverter{}, zap.NewNop())
	p.close()
	if ch := p.acquire(); ch != nil {
		t.Fatalf("expected nil after close")
	}
}
