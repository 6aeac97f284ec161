package rip1

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunExitsWhenContextCancelled(t *testing.T) {
	d, _, _ := newTestDaemon(t)

	cfg := DefaultConfig()
	cfg.AdvertisementInterval = 10 * time.Millisecond
	cfg.RequestInterval = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, cfg) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRunSkipsDisabledLoops(t *testing.T) {
	d, _, fake := newTestDaemon(t)

	cfg := DefaultConfig()
	cfg.AdvertisementInterval = 0
	cfg.RequestInterval = 0

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := d.Run(ctx, cfg)
	assert.NoError(t, err)
	assert.Empty(t, fake.Sent())
}

type fakeRedistributeTarget struct {
	calls int
}

func (f *fakeRedistributeTarget) Redistribute(ctx context.Context) error {
	f.calls++
	return nil
}

func TestRunRedistributeTriggerConsumerCallsTargetOnSignal(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	d.triggerEnabled = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target := &fakeRedistributeTarget{}
	done := make(chan struct{})
	go func() {
		d.RunRedistributeTriggerConsumer(ctx, target)
		close(done)
	}()

	d.triggerRedistribution()

	assert.Eventually(t, func() bool { return target.calls == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunRedistributeTriggerConsumer did not return after context cancellation")
	}
}
