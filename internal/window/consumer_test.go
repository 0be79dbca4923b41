package window

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/arb-scanner/internal/detect"
	"github.com/rickgao/arb-scanner/internal/model"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []CloseEventPayload
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, ev CloseEventPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestConsumerForwardsToOutputAndBroadcastsCloses(t *testing.T) {
	rec := &recordingBroadcaster{}
	c := NewConsumer(rec, nil)

	events := make(chan detect.WindowEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, events)
		close(done)
	}()

	open := model.WindowOpenEvent{MarketID: "m1"}
	close_ := model.WindowCloseEvent{MarketID: "m1", ClosingSpread: 0.03, ClosingSpreadCategory: model.SpreadSmall}
	events <- detect.WindowEvent{Open: &open}
	events <- detect.WindowEvent{Close: &close_}

	deadline := time.Now().Add(time.Second)
	for c.Output.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c.Output.Len() != 2 {
		t.Fatalf("got %d queued events, want 2", c.Output.Len())
	}
	if rec.count() != 1 {
		t.Fatalf("got %d broadcasts, want 1 (only closes)", rec.count())
	}

	cancel()
	<-done
}

func TestConsumerClosesOutputWhenInputCloses(t *testing.T) {
	c := NewConsumer(nil, nil)
	events := make(chan detect.WindowEvent)
	close(events)

	c.Run(context.Background(), events)

	if c.Output.Send(detect.WindowEvent{}) {
		t.Fatal("expected Output to be closed once the input channel closes")
	}
}

func TestNoopBroadcasterDoesNotPanic(t *testing.T) {
	NoopBroadcaster{}.Broadcast(context.Background(), CloseEventPayload{})
}
