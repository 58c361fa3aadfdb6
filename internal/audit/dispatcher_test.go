package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{Action: "LOGIN"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink, nil)

	d.Emit(context.Background(), Event{Action: "LOGIN", UserID: "u1"})
	d.Emit(context.Background(), Event{Action: "LOGOUT", UserID: "u1"})
	d.Close()

	first := <-sink.Events()
	second := <-sink.Events()
	if first.Action != "LOGIN" || second.Action != "LOGOUT" {
		t.Fatalf("unexpected order: %s, %s", first.Action, second.Action)
	}
	if first.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be stamped on emit")
	}
}

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	seen    int
}

func (s *blockingSink) Record(ctx context.Context, _ Event) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	s.mu.Lock()
	s.seen++
	s.mu.Unlock()
	return nil
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Action: "CREDIT_USE"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a saturated buffer")
	}

	close(sink.release)
	d.Close()
}

func TestDispatcherReportsSinkErrors(t *testing.T) {
	errBoom := errors.New("boom")
	var (
		mu  sync.Mutex
		got []error
	)
	sink := SinkFunc(func(context.Context, Event) error { return errBoom })
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink, func(_ Event, err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	})

	d.Emit(context.Background(), Event{Action: "LOGIN"})
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || !errors.Is(got[0], errBoom) {
		t.Fatalf("expected one reported error, got %v", got)
	}
	if d.Failed() != 1 {
		t.Fatalf("expected failed=1, got %d", d.Failed())
	}
}

func TestDispatcherEmitAfterCloseIsIgnored(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, SinkTimeout: time.Second}, sink, nil)
	d.Close()
	d.Emit(context.Background(), Event{Action: "LOGIN"})

	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event after close: %+v", ev)
	default:
	}
}
