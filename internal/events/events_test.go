package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRingBuffer_Log(t *testing.T) {
	rb := NewRingBuffer(10)

	rb.Log(Event{Type: EventMatched, Handler: "handlers.Mint", Selector: "a1b2c3d4"})

	if rb.Count() != 1 {
		t.Errorf("Count() = %d, want 1", rb.Count())
	}
	recent := rb.Recent(1)
	if len(recent) != 1 {
		t.Fatalf("Recent(1) len = %d, want 1", len(recent))
	}
	e := recent[0]
	if e.Handler != "handlers.Mint" {
		t.Errorf("Handler = %q", e.Handler)
	}
	if e.ID == "" {
		t.Error("ID should be assigned")
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp should be assigned")
	}
	if e.Severity != SeverityInfo {
		t.Errorf("Severity = %q, want info", e.Severity)
	}
}

func TestRingBuffer_Overflow(t *testing.T) {
	rb := NewRingBuffer(5)
	for i := 0; i < 10; i++ {
		rb.Log(Event{Type: EventNoMatch, Message: fmt.Sprint(i)})
	}

	if rb.Count() != 5 {
		t.Errorf("Count() = %d, want 5", rb.Count())
	}
	recent := rb.Recent(10)
	if len(recent) != 5 {
		t.Fatalf("Recent len = %d, want 5", len(recent))
	}
	for i, want := range []string{"9", "8", "7", "6", "5"} {
		if recent[i].Message != want {
			t.Errorf("recent[%d] = %q, want %q", i, recent[i].Message, want)
		}
	}
}

func TestRingBuffer_Filters(t *testing.T) {
	rb := NewRingBuffer(20)
	rb.Log(Event{Type: EventCompleted, Handler: "handlers.Mint"})
	rb.Log(Event{Type: EventFailed, Handler: "handlers.Burn"})
	rb.Log(Event{Type: EventCompleted, Handler: "handlers.Burn"})
	rb.Log(Event{Type: EventNoMatch})

	if got := rb.RecentByHandler("handlers.Burn", 10); len(got) != 2 {
		t.Errorf("RecentByHandler len = %d, want 2", len(got))
	}
	got := rb.RecentByType(EventCompleted, 10)
	if len(got) != 2 || got[0].Handler != "handlers.Burn" {
		t.Errorf("RecentByType = %+v", got)
	}
	if got := rb.RecentByType(EventCompleted, 1); len(got) != 1 {
		t.Errorf("limit not honoured: %d", len(got))
	}
	if rb.Recent(0) != nil {
		t.Error("Recent(0) should be nil")
	}
}

func TestRingBuffer_Subscribe(t *testing.T) {
	rb := NewRingBuffer(10)

	var all, failures int32
	unsubscribe := rb.Subscribe(func(Event) { atomic.AddInt32(&all, 1) })
	rb.SubscribeFiltered(
		func(e Event) bool { return e.Severity == SeverityError },
		func(Event) { atomic.AddInt32(&failures, 1) },
	)

	rb.Log(Event{Type: EventCompleted})
	rb.Log(New(EventFailed).Err(errors.New("boom")).Build())
	unsubscribe()
	rb.Log(Event{Type: EventCompleted})

	if all != 2 {
		t.Errorf("all = %d, want 2", all)
	}
	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
}

func TestRingBuffer_LogWithContext(t *testing.T) {
	rb := NewRingBuffer(4)
	ctx := WithRequestID(WithTraceID(context.Background(), "trace-1"), "req-1")

	rb.LogWithContext(ctx, Event{Type: EventMatched})
	rb.LogWithContext(ctx, Event{Type: EventMatched, RequestID: "own"})

	recent := rb.Recent(2)
	if recent[1].TraceID != "trace-1" || recent[1].RequestID != "req-1" {
		t.Errorf("context ids not copied: %+v", recent[1])
	}
	if recent[0].RequestID != "own" {
		t.Errorf("explicit request id overwritten: %q", recent[0].RequestID)
	}
}

func TestRingBuffer_Concurrent(t *testing.T) {
	rb := NewRingBuffer(100)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rb.Log(Event{Type: EventCompleted})
				_ = rb.Recent(5)
			}
		}()
	}
	wg.Wait()
	if rb.Count() != 100 {
		t.Errorf("Count() = %d, want 100", rb.Count())
	}
}

func TestBuilder(t *testing.T) {
	e := New(EventTimeout).
		Handler("handlers.Slow").
		Selector("deadbeef").
		Method("slow").
		Message("gave up").
		Err(context.DeadlineExceeded).
		Metadata("timeout", "1s").
		RequestID("r").
		Build()

	if e.ID == "" || e.Severity != SeverityError {
		t.Errorf("event = %+v", e)
	}
	if e.Error != context.DeadlineExceeded.Error() || e.Metadata["timeout"] != "1s" {
		t.Errorf("event = %+v", e)
	}
	if New(EventCompleted).Err(nil).Build().Severity != SeverityInfo {
		t.Error("nil error should not raise severity")
	}
}

func TestNewRingBuffer_DefaultSize(t *testing.T) {
	if rb := NewRingBuffer(0); rb.size != DefaultSize {
		t.Errorf("size = %d, want %d", rb.size, DefaultSize)
	}
}

func TestNoOp(t *testing.T) {
	var r Recorder = NoOp{}
	r.Log(Event{})
	r.Subscribe(func(Event) {})()
	if r.Recent(10) != nil {
		t.Error("NoOp should not store events")
	}
}
