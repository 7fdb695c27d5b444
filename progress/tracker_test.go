package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/Skryldev/fileforge/progress"
)

func collect(t *testing.T, ch <-chan progress.Event) []progress.Event {
	t.Helper()
	var out []progress.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("subscription did not end")
		}
	}
}

func TestPublish_MonotonicAndClamped(t *testing.T) {
	tr := progress.NewTracker("job-1")
	inputs := []float64{-5, 10, 40, 30, 40, 250}
	want := []float64{0, 10, 40, 40, 40, 100}
	for i, p := range inputs {
		ev, ok := tr.Publish("decoding", p, "")
		if !ok {
			t.Fatalf("publish %d rejected", i)
		}
		if ev.Percent != want[i] {
			t.Errorf("event %d percent: got %v, want %v", i, ev.Percent, want[i])
		}
		if ev.Seq != int64(i+1) {
			t.Errorf("event %d seq: got %d, want %d", i, ev.Seq, i+1)
		}
	}
}

func TestPublish_AfterClose(t *testing.T) {
	tr := progress.NewTracker("job-1")
	tr.Close()
	if _, ok := tr.Publish("complete", 100, ""); ok {
		t.Error("publish after close was accepted")
	}
	if !tr.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestSubscribe_ReplaysAndEnds(t *testing.T) {
	tr := progress.NewTracker("job-1")
	tr.Publish("validated", 5, "")
	tr.Publish("decoding", 20, "input 0")

	ch := tr.Subscribe(context.Background())

	go func() {
		tr.Publish("encoding", 80, "")
		tr.Publish("complete", 100, "")
		tr.Close()
	}()

	events := collect(t, ch)
	if len(events) != 4 {
		t.Fatalf("events: got %d, want 4", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Percent < events[i-1].Percent {
			t.Errorf("percent decreased at %d: %v -> %v", i, events[i-1].Percent, events[i].Percent)
		}
		if events[i].Seq != events[i-1].Seq+1 {
			t.Errorf("sequence gap at %d", i)
		}
	}
	if events[3].Phase != "complete" {
		t.Errorf("last phase: got %s, want complete", events[3].Phase)
	}
}

func TestSubscribe_IndependentStreams(t *testing.T) {
	tr := progress.NewTracker("job-1")
	tr.Publish("validated", 5, "")
	tr.Close()

	a := collect(t, tr.Subscribe(context.Background()))
	b := collect(t, tr.Subscribe(context.Background()))
	if len(a) != 1 || len(b) != 1 {
		t.Errorf("stream lengths: got %d and %d, want 1 and 1", len(a), len(b))
	}
}

func TestSubscribe_ContextCancel(t *testing.T) {
	tr := progress.NewTracker("job-1")
	ctx, cancel := context.WithCancel(context.Background())
	ch := tr.Subscribe(ctx)
	cancel()
	collect(t, ch) // must terminate although the tracker never closes
}

func TestSince(t *testing.T) {
	tr := progress.NewTracker("job-1")
	tr.Publish("validated", 5, "")
	tr.Publish("decoding", 10, "")
	tr.Publish("decoding", 20, "")

	got := tr.Since(1)
	if len(got) != 2 || got[0].Seq != 2 {
		t.Errorf("Since(1): got %+v", got)
	}
	last, ok := tr.Last()
	if !ok || last.Percent != 20 {
		t.Errorf("Last: got %+v, %v", last, ok)
	}
}
