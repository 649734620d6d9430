package broadcast

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type fakeSink struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (f *fakeSink) WriteEvent(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSink) received() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	b := New()
	a, c := &fakeSink{}, &fakeSink{}
	b.Subscribe(a)
	b.Subscribe(c)

	b.Publish(Event{Source: SourceTwilio, Event: EventStart, CallSID: "CA1"})

	for _, s := range []*fakeSink{a, c} {
		got := s.received()
		if len(got) != 1 || got[0].CallSID != "CA1" {
			t.Fatalf("expected one start event, got %+v", got)
		}
	}
}

func TestPublish_FailedSubscriberIsRemovedOthersUnaffected(t *testing.T) {
	b := New()
	healthy := &fakeSink{}
	broken := &fakeSink{fail: true}
	b.Subscribe(healthy)
	b.Subscribe(broken)

	b.Publish(Event{Source: SourceSpeech, Event: EventTranscript, Text: "hello"})

	if got := healthy.received(); len(got) != 1 || got[0].Text != "hello" {
		t.Fatalf("healthy subscriber missed delivery: %+v", got)
	}
	if b.Len() != 1 {
		t.Fatalf("expected broken subscriber removed, have %d subscribers", b.Len())
	}

	// Later publishes still reach the survivor.
	b.Publish(Event{Source: SourceSpeech, Event: EventTranscript, Text: "again"})
	if got := healthy.received(); len(got) != 2 {
		t.Fatalf("expected 2 events after removal, got %d", len(got))
	}
}

func TestPublish_PreservesPerSubscriberOrder(t *testing.T) {
	b := New()
	s := &fakeSink{}
	b.Subscribe(s)

	texts := []string{"one", "two", "three", "four"}
	for _, txt := range texts {
		b.Publish(Event{Source: SourceSpeech, Event: EventTranscript, Text: txt})
	}

	got := s.received()
	if len(got) != len(texts) {
		t.Fatalf("expected %d events, got %d", len(texts), len(got))
	}
	for i, txt := range texts {
		if got[i].Text != txt {
			t.Fatalf("order violated at %d: got %q want %q", i, got[i].Text, txt)
		}
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := New()
	s := &fakeSink{}
	b.Subscribe(s)
	b.Unsubscribe(s)
	b.Publish(Event{Source: SourceServer, Event: EventError})
	if len(s.received()) != 0 {
		t.Fatalf("expected no delivery after unsubscribe")
	}
	// double unsubscribe is harmless
	b.Unsubscribe(s)
}
