package updates

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testLog(t *testing.T) *Log {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "updates.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	l, err := NewLog(db)
	if err != nil {
		t.Fatalf("create log: %v", err)
	}
	return l
}

func TestEventEncodeDecode(t *testing.T) {
	e := Event{
		ResearchID: "r-1",
		Type:       EventStepUpdate,
		Status:     "done",
		Message:    "Completed content analysis",
		StepID:     "s-2",
		StepType:   "content_analysis",
		StepOrder:  2,
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	payload, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != e.Type || got.StepOrder != 2 || got.Message != e.Message {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.ResearchID != "" {
		t.Error("research ID must not travel on the wire")
	}
	if !got.Timestamp.Equal(e.Timestamp) {
		t.Errorf("timestamp mismatch: %v", got.Timestamp)
	}
}

func TestLogHistoryOrder(t *testing.T) {
	l := testLog(t)

	for i := 1; i <= 3; i++ {
		e := Event{Type: EventStatusUpdate, Message: fmt.Sprintf("event %d", i), Timestamp: time.Now().UTC()}
		if err := l.Append("r-1", e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	events, err := l.History("r-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		want := fmt.Sprintf("event %d", i+1)
		if e.Message != want {
			t.Errorf("event %d: expected %q, got %q", i, want, e.Message)
		}
	}
}

func TestLogTrimsToCap(t *testing.T) {
	l := testLog(t)

	total := HistoryCap + 25
	for i := 1; i <= total; i++ {
		e := Event{Type: EventStatusUpdate, Message: fmt.Sprintf("event %d", i), Timestamp: time.Now().UTC()}
		if err := l.Append("r-1", e); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	events, err := l.History("r-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(events) != HistoryCap {
		t.Fatalf("expected history capped at %d, got %d", HistoryCap, len(events))
	}
	// The oldest retained entry is the first one after the trim window.
	if events[0].Message != fmt.Sprintf("event %d", total-HistoryCap+1) {
		t.Errorf("unexpected oldest entry: %q", events[0].Message)
	}
	if events[len(events)-1].Message != fmt.Sprintf("event %d", total) {
		t.Errorf("unexpected newest entry: %q", events[len(events)-1].Message)
	}
}

func TestLogKeepsTasksIndependent(t *testing.T) {
	l := testLog(t)

	l.Append("r-1", Event{Type: EventStatusUpdate, Message: "for r-1", Timestamp: time.Now().UTC()})
	l.Append("r-2", Event{Type: EventStatusUpdate, Message: "for r-2", Timestamp: time.Now().UTC()})

	events, _ := l.History("r-1")
	if len(events) != 1 || events[0].Message != "for r-1" {
		t.Errorf("r-1 history polluted: %+v", events)
	}
}

func TestBusFanOut(t *testing.T) {
	b := NewBus()
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()

	b.Publish(Event{Type: EventStatusUpdate, Message: "hello"})

	for i, sub := range []chan Event{sub1, sub2} {
		select {
		case e := <-sub:
			if e.Message != "hello" {
				t.Errorf("subscriber %d: got %q", i, e.Message)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event received", i)
		}
	}
}

func TestBusDropsWhenSubscriberIsBehind(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()

	// Fill the buffer and then some; Publish must never block.
	for i := 0; i < cap(sub)+10; i++ {
		b.Publish(Event{Type: EventStatusUpdate})
	}

	if len(sub) != cap(sub) {
		t.Errorf("expected full buffer of %d, got %d", cap(sub), len(sub))
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	b.Unsubscribe(sub)

	if _, ok := <-sub; ok {
		t.Error("expected closed channel after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: EventStatusUpdate})
}

func TestChannelRecordAndHistory(t *testing.T) {
	l := testLog(t)
	ch := NewChannel(NewBus(), l)

	e := Event{Type: EventStatusUpdate, Status: "running", Timestamp: time.Now().UTC()}
	if err := ch.Record("r-1", e); err != nil {
		t.Fatalf("Record: %v", err)
	}

	events, err := ch.History("r-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(events) != 1 || events[0].Status != "running" {
		t.Errorf("unexpected history: %+v", events)
	}
	if events[0].ResearchID != "r-1" {
		t.Errorf("expected research ID restored on read, got %q", events[0].ResearchID)
	}
}
