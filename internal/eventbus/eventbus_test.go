package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe(4)
	b.Publish(BillEvent{Auto: true})

	select {
	case e := <-sub:
		if _, ok := e.(BillEvent); !ok {
			t.Fatalf("got %T, want BillEvent", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New()
	sub := b.Subscribe(1)
	b.Publish(PileFaultEvent{PileID: "A"})
	b.Publish(PileFaultEvent{PileID: "B"}) // dropped, must not block

	e := <-sub
	if ev, ok := e.(PileFaultEvent); !ok || ev.PileID != "A" {
		t.Fatalf("got %v", e)
	}
	select {
	case e := <-sub:
		t.Fatalf("unexpected second event: %v", e)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe(1)
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel not closed")
	}
	b.Publish(PileRepairedEvent{PileID: "A"}) // no panic
}

func TestClose(t *testing.T) {
	b := New()
	sub := b.Subscribe(1)
	b.Close()
	if _, ok := <-sub; ok {
		t.Fatal("channel not closed on bus close")
	}
	b.Publish(AllocationEvent{}) // dropped silently
	b.Close()                    // idempotent
}
