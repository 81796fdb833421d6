package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/evstation/core/model"
	"github.com/kilianp07/evstation/internal/eventbus"
)

type fakeToken struct{}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (fakeToken) Error() error { return nil }

type fakeClient struct {
	mu       sync.Mutex
	messages map[string][]byte
}

func (f *fakeClient) IsConnected() bool       { return true }
func (f *fakeClient) Connect() paho.Token     { return fakeToken{} }
func (f *fakeClient) Disconnect(quiesce uint) {}
func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messages == nil {
		f.messages = make(map[string][]byte)
	}
	f.messages[topic] = payload.([]byte)
	return fakeToken{}
}

func (f *fakeClient) get(topic string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.messages[topic]
	return b, ok
}

func TestNotifierForwardsEvents(t *testing.T) {
	fake := &fakeClient{}
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return fake }
	defer func() { newMQTTClient = orig }()

	bus := eventbus.New()
	cfg := Config{Broker: "tcp://localhost:1883"}
	cfg.SetDefaults()
	n, err := NewNotifier(cfg, bus)
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}

	bus.Publish(eventbus.BillEvent{Bill: model.Bill{ID: "b1", VehicleID: "CAR-1"}, Auto: true})
	bus.Publish(eventbus.PileFaultEvent{PileID: "A", Strategy: "priority"})
	bus.Publish(eventbus.PileRepairedEvent{PileID: "A"})
	bus.Publish(eventbus.AllocationEvent{QueueNumber: "F1", CarID: "CAR-1", PileID: "A"})
	bus.Publish("not an event") // ignored

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := fake.get("station/allocations"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("events not forwarded in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	payload, ok := fake.get("station/bills")
	if !ok {
		t.Fatal("bill event not published")
	}
	var ev eventbus.BillEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("decode bill payload: %v", err)
	}
	if ev.Bill.ID != "b1" || !ev.Auto {
		t.Fatalf("bill payload: %+v", ev)
	}
	if _, ok := fake.get("station/piles/A/fault"); !ok {
		t.Fatal("fault event not published")
	}
	if _, ok := fake.get("station/piles/A/repaired"); !ok {
		t.Fatal("repair event not published")
	}

	n.Close()
}
