package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan ProcessStartedEvent, 1)

	unsub := bus.Subscribe(func(e ProcessStartedEvent) {
		received <- e
	})
	defer unsub()

	event := ProcessStartedEvent{
		Pool:      "batch",
		ProcessID: "job-1",
		PID:       4242,
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got != event {
		t.Errorf("Expected %+v, got %+v", event, got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan ProcessFinishedEvent, 1)

	unsub := bus.Subscribe(func(e ProcessFinishedEvent) {
		received <- e
	})

	bus.Publish(ProcessFinishedEvent{ProcessID: "a"})
	<-received

	unsub()

	bus.Publish(ProcessFinishedEvent{ProcessID: "b"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	startedReceived := make(chan bool, 1)
	timeoutReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ ProcessStartedEvent) {
		startedReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ PoolTimeoutEvent) {
		timeoutReceived <- true
	})
	defer unsub2()

	bus.Publish(ProcessStartedEvent{ProcessID: "a"})
	<-startedReceived

	select {
	case <-timeoutReceived:
		t.Fatal("Timeout subscriber should NOT have received ProcessStartedEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(PoolTimeoutEvent{Pool: "batch"})
	<-timeoutReceived

	select {
	case <-startedReceived:
		t.Fatal("Started subscriber should NOT have received PoolTimeoutEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ ProcessFinishedEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(ProcessFinishedEvent{
					ProcessID: "job",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"ProcessStarted", ProcessStartedEvent{ProcessID: "a"}},
		{"ProcessFinished", ProcessFinishedEvent{ProcessID: "a"}},
		{"ProcessAbandoned", ProcessAbandonedEvent{ProcessID: "a"}},
		{"PoolTimeout", PoolTimeoutEvent{Pool: "p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case ProcessStartedEvent:
				unsub = bus.Subscribe(func(e ProcessStartedEvent) { received <- e })
			case ProcessFinishedEvent:
				unsub = bus.Subscribe(func(e ProcessFinishedEvent) { received <- e })
			case ProcessAbandonedEvent:
				unsub = bus.Subscribe(func(e ProcessAbandonedEvent) { received <- e })
			case PoolTimeoutEvent:
				unsub = bus.Subscribe(func(e PoolTimeoutEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("expected a no-op unsubscribe")
	}
	unsub()
}

func TestEventJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(ProcessFinishedEvent{
		Pool:       "batch",
		ProcessID:  "job-1",
		ExitCode:   3,
		DurationMS: 120,
	})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	for _, key := range []string{"pool", "process_id", "exit_code", "duration_ms", "timestamp"} {
		if _, ok := result[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[ProcessStartedEvent](bus, ch)
	defer unsub()

	bus.Publish(ProcessStartedEvent{ProcessID: "job-1"})

	received := <-ch
	started, ok := received.(ProcessStartedEvent)
	if !ok {
		t.Fatalf("Expected ProcessStartedEvent, got %T", received)
	}
	if started.ProcessID != "job-1" {
		t.Errorf("Expected process_id job-1, got %s", started.ProcessID)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[ProcessFinishedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(ProcessFinishedEvent{ProcessID: "a"})
		done <- true
	}()

	<-done
}
