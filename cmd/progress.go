package cmd

import (
	"fmt"
	"io"

	"github.com/smazurov/multirunner/internal/events"
)

// startProgress prints one line per lifecycle event on bus to w until the
// returned stop function is called.
func startProgress(bus *events.Bus, w io.Writer) (stop func()) {
	ch := make(chan any, 256)
	unsubs := []func(){
		events.SubscribeToChannel[events.ProcessStartedEvent](bus, ch),
		events.SubscribeToChannel[events.ProcessFinishedEvent](bus, ch),
		events.SubscribeToChannel[events.ProcessAbandonedEvent](bus, ch),
		events.SubscribeToChannel[events.PoolTimeoutEvent](bus, ch),
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			select {
			case ev := <-ch:
				fmt.Fprintln(w, formatEvent(ev))
			case <-done:
				for {
					select {
					case ev := <-ch:
						fmt.Fprintln(w, formatEvent(ev))
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
		close(done)
		<-exited
	}
}

func formatEvent(ev any) string {
	switch e := ev.(type) {
	case events.ProcessStartedEvent:
		return fmt.Sprintf("[%s] started %s (pid %d)", e.Pool, e.ProcessID, e.PID)
	case events.ProcessFinishedEvent:
		return fmt.Sprintf("[%s] finished %s exit=%d in %dms", e.Pool, e.ProcessID, e.ExitCode, e.DurationMS)
	case events.ProcessAbandonedEvent:
		return fmt.Sprintf("[%s] abandoned %s", e.Pool, e.ProcessID)
	case events.PoolTimeoutEvent:
		return fmt.Sprintf("[%s] timed out with %d pending and %d running", e.Pool, e.Pending, e.Running)
	default:
		return fmt.Sprintf("%v", ev)
	}
}
