// Package progress carries download/upload progress events from external
// processes and sinks to a status observer (typically a chat message editor).
package progress

import (
	"time"

	"golang.org/x/time/rate"
)

// Unknown marks a numeric field the producer could not determine
// (e.g. percent and ETA when the duration probe failed).
const Unknown = -1

// Event is one progress snapshot.
type Event struct {
	Bytes           int64   // output bytes written so far
	DurationSeconds float64 // total media duration; Unknown if not probed
	Percent         float64 // completion 0..100; Unknown when duration unknown
	BytesPerSec     float64 // average throughput since start
	ElapsedSeconds  float64
	ETASeconds      float64 // Unknown when percent is 0 or unknown
}

// Observer receives progress events. Implementations must not block: the
// producer is reading a live process pipe.
type Observer interface {
	OnProgress(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnProgress(e Event) { f(e) }

// Discard ignores all events.
var Discard Observer = ObserverFunc(func(Event) {})

// ETA estimates remaining seconds as elapsed*(100-percent)/percent.
// Returns Unknown when percent is not positive.
func ETA(elapsedSeconds, percent float64) float64 {
	if percent <= 0 {
		return Unknown
	}
	return elapsedSeconds * (100 - percent) / percent
}

type throttled struct {
	next Observer
	lim  *rate.Limiter
}

// Throttled wraps obs so at most one event per interval is delivered, no
// matter how often the producer emits. Throttling lives here, not at call
// sites: producers always report, the wrapper decides.
func Throttled(obs Observer, interval time.Duration) Observer {
	if interval <= 0 {
		return obs
	}
	return &throttled{next: obs, lim: rate.NewLimiter(rate.Every(interval), 1)}
}

func (t *throttled) OnProgress(e Event) {
	if t.lim.Allow() {
		t.next.OnProgress(e)
	}
}
