package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/animecourier/anime-courier/internal/delivery"
	"github.com/animecourier/anime-courier/internal/progress"
)

// status maintains the single evolving status message for one episode
// request. Sends and edits are best-effort: a slow or failing chat channel
// must never stall the pipeline.
type status struct {
	ctx     context.Context
	n       delivery.Notifier
	convID  int64
	episode string
	msgID   delivery.MessageID
	haveMsg bool
}

func newStatus(ctx context.Context, n delivery.Notifier, convID int64, episode string) *status {
	return &status{ctx: ctx, n: n, convID: convID, episode: episode}
}

func (s *status) transition(to State) {
	var text string
	switch to {
	case StateQueued:
		text = "Queued: Episode " + s.episode
	case StateExtracting:
		text = "Retrieving stream link for Episode " + s.episode + "..."
	case StateDownloading:
		text = "Downloading Episode " + s.episode + "..."
	case StateUploading:
		text = "Sending Episode " + s.episode + "..."
	case StateSendingSubtitle:
		text = "Fetching subtitle for Episode " + s.episode + "..."
	case StateCancelled:
		text = "Cancelled Episode " + s.episode + "."
	default:
		return
	}
	s.set(text)
}

func (s *status) fail(text string)   { s.set(text) }
func (s *status) finish(text string) { s.set(text) }

// set sends the first status message, then edits it in place.
func (s *status) set(text string) {
	if !s.haveMsg {
		id, err := s.n.SendText(s.ctx, s.convID, text)
		if err != nil {
			log.Printf("status: send conv=%d: %v", s.convID, err)
			return
		}
		s.msgID, s.haveMsg = id, true
		return
	}
	if err := s.n.EditText(s.ctx, s.convID, s.msgID, text); err != nil {
		log.Printf("status: edit conv=%d: %v", s.convID, err)
	}
}

// progressObserver renders progress events into the status message. The
// producer side throttles, so each event received here is worth an edit.
func (s *status) progressObserver(verb string) progress.Observer {
	return progress.ObserverFunc(func(e progress.Event) {
		s.set(formatProgress(verb, s.episode, e))
	})
}

func formatProgress(verb, episode string, e progress.Event) string {
	text := fmt.Sprintf("%s Episode %s: %s", verb, episode, fmtBytes(e.Bytes))
	if e.BytesPerSec > 0 {
		text += fmt.Sprintf(" at %s/s", fmtBytes(int64(e.BytesPerSec)))
	}
	if e.Percent != progress.Unknown {
		text += fmt.Sprintf(", %.1f%%", e.Percent)
	}
	if e.ETASeconds != progress.Unknown {
		text += fmt.Sprintf(", ETA %s", (time.Duration(e.ETASeconds) * time.Second).Round(time.Second))
	}
	return text
}

func fmtBytes(n int64) string {
	const (
		kib = 1 << 10
		mib = 1 << 20
		gib = 1 << 30
	)
	switch {
	case n >= gib:
		return fmt.Sprintf("%.2f GiB", float64(n)/gib)
	case n >= mib:
		return fmt.Sprintf("%.1f MiB", float64(n)/mib)
	case n >= kib:
		return fmt.Sprintf("%.0f KiB", float64(n)/kib)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
