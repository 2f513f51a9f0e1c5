// Package delivery routes a materialized file to the user: small files go
// through the primary chat sink, large ones through the high-capacity sink,
// and when everything else fails the raw stream link is sent as text.
package delivery

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/animecourier/anime-courier/internal/progress"
)

// MessageID identifies a sent chat message for later edits/deletes.
type MessageID int64

// Notifier is the primary, low-capacity chat channel. Every method is
// fallible and individually best-effort-recoverable: a failed edit or delete
// must never abort the pipeline.
type Notifier interface {
	SendText(ctx context.Context, convID int64, text string) (MessageID, error)
	EditText(ctx context.Context, convID int64, id MessageID, text string) error
	DeleteMessage(ctx context.Context, convID int64, id MessageID) error
	SendDocument(ctx context.Context, convID int64, localPath, filename, caption string) error
}

// LargeFileSink is the secondary high-capacity channel, used when a file
// exceeds the primary sink's ceiling. It reports its own upload progress.
type LargeFileSink interface {
	SendLargeFile(ctx context.Context, target string, localPath, caption string, obs progress.Observer) error
}

// MaterializedFile is a downloaded episode on local disk. Owned by the
// orchestrator for one delivery; deleted right after, success or not.
type MaterializedFile struct {
	Path      string
	SizeBytes int64
}

// Outcome of one delivery attempt.
type Outcome string

const (
	// Delivered: the file itself reached the user, via either sink.
	Delivered Outcome = "delivered"
	// Degraded: the user got the raw stream link instead of the file.
	Degraded Outcome = "degraded"
)

// DefaultSmallFileLimit is the primary channel's file-size ceiling (50 MiB in
// the observed deployment).
const DefaultSmallFileLimit = 50 << 20

// Router picks a delivery channel by file size and coordinates the text-link
// fallback when materialization or upload failed.
type Router struct {
	Notifier       Notifier
	Large          LargeFileSink // may be nil: over-limit files then degrade
	LargeTarget    string        // identity the large sink delivers to
	SmallFileLimit int64         // bytes; 0 = DefaultSmallFileLimit

	// ProgressInterval throttles the large sink's upload progress. 0 = 3s.
	ProgressInterval time.Duration
}

func (r *Router) limit() int64 {
	if r.SmallFileLimit > 0 {
		return r.SmallFileLimit
	}
	return DefaultSmallFileLimit
}

// Deliver sends file to convID, or the fallback link when file is nil or the
// chosen sink fails. filename/caption dress the document. The caller remains
// responsible for deleting file.Path afterwards.
func (r *Router) Deliver(ctx context.Context, convID int64, file *MaterializedFile, fallbackURL, filename, caption string, obs progress.Observer) (Outcome, error) {
	if file == nil {
		return r.degrade(ctx, convID, fallbackURL)
	}

	if file.SizeBytes <= r.limit() {
		if err := r.Notifier.SendDocument(ctx, convID, file.Path, filename, caption); err != nil {
			log.Printf("delivery: primary sink failed conv=%d file=%q err=%v", convID, file.Path, err)
			return r.degrade(ctx, convID, fallbackURL)
		}
		return Delivered, nil
	}

	if r.Large == nil {
		log.Printf("delivery: no large sink configured, file %q over limit (%d bytes)", file.Path, file.SizeBytes)
		return r.degrade(ctx, convID, fallbackURL)
	}
	if obs == nil {
		obs = progress.Discard
	}
	interval := r.ProgressInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if err := r.Large.SendLargeFile(ctx, r.LargeTarget, file.Path, caption, progress.Throttled(obs, interval)); err != nil {
		log.Printf("delivery: large sink failed conv=%d file=%q err=%v", convID, file.Path, err)
		return r.degrade(ctx, convID, fallbackURL)
	}
	return Delivered, nil
}

// degrade sends the raw stream reference as text. Even total failure still
// tells the user something.
func (r *Router) degrade(ctx context.Context, convID int64, fallbackURL string) (Outcome, error) {
	if fallbackURL == "" {
		return Degraded, fmt.Errorf("degraded delivery: no fallback link available")
	}
	text := "Couldn't send the video file. Direct stream link:\n" + fallbackURL
	if _, err := r.Notifier.SendText(ctx, convID, text); err != nil {
		return Degraded, fmt.Errorf("degraded delivery: %w", err)
	}
	return Degraded, nil
}
