// Package orchestrator sequences one episode's pipeline (resolve stream,
// materialize video, fetch subtitle, route delivery) and the sequential
// batch ("download all") variant, with cooperative per-conversation
// cancellation. Every code path ends in a user-visible status message.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/animecourier/anime-courier/internal/catalogue"
	"github.com/animecourier/anime-courier/internal/delivery"
	"github.com/animecourier/anime-courier/internal/metrics"
	"github.com/animecourier/anime-courier/internal/progress"
	"github.com/animecourier/anime-courier/internal/session"
	"github.com/animecourier/anime-courier/internal/subtitle"
)

// State of one episode request. Cancelled absorbs from every non-terminal
// state; Failed absorbs from Extracting and Downloading (delivery-stage
// problems degrade instead, see delivery.Router).
type State string

const (
	StateQueued          State = "queued"
	StateExtracting      State = "extracting"
	StateDownloading     State = "downloading"
	StateUploading       State = "uploading"
	StateSendingSubtitle State = "sending_subtitle"
	StateDone            State = "done"
	StateFailed          State = "failed"
	StateCancelled       State = "cancelled"
)

// Result classifies how an episode request ended, for metrics and batch
// reporting.
type Result string

const (
	ResultDelivered Result = "delivered"
	ResultDegraded  Result = "degraded"
	ResultNoStream  Result = "no_stream"
	ResultFailed    Result = "failed"
	ResultCancelled Result = "cancelled"
)

// StreamResolver is the slice of the catalogue client the orchestrator needs.
type StreamResolver interface {
	ResolveStream(ctx context.Context, episodeID string) (catalogue.StreamManifest, error)
}

// VideoMaterializer converts a stream URL into a local file.
type VideoMaterializer interface {
	Materialize(ctx context.Context, streamURL, episodeLabel, destDir string, obs progress.Observer) (string, error)
}

// SubtitleFetcher persists a remote subtitle locally.
type SubtitleFetcher interface {
	Fetch(ctx context.Context, subtitleURL, episodeLabel, destDir string) (string, error)
}

// SubtitleFetcherFunc adapts a function to SubtitleFetcher.
type SubtitleFetcherFunc func(ctx context.Context, subtitleURL, episodeLabel, destDir string) (string, error)

func (f SubtitleFetcherFunc) Fetch(ctx context.Context, u, label, dir string) (string, error) {
	return f(ctx, u, label, dir)
}

// DefaultSubtitleFetcher uses the subtitle package with the shared client.
var DefaultSubtitleFetcher SubtitleFetcher = SubtitleFetcherFunc(
	func(ctx context.Context, u, label, dir string) (string, error) {
		return subtitle.Fetch(ctx, nil, u, label, dir)
	})

// Orchestrator wires the pipeline. All collaborators are injected; the zero
// value is not usable.
type Orchestrator struct {
	Resolver     StreamResolver
	Materializer VideoMaterializer
	Subtitles    SubtitleFetcher
	Router       *delivery.Router
	Notifier     delivery.Notifier
	Sessions     *session.Store

	// WorkDir is the root for per-conversation working directories
	// (<WorkDir>/<convID>/videos, .../subtitles). Artifacts are transient:
	// deleted after delivery, never reused as a cache.
	WorkDir string
}

// Run processes one episode on its own goroutine and returns immediately, so
// the interaction handler can acknowledge the user.
func (o *Orchestrator) Run(convID int64, ep catalogue.EpisodeRef) {
	o.Sessions.ResetCancel(convID)
	go o.runEpisode(context.Background(), convID, ep)
}

// ProcessEpisode runs the pipeline synchronously and reports the terminal
// outcome. For callers that need to wait, like the CLI.
func (o *Orchestrator) ProcessEpisode(ctx context.Context, convID int64, ep catalogue.EpisodeRef) Result {
	return o.runEpisode(ctx, convID, ep)
}

// RunAll processes every cached episode of the conversation sequentially on
// one background goroutine. Sequential by design: one ffmpeg-class process at
// a time, unambiguous progress messages.
func (o *Orchestrator) RunAll(convID int64) {
	o.Sessions.ResetCancel(convID)
	eps := o.Sessions.Episodes(convID)
	go func() {
		for i, ep := range eps {
			if o.Sessions.Cancelled(convID) {
				o.notify(convID, fmt.Sprintf("Batch cancelled after %d of %d episodes.", i, len(eps)))
				return
			}
			// A failed episode is reported and the loop moves on; one bad
			// episode never aborts the rest of the batch.
			res := o.runEpisode(context.Background(), convID, ep)
			if res == ResultCancelled {
				return
			}
		}
		if len(eps) > 0 {
			o.notify(convID, fmt.Sprintf("Batch finished: %d episode(s) processed.", len(eps)))
		}
	}()
}

// runEpisode drives the state machine for a single episode and reports the
// terminal outcome to the user. It never panics outward and never returns
// without a user-visible message.
func (o *Orchestrator) runEpisode(ctx context.Context, convID int64, ep catalogue.EpisodeRef) (res Result) {
	job := uuid.NewString()
	start := time.Now()
	defer func() {
		metrics.Deliveries.WithLabelValues(string(res)).Inc()
		metrics.EpisodeSeconds.Observe(time.Since(start).Seconds())
		log.Printf("orchestrator: job=%s conv=%d episode=%s result=%s elapsed=%s", job, convID, ep.Number, res, time.Since(start).Round(time.Second))
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("orchestrator: job=%s panic: %v", job, r)
			o.notify(convID, "Oops, an unexpected error occurred.")
			res = ResultFailed
		}
	}()

	st := newStatus(ctx, o.Notifier, convID, ep.Number)
	st.transition(StateQueued)

	if o.Sessions.Cancelled(convID) {
		st.transition(StateCancelled)
		return ResultCancelled
	}

	st.transition(StateExtracting)
	manifest, err := o.Resolver.ResolveStream(ctx, ep.ID)
	if err != nil {
		o.countCatalogueError(err)
		log.Printf("orchestrator: job=%s resolve %q: %v", job, ep.ID, err)
		st.fail("Failed to extract stream data for Episode " + ep.Number + ".")
		return ResultFailed
	}
	if manifest.StreamURL == "" {
		// Valid terminal outcome, not an error.
		st.finish("No stream found for Episode " + ep.Number + ".")
		return ResultNoStream
	}

	if o.Sessions.Cancelled(convID) {
		st.transition(StateCancelled)
		return ResultCancelled
	}

	st.transition(StateDownloading)
	videoDir := o.conversationDir(convID, "videos")
	var file *delivery.MaterializedFile
	localPath, err := o.Materializer.Materialize(ctx, manifest.StreamURL, ep.Number, videoDir, st.progressObserver("Downloading"))
	if err != nil {
		// All strategies exhausted: degrade to sending the raw link below.
		log.Printf("orchestrator: job=%s materialize: %v", job, err)
	} else if fi, statErr := os.Stat(localPath); statErr == nil {
		file = &delivery.MaterializedFile{Path: localPath, SizeBytes: fi.Size()}
	}
	if file != nil {
		defer os.Remove(file.Path) // transient artifact, never cached
	}

	if o.Sessions.Cancelled(convID) {
		st.transition(StateCancelled)
		return ResultCancelled
	}

	st.transition(StateUploading)
	filename := fmt.Sprintf("Episode %s.mp4", ep.Number)
	caption := "Episode " + ep.Number
	outcome, err := o.Router.Deliver(ctx, convID, file, manifest.StreamURL, filename, caption, st.progressObserver("Uploading"))
	if err != nil {
		log.Printf("orchestrator: job=%s deliver: %v", job, err)
	}

	st.transition(StateSendingSubtitle)
	o.sendSubtitle(ctx, job, convID, ep, manifest.SubtitleURL, st)

	switch outcome {
	case delivery.Delivered:
		st.finish("Episode " + ep.Number + " delivered.")
		return ResultDelivered
	default:
		st.finish("Episode " + ep.Number + ": sent the stream link instead of the file.")
		return ResultDegraded
	}
}

// sendSubtitle fetches and delivers the subtitle through the primary sink.
// Failures are reported but never fatal: video delivery already happened.
func (o *Orchestrator) sendSubtitle(ctx context.Context, job string, convID int64, ep catalogue.EpisodeRef, subtitleURL string, st *status) {
	if subtitleURL == "" {
		o.notify(convID, "No English subtitle found for Episode "+ep.Number+".")
		return
	}
	dir := o.conversationDir(convID, "subtitles")
	path, err := o.Subtitles.Fetch(ctx, subtitleURL, ep.Number, dir)
	if err != nil {
		log.Printf("orchestrator: job=%s subtitle: %v", job, err)
		o.notify(convID, "Found an English subtitle but couldn't download it.")
		return
	}
	defer os.Remove(path)
	filename := fmt.Sprintf("Episode %s.vtt", ep.Number)
	if err := o.Notifier.SendDocument(ctx, convID, path, filename, "Subtitle for Episode "+ep.Number); err != nil {
		log.Printf("orchestrator: job=%s send subtitle: %v", job, err)
		o.notify(convID, "Subtitle downloaded but couldn't be sent.")
	}
}

func (o *Orchestrator) conversationDir(convID int64, kind string) string {
	return filepath.Join(o.WorkDir, strconv.FormatInt(convID, 10), kind)
}

// notify sends best-effort standalone text; failures are swallowed.
func (o *Orchestrator) notify(convID int64, text string) {
	if _, err := o.Notifier.SendText(context.Background(), convID, text); err != nil {
		log.Printf("orchestrator: notify conv=%d: %v", convID, err)
	}
}

func (o *Orchestrator) countCatalogueError(err error) {
	switch {
	case errors.Is(err, catalogue.ErrContract):
		metrics.CatalogueErrors.WithLabelValues("contract").Inc()
	case errors.Is(err, catalogue.ErrUnavailable):
		metrics.CatalogueErrors.WithLabelValues("unavailable").Inc()
	}
}
