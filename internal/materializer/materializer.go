// Package materializer converts a remote HLS stream reference into one local
// MP4 file, cascading through a fast external downloader, an ffmpeg remux and
// a full re-encode. Stage failures are absorbed and logged; only the cascade
// outcome crosses the package boundary.
package materializer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/animecourier/anime-courier/internal/metrics"
	"github.com/animecourier/anime-courier/internal/progress"
	"github.com/animecourier/anime-courier/internal/safeurl"
)

// ErrAllStagesFailed: every strategy was exhausted; the caller should fall
// back to degraded delivery (send the stream URL itself).
var ErrAllStagesFailed = errors.New("all materialization strategies failed")

const (
	// exit code ffmpeg uses when the muxing queue overflows on remux of a
	// misaligned HLS stream; retried once with an enlarged queue.
	exitMuxQueueOverflow = 145

	defaultProgressInterval = 3 * time.Second
	defaultProbeTimeout     = 15 * time.Second
)

// Materializer runs the strategy cascade. Zero value works with the real
// toolchain and default intervals.
type Materializer struct {
	Runner           Runner        // nil = ExecRunner
	ProgressInterval time.Duration // min spacing between observer calls; 0 = 3s
	ProbeTimeout     time.Duration // ffprobe duration-probe cap; 0 = 15s
}

type stage struct {
	name string
	run  func(ctx context.Context, streamURL, outPath string, obs progress.Observer) error
}

// Materialize downloads streamURL to destDir/Episode {label}.mp4, trying each
// strategy in order and returning on the first that exits cleanly and leaves
// a file behind. obs receives throttled progress from the ffmpeg stages.
func (m *Materializer) Materialize(ctx context.Context, streamURL, episodeLabel, destDir string, obs progress.Observer) (string, error) {
	// The URL reaches external tools as an argument; only http(s) goes through.
	if !safeurl.IsHTTPOrHTTPS(streamURL) {
		return "", fmt.Errorf("materialize: refusing scheme of %q", redact(streamURL))
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("materialize: %w", err)
	}
	outPath := filepath.Join(destDir, fmt.Sprintf("Episode %s.mp4", episodeLabel))
	if obs == nil {
		obs = progress.Discard
	}
	obs = progress.Throttled(obs, m.progressInterval())

	// Every stage writes the same output path, so a later stage overwrites a
	// partial artifact from an earlier failed one.
	stages := []stage{
		{"yt-dlp", m.runYtdlp},
		{"ffmpeg-copy", m.runCopy},
		{"ffmpeg-encode", m.runEncode},
	}
	for _, s := range stages {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		metrics.StageAttempts.WithLabelValues(s.name).Inc()
		err := s.run(ctx, streamURL, outPath, obs)
		if err == nil {
			if fi, statErr := os.Stat(outPath); statErr == nil && fi.Size() > 0 {
				metrics.StageSuccesses.WithLabelValues(s.name).Inc()
				log.Printf("materializer: stage=%s ok out=%q size=%d", s.name, outPath, fi.Size())
				return outPath, nil
			}
			err = errors.New("clean exit but no output file")
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		// Absorbed: enough detail to tell tool-availability from
		// stream-content problems, but the cascade carries on.
		log.Printf("materializer: stage=%s failed url=%q err=%v", s.name, redact(streamURL), err)
	}
	os.Remove(outPath) // best effort, partial from the last stage
	return "", ErrAllStagesFailed
}

func (m *Materializer) runner() Runner {
	if m.Runner != nil {
		return m.Runner
	}
	return ExecRunner
}

func (m *Materializer) progressInterval() time.Duration {
	if m.ProgressInterval > 0 {
		return m.ProgressInterval
	}
	return defaultProgressInterval
}

func (m *Materializer) probeTimeout() time.Duration {
	if m.ProbeTimeout > 0 {
		return m.ProbeTimeout
	}
	return defaultProbeTimeout
}

// runYtdlp is the optional fast path: best available video+audio remuxed to
// one file. No progress reporting; any failure falls through the cascade.
func (m *Materializer) runYtdlp(ctx context.Context, streamURL, outPath string, _ progress.Observer) error {
	code, err := m.runner().Run(ctx, nil, "yt-dlp",
		"-f", "best",
		"--no-warnings",
		"--no-progress",
		"-o", outPath,
		streamURL,
	)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("yt-dlp exit %d", code)
	}
	return nil
}

func (m *Materializer) runCopy(ctx context.Context, streamURL, outPath string, obs progress.Observer) error {
	duration := m.probeDuration(ctx, streamURL)
	args := copyArgs(streamURL, outPath, false)
	code, err := m.runFFmpeg(ctx, args, streamURL, outPath, duration, obs)
	if err != nil {
		return err
	}
	if code == exitMuxQueueOverflow {
		log.Printf("materializer: ffmpeg copy exit %d (mux queue overflow); retrying with enlarged queue", code)
		code, err = m.runFFmpeg(ctx, copyArgs(streamURL, outPath, true), streamURL, outPath, duration, obs)
		if err != nil {
			return err
		}
	}
	if code != 0 {
		return fmt.Errorf("ffmpeg copy exit %d", code)
	}
	return nil
}

func (m *Materializer) runEncode(ctx context.Context, streamURL, outPath string, obs progress.Observer) error {
	duration := m.probeDuration(ctx, streamURL)
	code, err := m.runFFmpeg(ctx, encodeArgs(streamURL, outPath), streamURL, outPath, duration, obs)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("ffmpeg encode exit %d", code)
	}
	return nil
}

func redact(s string) string {
	if i := len(s); i > 64 {
		return s[:64] + "..."
	}
	return s
}
