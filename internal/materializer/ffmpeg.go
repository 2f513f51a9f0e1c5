package materializer

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/animecourier/anime-courier/internal/progress"
)

// Only the protocols adaptive-stream input actually needs; keeps ffmpeg from
// following a hostile playlist into file:// or concat.
const protocolWhitelist = "file,http,https,tcp,tls"

// copyArgs builds the stream-copy invocation. aac_adtstoasc corrects the
// ADTS-to-MP4 audio framing mismatch HLS segments carry. largeQueue is the
// one-shot retry after a mux-queue-overflow exit.
func copyArgs(streamURL, outPath string, largeQueue bool) []string {
	args := []string{
		"-y",
		"-protocol_whitelist", protocolWhitelist,
		"-i", streamURL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
	}
	if largeQueue {
		args = append(args, "-max_muxing_queue_size", "9999")
	}
	return append(args, "-progress", "pipe:1", "-nostats", outPath)
}

// encodeArgs builds the last-resort full re-encode invocation.
func encodeArgs(streamURL, outPath string) []string {
	return []string{
		"-y",
		"-protocol_whitelist", protocolWhitelist,
		"-i", streamURL,
		"-c:v", "libx264", "-preset", "fast", "-crf", "18",
		"-c:a", "aac", "-b:a", "192k",
		"-progress", "pipe:1", "-nostats",
		outPath,
	}
}

// probeDuration asks ffprobe for the stream's total duration in seconds.
// Best effort: failure only disables percent/ETA for this attempt, it never
// aborts the pipeline. Returns progress.Unknown on any failure.
func (m *Materializer) probeDuration(ctx context.Context, streamURL string) float64 {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout())
	defer cancel()

	var out strings.Builder
	code, err := m.runner().Run(ctx, func(line string) {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(line)
	}, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		streamURL,
	)
	if err != nil || code != 0 {
		log.Printf("materializer: ffprobe failed (code=%d err=%v); proceeding without duration", code, err)
		return progress.Unknown
	}
	d, perr := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if perr != nil || d <= 0 {
		return progress.Unknown
	}
	return d
}

// runFFmpeg executes one ffmpeg attempt, translating its machine-readable
// -progress key=value stream into progress events: output size, average
// throughput, percent when the duration is known, and ETA when percent > 0.
func (m *Materializer) runFFmpeg(ctx context.Context, args []string, streamURL, outPath string, duration float64, obs progress.Observer) (int, error) {
	start := time.Now()
	onLine := func(line string) {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || key != "out_time_ms" {
			return
		}
		outMS, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return
		}
		currSeconds := float64(outMS) / 1e6

		ev := progress.Event{
			DurationSeconds: duration,
			Percent:         progress.Unknown,
			ElapsedSeconds:  time.Since(start).Seconds(),
			ETASeconds:      progress.Unknown,
		}
		if fi, err := os.Stat(outPath); err == nil {
			ev.Bytes = fi.Size()
		}
		if ev.ElapsedSeconds > 0 {
			ev.BytesPerSec = float64(ev.Bytes) / ev.ElapsedSeconds
		}
		if duration > 0 {
			ev.Percent = currSeconds / duration * 100
			ev.ETASeconds = progress.ETA(ev.ElapsedSeconds, ev.Percent)
		}
		obs.OnProgress(ev)
	}
	return m.runner().Run(ctx, onLine, "ffmpeg", args...)
}
