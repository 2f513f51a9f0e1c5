package orchestrator

import (
	"testing"

	"github.com/animecourier/anime-courier/internal/progress"
)

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		name string
		e    progress.Event
		want string
	}{
		{
			"all fields known",
			progress.Event{Bytes: 12 << 20, BytesPerSec: 2 << 20, Percent: 40, ETASeconds: 90},
			"Downloading Episode 2: 12.0 MiB at 2.0 MiB/s, 40.0%, ETA 1m30s",
		},
		{
			"duration unknown hides percent and eta",
			progress.Event{Bytes: 3 << 20, BytesPerSec: 1 << 20, Percent: progress.Unknown, ETASeconds: progress.Unknown},
			"Downloading Episode 2: 3.0 MiB at 1.0 MiB/s",
		},
		{
			"no rate yet",
			progress.Event{Bytes: 512, Percent: progress.Unknown, ETASeconds: progress.Unknown},
			"Downloading Episode 2: 512 B",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatProgress("Downloading", "2", tt.e); got != tt.want {
				t.Errorf("formatProgress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFmtBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1 << 10, "1 KiB"},
		{5 << 20, "5.0 MiB"},
		{3 << 30, "3.00 GiB"},
	}
	for _, tt := range tests {
		if got := fmtBytes(tt.n); got != tt.want {
			t.Errorf("fmtBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
