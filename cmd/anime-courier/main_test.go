package main

import "testing"

func TestEpisodeNumberFromID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"steinsgate-3?ep=230", "230"},
		{"naruto?ep=1", "1"},
		{"bare-slug", "1"},
		{"slug?ep=", "1"},
	}
	for _, tt := range tests {
		if got := episodeNumberFromID(tt.id); got != tt.want {
			t.Errorf("episodeNumberFromID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
