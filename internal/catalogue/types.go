package catalogue

// TitleResult is one search hit, normalized from whichever envelope shape the
// upstream happened to serve.
type TitleResult struct {
	DisplayName string `json:"display_name"`
	Slug        string `json:"slug"`
}

// EpisodeRef identifies one episode of a title. Number keeps the upstream's
// string form (specials like "6.5" exist) but episode lists are sorted by its
// numeric interpretation when one exists.
type EpisodeRef struct {
	Number string `json:"number"`
	ID     string `json:"id"` // opaque upstream id, e.g. "slug-123?ep=1"
}

// StreamManifest is the resolved playback info for one episode. An empty
// StreamURL means "no stream found", a normal terminal outcome, not an
// error. Manifests are resolved fresh per episode and never cached.
type StreamManifest struct {
	StreamURL   string
	SubtitleURL string
}
