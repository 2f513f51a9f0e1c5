// Package catalogue wraps the upstream anime-catalogue API: title search,
// episode listing and stream/subtitle resolution. The API's JSON envelope is
// not contractually stable, so every response is decoded defensively through
// ordered extraction rules (see envelope.go).
package catalogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/animecourier/anime-courier/internal/httpclient"
)

// Error taxonomy. Retry policy belongs to the caller; these are never
// silently retried here (beyond the shared transport's single 429/5xx retry).
var (
	// ErrUnavailable: the upstream could not be reached or answered non-2xx.
	ErrUnavailable = errors.New("catalogue unavailable")
	// ErrContract: the upstream answered but the payload matched no known shape.
	ErrContract = errors.New("catalogue contract violation")
)

// SubtitleMatch selects how subtitle tracks are matched to "English".
// Upstream revisions have alternated between a label prefix and a language
// code, so the predicate is deployment-configurable.
type SubtitleMatch string

const (
	// MatchLabel: track label starts with "english" (case-insensitive).
	MatchLabel SubtitleMatch = "label"
	// MatchLang: track lang/srclang code equals "en".
	MatchLang SubtitleMatch = "lang"
)

// Client talks to one catalogue deployment.
type Client struct {
	BaseURL string       // e.g. http://localhost:4000/api/v2/hianime
	HTTP    *http.Client // nil = httpclient.Default()

	// PreferredServer is the rendition label requested and preferred when
	// picking among sources (e.g. "hd-2", "hd-1").
	PreferredServer string
	SubtitleMatch   SubtitleMatch
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return httpclient.Default()
}

func (c *Client) preferredServer() string {
	if c.PreferredServer == "" {
		return "hd-2"
	}
	return c.PreferredServer
}

// get fetches u and returns the body. Transport errors map to ErrUnavailable.
// allow404 returns (nil, nil) on 404 so ListEpisodes can apply its contract.
func (c *Client) get(ctx context.Context, u string, allow404 bool) ([]byte, error) {
	release, err := httpclient.Gate.Acquire(ctx, u)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := httpclient.DoWithRetry(ctx, c.httpClient(), req, httpclient.DefaultRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if allow404 && resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	return body, nil
}

// Search looks up titles by name. Empty result is success with zero items.
func (c *Client) Search(ctx context.Context, query string) ([]TitleResult, error) {
	q := url.Values{"q": {query}, "page": {"1"}}
	body, err := c.get(ctx, c.BaseURL+"/search?"+q.Encode(), false)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	items, ok, err := extractList(body, searchRules)
	if err != nil || !ok {
		return nil, fmt.Errorf("search %q: %w", query, contractErr(err))
	}

	results := make([]TitleResult, 0, len(items))
	for _, raw := range items {
		// Two element shapes observed: a bare slug string, or an object with
		// id plus one or more name fields.
		var slug string
		if json.Unmarshal(raw, &slug) == nil {
			if slug == "" {
				continue
			}
			results = append(results, TitleResult{DisplayName: titleFromSlug(slug), Slug: slug})
			continue
		}
		var obj struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			JName string `json:"jname"`
		}
		if json.Unmarshal(raw, &obj) != nil || obj.ID == "" {
			continue
		}
		name := obj.Name
		if name == "" {
			name = obj.JName
		}
		if name == "" {
			name = titleFromSlug(obj.ID)
		}
		results = append(results, TitleResult{DisplayName: name, Slug: obj.ID})
	}
	return results, nil
}

// ListEpisodes fetches the episode list for a title slug, sorted ascending by
// numeric episode number. A remote 404 is not an error: by upstream contract
// it means the title has exactly one unnumbered episode, yielding a single
// synthetic ref numbered "1".
func (c *Client) ListEpisodes(ctx context.Context, slug string) ([]EpisodeRef, error) {
	body, err := c.get(ctx, c.BaseURL+"/anime/"+url.PathEscape(slug)+"/episodes", true)
	if err != nil {
		return nil, fmt.Errorf("episodes %q: %w", slug, err)
	}
	if body == nil { // 404
		return []EpisodeRef{{Number: "1", ID: slug + "?ep=1"}}, nil
	}
	items, ok, err := extractList(body, episodeRules)
	if err != nil || !ok {
		return nil, fmt.Errorf("episodes %q: %w", slug, contractErr(err))
	}

	eps := make([]EpisodeRef, 0, len(items))
	for _, raw := range items {
		var obj struct {
			Number    json.Number `json:"number"`
			EpisodeID string      `json:"episodeId"`
		}
		if json.Unmarshal(raw, &obj) != nil {
			continue
		}
		num := strings.TrimSpace(obj.Number.String())
		id := strings.TrimSpace(obj.EpisodeID)
		if num == "" || id == "" {
			continue
		}
		eps = append(eps, EpisodeRef{Number: num, ID: id})
	}
	sortEpisodes(eps)
	return eps, nil
}

// ResolveStream resolves the playable source and subtitle for an episode id.
// Absence of a stream (or subtitle) is a normal outcome, reported as empty
// fields, distinct from a resolution error.
func (c *Client) ResolveStream(ctx context.Context, episodeID string) (StreamManifest, error) {
	q := url.Values{
		"animeEpisodeId": {episodeID},
		"server":         {c.preferredServer()},
		"category":       {"sub"}, // subtitled, not dubbed
	}
	body, err := c.get(ctx, c.BaseURL+"/episode/sources?"+q.Encode(), false)
	if err != nil {
		return StreamManifest{}, fmt.Errorf("sources %q: %w", episodeID, err)
	}

	var m StreamManifest
	sources, ok, err := extractList(body, sourceRules)
	if err != nil {
		return StreamManifest{}, fmt.Errorf("sources %q: %w", episodeID, contractErr(err))
	}
	if ok {
		m.StreamURL = c.pickSource(sources)
	}
	// Tracks ride the same response; a missing tracks list just means no
	// subtitles, never a failure.
	if tracks, ok, err := extractList(body, trackRules); err == nil && ok {
		m.SubtitleURL = c.pickSubtitle(tracks)
	}
	return m, nil
}

// pickSource prefers a source labelled with the preferred server tier, then
// falls back to the first hls-typed source carrying a URL.
func (c *Client) pickSource(sources []json.RawMessage) string {
	type source struct {
		URL    string `json:"url"`
		Type   string `json:"type"`
		Label  string `json:"label"`
		Server string `json:"server"`
	}
	var fallback string
	for _, raw := range sources {
		var s source
		if json.Unmarshal(raw, &s) != nil || s.URL == "" {
			continue
		}
		if s.Type != "" && s.Type != "hls" {
			continue
		}
		label := s.Label
		if label == "" {
			label = s.Server
		}
		if strings.EqualFold(label, c.preferredServer()) {
			return s.URL
		}
		if fallback == "" {
			fallback = s.URL
		}
	}
	return fallback
}

func (c *Client) pickSubtitle(tracks []json.RawMessage) string {
	mode := c.SubtitleMatch
	if mode == "" {
		mode = MatchLabel
	}
	for _, raw := range tracks {
		var t struct {
			File    string `json:"file"`
			Label   string `json:"label"`
			Lang    string `json:"lang"`
			SrcLang string `json:"srclang"`
		}
		if json.Unmarshal(raw, &t) != nil || t.File == "" {
			continue
		}
		switch mode {
		case MatchLang:
			lang := t.Lang
			if lang == "" {
				lang = t.SrcLang
			}
			if strings.EqualFold(lang, "en") || strings.HasPrefix(strings.ToLower(lang), "en-") {
				return t.File
			}
		default:
			if strings.HasPrefix(strings.ToLower(t.Label), "english") {
				return t.File
			}
		}
	}
	return ""
}

// contractErr wraps a decode error (or nil, for "no known key") as ErrContract.
func contractErr(err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContract, err)
	}
	return fmt.Errorf("%w: no known payload key", ErrContract)
}

// titleFromSlug turns "attack-on-titan" into "Attack On Titan" for entries
// where the upstream only sent a slug.
func titleFromSlug(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// sortEpisodes orders ascending by numeric interpretation of Number; entries
// that do not parse sort after the numeric ones, by string.
func sortEpisodes(eps []EpisodeRef) {
	sort.SliceStable(eps, func(i, j int) bool {
		a, aerr := strconv.ParseFloat(eps[i].Number, 64)
		b, berr := strconv.ParseFloat(eps[j].Number, 64)
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		default:
			return eps[i].Number < eps[j].Number
		}
	})
}
