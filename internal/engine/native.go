package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	native "github.com/ytget/ytdlp/v2"
)

// ErrNoPlaylistID is returned when a URL carries no list= parameter.
var ErrNoPlaylistID = errors.New("url has no playlist id")

// NativeLister enumerates YouTube playlists in-process with ytdlp/v2
// instead of spawning the engine binary.
type NativeLister struct{}

// ListEntries returns up to limit entries of the playlist referenced by
// rawURL. A limit of zero returns every entry.
func (NativeLister) ListEntries(ctx context.Context, rawURL string, limit int) ([]Entry, error) {
	id := PlaylistID(rawURL)
	if id == "" {
		return nil, ErrNoPlaylistID
	}
	items, err := native.New().GetPlaylistItemsAll(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list playlist %s: %w", id, err)
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if item.VideoID == "" {
			continue
		}
		entries = append(entries, Entry{
			ID:    item.VideoID,
			Title: item.Title,
			URL:   WatchURL + item.VideoID,
		})
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

// PlaylistID extracts the list= query parameter from a YouTube URL.
func PlaylistID(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(parsed.Query().Get("list"))
}

// FallbackLister tries Primary and falls back to Secondary when Primary
// cannot serve the URL.
type FallbackLister struct {
	Primary   Lister
	Secondary Lister
}

// ListEntries implements Lister.
func (f FallbackLister) ListEntries(ctx context.Context, rawURL string, limit int) ([]Entry, error) {
	entries, err := f.Primary.ListEntries(ctx, rawURL, limit)
	if err == nil && len(entries) > 0 {
		return entries, nil
	}
	if f.Secondary == nil {
		return entries, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return f.Secondary.ListEntries(ctx, rawURL, limit)
}
