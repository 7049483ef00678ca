package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbePlaylist(t *testing.T) {
	data := []byte(`{
		"_type": "playlist", "id": "PL1", "title": "Mix", "uploader": "someone",
		"entries": [
			{"id": "a", "title": "First", "url": "https://www.youtube.com/watch?v=a", "duration": 61},
			{"id": "b", "title": "Second"},
			{"title": "broken"}
		]
	}`)
	info, err := parseProbe(data)
	require.NoError(t, err)
	assert.True(t, info.IsPlaylist)
	assert.Equal(t, "Mix", info.Title)
	require.Len(t, info.Entries, 2)
	assert.Equal(t, 61.0, info.Entries[0].Duration)
	assert.Equal(t, "https://www.youtube.com/watch?v=b", info.Entries[1].CanonicalURL())
}

func TestParseProbeSingle(t *testing.T) {
	info, err := parseProbe([]byte(`{"id": "x", "title": "Clip", "webpage_url": "https://example.com/x", "thumbnail": "t.jpg"}`))
	require.NoError(t, err)
	assert.False(t, info.IsPlaylist)
	assert.Equal(t, "https://example.com/x", info.URL)
	assert.Empty(t, info.Entries)

	_, err = parseProbe([]byte(`{}`))
	assert.Error(t, err)
	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func TestForwardMessages(t *testing.T) {
	var got []string
	forwardMessages("[info] x\nWARNING: slow connection\nERROR: Video unavailable\n", func(level MessageLevel, text string) {
		got = append(got, string(level)+":"+text)
	})
	assert.Equal(t, []string{"warning:slow connection", "error:Video unavailable"}, got)
}

func TestRunErrorWithoutResult(t *testing.T) {
	base := errors.New("exit status 1")
	assert.Same(t, base, runError(base, nil))
}

func TestPlaylistID(t *testing.T) {
	assert.Equal(t, "PLabc", PlaylistID("https://www.youtube.com/watch?v=x&list=PLabc&index=2"))
	assert.Equal(t, "", PlaylistID("https://www.youtube.com/watch?v=x"))
	assert.Equal(t, "", PlaylistID("://bad"))
}

type stubLister struct {
	entries []Entry
	err     error
	calls   int
}

func (s *stubLister) ListEntries(context.Context, string, int) ([]Entry, error) {
	s.calls++
	return s.entries, s.err
}

func TestFallbackLister(t *testing.T) {
	primary := &stubLister{err: ErrNoPlaylistID}
	secondary := &stubLister{entries: []Entry{{ID: "a"}}}
	entries, err := FallbackLister{Primary: primary, Secondary: secondary}.ListEntries(context.Background(), "u", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, secondary.calls)

	primary = &stubLister{entries: []Entry{{ID: "p"}}}
	secondary = &stubLister{}
	entries, err = FallbackLister{Primary: primary, Secondary: secondary}.ListEntries(context.Background(), "u", 0)
	require.NoError(t, err)
	assert.Equal(t, "p", entries[0].ID)
	assert.Zero(t, secondary.calls)
}
