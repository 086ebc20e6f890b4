package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw      string
		kind     Kind
		identity string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", KindYouTube, "yt:dQw4w9WgXcQ"},
		{"https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42", KindYouTube, "yt:dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=xyz", KindYouTube, "yt:dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", KindYouTube, "yt:dQw4w9WgXcQ"},
		{"https://vimeo.com/76979871", KindVimeo, "vimeo:76979871"},
		{"https://vimeo.com/video/76979871", KindVimeo, "vimeo:76979871"},
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", KindSpotify, "spotify:track:4uLU6hMCjMI75M1A2tKUQC"},
		{"https://open.spotify.com/episode/abc", KindSpotify, "spotify:episode:abc"},
		{"https://soundcloud.com/artist/song?in=x", KindSoundCloud, "soundcloud:https://soundcloud.com/artist/song"},
		{"https://cdn.example.com/movie.MP4", KindDirect, "direct:https://cdn.example.com/movie.MP4"},
		{"https://cdn.example.com/a.mp3?sig=1", KindDirect, "direct:https://cdn.example.com/a.mp3?sig=1"},
		{"blob:https://app/1234", KindDirect, "direct:blob:https://app/1234"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			m, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, m.Kind)
			assert.Equal(t, tt.identity, m.Identity())
		})
	}
}

func TestParseUnsupported(t *testing.T) {
	for _, raw := range []string{"", "   ", "https://example.com/page", "not a url"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrUnsupportedURL, raw)
	}
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, "", Identity(""))
	assert.Equal(t, Identity("https://youtu.be/dQw4w9WgXcQ"), Identity("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.Equal(t, "raw:https://example.com/x", Identity(" https://example.com/x "))
}

func TestIsAudio(t *testing.T) {
	m, _ := Parse("https://cdn.example.com/a.mp3")
	assert.True(t, m.IsAudio())
	m, _ = Parse("https://cdn.example.com/a.webm")
	assert.False(t, m.IsAudio())
	assert.False(t, m.Embeddable())
	m, _ = Parse("https://vimeo.com/1")
	assert.True(t, m.Embeddable())
	assert.Equal(t, "https://player.vimeo.com/video/1?autoplay=1&title=0&byline=0&portrait=0", m.EmbedURL())
}
