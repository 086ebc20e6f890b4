package media

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sharetube/watchroom/internal/domain"
)

var ErrUnsupportedURL = domain.ErrUnsupportedMedia

type Kind string

const (
	KindYouTube    Kind = "youtube"
	KindVimeo      Kind = "vimeo"
	KindSpotify    Kind = "spotify"
	KindSoundCloud Kind = "soundcloud"
	KindDirect     Kind = "direct"
)

var (
	youtubeRe = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|embed/|v/|shorts/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	vimeoRe   = regexp.MustCompile(`vimeo\.com/(?:video/)?(\d+)`)
	spotifyRe = regexp.MustCompile(`spotify\.com/(?:intl-[a-z]+/)?(track|album|playlist|episode)/([a-zA-Z0-9]+)`)
	directRe  = regexp.MustCompile(`(?i)\.(mp4|webm|ogg|mp3|wav|m4a)(\?.*)?$`)
	audioRe   = regexp.MustCompile(`(?i)\.(mp3|wav|m4a)(\?.*)?$`)
)

type Media struct {
	Kind Kind
	// ID is the platform id for youtube, vimeo and spotify media.
	ID string
	// ContentType is the spotify content type (track, album, playlist, episode).
	ContentType string
	URL         string
}

// Parse recognises the media types rooms can play. Anything else is ErrUnsupportedURL.
func Parse(raw string) (Media, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Media{}, ErrUnsupportedURL
	}

	if m := youtubeRe.FindStringSubmatch(raw); m != nil {
		return Media{Kind: KindYouTube, ID: m[1], URL: raw}, nil
	}
	if m := vimeoRe.FindStringSubmatch(raw); m != nil {
		return Media{Kind: KindVimeo, ID: m[1], URL: raw}, nil
	}
	if m := spotifyRe.FindStringSubmatch(raw); m != nil {
		return Media{Kind: KindSpotify, ContentType: m[1], ID: m[2], URL: raw}, nil
	}
	if strings.Contains(raw, "soundcloud.com") {
		return Media{Kind: KindSoundCloud, URL: raw}, nil
	}
	if strings.HasPrefix(raw, "blob:") || directRe.MatchString(raw) {
		return Media{Kind: KindDirect, URL: raw}, nil
	}

	return Media{}, ErrUnsupportedURL
}

// Identity is the canonical key two clients compare to decide whether they are
// showing the same item. Platform ids win over the raw URL so trivially different
// spellings of one video do not look like a track change.
func (m Media) Identity() string {
	switch m.Kind {
	case KindYouTube:
		return "yt:" + m.ID
	case KindVimeo:
		return "vimeo:" + m.ID
	case KindSpotify:
		return "spotify:" + m.ContentType + ":" + m.ID
	case KindSoundCloud:
		return "soundcloud:" + normalizeURL(m.URL, true)
	default:
		return "direct:" + normalizeURL(m.URL, false)
	}
}

func (m Media) IsAudio() bool {
	switch m.Kind {
	case KindSpotify, KindSoundCloud:
		return true
	case KindDirect:
		return audioRe.MatchString(m.URL)
	default:
		return false
	}
}

// Embeddable reports whether the media is presented through a third party player
// that only exposes commands and a state callback.
func (m Media) Embeddable() bool {
	return m.Kind != KindDirect
}

func (m Media) EmbedURL() string {
	switch m.Kind {
	case KindYouTube:
		return "https://www.youtube-nocookie.com/embed/" + m.ID + "?autoplay=1&rel=0&modestbranding=1"
	case KindVimeo:
		return "https://player.vimeo.com/video/" + m.ID + "?autoplay=1&title=0&byline=0&portrait=0"
	case KindSpotify:
		return "https://open.spotify.com/embed/" + m.ContentType + "/" + m.ID
	case KindSoundCloud:
		return "https://w.soundcloud.com/player/?url=" + url.QueryEscape(m.URL) + "&auto_play=true"
	default:
		return m.URL
	}
}

// Identity returns the canonical identity of raw, or "" for an empty url.
// Unparseable urls keep their raw text as identity.
func Identity(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	m, err := Parse(raw)
	if err != nil {
		return "raw:" + strings.TrimSpace(raw)
	}

	return m.Identity()
}

func normalizeURL(raw string, dropQuery bool) string {
	if strings.HasPrefix(raw, "blob:") {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""
	if dropQuery {
		u.RawQuery = ""
	}

	return u.String()
}
