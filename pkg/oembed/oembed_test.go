package oembed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(WithEndpoints(srv.URL+"/yt/oembed", srv.URL+"/yt/page/", srv.URL+"/vimeo/oembed"))
}

func TestYouTube(t *testing.T) {
	t.Run("oembed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/yt/oembed", r.URL.Path)
			assert.Equal(t, "https://www.youtube.com/watch?v=abc123abc12", r.URL.Query().Get("url"))
			w.Write([]byte(`{"title":"Song","author_name":"Band"}`))
		})

		data, err := c.YouTube(context.Background(), "abc123abc12")
		require.NoError(t, err)
		assert.Equal(t, "Song", data.Title)
		assert.Equal(t, "Band", data.AuthorName)
	})

	t.Run("falls back to page when not embeddable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/yt/oembed" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "/yt/page/abc123abc12", r.URL.Path)
			w.Write([]byte(`<html><head><title>Private Song - YouTube</title>` +
				`<link itemprop="name" content="Band"></head><body></body></html>`))
		})

		data, err := c.YouTube(context.Background(), "abc123abc12")
		require.NoError(t, err)
		assert.Equal(t, "Private Song", data.Title)
		assert.Equal(t, "Band", data.AuthorName)
		assert.Contains(t, data.ThumbnailURL, "abc123abc12")
	})

	t.Run("not found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := c.YouTube(context.Background(), "missing0000")
		assert.ErrorIs(t, err, ErrVideoNotFound)
	})
}

func TestVimeo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vimeo/oembed", r.URL.Path)
		w.Write([]byte(`{"title":"Short film"}`))
	})

	data, err := c.Vimeo(context.Background(), "76979871")
	require.NoError(t, err)
	assert.Equal(t, "Short film", data.Title)
}
