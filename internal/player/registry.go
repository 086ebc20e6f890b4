package player

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharetube/watchroom/internal/media"
)

// Registry picks the adapter kind for a media item: directly controllable
// elements for direct files and embedded players for everything else.
type Registry struct {
	NewElement func() MediaElement
	NewEmbed   func() EmbedPlayer
	Embed      EmbedConfig
	Logger     *slog.Logger
}

// NewHeadlessRegistry builds adapters over headless players driven by now.
func NewHeadlessRegistry(now func() time.Time, logger *slog.Logger) *Registry {
	return &Registry{
		NewElement: func() MediaElement { return NewHeadlessElement(now) },
		NewEmbed:   func() EmbedPlayer { return NewHeadlessEmbed(now) },
		Embed:      EmbedConfig{Now: now},
		Logger:     logger,
	}
}

// AdapterFor returns a fresh adapter for m. Embedded adapters poll until ctx is
// done or the adapter is closed.
func (r *Registry) AdapterFor(ctx context.Context, m media.Media) Adapter {
	logger := r.Logger.With("media_kind", m.Kind)
	if !m.Embeddable() {
		return NewNativeAdapter(r.NewElement(), logger)
	}

	a := NewEmbedAdapter(r.NewEmbed(), logger, r.Embed)
	a.start(ctx)

	return a
}
