// Package spouts defines the plugin contract for content sources and the
// registry of available spout types.
package spouts

import (
	"context"
	"time"

	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

// Item is one normalized unit of fetched content.
//
// Order within a fetch is whatever the remote API returned; consumers must
// not assume monotonic timestamps. ID must be stable per item so a storage
// layer can de-duplicate across fetches.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Link      string    `json:"link"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Author    string    `json:"author,omitempty"`
	Published time.Time `json:"published"`
	// Extra carries spout-specific payload opaque to this package.
	// Nil for spouts with nothing to add.
	Extra any `json:"extra,omitempty"`
}

// Spout fetches items from one kind of remote content origin.
//
// Lifecycle: a fresh instance starts unloaded. Load transitions it to
// loaded, buffering items and derived metadata as instance state. Destroy
// releases the buffer and ends the instance's life; the owner must call it
// once items have been consumed. Instances are not safe for concurrent use.
type Spout interface {
	// Load fetches and buffers items using values already resolved
	// against the spout's parameter schema.
	Load(ctx context.Context, p params.Values) error
	// Items returns the buffered items. Before Load and after Destroy it
	// returns an empty, non-nil slice.
	Items() []Item
	// Title returns the display title derived during Load, or "" when
	// Load has not completed or the source type has no stable title.
	Title() string
	// HTMLURL returns the web address derived during Load, or "".
	HTMLURL() string
	// Destroy releases buffered items.
	Destroy()
}
