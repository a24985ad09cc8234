// Package sources maintains the set of configured sources and drives
// their fetch lifecycle.
package sources

import (
	"maps"
	"strings"
	"time"
)

const draftIDPrefix = "draft-"

// Source is a configured, persisted instance of a spout.
//
// Title and HTMLURL hold the last-known display metadata from a successful
// fetch; a later failure leaves them untouched so the source stays
// presentable. Params must round-trip losslessly through the configuration
// store.
type Source struct {
	ID      string            `json:"id"`
	Spout   string            `json:"spout"`
	Params  map[string]string `json:"params"`
	Title   string            `json:"title,omitempty"`
	HTMLURL string            `json:"htmlUrl,omitempty"`
	// LastFetch is nil when the source has never been fetched.
	LastFetch *time.Time `json:"lastFetch,omitempty"`
	// LastError holds the most recent fetch failure, empty when the last
	// fetch succeeded.
	LastError string `json:"lastError,omitempty"`
}

// IsDraft reports whether the source only exists client-side and has not
// been saved to the configuration store yet.
func (s *Source) IsDraft() bool {
	return strings.HasPrefix(s.ID, draftIDPrefix)
}

func (s *Source) Clone() *Source {
	out := *s
	out.Params = maps.Clone(s.Params)
	if s.LastFetch != nil {
		t := *s.LastFetch
		out.LastFetch = &t
	}
	return &out
}
