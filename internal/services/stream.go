package services

import (
	"net/url"
	"strings"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/player"
)

// StreamResolver builds stream URLs of the form {base}/{bucket}/{key}.
type StreamResolver struct {
	base string
}

var _ player.StreamResolver = StreamResolver{}

// NewStreamResolver creates a resolver rooted at base.
func NewStreamResolver(base string) StreamResolver {
	return StreamResolver{base: strings.TrimRight(base, "/")}
}

// ToStreamURL escapes each path segment of the bucket and key. Tracks without a storage
// location fall back to a by-id stream path.
func (r StreamResolver) ToStreamURL(t models.Track) string {
	if t.SourceBucket == "" || t.SourceKey == "" {
		return r.base + "/tracks/" + url.PathEscape(t.ID) + "/stream"
	}
	return r.base + "/" + escapeSegments(t.SourceBucket) + "/" + escapeSegments(t.SourceKey)
}

func escapeSegments(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
