// Package testutil provides fixture generators shared by tests. Nothing in
// here is meant for production code.
package testutil

import (
	"fmt"
	"strings"
)

// PlaylistOptions controls the generated HLS playlist.
type PlaylistOptions struct {
	// SegmentURIs are written in order, one #EXTINF entry each.
	SegmentURIs []string
	// SegmentDuration is the per-segment duration in seconds; defaults to 4.
	SegmentDuration float64
	// OmitEndTag drops the #EXT-X-ENDLIST marker to mimic a live playlist.
	OmitEndTag bool
}

// GeneratePlaylist builds a minimal media playlist the way real CDNs serve
// them: header, one #EXTINF line per segment, end tag.
func GeneratePlaylist(opts PlaylistOptions) string {
	duration := opts.SegmentDuration
	if duration == 0 {
		duration = 4.0
	}

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	for _, uri := range opts.SegmentURIs {
		fmt.Fprintf(&sb, "#EXTINF:%.1f,\n%s\n", duration, uri)
	}
	if !opts.OmitEndTag {
		sb.WriteString("#EXT-X-ENDLIST\n")
	}
	return sb.String()
}

// NumberedSegmentURIs returns "seg0.ts" .. "seg<n-1>.ts".
func NumberedSegmentURIs(n int) []string {
	uris := make([]string, n)
	for i := range uris {
		uris[i] = fmt.Sprintf("seg%d.ts", i)
	}
	return uris
}
