package ytid

import (
	"regexp"
	"strings"
)

// Field length limits matching the warehouse schema.
const (
	VideoIDLen      = 11 // video VARCHAR(15), API ids are exactly 11
	MaxChannelIDLen = 24 // channel.yt_channel_id VARCHAR(24)
)

var (
	// videoIDRe matches YouTube video IDs: alphanumeric, dash, underscore.
	videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	// channelIDRe matches channel IDs: "UC" prefix plus 22 id characters.
	channelIDRe = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
)

// ValidVideoID reports whether id is a well-formed YouTube video id.
func ValidVideoID(id string) bool {
	return videoIDRe.MatchString(strings.TrimSpace(id))
}

// ValidChannelID reports whether id is a well-formed YouTube channel id.
func ValidChannelID(id string) bool {
	id = strings.TrimSpace(id)
	return len(id) <= MaxChannelIDLen && channelIDRe.MatchString(id)
}
