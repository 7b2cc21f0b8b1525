package services

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"youtube-publisher-worker/domain"
)

const (
	youtubeWatchURL    = "https://www.youtube.com/watch?v="
	youtubeChannelURL  = "https://www.youtube.com/channel/"
	youtubeProviderURL = "https://www.youtube.com/oembed"
)

// ExtractMediaID returns the video id of a media event, or "" when the player
// did not report one.
func ExtractMediaID(parts domain.MediaParameters) string {
	return parts["docid"]
}

// ComputeDuration sums every watched interval (st[i], et[i]) rounded to whole
// seconds. Seeking produces one interval per resumed segment.
func ComputeDuration(parts domain.MediaParameters) uint64 {
	st, okST := parts["st"]
	et, okET := parts["et"]
	if !okST || !okET {
		return 0
	}

	startTimes := strings.Split(st, ",")
	endTimes := strings.Split(et, ",")
	if len(startTimes) != len(endTimes) {
		return 0
	}

	var duration uint64
	for i := range startTimes {
		interval := math.Round(parseSeconds(endTimes[i]) - parseSeconds(startTimes[i]))
		if interval < 0 {
			log.Warn().
				Str("st", startTimes[i]).
				Str("et", endTimes[i]).
				Msg("negative media interval, counting as zero")
			continue
		}
		if interval >= maxIntervalSeconds {
			log.Warn().
				Str("st", startTimes[i]).
				Str("et", endTimes[i]).
				Msg("media interval out of range, counting as zero")
			continue
		}
		seconds := uint64(interval)
		if duration > math.MaxUint64-seconds {
			return math.MaxUint64
		}
		duration += seconds
	}
	return duration
}

// Intervals at or above 2^63 seconds cannot come from a real player.
const maxIntervalSeconds = float64(1 << 63)

// numericPrefix matches the leading decimal number of a player timestamp;
// trailing garbage such as "12abc" is ignored.
var numericPrefix = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`)

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(numericPrefix.FindString(strings.TrimSpace(s)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// MediaKey is the ledger key for a watched item.
func MediaKey(mediaID, provider string) string {
	return provider + "_" + mediaID
}

func VideoURL(mediaID string) string {
	return youtubeWatchURL + mediaID
}

func ChannelURL(channelID string) string {
	return youtubeChannelURL + channelID
}

func PublisherID(channelID string) string {
	return domain.MediaTypeYouTube + "#channel:" + channelID
}

func oEmbedURL(mediaURL string) string {
	return youtubeProviderURL + "?format=json&url=" + url.QueryEscape(mediaURL)
}
