package youtube

import (
	"regexp"
	"strconv"
	"strings"
)

// iso8601Duration matches the PT#H#M#S pattern used by the Data API.
var iso8601Duration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// shortsMarker matches a "#shorts" or "#short" tag in title or description.
var shortsMarker = regexp.MustCompile(`(?i)#shorts?\b`)

// ShortMaxSeconds is the duration ceiling for classifying a video as a Short.
const ShortMaxSeconds = 60

// ParseDuration converts an ISO-8601 duration (PT1H2M3S) to seconds.
// Missing components default to zero. Malformed input yields zero; this
// never fails, because a zero duration is treated as unknown downstream.
func ParseDuration(iso string) int {
	m := iso8601Duration.FindStringSubmatch(strings.TrimSpace(iso))
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(zeroIfEmpty(m[1]))
	minutes, _ := strconv.Atoi(zeroIfEmpty(m[2]))
	seconds, _ := strconv.Atoi(zeroIfEmpty(m[3]))
	return hours*3600 + minutes*60 + seconds
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// ClassifyKind decides whether a video is a Short or a regular video.
// A video is a Short if its duration is in (0, 60] seconds, or if the
// title or description carries a "#shorts" marker. A zero duration with
// no marker classifies as a regular video (unknown defaults to long-form).
func ClassifyKind(durationSeconds int, title, description string) Kind {
	if durationSeconds > 0 && durationSeconds <= ShortMaxSeconds {
		return KindShort
	}
	if shortsMarker.MatchString(title) || shortsMarker.MatchString(description) {
		return KindShort
	}
	return KindVideo
}
