// Package filter drops junk links and tags the survivors with a quality.
package filter

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"hoplink/internal/media"
)

// Filter holds the blocklist. Terms match case-insensitively as substrings
// of a candidate's URL or server label.
type Filter struct {
	blocklist []string
}

// New builds a Filter. Empty terms are ignored.
func New(blocklist []string) *Filter {
	terms := lo.FilterMap(blocklist, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		return t, t != ""
	})
	return &Filter{blocklist: terms}
}

// Blocked reports whether a candidate hits the blocklist.
func (f *Filter) Blocked(c media.StreamCandidate) bool {
	u := strings.ToLower(c.URL)
	l := strings.ToLower(c.ServerName)
	return lo.SomeBy(f.blocklist, func(term string) bool {
		return strings.Contains(u, term) || strings.Contains(l, term)
	})
}

// Apply removes blocked candidates, preserving order, and tags each survivor
// with the quality detected from its label and title. The result never
// aliases the input, and Apply(Apply(x)) == Apply(x).
func (f *Filter) Apply(cands []media.StreamCandidate, title string) []media.StreamCandidate {
	out := make([]media.StreamCandidate, 0, len(cands))
	for _, c := range cands {
		if f.Blocked(c) {
			continue
		}
		c.Quality = DetectQuality(c.ServerName + " " + title)
		out = append(out, c)
	}
	return out
}

var qualityMarkers = []struct {
	re      *regexp.Regexp
	quality media.Quality
}{
	{regexp.MustCompile(`(?i)\b(4k|2160p|uhd)\b`), media.Quality4K},
	{regexp.MustCompile(`(?i)\b1080p?\b`), media.Quality1080p},
	{regexp.MustCompile(`(?i)\b720p?\b`), media.Quality720p},
	{regexp.MustCompile(`(?i)\b480p?\b`), media.Quality480p},
}

// DetectQuality scans text for resolution markers in priority order
// 4K/2160p > 1080p > 720p > 480p and defaults to HD.
func DetectQuality(text string) media.Quality {
	for _, m := range qualityMarkers {
		if m.re.MatchString(text) {
			return m.quality
		}
	}
	return media.QualityHD
}

// QualityTags lists every resolution and encoding marker found in a title,
// in the order they appear.
func QualityTags(title string) []string {
	matches := tagPattern.FindAllString(title, -1)
	return lo.Uniq(lo.Map(matches, func(m string, _ int) string {
		m = strings.ToLower(m)
		switch m {
		case "4k", "2160p", "uhd":
			return "4K"
		case "hevc", "x265", "x264", "hdr", "web-dl", "webrip", "bluray":
			return strings.ToUpper(m)
		}
		return m
	}))
}

var tagPattern = regexp.MustCompile(`(?i)\b(4k|2160p|uhd|1080p|720p|480p|hevc|x265|x264|hdr|web-dl|webrip|bluray)\b`)
