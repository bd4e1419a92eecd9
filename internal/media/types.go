// Package media defines shared types for the hoplink application.
package media

import (
	"encoding/json"
	"strings"

	"hoplink/internal/failure"
)

// Family is the hosting family a link belongs to. Each family has its own
// resolution strategy.
type Family int

const (
	Unknown Family = iota
	HubCloudLike
	VCloudLike
	MDriveLike
)

func (f Family) String() string {
	switch f {
	case HubCloudLike:
		return "hubcloud"
	case VCloudLike:
		return "vcloud"
	case MDriveLike:
		return "mdrive"
	default:
		return "unknown"
	}
}

// ParseFamily maps a configured family name back to a Family.
func ParseFamily(s string) (Family, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hubcloud":
		return HubCloudLike, true
	case "vcloud":
		return VCloudLike, true
	case "mdrive":
		return MDriveLike, true
	case "unknown":
		return Unknown, true
	default:
		return Unknown, false
	}
}

// Quality is the detected resolution label of a stream.
type Quality int

const (
	QualityUnknown Quality = iota
	Quality4K
	Quality1080p
	Quality720p
	Quality480p
	QualityHD
)

func (q Quality) String() string {
	switch q {
	case Quality4K:
		return "4K"
	case Quality1080p:
		return "1080p"
	case Quality720p:
		return "720p"
	case Quality480p:
		return "480p"
	case QualityHD:
		return "HD"
	default:
		return "Unknown"
	}
}

func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// StreamCandidate is an extracted stream or download link.
type StreamCandidate struct {
	ServerName string  `json:"server"`
	URL        string  `json:"url"`
	Quality    Quality `json:"quality"`
	IsArchive  bool    `json:"isArchive"`
}

// ListingItem is one entry of a directory-like target page (episode, file).
// Key re-encodes the entry so it can be passed back to the resolver.
type ListingItem struct {
	Title string `json:"title"`
	Link  string `json:"link"`
	Key   string `json:"key,omitempty"`
}

// Request is a single resolution call.
type Request struct {
	Input      string // opaque key or raw URL
	AllServers bool   // multi-server policy instead of single-stream
}

// ResultKind discriminates Result.
type ResultKind int

const (
	KindFailure ResultKind = iota
	KindSingle
	KindMultiServer
	KindListing
)

func (k ResultKind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindMultiServer:
		return "multi_server"
	case KindListing:
		return "listing"
	default:
		return "failure"
	}
}

func (k ResultKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Failure describes why a resolution did not produce a link.
type Failure struct {
	Kind    failure.Kind `json:"kind"`
	Message string       `json:"message"`
}

// Result is the outcome of a resolution. Only the fields belonging to Kind
// are populated.
type Result struct {
	Kind     ResultKind        `json:"kind"`
	URL      string            `json:"url,omitempty"`
	Filename string            `json:"filename,omitempty"`
	Streams  []StreamCandidate `json:"streams,omitempty"`
	Items    []ListingItem     `json:"items,omitempty"`
	Failure  *Failure          `json:"failure,omitempty"`
}

// MarshalJSON always writes streams for a multi-server result, so an empty
// server list stays distinguishable from a missing one.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	if r.Kind != KindMultiServer {
		return json.Marshal(plain(r))
	}
	streams := r.Streams
	if streams == nil {
		streams = []StreamCandidate{}
	}
	return json.Marshal(struct {
		plain
		Streams []StreamCandidate `json:"streams"`
	}{plain(r), streams})
}

func Single(url, filename string) Result {
	return Result{Kind: KindSingle, URL: url, Filename: filename}
}

// MultiServer keeps an empty stream list as a valid partial success.
func MultiServer(streams []StreamCandidate, filename string) Result {
	if streams == nil {
		streams = []StreamCandidate{}
	}
	return Result{Kind: KindMultiServer, Streams: streams, Filename: filename}
}

func Listing(items []ListingItem) Result {
	return Result{Kind: KindListing, Items: items}
}

// Fail converts err into a failure Result carrying err's kind and message.
func Fail(err error) Result {
	return Result{
		Kind:    KindFailure,
		Failure: &Failure{Kind: failure.KindOf(err), Message: err.Error()},
	}
}

// MediaKind distinguishes movies from series in search results.
type MediaKind int

const (
	Movie MediaKind = iota
	Series
)

func (m MediaKind) String() string {
	switch m {
	case Series:
		return "series"
	default:
		return "movie"
	}
}

func (m MediaKind) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// SearchItem is a single search result from one upstream source.
type SearchItem struct {
	Title       string    `json:"title"`
	Image       string    `json:"image,omitempty"`
	Link        string    `json:"link"`
	Kind        MediaKind `json:"mediaKind"`
	QualityTags []string  `json:"qualityTags,omitempty"`
	Source      string    `json:"source"`
}

// Section is one category of the aggregated home page.
type Section struct {
	Name  string       `json:"name"`
	Items []SearchItem `json:"items"`
}

// HistoryEntry is a previously resolved key. Stream URLs are never stored
// because they carry expiring tokens.
type HistoryEntry struct {
	Key        string
	Title      string
	Family     Family
	ResolvedAt int64 // unix seconds
}
