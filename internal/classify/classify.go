// Package classify assigns links to hosting families.
package classify

import (
	"strings"

	"hoplink/internal/media"
)

// Rule maps a case-insensitive URL substring to a family.
type Rule struct {
	Marker string
	Family media.Family
}

// DefaultRules returns the built-in ordered marker list.
func DefaultRules() []Rule {
	return []Rule{
		{Marker: "hubcloud", Family: media.HubCloudLike},
		{Marker: "vcloud", Family: media.VCloudLike},
		{Marker: "mdrive", Family: media.MDriveLike},
		{Marker: "archives", Family: media.MDriveLike},
	}
}

// Classifier matches URLs against an ordered rule list. First match wins.
type Classifier struct {
	rules []Rule
}

// New builds a classifier. Rules with empty markers are ignored; a nil or
// empty list falls back to DefaultRules.
func New(rules []Rule) *Classifier {
	var kept []Rule
	for _, r := range rules {
		m := strings.ToLower(strings.TrimSpace(r.Marker))
		if m == "" {
			continue
		}
		kept = append(kept, Rule{Marker: m, Family: r.Family})
	}
	if len(kept) == 0 {
		kept = DefaultRules()
	}
	return &Classifier{rules: kept}
}

// Classify returns the family of rawURL, or media.Unknown.
func (c *Classifier) Classify(rawURL string) media.Family {
	lower := strings.ToLower(rawURL)
	for _, r := range c.rules {
		if strings.Contains(lower, r.Marker) {
			return r.Family
		}
	}
	return media.Unknown
}
