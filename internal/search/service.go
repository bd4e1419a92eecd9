package search

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"hoplink/internal/config"
	"hoplink/internal/media"
	"hoplink/internal/provider"
)

// maxHomeFetches bounds concurrent category fetches.
const maxHomeFetches = 4

// Service runs search and home aggregation over the configured sources.
type Service struct {
	local      provider.Source
	official   provider.Source
	lister     provider.Lister
	categories []config.Category
	log        *logrus.Entry
}

// NewService wires the sources. lister may be nil when home aggregation is
// not needed.
func NewService(local, official provider.Source, lister provider.Lister, categories []config.Category, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{local: local, official: official, lister: lister, categories: categories, log: log}
}

// Search queries both sources concurrently and merges the results. A failing
// source contributes nothing; Search itself never fails.
func (s *Service) Search(ctx context.Context, query string) []media.SearchItem {
	query = strings.TrimSpace(query)
	if query == "" {
		return []media.SearchItem{}
	}

	var local, official []media.SearchItem
	var wg conc.WaitGroup
	wg.Go(func() { local = s.query(ctx, s.local, query) })
	wg.Go(func() { official = s.query(ctx, s.official, query) })
	wg.Wait()

	merged := Merge(local, official)
	s.log.WithFields(logrus.Fields{
		"query":    query,
		"local":    len(local),
		"official": len(official),
		"merged":   len(merged),
	}).Debug("search merged")
	return merged
}

func (s *Service) query(ctx context.Context, src provider.Source, query string) []media.SearchItem {
	if src == nil {
		return nil
	}
	items, err := src.Search(ctx, query)
	if err != nil {
		s.log.WithError(err).WithField("source", src.Name()).Warn("search source failed")
		return nil
	}
	return items
}

// Home fetches every configured category concurrently. Sections keep the
// configured order; a failed category yields an empty section.
func (s *Service) Home(ctx context.Context) []media.Section {
	sections := make([]media.Section, len(s.categories))

	p := pool.New().WithMaxGoroutines(maxHomeFetches)
	for i, cat := range s.categories {
		sections[i] = media.Section{Name: cat.Name, Items: []media.SearchItem{}}
		if s.lister == nil {
			continue
		}
		p.Go(func() {
			items, err := s.lister.Category(ctx, cat.Path)
			if err != nil {
				s.log.WithError(err).WithField("category", cat.Name).Warn("category fetch failed")
				return
			}
			if items != nil {
				sections[i].Items = items
			}
		})
	}
	p.Wait()

	return sections
}
