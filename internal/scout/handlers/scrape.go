package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/budget"
	"rootsignal.dev/scout/internal/scout/dedup"
	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/engine"
	"rootsignal.dev/scout/internal/scout/events"
	"rootsignal.dev/scout/internal/scout/llm"
	"rootsignal.dev/scout/internal/scout/traits"
)

const (
	maxFeedItemsPerScrape   = 10
	maxSearchResultsPerScrape = 10
)

// Extractor runs signal extraction over one unit of fetched content.
// Implemented by internal/scout/llm.Extractor.
type Extractor interface {
	Extract(ctx context.Context, sourceURL, content string) ([]llm.ExtractedSignal, error)
}

// Embedder produces an embedding vector for a short text. Implemented by
// internal/scout/llm.Embedder; shares the shape of discovery.Embedder but
// kept as its own interface since a Scraper shouldn't need to import the
// discovery package just to describe its own dependency.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Scraper runs the Scrape activity for one scheduled source: resolve its
// fetch contract, fetch, short-circuit on unchanged content, extract, embed,
// dedup, and dispatch exactly one lifecycle event per extracted node.
type Scraper struct {
	Fetcher   traits.ContentFetcher
	Extractor Extractor
	Embedder  Embedder
	Cache     *dedup.Cache
}

// unit is one fetched piece of content awaiting extraction: a page, a feed
// item's page, one search hit's snippet, or a social account's post batch.
type unit struct {
	url         string
	content     string
	contentHash string
	links       []string
	pubDate     *time.Time
}

// Scrape runs the full fetch/extract/dedup cycle for source and dispatches
// ContentFetched/ContentUnchanged/SignalsExtracted/dedup-verdict/
// UrlProcessed events through e. minLat/maxLat/minLng/maxLng bound the
// scope's vector search for L4 dedup (domain.ScoutScope.BoundingBox()).
func (s *Scraper) Scrape(ctx context.Context, e *engine.Engine, deps *engine.Deps, source domain.Source, now time.Time, minLat, maxLat, minLng, maxLng float64) error {
	units, err := s.resolveUnits(ctx, source)
	if err != nil {
		return fmt.Errorf("scrape: resolve units for %s: %w", source.CanonicalKey, err)
	}

	signalsCreated := 0
	for _, u := range units {
		if deps.Cancellation != nil && deps.Cancellation.Cancelled() {
			break
		}

		created, err := s.scrapeUnit(ctx, e, deps, source, u, now, minLat, maxLat, minLng, maxLng)
		if err != nil {
			return err
		}
		signalsCreated += created
	}

	return e.Dispatch(ctx, events.Event{
		Kind: events.KindUrlProcessed,
		Payload: events.UrlProcessed{
			CanonicalKey:   source.CanonicalKey,
			SignalsCreated: signalsCreated,
		},
	})
}

func (s *Scraper) scrapeUnit(ctx context.Context, e *engine.Engine, deps *engine.Deps, source domain.Source, u unit, now time.Time, minLat, maxLat, minLng, maxLng float64) (int, error) {
	processed, err := deps.Store.ContentAlreadyProcessed(ctx, u.contentHash, u.url)
	if err != nil {
		return 0, fmt.Errorf("scrape: content guard %s: %w", u.url, err)
	}
	if processed {
		if _, err := deps.Store.RefreshURLSignals(ctx, u.url, now); err != nil {
			return 0, fmt.Errorf("scrape: refresh unchanged %s: %w", u.url, err)
		}
		if err := e.Dispatch(ctx, events.Event{Kind: events.KindContentUnchanged, Payload: events.ContentUnchanged{URL: u.url}}); err != nil {
			return 0, err
		}
		return 0, nil
	}

	if err := e.Dispatch(ctx, events.Event{
		Kind:    events.KindContentFetched,
		Payload: events.ContentFetched{URL: u.url, ContentHash: u.contentHash},
	}); err != nil {
		return 0, err
	}

	for _, link := range u.links {
		if err := e.Dispatch(ctx, events.Event{
			Kind:    events.KindLinkCollected,
			Payload: events.LinkCollected{URL: link, DiscoveredOn: u.url},
		}); err != nil {
			return 0, err
		}
	}

	if deps.Budget != nil && !deps.Budget.TryConsume(budget.CostExtractionLLM) {
		return 0, e.Dispatch(ctx, events.Event{
			Kind:    events.KindExtractionFailed,
			Payload: events.ExtractionFailed{URL: u.url, Reason: "budget exhausted"},
		})
	}

	extracted, err := s.Extractor.Extract(ctx, u.url, u.content)
	if err != nil {
		return 0, e.Dispatch(ctx, events.Event{
			Kind:    events.KindExtractionFailed,
			Payload: events.ExtractionFailed{URL: u.url, Reason: err.Error()},
		})
	}
	if len(extracted) == 0 {
		return 0, nil
	}

	if err := e.Dispatch(ctx, events.Event{
		Kind:    events.KindSignalsExtracted,
		Payload: events.SignalsExtracted{URL: u.url, Count: len(extracted)},
	}); err != nil {
		return 0, err
	}

	created := 0
	for _, sig := range extracted {
		for _, q := range sig.ImpliedQueries {
			if err := e.Dispatch(ctx, events.Event{
				Kind:    events.KindExpansionQueryCollected,
				Payload: events.ExpansionQueryCollected{Query: q, SourceID: uuid.Nil},
			}); err != nil {
				return created, err
			}
		}

		n, err := s.dedupAndDispatch(ctx, e, deps, source, u, sig, now, minLat, maxLat, minLng, maxLng)
		if err != nil {
			return created, err
		}
		created += n
	}
	return created, nil
}

func (s *Scraper) dedupAndDispatch(ctx context.Context, e *engine.Engine, deps *engine.Deps, source domain.Source, u unit, sig llm.ExtractedSignal, now time.Time, minLat, maxLat, minLng, maxLng float64) (int, error) {
	embedding, err := s.Embedder.Embed(ctx, sig.Title+"\n"+sig.Summary)
	if err != nil {
		return 0, fmt.Errorf("scrape: embed %q: %w", sig.Title, err)
	}

	result, err := dedup.Cascade(ctx, deps.Store, s.Cache, sig.Type, sig.Title, u.url, embedding, minLat, maxLat, minLng, maxLng)
	if err != nil {
		return 0, fmt.Errorf("scrape: dedup %q: %w", sig.Title, err)
	}

	var authorName *string
	if sig.AuthorActor != "" {
		authorName = &sig.AuthorActor
	}
	var sourceID *string
	if source.CanonicalKey != "" {
		key := source.CanonicalKey
		sourceID = &key
	}

	switch result.Verdict {
	case dedup.VerdictNewSignal:
		node, meta := buildTypedNode(sig, uuid.New(), u.url, now)
		pending := events.PendingNode{
			Node:         node,
			Meta:         meta,
			Embedding:    embedding,
			ContentHash:  u.contentHash,
			ResourceTags: sig.ResourceTags,
			SignalTags:   sig.SignalTags,
			AuthorName:   authorName,
			SourceID:     sourceID,
		}
		s.Cache.Put(meta.ID, meta.Type, u.url, embedding)
		if err := e.Dispatch(ctx, events.Event{
			Kind: events.KindNewSignalAccepted,
			Payload: events.NewSignalAccepted{
				NodeID:      meta.ID,
				NodeType:    meta.Type,
				PendingNode: pending,
			},
		}); err != nil {
			return 0, err
		}
		return 1, nil

	case dedup.VerdictCrossSourceMatch:
		return 0, e.Dispatch(ctx, events.Event{
			Kind: events.KindCrossSourceMatchDetected,
			Payload: events.CrossSourceMatchDetected{
				NodeID:     result.ExistingID,
				NodeType:   sig.Type,
				ExistingID: result.ExistingID,
				SourceURL:  u.url,
				Similarity: result.Similarity,
			},
		})

	default: // VerdictSameSourceReencounter
		return 0, e.Dispatch(ctx, events.Event{
			Kind: events.KindSameSourceReencountered,
			Payload: events.SameSourceReencountered{
				URL:        u.url,
				ExistingID: result.ExistingID,
				NodeType:   sig.Type,
			},
		})
	}
}

// resolveUnits fetches source's content and returns the content units ready
// for extraction: Web->page, RSS->feed items' pages, Social->posts,
// TavilyQuery/SiteSearch->search results (extracted from their snippet
// directly, not re-fetched, to avoid doubling search+LLM cost per result).
func (s *Scraper) resolveUnits(ctx context.Context, source domain.Source) ([]unit, error) {
	switch source.SourceType {
	case domain.SourceTypeWeb:
		page, err := s.Fetcher.Page(ctx, source.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch page: %w", err)
		}
		return []unit{{url: page.URL, content: page.Markdown, contentHash: page.ContentHash, links: page.OutboundLinks}}, nil

	case domain.SourceTypeRSS:
		feed, err := s.Fetcher.Feed(ctx, source.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch feed: %w", err)
		}
		var units []unit
		for i, item := range feed.Items {
			if i >= maxFeedItemsPerScrape {
				break
			}
			page, err := s.Fetcher.Page(ctx, item.URL)
			if err != nil {
				continue // one bad feed item doesn't doom the rest
			}
			u := unit{url: page.URL, content: page.Markdown, contentHash: page.ContentHash, links: page.OutboundLinks}
			if item.PubDate != nil {
				if t, ok := parseTime(*item.PubDate); ok {
					u.pubDate = &t
				}
			}
			units = append(units, u)
		}
		return units, nil

	case domain.SourceTypeSocial:
		posts, err := s.Fetcher.Posts(ctx, source.URL, 20)
		if err != nil {
			return nil, fmt.Errorf("fetch posts: %w", err)
		}
		if len(posts) == 0 {
			return nil, nil
		}
		var b strings.Builder
		for _, p := range posts {
			b.WriteString(p.Text)
			b.WriteString("\n\n")
		}
		content := b.String()
		return []unit{{url: source.URL, content: content, contentHash: localContentHash(content)}}, nil

	case domain.SourceTypeTavilyQuery:
		results, err := s.Fetcher.Search(ctx, source.CanonicalValue)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		return searchResultUnits(results.Results, maxSearchResultsPerScrape), nil

	case domain.SourceTypeSiteSearch:
		results, err := s.Fetcher.SiteSearch(ctx, source.CanonicalValue, maxSearchResultsPerScrape)
		if err != nil {
			return nil, fmt.Errorf("site search: %w", err)
		}
		return searchResultUnits(results.Results, maxSearchResultsPerScrape), nil

	default:
		return nil, fmt.Errorf("unknown source type %q", source.SourceType)
	}
}

func searchResultUnits(results []traits.SearchResult, max int) []unit {
	var units []unit
	for i, r := range results {
		if i >= max {
			break
		}
		content := r.Title + "\n" + r.Snippet
		units = append(units, unit{url: r.URL, content: content, contentHash: localContentHash(content)})
	}
	return units
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// localContentHash fingerprints search-snippet and social-post content for
// the ContentAlreadyProcessed guard, for units that never produce a
// traits.ArchivedPage (which already carries its own hash).
func localContentHash(text string) string {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(text); i++ {
		h ^= uint64(text[i])
		h *= 1099511628211
	}
	return fmt.Sprintf("%016x", h)
}

// buildTypedNode turns one extracted signal into its typed domain struct
// plus the shared NodeMeta.
func buildTypedNode(sig llm.ExtractedSignal, id uuid.UUID, sourceURL string, now time.Time) (any, domain.NodeMeta) {
	meta := domain.NodeMeta{
		ID:                  id,
		Type:                sig.Type,
		Title:               sig.Title,
		Summary:             sig.Summary,
		Sensitivity:         parseSensitivity(sig.Sensitivity),
		Confidence:          sig.Confidence,
		FreshnessScore:      1.0,
		CorroborationCount:  0,
		SourceDiversity:     1,
		LocationName:        sig.LocationName,
		SourceURL:           sourceURL,
		ExtractedAt:         now,
		LastConfirmedActive: now,
		MentionedActors:     sig.MentionedActors,
		ImpliedQueries:      sig.ImpliedQueries,
	}

	switch sig.Type {
	case domain.NodeTypeGathering:
		starts, _ := parseTimePtrOrZero(sig.StartsAt, now)
		return domain.Gathering{
			NodeMeta:    meta,
			StartsAt:    starts,
			EndsAt:      parseTimePtr(sig.EndsAt),
			ActionURL:   sig.ActionURL,
			IsRecurring: sig.IsRecurring,
		}, meta

	case domain.NodeTypeAid:
		return domain.Aid{
			NodeMeta:  meta,
			ActionURL: sig.ActionURL,
			IsOngoing: sig.IsOngoing,
			Capacity:  sig.Capacity,
		}, meta

	case domain.NodeTypeNeed:
		var actionURL *string
		if sig.ActionURL != "" {
			actionURL = &sig.ActionURL
		}
		return domain.Need{NodeMeta: meta, ActionURL: actionURL}, meta

	case domain.NodeTypeNotice:
		return domain.Notice{
			NodeMeta:        meta,
			Severity:        parseNoticeSeverity(sig.Severity),
			Category:        sig.Category,
			EffectiveDate:   parseTimePtr(sig.EffectiveDate),
			SourceAuthority: sig.SourceAuthority,
		}, meta

	default: // domain.NodeTypeTension
		return domain.Tension{
			NodeMeta:      meta,
			Severity:      parseTensionSeverity(sig.Severity),
			Category:      sig.Category,
			WhatWouldHelp: sig.WhatWouldHelp,
		}, meta
	}
}

func parseSensitivity(s string) domain.Sensitivity {
	switch domain.Sensitivity(s) {
	case domain.SensitivitySensitive:
		return domain.SensitivitySensitive
	case domain.SensitivityRestricted:
		return domain.SensitivityRestricted
	default:
		return domain.SensitivityPublic
	}
}

func parseNoticeSeverity(s string) domain.NoticeSeverity {
	switch domain.NoticeSeverity(s) {
	case domain.NoticeSeverityAdvisory, domain.NoticeSeverityWarning, domain.NoticeSeverityEmergency:
		return domain.NoticeSeverity(s)
	default:
		return domain.NoticeSeverityInfo
	}
}

func parseTensionSeverity(s string) domain.TensionSeverity {
	switch domain.TensionSeverity(s) {
	case domain.TensionSeverityModerate, domain.TensionSeverityHigh, domain.TensionSeverityCritical:
		return domain.TensionSeverity(s)
	default:
		return domain.TensionSeverityLow
	}
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	if t, ok := parseTime(*s); ok {
		return &t
	}
	return nil
}

func parseTimePtrOrZero(s *string, fallback time.Time) (time.Time, bool) {
	if t := parseTimePtr(s); t != nil {
		return *t, true
	}
	return fallback, false
}
