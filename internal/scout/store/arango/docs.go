package arango

import (
	"time"

	"rootsignal.dev/scout/internal/scout/domain"
)

// sourceDoc mirrors the flattened shape UpsertSource writes, for decoding
// AQL results back into domain.Source.
type sourceDoc struct {
	CanonicalKey         string     `json:"canonical_key"`
	CanonicalValue       string     `json:"canonical_value"`
	URL                  string     `json:"url"`
	SourceType           string     `json:"source_type"`
	DiscoveryMethod      string     `json:"discovery_method"`
	SourceRole           string     `json:"source_role"`
	City                 string     `json:"city"`
	Weight               float64    `json:"weight"`
	CadenceHours         *int       `json:"cadence_hours"`
	LastScraped          *time.Time `json:"last_scraped"`
	LastProducedSignal   *time.Time `json:"last_produced_signal"`
	SignalsProduced      int        `json:"signals_produced"`
	SignalsCorroborated  int        `json:"signals_corroborated"`
	ConsecutiveEmptyRuns int        `json:"consecutive_empty_runs"`
	ScrapeCount          int        `json:"scrape_count"`
	AvgSignalsPerScrape  float64    `json:"avg_signals_per_scrape"`
	QualityPenalty       float64    `json:"quality_penalty"`
	Active               bool       `json:"active"`
	GapContext           string     `json:"gap_context"`
	CreatedAt            time.Time  `json:"created_at"`
}

func (d sourceDoc) toDomain() domain.Source {
	return domain.Source{
		CanonicalKey:         d.CanonicalKey,
		CanonicalValue:       d.CanonicalValue,
		URL:                  d.URL,
		SourceType:           domain.SourceType(d.SourceType),
		DiscoveryMethod:      domain.DiscoveryMethod(d.DiscoveryMethod),
		SourceRole:           domain.SourceRole(d.SourceRole),
		City:                 d.City,
		Weight:               d.Weight,
		CadenceHours:         d.CadenceHours,
		LastScraped:          d.LastScraped,
		LastProducedSignal:   d.LastProducedSignal,
		SignalsProduced:      d.SignalsProduced,
		SignalsCorroborated:  d.SignalsCorroborated,
		ConsecutiveEmptyRuns: d.ConsecutiveEmptyRuns,
		ScrapeCount:          d.ScrapeCount,
		AvgSignalsPerScrape:  d.AvgSignalsPerScrape,
		QualityPenalty:       d.QualityPenalty,
		Active:               d.Active,
		GapContext:           d.GapContext,
		CreatedAt:            d.CreatedAt,
	}
}

func sourceFromDomain(s domain.Source) map[string]any {
	return map[string]any{
		"canonical_key":          s.CanonicalKey,
		"canonical_value":        s.CanonicalValue,
		"url":                    s.URL,
		"source_type":            string(s.SourceType),
		"discovery_method":       string(s.DiscoveryMethod),
		"source_role":            string(s.SourceRole),
		"city":                   s.City,
		"weight":                 s.Weight,
		"cadence_hours":          s.CadenceHours,
		"last_scraped":           s.LastScraped,
		"last_produced_signal":   s.LastProducedSignal,
		"signals_produced":       s.SignalsProduced,
		"signals_corroborated":   s.SignalsCorroborated,
		"consecutive_empty_runs": s.ConsecutiveEmptyRuns,
		"scrape_count":           s.ScrapeCount,
		"avg_signals_per_scrape": s.AvgSignalsPerScrape,
		"quality_penalty":        s.QualityPenalty,
		"active":                 s.Active,
		"gap_context":            s.GapContext,
		"created_at":             s.CreatedAt,
	}
}

// actorDoc mirrors the flattened shape UpsertActor writes.
type actorDoc struct {
	Key            string    `json:"_key"`
	Name           string    `json:"name"`
	EntityID       string    `json:"entity_id"`
	Domains        []string  `json:"domains"`
	SocialURLs     []string  `json:"social_urls"`
	Bio            string    `json:"bio"`
	Lat            *float64  `json:"lat"`
	Lng            *float64  `json:"lng"`
	LocationName   string    `json:"location_name"`
	DiscoveryDepth int       `json:"discovery_depth"`
	CreatedAt      time.Time `json:"created_at"`
}

func (d actorDoc) toDomain() domain.Actor {
	a := domain.Actor{
		ID:             d.Key,
		Name:           d.Name,
		EntityID:       d.EntityID,
		Domains:        d.Domains,
		SocialURLs:     d.SocialURLs,
		Bio:            d.Bio,
		LocationName:   d.LocationName,
		DiscoveryDepth: d.DiscoveryDepth,
		CreatedAt:      d.CreatedAt,
	}
	if d.Lat != nil && d.Lng != nil {
		a.Location = &domain.GeoPoint{Lat: *d.Lat, Lng: *d.Lng}
	}
	return a
}
