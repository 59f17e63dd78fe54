package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/engine"
	"rootsignal.dev/scout/internal/scout/events"
	"rootsignal.dev/scout/internal/scout/traits"
)

// enrichmentMaxAgeDays bounds how old a signal observation may be and still
// count toward actor-location triangulation.
const enrichmentMaxAgeDays = 90

// ActorLocation is a triangulated or current actor location.
type ActorLocation struct {
	Lat  float64
	Lng  float64
	Name string
}

// triangulateActorLocation chooses the best-supported location for an actor
// from bio text plus recent authored-signal observations.
//
// Rules: a bio location corroborated by >=1 signal wins outright; an
// uncorroborated bio counts as one vote; the most frequent signal location
// (mode) wins otherwise; ties preserve the current location; fewer than 2
// total votes preserves the current location unchanged.
func triangulateActorLocation(current, bioLocation *ActorLocation, signals []traits.ActorSignalObservation, now time.Time) *ActorLocation {
	cutoff := now.AddDate(0, 0, -enrichmentMaxAgeDays)

	var recent []traits.ActorSignalObservation
	for _, s := range signals {
		if !s.ExtractedAt.Before(cutoff) {
			recent = append(recent, s)
		}
	}

	if len(recent) == 0 && bioLocation == nil {
		return current
	}

	type vote struct {
		count    int
		lat, lng float64
	}
	votes := make(map[string]*vote)
	for _, s := range recent {
		v, ok := votes[s.LocationName]
		if !ok {
			v = &vote{lat: s.Lat, lng: s.Lng}
			votes[s.LocationName] = v
		}
		v.count++
	}

	if bioLocation != nil {
		if _, corroborated := votes[bioLocation.Name]; corroborated {
			return bioLocation
		}
		v, ok := votes[bioLocation.Name]
		if !ok {
			v = &vote{lat: bioLocation.Lat, lng: bioLocation.Lng}
			votes[bioLocation.Name] = v
		}
		v.count++
	}

	total := 0
	for _, v := range votes {
		total += v.count
	}
	if total < 2 {
		return current
	}

	var topName string
	var top *vote
	topCount, tied := -1, false
	for name, v := range votes {
		switch {
		case v.count > topCount:
			topName, top, topCount, tied = name, v, v.count, false
		case v.count == topCount:
			tied = true
		}
	}

	if tied {
		return current
	}

	return &ActorLocation{Lat: top.lat, Lng: top.lng, Name: topName}
}

// bioLocationFromSignals finds a signal location name that appears as a
// case-insensitive substring of the actor's bio — a "Based in Phillips"
// style extraction heuristic.
func bioLocationFromSignals(bio string, signals []traits.ActorSignalObservation) *ActorLocation {
	if bio == "" {
		return nil
	}
	bioLower := strings.ToLower(bio)
	for _, s := range signals {
		if s.LocationName == "" {
			continue
		}
		if strings.Contains(bioLower, strings.ToLower(s.LocationName)) {
			return &ActorLocation{Lat: s.Lat, Lng: s.Lng, Name: s.LocationName}
		}
	}
	return nil
}

// EnrichActorLocations runs the Enrichment phase's actor-location
// triangulation step over every actor in the region, dispatching
// ActorEnrichmentCompleted for each actor whose location changed. Returns
// the count updated.
func EnrichActorLocations(ctx context.Context, e *engine.Engine, deps *engine.Deps, now time.Time) (int, error) {
	actors, err := deps.Store.ListAllActors(ctx)
	if err != nil {
		return 0, fmt.Errorf("enrichment: list actors: %w", err)
	}

	updated := 0
	for _, aw := range actors {
		actor := aw.Actor
		id, err := uuid.Parse(actor.ID)
		if err != nil {
			continue
		}

		signals, err := deps.Store.GetSignalsForActor(ctx, id)
		if err != nil {
			return updated, fmt.Errorf("enrichment: signals for actor %s: %w", actor.ID, err)
		}

		var current *ActorLocation
		if actor.Location != nil {
			current = &ActorLocation{Lat: actor.Location.Lat, Lng: actor.Location.Lng, Name: actor.LocationName}
		}
		bioLoc := bioLocationFromSignals(actor.Bio, signals)

		result := triangulateActorLocation(current, bioLoc, signals, now)
		if result == nil {
			continue
		}
		if current != nil && current.Name == result.Name {
			continue
		}

		if err := deps.Store.UpdateActorLocation(ctx, id, result.Lat, result.Lng, result.Name); err != nil {
			return updated, fmt.Errorf("enrichment: update actor %s location: %w", actor.ID, err)
		}
		if err := e.Dispatch(ctx, events.Event{
			Kind:    events.KindActorEnrichmentCompleted,
			Payload: events.ActorEnrichmentCompleted{ActorID: id},
		}); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// socialPlatform is the exhaustive set of social platforms mention
// promotion recognizes by URL pattern.
type socialPlatform string

const (
	platformInstagram socialPlatform = "instagram"
	platformTwitter   socialPlatform = "twitter"
	platformTikTok    socialPlatform = "tiktok"
	platformFacebook  socialPlatform = "facebook"
	platformBluesky   socialPlatform = "bluesky"
)

var nonProfilePathSegments = map[string]bool{
	"p": true, "explore": true, "about": true, "help": true, "settings": true,
	"accounts": true, "stories": true, "reels": true, "reel": true, "tv": true,
	"hashtag": true, "search": true, "intent": true, "i": true, "share": true,
	"login": true, "signup": true,
}

// socialMention is one (platform, handle) pair found in a collected link.
type socialMention struct {
	platform socialPlatform
	handle   string
}

// extractSocialHandlesFromLinks scans links for known social-platform URL
// patterns and returns the distinct (platform, handle) pairs found, filtering
// out non-profile paths (feeds, hashtags, login flows).
func extractSocialHandlesFromLinks(links []string) []socialMention {
	var out []socialMention
	seen := make(map[socialMention]bool)
	for _, link := range links {
		if m, ok := parseSocialLink(link); ok && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func parseSocialLink(rawURL string) (socialMention, bool) {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "instagram.com/"):
		return handleFromPath(rawURL, "instagram.com/", platformInstagram)
	case strings.Contains(lower, "twitter.com/"):
		return handleFromPath(rawURL, "twitter.com/", platformTwitter)
	case strings.Contains(lower, "x.com/"):
		return handleFromPath(rawURL, "x.com/", platformTwitter)
	case strings.Contains(lower, "tiktok.com/@"):
		return handleFromPath(rawURL, "tiktok.com/@", platformTikTok)
	case strings.Contains(lower, "facebook.com/"):
		return handleFromPath(rawURL, "facebook.com/", platformFacebook)
	case strings.Contains(lower, "bsky.app/profile/"):
		return handleFromPath(rawURL, "bsky.app/profile/", platformBluesky)
	}
	return socialMention{}, false
}

func handleFromPath(rawURL, after string, platform socialPlatform) (socialMention, bool) {
	lower := strings.ToLower(rawURL)
	idx := strings.Index(lower, strings.ToLower(after))
	if idx < 0 {
		return socialMention{}, false
	}
	rest := rawURL[idx+len(after):]
	handle := rest
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		handle = rest[:i]
	}
	handle = strings.TrimPrefix(handle, "@")
	if handle == "" || nonProfilePathSegments[strings.ToLower(handle)] {
		return socialMention{}, false
	}
	return socialMention{platform: platform, handle: handle}, true
}

func platformURL(platform socialPlatform, handle string) string {
	switch platform {
	case platformInstagram:
		return fmt.Sprintf("https://instagram.com/%s", handle)
	case platformFacebook:
		return fmt.Sprintf("https://facebook.com/%s", handle)
	case platformTwitter:
		return fmt.Sprintf("https://x.com/%s", handle)
	case platformTikTok:
		return fmt.Sprintf("https://tiktok.com/@%s", handle)
	default:
		return fmt.Sprintf("https://bsky.app/profile/%s", handle)
	}
}

// PromoteMentionedAccounts upserts a Source (DiscoveryMethod::SocialGraphFollow,
// role Mixed) for each distinct social handle found in links, capped at
// maxPerRun. Idempotent via UpsertSource's canonical_key MERGE.
func PromoteMentionedAccounts(ctx context.Context, store traits.SignalStore, city string, links []events.LinkCollected, maxPerRun int, now time.Time) (int, error) {
	urls := make([]string, 0, len(links))
	discoveredBy := make(map[string]string, len(links))
	for _, l := range links {
		urls = append(urls, l.URL)
		discoveredBy[l.URL] = l.DiscoveredOn
	}

	seen := make(map[socialMention]bool)
	created := 0
	for _, u := range urls {
		m, ok := parseSocialLink(u)
		if !ok || seen[m] {
			continue
		}
		seen[m] = true
		if created >= maxPerRun {
			break
		}

		canonicalKey := fmt.Sprintf("%s:%s:%s", city, m.platform, m.handle)
		src := domain.Source{
			CanonicalKey:    canonicalKey,
			CanonicalValue:  m.handle,
			URL:             platformURL(m.platform, m.handle),
			SourceType:      domain.SourceTypeSocial,
			DiscoveryMethod: domain.DiscoverySocialGraphFollow,
			SourceRole:      domain.SourceRoleMixed,
			City:            city,
			Weight:          domain.DiscoverySocialGraphFollow.InitialWeight(),
			QualityPenalty:  1.0,
			Active:          true,
			GapContext:      fmt.Sprintf("Mentioned by %s", discoveredBy[u]),
			CreatedAt:       now,
		}
		if err := store.UpsertSource(ctx, src); err != nil {
			return created, fmt.Errorf("enrichment: upsert mentioned source: %w", err)
		}
		created++
	}
	return created, nil
}
