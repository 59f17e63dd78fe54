// Package handlers holds the domain handlers the scout engine dispatches
// events to after the persist/apply/project infrastructure layer has run:
// signal lifecycle (handle_create/handle_refresh/handle_corroborate), the
// Scrape activity, Reap, discovery wiring, and actor enrichment.
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rootsignal.dev/scout/internal/scout/domain"
	"rootsignal.dev/scout/internal/scout/engine"
	"rootsignal.dev/scout/internal/scout/events"
	"rootsignal.dev/scout/internal/scout/traits"
)

const (
	createdByScrape = "scrape"

	freshnessWithin7d  = 7 * 24 * time.Hour
	freshnessWithin30d = 30 * 24 * time.Hour
	freshnessWithin90d = 90 * 24 * time.Hour
)

// RegisterSignalHandlers registers handle_create, handle_corroborate, and
// handle_refresh on e, the three reactions to a layered-dedup verdict.
func RegisterSignalHandlers(e *engine.Engine) *engine.Engine {
	return e.
		WithHandler(engine.Handler{
			ID:       "handle_create",
			Priority: engine.PriorityDefault,
			Kinds:    []events.Kind{events.KindNewSignalAccepted},
			Fn:       handleCreate,
		}).
		WithHandler(engine.Handler{
			ID:       "handle_corroborate",
			Priority: engine.PriorityDefault,
			Kinds:    []events.Kind{events.KindCrossSourceMatchDetected},
			Fn:       handleCorroborate,
		}).
		WithHandler(engine.Handler{
			ID:       "handle_refresh",
			Priority: engine.PriorityDefault,
			Kinds:    []events.Kind{events.KindSameSourceReencountered},
			Fn:       handleRefresh,
		})
}

// handleCreate writes a newly accepted signal's node, Evidence,
// PRODUCED_BY-equivalent source link, author/mentioned actor edges, and
// resource/tag edges, ensuring every signal has at least one Evidence
// record and one source link before it is visible.
func handleCreate(ctx context.Context, ev events.Event, deps *engine.Deps) ([]events.Event, error) {
	p, ok := ev.Payload.(events.NewSignalAccepted)
	if !ok {
		return nil, nil
	}
	pn := p.PendingNode

	id, err := deps.Store.CreateNode(ctx, pn.Meta, pn.Node, pn.Embedding, pn.ContentHash, createdByScrape, deps.RunID)
	if err != nil {
		return nil, fmt.Errorf("handle_create: create node: %w", err)
	}

	evidence := domain.Evidence{
		ID:                 uuid.New(),
		SignalID:           id,
		SourceURL:          pn.Meta.SourceURL,
		Snippet:            pn.Meta.Summary,
		Relevance:          domain.RelevanceDirect,
		EvidenceConfidence: pn.Meta.Confidence,
		ObservedAt:         pn.Meta.ExtractedAt,
	}
	if err := deps.Store.CreateEvidence(ctx, evidence, id); err != nil {
		return nil, fmt.Errorf("handle_create: create evidence: %w", err)
	}

	if pn.SourceID != nil {
		if err := deps.Store.LinkSignalToSource(ctx, id, *pn.SourceID); err != nil {
			return nil, fmt.Errorf("handle_create: link source: %w", err)
		}
	}

	if pn.AuthorName != nil && *pn.AuthorName != "" {
		if err := linkActor(ctx, deps.Store, *pn.AuthorName, id, domain.ActorRoleAuthored); err != nil {
			return nil, err
		}
	}
	for _, mentioned := range pn.Meta.MentionedActors {
		if pn.AuthorName != nil && mentioned == *pn.AuthorName {
			continue
		}
		if err := linkActor(ctx, deps.Store, mentioned, id, domain.ActorRoleMentioned); err != nil {
			return nil, err
		}
	}

	if len(pn.ResourceTags) > 0 {
		if err := deps.Store.BatchTagSignals(ctx, id, pn.ResourceTags); err != nil {
			return nil, fmt.Errorf("handle_create: tag resources: %w", err)
		}
	}
	if len(pn.SignalTags) > 0 {
		if err := deps.Store.BatchTagSignals(ctx, id, pn.SignalTags); err != nil {
			return nil, fmt.Errorf("handle_create: tag signal: %w", err)
		}
	}

	return []events.Event{
		{Kind: events.KindSignalStored, Payload: events.SignalStored{NodeID: id}},
	}, nil
}

// linkActor resolves name to an existing Actor (creating one if unseen) and
// links it to signalID with role.
func linkActor(ctx context.Context, store traits.SignalStore, name string, signalID uuid.UUID, role domain.ActorRole) error {
	actorID, found, err := store.FindActorByName(ctx, name)
	if err != nil {
		return fmt.Errorf("handle_create: find actor %q: %w", name, err)
	}
	if !found {
		actorID = uuid.New()
		if err := store.UpsertActor(ctx, domain.Actor{ID: actorID.String(), Name: name, CreatedAt: time.Now()}); err != nil {
			return fmt.Errorf("handle_create: upsert actor %q: %w", name, err)
		}
	}
	if err := store.LinkActorToSignal(ctx, actorID, signalID, role); err != nil {
		return fmt.Errorf("handle_create: link actor %q: %w", name, err)
	}
	return nil
}

// handleCorroborate bumps corroboration_count/source_diversity for a
// cross-source match. The store's Corroborate implementation maintains
// source_diversity <= corroboration_count+1; it is not re-checked here.
func handleCorroborate(ctx context.Context, ev events.Event, deps *engine.Deps) ([]events.Event, error) {
	p, ok := ev.Payload.(events.CrossSourceMatchDetected)
	if !ok {
		return nil, nil
	}
	now := time.Now()
	if err := deps.Store.Corroborate(ctx, p.ExistingID, p.NodeType, now, nil, p.SourceURL, p.Similarity); err != nil {
		return nil, fmt.Errorf("handle_corroborate: %w", err)
	}
	return []events.Event{
		{Kind: events.KindFreshnessRecorded, Payload: events.FreshnessRecorded{NodeID: p.ExistingID, Bucket: freshnessBucket(now, now)}},
	}, nil
}

// handleRefresh bumps last_confirmed_active for a same-source re-encounter.
// A verdict that carries no single ID (an L2 URL match) refreshes every
// signal stored from that URL.
func handleRefresh(ctx context.Context, ev events.Event, deps *engine.Deps) ([]events.Event, error) {
	p, ok := ev.Payload.(events.SameSourceReencountered)
	if !ok {
		return nil, nil
	}
	now := time.Now()
	if p.ExistingID == uuid.Nil {
		if _, err := deps.Store.RefreshURLSignals(ctx, p.URL, now); err != nil {
			return nil, fmt.Errorf("handle_refresh: %w", err)
		}
		return nil, nil
	}
	if err := deps.Store.RefreshSignal(ctx, p.ExistingID, p.NodeType, now); err != nil {
		return nil, fmt.Errorf("handle_refresh: %w", err)
	}
	return []events.Event{
		{Kind: events.KindFreshnessRecorded, Payload: events.FreshnessRecorded{NodeID: p.ExistingID, Bucket: freshnessBucket(now, now)}},
	}, nil
}

// freshnessBucket classifies how long ago lastConfirmedActive was, for the
// fresh_7d/fresh_30d/fresh_90d ScoutStats buckets.
func freshnessBucket(now, lastConfirmedActive time.Time) events.FreshnessBucket {
	age := now.Sub(lastConfirmedActive)
	switch {
	case age <= freshnessWithin7d:
		return events.FreshnessWithin7d
	case age <= freshnessWithin30d:
		return events.FreshnessWithin30d
	case age <= freshnessWithin90d:
		return events.FreshnessWithin90d
	default:
		return events.FreshnessOlder
	}
}
