package domain

import "github.com/google/uuid"

// ActorRole classifies an ACTED_IN edge.
type ActorRole string

const (
	ActorRoleAuthored  ActorRole = "authored"
	ActorRoleMentioned ActorRole = "mentioned"
)

// ResourceType names the typed-concept-node relations a signal can have to
// a Resource (the REFERENCES edge family). The constants below list the
// known relations; as a plain string type, ResourceType accepts any string
// value at compile time.
type ResourceType string

const (
	ResourceRequires ResourceType = "requires"
	ResourcePrefers  ResourceType = "prefers"
	ResourceOffers   ResourceType = "offers"
)

// SimilarToEdge connects two signals whose embeddings are close. Stored in
// one direction only (symmetric relation).
type SimilarToEdge struct {
	From   uuid.UUID
	To     uuid.UUID
	Weight float64 // cosine(a,b) * sqrt(conf_a*conf_b)
}

// RespondsToEdge links a response-type signal to the tension/need it
// addresses. Only valid between response types and tension types (invariant
// 8) — enforced by the store, not representable otherwise since NodeType's
// IsResponseType/IsTensionType are the only classification surface.
type RespondsToEdge struct {
	From        uuid.UUID // Aid or Gathering
	To          uuid.UUID // Tension or Need
	Strength    float64   // similarity, [0.4, 1.0] by construction
	Explanation string
}

// DrawnToEdge is the softer "convened because of" link from a Gathering to a
// Tension.
type DrawnToEdge struct {
	From          uuid.UUID // Gathering
	To            uuid.UUID // Tension
	Strength      float64
	Explanation   string
	GatheringType string
}

// ReferencesEdge ties a signal to a deduplicated Resource concept node.
type ReferencesEdge struct {
	SignalID   uuid.UUID
	ResourceID uuid.UUID
	Type       ResourceType
	Confidence float64
	Quantity   *string // for Requires
	Capacity   *string // for Offers
	Notes      *string
}

// StoryStatus classifies how well-corroborated a cluster of similar signals
// is.
type StoryStatus string

const (
	StoryEcho      StoryStatus = "echo"
	StoryConfirmed StoryStatus = "confirmed"
	StoryEmerging  StoryStatus = "emerging"
)

// ClassifyStory buckets a cluster of similar signals by corroboration:
//
//	story_status(type_diversity=1, entity_count=any, signal_count>=5) = "echo"
//	story_status(type_diversity>=2, entity_count>=2, any)             = "confirmed"
//	else                                                               "emerging"
func ClassifyStory(typeDiversity, entityCount, signalCount int) StoryStatus {
	if typeDiversity == 1 && signalCount >= 5 {
		return StoryEcho
	}
	if typeDiversity >= 2 && entityCount >= 2 {
		return StoryConfirmed
	}
	return StoryEmerging
}
