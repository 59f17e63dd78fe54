// Package domain holds the signal-graph data model: the polymorphic signal
// nodes, the entities around them (Actor, Source, Pin, Scope), and the typed
// edges that connect them.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NodeType identifies which signal variant a node is. The constants below
// list the known kinds; as a plain string type, NodeType accepts any string
// value at compile time.
type NodeType string

const (
	NodeTypeGathering NodeType = "gathering"
	NodeTypeAid       NodeType = "aid"
	NodeTypeNeed      NodeType = "need"
	NodeTypeNotice    NodeType = "notice"
	NodeTypeTension   NodeType = "tension"
)

// TypeIndex returns the stats-bucket slot for a signal type, or -1 for types
// that aren't tallied in ScoutStats.by_type (Citation-equivalents).
func (t NodeType) TypeIndex() int {
	switch t {
	case NodeTypeGathering:
		return 0
	case NodeTypeAid:
		return 1
	case NodeTypeNeed:
		return 2
	case NodeTypeNotice:
		return 3
	case NodeTypeTension:
		return 4
	default:
		return -1
	}
}

// IsResponseType reports whether signals of this type can stand on the
// "response" side of a RESPONDS_TO/DRAWN_TO edge.
func (t NodeType) IsResponseType() bool {
	return t == NodeTypeAid || t == NodeTypeGathering
}

// IsTensionType reports whether signals of this type can stand on the
// "tension" side of a RESPONDS_TO edge.
func (t NodeType) IsTensionType() bool {
	return t == NodeTypeTension || t == NodeTypeNeed
}

// Sensitivity is a coarse content-sensitivity classification applied at
// extraction time, independent of confidence.
type Sensitivity string

const (
	SensitivityPublic    Sensitivity = "public"
	SensitivitySensitive Sensitivity = "sensitive"
	SensitivityRestricted Sensitivity = "restricted"
)

// GeoPrecision describes how precisely a node's lat/lng is known.
type GeoPrecision string

const (
	GeoPrecisionExact        GeoPrecision = "exact"
	GeoPrecisionNeighborhood GeoPrecision = "neighborhood"
	GeoPrecisionCity         GeoPrecision = "city"
	GeoPrecisionRegion       GeoPrecision = "region"
	GeoPrecisionUnknown      GeoPrecision = "unknown"
)

// GeoPoint is an optional location with a precision tag.
type GeoPoint struct {
	Lat       float64
	Lng       float64
	Precision GeoPrecision
}

// NodeMeta is the field set common to every signal node, regardless of type.
type NodeMeta struct {
	ID          uuid.UUID
	Type        NodeType
	Title       string
	Summary     string
	Sensitivity Sensitivity
	Confidence  float64 // [0,1]

	FreshnessScore     float64 // [0,1]
	CorroborationCount int     // >= 0
	SourceDiversity    int     // distinct canonical sources corroborating

	Geo          *GeoPoint
	LocationName string

	SourceURL           string
	ExtractedAt         time.Time
	LastConfirmedActive time.Time

	ExternalRatio float64 // [0,1]
	CauseHeat     float64 // [0,1]

	MentionedActors []string
	ImpliedQueries  []string
}

// Validate checks the invariant NodeMeta alone is responsible for; the rest
// require graph context and are checked by the store layer.
func (m NodeMeta) Validate() error {
	if m.SourceDiversity > m.CorroborationCount+1 {
		return errInvariant("source_diversity (%d) exceeds corroboration_count+1 (%d)", m.SourceDiversity, m.CorroborationCount+1)
	}
	return nil
}

// Gathering is a time-bounded event.
type Gathering struct {
	NodeMeta
	StartsAt    time.Time
	EndsAt      *time.Time
	ActionURL   string
	IsRecurring bool
}

// Expired reports whether a Gathering is past its end date, the sole Reap
// trigger for this type.
func (g Gathering) Expired(now time.Time) bool {
	return g.EndsAt != nil && g.EndsAt.Before(now)
}

// Aid is an available resource or offer.
type Aid struct {
	NodeMeta
	ActionURL string
	IsOngoing bool
	Capacity  *string
}

// Need is a community request.
type Need struct {
	NodeMeta
	ActionURL *string
}

// NeedStalenessHorizon bounds how long a Need may go unconfirmed before Reap
// retires it.
const NeedStalenessHorizon = 30 * 24 * time.Hour

// Expired reports whether a Need has crossed the staleness horizon without a
// fresh corroboration or refresh.
func (n Need) Expired(now time.Time) bool {
	return now.Sub(n.LastConfirmedActive) >= NeedStalenessHorizon
}

// NoticeSeverity classifies an official advisory.
type NoticeSeverity string

const (
	NoticeSeverityInfo     NoticeSeverity = "info"
	NoticeSeverityAdvisory NoticeSeverity = "advisory"
	NoticeSeverityWarning  NoticeSeverity = "warning"
	NoticeSeverityEmergency NoticeSeverity = "emergency"
)

// Notice is an official advisory.
type Notice struct {
	NodeMeta
	Severity        NoticeSeverity
	Category        string
	EffectiveDate   *time.Time
	SourceAuthority *string
}

// TensionSeverity classifies a systemic problem's urgency.
type TensionSeverity string

const (
	TensionSeverityLow      TensionSeverity = "low"
	TensionSeverityModerate TensionSeverity = "moderate"
	TensionSeverityHigh     TensionSeverity = "high"
	TensionSeverityCritical TensionSeverity = "critical"
)

// Tension is a systemic problem.
type Tension struct {
	NodeMeta
	Severity       TensionSeverity
	Category       string
	WhatWouldHelp *string
}

// EvidenceRelevance classifies how an atomic observation relates to its
// parent signal.
type EvidenceRelevance string

const (
	RelevanceDirect       EvidenceRelevance = "direct"
	RelevanceIndirect     EvidenceRelevance = "indirect"
	RelevanceContradicting EvidenceRelevance = "contradicting"
)

// Evidence is an atomic observation attached to a signal.
type Evidence struct {
	ID                 uuid.UUID
	SignalID           uuid.UUID
	SourceURL          string
	Snippet            string
	Relevance          EvidenceRelevance
	EvidenceConfidence float64 // [0,1]
	ObservedAt         time.Time
}

func errInvariant(format string, args ...any) error {
	return &invariantError{msg: fmt.Sprintf(format, args...)}
}

type invariantError struct{ msg string }

func (e *invariantError) Error() string { return e.msg }
