// Package llm wraps common/llm.Client with the scout pipeline's three
// structured-output call shapes: signal extraction, tension-response
// verification, and bootstrap/gap seed-query generation.
// Embeddings use the OpenAI embeddings endpoint directly via the openai-go
// client, separate from the chat-completions Client interface.
package llm

import (
	"context"
	"fmt"
	"strings"

	commonllm "rootsignal.dev/scout/common/llm"
	"rootsignal.dev/scout/internal/scout/domain"
)

// ExtractedSignal is one signal the extraction call returns for a page or
// post, before it is typed into a domain.Gathering/Aid/Need/Notice/Tension
// and run through dedup.
type ExtractedSignal struct {
	Type            domain.NodeType `json:"type"`
	Title           string          `json:"title"`
	Summary         string          `json:"summary"`
	Confidence      float64         `json:"confidence"`
	Sensitivity     string          `json:"sensitivity"`
	LocationName    string          `json:"location_name"`
	MentionedActors []string        `json:"mentioned_actors"`
	ImpliedQueries  []string        `json:"implied_queries"`
	AuthorActor     string          `json:"author_actor"`
	ResourceTags    []string        `json:"resource_tags"`
	SignalTags      []string        `json:"signal_tags"`

	// Type-specific fields, populated only for the matching Type; the
	// handler building a typed domain node reads only the ones its switch
	// case needs.
	StartsAt        *string `json:"starts_at"`        // Gathering, RFC3339
	EndsAt          *string `json:"ends_at"`           // Gathering, RFC3339
	ActionURL       string  `json:"action_url"`        // Gathering, Aid, Need
	IsRecurring     bool    `json:"is_recurring"`      // Gathering
	IsOngoing       bool    `json:"is_ongoing"`        // Aid
	Capacity        *string `json:"capacity"`          // Aid
	Severity        string  `json:"severity"`          // Notice, Tension
	Category        string  `json:"category"`          // Notice, Tension
	EffectiveDate   *string `json:"effective_date"`    // Notice, RFC3339
	SourceAuthority *string `json:"source_authority"`  // Notice
	WhatWouldHelp   *string `json:"what_would_help"`   // Tension
}

type extractionResult struct {
	Signals []ExtractedSignal `json:"signals"`
}

// Extractor runs city-contextual signal extraction over fetched page
// content.
type Extractor struct {
	client commonllm.Client
	city   string
}

// NewExtractor builds an Extractor bound to one city/region.
func NewExtractor(client commonllm.Client, city string) *Extractor {
	return &Extractor{client: client, city: city}
}

// Extract runs the extraction prompt over one page/post's text content and
// returns every signal the model found. An empty slice (not an error) is
// the expected outcome for content with nothing civic-relevant in it.
func (e *Extractor) Extract(ctx context.Context, sourceURL, content string) ([]ExtractedSignal, error) {
	system := fmt.Sprintf(
		"You are a civic signal extractor for %s. Read the page content and extract every "+
			"Gathering (time-bounded event), Aid (available resource/offer), Need (community "+
			"request), Notice (official advisory), or Tension (systemic problem) it describes. "+
			"Skip content with nothing civic-relevant. For each signal, name any mentioned actors "+
			"(organizations or people) and any implied follow-up search queries a researcher would "+
			"run to learn more. Fill the fields specific to the signal's type (starts_at/ends_at for "+
			"a Gathering, severity/category for a Notice or Tension, what_would_help for a Tension, "+
			"action_url where a page names one) and leave the rest at their zero value.", e.city)

	schema := commonllm.GenerateSchema[extractionResult]()
	var result extractionResult
	_, err := e.client.Chat(ctx, commonllm.Request{
		SystemPrompt: system,
		UserPrompt:   content,
		SchemaName:   "scout_extraction",
		Schema:       schema,
		Temperature:  commonllm.Temp(0.2),
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("llm: extract %s: %w", sourceURL, err)
	}
	return result.Signals, nil
}

// Verifier implements linker.Verifier: one-sentence explanation or the
// literal string "NO".
type Verifier struct {
	client commonllm.Client
}

// NewVerifier builds a Verifier.
func NewVerifier(client commonllm.Client) *Verifier {
	return &Verifier{client: client}
}

type verifyResult struct {
	Answer string `json:"answer"`
}

// VerifyResponds asks whether candidate responds to tension, returning a
// one-sentence explanation when it does, or ok=false when the model
// answered "NO".
func (v *Verifier) VerifyResponds(ctx context.Context, tensionTitle, tensionSummary, candidateTitle, candidateSummary string) (string, bool, error) {
	system := "You verify whether a candidate signal responds to a civic tension. " +
		"Does the candidate respond to the problem? If yes, answer with one sentence " +
		"explaining how. If no, answer with exactly the word NO."
	user := fmt.Sprintf("Problem: %s\n%s\n\nCandidate: %s\n%s", tensionTitle, tensionSummary, candidateTitle, candidateSummary)

	schema := commonllm.GenerateSchema[verifyResult]()
	var result verifyResult
	_, err := v.client.Chat(ctx, commonllm.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		SchemaName:   "scout_verify_responds",
		Schema:       schema,
		Temperature:  commonllm.Temp(0.0),
	}, &result)
	if err != nil {
		return "", false, fmt.Errorf("llm: verify responds: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(result.Answer), "NO") {
		return "", false, nil
	}
	return result.Answer, true, nil
}

// SeedGenerator implements discovery.SeedQueryGenerator and
// discovery.GapQueryGenerator: bootstrap's 20-30 seed queries and gap
// analysis's 1-5 targeted queries, both via structured-output LLM calls.
type SeedGenerator struct {
	client commonllm.Client
}

// NewSeedGenerator builds a SeedGenerator.
func NewSeedGenerator(client commonllm.Client) *SeedGenerator {
	return &SeedGenerator{client: client}
}

type queryListResult struct {
	Queries []string `json:"queries"`
}

// BootstrapQueries generates 20-30 seed search queries spanning community,
// volunteer, government, housing, and mutual-aid categories for a
// first-ever-run city.
func (g *SeedGenerator) BootstrapQueries(ctx context.Context, city string) ([]string, error) {
	system := "You generate seed search queries to bootstrap civic signal discovery for a new " +
		"region. Produce 20 to 30 distinct queries spanning: community organizing, volunteer " +
		"opportunities, government services, housing assistance, and mutual aid."
	return g.queries(ctx, system, fmt.Sprintf("Region: %s", city), "scout_bootstrap_queries")
}

// GapQueries synthesizes 1-5 targeted search queries for a tension lacking
// existing coverage.
func (g *SeedGenerator) GapQueries(ctx context.Context, city, tensionTitle string, whatWouldHelp *string) ([]string, error) {
	system := "You synthesize 1 to 5 targeted search queries to find organizations or resources " +
		"addressing a specific civic tension."
	help := ""
	if whatWouldHelp != nil {
		help = *whatWouldHelp
	}
	user := fmt.Sprintf("Region: %s\nTension: %s\nWhat would help: %s", city, tensionTitle, help)
	return g.queries(ctx, system, user, "scout_gap_queries")
}

func (g *SeedGenerator) queries(ctx context.Context, system, user, schemaName string) ([]string, error) {
	schema := commonllm.GenerateSchema[queryListResult]()
	var result queryListResult
	_, err := g.client.Chat(ctx, commonllm.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		SchemaName:   schemaName,
		Schema:       schema,
		Temperature:  commonllm.Temp(0.4),
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("llm: %s: %w", schemaName, err)
	}
	return result.Queries, nil
}
