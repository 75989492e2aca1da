package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/rowanhm/stitch/internal/timeline"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Generator proposes a candidate timeline for one window from raw sensor
// events. Implemented by Gemini (production) and testutil fakes.
type Generator interface {
	GenerateTimeline(ctx context.Context, events []timeline.SensorEvent, window timeline.TimeSpan) (timeline.CandidateTimeline, error)
}

// Gemini implements the generation and merge oracles over the Gemini API.
//
// The client is stateless and safe for concurrent calls; the semantic
// matcher fans out many MatchPair calls against one Gemini instance.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini oracle client. apiKey is required; an empty
// model selects DefaultModel.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

// mergeVerdict is the JSON shape MatchPair asks the model for.
type mergeVerdict struct {
	Match       bool   `json:"match"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// MatchPair asks the model whether two descriptors describe the same
// activity. Returns the merged descriptor on a match, nil otherwise.
func (g *Gemini) MatchPair(ctx context.Context, existing, candidate timeline.Descriptor) (*timeline.Descriptor, error) {
	prompt := buildMergePrompt(existing, candidate)

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini match pair: %w", err)
	}

	var verdict mergeVerdict
	if err := json.Unmarshal([]byte(resp.Text()), &verdict); err != nil {
		return nil, fmt.Errorf("gemini match pair: decode verdict: %w", err)
	}
	if !verdict.Match {
		return nil, nil
	}

	merged := timeline.Descriptor{Name: verdict.Name, Description: verdict.Description}
	// A match with no usable merged name falls back to the existing
	// descriptor rather than erasing it.
	if strings.TrimSpace(merged.Name) == "" {
		merged = existing
	}
	return &merged, nil
}

// GenerateTimeline asks the model for a candidate timeline over the
// window's sensor events. The response is decoded through the same CUE
// schema gate as any other candidate source.
func (g *Gemini) GenerateTimeline(ctx context.Context, events []timeline.SensorEvent, window timeline.TimeSpan) (timeline.CandidateTimeline, error) {
	prompt := buildGenerationPrompt(events, window)

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return timeline.CandidateTimeline{}, fmt.Errorf("gemini generate timeline: %w", err)
	}

	tl, err := timeline.DecodeCandidate([]byte(resp.Text()))
	if err != nil {
		return timeline.CandidateTimeline{}, fmt.Errorf("gemini generate timeline: %w", err)
	}
	return tl, nil
}

func buildMergePrompt(existing, candidate timeline.Descriptor) string {
	var b strings.Builder
	b.WriteString("You compare two descriptions of user activity and decide whether they describe the SAME ongoing activity.\n\n")
	fmt.Fprintf(&b, "Activity A (existing record):\nname: %s\ndescription: %s\n\n", existing.Name, existing.Description)
	fmt.Fprintf(&b, "Activity B (new observation):\nname: %s\ndescription: %s\n\n", candidate.Name, candidate.Description)
	b.WriteString("If they are the same activity, merge them: keep the clearer name and combine the descriptions into one that covers both observations.\n")
	b.WriteString(`Respond with JSON only: {"match": true, "name": "...", "description": "..."} or {"match": false}.`)
	return b.String()
}

func buildGenerationPrompt(events []timeline.SensorEvent, window timeline.TimeSpan) string {
	var b strings.Builder
	b.WriteString("You reconstruct what the user was doing during a time window from raw sensor events.\n")
	fmt.Fprintf(&b, "Window: %s to %s (%s).\n\n", window.Start.Format("15:04:05"), window.End.Format("15:04:05"), window.Duration())
	b.WriteString("Events:\n")
	for _, e := range events {
		offset := e.Timestamp.Sub(window.Start)
		fmt.Fprintf(&b, "[%s] %s: %s\n", timeline.FormatOffset(offset), e.Source, e.Payload)
	}
	b.WriteString("\nGroup the events into distinct activities. Respond with JSON only:\n")
	b.WriteString(`{"activities":[{"id":"a1","name":"...","description":"..."}],` +
		`"events":[{"activity":"a1","offset":"mm:ss","type":"open"}]}` + "\n")
	b.WriteString("Offsets are relative to the window start. Every activity opens before it closes; every declared activity has at least one event.")
	return b.String()
}
