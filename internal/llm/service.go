// Package llm provides the language-model collaborator used by the pipeline:
// address ranking, place extraction, summaries, and coordinate inference.
// Model output is parsed and shape-validated before anything downstream sees it.
package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aroundme-app/aroundme/pkg/anthropic"
)

const (
	rankMaxTokens      = 64
	extractMaxTokens   = 1024
	summaryMaxTokens   = 256
	inferMaxTokens     = 64
	maxSummaryLength   = 300
	maxExtractedPlaces = 10
)

// Service exposes the model-backed operations the agents and resolver need.
type Service interface {
	// RankAddresses picks the most plausible street address for a place from
	// the given candidates. Returns (index, true) or (0, false) when the model
	// declines to choose.
	RankAddresses(ctx context.Context, placeName, city string, candidates []string) (int, bool, error)

	// ExtractPlaces pulls named places out of free-form discussion text.
	ExtractPlaces(ctx context.Context, text, city string) ([]ExtractedPlace, error)

	// Summarize produces a short factual summary of a place grounded only in
	// the supplied context text.
	Summarize(ctx context.Context, placeName, contextText string) (string, error)

	// InferCoordinates estimates coordinates for a described location inside a
	// city. Returns (0, 0, false) when the model cannot locate it.
	InferCoordinates(ctx context.Context, description, city string) (float64, float64, bool, error)
}

// ExtractedPlace is one place mentioned in discussion text.
type ExtractedPlace struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Context  string `json:"context"`
}

type service struct {
	client anthropic.Client
	model  string
}

// NewService creates a Service backed by the given Anthropic client.
func NewService(client anthropic.Client, model string) Service {
	return &service{client: client, model: model}
}

func (s *service) complete(ctx context.Context, system, prompt string, maxTokens int64) (string, error) {
	zero := 0.0
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &zero,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

const rankSystem = `You select the most plausible street address for a named place.
Answer with the number of the best candidate, or the single word NONE if no
candidate looks like a real street address for that place. Answer with the
number or NONE only.`

func (s *service) RankAddresses(ctx context.Context, placeName, city string, candidates []string) (int, bool, error) {
	if len(candidates) == 0 {
		return 0, false, nil
	}
	if len(candidates) == 1 {
		return 0, true, nil
	}

	var b strings.Builder
	b.WriteString("Place: " + placeName + "\n")
	b.WriteString("City: " + city + "\n\nCandidates:\n")
	for i, c := range candidates {
		b.WriteString(strconv.Itoa(i+1) + ". " + c + "\n")
	}

	text, err := s.complete(ctx, rankSystem, b.String(), rankMaxTokens)
	if err != nil {
		return 0, false, eris.Wrap(err, "llm: rank addresses")
	}

	answer := strings.TrimSpace(text)
	if strings.EqualFold(answer, "NONE") {
		return 0, false, nil
	}
	// Tolerate trailing punctuation or explanation after the number.
	if i := strings.IndexFunc(answer, func(r rune) bool { return r < '0' || r > '9' }); i > 0 {
		answer = answer[:i]
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(candidates) {
		zap.L().Debug("unusable address ranking answer", zap.String("answer", text))
		return 0, false, nil
	}
	return n - 1, true, nil
}

const extractSystem = `You extract real, specific places (restaurants, bars, parks,
shops, venues, landmarks) mentioned in discussion text. Respond with a JSON
array only, no prose, where each element is
{"name": "...", "category": "...", "context": "..."}.
The context field quotes or closely paraphrases what the text says about the
place. Skip generic mentions ("a nice cafe"), chains without a specific
location, and places outside the given city. Respond with [] if none.`

func (s *service) ExtractPlaces(ctx context.Context, text, city string) ([]ExtractedPlace, error) {
	prompt := "City: " + city + "\n\nText:\n" + text
	out, err := s.complete(ctx, extractSystem, prompt, extractMaxTokens)
	if err != nil {
		return nil, eris.Wrap(err, "llm: extract places")
	}

	var raw []ExtractedPlace
	if err := json.Unmarshal([]byte(stripFences(out)), &raw); err != nil {
		zap.L().Debug("unparseable extraction answer", zap.String("answer", out))
		return nil, nil
	}

	places := make([]ExtractedPlace, 0, len(raw))
	for _, p := range raw {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			continue
		}
		places = append(places, p)
		if len(places) >= maxExtractedPlaces {
			break
		}
	}
	return places, nil
}

const summarySystem = `You write one short factual sentence or two about a place,
using only the supplied context. Do not invent details, quotes, or opinions
that are not in the context. No preamble.`

func (s *service) Summarize(ctx context.Context, placeName, contextText string) (string, error) {
	prompt := "Place: " + placeName + "\n\nContext:\n" + contextText
	out, err := s.complete(ctx, summarySystem, prompt, summaryMaxTokens)
	if err != nil {
		return "", eris.Wrap(err, "llm: summarize")
	}
	out = strings.TrimSpace(out)
	if len(out) > maxSummaryLength {
		out = strings.TrimSpace(out[:maxSummaryLength])
	}
	return out, nil
}

const inferSystem = `You estimate WGS84 coordinates for a described location inside
a city. Answer with "lat,lng" in decimal degrees (for example "45.5017,-73.5673"),
or the single word UNKNOWN if the description is too vague to place. Answer with
the coordinates or UNKNOWN only.`

func (s *service) InferCoordinates(ctx context.Context, description, city string) (float64, float64, bool, error) {
	prompt := "City: " + city + "\nLocation: " + description
	out, err := s.complete(ctx, inferSystem, prompt, inferMaxTokens)
	if err != nil {
		return 0, 0, false, eris.Wrap(err, "llm: infer coordinates")
	}

	answer := strings.TrimSpace(out)
	if strings.EqualFold(answer, "UNKNOWN") {
		return 0, 0, false, nil
	}

	parts := strings.SplitN(answer, ",", 2)
	if len(parts) != 2 {
		zap.L().Debug("unusable coordinate answer", zap.String("answer", out))
		return 0, 0, false, nil
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		zap.L().Debug("unusable coordinate answer", zap.String("answer", out))
		return 0, 0, false, nil
	}
	return lat, lng, true, nil
}

// stripFences removes a markdown code fence around a JSON payload if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
