// Package question implements QuestionPipeline (spec §4.9): an adapter
// composing a Catalog (least-used-first cached questions) and a
// QuestionProvider (AI-backed generation) into an ordered batch for one
// category. Grounded on the teacher's internal/game.CardService as the
// "fixed corpus of content, categorized and drawn from" shape, and on
// other_examples' autodm.go context.WithTimeout-bounded external call
// pattern for the provider request.
package question

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"treacherest/internal/model"
)

// ProviderTimeout bounds how long QuestionProvider.Generate may run
// before the pipeline falls back to whatever Catalog already returned
// (spec §4.9).
const ProviderTimeout = 30 * time.Second

// Catalog is the external least-used-first question store.
type Catalog interface {
	// FetchLeastUsed returns up to limit questions in category, excluding
	// any id in excludeIDs, ordered ascending by times-asked.
	FetchLeastUsed(ctx context.Context, category string, limit int, excludeIDs []string) ([]CatalogQuestion, error)

	// IncrementUsage bumps the times-asked counter for each id.
	IncrementUsage(ctx context.Context, ids []string) error

	// Store persists newly generated questions, best-effort; duplicate
	// ids are swallowed rather than erroring.
	Store(ctx context.Context, category string, questions []model.Question) error
}

// CatalogQuestion is a question as stored in the Catalog, with its
// times-asked counter.
type CatalogQuestion struct {
	Question  model.Question
	TimesUsed int
}

// Provider is the AI-backed question generator.
type Provider interface {
	// Generate asks for n new questions in category at difficulty,
	// returning raw response text to be parsed by ParseProviderOutput.
	Generate(ctx context.Context, category string, difficulty model.Difficulty, n int) (string, error)
}

// Pipeline produces ordered question batches for a room's game.
type Pipeline struct {
	catalog  Catalog
	provider Provider
}

// New wires a Pipeline from its Catalog and Provider collaborators.
func New(catalog Catalog, provider Provider) *Pipeline {
	return &Pipeline{catalog: catalog, provider: provider}
}

// Fetch returns up to n Questions for category at difficulty, excluding
// excludeIDs, per the algorithm in spec §4.9.
func (p *Pipeline) Fetch(ctx context.Context, category string, difficulty model.Difficulty, n int, excludeIDs []string) ([]model.Question, error) {
	cachedRaw, err := p.catalog.FetchLeastUsed(ctx, category, 2*n, excludeIDs)
	if err != nil {
		return nil, fmt.Errorf("question: fetch cached: %w", err)
	}

	cached := make([]model.Question, len(cachedRaw))
	for i, c := range cachedRaw {
		cached[i] = c.Question
	}

	if len(cached) >= n {
		rand.Shuffle(len(cached), func(i, j int) { cached[i], cached[j] = cached[j], cached[i] })
		selected := cached[:n]
		ids := make([]string, n)
		for i, q := range selected {
			ids[i] = q.ID
		}
		if err := p.catalog.IncrementUsage(ctx, ids); err != nil {
			return nil, fmt.Errorf("question: increment usage: %w", err)
		}
		return selected, nil
	}

	needed := n - len(cached)
	generated, err := p.generate(ctx, category, difficulty, needed)
	if err != nil || len(generated) == 0 {
		// Provider failure or empty result: return whatever the catalog
		// had, possibly fewer than n (spec §4.9 step 4).
		if len(cached) > 0 {
			ids := make([]string, len(cached))
			for i, q := range cached {
				ids[i] = q.ID
			}
			_ = p.catalog.IncrementUsage(ctx, ids)
		}
		return cached, nil
	}

	if len(generated) > needed {
		generated = generated[:needed]
	}
	_ = p.catalog.Store(ctx, category, generated)

	if len(cached) > 0 {
		ids := make([]string, len(cached))
		for i, q := range cached {
			ids[i] = q.ID
		}
		_ = p.catalog.IncrementUsage(ctx, ids)
	}

	return append(cached, generated...), nil
}

func (p *Pipeline) generate(ctx context.Context, category string, difficulty model.Difficulty, n int) ([]model.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, ProviderTimeout)
	defer cancel()

	raw, err := p.provider.Generate(ctx, category, difficulty, n)
	if err != nil {
		return nil, nil // provider errors are swallowed; caller falls back to cached
	}
	return ParseProviderOutput(raw)
}

var bracketedArray = regexp.MustCompile(`(?s)\[.*\]`)

// providerQuestion is the wire shape one generated question must match.
type providerQuestion struct {
	Text          string            `json:"text"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correctAnswer"`
	TimeLimit     int               `json:"timeLimit"`
}

// ParseProviderOutput extracts the first bracketed JSON array from text
// and validates every element, per spec §4.9. Any element failing
// validation rejects the whole batch.
func ParseProviderOutput(text string) ([]model.Question, error) {
	match := bracketedArray.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("question: no JSON array found in provider output")
	}

	var raw []providerQuestion
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("question: parse provider output: %w", err)
	}

	questions := make([]model.Question, 0, len(raw))
	for i, pq := range raw {
		q, err := pq.toQuestion()
		if err != nil {
			return nil, fmt.Errorf("question: element %d: %w", i, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (pq providerQuestion) toQuestion() (model.Question, error) {
	if pq.Text == "" {
		return model.Question{}, fmt.Errorf("missing text")
	}
	opts := make(map[model.Option]string, 4)
	for _, o := range []model.Option{model.OptionA, model.OptionB, model.OptionC, model.OptionD} {
		v, ok := pq.Options[string(o)]
		if !ok || v == "" {
			return model.Question{}, fmt.Errorf("missing option %s", o)
		}
		opts[o] = v
	}
	correct := model.Option(pq.CorrectAnswer)
	if !model.ValidOption(correct) {
		return model.Question{}, fmt.Errorf("invalid correctAnswer %q", pq.CorrectAnswer)
	}
	return model.Question{
		ID:            newQuestionID(),
		Text:          pq.Text,
		Options:       opts,
		CorrectAnswer: correct,
		TimeLimit:     pq.TimeLimit,
	}, nil
}

func newQuestionID() string {
	b := make([]byte, 8)
	cryptorand.Read(b)
	return fmt.Sprintf("%x", b)
}
