package question

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"treacherest/internal/model"
)

// ParseSeedQuestions decodes the embedded question bank (category ->
// question list) into the shape NewStaticCatalog seeds from, the way
// the teacher's CardService decodes its embedded treachery-cards.json.
func ParseSeedQuestions(raw []byte) (map[string][]model.Question, error) {
	var seed map[string][]model.Question
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("question: parse seed bank: %w", err)
	}
	return seed, nil
}

// StaticCatalog is an in-memory Catalog seeded at construction time,
// useful for a self-contained deployment or for tests, the way the
// teacher's CardService holds its whole corpus in memory rather than
// behind an external store.
type StaticCatalog struct {
	mu    sync.Mutex
	byCat map[string][]*CatalogQuestion
}

// NewStaticCatalog seeds a catalog from category -> questions.
func NewStaticCatalog(seed map[string][]model.Question) *StaticCatalog {
	c := &StaticCatalog{byCat: make(map[string][]*CatalogQuestion)}
	for cat, qs := range seed {
		entries := make([]*CatalogQuestion, len(qs))
		for i, q := range qs {
			entries[i] = &CatalogQuestion{Question: q}
		}
		c.byCat[cat] = entries
	}
	return c
}

func (c *StaticCatalog) FetchLeastUsed(_ context.Context, category string, limit int, excludeIDs []string) ([]CatalogQuestion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	all := c.byCat[category]
	candidates := make([]*CatalogQuestion, 0, len(all))
	for _, q := range all {
		if !excluded[q.Question.ID] {
			candidates = append(candidates, q)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TimesUsed < candidates[j].TimesUsed
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]CatalogQuestion, len(candidates))
	for i, q := range candidates {
		out[i] = *q
	}
	return out, nil
}

func (c *StaticCatalog) IncrementUsage(_ context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, entries := range c.byCat {
		for _, e := range entries {
			if want[e.Question.ID] {
				e.TimesUsed++
			}
		}
	}
	return nil
}

func (c *StaticCatalog) Store(_ context.Context, category string, questions []model.Question) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := make(map[string]bool, len(c.byCat[category]))
	for _, e := range c.byCat[category] {
		existing[e.Question.ID] = true
	}
	for _, q := range questions {
		if existing[q.ID] {
			continue // duplicates swallowed, per spec §4.9
		}
		c.byCat[category] = append(c.byCat[category], &CatalogQuestion{Question: q})
		existing[q.ID] = true
	}
	return nil
}
