package question

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"treacherest/internal/model"
)

func sampleQuestions(n int, prefix string) []model.Question {
	qs := make([]model.Question, n)
	for i := 0; i < n; i++ {
		qs[i] = model.Question{
			ID:   fmt.Sprintf("%s-%d", prefix, i),
			Text: fmt.Sprintf("question %d", i),
			Options: map[model.Option]string{
				model.OptionA: "a", model.OptionB: "b", model.OptionC: "c", model.OptionD: "d",
			},
			CorrectAnswer: model.OptionA,
			TimeLimit:     20,
		}
	}
	return qs
}

type stubProvider struct {
	output string
	err    error
}

func (s stubProvider) Generate(_ context.Context, _ string, _ model.Difficulty, _ int) (string, error) {
	return s.output, s.err
}

func TestFetchReturnsAllCachedWhenEnough(t *testing.T) {
	catalog := NewStaticCatalog(map[string][]model.Question{"general": sampleQuestions(10, "g")})
	p := New(catalog, stubProvider{})

	got, err := p.Fetch(context.Background(), "general", model.DifficultyMixed, 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(got))
	}
}

func TestFetchIncrementsUsageOnCachedSelection(t *testing.T) {
	catalog := NewStaticCatalog(map[string][]model.Question{"general": sampleQuestions(5, "g")})
	p := New(catalog, stubProvider{})
	ctx := context.Background()

	first, err := p.Fetch(ctx, "general", model.DifficultyMixed, 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 5 {
		t.Fatalf("expected 5, got %d", len(first))
	}

	// All 5 used once; fetching 5 more with exclusion of none should
	// still return all 5 (least-used-first, all tied at usage 1).
	second, err := p.Fetch(ctx, "general", model.DifficultyMixed, 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 5 {
		t.Fatalf("expected 5, got %d", len(second))
	}

	after, err := catalog.FetchLeastUsed(ctx, "general", 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, q := range after {
		if q.TimesUsed != 2 {
			t.Errorf("expected %s to be counted twice, got %d", q.Question.ID, q.TimesUsed)
		}
	}
}

func TestFetchGeneratesWhenCatalogShort(t *testing.T) {
	catalog := NewStaticCatalog(map[string][]model.Question{"general": sampleQuestions(2, "g")})
	providerOutput := `Here are the questions: [{"text":"2+2?","options":{"A":"3","B":"4","C":"5","D":"6"},"correctAnswer":"B","timeLimit":15},{"text":"3+3?","options":{"A":"6","B":"5","C":"4","D":"3"},"correctAnswer":"A"}]`
	p := New(catalog, stubProvider{output: providerOutput})

	got, err := p.Fetch(context.Background(), "general", model.DifficultyMixed, 4, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 questions (2 cached + 2 generated), got %d", len(got))
	}
}

func TestFetchReturnsPartialWhenProviderFails(t *testing.T) {
	catalog := NewStaticCatalog(map[string][]model.Question{"general": sampleQuestions(2, "g")})
	p := New(catalog, stubProvider{err: errors.New("provider down")})

	got, err := p.Fetch(context.Background(), "general", model.DifficultyMixed, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected fallback to 2 cached questions, got %d", len(got))
	}
}

func TestFetchReturnsEmptyWhenEverythingFails(t *testing.T) {
	catalog := NewStaticCatalog(nil)
	p := New(catalog, stubProvider{err: errors.New("provider down")})

	got, err := p.Fetch(context.Background(), "missing-category", model.DifficultyMixed, 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestParseProviderOutputRejectsBatchOnInvalidElement(t *testing.T) {
	text := `[{"text":"ok","options":{"A":"1","B":"2","C":"3","D":"4"},"correctAnswer":"A"},{"text":"bad","options":{"A":"1"},"correctAnswer":"Z"}]`
	_, err := ParseProviderOutput(text)
	if err == nil {
		t.Error("expected the whole batch to be rejected due to one invalid element")
	}
}

func TestParseProviderOutputExtractsFirstBracketedArray(t *testing.T) {
	text := `Sure, here you go:
[{"text":"q1","options":{"A":"1","B":"2","C":"3","D":"4"},"correctAnswer":"C","timeLimit":10}]
Hope that helps!`
	qs, err := ParseProviderOutput(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 || qs[0].Text != "q1" {
		t.Errorf("unexpected parse result: %+v", qs)
	}
}

func TestParseProviderOutputNoArrayFound(t *testing.T) {
	_, err := ParseProviderOutput("no json here")
	if err == nil {
		t.Error("expected error when no bracketed array is present")
	}
}

func TestStaticCatalogStoreSwallowsDuplicates(t *testing.T) {
	catalog := NewStaticCatalog(map[string][]model.Question{"general": sampleQuestions(1, "g")})
	dup := sampleQuestions(1, "g") // same id "g-0"

	if err := catalog.Store(context.Background(), "general", dup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := catalog.FetchLeastUsed(context.Background(), "general", 10, nil)
	if len(got) != 1 {
		t.Errorf("expected duplicate to be swallowed, got %d entries", len(got))
	}
}

func TestStaticCatalogFetchLeastUsedExcludesIDs(t *testing.T) {
	catalog := NewStaticCatalog(map[string][]model.Question{"general": sampleQuestions(3, "g")})
	got, _ := catalog.FetchLeastUsed(context.Background(), "general", 10, []string{"g-0"})
	if len(got) != 2 {
		t.Fatalf("expected 2 remaining questions, got %d", len(got))
	}
	for _, q := range got {
		if q.Question.ID == "g-0" {
			t.Error("excluded id should not be returned")
		}
	}
}
