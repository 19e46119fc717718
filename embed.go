package treacherest

import (
	_ "embed"
)

// SeedQuestionsJSON is the built-in question bank consumed by
// internal/question.ParseSeedQuestions, so the process can start with a
// working StaticCatalog before any quiz has been generated.
//
//go:embed static/questions.json
var SeedQuestionsJSON []byte
