package scoring

import (
	"testing"
	"time"

	"treacherest/internal/model"
)

func TestPointsWrongAnswerIsZero(t *testing.T) {
	if got := Points(false, 0, 20, 5); got != 0 {
		t.Errorf("expected 0 for wrong answer, got %d", got)
	}
}

func TestPointsInstantAnswerMaxTimeBonus(t *testing.T) {
	got := Points(true, 0, 20, 0)
	want := Base + int(Base*TimeMult) // full time bonus, no streak
	if got != want {
		t.Errorf("Points() = %d, want %d", got, want)
	}
}

func TestPointsAtDeadlineNoTimeBonus(t *testing.T) {
	got := Points(true, 20*1000, 20, 0)
	if got != Base {
		t.Errorf("Points() = %d, want base %d", got, Base)
	}
}

func TestPointsStreakBonusCaps(t *testing.T) {
	got := Points(true, 20*1000, 20, 10) // 10*100 = 1000, capped at 500
	want := Base + StreakCap
	if got != want {
		t.Errorf("Points() = %d, want %d (streak bonus capped)", got, want)
	}
}

func TestPointsStreakBonusBelowCap(t *testing.T) {
	got := Points(true, 20*1000, 20, 2) // 2*100 = 200, under cap
	want := Base + 200
	if got != want {
		t.Errorf("Points() = %d, want %d", got, want)
	}
}

func question() model.Question {
	return model.Question{
		ID:            "q1",
		Text:          "2+2?",
		Options:       map[model.Option]string{model.OptionA: "3", model.OptionB: "4"},
		CorrectAnswer: model.OptionB,
		TimeLimit:     20,
	}
}

func TestComputeResultsOrdersByPointsThenTime(t *testing.T) {
	now := time.Now()
	players := []*model.Player{
		{ID: "slow", Name: "Slow", Score: 0, Streak: 0, JoinedAt: now},
		{ID: "fast", Name: "Fast", Score: 0, Streak: 0, JoinedAt: now},
		{ID: "wrong", Name: "Wrong", Score: 0, Streak: 3, JoinedAt: now},
		{ID: "noanswer", Name: "NoAnswer", Score: 0, Streak: 0, JoinedAt: now},
	}
	answers := map[model.AnswerKey]*model.Answer{
		{PlayerID: "slow", QuestionIndex: 0}:  {PlayerID: "slow", QuestionIndex: 0, Answer: model.OptionB, TimeElapsed: 15000},
		{PlayerID: "fast", QuestionIndex: 0}:  {PlayerID: "fast", QuestionIndex: 0, Answer: model.OptionB, TimeElapsed: 2000},
		{PlayerID: "wrong", QuestionIndex: 0}: {PlayerID: "wrong", QuestionIndex: 0, Answer: model.OptionA, TimeElapsed: 1000},
	}

	results := ComputeResults(players, question(), 0, answers, 20)

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].PlayerID != "fast" {
		t.Errorf("expected fast to rank first, got %s", results[0].PlayerID)
	}
	if results[1].PlayerID != "slow" {
		t.Errorf("expected slow to rank second, got %s", results[1].PlayerID)
	}

	var wrong, none *QuestionResult
	for i := range results {
		switch results[i].PlayerID {
		case "wrong":
			wrong = &results[i]
		case "noanswer":
			none = &results[i]
		}
	}
	if wrong == nil || wrong.IsCorrect || wrong.PointsEarned != 0 {
		t.Errorf("expected wrong answer to score 0, got %+v", wrong)
	}
	if none == nil || none.Answered || none.PointsEarned != 0 {
		t.Errorf("expected no-answer to score 0 and be marked unanswered, got %+v", none)
	}
}

func TestComputeResultsStreakCarriesFromPriorScore(t *testing.T) {
	players := []*model.Player{{ID: "p1", Name: "P1", Score: 500, Streak: 4}}
	answers := map[model.AnswerKey]*model.Answer{
		{PlayerID: "p1", QuestionIndex: 2}: {PlayerID: "p1", QuestionIndex: 2, Answer: model.OptionB, TimeElapsed: 20000},
	}

	results := ComputeResults(players, question(), 2, answers, 20)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Streak != 5 {
		t.Errorf("expected streak to increment to 5, got %d", results[0].Streak)
	}
	if results[0].NewScore != 500+results[0].PointsEarned {
		t.Errorf("NewScore should add PointsEarned to prior score")
	}
}

func TestWinnerReturnsTopCorrectScorer(t *testing.T) {
	results := []QuestionResult{
		{PlayerID: "a", IsCorrect: false, PointsEarned: 0},
		{PlayerID: "b", IsCorrect: true, PointsEarned: 1200},
		{PlayerID: "c", IsCorrect: true, PointsEarned: 900},
	}
	w := Winner(results)
	if w == nil || w.PlayerID != "b" {
		t.Errorf("expected winner b, got %+v", w)
	}
}

func TestWinnerNilWhenNoOneScores(t *testing.T) {
	results := []QuestionResult{{PlayerID: "a", IsCorrect: false}}
	if w := Winner(results); w != nil {
		t.Errorf("expected nil winner, got %+v", w)
	}
}

func TestRankLeaderboardDenseRanksAndTiebreaks(t *testing.T) {
	t0 := time.Now()
	t1 := t0.Add(time.Second)
	players := []*model.Player{
		{ID: "a", Name: "Zed", Score: 1000, JoinedAt: t0},
		{ID: "b", Name: "Amy", Score: 1000, JoinedAt: t1},
		{ID: "c", Name: "Mid", Score: 500, JoinedAt: t0},
	}

	entries := RankLeaderboard(players)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].PlayerID != "a" || entries[0].Rank != 1 {
		t.Errorf("expected a first with rank 1 (earlier join breaks tie), got %+v", entries[0])
	}
	if entries[1].PlayerID != "b" || entries[1].Rank != 1 {
		t.Errorf("expected b tied at rank 1, got %+v", entries[1])
	}
	if entries[2].PlayerID != "c" || entries[2].Rank != 2 {
		t.Errorf("expected c at dense rank 2, got %+v", entries[2])
	}
}

func TestRankLeaderboardNameTiebreakIsCaseInsensitive(t *testing.T) {
	t0 := time.Now()
	players := []*model.Player{
		{ID: "a", Name: "bob", Score: 100, JoinedAt: t0},
		{ID: "b", Name: "Alice", Score: 100, JoinedAt: t0},
	}
	entries := RankLeaderboard(players)
	if entries[0].PlayerID != "b" {
		t.Errorf("expected Alice before bob on name tiebreak, got %+v", entries)
	}
}
