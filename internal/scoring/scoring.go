// Package scoring implements Scorer (spec §4.4): pure point computation,
// per-question result aggregation, and leaderboard ranking. No I/O —
// every function here is deterministic given its inputs, the way the
// teacher keeps game/roles.go's distribution math free of store or
// network calls.
package scoring

import (
	"math"
	"sort"
	"strings"

	"treacherest/internal/model"
)

// Point constants (spec §4.4).
const (
	Base       = 1000
	StreakStep = 100
	StreakCap  = 500
	TimeMult   = 0.5
)

// Points computes the score for one player's answer to one question.
// priorStreak is the player's streak before this question is resolved.
// elapsedMs is the server-computed time between question start and
// submission; timeLimitSec is the question's effective time limit.
func Points(correct bool, elapsedMs int64, timeLimitSec int, priorStreak int) int {
	if !correct {
		return 0
	}
	totalMs := float64(timeLimitSec) * 1000
	timeRatio := 1 - float64(elapsedMs)/totalMs
	if timeRatio < 0 {
		timeRatio = 0
	}
	timeBonus := int(math.Floor(Base * timeRatio * TimeMult))
	streakBonus := priorStreak * StreakStep
	if streakBonus > StreakCap {
		streakBonus = StreakCap
	}
	return Base + timeBonus + streakBonus
}

// QuestionResult is one player's scored outcome for a resolved question.
type QuestionResult struct {
	PlayerID     string       `json:"playerId"`
	Answer       model.Option `json:"answer,omitempty"`
	Answered     bool         `json:"answered"`
	IsCorrect    bool         `json:"isCorrect"`
	PointsEarned int          `json:"pointsEarned"`
	NewScore     int          `json:"newScore"`
	Streak       int          `json:"streak"`
	TimeElapsed  int64        `json:"timeElapsed"`
}

// ComputeResults scores every player in room against question, using the
// answers submitted for questionIndex. Results are sorted by pointsEarned
// descending, ties broken by timeElapsed ascending (spec §4.4).
func ComputeResults(players []*model.Player, question model.Question, questionIndex int, answers map[model.AnswerKey]*model.Answer, roomDefaultTimeLimit int) []QuestionResult {
	results := make([]QuestionResult, 0, len(players))

	for _, p := range players {
		key := model.AnswerKey{PlayerID: p.ID, QuestionIndex: questionIndex}
		ans, answered := answers[key]

		var correct bool
		var elapsed int64
		var submitted model.Option
		if answered {
			submitted = ans.Answer
			elapsed = ans.TimeElapsed
			correct = ans.Answer == question.CorrectAnswer
		}

		points := Points(correct, elapsed, question.EffectiveTimeLimit(roomDefaultTimeLimit), p.Streak)

		streak := 0
		if correct {
			streak = p.Streak + 1
		}

		results = append(results, QuestionResult{
			PlayerID:     p.ID,
			Answer:       submitted,
			Answered:     answered,
			IsCorrect:    correct,
			PointsEarned: points,
			NewScore:     p.Score + points,
			Streak:       streak,
			TimeElapsed:  elapsed,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].PointsEarned != results[j].PointsEarned {
			return results[i].PointsEarned > results[j].PointsEarned
		}
		return results[i].TimeElapsed < results[j].TimeElapsed
	})

	return results
}

// Winner returns the first correct, scoring result in results (spec §4.10
// step 3), or nil if no one scored. With results in ComputeResults order
// that is the one with the highest pointsEarned; Winner does not sort.
func Winner(results []QuestionResult) *QuestionResult {
	for i := range results {
		if results[i].IsCorrect && results[i].PointsEarned > 0 {
			r := results[i]
			return &r
		}
	}
	return nil
}

// LeaderboardEntry is one ranked standing.
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

// RankLeaderboard sorts players by score descending, ties broken by join
// order then name ascending, and assigns dense ranks (spec §4.4).
func RankLeaderboard(players []*model.Player) []LeaderboardEntry {
	ordered := make([]*model.Player, len(players))
	copy(ordered, players)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	entries := make([]LeaderboardEntry, len(ordered))
	rank := 0
	lastScore := -1
	for i, p := range ordered {
		if p.Score != lastScore {
			rank++
			lastScore = p.Score
		}
		entries[i] = LeaderboardEntry{PlayerID: p.ID, Name: p.Name, Score: p.Score, Rank: rank}
	}
	return entries
}
