// Package engine implements GameEngine (spec §4.10): the phase state
// machine driving one room through starting, question, reveal,
// (leaderboard,) and final, scheduling its own transitions via
// TimerRegistry and scoring answers via Scorer. Grounded on the
// teacher's internal/game.Room phase bookkeeping (CanStart, GameState
// enum), generalized from a single in-memory state holder to a set of
// RoomStore-mediated transitions. Per-room locks and timers live in the
// process that owns the Engine, so one process drives a given room.
package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"treacherest/internal/archive"
	"treacherest/internal/cache"
	"treacherest/internal/model"
	"treacherest/internal/question"
	"treacherest/internal/scoring"
	"treacherest/internal/timers"
	"treacherest/internal/transport"
)

// Phase timing constants (spec §4.10 worked example).
const (
	CountdownDuration     = 3 * time.Second
	RevealDuration        = 5 * time.Second
	WinnerJingleDuration  = 3 * time.Second
	RevealConfirmDuration = 2 * time.Second // portion of the reveal budget shown before any leaderboard interstitial
	answerLatencyGrace    = 1 * time.Second
)

// errStale aborts a RoomStore.Update from inside a stale timer fire:
// the mutator declines the write and the caller treats it as a no-op,
// per spec §5's "timer firings for rooms ... moved out of the expected
// phase are no-ops".
var errStale = errors.New("engine: stale transition")

// Engine drives the phase state machine for every room sharing store.
type Engine struct {
	store    cache.Store
	bus      transport.EventBus
	timers   *timers.Registry
	pipeline *question.Pipeline
	archive  archive.SessionArchive
}

// New wires an Engine from its collaborators.
func New(store cache.Store, bus transport.EventBus, reg *timers.Registry, pipeline *question.Pipeline, arch archive.SessionArchive) *Engine {
	return &Engine{store: store, bus: bus, timers: reg, pipeline: pipeline, archive: arch}
}

func translateNotFound(err error) error {
	if err == cache.ErrNotFound {
		return ErrRoomNotFound
	}
	return err
}

// GenerateQuiz fetches a question batch via the QuestionPipeline and
// installs it on the room, provided requesterID is host and the room is
// still in lobby (spec §4.9, §6.1 quiz:generate).
func (e *Engine) GenerateQuiz(ctx context.Context, code, requesterID, category string, questionCount int, difficulty model.Difficulty) (int, error) {
	room, err := e.store.Get(ctx, code)
	if err != nil {
		return 0, translateNotFound(err)
	}
	if room.HostID != requesterID {
		return 0, ErrNotHost
	}
	if room.Phase != model.PhaseLobby {
		return 0, ErrGameInProgress
	}

	e.bus.Broadcast(code, "quiz:generating", transport.Same(map[string]interface{}{}))

	questions, err := e.pipeline.Fetch(ctx, category, difficulty, questionCount, room.UsedQuestionIDs)
	if err != nil {
		e.bus.Broadcast(code, "quiz:error", transport.Same(map[string]interface{}{"error": err.Error()}))
		return 0, ErrQuizGenerationFailed
	}
	if len(questions) == 0 {
		e.bus.Broadcast(code, "quiz:error", transport.Same(map[string]interface{}{"error": "no questions available"}))
		return 0, ErrQuizGenerationFailed
	}

	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	_, err = e.store.Update(ctx, code, func(r *model.Room) error {
		if r.HostID != requesterID {
			return ErrNotHost
		}
		if r.Phase != model.PhaseLobby {
			return ErrGameInProgress
		}
		r.Questions = questions
		r.Settings.Category = category
		r.Settings.Difficulty = difficulty
		r.Settings.QuestionCount = len(questions)
		r.UsedQuestionIDs = append(r.UsedQuestionIDs, ids...)
		return nil
	})
	if err != nil {
		return 0, translateNotFound(err)
	}

	e.bus.Broadcast(code, "quiz:generated", transport.Same(map[string]interface{}{"questions": len(questions)}))
	return len(questions), nil
}

// StartGame begins the countdown into question(0), provided requesterID
// is host, the room has enough players, and questions are loaded (spec
// §4.10 Startup).
func (e *Engine) StartGame(ctx context.Context, code, requesterID string) error {
	room, err := e.store.Update(ctx, code, func(r *model.Room) error {
		if r.HostID != requesterID {
			return ErrNotHost
		}
		if len(r.Players) < r.Settings.MinPlayers {
			return ErrNotEnoughPlayers
		}
		if len(r.Questions) == 0 {
			return ErrNoQuestions
		}
		r.Phase = model.PhaseStarting
		return nil
	})
	if err != nil {
		return translateNotFound(err)
	}

	sessionRef, err := e.archive.RecordSessionStart(ctx, archive.SessionStart{
		RoomCode:      code,
		HostName:      room.HostName,
		Category:      room.Settings.Category,
		QuestionCount: len(room.Questions),
		PlayerCount:   len(room.Players),
		StartedAt:     time.Now(),
	})
	if err != nil {
		log.Printf("engine: archive session start for %s: %v", code, err)
	} else {
		_, _ = e.store.Update(ctx, code, func(r *model.Room) error {
			r.SessionRef = sessionRef
			return nil
		})
	}

	e.bus.Broadcast(code, "game:starting", transport.Same(map[string]interface{}{
		"countdown": int(CountdownDuration / time.Second),
	}))

	countdownSeconds := int(CountdownDuration / time.Second)
	e.timers.StartTicks(code, countdownSeconds, func(remaining int) {
		if remaining <= 0 {
			e.onCountdownExpired(code)
			return
		}
		e.bus.Broadcast(code, "game:countdown", transport.Same(map[string]interface{}{"count": remaining}))
	})
	return nil
}

func (e *Engine) onCountdownExpired(code string) {
	ctx := context.Background()
	room, err := e.store.Get(ctx, code)
	if err != nil || room.Phase != model.PhaseStarting {
		return // stale: room deleted or moved on already
	}
	e.bus.Broadcast(code, "game:started", transport.Same(map[string]interface{}{
		"phase":           string(model.PhaseQuestion),
		"questionCount":   len(room.Questions),
		"currentQuestion": 0,
	}))
	e.transitionIntoQuestion(ctx, code, 0)
}

// transitionIntoQuestion implements spec §4.10's "Transition into
// question(i)": clears answers, broadcasts the public question, and
// arms both the per-second tick stream and the resolution deadline.
func (e *Engine) transitionIntoQuestion(ctx context.Context, code string, i int) {
	room, err := e.store.Update(ctx, code, func(r *model.Room) error {
		if i >= len(r.Questions) {
			return errStale
		}
		r.CurrentAnswers = make(map[model.AnswerKey]*model.Answer)
		r.QuestionStartTime = time.Now().UnixMilli()
		r.CurrentQuestionIndex = i
		r.Phase = model.PhaseQuestion
		return nil
	})
	if err != nil {
		if err != errStale {
			log.Printf("engine: transition into question %d for %s: %v", i, code, err)
		}
		return
	}

	q := room.Questions[i]
	timeLimit := q.EffectiveTimeLimit(room.Settings.TimeLimit)

	// TV subscribers get the correct answer alongside the question so the
	// host display can highlight it as answers come in; player subscribers
	// only ever see the stripped PublicQuestion (spec §4.7, §I3).
	e.bus.Broadcast(code, "game:question", func(role transport.Role) interface{} {
		payload := map[string]interface{}{
			"questionIndex":  i,
			"totalQuestions": len(room.Questions),
			"question":       q.Public(timeLimit),
			"timeLimit":      timeLimit,
		}
		if role == transport.RoleTV {
			payload["correctAnswer"] = q.CorrectAnswer
		}
		return payload
	})

	e.timers.StartTicks(code, timeLimit, func(remaining int) {
		if remaining <= 0 {
			e.bus.Broadcast(code, "timer:end", transport.Same(map[string]interface{}{}))
			return
		}
		e.bus.Broadcast(code, "timer:tick", transport.Same(map[string]interface{}{"timeRemaining": remaining}))
	})

	e.timers.SetDeadline(code, time.Duration(timeLimit)*time.Second+answerLatencyGrace, func() {
		e.resolveQuestion(context.Background(), code, i)
	})
}

// SubmitAnswer admits one player's answer to the current question, per
// spec §4.10's answer admission rules.
func (e *Engine) SubmitAnswer(ctx context.Context, code, playerID string, answer model.Option, clientTimestamp int64) error {
	var answerCount, totalPlayers, questionIndex int

	_, err := e.store.Update(ctx, code, func(r *model.Room) error {
		if r.Phase != model.PhaseQuestion {
			return ErrNotAcceptingAnswers
		}
		questionIndex = r.CurrentQuestionIndex
		key := model.AnswerKey{PlayerID: playerID, QuestionIndex: questionIndex}
		if _, exists := r.CurrentAnswers[key]; exists {
			return ErrAlreadyAnswered
		}

		elapsed := time.Now().UnixMilli() - r.QuestionStartTime
		if elapsed < 0 {
			elapsed = 0
		}
		q := r.Questions[questionIndex]
		timeLimit := q.EffectiveTimeLimit(r.Settings.TimeLimit)
		if elapsed > int64(timeLimit)*1000 {
			return ErrNotAcceptingAnswers
		}
		r.CurrentAnswers[key] = &model.Answer{
			PlayerID:      playerID,
			QuestionIndex: questionIndex,
			Answer:        answer,
			Timestamp:     clientTimestamp,
			TimeElapsed:   elapsed,
			SubmittedAt:   time.Now(),
		}

		totalPlayers = r.ConnectedPlayerCount()
		for k := range r.CurrentAnswers {
			if k.QuestionIndex == questionIndex {
				answerCount++
			}
		}
		return nil
	})
	if err != nil {
		return translateNotFound(err)
	}

	payload := transport.Same(map[string]interface{}{
		"playerId":     playerID,
		"answerCount":  answerCount,
		"totalPlayers": totalPlayers,
	})
	e.bus.Broadcast(code, "answer:received", payload)
	e.bus.Broadcast(code, "player:answered", payload)

	if answerCount >= totalPlayers {
		e.bus.Broadcast(code, "answer:all-received", transport.Same(map[string]interface{}{}))
		e.resolveQuestion(ctx, code, questionIndex)
	}
	return nil
}

// AnswerTimeout lets the host force resolution of the current question
// without waiting for the deadline (spec §6.1 answer:timeout).
func (e *Engine) AnswerTimeout(ctx context.Context, code, requesterID string) error {
	room, err := e.store.Get(ctx, code)
	if err != nil {
		return translateNotFound(err)
	}
	if room.HostID != requesterID {
		return ErrNotHost
	}
	if room.Phase != model.PhaseQuestion {
		return ErrNotAcceptingAnswers
	}
	e.resolveQuestion(ctx, code, room.CurrentQuestionIndex)
	return nil
}

// resolveQuestion implements spec §4.10's resolveQuestion(i): scores
// every player, commits the reveal phase, and schedules the advance.
func (e *Engine) resolveQuestion(ctx context.Context, code string, i int) {
	var (
		results   []scoring.QuestionResult
		winner    *scoring.QuestionResult
		standings []scoring.LeaderboardEntry
	)

	room, err := e.store.Update(ctx, code, func(r *model.Room) error {
		if r.Phase != model.PhaseQuestion || r.CurrentQuestionIndex != i {
			return errStale
		}
		q := r.Questions[i]
		results = scoring.ComputeResults(r.Players, q, i, r.CurrentAnswers, r.Settings.TimeLimit)
		for _, res := range results {
			p := r.GetPlayer(res.PlayerID)
			if p == nil {
				continue
			}
			p.Score = res.NewScore
			p.Streak = res.Streak
		}
		winner = scoring.Winner(results)
		standings = scoring.RankLeaderboard(r.Players)
		r.Phase = model.PhaseReveal
		return nil
	})
	if err != nil {
		if err != errStale {
			log.Printf("engine: resolve question %d for %s: %v", i, code, err)
		}
		return
	}

	e.timers.Cancel(code) // stop the question tick/deadline now that reveal has begun

	q := room.Questions[i]
	e.bus.Broadcast(code, "game:reveal", transport.Same(map[string]interface{}{
		"correctAnswer":  q.CorrectAnswer,
		"results":        results,
		"standings":      standings,
		"questionWinner": winner,
	}))

	totalDelay := RevealDuration
	if winner != nil {
		totalDelay += WinnerJingleDuration
	}

	next := i + 1
	showLeaderboard := next < len(room.Questions) && len(room.Questions)-next > 1
	if showLeaderboard {
		confirmDelay := RevealConfirmDuration
		if winner != nil {
			confirmDelay += WinnerJingleDuration
		}
		confirmSeconds := int(confirmDelay / time.Second)
		e.timers.StartTicks(code, confirmSeconds, func(remaining int) {
			if remaining <= 0 {
				e.enterLeaderboard(code, i, next, standings)
			}
		})
	}

	e.timers.SetDeadline(code, totalDelay, func() {
		e.advanceAfterReveal(context.Background(), code, i, next)
	})
}

// enterLeaderboard broadcasts the explicit standings interstitial
// (spec.md §9 / SPEC_FULL.md Open Question #3), splitting the reveal
// budget between the correct-answer confirmation and the leaderboard.
func (e *Engine) enterLeaderboard(code string, i, next int, standings []scoring.LeaderboardEntry) {
	ctx := context.Background()
	_, err := e.store.Update(ctx, code, func(r *model.Room) error {
		if r.Phase != model.PhaseReveal || r.CurrentQuestionIndex != i {
			return errStale
		}
		r.Phase = model.PhaseLeaderboard
		return nil
	})
	if err != nil {
		return
	}
	e.bus.Broadcast(code, "game:leaderboard", transport.Same(map[string]interface{}{
		"standings":         standings,
		"nextQuestionIndex": next,
	}))
}

// advanceAfterReveal implements spec §4.10's advance(): it fires once
// the full reveal (+ optional leaderboard) budget elapses.
func (e *Engine) advanceAfterReveal(ctx context.Context, code string, i, next int) {
	room, err := e.store.Get(ctx, code)
	if err != nil {
		return
	}
	if room.Phase != model.PhaseReveal && room.Phase != model.PhaseLeaderboard {
		return // stale: paused, ended, or restarted since resolveQuestion scheduled this
	}
	if room.CurrentQuestionIndex != i {
		return
	}
	if next >= len(room.Questions) {
		e.endGame(ctx, code)
		return
	}
	e.transitionIntoQuestion(ctx, code, next)
}

// NextQuestion lets the host manually skip the remaining reveal/
// leaderboard wait and advance immediately (spec §6.1 game:next-question).
func (e *Engine) NextQuestion(ctx context.Context, code, requesterID string) error {
	var i int
	room, err := e.store.Update(ctx, code, func(r *model.Room) error {
		if r.HostID != requesterID {
			return ErrNotHost
		}
		if r.Phase != model.PhaseReveal && r.Phase != model.PhaseLeaderboard {
			return ErrCannotAdvance
		}
		i = r.CurrentQuestionIndex
		return nil
	})
	if err != nil {
		return translateNotFound(err)
	}

	e.timers.Cancel(code)
	next := i + 1
	if next >= len(room.Questions) {
		e.endGame(ctx, code)
		return nil
	}
	e.transitionIntoQuestion(ctx, code, next)
	return nil
}

// Pause freezes the in-flight question timer into a dedicated paused
// phase (SPEC_FULL.md Open Question #1): the deadline and tick stream
// are cancelled but their remaining time is captured on the room record
// so Resume can pick up where they left off.
func (e *Engine) Pause(ctx context.Context, code, requesterID string) error {
	room, err := e.store.Update(ctx, code, func(r *model.Room) error {
		if r.HostID != requesterID {
			return ErrNotHost
		}
		if r.Phase != model.PhaseQuestion {
			return ErrCannotPause
		}
		q := r.Questions[r.CurrentQuestionIndex]
		timeLimit := q.EffectiveTimeLimit(r.Settings.TimeLimit)
		budget := int64(timeLimit)*1000 + answerLatencyGrace.Milliseconds()
		elapsed := time.Now().UnixMilli() - r.QuestionStartTime
		remaining := budget - elapsed
		if remaining < 0 {
			remaining = 0
		}

		r.PausedQuestionIndex = r.CurrentQuestionIndex
		r.PausedRemainingMs = remaining
		r.PausedTickRemaining = int(remaining / 1000)
		r.Phase = model.PhasePaused
		return nil
	})
	if err != nil {
		return translateNotFound(err)
	}

	e.timers.Cancel(code)
	e.bus.Broadcast(code, "game:paused", transport.Same(map[string]interface{}{
		"questionIndex": room.PausedQuestionIndex,
		"remainingMs":   room.PausedRemainingMs,
	}))
	return nil
}

// Resume re-arms the question timer from where Pause left off.
func (e *Engine) Resume(ctx context.Context, code, requesterID string) error {
	room, err := e.store.Update(ctx, code, func(r *model.Room) error {
		if r.HostID != requesterID {
			return ErrNotHost
		}
		if r.Phase != model.PhasePaused {
			return ErrNotPaused
		}
		q := r.Questions[r.PausedQuestionIndex]
		timeLimit := q.EffectiveTimeLimit(r.Settings.TimeLimit)
		budget := int64(timeLimit)*1000 + answerLatencyGrace.Milliseconds()
		elapsedBeforePause := budget - r.PausedRemainingMs

		r.Phase = model.PhaseQuestion
		r.CurrentQuestionIndex = r.PausedQuestionIndex
		r.QuestionStartTime = time.Now().UnixMilli() - elapsedBeforePause
		return nil
	})
	if err != nil {
		return translateNotFound(err)
	}

	e.bus.Broadcast(code, "game:resumed", transport.Same(map[string]interface{}{
		"questionIndex": room.CurrentQuestionIndex,
		"remainingMs":   room.PausedRemainingMs,
	}))

	i := room.CurrentQuestionIndex
	remainingMs := room.PausedRemainingMs
	e.timers.StartTicks(code, room.PausedTickRemaining, func(remaining int) {
		if remaining <= 0 {
			e.bus.Broadcast(code, "timer:end", transport.Same(map[string]interface{}{}))
			return
		}
		e.bus.Broadcast(code, "timer:tick", transport.Same(map[string]interface{}{"timeRemaining": remaining}))
	})
	e.timers.SetDeadline(code, time.Duration(remainingMs)*time.Millisecond, func() {
		e.resolveQuestion(context.Background(), code, i)
	})
	return nil
}

// End lets the host force the game to final from any phase (spec §4.10
// transition table's "any -- end(host) --> final").
func (e *Engine) End(ctx context.Context, code, requesterID string) error {
	room, err := e.store.Get(ctx, code)
	if err != nil {
		return translateNotFound(err)
	}
	if room.HostID != requesterID {
		return ErrNotHost
	}
	if room.Phase == model.PhaseFinal {
		return nil
	}
	e.endGame(ctx, code)
	return nil
}

// endGame implements spec §4.10's endGame(): sets phase=final, tears
// down timers, broadcasts the final standings, and writes a
// best-effort session-completion record to the archive.
func (e *Engine) endGame(ctx context.Context, code string) {
	room, err := e.store.Update(ctx, code, func(r *model.Room) error {
		r.Phase = model.PhaseFinal
		return nil
	})
	if err != nil {
		log.Printf("engine: end game for %s: %v", code, err)
		return
	}
	e.timers.Teardown(code)

	standings := scoring.RankLeaderboard(room.Players)
	var winner *scoring.LeaderboardEntry
	if len(standings) > 0 {
		winner = &standings[0]
	}
	e.bus.Broadcast(code, "game:finished", transport.Same(map[string]interface{}{
		"standings": standings,
		"winner":    winner,
	}))

	if room.SessionRef != "" {
		go e.archiveSessionEnd(code, room, standings)
	}
}

func (e *Engine) archiveSessionEnd(code string, room *model.Room, standings []scoring.LeaderboardEntry) {
	ctx := context.Background()
	if err := e.archive.RecordSessionEnd(ctx, archive.SessionEnd{RoomCode: code, EndedAt: time.Now()}); err != nil {
		log.Printf("engine: archive session end for %s: %v", code, err)
	}

	outcomes := make([]archive.PlayerOutcome, len(standings))
	for i, s := range standings {
		outcomes[i] = archive.PlayerOutcome{
			SessionRef:     room.SessionRef,
			PlayerName:     s.Name,
			FinalRank:      s.Rank,
			FinalScore:     s.Score,
			TotalQuestions: len(room.Questions),
		}
	}
	if err := e.archive.RecordPlayerOutcomes(ctx, outcomes); err != nil {
		log.Printf("engine: archive player outcomes for %s: %v", code, err)
	}
}

// Restart implements spec §4.10's Restart: zeroes scores/streaks and
// returns the room to lobby, keeping players.
func (e *Engine) Restart(ctx context.Context, code, requesterID string) error {
	_, err := e.store.Update(ctx, code, func(r *model.Room) error {
		if r.HostID != requesterID {
			return ErrNotHost
		}
		for _, p := range r.Players {
			p.Score = 0
			p.Streak = 0
			p.IsReady = false
		}
		r.Questions = nil
		r.CurrentAnswers = make(map[model.AnswerKey]*model.Answer)
		r.CurrentQuestionIndex = 0
		r.QuestionStartTime = 0
		r.PausedQuestionIndex = 0
		r.PausedRemainingMs = 0
		r.PausedTickRemaining = 0
		r.SessionRef = ""
		r.Phase = model.PhaseLobby
		return nil
	})
	if err != nil {
		return translateNotFound(err)
	}

	e.timers.Teardown(code)
	e.bus.Broadcast(code, "game:restarted", transport.Same(map[string]interface{}{"phase": string(model.PhaseLobby)}))
	return nil
}
