package engine

import "errors"

var (
	ErrRoomNotFound         = errors.New("engine: room not found")
	ErrNotHost              = errors.New("engine: requester is not the host")
	ErrNotEnoughPlayers     = errors.New("engine: not enough players to start")
	ErrNoQuestions          = errors.New("engine: no questions loaded")
	ErrGameInProgress       = errors.New("engine: game already in progress")
	ErrNotAcceptingAnswers  = errors.New("engine: room is not accepting answers")
	ErrAlreadyAnswered      = errors.New("engine: player already answered this question")
	ErrQuizGenerationFailed = errors.New("engine: quiz generation failed")
	ErrNotPaused            = errors.New("engine: room is not paused")
	ErrCannotPause          = errors.New("engine: room cannot be paused from its current phase")
	ErrCannotAdvance        = errors.New("engine: room is not in a phase that can be advanced")
)
