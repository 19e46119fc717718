// Package model holds the shared data types for the trivia game engine:
// rooms, players, questions, answers, and settings. These types are the
// payload that RoomStore persists and every other component reads and
// mutates through RoomStore.Update.
package model

import (
	"encoding/json"
	"time"
)

// Phase is the room's position in the game state machine.
type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseStarting    Phase = "starting"
	PhaseQuestion    Phase = "question"
	PhaseReveal      Phase = "reveal"
	PhaseLeaderboard Phase = "leaderboard"
	PhasePaused      Phase = "paused"
	PhaseFinal       Phase = "final"
)

// Difficulty is a question difficulty tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyMixed  Difficulty = "mixed"
)

// Option is one of the four answer slots.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

// ValidOption reports whether o is one of A, B, C, D.
func ValidOption(o Option) bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// RoomSettings are the lobby-configurable knobs for a game.
type RoomSettings struct {
	QuestionCount int        `json:"questionCount"`
	TimeLimit     int        `json:"timeLimit"` // seconds
	Difficulty    Difficulty `json:"difficulty"`
	Category      string     `json:"category"`
	MaxPlayers    int        `json:"maxPlayers"`
	MinPlayers    int        `json:"minPlayers"`
}

// DefaultRoomSettings mirrors the bounds in spec §3 RoomSettings.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		QuestionCount: 10,
		TimeLimit:     20,
		Difficulty:    DifficultyMixed,
		Category:      "general",
		MaxPlayers:    50,
		MinPlayers:    2,
	}
}

// Player is one participant in a room, TV host excluded.
type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar"`
	Score       int       `json:"score"`
	Streak      int       `json:"streak"`
	JingleID    string    `json:"jingleId,omitempty"`
	IsConnected bool      `json:"isConnected"`
	IsHost      bool      `json:"isHost"`
	IsReady     bool      `json:"isReady"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Question is one trivia question with its four options.
type Question struct {
	ID            string            `json:"id"`
	Text          string            `json:"text"`
	Options       map[Option]string `json:"options"`
	CorrectAnswer Option            `json:"correctAnswer"`
	TimeLimit     int               `json:"timeLimit,omitempty"` // seconds, 0 = use room default
	ImageURL      string            `json:"imageUrl,omitempty"`
}

// EffectiveTimeLimit returns the question's own time limit if set, else the
// room default, per spec §3 Question.timeLimit.
func (q Question) EffectiveTimeLimit(roomDefault int) int {
	if q.TimeLimit > 0 {
		return q.TimeLimit
	}
	return roomDefault
}

// PublicQuestion is what is broadcast during the question phase: never the
// correct answer (spec invariant I3).
type PublicQuestion struct {
	Text      string            `json:"text"`
	Options   map[Option]string `json:"options"`
	TimeLimit int               `json:"timeLimit"`
	ImageURL  string            `json:"imageUrl,omitempty"`
}

// Public strips the correct answer for delivery to player-type subscribers.
func (q Question) Public(timeLimit int) PublicQuestion {
	return PublicQuestion{
		Text:      q.Text,
		Options:   q.Options,
		TimeLimit: timeLimit,
		ImageURL:  q.ImageURL,
	}
}

// AnswerKey identifies an Answer within a room's currentAnswers set.
type AnswerKey struct {
	PlayerID      string `json:"playerId"`
	QuestionIndex int    `json:"questionIndex"`
}

// Answer is one player's submission for one question.
type Answer struct {
	PlayerID      string    `json:"playerId"`
	QuestionIndex int       `json:"questionIndex"`
	Answer        Option    `json:"answer"`
	Timestamp     int64     `json:"timestamp"`   // client-reported, informational only
	TimeElapsed   int64     `json:"timeElapsed"` // server-computed milliseconds
	SubmittedAt   time.Time `json:"-"`
}

// Room is the top-level aggregate for one game instance (spec §3 Room).
type Room struct {
	Code                 string                `json:"code"`
	HostID               string                `json:"hostId"`
	HostName             string                `json:"hostName,omitempty"`
	HostConnected        bool                  `json:"hostConnected"`
	Phase                Phase                 `json:"phase"`
	Players              []*Player             `json:"players"` // ordered by join time
	Questions             []Question            `json:"questions"`
	CurrentQuestionIndex int                   `json:"currentQuestionIndex"`
	CurrentAnswers       map[AnswerKey]*Answer `json:"currentAnswers"`
	QuestionStartTime    int64                 `json:"questionStartTime,omitempty"` // unix millis
	PausedQuestionIndex  int                   `json:"pausedQuestionIndex,omitempty"`
	PausedRemainingMs    int64                 `json:"pausedRemainingMs,omitempty"` // deadline time left when paused
	PausedTickRemaining  int                   `json:"pausedTickRemaining,omitempty"`
	Settings             RoomSettings          `json:"settings"`
	UsedQuestionIDs      []string              `json:"usedQuestionIds,omitempty"`
	SessionRef           string                `json:"sessionRef,omitempty"` // archive record for the in-progress session
	CreatedAt            time.Time             `json:"createdAt"`
}

// NewRoom creates a lobby-phase room with default settings, per spec §4.8
// createRoom.
func NewRoom(code, hostID string) *Room {
	return NewRoomWithHostName(code, hostID, "")
}

// NewRoomWithHostName is NewRoom plus the optional display name carried
// in room:create's payload.
func NewRoomWithHostName(code, hostID, hostName string) *Room {
	return &Room{
		Code:            code,
		HostID:          hostID,
		HostName:        hostName,
		HostConnected:   true,
		Phase:           PhaseLobby,
		Players:         make([]*Player, 0),
		Questions:       make([]Question, 0),
		CurrentAnswers:  make(map[AnswerKey]*Answer),
		Settings:        DefaultRoomSettings(),
		UsedQuestionIDs: make([]string, 0),
		CreatedAt:       time.Now(),
	}
}

// roomWire is the JSON-on-the-wire shape of Room: CurrentAnswers can't
// marshal as a map keyed by a struct, so it travels as a flat list and is
// rebuilt into the keyed map on decode.
type roomWire struct {
	Code                 string       `json:"code"`
	HostID               string       `json:"hostId"`
	HostName             string       `json:"hostName,omitempty"`
	HostConnected        bool         `json:"hostConnected"`
	Phase                Phase        `json:"phase"`
	Players              []*Player    `json:"players"`
	Questions            []Question   `json:"questions"`
	CurrentQuestionIndex int          `json:"currentQuestionIndex"`
	CurrentAnswers       []*Answer    `json:"currentAnswers"`
	QuestionStartTime    int64        `json:"questionStartTime,omitempty"`
	PausedQuestionIndex  int          `json:"pausedQuestionIndex,omitempty"`
	PausedRemainingMs    int64        `json:"pausedRemainingMs,omitempty"`
	PausedTickRemaining  int          `json:"pausedTickRemaining,omitempty"`
	Settings             RoomSettings `json:"settings"`
	UsedQuestionIDs      []string     `json:"usedQuestionIds,omitempty"`
	SessionRef           string       `json:"sessionRef,omitempty"`
	CreatedAt            time.Time    `json:"createdAt"`
}

// MarshalJSON flattens CurrentAnswers into a list for serialization.
func (r Room) MarshalJSON() ([]byte, error) {
	w := roomWire{
		Code:                 r.Code,
		HostID:               r.HostID,
		HostName:             r.HostName,
		HostConnected:        r.HostConnected,
		Phase:                r.Phase,
		Players:              r.Players,
		Questions:            r.Questions,
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		QuestionStartTime:    r.QuestionStartTime,
		PausedQuestionIndex:  r.PausedQuestionIndex,
		PausedRemainingMs:    r.PausedRemainingMs,
		PausedTickRemaining:  r.PausedTickRemaining,
		Settings:             r.Settings,
		UsedQuestionIDs:      r.UsedQuestionIDs,
		SessionRef:           r.SessionRef,
		CreatedAt:            r.CreatedAt,
	}
	w.CurrentAnswers = make([]*Answer, 0, len(r.CurrentAnswers))
	for _, a := range r.CurrentAnswers {
		w.CurrentAnswers = append(w.CurrentAnswers, a)
	}
	return json.Marshal(w)
}

// UnmarshalJSON rebuilds CurrentAnswers from its flattened list form.
func (r *Room) UnmarshalJSON(data []byte) error {
	var w roomWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Code = w.Code
	r.HostID = w.HostID
	r.HostName = w.HostName
	r.HostConnected = w.HostConnected
	r.Phase = w.Phase
	r.Players = w.Players
	r.Questions = w.Questions
	r.CurrentQuestionIndex = w.CurrentQuestionIndex
	r.QuestionStartTime = w.QuestionStartTime
	r.PausedQuestionIndex = w.PausedQuestionIndex
	r.PausedRemainingMs = w.PausedRemainingMs
	r.PausedTickRemaining = w.PausedTickRemaining
	r.Settings = w.Settings
	r.UsedQuestionIDs = w.UsedQuestionIDs
	r.SessionRef = w.SessionRef
	r.CreatedAt = w.CreatedAt
	r.CurrentAnswers = make(map[AnswerKey]*Answer, len(w.CurrentAnswers))
	for _, a := range w.CurrentAnswers {
		r.CurrentAnswers[AnswerKey{PlayerID: a.PlayerID, QuestionIndex: a.QuestionIndex}] = a
	}
	return nil
}

// GetPlayer returns the player with the given id, or nil.
func (r *Room) GetPlayer(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// GetPlayerByName returns the player whose name matches case-insensitively.
func (r *Room) GetPlayerByName(name string) *Player {
	lower := lowerASCII(name)
	for _, p := range r.Players {
		if lowerASCII(p.Name) == lower {
			return p
		}
	}
	return nil
}

// ConnectedPlayerCount returns the number of players with IsConnected true.
func (r *Room) ConnectedPlayerCount() int {
	n := 0
	for _, p := range r.Players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
