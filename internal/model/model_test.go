package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRoomJSONRoundTripsAnswerMap(t *testing.T) {
	r := NewRoom("ABCDEF", "host-1")
	r.CurrentAnswers[AnswerKey{PlayerID: "p1", QuestionIndex: 0}] = &Answer{
		PlayerID: "p1", QuestionIndex: 0, Answer: OptionB, TimeElapsed: 1200,
	}
	r.CurrentAnswers[AnswerKey{PlayerID: "p2", QuestionIndex: 0}] = &Answer{
		PlayerID: "p2", QuestionIndex: 0, Answer: OptionA, TimeElapsed: 800,
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Room
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(decoded.CurrentAnswers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(decoded.CurrentAnswers))
	}
	got := decoded.CurrentAnswers[AnswerKey{PlayerID: "p1", QuestionIndex: 0}]
	if got == nil || got.Answer != OptionB || got.TimeElapsed != 1200 {
		t.Errorf("unexpected decoded answer: %+v", got)
	}
}

func TestRoomJSONRoundTripsPauseFields(t *testing.T) {
	r := NewRoom("ABCDEF", "host-1")
	r.PausedQuestionIndex = 2
	r.PausedRemainingMs = 4500
	r.PausedTickRemaining = 7

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Room
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.PausedQuestionIndex != 2 || decoded.PausedRemainingMs != 4500 || decoded.PausedTickRemaining != 7 {
		t.Errorf("pause fields did not round-trip: %+v", decoded)
	}
}

func TestGetPlayerByNameIsCaseInsensitive(t *testing.T) {
	r := NewRoom("ABCDEF", "host-1")
	r.Players = append(r.Players, &Player{ID: "p1", Name: "Alice"})

	if p := r.GetPlayerByName("ALICE"); p == nil || p.ID != "p1" {
		t.Errorf("expected case-insensitive match, got %+v", p)
	}
	if p := r.GetPlayerByName("bob"); p != nil {
		t.Errorf("expected no match for bob, got %+v", p)
	}
}

func TestConnectedPlayerCount(t *testing.T) {
	r := NewRoom("ABCDEF", "host-1")
	r.Players = append(r.Players,
		&Player{ID: "p1", IsConnected: true},
		&Player{ID: "p2", IsConnected: false},
		&Player{ID: "p3", IsConnected: true},
	)
	if got := r.ConnectedPlayerCount(); got != 2 {
		t.Errorf("expected 2 connected players, got %d", got)
	}
}

func TestEffectiveTimeLimit(t *testing.T) {
	q := Question{TimeLimit: 0}
	if got := q.EffectiveTimeLimit(25); got != 25 {
		t.Errorf("expected room default 25, got %d", got)
	}
	q.TimeLimit = 10
	if got := q.EffectiveTimeLimit(25); got != 10 {
		t.Errorf("expected question override 10, got %d", got)
	}
}

func TestPublicQuestionOmitsCorrectAnswer(t *testing.T) {
	q := Question{
		Text:          "2+2?",
		Options:       map[Option]string{OptionA: "3", OptionB: "4"},
		CorrectAnswer: OptionB,
	}
	pub := q.Public(20)
	data, err := json.Marshal(pub)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) == "" {
		t.Fatal("expected non-empty json")
	}
	var decoded map[string]interface{}
	json.Unmarshal(data, &decoded)
	if _, ok := decoded["correctAnswer"]; ok {
		t.Error("PublicQuestion must never carry correctAnswer")
	}
}

func TestNewRoomDefaults(t *testing.T) {
	before := time.Now()
	r := NewRoom("ABCDEF", "host-1")
	if r.Phase != PhaseLobby {
		t.Errorf("expected lobby phase, got %s", r.Phase)
	}
	if r.Settings.MaxPlayers != 50 || r.Settings.MinPlayers != 2 {
		t.Errorf("expected default settings, got %+v", r.Settings)
	}
	if r.CreatedAt.Before(before) {
		t.Error("expected CreatedAt to be set at creation time")
	}
}
