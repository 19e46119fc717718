package validate

import (
	"strings"
	"testing"

	"treacherest/internal/model"
)

func TestRoomCode(t *testing.T) {
	cases := []struct {
		code string
		ok   bool
	}{
		{"ABCD12", true},
		{"abcd12", false}, // lowercase rejected
		{"ABCDE", false},  // too short
		{"ABCDEFG", false},
		{"AB-D12", false},
	}
	for _, c := range cases {
		err := RoomCode(c.code)
		if (err == nil) != c.ok {
			t.Errorf("RoomCode(%q): err=%v, want ok=%v", c.code, err, c.ok)
		}
	}
}

func TestName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"Alice", true},
		{"Al 42", true},
		{"", false},
		{strings.Repeat("a", 21), false},
		{"Alice!", false},
	}
	for _, c := range cases {
		err := Name(c.name)
		if (err == nil) != c.ok {
			t.Errorf("Name(%q): err=%v, want ok=%v", c.name, err, c.ok)
		}
	}
}

func TestAvatar(t *testing.T) {
	if err := Avatar("🦊"); err != nil {
		t.Errorf("expected valid avatar, got %v", err)
	}
	if err := Avatar("not-an-emoji"); err == nil {
		t.Error("expected error for invalid avatar")
	}
}

func TestAnswerOption(t *testing.T) {
	if err := AnswerOption(model.OptionC); err != nil {
		t.Errorf("expected valid option, got %v", err)
	}
	if err := AnswerOption(model.Option("E")); err == nil {
		t.Error("expected error for invalid option")
	}
}

func TestSettingsValid(t *testing.T) {
	s := model.DefaultRoomSettings()
	if err := Settings(s); err != nil {
		t.Errorf("expected default settings to be valid, got %v", err)
	}
}

func TestSettingsCollectsAllViolations(t *testing.T) {
	s := model.RoomSettings{
		QuestionCount: 1,
		TimeLimit:     1000,
		Difficulty:    model.Difficulty("impossible"),
	}
	err := Settings(s)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "questionCount") || !strings.Contains(msg, "timeLimit") || !strings.Contains(msg, "difficulty") {
		t.Errorf("expected all three violations in message, got %q", msg)
	}
}

func TestJoinCollectsViolations(t *testing.T) {
	err := Join(JoinRequest{RoomCode: "bad", Name: "", Avatar: "nope"})
	if err == nil {
		t.Fatal("expected error")
	}
	errs, ok := err.(Errors)
	if !ok {
		t.Fatalf("expected Errors type, got %T", err)
	}
	if len(errs) != 3 {
		t.Errorf("expected 3 violations, got %d: %v", len(errs), errs)
	}
}

func TestJoinAllowsEmptyAvatar(t *testing.T) {
	err := Join(JoinRequest{RoomCode: "ABCD12", Name: "Alice", Avatar: ""})
	if err != nil {
		t.Errorf("expected no error when avatar omitted (server assigns it), got %v", err)
	}
}
