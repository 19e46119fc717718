// Package validate implements Validator (spec §4.5): schema checks for
// inbound event payloads, run before any state mutation. Grounded on the
// teacher's internal/handlers middleware validation style — collect every
// violation and return them together rather than failing on the first.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"treacherest/internal/avatar"
	"treacherest/internal/model"
)

var (
	roomCodeRe = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	nameRe     = regexp.MustCompile(`^[A-Za-z0-9 ]{1,20}$`)
)

const (
	MinQuestionCount = 5
	MaxQuestionCount = 30
	MinTimeLimit     = 5
	MaxTimeLimit     = 60
)

// Errors is a collection of validation failures. It implements error by
// joining each message with "; ", matching spec §4.5's "concatenated
// message of all violations".
type Errors []string

func (e Errors) Error() string {
	return strings.Join(e, "; ")
}

// Empty reports whether no violations were recorded.
func (e Errors) Empty() bool { return len(e) == 0 }

func newErrors() Errors { return make(Errors, 0, 4) }

// RoomCode checks a 6-character, uppercase alphanumeric room code. Note
// this is intentionally broader than roomcode.Alphabet (which excludes
// visually ambiguous characters on issue) — inbound codes are matched
// against what the player typed, not re-validated against the issuing
// alphabet.
func RoomCode(code string) error {
	if !roomCodeRe.MatchString(code) {
		return fmt.Errorf("room code must be exactly 6 characters from [A-Z0-9], got %q", code)
	}
	return nil
}

// Name checks a player display name.
func Name(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("name must be 1-20 characters of letters, digits, and spaces, got %q", name)
	}
	return nil
}

// Avatar checks membership in the fixed emoji set.
func Avatar(a string) error {
	if !avatar.Valid(a) {
		return fmt.Errorf("avatar %q is not a recognized avatar", a)
	}
	return nil
}

// AnswerOption checks membership in {A, B, C, D}.
func AnswerOption(o model.Option) error {
	if !model.ValidOption(o) {
		return fmt.Errorf("answer must be one of A, B, C, D, got %q", o)
	}
	return nil
}

// Settings checks questionCount, timeLimit, and difficulty bounds, per
// spec §4.5. Zero-value fields (unset in a partial update) are skipped by
// the caller before invoking this, so Settings always validates a
// complete, merged settings value.
func Settings(s model.RoomSettings) error {
	errs := newErrors()
	if s.QuestionCount < MinQuestionCount || s.QuestionCount > MaxQuestionCount {
		errs = append(errs, fmt.Sprintf("questionCount must be between %d and %d, got %d", MinQuestionCount, MaxQuestionCount, s.QuestionCount))
	}
	if s.TimeLimit < MinTimeLimit || s.TimeLimit > MaxTimeLimit {
		errs = append(errs, fmt.Sprintf("timeLimit must be between %d and %d, got %d", MinTimeLimit, MaxTimeLimit, s.TimeLimit))
	}
	switch s.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard, model.DifficultyMixed:
	default:
		errs = append(errs, fmt.Sprintf("difficulty %q is not a recognized difficulty", s.Difficulty))
	}
	if errs.Empty() {
		return nil
	}
	return errs
}

// JoinRequest bundles the fields validated together for RoomManager's
// joinRoom/rejoinRoom operations.
type JoinRequest struct {
	RoomCode string
	Name     string
	Avatar   string
}

// Join validates a join/rejoin request, collecting every violation.
func Join(req JoinRequest) error {
	errs := newErrors()
	if err := RoomCode(req.RoomCode); err != nil {
		errs = append(errs, err.Error())
	}
	if err := Name(req.Name); err != nil {
		errs = append(errs, err.Error())
	}
	if req.Avatar != "" {
		if err := Avatar(req.Avatar); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if errs.Empty() {
		return nil
	}
	return errs
}
