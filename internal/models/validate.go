package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("question_type", validateQuestionType); err != nil {
		panic(err)
	}
}

func validateQuestionType(fl validator.FieldLevel) bool {
	return QuestionType(fl.Field().String()).Valid()
}

// ValidateStruct runs the tag-level validations for any model struct.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// BinaryOptions is the fixed option pair every binary question carries.
func BinaryOptions() []Option {
	return []Option{
		{Text: BinaryYes, Value: BinaryYes},
		{Text: BinaryNo, Value: BinaryNo},
	}
}

// NewQuestion builds a validated question. Choice-like types must carry at
// least one option; binary questions are normalized to the fixed Sí/No pair
// regardless of the options passed in; non-choice types must not carry any.
func NewQuestion(position int, text string, qt QuestionType, section string, options []Option) (Question, error) {
	q := Question{
		Position: position,
		Text:     strings.TrimSpace(text),
		Type:     qt,
		Section:  strings.TrimSpace(section),
		Options:  options,
	}
	if qt == TypeBinary {
		q.Options = BinaryOptions()
	}
	if err := ValidateStruct(q); err != nil {
		return Question{}, err
	}
	if qt.ChoiceLike() && len(q.Options) == 0 {
		return Question{}, fmt.Errorf("question %q: type %s requires options", q.Text, qt)
	}
	if !qt.ChoiceLike() && len(q.Options) > 0 {
		return Question{}, fmt.Errorf("question %q: type %s does not take options", q.Text, qt)
	}
	return q, nil
}

// NewUnlockRule builds a validated rule against the source question it
// references. Binary sources only accept the two fixed outcomes; an
// arbitrary third value is a validation failure, not a silent coercion.
func NewUnlockRule(source Question, requiredValue string, targetPosition int) (UnlockRule, error) {
	r := UnlockRule{
		SourcePosition: source.Position,
		RequiredValue:  requiredValue,
		TargetPosition: targetPosition,
	}
	if err := ValidateStruct(r); err != nil {
		return UnlockRule{}, err
	}
	if r.SourcePosition >= r.TargetPosition {
		return UnlockRule{}, fmt.Errorf("rule %d->%d: source must precede target", r.SourcePosition, r.TargetPosition)
	}
	if !source.Type.ChoiceLike() {
		return UnlockRule{}, fmt.Errorf("rule %d->%d: source type %s cannot gate", r.SourcePosition, r.TargetPosition, source.Type)
	}
	if !source.HasOptionValue(requiredValue) {
		return UnlockRule{}, fmt.Errorf("rule %d->%d: value %q is not an option of the source", r.SourcePosition, r.TargetPosition, requiredValue)
	}
	return r, nil
}

// CheckDraft verifies the two structural invariants of a questionnaire
// draft: positions form exactly [0, N) and every rule references existing
// questions with source strictly before target and a required value drawn
// from the source's options.
func CheckDraft(questions []Question, rules []UnlockRule) error {
	n := len(questions)
	seen := make(map[int]bool, n)
	for _, q := range questions {
		if q.Position < 0 || q.Position >= n {
			return fmt.Errorf("position %d out of range [0,%d)", q.Position, n)
		}
		if seen[q.Position] {
			return fmt.Errorf("duplicate position %d", q.Position)
		}
		seen[q.Position] = true
	}
	byPos := make(map[int]Question, n)
	for _, q := range questions {
		byPos[q.Position] = q
	}
	for _, r := range rules {
		src, ok := byPos[r.SourcePosition]
		if !ok {
			return fmt.Errorf("rule %d->%d: dangling source", r.SourcePosition, r.TargetPosition)
		}
		if _, ok := byPos[r.TargetPosition]; !ok {
			return fmt.Errorf("rule %d->%d: dangling target", r.SourcePosition, r.TargetPosition)
		}
		if r.SourcePosition >= r.TargetPosition {
			return fmt.Errorf("rule %d->%d: source must precede target", r.SourcePosition, r.TargetPosition)
		}
		if !src.HasOptionValue(r.RequiredValue) {
			return fmt.Errorf("rule %d->%d: value %q is not an option of the source", r.SourcePosition, r.TargetPosition, r.RequiredValue)
		}
	}
	return nil
}

// ErrNoQuestions flags a definition without a single question.
var ErrNoQuestions = errors.New("questionnaire has no questions")
