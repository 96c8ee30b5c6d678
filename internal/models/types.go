package models

import "time"

// QuestionType tags the answer widget and value shape of a question.
type QuestionType string

const (
	TypeSingleChoice QuestionType = "single_choice"
	TypeMultiChoice  QuestionType = "multi_choice"
	TypeDropdown     QuestionType = "dropdown"
	TypeBinary       QuestionType = "binary"
	TypeOpenText     QuestionType = "open_text"
	TypeNumber       QuestionType = "number"
	TypeDate         QuestionType = "date"
	// TypeProfileField is a structured sub-form (address, contacts,
	// medications) whose value is captured outside the engine.
	TypeProfileField QuestionType = "profile_field"
	TypeImage        QuestionType = "image"
	// Section-scored assessment types (SIS, skills matrix).
	TypeSIS          QuestionType = "sis"
	TypeSkillsMatrix QuestionType = "skills_matrix"
	// TypeMeta is computed from other answers and never answered directly.
	TypeMeta QuestionType = "meta"
)

// Fixed outcomes for binary questions. Rules gating on a binary source must
// use one of these two values.
const (
	BinaryYes = "Sí"
	BinaryNo  = "No"
)

// Valid reports whether t is a member of the fixed type tag set.
func (t QuestionType) Valid() bool {
	switch t {
	case TypeSingleChoice, TypeMultiChoice, TypeDropdown, TypeBinary,
		TypeOpenText, TypeNumber, TypeDate, TypeProfileField, TypeImage,
		TypeSIS, TypeSkillsMatrix, TypeMeta:
		return true
	}
	return false
}

// ChoiceLike reports whether questions of this type carry options and may
// act as the source of an unlock rule.
func (t QuestionType) ChoiceLike() bool {
	switch t {
	case TypeSingleChoice, TypeMultiChoice, TypeDropdown, TypeBinary:
		return true
	}
	return false
}

// Option is one selectable answer of a choice-like question.
type Option struct {
	Text  string `json:"text" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// Question is one entry in a questionnaire's ordered sequence. ID is empty
// until the questionnaire is published.
type Question struct {
	ID       string       `json:"id,omitempty"`
	Position int          `json:"position" validate:"min=0"`
	Text     string       `json:"text" validate:"required"`
	Type     QuestionType `json:"type" validate:"question_type"`
	Options  []Option     `json:"options,omitempty" validate:"dive"`
	Section  string       `json:"section" validate:"required"`
}

// OptionValues returns the value of every option in declaration order.
func (q Question) OptionValues() []string {
	out := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		out = append(out, o.Value)
	}
	return out
}

// HasOptionValue reports whether v is one of the question's option values.
func (q Question) HasOptionValue(v string) bool {
	for _, o := range q.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// UnlockRule is a directed, value-labeled edge: the target question becomes
// answerable once the source question is answered with RequiredValue.
// SourcePosition < TargetPosition always holds.
type UnlockRule struct {
	SourcePosition int    `json:"source_position" validate:"min=0"`
	RequiredValue  string `json:"required_value" validate:"required"`
	TargetPosition int    `json:"target_position" validate:"min=0"`
}

// Draft is an in-progress, not-yet-published questionnaire structure,
// mutable via insert/delete/swap/retype.
type Draft struct {
	QuestionnaireID string       `json:"questionnaire_id"`
	Name            string       `json:"name,omitempty"`
	Questions       []Question   `json:"questions"`
	Rules           []UnlockRule `json:"rules"`
}

// Questionnaire is a published definition consumed at answer time. Editing
// is only possible through the reopen/reconcile path once responses exist.
type Questionnaire struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	Questions []Question   `json:"questions"`
	Rules     []UnlockRule `json:"rules"`
	Editing   bool         `json:"editing,omitempty"`
}

// Response is the current answer of one user to one question. Values holds
// the selection list for multi-choice questions; Value covers every other
// type. A new submission for the same (user, questionnaire, position)
// supersedes the prior one.
type Response struct {
	UserID          string    `json:"user_id"`
	QuestionnaireID string    `json:"questionnaire_id"`
	Position        int       `json:"position"`
	QuestionID      string    `json:"question_id,omitempty"`
	Value           string    `json:"value,omitempty"`
	Values          []string  `json:"values,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// Matches reports whether the recorded answer satisfies required. For
// multi-choice answers the required value must be among the selections.
func (r Response) Matches(required string) bool {
	if r.Value != "" && r.Value == required {
		return true
	}
	for _, v := range r.Values {
		if v == required {
			return true
		}
	}
	return false
}

// Empty reports whether the response carries no answer at all.
func (r Response) Empty() bool {
	return r.Value == "" && len(r.Values) == 0
}

// ImportUnlockRef is the gating cell of an import row: "unlocked by row
// SourceRow answering with OptionText".
type ImportUnlockRef struct {
	SourceRow  int    `json:"source_row"`
	OptionText string `json:"option_text"`
}

// ImportRow is one row of a bulk-import table. Row extraction from real
// spreadsheet files is the caller's concern; the engine consumes rows.
type ImportRow struct {
	Text    string            `json:"text"`
	Section string            `json:"section"`
	Type    QuestionType      `json:"type"`
	Options []string          `json:"options,omitempty"`
	Unlock  []ImportUnlockRef `json:"unlock,omitempty"`
}
