package models

import (
	"sort"

	"github.com/goccy/go-json"
)

// EncodeDefinition renders a questionnaire definition to its JSON data
// contract. Questions are emitted in position order and rules sorted by
// (target, source, value) so two structurally identical definitions encode
// byte-identically.
func EncodeDefinition(q *Questionnaire) ([]byte, error) {
	out := Questionnaire{
		ID:        q.ID,
		Name:      q.Name,
		Questions: append([]Question(nil), q.Questions...),
		Rules:     append([]UnlockRule(nil), q.Rules...),
		Editing:   q.Editing,
	}
	sort.Slice(out.Questions, func(i, j int) bool { return out.Questions[i].Position < out.Questions[j].Position })
	SortRules(out.Rules)
	return json.Marshal(&out)
}

// ParseDefinition decodes a questionnaire definition and re-checks the
// structural invariants before handing it to callers.
func ParseDefinition(data []byte) (*Questionnaire, error) {
	var q Questionnaire
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	if len(q.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if err := CheckDraft(q.Questions, q.Rules); err != nil {
		return nil, err
	}
	sort.Slice(q.Questions, func(i, j int) bool { return q.Questions[i].Position < q.Questions[j].Position })
	SortRules(q.Rules)
	return &q, nil
}

// SortRules orders rules by target, then source, then required value.
func SortRules(rules []UnlockRule) {
	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.TargetPosition != b.TargetPosition {
			return a.TargetPosition < b.TargetPosition
		}
		if a.SourcePosition != b.SourcePosition {
			return a.SourcePosition < b.SourcePosition
		}
		return a.RequiredValue < b.RequiredValue
	})
}
