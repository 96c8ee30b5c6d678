package services

import (
	"sort"
	"strconv"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
)

// SectionProgressFor aggregates per-section completion and, for
// section-scored assessment types (SIS, skills matrix) and plain numeric
// questions, the raw score sum of the recorded answers. Only unlocked
// questions count toward a section's totals; sections whose questions are
// all locked are omitted.
func SectionProgressFor(q *models.Questionnaire, responses map[int]models.Response) []SectionProgress {
	unlocked := UnlockedPositions(q.Questions, q.Rules, responses)

	bySection := map[string]*SectionProgress{}
	order := []string{}
	questions := append([]models.Question(nil), q.Questions...)
	sort.Slice(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })

	for _, question := range questions {
		if _, ok := unlocked[question.Position]; !ok {
			continue
		}
		sp, ok := bySection[question.Section]
		if !ok {
			sp = &SectionProgress{Section: question.Section}
			bySection[question.Section] = sp
			order = append(order, question.Section)
		}
		sp.Total++
		resp, answered := responses[question.Position]
		if !answered || resp.Empty() {
			continue
		}
		sp.Answered++
		switch question.Type {
		case models.TypeSIS, models.TypeSkillsMatrix, models.TypeNumber:
			if n, err := strconv.Atoi(resp.Value); err == nil {
				sp.RawScore += n
			}
		}
	}

	out := make([]SectionProgress, 0, len(order))
	for _, section := range order {
		out = append(out, *bySection[section])
	}
	return out
}
