package services

import (
	"sort"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
)

// UnlockedPositions computes the set of currently answerable positions. A
// question with no incoming rule is a root and always unlocked; a gated
// question is unlocked when at least one incoming rule has its source both
// unlocked and answered with the required value (OR across rules). Because
// every rule points forward, one sweep in position order suffices.
//
// Requiring the source to be unlocked, not merely answered, keeps a stale
// response on a locked question from firing rules transitively.
func UnlockedPositions(questions []models.Question, rules []models.UnlockRule, responses map[int]models.Response) map[int]struct{} {
	incoming := make(map[int][]models.UnlockRule, len(rules))
	for _, r := range rules {
		incoming[r.TargetPosition] = append(incoming[r.TargetPosition], r)
	}

	order := make([]int, 0, len(questions))
	for _, q := range questions {
		order = append(order, q.Position)
	}
	sort.Ints(order)

	unlocked := make(map[int]struct{}, len(questions))
	for _, pos := range order {
		in := incoming[pos]
		if len(in) == 0 {
			unlocked[pos] = struct{}{}
			continue
		}
		for _, r := range in {
			if _, ok := unlocked[r.SourcePosition]; !ok {
				continue
			}
			resp, ok := responses[r.SourcePosition]
			if ok && resp.Matches(r.RequiredValue) {
				unlocked[pos] = struct{}{}
				break
			}
		}
	}
	return unlocked
}

// AnsweredPositions is the subset of unlocked positions that carry a
// non-empty response.
func AnsweredPositions(unlocked map[int]struct{}, responses map[int]models.Response) map[int]struct{} {
	answered := make(map[int]struct{}, len(responses))
	for pos := range unlocked {
		if resp, ok := responses[pos]; ok && !resp.Empty() {
			answered[pos] = struct{}{}
		}
	}
	return answered
}

// ResponsesByPosition indexes a user's responses by question position,
// keeping only the latest entry for a position should the store ever hand
// back duplicates.
func ResponsesByPosition(responses []models.Response) map[int]models.Response {
	out := make(map[int]models.Response, len(responses))
	for _, r := range responses {
		prev, ok := out[r.Position]
		if !ok || r.RecordedAt.After(prev.RecordedAt) {
			out[r.Position] = r
		}
	}
	return out
}

// SortedPositions renders a position set as an ascending slice.
func SortedPositions(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
