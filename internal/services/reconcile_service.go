package services

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
)

// ReconcileService applies retroactive answer edits. When a recorded answer
// changes, every response that was only reachable through the old value is
// invalidated, cascading downstream until the unlocked set stabilizes. The
// fallout is returned as an itemized report; staff must never find answers
// silently gone.
type ReconcileService struct {
	store ResponseStore
	log   *zap.Logger
	now   func() time.Time
}

func NewReconcileService(store ResponseStore, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		store: store,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ApplyAnswerEdit replaces the answer at position and cascades. A finalized
// questionnaire accepts edits only in edit mode. Invalidation always runs to
// completion, even if a removed answer already fed an external report;
// regenerating downstream artifacts is the caller's concern.
func (s *ReconcileService) ApplyAnswerEdit(questionnaireID, userID string, position int, value string, values []string) (*ReconcileReport, error) {
	q, err := s.editableQuestionnaire(questionnaireID, userID)
	if err != nil {
		return nil, err
	}
	question, ok := questionAt(q, position)
	if !ok {
		return nil, NewInvalidError("position " + strconv.Itoa(position) + " does not exist")
	}
	if err := checkValue(question, value, values); err != nil {
		return nil, err
	}

	responses, err := s.store.ListResponses(questionnaireID, userID)
	if err != nil {
		return nil, err
	}
	byPos := ResponsesByPosition(responses)
	before := UnlockedPositions(q.Questions, q.Rules, byPos)
	if _, ok := before[position]; !ok {
		return nil, NewConflictError("position " + strconv.Itoa(position) + " is locked")
	}

	edited := models.Response{
		UserID:          userID,
		QuestionnaireID: questionnaireID,
		Position:        position,
		QuestionID:      question.ID,
		Value:           value,
		Values:          append([]string(nil), values...),
		RecordedAt:      s.now(),
	}
	if err := s.store.PutResponse(edited); err != nil {
		return nil, err
	}
	byPos[position] = edited

	return s.cascade(q, userID, position, byPos, before)
}

// ClearAnswer removes the answer at position and cascades exactly like an
// edit; a removal can only ever shrink the unlocked set.
func (s *ReconcileService) ClearAnswer(questionnaireID, userID string, position int) (*ReconcileReport, error) {
	q, err := s.editableQuestionnaire(questionnaireID, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := questionAt(q, position); !ok {
		return nil, NewInvalidError("position " + strconv.Itoa(position) + " does not exist")
	}

	responses, err := s.store.ListResponses(questionnaireID, userID)
	if err != nil {
		return nil, err
	}
	byPos := ResponsesByPosition(responses)
	before := UnlockedPositions(q.Questions, q.Rules, byPos)

	if err := s.store.DeleteResponse(questionnaireID, userID, position); err != nil {
		return nil, err
	}
	delete(byPos, position)

	return s.cascade(q, userID, position, byPos, before)
}

// cascade removes every stored response whose unlocking condition no longer
// holds, repeating until a fixed point; with N questions the loop is bounded
// by N iterations. Positions unlocked now but not before are surfaced for
// the caller to prompt, never auto-populated.
func (s *ReconcileService) cascade(q *models.Questionnaire, userID string, editedPos int, byPos map[int]models.Response, before map[int]struct{}) (*ReconcileReport, error) {
	removed := map[int]struct{}{}
	after := UnlockedPositions(q.Questions, q.Rules, byPos)
	for range q.Questions {
		changed := false
		for pos := range byPos {
			if pos == editedPos {
				continue
			}
			if _, ok := after[pos]; ok {
				continue
			}
			if err := s.store.DeleteResponse(q.ID, userID, pos); err != nil {
				return nil, err
			}
			delete(byPos, pos)
			removed[pos] = struct{}{}
			changed = true
		}
		if !changed {
			break
		}
		after = UnlockedPositions(q.Questions, q.Rules, byPos)
	}

	newly := map[int]struct{}{}
	for pos := range after {
		if _, ok := before[pos]; !ok {
			newly[pos] = struct{}{}
		}
	}
	report := &ReconcileReport{
		Removed:       SortedPositions(removed),
		NewlyUnlocked: SortedPositions(newly),
	}

	if len(report.Removed) > 0 || len(report.NewlyUnlocked) > 0 {
		s.store.AddAudit(AuditEntry{
			Time:   s.now(),
			Actor:  userID,
			Action: "reconcile",
			Target: q.ID,
			Note:   "removed=" + strconv.Itoa(len(report.Removed)) + " newly_unlocked=" + strconv.Itoa(len(report.NewlyUnlocked)),
		})
	}
	s.log.Info("answer edit reconciled",
		zap.String("questionnaire", q.ID),
		zap.String("user", userID),
		zap.Int("position", editedPos),
		zap.Ints("removed", report.Removed),
		zap.Ints("newly_unlocked", report.NewlyUnlocked))
	return report, nil
}

func (s *ReconcileService) editableQuestionnaire(questionnaireID, userID string) (*models.Questionnaire, error) {
	q, err := s.store.GetQuestionnaire(questionnaireID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, NewNotFoundError("questionnaire not found")
	}
	finalized, err := s.store.GetFinalized(questionnaireID, userID)
	if err != nil {
		return nil, err
	}
	if finalized && !q.Editing {
		return nil, NewConflictError("questionnaire is finalized; reopen it for edits")
	}
	return q, nil
}
