package services

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
)

// ResponseService tracks per-user answers and the derived visibility state.
// Every mutation recomputes the full state from scratch; questionnaires are
// tens of questions, never thousands, so correctness wins over incremental
// bookkeeping.
type ResponseService struct {
	store ResponseStore
	log   *zap.Logger
	now   func() time.Time
}

func NewResponseService(store ResponseStore, logger *zap.Logger) *ResponseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseService{
		store: store,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Record upserts the answer for one position and returns the re-derived
// state. The position must be currently unlocked and the value must fit the
// question type. Storing and recomputing happen before the caller sees
// anything, so no intermediate state is observable.
func (s *ResponseService) Record(questionnaireID, userID string, position int, value string, values []string) (*QuestionnaireState, error) {
	q, err := s.questionnaire(questionnaireID)
	if err != nil {
		return nil, err
	}
	finalized, err := s.store.GetFinalized(questionnaireID, userID)
	if err != nil {
		return nil, err
	}
	if finalized && !q.Editing {
		return nil, NewConflictError("questionnaire is finalized; reopen it for edits")
	}
	question, ok := questionAt(q, position)
	if !ok {
		return nil, NewInvalidError("position " + strconv.Itoa(position) + " does not exist")
	}
	if err := checkValue(question, value, values); err != nil {
		return nil, err
	}

	responses, err := s.responsesByPosition(questionnaireID, userID)
	if err != nil {
		return nil, err
	}
	unlocked := UnlockedPositions(q.Questions, q.Rules, responses)
	if _, ok := unlocked[position]; !ok {
		return nil, NewConflictError("position " + strconv.Itoa(position) + " is locked")
	}

	resp := models.Response{
		UserID:          userID,
		QuestionnaireID: questionnaireID,
		Position:        position,
		QuestionID:      question.ID,
		Value:           value,
		Values:          append([]string(nil), values...),
		RecordedAt:      s.now(),
	}
	if err := s.store.PutResponse(resp); err != nil {
		return nil, err
	}
	s.log.Debug("response recorded",
		zap.String("questionnaire", questionnaireID),
		zap.String("user", userID),
		zap.Int("position", position))
	return s.State(questionnaireID, userID)
}

// Clear removes the answer at position and returns the re-derived state.
// Downstream answers that depended on the removed value stay stored but
// locked; cascading removal is the reconciler's job.
func (s *ResponseService) Clear(questionnaireID, userID string, position int) (*QuestionnaireState, error) {
	if _, err := s.questionnaire(questionnaireID); err != nil {
		return nil, err
	}
	if err := s.store.DeleteResponse(questionnaireID, userID, position); err != nil {
		return nil, err
	}
	return s.State(questionnaireID, userID)
}

// State derives the current visibility snapshot for one user.
func (s *ResponseService) State(questionnaireID, userID string) (*QuestionnaireState, error) {
	q, err := s.questionnaire(questionnaireID)
	if err != nil {
		return nil, err
	}
	responses, err := s.responsesByPosition(questionnaireID, userID)
	if err != nil {
		return nil, err
	}
	finalized, err := s.store.GetFinalized(questionnaireID, userID)
	if err != nil {
		return nil, err
	}
	unlocked := UnlockedPositions(q.Questions, q.Rules, responses)
	answered := AnsweredPositions(unlocked, responses)
	return &QuestionnaireState{
		Unlocked:  SortedPositions(unlocked),
		Answered:  SortedPositions(answered),
		Finalized: finalized,
	}, nil
}

// Progress returns the answered-vs-total counters over the unlocked set.
func (s *ResponseService) Progress(questionnaireID, userID string) (Progress, error) {
	st, err := s.State(questionnaireID, userID)
	if err != nil {
		return Progress{}, err
	}
	return Progress{Answered: len(st.Answered), Total: len(st.Unlocked)}, nil
}

// Finalize marks the questionnaire complete for the user once every
// unlocked question has an answer.
func (s *ResponseService) Finalize(questionnaireID, userID string) (*QuestionnaireState, error) {
	st, err := s.State(questionnaireID, userID)
	if err != nil {
		return nil, err
	}
	if st.Finalized {
		return nil, NewConflictError("already finalized")
	}
	if len(st.Answered) != len(st.Unlocked) {
		return nil, NewInvalidError("cannot finalize: " + strconv.Itoa(len(st.Unlocked)-len(st.Answered)) + " unlocked questions unanswered")
	}
	if err := s.store.SetFinalized(questionnaireID, userID, true); err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: userID, Action: "finalize", Target: questionnaireID})
	st.Finalized = true
	return st, nil
}

func (s *ResponseService) questionnaire(id string) (*models.Questionnaire, error) {
	q, err := s.store.GetQuestionnaire(id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, NewNotFoundError("questionnaire not found")
	}
	return q, nil
}

func (s *ResponseService) responsesByPosition(questionnaireID, userID string) (map[int]models.Response, error) {
	list, err := s.store.ListResponses(questionnaireID, userID)
	if err != nil {
		return nil, err
	}
	return ResponsesByPosition(list), nil
}

func questionAt(q *models.Questionnaire, position int) (models.Question, bool) {
	for _, question := range q.Questions {
		if question.Position == position {
			return question, true
		}
	}
	return models.Question{}, false
}

// checkValue verifies that the submitted value fits the question type.
func checkValue(q models.Question, value string, values []string) error {
	switch q.Type {
	case models.TypeMeta:
		return NewInvalidError("computed questions are not answered directly")
	case models.TypeMultiChoice:
		if value != "" || len(values) == 0 {
			return NewInvalidError("multi-choice answers use the value list")
		}
		for _, v := range values {
			if !q.HasOptionValue(v) {
				return NewInvalidError("value " + strconv.Quote(v) + " is not an option")
			}
		}
	case models.TypeSingleChoice, models.TypeDropdown, models.TypeBinary:
		if len(values) != 0 || value == "" {
			return NewInvalidError("choice answers use a single value")
		}
		if !q.HasOptionValue(value) {
			return NewInvalidError("value " + strconv.Quote(value) + " is not an option")
		}
	case models.TypeNumber, models.TypeSIS, models.TypeSkillsMatrix:
		if len(values) != 0 || value == "" {
			return NewInvalidError("numeric answers use a single value")
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return NewInvalidError("value " + strconv.Quote(value) + " is not numeric")
		}
	case models.TypeDate:
		if len(values) != 0 || value == "" {
			return NewInvalidError("date answers use a single value")
		}
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return NewInvalidError("value " + strconv.Quote(value) + " is not an ISO date")
		}
	default:
		if value == "" && len(values) == 0 {
			return NewInvalidError("empty answer")
		}
	}
	return nil
}
