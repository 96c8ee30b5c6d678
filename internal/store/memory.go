package store

import (
	"sync"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
	"github.com/ConfeDigital/ConfeApp-sub003/internal/services"
)

// MemoryStore is the in-memory persistence used by the engine. It satisfies
// both services.DraftStore and services.ResponseStore. Values are copied on
// the way in and out so callers never share memory with the store.
type MemoryStore struct {
	mu             sync.RWMutex
	drafts         map[string]*models.Draft
	questionnaires map[string]*models.Questionnaire
	// questionnaire -> user -> position -> current response
	responses map[string]map[string]map[int]models.Response
	finalized map[string]map[string]bool
	audit     []services.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafts:         map[string]*models.Draft{},
		questionnaires: map[string]*models.Questionnaire{},
		responses:      map[string]map[string]map[int]models.Response{},
		finalized:      map[string]map[string]bool{},
	}
}

func (s *MemoryStore) GetDraft(id string) (*models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, nil
	}
	return copyDraft(d), nil
}

func (s *MemoryStore) PutDraft(d *models.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.QuestionnaireID] = copyDraft(d)
	return nil
}

func (s *MemoryStore) DeleteDraft(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, id)
	return nil
}

func (s *MemoryStore) GetQuestionnaire(id string) (*models.Questionnaire, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questionnaires[id]
	if !ok {
		return nil, nil
	}
	return copyQuestionnaire(q), nil
}

func (s *MemoryStore) PutQuestionnaire(q *models.Questionnaire) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questionnaires[q.ID] = copyQuestionnaire(q)
	return nil
}

func (s *MemoryStore) ListResponses(questionnaireID, userID string) ([]models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byUser := s.responses[questionnaireID]
	out := []models.Response{}
	for _, r := range byUser[userID] {
		out = append(out, copyResponse(r))
	}
	return out, nil
}

func (s *MemoryStore) PutResponse(r models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.responses[r.QuestionnaireID]
	if !ok {
		byUser = map[string]map[int]models.Response{}
		s.responses[r.QuestionnaireID] = byUser
	}
	byPos, ok := byUser[r.UserID]
	if !ok {
		byPos = map[int]models.Response{}
		byUser[r.UserID] = byPos
	}
	byPos[r.Position] = copyResponse(r)
	return nil
}

func (s *MemoryStore) DeleteResponse(questionnaireID, userID string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byUser, ok := s.responses[questionnaireID]; ok {
		delete(byUser[userID], position)
	}
	return nil
}

func (s *MemoryStore) CountResponses(questionnaireID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, byPos := range s.responses[questionnaireID] {
		n += len(byPos)
	}
	return n, nil
}

func (s *MemoryStore) GetFinalized(questionnaireID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized[questionnaireID][userID], nil
}

func (s *MemoryStore) SetFinalized(questionnaireID, userID string, finalized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.finalized[questionnaireID]
	if !ok {
		byUser = map[string]bool{}
		s.finalized[questionnaireID] = byUser
	}
	byUser[userID] = finalized
	return nil
}

func (s *MemoryStore) AddAudit(entry services.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
}

// Audit returns a copy of the audit trail, oldest first.
func (s *MemoryStore) Audit() []services.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]services.AuditEntry(nil), s.audit...)
}

func copyDraft(d *models.Draft) *models.Draft {
	out := *d
	out.Questions = copyQuestions(d.Questions)
	out.Rules = append([]models.UnlockRule(nil), d.Rules...)
	return &out
}

func copyQuestionnaire(q *models.Questionnaire) *models.Questionnaire {
	out := *q
	out.Questions = copyQuestions(q.Questions)
	out.Rules = append([]models.UnlockRule(nil), q.Rules...)
	return &out
}

func copyQuestions(qs []models.Question) []models.Question {
	out := append([]models.Question(nil), qs...)
	for i := range out {
		out[i].Options = append([]models.Option(nil), out[i].Options...)
	}
	return out
}

func copyResponse(r models.Response) models.Response {
	r.Values = append([]string(nil), r.Values...)
	return r
}
