package services

import (
	"time"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
)

// AuditEntry records a structural mutation or reconciliation for staff
// review.
type AuditEntry struct {
	Time   time.Time
	Actor  string
	Action string
	Target string
	Note   string
}

// DraftStore is the persistence boundary of the draft editor and publisher.
type DraftStore interface {
	GetDraft(id string) (*models.Draft, error)
	PutDraft(d *models.Draft) error
	DeleteDraft(id string) error
	GetQuestionnaire(id string) (*models.Questionnaire, error)
	PutQuestionnaire(q *models.Questionnaire) error
	CountResponses(questionnaireID string) (int, error)
	AddAudit(entry AuditEntry)
}

// ResponseStore is the persistence boundary of the response tracker and the
// reconciler.
type ResponseStore interface {
	GetQuestionnaire(id string) (*models.Questionnaire, error)
	ListResponses(questionnaireID, userID string) ([]models.Response, error)
	PutResponse(r models.Response) error
	DeleteResponse(questionnaireID, userID string, position int) error
	GetFinalized(questionnaireID, userID string) (bool, error)
	SetFinalized(questionnaireID, userID string, finalized bool) error
	AddAudit(entry AuditEntry)
}

// QuestionnaireState is the derived (never stored) visibility snapshot for
// one user on one questionnaire. Position slices are sorted ascending.
type QuestionnaireState struct {
	Unlocked  []int `json:"unlocked"`
	Answered  []int `json:"answered"`
	Finalized bool  `json:"finalized"`
}

// Progress is the answered-vs-total counter pair shown next to a running
// questionnaire.
type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// ReconcileReport itemizes the fallout of editing an already-recorded
// answer: responses removed by cascading invalidation and positions that
// became answerable and still need an answer.
type ReconcileReport struct {
	Removed       []int `json:"removed"`
	NewlyUnlocked []int `json:"newly_unlocked"`
}

// SectionProgress aggregates completion and raw score per section label.
type SectionProgress struct {
	Section  string `json:"section"`
	Answered int    `json:"answered"`
	Total    int    `json:"total"`
	RawScore int    `json:"raw_score"`
}
