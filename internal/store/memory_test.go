package store

import (
	"testing"
	"time"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
	"github.com/ConfeDigital/ConfeApp-sub003/internal/services"
)

func TestDraftCopySemantics(t *testing.T) {
	s := NewMemoryStore()
	d := &models.Draft{
		QuestionnaireID: "Q1",
		Questions: []models.Question{{
			Position: 0, Text: "A", Type: models.TypeSingleChoice, Section: "s",
			Options: []models.Option{{Text: "x", Value: "x"}},
		}},
	}
	if err := s.PutDraft(d); err != nil {
		t.Fatalf("PutDraft returned error: %v", err)
	}
	// Mutating the caller's copy must not leak into the store.
	d.Questions[0].Text = "mutated"
	d.Questions[0].Options[0].Value = "mutated"

	got, err := s.GetDraft("Q1")
	if err != nil {
		t.Fatalf("GetDraft returned error: %v", err)
	}
	if got.Questions[0].Text != "A" || got.Questions[0].Options[0].Value != "x" {
		t.Fatalf("store shares memory with caller: %+v", got.Questions[0])
	}

	// And mutating what Get returned must not change the stored draft.
	got.Questions[0].Text = "mutated again"
	again, _ := s.GetDraft("Q1")
	if again.Questions[0].Text != "A" {
		t.Fatalf("GetDraft returned shared memory")
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := NewMemoryStore()
	if d, err := s.GetDraft("none"); err != nil || d != nil {
		t.Fatalf("GetDraft = (%v, %v), want (nil, nil)", d, err)
	}
	if q, err := s.GetQuestionnaire("none"); err != nil || q != nil {
		t.Fatalf("GetQuestionnaire = (%v, %v), want (nil, nil)", q, err)
	}
}

func TestResponseUpsertAndCount(t *testing.T) {
	s := NewMemoryStore()
	r := models.Response{QuestionnaireID: "Q1", UserID: "U1", Position: 0, Value: "a", RecordedAt: time.Unix(1, 0)}
	if err := s.PutResponse(r); err != nil {
		t.Fatalf("PutResponse returned error: %v", err)
	}
	r.Value = "b"
	r.RecordedAt = time.Unix(2, 0)
	if err := s.PutResponse(r); err != nil {
		t.Fatalf("PutResponse returned error: %v", err)
	}

	list, err := s.ListResponses("Q1", "U1")
	if err != nil {
		t.Fatalf("ListResponses returned error: %v", err)
	}
	if len(list) != 1 || list[0].Value != "b" {
		t.Fatalf("responses = %+v, want single superseded value b", list)
	}

	other := models.Response{QuestionnaireID: "Q1", UserID: "U2", Position: 3, Value: "c", RecordedAt: time.Unix(3, 0)}
	if err := s.PutResponse(other); err != nil {
		t.Fatalf("PutResponse returned error: %v", err)
	}
	if n, _ := s.CountResponses("Q1"); n != 2 {
		t.Fatalf("count = %d, want 2 across users", n)
	}

	if err := s.DeleteResponse("Q1", "U1", 0); err != nil {
		t.Fatalf("DeleteResponse returned error: %v", err)
	}
	if n, _ := s.CountResponses("Q1"); n != 1 {
		t.Fatalf("count = %d, want 1 after delete", n)
	}
}

func TestFinalizedFlagAndAudit(t *testing.T) {
	s := NewMemoryStore()
	if f, _ := s.GetFinalized("Q1", "U1"); f {
		t.Fatalf("unset finalized flag reads true")
	}
	if err := s.SetFinalized("Q1", "U1", true); err != nil {
		t.Fatalf("SetFinalized returned error: %v", err)
	}
	if f, _ := s.GetFinalized("Q1", "U1"); !f {
		t.Fatalf("finalized flag not persisted")
	}

	s.AddAudit(services.AuditEntry{Actor: "staff@confe", Action: "finalize", Target: "Q1"})
	if entries := s.Audit(); len(entries) != 1 || entries[0].Action != "finalize" {
		t.Fatalf("audit = %+v", entries)
	}
}
