//go:build integration

package integration_test

import (
	"reflect"
	"testing"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/logging"
	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
	"github.com/ConfeDigital/ConfeApp-sub003/internal/services"
	"github.com/ConfeDigital/ConfeApp-sub003/internal/store"
)

// TestQuestionnaireLifecycle drives the whole engine against the shared
// in-memory store: bulk import, structural editing, publish, answering,
// finalize, reopen and reconcile, then a definition export round trip.
func TestQuestionnaireLifecycle(t *testing.T) {
	log := logging.New()
	st := store.NewMemoryStore()
	drafts := services.NewDraftService(st, log)
	importer := services.NewImportService(st, log)
	tracker := services.NewResponseService(st, log)
	reconciler := services.NewReconcileService(st, log)

	rows := []models.ImportRow{
		{Text: "¿Tiene discapacidad?", Section: "Diagnóstico", Type: models.TypeBinary},
		{Text: "Describa el diagnóstico", Section: "Diagnóstico", Type: models.TypeOpenText,
			Unlock: []models.ImportUnlockRef{{SourceRow: 0, OptionText: "Sí"}}},
		{Text: "¿Cuenta con certificado?", Section: "Diagnóstico", Type: models.TypeBinary,
			Unlock: []models.ImportUnlockRef{{SourceRow: 0, OptionText: "Sí"}}},
		{Text: "Número de certificado", Section: "Diagnóstico", Type: models.TypeOpenText,
			Unlock: []models.ImportUnlockRef{{SourceRow: 2, OptionText: "Sí"}}},
	}
	draft, errs, warns := importer.BuildDraft("ENTREVISTA", "Entrevista inicial", rows)
	if len(errs) != 0 || len(warns) != 0 {
		t.Fatalf("import: errs=%v warns=%v", errs, warns)
	}
	if err := importer.Accept(draft, errs, "staff@confe"); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}

	// Structural edit before publishing: add a closing question.
	if _, err := drafts.InsertQuestion("ENTREVISTA", 4, models.Question{
		Text: "Comentarios finales", Type: models.TypeOpenText, Section: "Cierre",
	}); err != nil {
		t.Fatalf("InsertQuestion returned error: %v", err)
	}

	published, err := drafts.Publish("ENTREVISTA", "staff@confe")
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(published.Questions) != 5 {
		t.Fatalf("published questions = %d, want 5", len(published.Questions))
	}

	// The draft is gone after publishing; structure is frozen.
	if _, err := drafts.GetDraft("ENTREVISTA"); err == nil {
		t.Fatalf("draft still present after publish")
	}

	if _, err := tracker.Record("ENTREVISTA", "cand-1", 0, models.BinaryYes, nil); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	answers := []struct {
		pos   int
		value string
	}{
		{1, "Discapacidad intelectual"},
		{2, models.BinaryYes},
		{3, "CERT-0042"},
		{4, "Sin comentarios"},
	}
	for _, a := range answers {
		if _, err := tracker.Record("ENTREVISTA", "cand-1", a.pos, a.value, nil); err != nil {
			t.Fatalf("Record(%d) returned error: %v", a.pos, err)
		}
	}
	progress, err := tracker.Progress("ENTREVISTA", "cand-1")
	if err != nil {
		t.Fatalf("Progress returned error: %v", err)
	}
	if progress.Answered != 5 || progress.Total != 5 {
		t.Fatalf("progress = %+v, want 5/5", progress)
	}
	if _, err := tracker.Finalize("ENTREVISTA", "cand-1"); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}

	// Reopen and flip the root answer: everything behind the gate goes.
	if err := drafts.Reopen("ENTREVISTA", "staff@confe"); err != nil {
		t.Fatalf("Reopen returned error: %v", err)
	}
	report, err := reconciler.ApplyAnswerEdit("ENTREVISTA", "cand-1", 0, models.BinaryNo, nil)
	if err != nil {
		t.Fatalf("ApplyAnswerEdit returned error: %v", err)
	}
	if !reflect.DeepEqual(report.Removed, []int{1, 2, 3}) {
		t.Fatalf("removed = %v, want [1 2 3]", report.Removed)
	}
	state, err := tracker.State("ENTREVISTA", "cand-1")
	if err != nil {
		t.Fatalf("State returned error: %v", err)
	}
	if !reflect.DeepEqual(state.Unlocked, []int{0, 4}) {
		t.Fatalf("unlocked = %v, want [0 4]", state.Unlocked)
	}
	if err := drafts.CloseEdit("ENTREVISTA", "staff@confe"); err != nil {
		t.Fatalf("CloseEdit returned error: %v", err)
	}

	// Definition codec round trip over the published structure.
	encoded, err := models.EncodeDefinition(published)
	if err != nil {
		t.Fatalf("EncodeDefinition returned error: %v", err)
	}
	decoded, err := models.ParseDefinition(encoded)
	if err != nil {
		t.Fatalf("ParseDefinition returned error: %v", err)
	}
	if !reflect.DeepEqual(decoded.Rules, published.Rules) {
		t.Fatalf("decoded rules = %+v, want %+v", decoded.Rules, published.Rules)
	}

	// Export the structure back to tabular form and re-import it.
	exported := services.ExportRows(&models.Draft{
		QuestionnaireID: published.ID,
		Name:            published.Name,
		Questions:       published.Questions,
		Rules:           published.Rules,
	})
	reimported, errs, _ := importer.BuildDraft("COPIA", "Entrevista inicial", exported)
	if len(errs) != 0 {
		t.Fatalf("re-import errors: %v", errs)
	}
	if !reflect.DeepEqual(reimported.Rules, published.Rules) {
		t.Fatalf("re-imported rules = %+v, want %+v", reimported.Rules, published.Rules)
	}
}
