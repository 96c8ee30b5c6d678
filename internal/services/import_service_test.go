package services

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
)

func sampleRows() []models.ImportRow {
	return []models.ImportRow{
		{Text: "¿Tiene discapacidad?", Section: "Diagnóstico", Type: models.TypeBinary},
		{Text: "Describa", Section: "Diagnóstico", Type: models.TypeOpenText, Unlock: []models.ImportUnlockRef{{SourceRow: 0, OptionText: "Sí"}}},
		{Text: "Nivel educativo", Section: "Educación", Type: models.TypeDropdown, Options: []string{"Primaria=primaria", "Secundaria=secundaria"}},
		{Text: "Detalle estudios", Section: "Educación", Type: models.TypeOpenText, Unlock: []models.ImportUnlockRef{{SourceRow: 2, OptionText: " primaria "}}},
	}
}

func TestBuildDraftFromValidRows(t *testing.T) {
	store := newStubDraftStore()
	svc := NewImportService(store, nil)

	d, errs, warns := svc.BuildDraft("Q1", "Entrevista", sampleRows())
	if len(errs) != 0 {
		t.Fatalf("errors = %v, want none", errs)
	}
	if len(warns) != 0 {
		t.Fatalf("warnings = %v, want none", warns)
	}
	if err := models.CheckDraft(d.Questions, d.Rules); err != nil {
		t.Fatalf("draft fails invariants: %v", err)
	}
	if len(d.Questions) != 4 {
		t.Fatalf("questions = %d, want 4", len(d.Questions))
	}
	wantRules := []models.UnlockRule{
		{SourcePosition: 0, RequiredValue: models.BinaryYes, TargetPosition: 1},
		{SourcePosition: 2, RequiredValue: "primaria", TargetPosition: 3},
	}
	if !reflect.DeepEqual(d.Rules, wantRules) {
		t.Fatalf("rules = %+v, want %+v", d.Rules, wantRules)
	}

	if err := svc.Accept(d, errs, "staff@confe"); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if stored, _ := store.GetDraft("Q1"); stored == nil {
		t.Fatalf("accepted draft not stored")
	}
}

func TestBuildDraftForcesBinaryPair(t *testing.T) {
	svc := NewImportService(newStubDraftStore(), nil)
	rows := []models.ImportRow{
		{Text: "¿Firma convenio?", Section: "Legal", Type: models.TypeBinary, Options: []string{"Claro", "Nunca", "Quizá"}},
	}
	d, errs, _ := svc.BuildDraft("Q1", "", rows)
	if len(errs) != 0 {
		t.Fatalf("errors = %v, want none", errs)
	}
	want := []models.Option{{Text: models.BinaryYes, Value: models.BinaryYes}, {Text: models.BinaryNo, Value: models.BinaryNo}}
	if !reflect.DeepEqual(d.Questions[0].Options, want) {
		t.Fatalf("options = %+v, want the fixed pair regardless of the sheet", d.Questions[0].Options)
	}
}

func TestBuildDraftCollectsEveryError(t *testing.T) {
	svc := NewImportService(newStubDraftStore(), nil)
	rows := []models.ImportRow{
		{Text: "", Section: "", Type: models.QuestionType("bogus")},
		{Text: "Gated", Section: "s", Type: models.TypeOpenText, Unlock: []models.ImportUnlockRef{
			{SourceRow: 9, OptionText: "x"},
			{SourceRow: 1, OptionText: "x"},
			{SourceRow: 2, OptionText: "x"},
		}},
		{Text: "Later", Section: "s", Type: models.TypeBinary},
		{Text: "Bad option", Section: "s", Type: models.TypeOpenText, Unlock: []models.ImportUnlockRef{{SourceRow: 2, OptionText: "Quizá"}}},
		{Text: "Choice sin opciones", Section: "s", Type: models.TypeSingleChoice},
	}
	d, errs, _ := svc.BuildDraft("Q1", "", rows)

	wantKinds := []StructuralErrorKind{
		StructuralBadQuestion,    // empty text
		StructuralBadQuestion,    // empty section
		StructuralBadQuestion,    // unknown type
		StructuralDanglingSource, // row 9 does not exist
		StructuralSelfRef,        // row gated by itself
		StructuralForwardRef,     // gated by a later row
		StructuralUnknownOption,  // Quizá is not a binary outcome
		StructuralBadQuestion,    // choice without options
	}
	if len(errs) != len(wantKinds) {
		t.Fatalf("errors = %d (%v), want %d", len(errs), errs, len(wantKinds))
	}
	counts := map[StructuralErrorKind]int{}
	for _, e := range errs {
		counts[e.Kind]++
	}
	wantCounts := map[StructuralErrorKind]int{}
	for _, k := range wantKinds {
		wantCounts[k]++
	}
	if !reflect.DeepEqual(counts, wantCounts) {
		t.Fatalf("error kinds = %v, want %v", counts, wantCounts)
	}

	// The erroneous draft is still returned as a preview but not acceptable.
	if d == nil || len(d.Questions) != 5 {
		t.Fatalf("preview draft missing or truncated: %+v", d)
	}
	if err := svc.Accept(d, errs, "staff@confe"); err == nil {
		t.Fatalf("expected Accept to reject a draft with structural errors")
	}
}

func TestBuildDraftWarnsOnDuplicateTextInSection(t *testing.T) {
	svc := NewImportService(newStubDraftStore(), nil)
	rows := []models.ImportRow{
		{Text: "¿Dónde vive?", Section: "General", Type: models.TypeOpenText},
		{Text: "  ¿dónde vive? ", Section: "General", Type: models.TypeOpenText},
		{Text: "¿Dónde vive?", Section: "Otra sección", Type: models.TypeOpenText},
	}
	_, errs, warns := svc.BuildDraft("Q1", "", rows)
	if len(errs) != 0 {
		t.Fatalf("errors = %v, want none (duplicates are warnings)", errs)
	}
	if len(warns) != 1 || warns[0].Row != 1 {
		t.Fatalf("warnings = %+v, want one for row 1", warns)
	}
}

func TestParseRowsCSV(t *testing.T) {
	csvData := "\xEF\xBB\xBF" + strings.Join([]string{
		"text,section,type,options,unlock",
		"¿Tiene discapacidad?,Diagnóstico,binary,,",
		"Describa,Diagnóstico,open_text,,0=Sí",
		"Nivel educativo,Educación,dropdown,Primaria=primaria|Secundaria=secundaria,",
		",,,,",
	}, "\n")

	rows, err := ParseRowsCSV([]byte(csvData))
	if err != nil {
		t.Fatalf("ParseRowsCSV returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (blank line skipped)", len(rows))
	}
	if rows[1].Unlock[0].SourceRow != 0 || rows[1].Unlock[0].OptionText != "Sí" {
		t.Fatalf("unlock ref = %+v", rows[1].Unlock[0])
	}
	if !reflect.DeepEqual(rows[2].Options, []string{"Primaria=primaria", "Secundaria=secundaria"}) {
		t.Fatalf("options = %v", rows[2].Options)
	}

	if _, err := ParseRowsCSV([]byte("foo,bar\n1,2\n")); err == nil {
		t.Fatalf("expected error for missing required columns")
	}
	if _, err := ParseRowsCSV([]byte("text,section,type,options,unlock\nx,s,open_text,,not-a-ref\n")); err == nil {
		t.Fatalf("expected error for malformed unlock cell")
	}
}
