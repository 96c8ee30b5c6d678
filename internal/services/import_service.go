package services

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
	"github.com/ConfeDigital/ConfeApp-sub003/internal/utils"
)

// ImportService turns a tabular questionnaire definition into a draft,
// collecting structural errors instead of failing on the first so staff can
// fix a whole sheet in one pass.
type ImportService struct {
	store DraftStore
	log   *zap.Logger
	now   func() time.Time
}

func NewImportService(store DraftStore, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		store: store,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// BuildDraft validates rows and assembles the (questions, rules) draft. The
// draft is always returned as a preview; it may only be accepted once the
// error list is empty. Row indices in unlock references are zero-based.
func (s *ImportService) BuildDraft(questionnaireID, name string, rows []models.ImportRow) (*models.Draft, []StructuralError, []StructuralWarning) {
	if strings.TrimSpace(questionnaireID) == "" {
		questionnaireID = shortID(8)
	}
	d := &models.Draft{QuestionnaireID: questionnaireID, Name: strings.TrimSpace(name)}
	var errs []StructuralError
	var warns []StructuralWarning

	seenText := map[string]int{} // section + folded text -> first row
	for i, row := range rows {
		q := models.Question{
			Position: i,
			Text:     strings.TrimSpace(row.Text),
			Type:     row.Type,
			Section:  strings.TrimSpace(row.Section),
		}
		if q.Text == "" {
			errs = append(errs, StructuralError{Kind: StructuralBadQuestion, Row: i, Message: "empty question text"})
		}
		if q.Section == "" {
			errs = append(errs, StructuralError{Kind: StructuralBadQuestion, Row: i, Message: "empty section"})
		}
		if !q.Type.Valid() {
			errs = append(errs, StructuralError{Kind: StructuralBadQuestion, Row: i, Message: "unknown type " + strconv.Quote(string(row.Type))})
		}

		switch {
		case q.Type == models.TypeBinary:
			// Binary rows get the fixed pair no matter what the sheet says.
			q.Options = models.BinaryOptions()
		case q.Type.ChoiceLike():
			q.Options = parseOptionCells(row.Options)
			if len(q.Options) == 0 {
				errs = append(errs, StructuralError{Kind: StructuralBadQuestion, Row: i, Message: "type " + string(q.Type) + " requires options"})
			}
		case len(row.Options) > 0:
			warns = append(warns, StructuralWarning{Row: i, Message: "options ignored for type " + string(q.Type)})
		}

		key := utils.FoldKey(q.Section) + "\x00" + utils.FoldKey(q.Text)
		if first, ok := seenText[key]; ok && q.Text != "" {
			warns = append(warns, StructuralWarning{Row: i, Message: "duplicate question text in section (first at row " + strconv.Itoa(first) + ")"})
		} else {
			seenText[key] = i
		}

		d.Questions = append(d.Questions, q)
	}

	for i, row := range rows {
		for _, ref := range row.Unlock {
			rule, ruleErrs := resolveUnlockRef(d.Questions, i, ref)
			if len(ruleErrs) > 0 {
				errs = append(errs, ruleErrs...)
				continue
			}
			d.Rules = append(d.Rules, rule)
		}
	}
	models.SortRules(d.Rules)

	s.log.Debug("bulk import validated",
		zap.String("questionnaire", questionnaireID),
		zap.Int("rows", len(rows)),
		zap.Int("errors", len(errs)),
		zap.Int("warnings", len(warns)))
	return d, errs, warns
}

// Accept stores a previewed draft for editing. Drafts with outstanding
// structural errors are rejected; warnings do not block.
func (s *ImportService) Accept(d *models.Draft, errs []StructuralError, actor string) error {
	if d == nil {
		return NewInvalidError("draft required")
	}
	if len(errs) > 0 {
		return NewInvalidError("draft has " + strconv.Itoa(len(errs)) + " unresolved structural errors")
	}
	if existing, err := s.store.GetDraft(d.QuestionnaireID); err != nil {
		return err
	} else if existing != nil {
		return NewConflictError("draft already exists")
	}
	if err := models.CheckDraft(d.Questions, d.Rules); err != nil {
		return NewInternalError("accepted draft failed invariants: " + err.Error())
	}
	if err := s.store.PutDraft(d); err != nil {
		return err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor, Action: "import_accept", Target: d.QuestionnaireID, Note: strconv.Itoa(len(d.Questions))})
	return nil
}

// resolveUnlockRef checks one gating cell and resolves its option text to
// the source question's option value.
func resolveUnlockRef(questions []models.Question, targetRow int, ref models.ImportUnlockRef) (models.UnlockRule, []StructuralError) {
	var errs []StructuralError
	if ref.SourceRow < 0 || ref.SourceRow >= len(questions) {
		errs = append(errs, StructuralError{Kind: StructuralDanglingSource, Row: targetRow, Message: "gate references row " + strconv.Itoa(ref.SourceRow) + " which does not exist"})
		return models.UnlockRule{}, errs
	}
	if ref.SourceRow == targetRow {
		return models.UnlockRule{}, append(errs, StructuralError{Kind: StructuralSelfRef, Row: targetRow, Message: "row cannot be gated by itself"})
	}
	if ref.SourceRow > targetRow {
		return models.UnlockRule{}, append(errs, StructuralError{Kind: StructuralForwardRef, Row: targetRow, Message: "row cannot be gated by a later row"})
	}
	src := questions[ref.SourceRow]
	if !src.Type.ChoiceLike() {
		return models.UnlockRule{}, append(errs, StructuralError{Kind: StructuralBadSource, Row: targetRow, Message: "type " + string(src.Type) + " cannot gate"})
	}
	want := utils.FoldKey(ref.OptionText)
	for _, o := range src.Options {
		if utils.FoldKey(o.Text) == want || utils.FoldKey(o.Value) == want {
			return models.UnlockRule{SourcePosition: ref.SourceRow, RequiredValue: o.Value, TargetPosition: targetRow}, nil
		}
	}
	return models.UnlockRule{}, append(errs, StructuralError{Kind: StructuralUnknownOption, Row: targetRow, Message: "option " + strconv.Quote(ref.OptionText) + " not found on row " + strconv.Itoa(ref.SourceRow)})
}

// parseOptionCells decodes sheet option cells. A cell is either plain text
// (value equals text) or "text=value".
func parseOptionCells(cells []string) []models.Option {
	out := make([]models.Option, 0, len(cells))
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		text, value := c, c
		if i := strings.Index(c, "="); i >= 0 {
			text = strings.TrimSpace(c[:i])
			value = strings.TrimSpace(c[i+1:])
		}
		out = append(out, models.Option{Text: text, Value: value})
	}
	return out
}

// ParseRowsCSV decodes the CSV form of the import table, the inverse of
// ExportCSV. Expected header: text, section, type, options, unlock; options
// and unlock cells hold pipe-separated lists, unlock entries as
// "row=option text". Spreadsheet-to-CSV extraction stays outside the
// engine.
func ParseRowsCSV(data []byte) ([]models.ImportRow, error) {
	// Strip optional UTF-8 BOM
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	r := csv.NewReader(strings.NewReader(string(data)))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, NewInvalidError("invalid csv: " + err.Error())
	}
	if len(rows) == 0 {
		return nil, NewInvalidError("empty csv")
	}
	header := rows[0]
	idx := func(name string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}
	iText := idx("text")
	iSection := idx("section")
	iType := idx("type")
	iOpts := idx("options")
	iUnlock := idx("unlock")
	if iText < 0 || iSection < 0 || iType < 0 {
		return nil, NewInvalidError("csv must carry text, section and type columns")
	}

	out := make([]models.ImportRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(strings.TrimSpace(strings.Join(row, ""))) == 0 {
			continue
		}
		get := func(i int) string {
			if i >= 0 && i < len(row) {
				return row[i]
			}
			return ""
		}
		ir := models.ImportRow{
			Text:    strings.TrimSpace(get(iText)),
			Section: strings.TrimSpace(get(iSection)),
			Type:    models.QuestionType(strings.TrimSpace(get(iType))),
			Options: splitList(get(iOpts)),
		}
		for _, cell := range splitList(get(iUnlock)) {
			ref, err := parseUnlockCell(cell)
			if err != nil {
				return nil, err
			}
			ir.Unlock = append(ir.Unlock, ref)
		}
		out = append(out, ir)
	}
	return out, nil
}

func parseUnlockCell(cell string) (models.ImportUnlockRef, error) {
	i := strings.Index(cell, "=")
	if i < 0 {
		return models.ImportUnlockRef{}, NewInvalidError("malformed unlock cell " + strconv.Quote(cell))
	}
	n, err := strconv.Atoi(strings.TrimSpace(cell[:i]))
	if err != nil {
		return models.ImportUnlockRef{}, NewInvalidError("malformed unlock cell " + strconv.Quote(cell))
	}
	return models.ImportUnlockRef{SourceRow: n, OptionText: strings.TrimSpace(cell[i+1:])}, nil
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
