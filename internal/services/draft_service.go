package services

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
)

// DraftService is the draft editor. It owns the contiguous-position
// invariant and consistent rule references across insert, delete, swap and
// retype, and the draft -> published questionnaire transition.
type DraftService struct {
	store DraftStore
	log   *zap.Logger
	now   func() time.Time
}

func NewDraftService(store DraftStore, logger *zap.Logger) *DraftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftService{
		store: store,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateDraft registers an empty draft under the given questionnaire id. A
// blank id gets a generated one.
func (s *DraftService) CreateDraft(id, name string) (*models.Draft, error) {
	if strings.TrimSpace(id) == "" {
		id = shortID(8)
	}
	if existing, err := s.store.GetDraft(id); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, NewConflictError("draft already exists")
	}
	d := &models.Draft{QuestionnaireID: id, Name: strings.TrimSpace(name)}
	if err := s.store.PutDraft(d); err != nil {
		return nil, err
	}
	return d, nil
}

// InsertQuestion places q at position pos; every question at pos or later
// shifts forward by one and rules are rewritten with the shifted positions.
// pos == len(questions) appends.
func (s *DraftService) InsertQuestion(draftID string, pos int, q models.Question) (*models.Draft, error) {
	d, err := s.editableDraft(draftID)
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos > len(d.Questions) {
		return nil, NewInvalidError("insert position out of range")
	}
	q.Position = pos
	q.Text = strings.TrimSpace(q.Text)
	q.Section = strings.TrimSpace(q.Section)
	if q.Type == models.TypeBinary {
		q.Options = models.BinaryOptions()
	}
	if err := models.ValidateStruct(q); err != nil {
		return nil, NewInvalidError("invalid question: " + err.Error())
	}
	if q.Type.ChoiceLike() && len(q.Options) == 0 {
		return nil, NewInvalidError("choice question requires options")
	}
	if !q.Type.ChoiceLike() && len(q.Options) > 0 {
		return nil, NewInvalidError("type " + string(q.Type) + " does not take options")
	}

	for i := range d.Questions {
		if d.Questions[i].Position >= pos {
			d.Questions[i].Position++
		}
	}
	for i := range d.Rules {
		if d.Rules[i].SourcePosition >= pos {
			d.Rules[i].SourcePosition++
		}
		if d.Rules[i].TargetPosition >= pos {
			d.Rules[i].TargetPosition++
		}
	}
	d.Questions = append(d.Questions, q)

	if err := s.saveVerified(d, "insert_question", strconv.Itoa(pos)); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteQuestion removes the question at pos. Later questions shift back by
// one; every rule that references pos is removed rather than left dangling,
// and the removed rules are returned so the caller can show them.
func (s *DraftService) DeleteQuestion(draftID string, pos int) (*models.Draft, []models.UnlockRule, error) {
	d, err := s.editableDraft(draftID)
	if err != nil {
		return nil, nil, err
	}
	if pos < 0 || pos >= len(d.Questions) {
		return nil, nil, NewInvalidError("delete position out of range")
	}

	questions := d.Questions[:0]
	for _, q := range d.Questions {
		if q.Position == pos {
			continue
		}
		if q.Position > pos {
			q.Position--
		}
		questions = append(questions, q)
	}
	d.Questions = questions

	var removed []models.UnlockRule
	rules := d.Rules[:0]
	for _, r := range d.Rules {
		if r.SourcePosition == pos || r.TargetPosition == pos {
			removed = append(removed, r)
			continue
		}
		if r.SourcePosition > pos {
			r.SourcePosition--
		}
		if r.TargetPosition > pos {
			r.TargetPosition--
		}
		rules = append(rules, r)
	}
	d.Rules = rules

	if err := s.saveVerified(d, "delete_question", strconv.Itoa(pos)); err != nil {
		return nil, nil, err
	}
	return d, removed, nil
}

// SwapQuestions exchanges the questions at pos and pos+1 (move up/down in
// the editor) and remaps every rule endpoint accordingly. A rule running
// directly between the two would invert its direction, so it is removed and
// returned, mirroring the delete behavior for dangling references.
func (s *DraftService) SwapQuestions(draftID string, pos int) (*models.Draft, []models.UnlockRule, error) {
	d, err := s.editableDraft(draftID)
	if err != nil {
		return nil, nil, err
	}
	if pos < 0 || pos+1 >= len(d.Questions) {
		return nil, nil, NewInvalidError("swap position out of range")
	}

	for i := range d.Questions {
		switch d.Questions[i].Position {
		case pos:
			d.Questions[i].Position = pos + 1
		case pos + 1:
			d.Questions[i].Position = pos
		}
	}

	var removed []models.UnlockRule
	rules := d.Rules[:0]
	for _, r := range d.Rules {
		inverts := (r.SourcePosition == pos && r.TargetPosition == pos+1) ||
			(r.SourcePosition == pos+1 && r.TargetPosition == pos)
		if inverts {
			removed = append(removed, r)
			continue
		}
		switch r.SourcePosition {
		case pos:
			r.SourcePosition = pos + 1
		case pos + 1:
			r.SourcePosition = pos
		}
		switch r.TargetPosition {
		case pos:
			r.TargetPosition = pos + 1
		case pos + 1:
			r.TargetPosition = pos
		}
		rules = append(rules, r)
	}
	d.Rules = rules

	if err := s.saveVerified(d, "swap_questions", strconv.Itoa(pos)); err != nil {
		return nil, nil, err
	}
	return d, removed, nil
}

// RetypeQuestion changes the type of the question at pos. Its options are
// cleared (binary gets the fixed pair) and every rule gating on it is
// removed, because the old required values have no meaning for the new
// type. The removed rules are returned.
func (s *DraftService) RetypeQuestion(draftID string, pos int, qt models.QuestionType) (*models.Draft, []models.UnlockRule, error) {
	if !qt.Valid() {
		return nil, nil, NewInvalidError("unknown question type " + string(qt))
	}
	d, err := s.editableDraft(draftID)
	if err != nil {
		return nil, nil, err
	}
	found := false
	for i := range d.Questions {
		if d.Questions[i].Position != pos {
			continue
		}
		found = true
		d.Questions[i].Type = qt
		d.Questions[i].Options = nil
		if qt == models.TypeBinary {
			d.Questions[i].Options = models.BinaryOptions()
		}
	}
	if !found {
		return nil, nil, NewInvalidError("retype position out of range")
	}

	var removed []models.UnlockRule
	rules := d.Rules[:0]
	for _, r := range d.Rules {
		if r.SourcePosition == pos {
			removed = append(removed, r)
			continue
		}
		rules = append(rules, r)
	}
	d.Rules = rules

	if err := s.saveVerified(d, "retype_question", strconv.Itoa(pos)+" "+string(qt)); err != nil {
		return nil, nil, err
	}
	return d, removed, nil
}

// SetOptions replaces the option list of the choice-like question at pos.
// Rules gating on that question whose required value is no longer among the
// options are removed and returned.
func (s *DraftService) SetOptions(draftID string, pos int, options []models.Option) (*models.Draft, []models.UnlockRule, error) {
	d, err := s.editableDraft(draftID)
	if err != nil {
		return nil, nil, err
	}
	var q *models.Question
	for i := range d.Questions {
		if d.Questions[i].Position == pos {
			q = &d.Questions[i]
		}
	}
	if q == nil {
		return nil, nil, NewInvalidError("position out of range")
	}
	if !q.Type.ChoiceLike() {
		return nil, nil, NewInvalidError("type " + string(q.Type) + " does not take options")
	}
	if q.Type == models.TypeBinary {
		return nil, nil, NewInvalidError("binary options are fixed")
	}
	if len(options) == 0 {
		return nil, nil, NewInvalidError("choice question requires options")
	}
	for _, o := range options {
		if err := models.ValidateStruct(o); err != nil {
			return nil, nil, NewInvalidError("invalid option: " + err.Error())
		}
	}
	q.Options = append([]models.Option(nil), options...)

	var removed []models.UnlockRule
	rules := d.Rules[:0]
	for _, r := range d.Rules {
		if r.SourcePosition == pos && !q.HasOptionValue(r.RequiredValue) {
			removed = append(removed, r)
			continue
		}
		rules = append(rules, r)
	}
	d.Rules = rules

	if err := s.saveVerified(d, "set_options", strconv.Itoa(pos)); err != nil {
		return nil, nil, err
	}
	return d, removed, nil
}

// AddRule records a gate from source to target. Problems are reported as
// structural errors so the editor can show them next to the rule picker.
func (s *DraftService) AddRule(draftID string, source int, requiredValue string, target int) (*models.Draft, []StructuralError, error) {
	d, err := s.editableDraft(draftID)
	if err != nil {
		return nil, nil, err
	}
	errs := checkRule(d.Questions, models.UnlockRule{SourcePosition: source, RequiredValue: requiredValue, TargetPosition: target})
	if len(errs) > 0 {
		return nil, errs, nil
	}
	for _, r := range d.Rules {
		if r.SourcePosition == source && r.TargetPosition == target && r.RequiredValue == requiredValue {
			return nil, nil, NewConflictError("rule already exists")
		}
	}
	d.Rules = append(d.Rules, models.UnlockRule{SourcePosition: source, RequiredValue: requiredValue, TargetPosition: target})

	if err := s.saveVerified(d, "add_rule", strconv.Itoa(source)+"->"+strconv.Itoa(target)); err != nil {
		return nil, nil, err
	}
	return d, nil, nil
}

// DeleteRule removes one gate.
func (s *DraftService) DeleteRule(draftID string, source int, requiredValue string, target int) (*models.Draft, error) {
	d, err := s.editableDraft(draftID)
	if err != nil {
		return nil, err
	}
	rules := d.Rules[:0]
	found := false
	for _, r := range d.Rules {
		if r.SourcePosition == source && r.TargetPosition == target && r.RequiredValue == requiredValue {
			found = true
			continue
		}
		rules = append(rules, r)
	}
	if !found {
		return nil, NewNotFoundError("rule not found")
	}
	d.Rules = rules
	if err := s.saveVerified(d, "delete_rule", strconv.Itoa(source)+"->"+strconv.Itoa(target)); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDraft returns the stored draft.
func (s *DraftService) GetDraft(draftID string) (*models.Draft, error) {
	d, err := s.store.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, NewNotFoundError("draft not found")
	}
	return d, nil
}

// Publish freezes a draft into an answerable questionnaire: questions get
// stable ids, the definition is stored and the draft removed.
func (s *DraftService) Publish(draftID, actor string) (*models.Questionnaire, error) {
	d, err := s.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	if len(d.Questions) == 0 {
		return nil, NewInvalidError("draft has no questions")
	}
	if err := models.CheckDraft(d.Questions, d.Rules); err != nil {
		return nil, NewInvalidError("draft is not publishable: " + err.Error())
	}
	q := &models.Questionnaire{
		ID:        d.QuestionnaireID,
		Name:      d.Name,
		Questions: append([]models.Question(nil), d.Questions...),
		Rules:     append([]models.UnlockRule(nil), d.Rules...),
	}
	for i := range q.Questions {
		if q.Questions[i].ID == "" {
			q.Questions[i].ID = shortID(8)
		}
	}
	if err := s.store.PutQuestionnaire(q); err != nil {
		return nil, err
	}
	if err := s.store.DeleteDraft(draftID); err != nil {
		return nil, err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor, Action: "publish", Target: q.ID, Note: strconv.Itoa(len(q.Questions))})
	s.log.Info("questionnaire published", zap.String("questionnaire", q.ID), zap.Int("questions", len(q.Questions)))
	return q, nil
}

// Reopen puts a published questionnaire into edit mode so recorded answers
// may be changed through the reconciler.
func (s *DraftService) Reopen(questionnaireID, actor string) error {
	q, err := s.store.GetQuestionnaire(questionnaireID)
	if err != nil {
		return err
	}
	if q == nil {
		return NewNotFoundError("questionnaire not found")
	}
	if q.Editing {
		return NewConflictError("questionnaire already in edit mode")
	}
	q.Editing = true
	if err := s.store.PutQuestionnaire(q); err != nil {
		return err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor, Action: "reopen", Target: questionnaireID})
	return nil
}

// CloseEdit leaves edit mode.
func (s *DraftService) CloseEdit(questionnaireID, actor string) error {
	q, err := s.store.GetQuestionnaire(questionnaireID)
	if err != nil {
		return err
	}
	if q == nil {
		return NewNotFoundError("questionnaire not found")
	}
	if !q.Editing {
		return NewConflictError("questionnaire is not in edit mode")
	}
	q.Editing = false
	if err := s.store.PutQuestionnaire(q); err != nil {
		return err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: actor, Action: "close_edit", Target: questionnaireID})
	return nil
}

// editableDraft loads a draft for mutation. Structure is only mutable while
// the questionnaire has no recorded responses.
func (s *DraftService) editableDraft(draftID string) (*models.Draft, error) {
	d, err := s.store.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, NewNotFoundError("draft not found")
	}
	n, err := s.store.CountResponses(draftID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, NewConflictError("questionnaire has recorded responses")
	}
	return d, nil
}

// saveVerified re-checks both structural invariants and persists the draft.
// A failed check is a programming error inside this service, not caller
// input, hence the internal error class.
func (s *DraftService) saveVerified(d *models.Draft, action, note string) error {
	if err := models.CheckDraft(d.Questions, d.Rules); err != nil {
		s.log.Error("draft invariant violated", zap.String("draft", d.QuestionnaireID), zap.String("action", action), zap.Error(err))
		return NewInternalError("draft invariant violated after " + action + ": " + err.Error())
	}
	if err := s.store.PutDraft(d); err != nil {
		return err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: "editor", Action: action, Target: d.QuestionnaireID, Note: note})
	s.log.Debug("draft mutated", zap.String("draft", d.QuestionnaireID), zap.String("action", action), zap.String("note", note))
	return nil
}

// checkRule collects the structural problems of a single rule against the
// current question list.
func checkRule(questions []models.Question, r models.UnlockRule) []StructuralError {
	byPos := make(map[int]models.Question, len(questions))
	for _, q := range questions {
		byPos[q.Position] = q
	}
	var errs []StructuralError
	src, srcOK := byPos[r.SourcePosition]
	if !srcOK {
		errs = append(errs, StructuralError{Kind: StructuralDanglingSource, Row: r.TargetPosition, Message: "source question " + strconv.Itoa(r.SourcePosition) + " does not exist"})
	}
	if _, ok := byPos[r.TargetPosition]; !ok {
		errs = append(errs, StructuralError{Kind: StructuralDanglingTarget, Row: r.TargetPosition, Message: "target question " + strconv.Itoa(r.TargetPosition) + " does not exist"})
	}
	if r.SourcePosition == r.TargetPosition {
		errs = append(errs, StructuralError{Kind: StructuralSelfRef, Row: r.TargetPosition, Message: "question cannot gate itself"})
	} else if r.SourcePosition > r.TargetPosition {
		errs = append(errs, StructuralError{Kind: StructuralForwardRef, Row: r.TargetPosition, Message: "gate source must precede its target"})
	}
	if srcOK {
		if !src.Type.ChoiceLike() {
			errs = append(errs, StructuralError{Kind: StructuralBadSource, Row: r.TargetPosition, Message: "type " + string(src.Type) + " cannot gate"})
		} else if !src.HasOptionValue(r.RequiredValue) {
			errs = append(errs, StructuralError{Kind: StructuralUnknownOption, Row: r.TargetPosition, Message: "value " + strconv.Quote(r.RequiredValue) + " is not an option of question " + strconv.Itoa(r.SourcePosition)})
		}
	}
	return errs
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
