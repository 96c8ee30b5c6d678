package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"strings"

	"github.com/ConfeDigital/ConfeApp-sub003/internal/models"
)

// ExportRows renders a draft into the tabular import form, one row per
// question in position order. Re-importing the result yields a structurally
// identical draft.
func ExportRows(d *models.Draft) []models.ImportRow {
	questions := append([]models.Question(nil), d.Questions...)
	sort.Slice(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })

	rules := append([]models.UnlockRule(nil), d.Rules...)
	models.SortRules(rules)

	byPos := make(map[int]models.Question, len(questions))
	for _, q := range questions {
		byPos[q.Position] = q
	}

	rows := make([]models.ImportRow, 0, len(questions))
	for _, q := range questions {
		row := models.ImportRow{
			Text:    q.Text,
			Section: q.Section,
			Type:    q.Type,
		}
		for _, o := range q.Options {
			row.Options = append(row.Options, encodeOptionCell(o))
		}
		for _, r := range rules {
			if r.TargetPosition != q.Position {
				continue
			}
			row.Unlock = append(row.Unlock, models.ImportUnlockRef{
				SourceRow:  r.SourcePosition,
				OptionText: optionTextForValue(byPos[r.SourcePosition], r.RequiredValue),
			})
		}
		rows = append(rows, row)
	}
	return rows
}

// ExportCSV renders a draft as the CSV the import side understands.
func ExportCSV(d *models.Draft) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"text", "section", "type", "options", "unlock"})
	for _, row := range ExportRows(d) {
		unlock := make([]string, 0, len(row.Unlock))
		for _, ref := range row.Unlock {
			unlock = append(unlock, strconv.Itoa(ref.SourceRow)+"="+ref.OptionText)
		}
		rec := []string{
			row.Text,
			row.Section,
			string(row.Type),
			joinList(row.Options),
			joinList(unlock),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func encodeOptionCell(o models.Option) string {
	if o.Text == o.Value {
		return o.Text
	}
	return o.Text + "=" + o.Value
}

func optionTextForValue(q models.Question, value string) string {
	for _, o := range q.Options {
		if o.Value == value {
			return o.Text
		}
	}
	return value
}

func joinList(parts []string) string {
	return strings.Join(parts, "|")
}
