package tui

import (
	"bibedit-cli/internal/model"
)

// rowKey identifies a display row across re-renders. Sub is -1 for the
// field line itself.
type rowKey struct {
	Tag    string
	Number int
	Sub    int
}

type row struct {
	key   rowKey
	field model.Field
}

func (r row) isField() bool { return r.key.Sub < 0 }

// flattenRecord lists one row per field followed by one row per subfield,
// tags in ascending order.
func flattenRecord(rec model.Record) []row {
	var rows []row
	for _, tag := range rec.Tags() {
		for _, f := range rec[tag] {
			rows = append(rows, row{key: rowKey{Tag: tag, Number: f.Number, Sub: -1}, field: f})
			for i := range f.Subfields {
				rows = append(rows, row{key: rowKey{Tag: tag, Number: f.Number, Sub: i}, field: f})
			}
		}
	}
	return rows
}

// deletionPlan builds a plan from marked rows. A marked field line deletes
// the whole field.
func deletionPlan(rows []row, marked map[rowKey]bool) model.DeletionPlan {
	var plan model.DeletionPlan
	for _, r := range rows {
		if !marked[r.key] {
			continue
		}
		if r.isField() {
			plan = plan.AddField(r.key.Tag, r.key.Number)
		} else {
			plan = plan.AddSubfield(r.key.Tag, r.key.Number, r.key.Sub)
		}
	}
	return plan
}
