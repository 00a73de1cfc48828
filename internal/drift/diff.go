package drift

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/faucetdb/sketch/internal/model"
)

// DiffTable compares two versions of a table and classifies each difference
// going from base to target as additive or breaking. Columns are matched by
// title; a renamed column shows up as one removal and one addition.
func DiffTable(base, target model.Table) TableReport {
	report := TableReport{TableID: base.ID}

	// Index target columns by title for fast lookup.
	targetByTitle := make(map[string]model.Column, len(target.Columns))
	for _, col := range target.Columns {
		targetByTitle[col.Title] = col
	}
	baseByTitle := make(map[string]model.Column, len(base.Columns))
	for _, col := range base.Columns {
		baseByTitle[col.Title] = col
	}

	add := func(kind Kind, category, column, oldValue, newValue, desc string) {
		report.Items = append(report.Items, Item{
			Type:        kind,
			Category:    category,
			TableID:     base.ID,
			Column:      column,
			OldValue:    oldValue,
			NewValue:    newValue,
			Description: desc,
		})
	}

	for _, old := range base.Columns {
		cur, exists := targetByTitle[old.Title]
		if !exists {
			add(Breaking, ColumnRemoved, old.Title, columnType(old), "",
				fmt.Sprintf("Column %q was removed from table %q", old.Title, base.ID))
			continue
		}

		if columnType(old) != columnType(cur) {
			add(Breaking, TypeChanged, old.Title, columnType(old), columnType(cur),
				fmt.Sprintf("Column %q type changed from %q to %q", old.Title, columnType(old), columnType(cur)))
		}

		// Tightening to NOT NULL breaks writers that send nulls.
		switch {
		case !old.Required && cur.Required:
			add(Breaking, NullableChanged, old.Title, "nullable", "not null",
				fmt.Sprintf("Column %q changed from nullable to NOT NULL", old.Title))
		case old.Required && !cur.Required:
			add(Additive, NullableChanged, old.Title, "not null", "nullable",
				fmt.Sprintf("Column %q changed from NOT NULL to nullable", old.Title))
		}

		if old.PK != cur.PK {
			add(Breaking, KeyChanged, old.Title, keyLabel(old.PK), keyLabel(cur.PK),
				fmt.Sprintf("Column %q primary key changed", old.Title))
		}
		if old.FK != cur.FK {
			kind := Breaking
			if cur.FK == "" {
				kind = Additive
			}
			add(kind, KeyChanged, old.Title, old.FK, cur.FK,
				fmt.Sprintf("Column %q foreign key changed from %q to %q", old.Title, old.FK, cur.FK))
		}

		if removed, added := enumDelta(old.EnumValues, cur.EnumValues); len(removed) > 0 {
			add(Breaking, EnumChanged, old.Title, strings.Join(removed, ","), strings.Join(added, ","),
				fmt.Sprintf("Column %q lost enum values %s", old.Title, strings.Join(removed, ", ")))
		} else if len(added) > 0 {
			add(Additive, EnumChanged, old.Title, "", strings.Join(added, ","),
				fmt.Sprintf("Column %q gained enum values %s", old.Title, strings.Join(added, ", ")))
		}
	}

	for _, cur := range target.Columns {
		if _, exists := baseByTitle[cur.Title]; exists {
			continue
		}
		// A new NOT NULL column without a default rejects existing inserts.
		kind := Additive
		if cur.Required && cur.Default == nil {
			kind = Breaking
		}
		add(kind, ColumnAdded, cur.Title, "", columnType(cur),
			fmt.Sprintf("Column %q was added to table %q", cur.Title, base.ID))
	}

	report.summarize()
	return report
}

// Diff compares every table of base against target.
func Diff(base, target model.Snapshot) Report {
	report := Report{CheckedAt: time.Now().UTC()}

	ids := base.Keys()
	for _, id := range target.Keys() {
		if _, ok := base[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	report.TotalTables = len(ids)

	for _, id := range ids {
		old, inBase := base[id]
		cur, inTarget := target[id]

		var tr TableReport
		switch {
		case !inTarget:
			tr = TableReport{TableID: id, Items: []Item{{
				Type:        Breaking,
				Category:    TableRemoved,
				TableID:     id,
				Description: fmt.Sprintf("Table %q was removed", id),
			}}}
			tr.summarize()
		case !inBase:
			tr = TableReport{TableID: id, Items: []Item{{
				Type:        Additive,
				Category:    TableAdded,
				TableID:     id,
				NewValue:    fmt.Sprintf("%d columns", len(cur.Columns)),
				Description: fmt.Sprintf("Table %q was added", id),
			}}}
			tr.summarize()
		default:
			tr = DiffTable(old, cur)
		}

		if !tr.HasDrift {
			continue
		}
		report.Tables = append(report.Tables, tr)
		report.DriftedTables++
		report.AdditiveCount += tr.AdditiveCount
		report.BreakingCount += tr.BreakingCount
	}
	return report
}

func (r *TableReport) summarize() {
	r.AdditiveCount, r.BreakingCount = 0, 0
	for _, item := range r.Items {
		switch item.Type {
		case Additive:
			r.AdditiveCount++
		case Breaking:
			r.BreakingCount++
		}
	}
	r.HasDrift = len(r.Items) > 0
	r.HasBreaking = r.BreakingCount > 0
}

// columnType is the database type of a column, falling back to its semantic
// type when no format is set.
func columnType(c model.Column) string {
	if c.Format != "" {
		return c.Format
	}
	return c.Type
}

func keyLabel(pk bool) string {
	if pk {
		return "primary key"
	}
	return ""
}

func enumDelta(old, cur []string) (removed, added []string) {
	in := func(list []string, v string) bool {
		for _, x := range list {
			if x == v {
				return true
			}
		}
		return false
	}
	for _, v := range old {
		if !in(cur, v) {
			removed = append(removed, v)
		}
	}
	for _, v := range cur {
		if !in(old, v) {
			added = append(added, v)
		}
	}
	return removed, added
}
