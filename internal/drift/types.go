package drift

import "time"

// Kind classifies the severity of a schema change.
type Kind string

const (
	// Additive means something was added or relaxed. Existing readers and
	// writers keep working.
	Additive Kind = "additive"
	// Breaking means a table or column was removed, retyped, or tightened.
	Breaking Kind = "breaking"
)

// Categories of change.
const (
	TableAdded      = "table_added"
	TableRemoved    = "table_removed"
	ColumnAdded     = "column_added"
	ColumnRemoved   = "column_removed"
	TypeChanged     = "type_changed"
	NullableChanged = "nullable_changed"
	KeyChanged      = "key_changed"
	EnumChanged     = "enum_changed"
)

// Item describes a single difference between the base and target schemas.
type Item struct {
	Type        Kind   `json:"type"`
	Category    string `json:"category"`
	TableID     string `json:"tableId"`
	Column      string `json:"column,omitempty"`
	OldValue    string `json:"oldValue,omitempty"`
	NewValue    string `json:"newValue,omitempty"`
	Description string `json:"description"`
}

// TableReport summarizes the differences for one table.
type TableReport struct {
	TableID       string `json:"tableId"`
	HasDrift      bool   `json:"hasDrift"`
	HasBreaking   bool   `json:"hasBreaking"`
	AdditiveCount int    `json:"additiveCount"`
	BreakingCount int    `json:"breakingCount"`
	Items         []Item `json:"items"`
}

// Report summarizes drift across every table of two snapshots. Tables only
// lists tables with at least one difference, sorted by identifier.
type Report struct {
	TotalTables   int           `json:"totalTables"`
	DriftedTables int           `json:"driftedTables"`
	AdditiveCount int           `json:"additiveCount"`
	BreakingCount int           `json:"breakingCount"`
	Tables        []TableReport `json:"tables"`
	CheckedAt     time.Time     `json:"checkedAt"`
}

// HasBreaking reports whether any table has a breaking change.
func (r Report) HasBreaking() bool {
	return r.BreakingCount > 0
}
