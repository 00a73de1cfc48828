package schema

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeBatch(t *testing.T) {
	input := `[
		{"action":"create_table","tableId":"users","columns":[{"title":"id","type":"integer","pk":true}]},
		{"action":"add_column","tableId":"users","column":{"title":"email","format":"text"}},
		{"action":"alter_column","tableId":"users","columnName":"email","patch":{"required":true}},
		{"action":"rename_table","tableId":"users","newTableId":"people"},
		{"action":"drop_column","tableId":"people","columnName":"email"},
		{"action":"drop_table","tableId":"people"}
	]`

	ops, err := DecodeBatch([]byte(input))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(ops) != 6 {
		t.Fatalf("expected 6 operations, got %d", len(ops))
	}
	for i, kind := range AllKinds {
		found := false
		for _, op := range ops {
			if op.Kind() == kind {
				found = true
			}
		}
		if !found {
			t.Errorf("kind %d (%s) not decoded", i, kind)
		}
	}

	alter, ok := ops[2].(AlterColumn)
	if !ok {
		t.Fatalf("ops[2] is %T", ops[2])
	}
	if alter.Patch.Required == nil || !*alter.Patch.Required || alter.Patch.Title != nil {
		t.Errorf("patch = %+v", alter.Patch)
	}

	res := Apply(nil, ops)
	if !res.OK {
		t.Errorf("decoded batch did not apply cleanly: %+v", res.Results)
	}
	if len(res.Snapshot) != 0 {
		t.Errorf("expected empty snapshot, got %v", res.Snapshot.Keys())
	}
}

func TestDecodeBatchErrors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantIndex int
		wantMsg   string
	}{
		{"not an array", `{"action":"drop_table","tableId":"x"}`, -1, "JSON array"},
		{"empty body", ``, -1, "JSON array"},
		{"malformed", `[{"action":}]`, -1, "invalid JSON"},
		{"unknown action", `[{"action":"truncate","tableId":"x"}]`, 0, "unknown action"},
		{"missing action", `[{"tableId":"x"}]`, 0, "action: is required"},
		{"missing table", `[{"action":"drop_table"}]`, 0, "tableId: is required"},
		{"blank table", `[{"action":"drop_table","tableId":"  "}]`, 0, "tableId: is required"},
		{"rename without target", `[{"action":"drop_table","tableId":"a"},{"action":"rename_table","tableId":"a"}]`, 1, "newTableId"},
		{"add without column", `[{"action":"add_column","tableId":"a"}]`, 0, "column: is required"},
		{"add untitled column", `[{"action":"add_column","tableId":"a","column":{"type":"text"}}]`, 0, "column.title"},
		{"create untitled column", `[{"action":"create_table","tableId":"a","columns":[{"title":"ok"},{"type":"text"}]}]`, 0, "columns[1].title"},
		{"drop without name", `[{"action":"drop_column","tableId":"a"}]`, 0, "columnName"},
		{"alter empty patch", `[{"action":"alter_column","tableId":"a","columnName":"b","patch":{}}]`, 0, "patch"},
		{"alter blank title", `[{"action":"alter_column","tableId":"a","columnName":"b","patch":{"title":""}}]`, 0, "patch.title"},
		{"alter blank type", `[{"action":"alter_column","tableId":"a","columnName":"b","patch":{"type":""}}]`, 0, "patch.type"},
		{"alter blank format", `[{"action":"alter_column","tableId":"a","columnName":"b","patch":{"format":" "}}]`, 0, "patch.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBatch([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", ve.Index, tt.wantIndex)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Index: 2, Field: "tableId", Message: "is required"}
	if got := err.Error(); got != "operation 2: tableId: is required" {
		t.Errorf("Error() = %q", got)
	}
	err = &ValidationError{Index: -1, Message: "operations must be a JSON array"}
	if got := err.Error(); got != "operations must be a JSON array" {
		t.Errorf("Error() = %q", got)
	}
}

func TestUnknownActionListsValidKinds(t *testing.T) {
	_, err := Request{Action: "explode", TableID: "x"}.Operation()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, k := range AllKinds {
		if !strings.Contains(err.Error(), string(k)) {
			t.Errorf("error %q does not list %s", err.Error(), k)
		}
	}
}

func TestDecodeBatchScalarDefaults(t *testing.T) {
	input := `[
		{"action":"create_table","tableId":"flags","columns":[
			{"title":"count","type":"integer","default":0},
			{"title":"enabled","type":"boolean","default":true},
			{"title":"ratio","type":"numeric","default":1.5},
			{"title":"label","default":"'none'"},
			{"title":"note","default":null}
		]},
		{"action":"alter_column","tableId":"flags","columnName":"count","patch":{"default":42}}
	]`
	ops, err := DecodeBatch([]byte(input))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}

	create := ops[0].(CreateTable)
	want := []string{"0", "true", "1.5", "'none'"}
	for i, w := range want {
		if d := create.Columns[i].Default; d == nil || *d != w {
			t.Errorf("columns[%d].default = %v, want %q", i, d, w)
		}
	}
	if create.Columns[4].Default != nil {
		t.Errorf("null default should stay unset, got %q", *create.Columns[4].Default)
	}
	if create.Columns[0].Title != "count" || create.Columns[0].Type != "integer" {
		t.Errorf("other fields lost: %+v", create.Columns[0])
	}

	alter := ops[1].(AlterColumn)
	if d := alter.Patch.Default; d == nil || *d != "42" {
		t.Errorf("patch default = %v, want 42", d)
	}

	res := Apply(nil, ops)
	if d := res.Snapshot["flags"].Columns[0].Default; d == nil || *d != "42" {
		t.Errorf("applied default = %v", d)
	}
}

func TestDecodeBatchRejectsStructuredDefault(t *testing.T) {
	_, err := DecodeBatch([]byte(`[{"action":"add_column","tableId":"a","column":{"title":"b","default":{"x":1}}}]`))
	if err == nil || !strings.Contains(err.Error(), "default must be") {
		t.Errorf("err = %v", err)
	}
}
