package analysis

import "testing"

func TestParseRiskRegisterFencedJSON(t *testing.T) {
	text := "Here is the register:\n```json\n[{\"description\":\"API contract drift\",\"impact\":\"H\",\"probability\":\"M\",\"mitigation\":\"Contract tests\",\"owner\":\"Backend Lead\",\"timeline\":\"Sprint 2\"}]\n```\n"
	inputs := ParseRiskRegister(text)
	if len(inputs) != 1 {
		t.Fatalf("expected 1 risk input, got %d", len(inputs))
	}
	if inputs[0].Description != "API contract drift" || inputs[0].Impact != "H" || inputs[0].Probability != "M" {
		t.Fatalf("unexpected decode: %+v", inputs[0])
	}
}

func TestParseRiskRegisterFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"placeholder", Placeholder},
		{"prose only", "I could not produce a register."},
		{"broken json", "[{\"description\": ]"},
		{"empty array", "[]"},
	}
	want := DefaultRiskRegister()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputs := ParseRiskRegister(tt.text)
			if len(inputs) != len(want) {
				t.Fatalf("expected default register of %d entries, got %d", len(want), len(inputs))
			}
			if inputs[0].Description != want[0].Description {
				t.Fatalf("expected default register, got %+v", inputs[0])
			}
		})
	}
}

func TestParseImpactRowsFixedOrder(t *testing.T) {
	text := `[
		{"area":"security","description":"New auth surface","severity":"High","likelihood":"M","priority":8,"mitigation":"Threat model"},
		{"area":"TECHNICAL","description":"Schema migration","severity":"M","likelihood":"L","priority":4,"mitigation":"Dry run"}
	]`
	rows := ParseImpactRows(text)
	if len(rows) != len(ImpactAreas) {
		t.Fatalf("expected %d rows, got %d", len(ImpactAreas), len(rows))
	}
	for i, row := range rows {
		if row.Area != ImpactAreas[i] {
			t.Fatalf("row %d area = %s, want %s", i, row.Area, ImpactAreas[i])
		}
	}
	if rows[0].Description != "Schema migration" || rows[0].Severity != LevelMedium {
		t.Fatalf("technical row not applied: %+v", rows[0])
	}
	if rows[4].Description != "New auth surface" || rows[4].Severity != LevelHigh || rows[4].Priority != 8 {
		t.Fatalf("security row not applied: %+v", rows[4])
	}
	// Areas the backend skipped get the deterministic default.
	if rows[1] != defaultImpactRow(AreaBusiness) {
		t.Fatalf("business row should be default, got %+v", rows[1])
	}
}

func TestParseImpactRowsDropsMalformed(t *testing.T) {
	text := `[
		{"area":"ORBITAL","description":"not a real area","severity":"H","likelihood":"H","priority":9},
		{"area":"BUSINESS","description":"","severity":"H","likelihood":"H","priority":9},
		{"area":"PERFORMANCE","description":"bad level","severity":"CRITICAL","likelihood":"H","priority":9}
	]`
	for i, row := range ParseImpactRows(text) {
		if row != defaultImpactRow(ImpactAreas[i]) {
			t.Fatalf("row %d should be default, got %+v", i, row)
		}
	}
}

func TestParseImpactRowsClampsPriority(t *testing.T) {
	text := `[
		{"area":"TECHNICAL","description":"too low","severity":"L","likelihood":"L","priority":0},
		{"area":"BUSINESS","description":"too high","severity":"L","likelihood":"L","priority":42}
	]`
	rows := ParseImpactRows(text)
	if rows[0].Priority != 1 {
		t.Fatalf("priority 0 should clamp to 1, got %d", rows[0].Priority)
	}
	if rows[1].Priority != 10 {
		t.Fatalf("priority 42 should clamp to 10, got %d", rows[1].Priority)
	}
}
