package wizsync

import "testing"

func TestExtractRows_FindsNestedDataArray(t *testing.T) {
	// Decoy array (column headers) is larger than the true data array, but
	// only the data rows satisfy the shape predicate.
	payload := map[string]any{
		"status": "ok",
		"meta": map[string]any{
			"columns": []any{
				map[string]any{"title": "a"},
				map[string]any{"title": "b"},
				map[string]any{"title": "c"},
				map[string]any{"title": "d"},
			},
		},
		"result": map[string]any{
			"inner": map[string]any{
				"rows": []any{
					map[string]any{"AccountKey": "K1", "Balance": "100"},
					map[string]any{"AccountKey": "K2", "Balance": "0"},
				},
			},
		},
	}

	rows := extractRows(payload, balancesRowShape)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["AccountKey"] != "K1" {
		t.Fatalf("expected first row K1, got %v", rows[0]["AccountKey"])
	}
}

func TestExtractRows_TopLevelArrayPassthrough(t *testing.T) {
	payload := []any{
		map[string]any{"AccountKey": "K1"},
		"not an object",
		map[string]any{"AccountKey": "K2"},
	}
	rows := extractRows(payload, balancesRowShape)
	if len(rows) != 2 {
		t.Fatalf("expected 2 object rows, got %d", len(rows))
	}
}

func TestExtractRows_NoArraysYieldsEmpty(t *testing.T) {
	payload := map[string]any{"status": "ok", "meta": map[string]any{"count": 0.0}}
	if rows := extractRows(payload, balancesRowShape); len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
	if rows := extractRows("scalar", balancesRowShape); rows != nil {
		t.Fatalf("expected nil for scalar payload, got %v", rows)
	}
}

func TestExtractRows_ObjectCountBreaksTies(t *testing.T) {
	// Neither array matches the predicate; the one with more objects wins.
	payload := map[string]any{
		"small": []any{map[string]any{"x": 1.0}},
		"large": []any{
			map[string]any{"x": 1.0},
			map[string]any{"x": 2.0},
		},
	}
	rows := extractRows(payload, balancesRowShape)
	if len(rows) != 2 {
		t.Fatalf("expected the larger candidate (2 rows), got %d", len(rows))
	}
}

func TestExtractRows_DeterministicOnEqualScores(t *testing.T) {
	payload := map[string]any{
		"b": []any{map[string]any{"v": "second"}},
		"a": []any{map[string]any{"v": "first"}},
	}
	for i := 0; i < 20; i++ {
		rows := extractRows(payload, nil)
		if len(rows) != 1 || rows[0]["v"] != "first" {
			t.Fatalf("iteration %d: expected the first-seen candidate (key a), got %v", i, rows)
		}
	}
}

func TestExtractRows_PredicateBeatsSize(t *testing.T) {
	payload := map[string]any{
		"decoy": []any{
			map[string]any{"n": 1.0}, map[string]any{"n": 2.0},
			map[string]any{"n": 3.0}, map[string]any{"n": 4.0},
			map[string]any{"n": 5.0},
		},
		"data": []any{
			map[string]any{"תנועה": "1001", "יתרה": "50.00"},
		},
	}
	rows := extractRows(payload, ledgerRowShape)
	if len(rows) != 1 {
		t.Fatalf("expected the single matching row, got %d rows", len(rows))
	}
	if rows[0]["תנועה"] != "1001" {
		t.Fatalf("unexpected row: %v", rows[0])
	}
}
