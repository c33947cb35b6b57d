package wizsync

import "sort"

// rowPredicate reports whether an object looks like a row of a particular
// report. Each report kind supplies its own predicate so the extractor can
// tell the real data array apart from decoys (column headers, totals).
type rowPredicate func(row map[string]any) bool

// extractRows heuristically locates the array of row objects inside an
// arbitrarily shaped report payload. Upstream wraps the data in metadata
// envelopes of unknown depth, so we breadth-first collect every array in
// the object graph and score each candidate:
//
//	score = 1000*(objects matching the predicate) + (object count)
//
// The predicate bonus keeps a small true data array ahead of a larger decoy.
// Ties keep the first-seen candidate. Never fails: a payload with no arrays
// yields an empty slice, which callers treat as "no data available".
func extractRows(payload any, looksLike rowPredicate) []map[string]any {
	if looksLike == nil {
		looksLike = func(map[string]any) bool { return false }
	}

	if arr, ok := payload.([]any); ok {
		return objectRows(arr)
	}

	root, ok := payload.(map[string]any)
	if !ok {
		return nil
	}

	var candidates [][]any
	queue := []map[string]any{root}
	for len(queue) > 0 {
		obj := queue[0]
		queue = queue[1:]
		// Go map iteration order is random; walk keys sorted so
		// "first-seen wins" is deterministic.
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch v := obj[k].(type) {
			case []any:
				candidates = append(candidates, v)
			case map[string]any:
				queue = append(queue, v)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	best := -1
	bestScore := -1
	for i, cand := range candidates {
		objCount := 0
		matchCount := 0
		for _, el := range cand {
			obj, ok := el.(map[string]any)
			if !ok {
				continue
			}
			objCount++
			if looksLike(obj) {
				matchCount++
			}
		}
		score := 1000*matchCount + objCount
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	return objectRows(candidates[best])
}

func objectRows(arr []any) []map[string]any {
	rows := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		if obj, ok := el.(map[string]any); ok {
			rows = append(rows, obj)
		}
	}
	return rows
}
