// Package jsondiff computes a flat field-level delta between two JSON-like
// values (the result of encoding/json decoding into any).
//
// The output is an audit trail, not a merge input: entries carry the full
// before/after values at each diverging leaf and nothing else.
package jsondiff

import (
	"fmt"
	"reflect"
	"sort"
)

// Entry is one leaf-level divergence.
type Entry struct {
	Path   string `json:"path"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// Diff walks before and after in lockstep and returns every leaf where they
// diverge. Identical values yield no entry; a container compared against a
// non-container yields one entry with the full values, without recursing.
func Diff(before, after any) []Entry {
	var out []Entry
	walk(before, after, "", &out)
	return out
}

func walk(a, b any, path string, out *[]Entry) {
	if reflect.DeepEqual(a, b) {
		return
	}

	aArr, aIsArr := a.([]any)
	bArr, bIsArr := b.([]any)
	aMap, aIsMap := a.(map[string]any)
	bMap, bIsMap := b.(map[string]any)

	if aIsArr && bIsArr {
		n := len(aArr)
		if len(bArr) > n {
			n = len(bArr)
		}
		for i := 0; i < n; i++ {
			var av, bv any
			if i < len(aArr) {
				av = aArr[i]
			}
			if i < len(bArr) {
				bv = bArr[i]
			}
			walk(av, bv, fmt.Sprintf("%s[%d]", path, i), out)
		}
		return
	}

	if aIsMap && bIsMap {
		keys := make([]string, 0, len(aMap)+len(bMap))
		seen := make(map[string]struct{}, len(aMap)+len(bMap))
		for k := range aMap {
			keys = append(keys, k)
			seen[k] = struct{}{}
		}
		for k := range bMap {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}
		// Deterministic entry order regardless of map iteration order.
		sort.Strings(keys)
		for _, k := range keys {
			walk(aMap[k], bMap[k], joinKey(path, k), out)
		}
		return
	}

	// Scalar mismatch, or container vs. non-container.
	*out = append(*out, Entry{Path: path, Before: a, After: b})
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
