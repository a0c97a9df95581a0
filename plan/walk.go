// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package plan

import (
	"sort"

	"golang.org/x/exp/maps"
)

// Sources returns the input operators of op,
// or nil for leaf operators.
func Sources(op Op) []Op {
	switch n := op.(type) {
	case *Project:
		return []Op{n.From}
	case *Aggregation:
		return []Op{n.From}
	case *Window:
		return []Op{n.From}
	case *RowNumber:
		return []Op{n.From}
	case *TopNRowNumber:
		return []Op{n.From}
	case *TableWrite:
		return []Op{n.From}
	case *HashJoin:
		return []Op{n.Left, n.Right}
	case *NestedLoopJoin:
		return []Op{n.Left, n.Right}
	}
	return nil
}

// Walk calls fn for op and every operator below it,
// depth-first. If fn returns false the walk stops
// descending below that operator.
func Walk(op Op, fn func(Op) bool) {
	if op == nil || !fn(op) {
		return
	}
	for _, src := range Sources(op) {
		Walk(src, fn)
	}
}

// Scans returns every TableScan leaf of the plan,
// de-duplicated by table name and sorted by name so
// that callers iterate deterministically.
func Scans(op Op) []*TableScan {
	seen := make(map[string]*TableScan)
	Walk(op, func(o Op) bool {
		if scan, ok := o.(*TableScan); ok {
			if _, dup := seen[scan.Table]; !dup {
				seen[scan.Table] = scan
			}
		}
		return true
	})
	names := maps.Keys(seen)
	sort.Strings(names)
	out := make([]*TableScan, len(names))
	for i, name := range names {
		out[i] = seen[name]
	}
	return out
}

// Tables returns the sorted names of the base tables
// the plan reads.
func Tables(op Op) []string {
	scans := Scans(op)
	out := make([]string, len(scans))
	for i := range scans {
		out[i] = scans[i].Table
	}
	return out
}
