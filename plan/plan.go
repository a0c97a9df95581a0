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

// Package plan defines the execution-plan tree handed to the
// differential-testing client by the plan generator.
//
// The tree is a closed sum type: Op is implemented only by the
// node structs in this package, and Expr only by the expression
// structs in expr.go. Translation code switches exhaustively
// over the concrete types; an unhandled kind is a coverage gap
// that must surface as an error, never as a silent fallthrough.
package plan

import (
	"github.com/SnellerInc/prestodiff/sqltype"
)

// Op represents a single node in an execution plan tree.
// The root of the tree is the final output node and the
// leaves are the tables and literal row sets the plan reads.
type Op interface {
	// Columns returns the output schema of the operator.
	Columns() []sqltype.Field

	op()
}

// Nonterminal is embedded in every Op
// that has exactly one input Op.
type Nonterminal struct {
	From Op
}

// Input returns the single input of the operator.
func (n *Nonterminal) Input() Op { return n.From }

// SortOrder describes the ordering applied to one sort key.
type SortOrder struct {
	Descending bool
	NullsFirst bool
}

// String spells the order the way the reference engine
// expects it in ORDER BY clauses.
func (o SortOrder) String() string {
	s := "ASC"
	if o.Descending {
		s = "DESC"
	}
	if o.NullsFirst {
		return s + " NULLS FIRST"
	}
	return s + " NULLS LAST"
}

// SortKey is one (column, order) pair.
type SortKey struct {
	Field *Field
	Order SortOrder
}

// Project evaluates one expression per output column.
type Project struct {
	Nonterminal
	// Names[i] is the output name of Exprs[i].
	Names []string
	Exprs []Expr
}

func (p *Project) Columns() []sqltype.Field {
	out := make([]sqltype.Field, len(p.Names))
	for i := range p.Names {
		out[i] = sqltype.Field{Name: p.Names[i], Type: p.Exprs[i].Type()}
	}
	return out
}

// AggStep is the execution step of an Aggregation node.
// The translator only accepts StepSingle; partial steps
// have no SQL equivalent a reference engine could run.
type AggStep int

const (
	StepSingle AggStep = iota
	StepPartial
	StepIntermediate
	StepFinal
)

func (s AggStep) String() string {
	switch s {
	case StepSingle:
		return "single"
	case StepPartial:
		return "partial"
	case StepIntermediate:
		return "intermediate"
	case StepFinal:
		return "final"
	}
	return "unknown"
}

// Aggregate is one aggregate function computed by an
// Aggregation node.
type Aggregate struct {
	Call *Call
	// OrderBy, when present, orders the aggregate input
	// (e.g. array_agg(x ORDER BY y)).
	OrderBy  []SortKey
	Distinct bool
	// Mask, when non-nil, names a boolean column used as
	// a FILTER (WHERE mask) clause.
	Mask *Field
}

// Aggregation groups its input and computes aggregates.
type Aggregation struct {
	Nonterminal
	Step         AggStep
	GroupingKeys []*Field
	Aggregates   []Aggregate
	// Names[i] is the output name of Aggregates[i].
	Names []string
}

func (a *Aggregation) Columns() []sqltype.Field {
	out := make([]sqltype.Field, 0, len(a.GroupingKeys)+len(a.Names))
	for _, k := range a.GroupingKeys {
		out = append(out, sqltype.Field{Name: k.Name, Type: k.Typ})
	}
	for i := range a.Names {
		out = append(out, sqltype.Field{Name: a.Names[i], Type: a.Aggregates[i].Call.Typ})
	}
	return out
}

// WindowFn is one window function computed by a Window node.
type WindowFn struct {
	Call        *Call
	IgnoreNulls bool
}

// Window computes window functions over partitions of its
// input, passing all input columns through. The frame text
// for each function is supplied externally, keyed by the
// node ID and function index (see the translator).
type Window struct {
	Nonterminal
	ID          string
	PartitionBy []*Field
	OrderBy     []SortKey
	Fns         []WindowFn
	// Names[i] is the output name of Fns[i].
	Names []string
}

func (w *Window) Columns() []sqltype.Field {
	in := w.From.Columns()
	out := make([]sqltype.Field, 0, len(in)+len(w.Names))
	out = append(out, in...)
	for i := range w.Names {
		out = append(out, sqltype.Field{Name: w.Names[i], Type: w.Fns[i].Call.Typ})
	}
	return out
}

// RowNumber numbers rows within partitions of its input,
// appending a row_number column.
type RowNumber struct {
	Nonterminal
	PartitionBy []*Field
}

func (r *RowNumber) Columns() []sqltype.Field {
	in := r.From.Columns()
	out := make([]sqltype.Field, 0, len(in)+1)
	out = append(out, in...)
	out = append(out, sqltype.Field{Name: "row_number", Type: sqltype.New(sqltype.Bigint)})
	return out
}

// TopNRowNumber keeps the first Limit rows per partition
// in the given order. RowNumberName is the name of the
// generated row-number output column; it is empty when the
// node does not expose the row number.
type TopNRowNumber struct {
	Nonterminal
	PartitionBy   []*Field
	OrderBy       []SortKey
	Limit         int64
	RowNumberName string
}

func (t *TopNRowNumber) Columns() []sqltype.Field {
	in := t.From.Columns()
	if t.RowNumberName == "" {
		return in
	}
	out := make([]sqltype.Field, 0, len(in)+1)
	out = append(out, in...)
	out = append(out, sqltype.Field{Name: t.RowNumberName, Type: sqltype.New(sqltype.Bigint)})
	return out
}

// SortColumn is one entry of an insert handle's SORTED_BY list.
type SortColumn struct {
	Column     string
	Descending bool
}

// InsertHandle carries the physical-layout properties of the
// table a TableWrite node creates. Zero-valued members mean
// the corresponding property clause is omitted.
type InsertHandle struct {
	PartitionedBy []string
	BucketCount   int
	BucketedBy    []string
	SortedBy      []SortColumn
}

// TableWrite materializes its input into a new table.
type TableWrite struct {
	Nonterminal
	Handle *InsertHandle
}

func (t *TableWrite) Columns() []sqltype.Field {
	// a table write reports the number of rows written
	return []sqltype.Field{{Name: "rows", Type: sqltype.New(sqltype.Bigint)}}
}

// JoinType is the SQL join kind of a join node.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
)

func (j JoinType) String() string {
	switch j {
	case InnerJoin:
		return "INNER JOIN"
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case FullJoin:
		return "FULL OUTER JOIN"
	}
	return "JOIN"
}

// HashJoin joins two inputs on pairwise key equality.
type HashJoin struct {
	Left, Right Op
	Kind        JoinType
	LeftKeys    []*Field
	RightKeys   []*Field
	// Filter, when non-nil, is an extra join condition
	// AND-ed onto the key equalities.
	Filter Expr
	// Output names the columns of the join result, drawn
	// from the columns of either input.
	Output []string
}

func (h *HashJoin) Columns() []sqltype.Field {
	return joinColumns(h.Output, h.Left, h.Right)
}

// NestedLoopJoin joins two inputs on an arbitrary condition.
// A nil On means a cross join.
type NestedLoopJoin struct {
	Left, Right Op
	Kind        JoinType
	On          Expr
	Output      []string
}

func (n *NestedLoopJoin) Columns() []sqltype.Field {
	return joinColumns(n.Output, n.Left, n.Right)
}

func joinColumns(names []string, left, right Op) []sqltype.Field {
	byName := make(map[string]*sqltype.Type)
	for _, c := range left.Columns() {
		byName[c.Name] = c.Type
	}
	for _, c := range right.Columns() {
		byName[c.Name] = c.Type
	}
	out := make([]sqltype.Field, len(names))
	for i, name := range names {
		out[i] = sqltype.Field{Name: name, Type: byName[name]}
	}
	return out
}

// Values is a literal row set, rendered as an inline row
// constructor. Name is the alias the enclosing query uses
// to refer to it.
type Values struct {
	Name   string
	Fields []sqltype.Field
	// Rows[i][j] is the literal for column j of row i.
	Rows [][]*Constant
}

func (v *Values) Columns() []sqltype.Field { return v.Fields }

// TableScan reads a base table. The fixture bridge
// materializes the table on the reference engine before the
// translated query runs.
type TableScan struct {
	Table  string
	Schema []sqltype.Field
}

func (t *TableScan) Columns() []sqltype.Field { return t.Schema }

func (*Project) op()        {}
func (*Aggregation) op()    {}
func (*Window) op()         {}
func (*RowNumber) op()      {}
func (*TopNRowNumber) op()  {}
func (*TableWrite) op()     {}
func (*HashJoin) op()       {}
func (*NestedLoopJoin) op() {}
func (*Values) op()         {}
func (*TableScan) op()      {}
