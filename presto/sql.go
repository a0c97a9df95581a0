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

package presto

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SnellerInc/prestodiff/plan"
	"github.com/SnellerInc/prestodiff/sqltype"
)

// ErrUnsupported is returned by Translator.ToSQL when some
// node or expression of the plan has no faithful SQL
// equivalent on the reference engine. It is a deliberate
// abstention, not a failure: the whole translation is
// withheld so that partial SQL is never produced.
var ErrUnsupported = errors.New("presto: no faithful SQL translation")

// A CoverageError reports a plan construct the translator
// has no rule for. Unlike ErrUnsupported it indicates a bug
// (a coverage gap) and must abort the run rather than be
// counted as an ordinary abstention.
type CoverageError struct {
	What string
}

func (e *CoverageError) Error() string {
	return "presto: no translation rule for " + e.What
}

// FrameLookup supplies the window frame text for the i'th
// window function of the window node with the given ID.
type FrameLookup func(windowID string, i int) (string, bool)

// frame the reference engine assumes when a query spells none
const defaultFrame = "RANGE BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW"

// Translator turns execution plans into reference-engine SQL.
//
// Translation is pure: two calls on the same plan yield
// identical text, and a translator may be shared freely
// between goroutines.
type Translator struct {
	// Frames supplies window frame text per (node ID,
	// function index). When nil, or when a lookup misses,
	// the engine's default frame is spelled explicitly.
	Frames FrameLookup
}

// ToSQL renders the plan rooted at op as one SQL statement.
// It returns ErrUnsupported when the plan cannot be
// expressed faithfully, and a *CoverageError when the plan
// contains a construct this translator has no rule for.
func (t *Translator) ToSQL(op plan.Op) (string, error) {
	return t.toSQL(op)
}

func (t *Translator) toSQL(op plan.Op) (string, error) {
	switch n := op.(type) {
	case *plan.Project:
		return t.project(n)
	case *plan.Aggregation:
		return t.aggregation(n)
	case *plan.Window:
		return t.window(n)
	case *plan.RowNumber:
		return t.rowNumber(n)
	case *plan.TopNRowNumber:
		return t.topNRowNumber(n)
	case *plan.TableWrite:
		return t.tableWrite(n)
	case *plan.HashJoin:
		return t.hashJoin(n)
	case *plan.NestedLoopJoin:
		return t.nestedLoopJoin(n)
	case *plan.Values:
		return t.values(n)
	case *plan.TableScan:
		return QuoteIdent(n.Table), nil
	}
	return "", &CoverageError{What: fmt.Sprintf("plan node %T", op)}
}

func appendComma(i int, sb *strings.Builder) {
	if i > 0 {
		sb.WriteString(", ")
	}
}

func (t *Translator) project(n *plan.Project) (string, error) {
	source, err := t.toSQL(n.From)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i := range n.Names {
		appendComma(i, &sb)
		if err := t.writeExpr(&sb, n.Exprs[i]); err != nil {
			return "", err
		}
		sb.WriteString(" as ")
		sb.WriteString(QuoteIdent(n.Names[i]))
	}
	sb.WriteString(" FROM (")
	sb.WriteString(source)
	sb.WriteString(")")
	return sb.String(), nil
}

func (t *Translator) aggregation(n *plan.Aggregation) (string, error) {
	if n.Step != plan.StepSingle {
		// partial aggregation steps have no SQL spelling;
		// seeing one here is a planner/driver bug, not a
		// feature the reference engine lacks
		return "", &CoverageError{What: fmt.Sprintf("aggregation step %q", n.Step)}
	}
	if !WritableFields(n.From.Columns()) {
		return "", ErrUnsupported
	}
	source, err := t.toSQL(n.From)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, key := range n.GroupingKeys {
		appendComma(i, &sb)
		sb.WriteString(QuoteIdent(key.Name))
	}
	if len(n.Aggregates) > 0 {
		if len(n.GroupingKeys) > 0 {
			sb.WriteString(", ")
		}
		for i := range n.Aggregates {
			appendComma(i, &sb)
			if err := t.writeAggregate(&sb, &n.Aggregates[i]); err != nil {
				return "", err
			}
			sb.WriteString(" as ")
			sb.WriteString(QuoteIdent(n.Names[i]))
		}
	}
	sb.WriteString(" FROM ")
	sb.WriteString(source)
	if len(n.GroupingKeys) > 0 {
		sb.WriteString(" GROUP BY ")
		for i, key := range n.GroupingKeys {
			appendComma(i, &sb)
			sb.WriteString(QuoteIdent(key.Name))
		}
	}
	return sb.String(), nil
}

func (t *Translator) writeAggregate(sb *strings.Builder, agg *plan.Aggregate) error {
	call := agg.Call
	if !SupportedSignature(callSignature(call)) {
		return ErrUnsupported
	}
	sb.WriteString(call.Func)
	sb.WriteString("(")
	if agg.Distinct {
		sb.WriteString("DISTINCT ")
	}
	for i, arg := range call.Args {
		appendComma(i, sb)
		if err := t.writeExpr(sb, arg); err != nil {
			return err
		}
	}
	if len(agg.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		writeSortKeys(sb, agg.OrderBy)
	}
	sb.WriteString(")")
	if agg.Mask != nil {
		sb.WriteString(" filter (where ")
		sb.WriteString(QuoteIdent(agg.Mask.Name))
		sb.WriteString(")")
	}
	return nil
}

func writeSortKeys(sb *strings.Builder, keys []plan.SortKey) {
	for i := range keys {
		appendComma(i, sb)
		sb.WriteString(QuoteIdent(keys[i].Field.Name))
		sb.WriteString(" ")
		sb.WriteString(keys[i].Order.String())
	}
}

func (t *Translator) frame(id string, i int) string {
	if t.Frames != nil {
		if text, ok := t.Frames(id, i); ok {
			return text
		}
	}
	return defaultFrame
}

func (t *Translator) window(n *plan.Window) (string, error) {
	if !WritableFields(n.From.Columns()) {
		return "", ErrUnsupported
	}
	source, err := t.toSQL(n.From)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	input := n.From.Columns()
	for i := range input {
		appendComma(i, &sb)
		sb.WriteString(QuoteIdent(input[i].Name))
	}
	sb.WriteString(", ")
	for i := range n.Fns {
		appendComma(i, &sb)
		if err := t.writeCall(&sb, n.Fns[i].Call); err != nil {
			return "", err
		}
		if n.Fns[i].IgnoreNulls {
			sb.WriteString(" IGNORE NULLS")
		}
		sb.WriteString(" OVER (")
		if len(n.PartitionBy) > 0 {
			sb.WriteString("PARTITION BY ")
			for j, key := range n.PartitionBy {
				appendComma(j, &sb)
				sb.WriteString(QuoteIdent(key.Name))
			}
		}
		if len(n.OrderBy) > 0 {
			sb.WriteString(" ORDER BY ")
			writeSortKeys(&sb, n.OrderBy)
		}
		sb.WriteString(" ")
		sb.WriteString(t.frame(n.ID, i))
		sb.WriteString(")")
	}
	sb.WriteString(" FROM ")
	sb.WriteString(source)
	return sb.String(), nil
}

func (t *Translator) rowNumber(n *plan.RowNumber) (string, error) {
	if !WritableFields(n.From.Columns()) {
		return "", ErrUnsupported
	}
	source, err := t.toSQL(n.From)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	input := n.From.Columns()
	for i := range input {
		appendComma(i, &sb)
		sb.WriteString(QuoteIdent(input[i].Name))
	}
	sb.WriteString(", row_number() OVER (")
	if len(n.PartitionBy) > 0 {
		sb.WriteString("partition by ")
		for i, key := range n.PartitionBy {
			appendComma(i, &sb)
			sb.WriteString(QuoteIdent(key.Name))
		}
	}
	sb.WriteString(") as row_number FROM ")
	sb.WriteString(source)
	return sb.String(), nil
}

func (t *Translator) topNRowNumber(n *plan.TopNRowNumber) (string, error) {
	if !WritableFields(n.From.Columns()) {
		return "", ErrUnsupported
	}
	source, err := t.toSQL(n.From)
	if err != nil {
		return "", err
	}
	rowNumber := n.RowNumberName
	if rowNumber == "" {
		rowNumber = "row_number"
	}
	var sb strings.Builder
	sb.WriteString("SELECT * FROM (SELECT ")
	input := n.From.Columns()
	for i := range input {
		appendComma(i, &sb)
		sb.WriteString(QuoteIdent(input[i].Name))
	}
	sb.WriteString(", row_number() OVER (")
	if len(n.PartitionBy) > 0 {
		sb.WriteString("partition by ")
		for i, key := range n.PartitionBy {
			appendComma(i, &sb)
			sb.WriteString(QuoteIdent(key.Name))
		}
	}
	if len(n.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		writeSortKeys(&sb, n.OrderBy)
	}
	sb.WriteString(") as ")
	sb.WriteString(QuoteIdent(rowNumber))
	sb.WriteString(" FROM ")
	sb.WriteString(source)
	sb.WriteString(") where ")
	sb.WriteString(QuoteIdent(rowNumber))
	sb.WriteString(" <= ")
	sb.WriteString(strconv.FormatInt(n.Limit, 10))
	return sb.String(), nil
}

func (t *Translator) tableWrite(n *plan.TableWrite) (string, error) {
	source, err := t.toSQL(n.From)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("CREATE TABLE tmp_write")
	appendTableWith(&sb, n.Handle, "ORC")
	sb.WriteString(" AS SELECT * FROM ")
	sb.WriteString(source)
	return sb.String(), nil
}

// appendTableWith renders the WITH (...) property clause of
// CREATE TABLE: PARTITIONED_BY, then BUCKET_COUNT/BUCKETED_BY,
// then SORTED_BY, then FORMAT, each only when present on the
// handle. The fixture bridge uses the same routine so the two
// renderings cannot drift apart.
func appendTableWith(sb *strings.Builder, h *plan.InsertHandle, format string) {
	sb.WriteString(" WITH (")
	if h != nil {
		if len(h.PartitionedBy) > 0 {
			sb.WriteString("PARTITIONED_BY = ARRAY[")
			for i, col := range h.PartitionedBy {
				appendComma(i, sb)
				sb.WriteString(QuoteLiteral(col))
			}
			sb.WriteString("], ")
		}
		if h.BucketCount > 0 {
			fmt.Fprintf(sb, "BUCKET_COUNT = %d, BUCKETED_BY = ARRAY[", h.BucketCount)
			for i, col := range h.BucketedBy {
				appendComma(i, sb)
				sb.WriteString(QuoteLiteral(col))
			}
			sb.WriteString("], ")
		}
		if len(h.SortedBy) > 0 {
			sb.WriteString("SORTED_BY = ARRAY[")
			for i, col := range h.SortedBy {
				appendComma(i, sb)
				order := " ASC"
				if col.Descending {
					order = " DESC"
				}
				sb.WriteString(QuoteLiteral(col.Column + order))
			}
			sb.WriteString("], ")
		}
	}
	fmt.Fprintf(sb, "FORMAT = '%s')", format)
}

func (t *Translator) hashJoin(n *plan.HashJoin) (string, error) {
	left, err := t.toSQL(n.Left)
	if err != nil {
		return "", err
	}
	right, err := t.toSQL(n.Right)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("(SELECT ")
	for i, name := range n.Output {
		appendComma(i, &sb)
		sb.WriteString(QuoteIdent(name))
	}
	sb.WriteString(" FROM (")
	sb.WriteString(left)
	sb.WriteString(") as t ")
	sb.WriteString(n.Kind.String())
	sb.WriteString(" (")
	sb.WriteString(right)
	sb.WriteString(") as u ON ")
	if len(n.LeftKeys) == 0 && n.Filter == nil {
		sb.WriteString("TRUE")
	}
	for i := range n.LeftKeys {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString("t.")
		sb.WriteString(QuoteIdent(n.LeftKeys[i].Name))
		sb.WriteString(" = u.")
		sb.WriteString(QuoteIdent(n.RightKeys[i].Name))
	}
	if n.Filter != nil {
		if len(n.LeftKeys) > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString("(")
		if err := t.writeExpr(&sb, n.Filter); err != nil {
			return "", err
		}
		sb.WriteString(")")
	}
	sb.WriteString(")")
	return sb.String(), nil
}

func (t *Translator) nestedLoopJoin(n *plan.NestedLoopJoin) (string, error) {
	left, err := t.toSQL(n.Left)
	if err != nil {
		return "", err
	}
	right, err := t.toSQL(n.Right)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("(SELECT ")
	for i, name := range n.Output {
		appendComma(i, &sb)
		sb.WriteString(QuoteIdent(name))
	}
	sb.WriteString(" FROM (")
	sb.WriteString(left)
	sb.WriteString(") as t ")
	if n.On == nil && n.Kind == plan.InnerJoin {
		sb.WriteString("CROSS JOIN (")
		sb.WriteString(right)
		sb.WriteString(") as u)")
		return sb.String(), nil
	}
	sb.WriteString(n.Kind.String())
	sb.WriteString(" (")
	sb.WriteString(right)
	sb.WriteString(") as u ON ")
	if n.On == nil {
		sb.WriteString("TRUE")
	} else if err := t.writeExpr(&sb, n.On); err != nil {
		return "", err
	}
	sb.WriteString(")")
	return sb.String(), nil
}

func (t *Translator) values(n *plan.Values) (string, error) {
	name := n.Name
	if name == "" {
		name = "v"
	}
	var sb strings.Builder
	if len(n.Rows) == 0 {
		// VALUES cannot spell an empty row set; select
		// typed nulls and drop them instead
		sb.WriteString("(SELECT ")
		if len(n.Fields) == 0 {
			fmt.Fprintf(&sb, "CAST(NULL AS bigint) AS %s", QuoteIdent(name+"x"))
		}
		for i := range n.Fields {
			appendComma(i, &sb)
			fmt.Fprintf(&sb, "CAST(NULL AS %s) AS %s", n.Fields[i].Type, QuoteIdent(n.Fields[i].Name))
		}
		fmt.Fprintf(&sb, " LIMIT 0) AS %s", QuoteIdent(name))
		return sb.String(), nil
	}
	if len(n.Fields) == 0 {
		// rows with no columns; stand in a null placeholder
		// column so the row count survives, matching how the
		// fixture bridge lands zero-column tables
		sb.WriteString("(VALUES ")
		for i := range n.Rows {
			appendComma(i, &sb)
			sb.WriteString("(CAST(NULL AS bigint))")
		}
		fmt.Fprintf(&sb, ") AS %s(%s)", QuoteIdent(name), QuoteIdent(name+"x"))
		return sb.String(), nil
	}
	sb.WriteString("(VALUES ")
	for i, row := range n.Rows {
		appendComma(i, &sb)
		sb.WriteString("(")
		for j, val := range row {
			appendComma(j, &sb)
			if err := writeConstant(&sb, val); err != nil {
				return "", err
			}
		}
		sb.WriteString(")")
	}
	fmt.Fprintf(&sb, ") AS %s(", QuoteIdent(name))
	for i := range n.Fields {
		appendComma(i, &sb)
		sb.WriteString(QuoteIdent(n.Fields[i].Name))
	}
	sb.WriteString(")")
	return sb.String(), nil
}

func callSignature(c *plan.Call) *Signature {
	sig := &Signature{Name: c.Func, Ret: c.Typ}
	for _, arg := range c.Args {
		sig.Args = append(sig.Args, arg.Type())
	}
	return sig
}

func (t *Translator) writeCall(sb *strings.Builder, c *plan.Call) error {
	if !SupportedSignature(callSignature(c)) {
		return ErrUnsupported
	}
	sb.WriteString(c.Func)
	sb.WriteString("(")
	for i, arg := range c.Args {
		appendComma(i, sb)
		if err := t.writeExpr(sb, arg); err != nil {
			return err
		}
	}
	sb.WriteString(")")
	return nil
}

func (t *Translator) writeExpr(sb *strings.Builder, e plan.Expr) error {
	switch e := e.(type) {
	case *plan.Field:
		sb.WriteString(QuoteIdent(e.Name))
		return nil
	case *plan.Call:
		return t.writeCall(sb, e)
	case *plan.Cast:
		sb.WriteString("CAST(")
		if err := t.writeExpr(sb, e.Value); err != nil {
			return err
		}
		sb.WriteString(" AS ")
		sb.WriteString(e.Typ.String())
		sb.WriteString(")")
		return nil
	case *plan.Concat:
		sb.WriteString("concat(")
		for i, arg := range e.Args {
			appendComma(i, sb)
			if err := t.writeExpr(sb, arg); err != nil {
				return err
			}
		}
		sb.WriteString(")")
		return nil
	case *plan.Constant:
		return writeConstant(sb, e)
	}
	return &CoverageError{What: fmt.Sprintf("expression %T", e)}
}

func writeConstant(sb *strings.Builder, c *plan.Constant) error {
	if !SupportedConstant(c.Typ) {
		return ErrUnsupported
	}
	if c.Value == nil {
		fmt.Fprintf(sb, "CAST(NULL AS %s)", c.Typ)
		return nil
	}
	switch c.Typ.Kind {
	case sqltype.Boolean:
		if c.Value.(bool) {
			sb.WriteString("TRUE")
		} else {
			sb.WriteString("FALSE")
		}
		return nil
	case sqltype.Integer, sqltype.Bigint:
		n, err := asInt64(c.Value)
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatInt(n, 10))
		return nil
	case sqltype.Tinyint, sqltype.Smallint:
		// narrow integer literals keep their declared type
		n, err := asInt64(c.Value)
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "CAST(%d AS %s)", n, c.Typ)
		return nil
	case sqltype.Double:
		f, err := asFloat64(c.Value)
		if err != nil {
			return err
		}
		sb.WriteString(formatDouble(f))
		return nil
	case sqltype.Real:
		f, err := asFloat64(c.Value)
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "CAST(%s AS real)", formatDouble(f))
		return nil
	case sqltype.Varchar:
		if s, ok := c.Value.(string); ok {
			sb.WriteString(QuoteLiteral(s))
			return nil
		}
	case sqltype.Varbinary:
		if b, ok := c.Value.([]byte); ok {
			fmt.Fprintf(sb, "X'%X'", b)
			return nil
		}
	case sqltype.Decimal:
		if s, ok := c.Value.(string); ok {
			fmt.Fprintf(sb, "DECIMAL %s", QuoteLiteral(s))
			return nil
		}
	}
	return &CoverageError{What: fmt.Sprintf("constant of type %s holding %T", c.Typ, c.Value)}
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return 0, &CoverageError{What: fmt.Sprintf("integer constant holding %T", v)}
}

func asFloat64(v interface{}) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	}
	return 0, &CoverageError{What: fmt.Sprintf("float constant holding %T", v)}
}

// formatDouble spells f so the engine parses it back as a
// floating-point literal; NaN and the infinities use the
// engine's constructor functions since they have no literal
// form.
func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan()"
	case math.IsInf(f, 1):
		return "infinity()"
	case math.IsInf(f, -1):
		return "-infinity()"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
