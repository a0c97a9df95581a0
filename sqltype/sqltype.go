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

// Package sqltype describes the SQL types used by the
// reference engine and parses the type names it sends
// back in result column descriptors.
package sqltype

import (
	"fmt"
	"strings"
)

// Kind enumerates the type constructors
// known to the reference engine.
type Kind int

const (
	Unknown Kind = iota
	Boolean
	Tinyint
	Smallint
	Integer
	Bigint
	Real
	Double
	Varchar
	Varbinary
	Timestamp
	Decimal
	JSON
	UUID
	IPAddress
	IPPrefix
	HugeInt
	HyperLogLog
	TDigest
	BingTile
	IntervalDayTime
	IntervalYearMonth
	Array
	Map
	Row
)

// Type is one SQL type descriptor.
// Scalar types are fully described by Kind
// (plus Length for varchar and Precision/Scale
// for decimal); Array, Map and Row use the
// Elem, Key/Val and Fields members respectively.
type Type struct {
	Kind      Kind
	Length    int // varchar(n); 0 means unbounded
	Precision int
	Scale     int
	Elem      *Type
	Key, Val  *Type
	Fields    []Field
}

// Field is one named component of a Row type.
// It doubles as the schema element for row batches.
type Field struct {
	Name string
	Type *Type
}

// New returns a descriptor for a scalar type kind.
func New(k Kind) *Type { return &Type{Kind: k} }

// ArrayOf returns the type array(elem).
func ArrayOf(elem *Type) *Type { return &Type{Kind: Array, Elem: elem} }

// MapOf returns the type map(key, val).
func MapOf(key, val *Type) *Type { return &Type{Kind: Map, Key: key, Val: val} }

// RowOf returns the type row(fields...).
func RowOf(fields ...Field) *Type { return &Type{Kind: Row, Fields: fields} }

// DecimalOf returns the type decimal(p, s).
func DecimalOf(p, s int) *Type { return &Type{Kind: Decimal, Precision: p, Scale: s} }

// VarcharN returns the type varchar(n).
func VarcharN(n int) *Type { return &Type{Kind: Varchar, Length: n} }

var kindNames = map[Kind]string{
	Boolean:           "boolean",
	Tinyint:           "tinyint",
	Smallint:          "smallint",
	Integer:           "integer",
	Bigint:            "bigint",
	Real:              "real",
	Double:            "double",
	Varchar:           "varchar",
	Varbinary:         "varbinary",
	Timestamp:         "timestamp",
	Decimal:           "decimal",
	JSON:              "json",
	UUID:              "uuid",
	IPAddress:         "ipaddress",
	IPPrefix:          "ipprefix",
	HugeInt:           "hugeint",
	HyperLogLog:       "hyperloglog",
	TDigest:           "tdigest",
	BingTile:          "bingtile",
	IntervalDayTime:   "interval day to second",
	IntervalYearMonth: "interval year to month",
}

// String produces the canonical SQL spelling of t,
// suitable for CAST(... AS t) and CREATE TABLE column lists.
func (t *Type) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t *Type) write(sb *strings.Builder) {
	switch t.Kind {
	case Varchar:
		sb.WriteString("varchar")
		if t.Length > 0 {
			fmt.Fprintf(sb, "(%d)", t.Length)
		}
	case Decimal:
		fmt.Fprintf(sb, "decimal(%d, %d)", t.Precision, t.Scale)
	case Array:
		sb.WriteString("array(")
		t.Elem.write(sb)
		sb.WriteByte(')')
	case Map:
		sb.WriteString("map(")
		t.Key.write(sb)
		sb.WriteString(", ")
		t.Val.write(sb)
		sb.WriteByte(')')
	case Row:
		sb.WriteString("row(")
		for i := range t.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(t.Fields[i].Name)
			sb.WriteByte(' ')
			t.Fields[i].Type.write(sb)
		}
		sb.WriteByte(')')
	default:
		if name, ok := kindNames[t.Kind]; ok {
			sb.WriteString(name)
			return
		}
		sb.WriteString("unknown")
	}
}

// Primitive returns whether t is a scalar
// (non-container) type.
func (t *Type) Primitive() bool {
	switch t.Kind {
	case Array, Map, Row, Unknown:
		return false
	}
	return true
}

// Contains returns whether t or any type nested
// inside t has kind k.
func (t *Type) Contains(k Kind) bool {
	if t == nil {
		return false
	}
	if t.Kind == k {
		return true
	}
	if t.Elem.Contains(k) || t.Key.Contains(k) || t.Val.Contains(k) {
		return true
	}
	for i := range t.Fields {
		if t.Fields[i].Type.Contains(k) {
			return true
		}
	}
	return false
}

// Equal returns whether t and other describe the same type.
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind != other.Kind ||
		t.Length != other.Length ||
		t.Precision != other.Precision ||
		t.Scale != other.Scale {
		return false
	}
	if !t.Elem.Equal(other.Elem) || !t.Key.Equal(other.Key) || !t.Val.Equal(other.Val) {
		return false
	}
	if len(t.Fields) != len(other.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i].Name != other.Fields[i].Name ||
			!t.Fields[i].Type.Equal(other.Fields[i].Type) {
			return false
		}
	}
	return true
}

// EqualFields returns whether two schemas have the
// same names and types in the same order.
func EqualFields(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !a[i].Type.Equal(b[i].Type) {
			return false
		}
	}
	return true
}
