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
	"github.com/SnellerInc/prestodiff/sqltype"
)

// Signature is one function signature as seen by the plan
// generator: argument types plus return type.
type Signature struct {
	Name string
	Args []*sqltype.Type
	Ret  *sqltype.Type
}

// type kinds the reference engine cannot accept anywhere in
// a function signature: hugeint is not native there, and
// hyperloglog, tdigest, bingtile and interval year to month
// cannot be used as constant literals or HIVE column types
var signatureDenied = [...]sqltype.Kind{
	sqltype.BingTile,
	sqltype.IntervalYearMonth,
	sqltype.HugeInt,
	sqltype.HyperLogLog,
	sqltype.TDigest,
}

// type kinds denied in input position only: the engine
// requires literals of these types to be valid values and
// implicitly reparses them (json_parse, cast to uuid, ...),
// which diverges from the engine under test
var inputDenied = [...]sqltype.Kind{
	sqltype.JSON,
	sqltype.IPAddress,
	sqltype.IPPrefix,
	sqltype.UUID,
}

// SupportedSignature reports whether a call with the given
// signature can be translated faithfully.
func SupportedSignature(sig *Signature) bool {
	for _, k := range signatureDenied {
		if sig.Ret.Contains(k) {
			return false
		}
		for _, arg := range sig.Args {
			if arg.Contains(k) {
				return false
			}
		}
	}
	for _, k := range inputDenied {
		for _, arg := range sig.Args {
			if arg.Contains(k) {
				return false
			}
		}
	}
	return true
}

// SupportedConstant reports whether a constant literal of
// type t can appear in translated SQL. Temporal, JSON, IP
// and UUID literals are denied because their cross-engine
// literal semantics diverge; container literals would need
// SQL constructor support we do not emit.
func SupportedConstant(t *sqltype.Type) bool {
	if t == nil || !t.Primitive() {
		return false
	}
	switch t.Kind {
	case sqltype.Timestamp, sqltype.JSON, sqltype.IntervalDayTime,
		sqltype.IPAddress, sqltype.IPPrefix, sqltype.UUID:
		return false
	}
	return true
}

// scalar kinds representable in the fixture file format
var writableScalar = map[sqltype.Kind]bool{
	sqltype.Boolean:   true,
	sqltype.Tinyint:   true,
	sqltype.Smallint:  true,
	sqltype.Integer:   true,
	sqltype.Bigint:    true,
	sqltype.Real:      true,
	sqltype.Double:    true,
	sqltype.Varchar:   true,
	sqltype.Varbinary: true,
	sqltype.Timestamp: true,
}

// Writable reports whether values of type t can be landed
// in a fixture data file and scanned back by the reference
// engine.
func Writable(t *sqltype.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case sqltype.Array:
		return Writable(t.Elem)
	case sqltype.Map:
		return Writable(t.Key) && Writable(t.Val)
	case sqltype.Row:
		for i := range t.Fields {
			if !Writable(t.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return writableScalar[t.Kind]
}

// WritableFields reports whether a whole schema is Writable.
func WritableFields(fields []sqltype.Field) bool {
	for i := range fields {
		if !Writable(fields[i].Type) {
			return false
		}
	}
	return true
}

// DataSpec records which numeric edge cases the reference
// engine handles compatibly for one aggregate function. The
// data generator consults it to avoid producing inputs whose
// comparison is known to be impossible.
type DataSpec struct {
	AllowNaN      bool
	AllowInfinity bool
}

// the engine under test handles NaN and Infinity better than
// the reference engine for these functions
var aggregateDataSpecs = map[string]DataSpec{
	"regr_avgx":        {false, false},
	"regr_avgy":        {false, false},
	"regr_r2":          {false, false},
	"regr_sxx":         {false, false},
	"regr_syy":         {false, false},
	"regr_sxy":         {false, false},
	"regr_slope":       {false, false},
	"regr_replacement": {false, false},
	"covar_pop":        {AllowNaN: true, AllowInfinity: false},
	"covar_samp":       {AllowNaN: true, AllowInfinity: false},
}

// AggregateDataSpec returns the data constraints for an
// aggregate function name. The second return is false when
// the function has no recorded sensitivity.
func AggregateDataSpec(name string) (DataSpec, bool) {
	spec, ok := aggregateDataSpecs[name]
	return spec, ok
}
