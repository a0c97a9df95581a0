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

// Package rows holds materialized row batches and their
// serialized forms: the binary page encoding used on the
// statement protocol and the compressed file format used to
// land fixture data for the reference engine.
package rows

import (
	"fmt"
	"time"

	"github.com/SnellerInc/prestodiff/sqltype"
)

// Batch is one batch of materialized rows.
//
// Values are row-major; Data[i][j] belongs to column
// Fields[j] of row i. Value representations by column kind:
//
//	boolean                  bool
//	tinyint ... bigint       int64
//	real                     float32
//	double                   float64
//	varchar                  string
//	varbinary                []byte (arena-backed after decode)
//	timestamp                time.Time
//	any kind                 nil for SQL NULL
//
// Container values decode to []interface{} (array),
// map[string]interface{} (map, row) without further coercion.
type Batch struct {
	Fields []sqltype.Field
	Data   [][]interface{}
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int { return len(b.Data) }

// Append adds one row to the batch. The value count must
// match the schema.
func (b *Batch) Append(vals ...interface{}) error {
	if len(vals) != len(b.Fields) {
		return fmt.Errorf("rows: appending %d values to %d-column batch", len(vals), len(b.Fields))
	}
	b.Data = append(b.Data, vals)
	return nil
}

// NullBatch returns a batch with a single column of the
// given name and n all-null rows. The fixture bridge uses
// it to stand in for zero-column inputs, since the
// reference engine cannot create a zero-column table.
func NullBatch(col string, n int) *Batch {
	b := &Batch{
		Fields: []sqltype.Field{{Name: col, Type: sqltype.New(sqltype.Bigint)}},
	}
	for i := 0; i < n; i++ {
		b.Data = append(b.Data, []interface{}{nil})
	}
	return b
}

// used by tests and the CLI to print values uniformly
func formatValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case time.Time:
		return vv.UTC().Format(time.RFC3339Nano)
	case []byte:
		return fmt.Sprintf("%x", vv)
	default:
		return vv
	}
}

// ToJSON returns the batch rows as JSON-encodable maps,
// one map per row, with timestamps in RFC 3339 form and
// varbinary hex-encoded.
func (b *Batch) ToJSON() []map[string]interface{} {
	out := make([]map[string]interface{}, len(b.Data))
	for i, row := range b.Data {
		m := make(map[string]interface{}, len(b.Fields))
		for j := range b.Fields {
			m[b.Fields[j].Name] = formatValue(row[j])
		}
		out[i] = m
	}
	return out
}
