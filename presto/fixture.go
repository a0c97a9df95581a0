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
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/SnellerInc/prestodiff/rows"
	"github.com/SnellerInc/prestodiff/sqltype"

	"github.com/dchest/siphash"
)

// Bridge materializes fixture tables on the reference engine.
//
// The engine and this process must share a filesystem: the
// engine is asked to create an empty table, reveal where it
// stores the table's data, and then the bridge drops a data
// file directly into that directory. This sidesteps INSERT
// statements, which cannot express every value (NaN, exact
// binary floats, nanosecond timestamps) losslessly.
//
// A Bridge is not safe for concurrent use.
type Bridge struct {
	Client *Client
	// Logf, if non-nil, is used to log fixture activity.
	Logf func(f string, args ...interface{})

	tables map[string]*Table
}

// Table describes one materialized fixture table.
type Table struct {
	Name   string
	Fields []sqltype.Field
	// Dir is the engine-side directory holding the table's
	// data files.
	Dir string
	// ETag identifies the landed data file contents.
	ETag string
	// Populated is set once the data file has been written.
	Populated bool

	// requested is the schema the caller asked for, before
	// any placeholder substitution; repeated calls are
	// checked against it, not against Fields.
	requested []sqltype.Field
}

func (b *Bridge) logf(f string, args ...interface{}) {
	if b.Logf != nil {
		b.Logf(f, args...)
	}
}

// Lookup returns the memoized table, or nil.
func (b *Bridge) Lookup(name string) *Table {
	return b.tables[name]
}

// CreateAndPopulate ensures a table with the given name and
// schema exists on the reference engine and holds exactly the
// rows in data. Repeated calls with the same name are cheap:
// the first materialization is memoized, and a later call
// with a different schema is an error.
//
// A table with no columns is materialized with a single
// all-null bigint placeholder column, so that downstream
// queries still observe the right row count.
func (b *Bridge) CreateAndPopulate(name string, fields []sqltype.Field, data []*rows.Batch) (*Table, error) {
	if tbl := b.tables[name]; tbl != nil {
		if !sqltype.EqualFields(tbl.requested, fields) {
			return nil, fmt.Errorf("presto: table %q already materialized with a different schema", name)
		}
		return tbl, nil
	}
	if !WritableFields(fields) {
		return nil, fmt.Errorf("presto: table %q: %w", name, ErrUnsupported)
	}
	requested := fields
	if len(fields) == 0 {
		total := 0
		for _, batch := range data {
			total += batch.Len()
		}
		placeholder := rows.NullBatch(name+"x", total)
		fields = placeholder.Fields
		data = []*rows.Batch{placeholder}
	}
	tbl, err := b.create(name, fields)
	if err != nil {
		return nil, err
	}
	tbl.requested = requested
	if err := b.populate(tbl, data); err != nil {
		return nil, err
	}
	if b.tables == nil {
		b.tables = make(map[string]*Table)
	}
	b.tables[name] = tbl
	return tbl, nil
}

// create makes an empty table with the given schema and
// discovers its data directory. The engine only reveals the
// directory through the "$path" of an existing row, so the
// table is seeded with one row of nulls which is deleted
// again afterwards.
func (b *Bridge) create(name string, fields []sqltype.Field) (*Table, error) {
	quoted := QuoteIdent(name)
	if _, err := b.Client.Execute("DROP TABLE IF EXISTS " + quoted); err != nil {
		return nil, fmt.Errorf("presto: dropping %s: %w", name, err)
	}
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(quoted)
	appendTableWith(&sb, nil, "DWRF")
	sb.WriteString(" AS SELECT ")
	for i := range fields {
		appendComma(i, &sb)
		fmt.Fprintf(&sb, "CAST(NULL AS %s) AS %s", fields[i].Type, QuoteIdent(fields[i].Name))
	}
	if _, err := b.Client.Execute(sb.String()); err != nil {
		return nil, fmt.Errorf("presto: creating %s: %w", name, err)
	}
	path, err := b.singleString(`SELECT "$path" FROM ` + quoted)
	if err != nil {
		return nil, fmt.Errorf("presto: locating %s: %w", name, err)
	}
	if _, err := b.Client.Execute("DELETE FROM " + quoted); err != nil {
		return nil, fmt.Errorf("presto: clearing %s: %w", name, err)
	}
	dir := filepath.Dir(strings.TrimPrefix(path, "file:"))
	b.logf("table %s materializing in %s", name, dir)
	return &Table{Name: name, Fields: fields, Dir: dir}, nil
}

func (b *Bridge) populate(tbl *Table, data []*rows.Batch) error {
	if len(data) == 0 {
		// land an empty data file so the table exists with
		// the right schema and zero rows
		data = []*rows.Batch{{Fields: tbl.Fields}}
	}
	path := filepath.Join(tbl.Dir, dataFileName(tbl.Name, tbl.Fields))
	etag, err := rows.WriteFile(path, data)
	if err != nil {
		return fmt.Errorf("presto: populating %s: %w", tbl.Name, err)
	}
	tbl.ETag = etag
	tbl.Populated = true
	nrows := 0
	for _, batch := range data {
		nrows += batch.Len()
	}
	b.logf("table %s populated: %d rows, etag %s", tbl.Name, nrows, etag)
	return nil
}

func (b *Bridge) singleString(sql string) (string, error) {
	batches, err := b.Client.Execute(sql)
	if err != nil {
		return "", err
	}
	var out string
	n := 0
	for _, batch := range batches {
		for _, row := range batch.Data {
			if len(row) != 1 {
				return "", fmt.Errorf("expected 1 column, got %d", len(row))
			}
			s, ok := row[0].(string)
			if !ok {
				return "", fmt.Errorf("expected a string, got %T", row[0])
			}
			out = s
			n++
		}
	}
	if n != 1 {
		return "", fmt.Errorf("expected 1 row, got %d", n)
	}
	return out, nil
}

// file name keys; arbitrary but fixed so names are stable
// across runs
const (
	fileNameKey0 = 0x70726573746f6466 // "prestodf"
	fileNameKey1 = 0x6669787475726573 // "fixtures"
)

// dataFileName derives a data file name from the table name
// and schema. Distinct schemas map to distinct names, so a
// stale file from a previous schema of the same table can
// never be confused for current data.
func dataFileName(name string, fields []sqltype.Field) string {
	var id []byte
	id = append(id, name...)
	for i := range fields {
		id = append(id, 0)
		id = append(id, fields[i].Name...)
		id = append(id, 0)
		id = append(id, fields[i].Type.String()...)
	}
	lo, hi := siphash.Hash128(fileNameKey0, fileNameKey1, id)
	var sum [16]byte
	binary.LittleEndian.PutUint64(sum[:8], lo)
	binary.LittleEndian.PutUint64(sum[8:], hi)
	return base64.URLEncoding.EncodeToString(sum[:]) + ".ion.zst"
}
