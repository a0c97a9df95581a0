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

package rows

import (
	"bytes"
	"fmt"
	"time"

	"github.com/SnellerInc/prestodiff/sqltype"

	"github.com/amazon-ion/ion-go/ion"
)

// Marshal encodes the batch as one binary ion value:
// a list with one struct per row, fields named after the
// batch schema. This is the page payload carried inside the
// statement protocol's binaryData entries.
func Marshal(b *Batch) ([]byte, error) {
	out := make([]map[string]interface{}, len(b.Data))
	for i, row := range b.Data {
		if len(row) != len(b.Fields) {
			return nil, fmt.Errorf("rows: row %d has %d values, schema has %d", i, len(row), len(b.Fields))
		}
		m := make(map[string]interface{}, len(b.Fields))
		for j := range b.Fields {
			v := row[j]
			if ts, ok := v.(time.Time); ok {
				v = ion.NewTimestamp(ts.UTC(), ion.TimestampPrecisionNanosecond, ion.TimezoneUTC)
			}
			m[b.Fields[j].Name] = v
		}
		out[i] = m
	}
	return ion.MarshalBinary(out)
}

// Unmarshal decodes one encoded page into a batch with the
// given schema. Byte values are copied into the arena; the
// arena must outlive the returned batch.
func Unmarshal(data []byte, fields []sqltype.Field, a *Arena) (*Batch, error) {
	dec := ion.NewDecoder(ion.NewReader(bytes.NewReader(data)))
	var raw []map[string]interface{}
	if err := dec.DecodeTo(&raw); err != nil {
		return nil, fmt.Errorf("rows: decoding page: %w", err)
	}
	return fromMaps(raw, fields, a)
}

func fromMaps(raw []map[string]interface{}, fields []sqltype.Field, a *Arena) (*Batch, error) {
	b := &Batch{Fields: fields, Data: make([][]interface{}, len(raw))}
	for i, m := range raw {
		row := make([]interface{}, len(fields))
		for j := range fields {
			v, err := coerce(m[fields[j].Name], fields[j].Type, a)
			if err != nil {
				return nil, fmt.Errorf("rows: row %d column %q: %w", i, fields[j].Name, err)
			}
			row[j] = v
		}
		b.Data[i] = row
	}
	return b, nil
}

// coerce normalizes an ion-decoded value to the canonical
// representation for its declared type (see Batch).
func coerce(v interface{}, t *sqltype.Type, a *Arena) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Kind {
	case sqltype.Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case sqltype.Tinyint, sqltype.Smallint, sqltype.Integer, sqltype.Bigint:
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
		case uint:
			return int64(n), nil
		case uint32:
			return int64(n), nil
		case uint64:
			return int64(n), nil
		}
	case sqltype.Real:
		switch f := v.(type) {
		case float32:
			return f, nil
		case float64:
			return float32(f), nil
		}
	case sqltype.Double:
		switch f := v.(type) {
		case float32:
			return float64(f), nil
		case float64:
			return f, nil
		}
	case sqltype.Varchar:
		if s, ok := v.(string); ok {
			return s, nil
		}
		if s, ok := v.(*string); ok {
			return *s, nil
		}
	case sqltype.Varbinary:
		if b, ok := v.([]byte); ok {
			return a.Copy(b), nil
		}
	case sqltype.Timestamp:
		switch ts := v.(type) {
		case time.Time:
			return ts, nil
		case ion.Timestamp:
			return ts.GetDateTime(), nil
		case *ion.Timestamp:
			return ts.GetDateTime(), nil
		}
	default:
		// container and extended types pass through with
		// ion timestamps normalized, like ConvertION does
		return convertIon(v), nil
	}
	return nil, fmt.Errorf("cannot represent %T as %s", v, t)
}

func convertIon(v interface{}) interface{} {
	switch vv := v.(type) {
	case []interface{}:
		for i, v := range vv {
			vv[i] = convertIon(v)
		}
		return vv
	case map[string]interface{}:
		for k, v := range vv {
			vv[k] = convertIon(v)
		}
		return vv
	case *ion.Timestamp:
		return vv.GetDateTime()
	case ion.Timestamp:
		return vv.GetDateTime()
	default:
		return vv
	}
}
