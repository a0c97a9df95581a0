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
	"fmt"

	"github.com/SnellerInc/prestodiff/rows"
	"github.com/SnellerInc/prestodiff/sqltype"
)

// decodePages turns the accumulated binary result pages of
// one statement into batches, one per page. Statements with
// no result pages yield nil.
func decodePages(cols []columnDesc, pages []string, a *rows.Arena) ([]*rows.Batch, error) {
	if len(pages) == 0 {
		return nil, nil
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("presto: %d result pages but no column metadata", len(pages))
	}
	fields := make([]sqltype.Field, len(cols))
	for i := range cols {
		typ, err := sqltype.Parse(cols[i].Type)
		if err != nil {
			return nil, fmt.Errorf("presto: column %q: %w", cols[i].Name, err)
		}
		fields[i] = sqltype.Field{Name: cols[i].Name, Type: typ}
	}
	out := make([]*rows.Batch, 0, len(pages))
	for i, page := range pages {
		raw, err := base64.StdEncoding.DecodeString(page)
		if err != nil {
			return nil, fmt.Errorf("presto: page %d: %w", i, err)
		}
		b, err := rows.Unmarshal(raw, fields, a)
		if err != nil {
			return nil, fmt.Errorf("presto: page %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}
