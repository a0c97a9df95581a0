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
	"strings"
)

// QuoteLiteral produces a single-quoted SQL string literal
// in the reference engine's dialect, which escapes embedded
// quotes by doubling them.
func QuoteLiteral(s string) string {
	var buf strings.Builder
	buf.Grow(len(s) + 2)
	buf.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			buf.WriteString("''")
			continue
		}
		buf.WriteByte(s[i])
	}
	buf.WriteByte('\'')
	return buf.String()
}

func bareIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// QuoteIdent renders an identifier: bare when it is a plain
// lower-case identifier, double-quoted (with embedded quotes
// doubled) otherwise.
func QuoteIdent(s string) string {
	if bareIdent(s) {
		return s
	}
	var buf strings.Builder
	buf.Grow(len(s) + 2)
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			buf.WriteString(`""`)
			continue
		}
		buf.WriteByte(s[i])
	}
	buf.WriteByte('"')
	return buf.String()
}
