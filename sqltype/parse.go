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

package sqltype

import (
	"fmt"
	"strconv"
	"strings"
)

var scalarKinds = map[string]Kind{
	"boolean":     Boolean,
	"tinyint":     Tinyint,
	"smallint":    Smallint,
	"integer":     Integer,
	"int":         Integer,
	"bigint":      Bigint,
	"real":        Real,
	"double":      Double,
	"varchar":     Varchar,
	"varbinary":   Varbinary,
	"timestamp":   Timestamp,
	"json":        JSON,
	"uuid":        UUID,
	"ipaddress":   IPAddress,
	"ipprefix":    IPPrefix,
	"hugeint":     HugeInt,
	"hyperloglog": HyperLogLog,
	"tdigest":     TDigest,
	"bingtile":    BingTile,
	"unknown":     Unknown,
}

// Parse parses a type name as produced by the reference
// engine in result column descriptors, for example
// "bigint", "varchar(10)", "array(map(varchar, double))"
// or "row(a bigint, b timestamp)".
func Parse(s string) (*Type, error) {
	p := &typeParser{src: strings.ToLower(s)}
	t, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("sqltype: parsing %q: %w", s, err)
	}
	p.ws()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("sqltype: parsing %q: trailing input at offset %d", s, p.pos)
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) ws() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) word() string {
	p.ws()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *typeParser) expect(c byte) error {
	p.ws()
	if p.peek() != c {
		return fmt.Errorf("expected %q at offset %d", string(c), p.pos)
	}
	p.pos++
	return nil
}

func (p *typeParser) int() (int, error) {
	p.ws()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected integer at offset %d", start)
	}
	return strconv.Atoi(p.src[start:p.pos])
}

func (p *typeParser) parse() (*Type, error) {
	name := p.word()
	if name == "" {
		return nil, fmt.Errorf("expected type name at offset %d", p.pos)
	}
	switch name {
	case "interval":
		// "interval day to second" or "interval year to month"
		unit := p.word()
		if to := p.word(); to != "to" {
			return nil, fmt.Errorf("bad interval type near offset %d", p.pos)
		}
		switch unit + "-" + p.word() {
		case "day-second":
			return New(IntervalDayTime), nil
		case "year-month":
			return New(IntervalYearMonth), nil
		}
		return nil, fmt.Errorf("bad interval type near offset %d", p.pos)
	case "array":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		elem, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return ArrayOf(elem), nil
	case "map":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		key, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		val, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return MapOf(key, val), nil
	case "row":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		var fields []Field
		for {
			fname := p.word()
			if fname == "" {
				return nil, fmt.Errorf("expected row field name at offset %d", p.pos)
			}
			ftype, err := p.parse()
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: fname, Type: ftype})
			p.ws()
			if p.peek() != ',' {
				break
			}
			p.pos++
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return RowOf(fields...), nil
	case "decimal":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		prec, err := p.int()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		scale, err := p.int()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return DecimalOf(prec, scale), nil
	case "varchar":
		p.ws()
		if p.peek() != '(' {
			return New(Varchar), nil
		}
		p.pos++
		n, err := p.int()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return VarcharN(n), nil
	}
	if k, ok := scalarKinds[name]; ok {
		return New(k), nil
	}
	return nil, fmt.Errorf("unknown type name %q", name)
}
