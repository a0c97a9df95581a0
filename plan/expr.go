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

package plan

import (
	"github.com/SnellerInc/prestodiff/sqltype"
)

// Expr is a typed expression inside a plan node.
//
// The set of implementations is closed: every Expr is one of
// *Field, *Call, *Cast, *Concat or *Constant. Consumers switch
// exhaustively over these and treat anything else as a
// coverage bug rather than silently skipping it.
type Expr interface {
	// Type returns the result type of the expression.
	Type() *sqltype.Type

	expr()
}

// Field references an input column by name.
type Field struct {
	Name string
	Typ  *sqltype.Type
}

// Call is a named function application.
type Call struct {
	Func string
	Args []Expr
	Typ  *sqltype.Type
}

// Cast converts Value to Typ.
type Cast struct {
	Value Expr
	Typ   *sqltype.Type
}

// Concat is variadic string concatenation.
type Concat struct {
	Args []Expr
}

// Constant is a literal value.
// A nil Value means SQL NULL.
type Constant struct {
	Typ   *sqltype.Type
	Value interface{}
}

func (f *Field) Type() *sqltype.Type    { return f.Typ }
func (c *Call) Type() *sqltype.Type     { return c.Typ }
func (c *Cast) Type() *sqltype.Type     { return c.Typ }
func (c *Concat) Type() *sqltype.Type   { return sqltype.New(sqltype.Varchar) }
func (c *Constant) Type() *sqltype.Type { return c.Typ }

func (*Field) expr()    {}
func (*Call) expr()     {}
func (*Cast) expr()     {}
func (*Concat) expr()   {}
func (*Constant) expr() {}
