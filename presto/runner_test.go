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
	"strings"
	"testing"

	"github.com/SnellerInc/prestodiff/plan"
	"github.com/SnellerInc/prestodiff/rows"
	"github.com/SnellerInc/prestodiff/sqltype"
)

func (m *miniCoordinator) runner() *Runner {
	client := m.client()
	return &Runner{
		Client:     client,
		Translator: &Translator{},
		Bridge:     &Bridge{Client: client, Logf: m.t.Logf},
		Logf:       m.t.Logf,
	}
}

func nationScan() *plan.TableScan {
	return &plan.TableScan{Table: "nation", Schema: nationSchema()}
}

func TestRunnerRoundTrip(t *testing.T) {
	m := newMiniCoordinator(t)
	// the fallback stands in for real query evaluation: it
	// scans the landed fixture data back out, so the result
	// must be the same multiset of rows that went in
	m.fallback = func(sql string) (*queryResponse, error) {
		if !strings.Contains(sql, "FROM (nation)") {
			return nil, fmt.Errorf("unexpected query %q", sql)
		}
		batches, err := m.scanTable("nation")
		if err != nil {
			return nil, err
		}
		return pageEnvelope(m.t, batches...), nil
	}
	op := &plan.Project{
		Nonterminal: plan.Nonterminal{From: nationScan()},
		Names:       []string{"nationkey", "name"},
		Exprs: []plan.Expr{
			col("nationkey", bigint()),
			col("name", varchar()),
		},
	}
	inputs := map[string][]*rows.Batch{"nation": nationData(t)}
	res, err := m.runner().Execute(op, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("status %s", res.Status)
	}
	want := nationData(t)[0]
	total := 0
	seen := make(map[string]bool)
	for _, b := range res.Rows {
		if !sqltype.EqualFields(b.Fields, want.Fields) {
			t.Fatalf("result schema %v", b.Fields)
		}
		for _, row := range b.Data {
			seen[fmt.Sprintf("%v|%v", row[0], row[1])] = true
			total++
		}
	}
	if total != want.Len() || len(seen) != want.Len() {
		t.Fatalf("%d result rows (%d distinct), want %d", total, len(seen), want.Len())
	}
	for _, row := range want.Data {
		if !seen[fmt.Sprintf("%v|%v", row[0], row[1])] {
			t.Errorf("row %v missing from result", row)
		}
	}
}

func TestRunnerUnsupported(t *testing.T) {
	m := newMiniCoordinator(t)
	op := &plan.Project{
		Nonterminal: plan.Nonterminal{From: nationScan()},
		Names:       []string{"c"},
		Exprs: []plan.Expr{
			&plan.Constant{Typ: sqltype.New(sqltype.Timestamp)},
		},
	}
	inputs := map[string][]*rows.Batch{"nation": nationData(t)}
	res, err := m.runner().Execute(op, inputs)
	if res.Status != StatusUnsupported {
		t.Fatalf("status %s (err %v)", res.Status, err)
	}
	// abstention happens before any engine contact
	if len(m.statements) != 0 {
		t.Errorf("statements issued for an unsupported plan: %q", m.statements)
	}
}

func TestRunnerMissingInput(t *testing.T) {
	m := newMiniCoordinator(t)
	op := &plan.RowNumber{
		Nonterminal: plan.Nonterminal{From: nationScan()},
	}
	res, _ := m.runner().Execute(op, nil)
	if res.Status != StatusInternalError {
		t.Fatalf("status %s", res.Status)
	}
	var coverage *CoverageError
	if !errors.As(res.Err, &coverage) {
		t.Errorf("err %v, want a coverage error", res.Err)
	}
}

func TestRunnerEngineFailure(t *testing.T) {
	m := newMiniCoordinator(t)
	m.fallback = func(sql string) (*queryResponse, error) {
		return nil, errors.New("division by zero")
	}
	op := &plan.Project{
		Nonterminal: plan.Nonterminal{From: nationScan()},
		Names:       []string{"nationkey"},
		Exprs:       []plan.Expr{col("nationkey", bigint())},
	}
	inputs := map[string][]*rows.Batch{"nation": nationData(t)}
	res, err := m.runner().Execute(op, inputs)
	if res.Status != StatusEngineFailure {
		t.Fatalf("status %s (err %v)", res.Status, err)
	}
	var engine *EngineError
	if !errors.As(res.Err, &engine) {
		t.Errorf("err %v, want an engine error", res.Err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Status
	}{
		{nil, StatusSuccess},
		{ErrUnsupported, StatusUnsupported},
		{fmt.Errorf("table x: %w", ErrUnsupported), StatusUnsupported},
		{&EngineError{Code: 1, Message: "boom"}, StatusEngineFailure},
		{fmt.Errorf("wrapped: %w", &EngineError{Code: 1}), StatusEngineFailure},
		{&CoverageError{What: "thing"}, StatusInternalError},
		{errors.New("connection refused"), StatusTransportFailure},
	}
	for i := range cases {
		tc := cases[i]
		t.Run(fmt.Sprintf("case-%d", i), func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}
