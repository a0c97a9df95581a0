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

	"github.com/SnellerInc/prestodiff/plan"
	"github.com/SnellerInc/prestodiff/rows"
)

// Status classifies the outcome of running one plan against
// the reference engine.
type Status int

const (
	// StatusSuccess means the reference engine produced a
	// result set to compare against.
	StatusSuccess Status = iota
	// StatusUnsupported means the plan has no faithful
	// translation; there is nothing to compare, which is
	// not a failure of either engine.
	StatusUnsupported
	// StatusEngineFailure means the reference engine
	// rejected or failed the translated query. Callers
	// usually record it and continue.
	StatusEngineFailure
	// StatusTransportFailure means the coordinator could
	// not be reached or spoke garbage; the run cannot
	// continue.
	StatusTransportFailure
	// StatusInternalError means a coverage gap or misuse on
	// our side; the run must abort so the gap gets fixed.
	StatusInternalError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusUnsupported:
		return "unsupported"
	case StatusEngineFailure:
		return "engine failure"
	case StatusTransportFailure:
		return "transport failure"
	case StatusInternalError:
		return "internal error"
	}
	return "unknown"
}

// Classify maps an error from translation, fixture
// materialization or execution onto a Status.
func Classify(err error) Status {
	var engine *EngineError
	var coverage *CoverageError
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrUnsupported):
		return StatusUnsupported
	case errors.As(err, &engine):
		return StatusEngineFailure
	case errors.As(err, &coverage):
		return StatusInternalError
	}
	return StatusTransportFailure
}

// Result is the outcome of one Runner.Execute call. Rows is
// populated only on StatusSuccess; Err is nil only on
// StatusSuccess.
type Result struct {
	Status Status
	Rows   []*rows.Batch
	Err    error
}

// Runner ties the translator, fixture bridge and protocol
// client together: it is the one-call interface the
// differential tester drives.
type Runner struct {
	Client     *Client
	Translator *Translator
	Bridge     *Bridge
	// Logf, if non-nil, is used to log run outcomes.
	Logf func(f string, args ...interface{})
}

func (r *Runner) logf(f string, args ...interface{}) {
	if r.Logf != nil {
		r.Logf(f, args...)
	}
}

// Execute translates op, materializes every table it scans
// from inputs, runs the translated SQL on the reference
// engine and returns the classified outcome. The returned
// error is always the same value as Result.Err.
func (r *Runner) Execute(op plan.Op, inputs map[string][]*rows.Batch) (*Result, error) {
	sql, err := r.Translator.ToSQL(op)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			r.logf("query not supported in reference engine")
		}
		return r.finish(nil, err)
	}
	for _, scan := range plan.Scans(op) {
		data, ok := inputs[scan.Table]
		if !ok {
			err := &CoverageError{What: fmt.Sprintf("input for table %q", scan.Table)}
			return r.finish(nil, err)
		}
		if _, err := r.Bridge.CreateAndPopulate(scan.Table, scan.Schema, data); err != nil {
			return r.finish(nil, err)
		}
	}
	batches, err := r.Client.Execute(sql)
	if err != nil {
		var engine *EngineError
		if errors.As(err, &engine) {
			r.logf("query failed in reference engine: %v", engine)
		}
		return r.finish(nil, err)
	}
	return r.finish(batches, nil)
}

func (r *Runner) finish(batches []*rows.Batch, err error) (*Result, error) {
	return &Result{Status: Classify(err), Rows: batches, Err: err}, err
}
