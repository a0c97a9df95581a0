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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/SnellerInc/prestodiff/rows"
	"github.com/SnellerInc/prestodiff/sqltype"

	"github.com/gorilla/mux"
)

// miniCoordinator imitates just enough of a reference
// coordinator for the fixture dance: DROP, CREATE ... AS
// SELECT typed nulls, "$path" discovery and DELETE. Anything
// else is handed to the fallback, or fails like an engine
// would.
type miniTable struct {
	fields []sqltype.Field
	dir    string
}

type miniCoordinator struct {
	t          *testing.T
	root       string
	tables     map[string]*miniTable
	statements []string
	fallback   func(sql string) (*queryResponse, error)
	srv        *httptest.Server
}

func newMiniCoordinator(t *testing.T) *miniCoordinator {
	m := &miniCoordinator{
		t:      t,
		root:   t.TempDir(),
		tables: make(map[string]*miniTable),
	}
	r := mux.NewRouter()
	r.HandleFunc("/v1/statement", m.statement).Methods(http.MethodPost)
	m.srv = httptest.NewServer(r)
	t.Cleanup(m.srv.Close)
	return m
}

func (m *miniCoordinator) client() *Client {
	u, err := url.Parse(m.srv.URL)
	if err != nil {
		m.t.Fatal(err)
	}
	return &Client{Endpoint: u, User: "tester", Catalog: "hive", Schema: "tpch", Logf: m.t.Logf}
}

func (m *miniCoordinator) bridge() *Bridge {
	return &Bridge{Client: m.client(), Logf: m.t.Logf}
}

func (m *miniCoordinator) statement(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		m.t.Error(err)
	}
	sql := string(body)
	m.statements = append(m.statements, sql)
	resp := m.eval(sql)
	resp.ID = fmt.Sprintf("q%d", len(m.statements))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func engineFailure(code int, msg string) *queryResponse {
	resp := &queryResponse{}
	resp.Error = &struct {
		ErrorCode int    `json:"errorCode"`
		Message   string `json:"message"`
	}{ErrorCode: code, Message: msg}
	return resp
}

func pageEnvelope(t *testing.T, batches ...*rows.Batch) *queryResponse {
	t.Helper()
	resp := &queryResponse{}
	for i := range batches[0].Fields {
		resp.Columns = append(resp.Columns, columnDesc{
			Name: batches[0].Fields[i].Name,
			Type: batches[0].Fields[i].Type.String(),
		})
	}
	for _, b := range batches {
		resp.BinaryData = append(resp.BinaryData, encodePage(t, b))
	}
	return resp
}

var (
	createRe = regexp.MustCompile(`^CREATE TABLE (\w+) WITH \(FORMAT = 'DWRF'\) AS SELECT (.+)$`)
	castRe   = regexp.MustCompile(`^CAST\(NULL AS ([a-z0-9() ]+)\) AS (\w+)$`)
)

func (m *miniCoordinator) eval(sql string) *queryResponse {
	switch {
	case strings.HasPrefix(sql, "DROP TABLE IF EXISTS "):
		delete(m.tables, strings.TrimPrefix(sql, "DROP TABLE IF EXISTS "))
		return &queryResponse{}
	case createRe.MatchString(sql):
		groups := createRe.FindStringSubmatch(sql)
		name := groups[1]
		var fields []sqltype.Field
		for _, sel := range strings.Split(groups[2], ", ") {
			cast := castRe.FindStringSubmatch(sel)
			if cast == nil {
				return engineFailure(1, "cannot parse select item "+sel)
			}
			typ, err := sqltype.Parse(cast[1])
			if err != nil {
				return engineFailure(1, err.Error())
			}
			fields = append(fields, sqltype.Field{Name: cast[2], Type: typ})
		}
		dir := filepath.Join(m.root, name)
		if err := os.MkdirAll(dir, 0750); err != nil {
			m.t.Fatal(err)
		}
		m.tables[name] = &miniTable{fields: fields, dir: dir}
		return &queryResponse{}
	case strings.HasPrefix(sql, `SELECT "$path" FROM `):
		name := strings.TrimPrefix(sql, `SELECT "$path" FROM `)
		tbl := m.tables[name]
		if tbl == nil {
			return engineFailure(2, "no such table "+name)
		}
		b := &rows.Batch{Fields: []sqltype.Field{{Name: "$path", Type: sqltype.New(sqltype.Varchar)}}}
		b.Append("file:" + filepath.Join(tbl.dir, "000000_seed"))
		return pageEnvelope(m.t, b)
	case strings.HasPrefix(sql, "DELETE FROM "):
		return &queryResponse{}
	}
	if m.fallback != nil {
		resp, err := m.fallback(sql)
		if err != nil {
			return engineFailure(3, err.Error())
		}
		return resp
	}
	return engineFailure(4, "cannot evaluate "+sql)
}

// scanTable reads back every data file landed for a table,
// the way the engine would on its next scan.
func (m *miniCoordinator) scanTable(name string) ([]*rows.Batch, error) {
	tbl := m.tables[name]
	if tbl == nil {
		return nil, errors.New("no such table " + name)
	}
	paths, err := filepath.Glob(filepath.Join(tbl.dir, "*.ion.zst"))
	if err != nil {
		return nil, err
	}
	var out []*rows.Batch
	var a rows.Arena
	for _, path := range paths {
		batches, err := rows.ReadFile(path, tbl.fields, &a)
		if err != nil {
			return nil, err
		}
		out = append(out, batches...)
	}
	return out, nil
}

func nationSchema() []sqltype.Field {
	return []sqltype.Field{
		{Name: "nationkey", Type: sqltype.New(sqltype.Bigint)},
		{Name: "name", Type: sqltype.New(sqltype.Varchar)},
	}
}

func nationData(t *testing.T) []*rows.Batch {
	t.Helper()
	b := &rows.Batch{Fields: nationSchema()}
	for i, name := range []string{"ALGERIA", "ARGENTINA", "BRAZIL"} {
		if err := b.Append(int64(i), name); err != nil {
			t.Fatal(err)
		}
	}
	return []*rows.Batch{b}
}

func TestBridgeCreateAndPopulate(t *testing.T) {
	m := newMiniCoordinator(t)
	bridge := m.bridge()
	tbl, err := bridge.CreateAndPopulate("nation", nationSchema(), nationData(t))
	if err != nil {
		t.Fatal(err)
	}
	if !tbl.Populated || tbl.ETag == "" {
		t.Errorf("table not fully materialized: %+v", tbl)
	}
	// drop, create, $path, delete
	if len(m.statements) != 4 {
		t.Errorf("%d statements issued: %q", len(m.statements), m.statements)
	}
	got, err := m.scanTable("nation")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Len() != 3 {
		t.Fatalf("scan found %d batches", len(got))
	}
	if got[0].Data[2][1] != "BRAZIL" {
		t.Errorf("scan returned %v", got[0].Data)
	}

	// a second call is memoized: same table, no new
	// statements
	before := len(m.statements)
	again, err := bridge.CreateAndPopulate("nation", nationSchema(), nationData(t))
	if err != nil {
		t.Fatal(err)
	}
	if again != tbl {
		t.Error("memoized table differs")
	}
	if len(m.statements) != before {
		t.Errorf("memoized call issued %d statements", len(m.statements)-before)
	}

	// same name, different schema: a driver bug
	_, err = bridge.CreateAndPopulate("nation", nationSchema()[:1], nil)
	if err == nil {
		t.Error("schema mismatch went unnoticed")
	}
}

func TestBridgeZeroColumns(t *testing.T) {
	m := newMiniCoordinator(t)
	bridge := m.bridge()
	data := []*rows.Batch{{Data: [][]interface{}{{}, {}, {}}}}
	tbl, err := bridge.CreateAndPopulate("rowsonly", nil, data)
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Fields) != 1 || tbl.Fields[0].Name != "rowsonlyx" {
		t.Fatalf("placeholder schema %v", tbl.Fields)
	}
	got, err := m.scanTable("rowsonly")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Len() != 3 {
		t.Fatalf("scan found %v", got)
	}
	for i, row := range got[0].Data {
		if row[0] != nil {
			t.Errorf("row %d: placeholder value %#v", i, row[0])
		}
	}

	// a repeated request for the same zero-column table is
	// memoized against the schema that was asked for, not
	// the substituted placeholder
	before := len(m.statements)
	again, err := bridge.CreateAndPopulate("rowsonly", nil, data)
	if err != nil {
		t.Fatalf("repeat call: %s", err)
	}
	if again != tbl {
		t.Error("memoized table differs")
	}
	if len(m.statements) != before {
		t.Errorf("memoized call issued %d statements", len(m.statements)-before)
	}

	// a genuinely different schema is still rejected
	if _, err := bridge.CreateAndPopulate("rowsonly", nationSchema(), nil); err == nil {
		t.Error("schema mismatch went unnoticed")
	}
}

func TestBridgeEmptyTable(t *testing.T) {
	m := newMiniCoordinator(t)
	tbl, err := m.bridge().CreateAndPopulate("void", nationSchema(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !tbl.Populated {
		t.Error("empty table not populated")
	}
	got, err := m.scanTable("void")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Len() != 0 {
		t.Errorf("empty table scanned as %v", got)
	}
}

func TestBridgeUnsupportedSchema(t *testing.T) {
	m := newMiniCoordinator(t)
	fields := []sqltype.Field{{Name: "h", Type: sqltype.New(sqltype.HugeInt)}}
	_, err := m.bridge().CreateAndPopulate("huge", fields, nil)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("got %v, want ErrUnsupported", err)
	}
	if len(m.statements) != 0 {
		t.Errorf("statements issued for an unsupportable table: %q", m.statements)
	}
}

func TestDataFileName(t *testing.T) {
	a := dataFileName("nation", nationSchema())
	if !strings.HasSuffix(a, ".ion.zst") {
		t.Errorf("bad suffix: %s", a)
	}
	if b := dataFileName("nation", nationSchema()); b != a {
		t.Errorf("name not stable: %s vs %s", a, b)
	}
	if c := dataFileName("nation", nationSchema()[:1]); c == a {
		t.Error("distinct schemas map to one file name")
	}
	if d := dataFileName("region", nationSchema()); d == a {
		t.Error("distinct tables map to one file name")
	}
}
