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
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/SnellerInc/prestodiff/sqltype"

	"golang.org/x/crypto/blake2b"
)

func TestFileRoundTrip(t *testing.T) {
	first := testBatch(t)
	second := &Batch{Fields: first.Fields}
	if err := second.Append(false, int64(99), float32(3), 4.5, "more", []byte{1}, nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "data.ion.zst")
	etag, err := WriteFile(path, []*Batch{first, second})
	if err != nil {
		t.Fatal(err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	sum := blake2b.Sum256(contents)
	if want := base64.URLEncoding.EncodeToString(sum[:]); etag != want {
		t.Errorf("etag %s does not match file contents (%s)", etag, want)
	}
	var a Arena
	got, err := ReadFile(path, first.Fields, &a)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d batches, want 2", len(got))
	}
	sameBatch(t, got[0], first)
	sameBatch(t, got[1], second)
}

func TestWriteFileEmptyBatch(t *testing.T) {
	// a single zero-row batch is how an empty fixture table
	// is landed; it must round-trip to zero rows
	empty := &Batch{Fields: testSchema()}
	path := filepath.Join(t.TempDir(), "empty.ion.zst")
	if _, err := WriteFile(path, []*Batch{empty}); err != nil {
		t.Fatal(err)
	}
	var a Arena
	got, err := ReadFile(path, empty.Fields, &a)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Len() != 0 {
		t.Errorf("got %d batches, first with %d rows", len(got), got[0].Len())
	}
}

func TestWriteFileRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ion.zst")
	if _, err := WriteFile(path, nil); err == nil {
		t.Error("expected an error for zero batches")
	}
	mismatched := []*Batch{
		{Fields: testSchema()},
		{Fields: []sqltype.Field{{Name: "other", Type: sqltype.New(sqltype.Bigint)}}},
	}
	if _, err := WriteFile(path, mismatched); err == nil {
		t.Error("expected an error for mixed schemas")
	}
}
