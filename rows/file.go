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
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/SnellerInc/prestodiff/sqltype"

	"github.com/amazon-ion/ion-go/ion"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdEncoder = enc
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDecoder = dec
}

// WriteFile writes batches to path as a zstd frame wrapping
// a binary ion stream, one top-level list value per batch.
// The reference engine discovers the file on its next scan
// of the enclosing table directory.
//
// All batches must share one schema and at least one batch
// must be present. The returned ETag is the base64-encoded
// blake2b-256 sum of the file contents.
func WriteFile(path string, batches []*Batch) (string, error) {
	if len(batches) == 0 {
		return "", errors.New("rows: writing zero batches")
	}
	var raw bytes.Buffer
	for i, b := range batches {
		if !sqltype.EqualFields(b.Fields, batches[0].Fields) {
			return "", fmt.Errorf("rows: batch %d schema differs from batch 0", i)
		}
		page, err := Marshal(b)
		if err != nil {
			return "", err
		}
		raw.Write(page)
	}
	compressed := zstdEncoder.EncodeAll(raw.Bytes(), nil)
	if err := os.WriteFile(path, compressed, 0644); err != nil {
		return "", err
	}
	sum := blake2b.Sum256(compressed)
	return base64.URLEncoding.EncodeToString(sum[:]), nil
}

// ReadFile is the inverse of WriteFile: it reads every batch
// from the file at path, decoding values into the arena.
func ReadFile(path string, fields []sqltype.Field, a *Arena) ([]*Batch, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("rows: decompressing %s: %w", path, err)
	}
	// concatenated binary ion streams each begin with a
	// version marker, so one decoder walks all of them
	dec := ion.NewDecoder(ion.NewReader(bytes.NewReader(raw)))
	var out []*Batch
	for {
		var page []map[string]interface{}
		err := dec.DecodeTo(&page)
		if err == ion.ErrNoInput {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("rows: reading %s: %w", path, err)
		}
		b, err := fromMaps(page, fields, a)
		if err != nil {
			return nil, fmt.Errorf("rows: reading %s: %w", path, err)
		}
		out = append(out, b)
	}
	return out, nil
}
