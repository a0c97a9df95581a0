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

// prestodiff runs one SQL statement against a reference
// coordinator and prints the decoded result, optionally
// diffing it against an expected result file.
//
// usage:
//
//	prestodiff [options] <sql>
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/SnellerInc/prestodiff/presto"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(s string) error {
	*l = append(*l, s)
	return nil
}

var (
	dashConfig   string
	dashEndpoint string
	dashUser     string
	dashCatalog  string
	dashSchema   string
	dashTimeout  time.Duration
	dashCompare  string
	dashv        bool
	dashSession  listFlag
)

func init() {
	flag.StringVar(&dashConfig, "config", "", "path to a YAML config file")
	flag.StringVar(&dashEndpoint, "endpoint", "", "coordinator base URL (overrides config)")
	flag.StringVar(&dashUser, "user", "", "user identity (overrides config)")
	flag.StringVar(&dashCatalog, "catalog", "", "default catalog (overrides config)")
	flag.StringVar(&dashSchema, "schema", "", "default schema (overrides config)")
	flag.DurationVar(&dashTimeout, "timeout", 0, "per-exchange timeout (overrides config)")
	flag.StringVar(&dashCompare, "compare", "", "JSON file of expected rows to diff against")
	flag.BoolVar(&dashv, "v", false, "log protocol progress")
	flag.Var(&dashSession, "session", "session property name=value (repeatable)")
}

func config() *presto.Config {
	var cfg *presto.Config
	if dashConfig != "" {
		var err error
		cfg, err = presto.LoadConfig(dashConfig)
		if err != nil {
			log.Fatalf("loading config: %s", err)
		}
	} else {
		cfg = &presto.Config{
			User:    "user",
			Catalog: "hive",
			Schema:  "tpch",
			Timeout: presto.DefaultTimeout,
		}
	}
	if dashEndpoint != "" {
		u, err := url.Parse(dashEndpoint)
		if err != nil {
			log.Fatalf("bad -endpoint: %s", err)
		}
		cfg.Endpoint = u
	}
	if cfg.Endpoint == nil {
		log.Fatalf("no endpoint; pass -endpoint or -config")
	}
	if dashUser != "" {
		cfg.User = dashUser
	}
	if dashCatalog != "" {
		cfg.Catalog = dashCatalog
	}
	if dashSchema != "" {
		cfg.Schema = dashSchema
	}
	if dashTimeout != 0 {
		cfg.Timeout = dashTimeout
	}
	cfg.Session = append(cfg.Session, dashSession...)
	return cfg
}

func main() {
	log.SetFlags(0)
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	sql := strings.Join(flag.Args(), " ")

	client := config().Client()
	if dashv {
		client.Logf = log.Printf
	}
	batches, err := client.Execute(sql)
	if err != nil {
		log.Fatalf("executing query: %s", err)
	}
	var result []map[string]interface{}
	for _, b := range batches {
		result = append(result, b.ToJSON()...)
	}

	if dashCompare != "" {
		diff(dashCompare, result)
		return
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encoding result: %s", err)
	}
	fmt.Printf("%s\n", out)
}

// diff compares the actual rows against the expected rows in
// the given JSON file and exits non-zero on mismatch. Both
// sides are wrapped in an object because the differ compares
// objects, not arrays.
func diff(path string, result []map[string]interface{}) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("reading expected rows: %s", err)
	}
	var rows []interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		log.Fatalf("parsing %s: %s", path, err)
	}
	expected := map[string]interface{}{"rows": rows}
	actual, err := roundTrip(map[string]interface{}{"rows": result})
	if err != nil {
		log.Fatalf("encoding result: %s", err)
	}
	d := gojsondiff.New().CompareObjects(expected, actual)
	if !d.Modified() {
		fmt.Printf("result matches (%d rows)\n", len(result))
		return
	}
	text, err := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
	}).Format(d)
	if err != nil {
		log.Fatalf("formatting diff: %s", err)
	}
	fmt.Print(text)
	os.Exit(1)
}

// roundTrip pushes v through the JSON encoder so its types
// match what the differ sees on the expected side.
func roundTrip(v map[string]interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
