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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SnellerInc/prestodiff/rows"

	"github.com/google/uuid"
)

// DefaultTimeout bounds each individual protocol exchange
// (one submit or one poll), not the query as a whole; a
// statement remains queued or running on the coordinator
// between polls without consuming the budget.
const DefaultTimeout = 30 * time.Second

// An EngineError is a failure reported by the reference
// engine itself inside a statement response, as opposed to a
// transport-level failure reaching the coordinator. Engine
// failures are an expected outcome of exploratory queries and
// callers usually recover from them.
type EngineError struct {
	Code    int
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// Client executes SQL statements against one coordinator via
// the HTTP statement protocol.
type Client struct {
	// Endpoint is the coordinator base URL, without the
	// /v1/statement suffix.
	Endpoint *url.URL
	// User is sent as the requesting user identity.
	User string
	// Catalog and Schema name the default namespace for
	// unqualified table references.
	Catalog string
	Schema  string
	// Session holds extra session properties, each in
	// "name=value" form, forwarded verbatim on submit.
	Session []string
	// HTTP performs the requests; http.DefaultClient when
	// nil. Timeouts belong on this client.
	HTTP *http.Client
	// Arena receives decoded variable-width values; results
	// remain valid only as long as the arena. A private
	// arena is used when nil.
	Arena *rows.Arena
	// Logf, if non-nil, is used to log protocol progress.
	Logf func(f string, args ...interface{})
}

func (c *Client) logf(f string, args ...interface{}) {
	if c.Logf != nil {
		c.Logf(f, args...)
	}
}

type queryState int

const (
	stateSubmitted queryState = iota
	statePolling
	stateCompleted
	stateFailed
)

func (s queryState) String() string {
	switch s {
	case stateSubmitted:
		return "submitted"
	case statePolling:
		return "polling"
	case stateCompleted:
		return "completed"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// columnDesc is one column of a result set as described in a
// statement response.
type columnDesc struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// queryResponse is the JSON envelope shared by submit and
// poll responses. Fields we never consult are omitted.
type queryResponse struct {
	ID    string `json:"id"`
	Error *struct {
		ErrorCode int    `json:"errorCode"`
		Message   string `json:"message"`
	} `json:"error"`
	NextURI    string       `json:"nextUri"`
	Columns    []columnDesc `json:"columns"`
	BinaryData []string     `json:"binaryData"`
}

// Execute submits sql, polls the statement to completion and
// returns the decoded result batches. Statements that produce
// no rows (DDL, DELETE) return a nil slice and nil error.
//
// A failure reported by the engine is returned as an
// *EngineError; any other error is a transport or decoding
// failure.
func (c *Client) Execute(sql string) ([]*rows.Batch, error) {
	local := uuid.New().String()
	c.logf("query %s %s: %s", local, stateSubmitted, firstLine(sql))
	resp, err := c.post(sql)
	if err != nil {
		return nil, err
	}
	var (
		cols  []columnDesc
		pages []string
	)
	state := statePolling
	for {
		if resp.Error != nil {
			c.logf("query %s (%s) %s: %s", local, resp.ID, stateFailed, resp.Error.Message)
			return nil, &EngineError{
				Code:    resp.Error.ErrorCode,
				Message: resp.Error.Message,
			}
		}
		if len(resp.Columns) > 0 && cols == nil {
			cols = resp.Columns
		}
		pages = append(pages, resp.BinaryData...)
		if resp.NextURI == "" {
			break
		}
		c.logf("query %s (%s) %s: %d pages so far", local, resp.ID, state, len(pages))
		resp, err = c.get(resp.NextURI)
		if err != nil {
			return nil, err
		}
	}
	c.logf("query %s (%s) %s: %d columns, %d pages", local, resp.ID, stateCompleted, len(cols), len(pages))
	arena := c.Arena
	if arena == nil {
		arena = &rows.Arena{}
	}
	return decodePages(cols, pages, arena)
}

func (c *Client) post(sql string) (*queryResponse, error) {
	u := *c.Endpoint
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/statement"
	u.RawQuery = "binaryResults=true"
	req, err := http.NewRequest(http.MethodPost, u.String(), strings.NewReader(sql))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-User", c.User)
	req.Header.Set("X-Catalog", c.Catalog)
	req.Header.Set("X-Schema", c.Schema)
	for _, prop := range c.Session {
		req.Header.Add("X-Session-Property", prop)
	}
	return c.do(req)
}

func (c *Client) get(next string) (*queryResponse, error) {
	req, err := http.NewRequest(http.MethodGet, next, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Client-Binary-Results", "true")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*queryResponse, error) {
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("presto: %s %s: status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("presto: decoding statement response: %w", err)
	}
	return &qr, nil
}

func firstLine(sql string) string {
	if i := strings.IndexByte(sql, '\n'); i >= 0 {
		return sql[:i] + " ..."
	}
	return sql
}
