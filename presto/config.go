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
	"net/http"
	"net/url"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// Config holds the connection settings for one reference
// coordinator.
type Config struct {
	Endpoint *url.URL
	User     string
	Catalog  string
	Schema   string
	// Timeout bounds each protocol exchange.
	Timeout time.Duration
	// Session holds extra session properties in
	// "name=value" form.
	Session []string
}

func (c *Config) UnmarshalJSON(data []byte) error {
	aux := struct {
		Endpoint string   `json:"endpoint"`
		User     string   `json:"user"`
		Catalog  string   `json:"catalog"`
		Schema   string   `json:"schema"`
		Timeout  string   `json:"timeout"`
		Session  []string `json:"session"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Endpoint == "" {
		return fmt.Errorf("config: no endpoint")
	}
	u, err := url.Parse(aux.Endpoint)
	if err != nil {
		return fmt.Errorf("config: endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: endpoint scheme %q not supported", u.Scheme)
	}
	c.Endpoint = u
	c.User = aux.User
	if c.User == "" {
		c.User = "user"
	}
	c.Catalog = aux.Catalog
	if c.Catalog == "" {
		c.Catalog = "hive"
	}
	c.Schema = aux.Schema
	if c.Schema == "" {
		c.Schema = "tpch"
	}
	c.Timeout = DefaultTimeout
	if aux.Timeout != "" {
		d, err := time.ParseDuration(aux.Timeout)
		if err != nil {
			return fmt.Errorf("config: timeout: %w", err)
		}
		c.Timeout = d
	}
	c.Session = aux.Session
	return nil
}

// LoadConfig reads a YAML (or JSON) config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return c, nil
}

// Client builds a protocol client from the configuration.
func (c *Config) Client() *Client {
	return &Client{
		Endpoint: c.Endpoint,
		User:     c.User,
		Catalog:  c.Catalog,
		Schema:   c.Schema,
		Session:  c.Session,
		HTTP:     &http.Client{Timeout: c.Timeout},
	}
}
