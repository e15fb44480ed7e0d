// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ostafen/doclookup/internal/logger"
	"github.com/ostafen/doclookup/internal/lookup"
	"github.com/ostafen/doclookup/internal/store"
	"github.com/ostafen/doclookup/pkg/util/format"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen          = ":8080"
	DefaultLogLevel        = "INFO"
	DefaultMaxDocumentSize = "1MB"
	DefaultShutdownTimeout = 10 * time.Second
)

// Config is the content of the configuration file.
type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	Backend          string        `yaml:"backend"`
	MaxDocumentSize  string        `yaml:"max_document_size"`
	BootstrapTimeout time.Duration `yaml:"bootstrap_timeout"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	SSLMode          string        `yaml:"sslmode"`

	MaxTokens       int           `yaml:"max_tokens"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Locations []Location `yaml:"locations"`
}

// Location is a path prefix served by the proxy. Directives are applied in
// the order they are listed.
type Location struct {
	Path       string   `yaml:"path"`
	Upstream   string   `yaml:"upstream"`
	Directives []string `yaml:"directives"`
}

func Default() *Config {
	return &Config{
		Listen:           DefaultListen,
		LogLevel:         DefaultLogLevel,
		Backend:          store.BackendRedis,
		MaxDocumentSize:  DefaultMaxDocumentSize,
		BootstrapTimeout: store.DefaultBootstrapTimeout,
		DialTimeout:      store.DefaultDialTimeout,
		SSLMode:          "disable",
		MaxTokens:        lookup.DefaultMaxTokens,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration over the defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the global settings and the shape of every location.
// Directives are checked by Build.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if _, err := c.StoreOptions(); err != nil {
		return err
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}

	if len(c.Locations) == 0 {
		return errors.New("no locations configured")
	}

	seen := make(map[string]bool, len(c.Locations))
	for i, loc := range c.Locations {
		if !strings.HasPrefix(loc.Path, "/") {
			return fmt.Errorf("location %d: path %q must start with '/'", i, loc.Path)
		}
		if seen[loc.Path] {
			return fmt.Errorf("location %q: duplicate path", loc.Path)
		}
		seen[loc.Path] = true

		if _, err := parseUpstream(loc.Upstream); err != nil {
			return fmt.Errorf("location %q: %w", loc.Path, err)
		}
	}
	return nil
}

// StoreOptions returns the options used to open document store clients.
func (c *Config) StoreOptions() (store.Options, error) {
	size, err := format.ParseBytes(c.MaxDocumentSize)
	if err != nil {
		return store.Options{}, fmt.Errorf("max_document_size: %w", err)
	}

	if !slices.Contains(store.Backends, c.Backend) {
		return store.Options{}, fmt.Errorf("unknown backend %q (supported: %v)", c.Backend, store.Backends)
	}

	return store.Options{
		MaxDocumentSize:  size,
		BootstrapTimeout: c.BootstrapTimeout,
		DialTimeout:      c.DialTimeout,
		SSLMode:          c.SSLMode,
	}, nil
}

// LookupOptions returns the options of the resolvers.
func (c *Config) LookupOptions() lookup.Options {
	opts := lookup.DefaultOptions()
	opts.MaxTokens = c.MaxTokens
	return opts
}

func parseUpstream(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q: expected http(s)://host[:port]", raw)
	}
	return u, nil
}
