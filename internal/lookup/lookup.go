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
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ostafen/doclookup/internal/metrics"
	"github.com/ostafen/doclookup/internal/store"
	"github.com/ostafen/doclookup/internal/vars"
	"github.com/ostafen/doclookup/pkg/jsontok"
	slogcontext "github.com/veqryn/slog-context"
)

const (
	DefaultMaxTokens     = 128
	DefaultKeyBufferSize = 128
)

var ErrNotObject = errors.New("top-level JSON element is not an object")

type Options struct {
	// MaxTokens bounds the number of tokens a document may produce.
	MaxTokens int
	// KeyBufferSize bounds the length of a templated variable name.
	KeyBufferSize int
}

func DefaultOptions() Options {
	return Options{
		MaxTokens:     DefaultMaxTokens,
		KeyBufferSize: DefaultKeyBufferSize,
	}
}

// Outcome is the final state of a resolution.
type Outcome int

const (
	OK Outcome = iota
	FetchFailed
	ParseFailed
	SchemaFailed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case FetchFailed:
		return "fetch_failed"
	case ParseFailed:
		return "parse_failed"
	case SchemaFailed:
		return "schema_failed"
	default:
		return "unknown"
	}
}

// Result describes a resolution. Matched is the number of declared variables
// found among the top-level keys, Skipped the number of keys too long to be
// looked up.
type Result struct {
	Outcome Outcome
	Matched int
	Skipped int
	Err     error
}

// Resolver turns a document into values for the declared variables of a
// location. It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	client store.Client
	fields *Fields
	opts   Options
}

func New(client store.Client, fields *Fields, opts Options) *Resolver {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.KeyBufferSize <= 0 {
		opts.KeyBufferSize = DefaultKeyBufferSize
	}

	return &Resolver{
		client: client,
		fields: fields,
		opts:   opts,
	}
}

func (r *Resolver) Fields() *Fields {
	return r.fields
}

// Resolve fetches the document stored under key and writes the raw text of
// each top-level member whose templated name is declared into values.
// Whatever happens, every declared variable holds a value when Resolve
// returns: variables not found in the document are set to the empty string.
func (r *Resolver) Resolve(ctx context.Context, key []byte, values *vars.Values) Result {
	res := r.resolve(ctx, key, values)
	r.fill(values)

	metrics.Resolutions.WithLabelValues(res.Outcome.String()).Inc()
	return res
}

func (r *Resolver) resolve(ctx context.Context, key []byte, values *vars.Values) Result {
	logger := slogcontext.FromCtx(ctx).With("key", string(key))

	start := time.Now()
	doc, err := r.client.Get(ctx, key)
	status := store.StatusOf(err)
	metrics.FetchDuration.WithLabelValues(status.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("could not read document", "status", status.String(), "err", err)
		return Result{Outcome: FetchFailed, Err: err}
	}
	defer doc.Release()

	data := doc.Bytes()

	tokens, err := jsontok.Parse(data, r.opts.MaxTokens)
	if err != nil {
		logger.Error("could not parse JSON from document: "+parseErrorMessage(err), "size", len(data))
		return Result{Outcome: ParseFailed, Err: err}
	}

	if len(tokens) == 0 || tokens[0].Type != jsontok.Object {
		logger.Error("top-level JSON element in document needs to be an object")
		return Result{Outcome: SchemaFailed, Err: ErrNotObject}
	}

	return r.walk(logger, data, tokens, values)
}

// walk visits the members of the top-level object. Nested containers are
// stepped over as a whole, so only top-level keys are ever looked up.
func (r *Resolver) walk(logger *slog.Logger, data []byte, tokens []jsontok.Token, values *vars.Values) Result {
	res := Result{Outcome: OK}

	prefix := r.fields.Prefix()
	buf := make([]byte, 0, r.opts.KeyBufferSize)

	pos := 0
	for i := 1; i+1 < len(tokens); {
		k := tokens[i]
		if k.Type != jsontok.String || k.Start < pos {
			i++
			continue
		}

		v := tokens[i+1]
		i = jsontok.Skip(tokens, i+1)
		pos = v.End

		name := data[k.Start:k.End]
		if len(prefix)+len(name) > cap(buf) {
			logger.Warn("document key too large, skipping", "field", string(name), "limit", cap(buf))
			metrics.SkippedKeys.Inc()
			res.Skipped++
			continue
		}
		buf = append(append(buf[:0], prefix...), name...)

		slot, ok := r.fields.Slot(buf)
		if !ok {
			continue
		}
		values.Set(slot, string(data[v.Start:v.End]))
		res.Matched++
	}
	return res
}

// fill sets every variable left unset to the empty string.
func (r *Resolver) fill(values *vars.Values) {
	for i := 0; i < values.Len(); i++ {
		if s := (vars.Slot{Index: i}); !values.IsSet(s) {
			values.Set(s, "")
		}
	}
}

func parseErrorMessage(err error) string {
	switch {
	case errors.Is(err, jsontok.ErrInvalid):
		return "encountered a bad token, JSON document is corrupted"
	case errors.Is(err, jsontok.ErrTokenBudget):
		return "not enough tokens allocated, JSON document is too large"
	case errors.Is(err, jsontok.ErrTruncated):
		return "JSON document is too short, expecting more JSON data"
	default:
		return "unknown error"
	}
}
